package router

import (
	"analytics-ai/internal/codegen"
	"analytics-ai/internal/config"
	"analytics-ai/internal/handler"
	"analytics-ai/internal/middleware"
	"analytics-ai/internal/repository"
	"analytics-ai/internal/service"
	"analytics-ai/internal/utils"
	"analytics-ai/pkg/model_caller"
	"analytics-ai/pkg/object_store"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const metricsPath = "/metrics"

// Dependencies are the collaborators built in main and shared by the services.
type Dependencies struct {
	DB    *gorm.DB
	Store object_store.Store
	// Model may be nil when no LLM provider is configured.
	Model    model_caller.Generator
	Executor service.Executor
	Registry *prometheus.Registry
}

// SetupRouter builds the services and handlers and registers every route.
func SetupRouter(cfg *config.Config, logger *logrus.Logger, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := utils.RegisterCustomValidations(v); err != nil {
			logger.WithError(err).Warn("registering custom validations failed")
		}
	}

	r := gin.New()

	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(&cfg.CORS))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{metricsPath})))
	if deps.Registry != nil {
		r.Use(middleware.NewHTTPMetrics(deps.Registry).Handler())
		r.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	var registerer prometheus.Registerer
	if deps.Registry != nil {
		registerer = deps.Registry
	}

	userRepo := repository.NewUserRepository(deps.DB)
	sessionRepo := repository.NewSessionRepository(deps.DB)

	authService := service.NewAuthService(userRepo, sessionRepo, cfg.Session.GetTTL(), logger)
	storageService := service.NewStorageService(deps.Store, cfg.Storage.DefaultBucket, logger)
	codeService := service.NewCodeService(
		codegen.NewGenerator(deps.Model, logger),
		codegen.NewColumnResolver(deps.Store, cfg.Storage.HeadConcurrency, logger),
		deps.Executor,
		cfg.Datasets,
		cfg.Storage.DefaultBucket,
		registerer,
		logger,
	)

	authHandler := handler.NewAuthHandler(authService, logger)
	dataHandler := handler.NewDataHandler(storageService, logger)
	codeHandler := handler.NewCodeHandler(codeService)
	healthHandler := handler.NewHealthHandler(deps.DB)

	r.GET("/", healthHandler.Root)

	api := r.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		authorized := api.Group("")
		authorized.Use(middleware.AuthMiddleware(authService, logger))
		{
			authorized.POST("/auth/logout", authHandler.Logout)
			authorized.GET("/auth/verify", authHandler.Verify)

			data := authorized.Group("/data")
			{
				data.GET("/sources", dataHandler.ListSources)
				data.GET("/bucket/:bucket/files", dataHandler.ListBucketFiles)
				data.GET("/bucket/:bucket/file/*file", dataHandler.GetFile)
				data.DELETE("/bucket/:bucket/file/*file", dataHandler.DeleteFile)
				data.GET("/default-bucket/files", dataHandler.ListDefaultBucketFiles)
				data.POST("/default-bucket/upload", dataHandler.UploadFile)
				data.GET("/combined-files", dataHandler.CombinedFiles)
			}

			code := authorized.Group("/code")
			{
				code.POST("/generate-code", codeHandler.GenerateCode)
				code.POST("/execute", codeHandler.ExecuteCode)
			}
		}
	}

	return r
}
