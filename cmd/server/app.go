package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"analytics-ai/internal/config"
	"analytics-ai/internal/job"
	"analytics-ai/internal/models"
	"analytics-ai/internal/repository"
	"analytics-ai/internal/router"
	"analytics-ai/internal/sandbox"
	"analytics-ai/internal/service"
	"analytics-ai/pkg/model_caller"
	"analytics-ai/pkg/object_store"
	"analytics-ai/pkg/redis_limiter"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const (
	shutdownTimeout  = 15 * time.Second
	modelLimiterKey  = "llm:generate"
	redisLimiterPfx  = "analytics-ai:limiter:"
	redisLimiterTTL  = 10 * time.Minute
	redisPingTimeout = 3 * time.Second
)

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithField("level", cfg.Log.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func newAuthService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *service.AuthService {
	return service.NewAuthService(
		repository.NewUserRepository(db),
		repository.NewSessionRepository(db),
		cfg.Session.GetTTL(),
		logger,
	)
}

func runSweepSessions(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	db, err := models.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	sweep := job.NewSessionSweepJob(newAuthService(db, cfg, logger), logger)
	n, err := sweep.Sweep(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deactivated %d expired sessions\n", n)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := models.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	sweep := job.NewSessionSweepJob(newAuthService(db, cfg, logger), logger)
	sweep.Run()
	scheduler, err := job.Schedule(cfg.Session.SweepSchedule, sweep, logger)
	if err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	if scheduler != nil {
		scheduler.Start()
		defer scheduler.Stop()
	}

	store, err := object_store.New(ctx, object_store.Options{
		Driver:          cfg.Storage.Driver,
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		AccessKey:       cfg.Storage.AccessKey,
		SecretKey:       cfg.Storage.SecretKey,
		UsePathStyle:    cfg.Storage.UsePathStyle,
		HeadConcurrency: cfg.Storage.HeadConcurrency,
	})
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	if mem, ok := store.(*object_store.MemoryStore); ok {
		mem.CreateBucket(cfg.Storage.DefaultBucket)
		for _, ds := range cfg.Datasets {
			mem.CreateBucket(ds.Bucket)
		}
	}

	model, err := newModel(ctx, cfg, logger)
	if err != nil {
		return err
	}

	redisClient := newRedisClient(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	executor := sandbox.NewExecutor(
		sandbox.NewStager(store, cfg.Sandbox.StageConcurrency, logger),
		sandbox.NewRunner(sandbox.RunnerConfig{
			Interpreter:    cfg.Sandbox.Interpreter,
			Timeout:        cfg.Sandbox.GetTimeout(),
			MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
			AllowedEnv:     cfg.Sandbox.AllowedEnv,
		}, logger),
		newExecutionLimiter(cfg, redisClient, logger),
		cfg.Sandbox.WorkRoot,
		sandbox.NewMetrics(registry),
		logger,
	)

	r := router.SetupRouter(cfg, logger, router.Dependencies{
		DB:       db,
		Store:    store,
		Model:    model,
		Executor: executor,
		Registry: registry,
	})

	srv := &http.Server{
		Addr:              cfg.Server.GetAddress(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"env":      cfg.Env,
			"project":  cfg.ProjectID,
			"storage":  cfg.Storage.Driver,
			"datasets": len(cfg.Datasets),
		}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// newModel returns nil when no API key is configured so that generation
// requests report the missing key instead of failing at startup.
func newModel(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (model_caller.Generator, error) {
	if cfg.LLM.APIKey == "" {
		logger.Warn("no LLM api key configured, code generation is disabled")
		return nil, nil
	}

	model, err := model_caller.New(ctx, model_caller.Options{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		APIBase:     cfg.LLM.APIBase,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.GetTimeout(),
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	limiter := model_caller.NewConcurrencyLimiter(cfg.LLM.MaxConcurrent)
	return model_caller.WithLimit(model, limiter, modelLimiterKey, cfg.LLM.GetTimeout()), nil
}

// newRedisClient returns nil when Redis is not configured or unreachable.
func newRedisClient(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *redis.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddress(),
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.Redis.GetAddress()).Warn("redis unreachable, using in-process limiter")
		_ = client.Close()
		return nil
	}
	return client
}

func newExecutionLimiter(cfg *config.Config, client *redis.Client, logger *logrus.Logger) sandbox.Limiter {
	if client != nil {
		logger.WithField("max_concurrent", cfg.Sandbox.MaxConcurrent).Info("using redis execution limiter")
		return redis_limiter.NewRedisLimiter(client, cfg.Sandbox.MaxConcurrent, redisLimiterPfx, redisLimiterTTL, logger)
	}
	return model_caller.NewTryLimiter(cfg.Sandbox.MaxConcurrent)
}
