package handler

import (
	"time"

	"analytics-ai/internal/dto"
	"analytics-ai/internal/models"
	"analytics-ai/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Version is reported by the banner and health endpoints.
const Version = "1.0.0"

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db, now: time.Now}
}

// Root returns the service banner.
func (h *HealthHandler) Root(c *gin.Context) {
	utils.SuccessResponse(c, dto.RootResponse{
		Message: "Analytics AI Platform API",
		Version: Version,
		Status:  "healthy",
	})
}

// Health pings the database.
func (h *HealthHandler) Health(c *gin.Context) {
	database := "connected"
	if err := models.Ping(h.db); err != nil {
		database = "disconnected"
	}

	utils.SuccessResponse(c, dto.HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Version:   Version,
		Database:  database,
	})
}
