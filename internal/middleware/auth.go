package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"analytics-ai/internal/models"
	"analytics-ai/internal/service"
	"analytics-ai/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	contextUserID   = "user_id"
	contextUsername = "username"
	contextName     = "name"
	contextToken    = "token"

	invalidTokenMessage = "Invalid or expired token"
)

// TokenVerifier resolves a bearer token to its user.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware requires a valid bearer session and stores the user in the context.
func AuthMiddleware(verifier TokenVerifier, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			utils.AbortWithError(c, http.StatusUnauthorized, "Not authenticated")
			return
		}

		user, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthorized) {
				log.WithError(err).Error("token verification failed")
			}
			utils.AbortWithError(c, http.StatusUnauthorized, invalidTokenMessage)
			return
		}

		c.Set(contextUserID, user.ID)
		c.Set(contextUsername, user.Username)
		c.Set(contextName, user.Name)
		c.Set(contextToken, token)

		c.Next()
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetUserID returns the authenticated user id.
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(contextUserID)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetUsername returns the authenticated username.
func GetUsername(c *gin.Context) (string, bool) {
	username := c.GetString(contextUsername)
	return username, username != ""
}

// GetName returns the authenticated user's display name.
func GetName(c *gin.Context) string {
	return c.GetString(contextName)
}

// GetToken returns the bearer token the request was authenticated with.
func GetToken(c *gin.Context) string {
	return c.GetString(contextToken)
}
