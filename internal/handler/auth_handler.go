package handler

import (
	"errors"

	"analytics-ai/internal/dto"
	"analytics-ai/internal/middleware"
	"analytics-ai/internal/service"
	"analytics-ai/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthHandler serves registration, login and session checks.
type AuthHandler struct {
	authService *service.AuthService
	log         logrus.FieldLogger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authService *service.AuthService, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

// Register creates an account and signs it in.
// @Summary Register
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "account"
// @Success 200 {object} dto.TokenResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	token, err := h.authService.Register(c.Request.Context(), req.Name, req.Username, req.Password)
	if errors.Is(err, service.ErrUsernameTaken) {
		utils.BadRequest(c, service.ErrUsernameTaken.Error())
		return
	}
	if errors.Is(err, service.ErrPasswordTooLong) {
		utils.BadRequest(c, service.ErrPasswordTooLong.Error())
		return
	}
	if err != nil {
		h.log.WithError(err).Error("register failed")
		utils.InternalError(c, "Registration failed")
		return
	}

	utils.SuccessResponse(c, dto.TokenResponse{Token: token})
}

// Login exchanges credentials for a bearer token.
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "credentials"
// @Success 200 {object} dto.TokenResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		utils.BadRequest(c, service.ErrInvalidCredentials.Error())
		return
	}
	if err != nil {
		h.log.WithError(err).Error("login failed")
		utils.InternalError(c, "Login failed")
		return
	}

	utils.SuccessResponse(c, dto.TokenResponse{Token: token})
}

// Logout deactivates the current session.
// @Summary Logout
// @Tags auth
// @Produce json
// @Security Bearer
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.GetToken(c)); err != nil {
		h.log.WithError(err).Error("logout failed")
		utils.InternalError(c, "Logout failed")
		return
	}

	utils.SuccessWithMessage(c, "Successfully logged out")
}

// Verify describes the user behind the bearer token.
// @Summary Verify token
// @Tags auth
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.VerifyResponse
// @Router /api/auth/verify [get]
func (h *AuthHandler) Verify(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	username, _ := middleware.GetUsername(c)

	utils.SuccessResponse(c, dto.VerifyResponse{
		Valid:    true,
		UserID:   userID,
		Username: username,
		Name:     middleware.GetName(c),
	})
}
