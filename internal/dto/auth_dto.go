package dto

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries a freshly issued bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// VerifyResponse describes the user behind a valid token.
type VerifyResponse struct {
	Valid    bool   `json:"valid"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}
