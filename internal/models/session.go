package models

import "time"

// Session is a bearer session. Only the SHA-256 of the token is stored.
type Session struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	TokenHash string    `gorm:"size:64;not null;index" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
}

// TableName pins the table name.
func (Session) TableName() string {
	return "user_sessions"
}

// Usable reports whether the session is active and not yet expired at now.
func (s *Session) Usable(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}
