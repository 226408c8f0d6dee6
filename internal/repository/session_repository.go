package repository

import (
	"context"
	"time"

	"analytics-ai/internal/models"

	"gorm.io/gorm"
)

// SessionRepository reads and writes the user_sessions table.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GetActiveByHash returns the active session stored under tokenHash.
// Expiry is left to the caller.
func (r *SessionRepository) GetActiveByHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND is_active = ?", tokenHash, true).
		Order("id DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeactivateByHash clears is_active on every session stored under tokenHash.
func (r *SessionRepository) DeactivateByHash(ctx context.Context, tokenHash string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Session{}).
		Where("token_hash = ? AND is_active = ?", tokenHash, true).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// DeactivateExpired clears is_active on sessions whose expiry is before now.
func (r *SessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Session{}).
		Where("expires_at < ? AND is_active = ?", now, true).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
