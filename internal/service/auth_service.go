package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"analytics-ai/internal/models"
	"analytics-ai/internal/repository"
	"analytics-ai/internal/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService registers users and manages bearer sessions.
type AuthService struct {
	userRepo    *repository.UserRepository
	sessionRepo *repository.SessionRepository
	ttl         time.Duration
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewAuthService creates an AuthService issuing sessions that live for ttl.
func NewAuthService(userRepo *repository.UserRepository, sessionRepo *repository.SessionRepository, ttl time.Duration, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		ttl:         ttl,
		log:         log,
		now:         time.Now,
	}
}

// maxPasswordBytes is the longest password bcrypt accepts.
const maxPasswordBytes = 72

// Register creates the user and returns a token for a new session.
func (s *AuthService) Register(ctx context.Context, name, username, password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", fmt.Errorf("register %q: %w", username, ErrPasswordTooLong)
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("check username: %w", err)
	}
	if exists {
		return "", fmt.Errorf("register %q: %w", username, ErrUsernameTaken)
	}

	hashedPassword, err := utils.HashPassword(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("register %q: %w", username, ErrPasswordTooLong)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username: username,
		Password: hashedPassword,
		Name:     name,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// a concurrent registration can win between the check and the insert
		if taken, _ := s.userRepo.ExistsByUsername(ctx, username); taken {
			return "", fmt.Errorf("register %q: %w", username, ErrUsernameTaken)
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": username}).Info("user registered")

	return s.issueSession(ctx, user.ID)
}

// Login checks the credentials and returns a token for a new session.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("login %q: %w", username, ErrInvalidCredentials)
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}

	if err := utils.CheckPassword(password, user.Password); err != nil {
		return "", fmt.Errorf("login %q: %w", username, ErrInvalidCredentials)
	}

	return s.issueSession(ctx, user.ID)
}

// Logout deactivates the session behind token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	n, err := s.sessionRepo.DeactivateByHash(ctx, utils.HashToken(token))
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	s.log.WithField("sessions", n).Debug("logout")
	return nil
}

// Verify returns the user owning token while the session is active and unexpired.
func (s *AuthService) Verify(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	session, err := s.sessionRepo.GetActiveByHash(ctx, utils.HashToken(token))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if !session.Usable(s.now().UTC()) {
		return nil, fmt.Errorf("session %d expired: %w", session.ID, ErrUnauthorized)
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("session %d has no user: %w", session.ID, ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	return user, nil
}

// CleanupExpiredSessions deactivates every session past its expiry and
// returns how many were changed.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessionRepo.DeactivateExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deactivate expired sessions: %w", err)
	}
	return n, nil
}

func (s *AuthService) issueSession(ctx context.Context, userID uint) (string, error) {
	token, err := utils.NewSessionToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	session := &models.Session{
		UserID:    userID,
		TokenHash: utils.HashToken(token),
		ExpiresAt: s.now().UTC().Truncate(time.Second).Add(s.ttl),
		IsActive:  true,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	return token, nil
}
