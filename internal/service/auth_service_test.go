package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"analytics-ai/internal/models"
	"analytics-ai/internal/repository"
	"analytics-ai/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (*AuthService, *repository.SessionRepository) {
	t.Helper()
	db := newTestDB(t)
	sessions := repository.NewSessionRepository(db)
	return NewAuthService(repository.NewUserRepository(db), sessions, time.Hour, quietLogger()), sessions
}

func TestRegisterIssuesUsableToken(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, "Ada Lovelace", "ada", "s3cret")
	require.NoError(t, err)
	assert.Len(t, token, 32)

	user, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.NotEqual(t, "s3cret", user.Password)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "A", "ada", "pw")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "B", "ada", "other")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	// 30 runes, 90 bytes
	_, err := svc.Register(ctx, "A", "ada", strings.Repeat("密", 30))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	exact := strings.Repeat("a", 72)
	token, err := svc.Register(ctx, "A", "ada", exact)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.Login(ctx, "ada", exact)
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "A", "ada", "pw")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		token, err := svc.Login(ctx, "ada", "pw")
		require.NoError(t, err)
		_, err = svc.Verify(ctx, token)
		assert.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "ada", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(ctx, "bob", "pw")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLogoutDeactivatesSession(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, "A", "ada", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))
	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// a second logout is a no-op
	assert.NoError(t, svc.Logout(ctx, token))
}

func TestVerifyRejectsUnknownAndEmptyTokens(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Verify(ctx, "deadbeef")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyRejectsExpiredSessionEvenWhenActive(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, "A", "ada", "pw")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCleanupExpiredSessions(t *testing.T) {
	svc, sessions := newAuthService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, "A", "ada", "pw")
	require.NoError(t, err)
	fresh, err := svc.Login(ctx, "ada", "pw")
	require.NoError(t, err)

	// an expired session that was never deactivated
	require.NoError(t, sessions.Create(ctx, &models.Session{
		UserID:    1,
		TokenHash: utils.HashToken("stale"),
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
		IsActive:  true,
	}))

	n, err := svc.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = sessions.GetActiveByHash(ctx, utils.HashToken("stale"))
	assert.Error(t, err)

	for _, tok := range []string{token, fresh} {
		_, err = svc.Verify(ctx, tok)
		assert.NoError(t, err)
	}
}
