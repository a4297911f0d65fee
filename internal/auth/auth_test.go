package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/models"
	"github.com/aegiscore/aegis/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.UserStore) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	users := storage.NewUserStore(db)
	return NewService(users, "test-secret", "aegis-test", zap.NewNop()), users
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, "Alice", "alice@example.com", "hunter2secure")
	require.NoError(t, err)

	assert.NotEmpty(t, session.Token)
	assert.Equal(t, models.PlanFree, session.User.Plan)
	assert.True(t, session.User.IsActive)
	assert.NotEqual(t, "hunter2secure", session.User.PasswordHash)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "alice@example.com", "hunter2secure")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Mallory", "alice@example.com", "different")
	assert.ErrorIs(t, err, ErrEmailTaken)

	// Emails are normalized to lowercase before comparison.
	_, err = svc.Register(ctx, "Mallory", "Alice@Example.COM", "different")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "alice@example.com", "hunter2secure")
	require.NoError(t, err)

	session, err := svc.Login(ctx, "alice@example.com", "hunter2secure")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	_, err = svc.Login(ctx, "alice@example.com", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "hunter2secure")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, "Alice", "alice@example.com", "hunter2secure")
	require.NoError(t, err)

	session.User.IsActive = false
	require.NoError(t, users.Save(ctx, session.User))

	_, err = svc.Login(ctx, "alice@example.com", "hunter2secure")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, "Alice", "alice@example.com", "hunter2secure")
	require.NoError(t, err)

	user, err := svc.ValidateSession(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, user.ID)

	_, err = svc.ValidateSession(ctx, "not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, "Alice", "alice@example.com", "hunter2secure")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, session.User, "wrong-password", "newpassword9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, session.User, "hunter2secure", "newpassword9"))

	_, err = svc.Login(ctx, "alice@example.com", "hunter2secure")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "alice@example.com", "newpassword9")
	assert.NoError(t, err)
}

func TestValidateSession_WrongSecret(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, "Alice", "alice@example.com", "hunter2secure")
	require.NoError(t, err)

	other := NewService(users, "different-secret", "aegis-test", zap.NewNop())
	_, err = other.ValidateSession(ctx, session.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}
