package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"can-collector/internal/repository"
	"can-collector/internal/repository/sqlite"
)

func newTestRepository(t *testing.T) repository.UserRepository {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestRegister(t *testing.T) {
	svc := NewUserService(newTestRepository(t))
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.PasswordHash, "hash must not leave the service")
	assert.Zero(t, user.TotalCans)
	assert.Zero(t, user.Points)
}

func TestRegisterDuplicate(t *testing.T) {
	repo := newTestRepository(t)
	svc := NewUserService(repo)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "pw2")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestRegisterRejectsEmptyInput(t *testing.T) {
	svc := NewUserService(newTestRepository(t))
	ctx := context.Background()

	_, err := svc.Register(ctx, "  ", "pw1")
	assert.Error(t, err)

	_, err = svc.Register(ctx, "alice", "")
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	svc := NewUserService(newTestRepository(t))
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.PasswordHash)
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	svc := NewUserService(newTestRepository(t))
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	_, wrongPassword := svc.Authenticate(ctx, "alice", "wrong")
	_, unknownUser := svc.Authenticate(ctx, "nobody", "pw1")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}
