package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(email string) User {
	return User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "$2a$10$notarealhash",
		CreatedAt:    time.Now().UTC(),
	}
}

func TestInMemRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()

	u := newTestUser("Alice@Example.com")
	require.NoError(t, repo.Create(ctx, u))

	byID, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)

	// Lookup is case-insensitive.
	byEmail, err := repo.FindByEmail(ctx, "ALICE@example.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
}

func TestInMemRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()

	require.NoError(t, repo.Create(ctx, newTestUser("alice@example.com")))
	err := repo.Create(ctx, newTestUser("Alice@Example.com"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestInMemRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()

	_, err := repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.SetTwoFactorSecret(ctx, uuid.New(), "SECRET"), ErrNotFound)
	assert.ErrorIs(t, repo.EnableTwoFactor(ctx, uuid.New()), ErrNotFound)
	assert.ErrorIs(t, repo.DisableTwoFactor(ctx, uuid.New()), ErrNotFound)
}

func TestInMemRepository_TwoFactorLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()

	u := newTestUser("alice@example.com")
	require.NoError(t, repo.Create(ctx, u))

	require.NoError(t, repo.SetTwoFactorSecret(ctx, u.ID, "JBSWY3DPEHPK3PXP"))
	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", got.TwoFactorSecret)
	assert.False(t, got.TwoFactorEnabled, "provisional secret must not enable 2FA")

	require.NoError(t, repo.EnableTwoFactor(ctx, u.ID))
	got, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.TwoFactorEnabled)

	require.NoError(t, repo.DisableTwoFactor(ctx, u.ID))
	got, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.TwoFactorEnabled)
	assert.Empty(t, got.TwoFactorSecret, "disable must clear the secret, not just the flag")
}

func TestSanitized(t *testing.T) {
	u := newTestUser("alice@example.com")
	u.TwoFactorSecret = "JBSWY3DPEHPK3PXP"
	u.TwoFactorEnabled = true

	s := u.Sanitized()
	assert.Equal(t, u.ID.String(), s.ID)
	assert.Equal(t, u.Email, s.Email)
	assert.True(t, s.TwoFactorEnabled)
}
