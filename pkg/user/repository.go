package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// User is a credential record. TwoFactorSecret is empty unless 2FA setup
// has been started or completed; it never leaves this package through
// Sanitized.
type User struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	TwoFactorSecret  string    `json:"-"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	CreatedAt        time.Time `json:"date"`
}

// SanitizedUser is the outward-facing view of a credential record, with
// the password hash and TOTP secret stripped.
type SanitizedUser struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	CreatedAt        time.Time `json:"date"`
}

// Sanitized returns the user minus secrets.
func (u User) Sanitized() SanitizedUser {
	return SanitizedUser{
		ID:               u.ID.String(),
		Name:             u.Name,
		Email:            u.Email,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
	}
}

// Repository defines the credential store operations the login flow
// needs. Implementations must provide atomic single-record updates;
// DisableTwoFactor clears the enabled flag and the secret in one write.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) error
	SetTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error
	EnableTwoFactor(ctx context.Context, id uuid.UUID) error
	DisableTwoFactor(ctx context.Context, id uuid.UUID) error
}

// NormalizeEmail lowercases an email address so lookups are
// case-insensitive regardless of how the user typed it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
