package user

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemRepository implements Repository using an in-memory map. Used by
// tests and the server's in-memory development mode.
type InMemRepository struct {
	mutex sync.RWMutex
	users map[uuid.UUID]User
}

// NewInMemRepository creates a new in-memory repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		users: make(map[uuid.UUID]User),
	}
}

func (r *InMemRepository) FindByID(ctx context.Context, id uuid.UUID) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *InMemRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	email = NormalizeEmail(email)
	for _, u := range r.users {
		if NormalizeEmail(u.Email) == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *InMemRepository) Create(ctx context.Context, u User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	email := NormalizeEmail(u.Email)
	for _, existing := range r.users {
		if NormalizeEmail(existing.Email) == email {
			return ErrDuplicateEmail
		}
	}
	u.Email = email
	r.users[u.ID] = u
	return nil
}

func (r *InMemRepository) SetTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.TwoFactorSecret = secret
	r.users[id] = u
	return nil
}

func (r *InMemRepository) EnableTwoFactor(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.TwoFactorEnabled = true
	r.users[id] = u
	return nil
}

func (r *InMemRepository) DisableTwoFactor(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.TwoFactorEnabled = false
	u.TwoFactorSecret = ""
	r.users[id] = u
	return nil
}
