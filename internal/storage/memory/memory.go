// Package memory is an in-process user store with the same contract as the
// Postgres repository. It backs unit tests and local runs without a database.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"auth_gateway/internal/models"
	"auth_gateway/internal/storage"
)

type UserRepo struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]models.User
}

func New() *UserRepo {
	return &UserRepo{
		users: make(map[int64]models.User),
	}
}

func (r *UserRepo) SaveUser(_ context.Context, username, email, passHash, role string) (int64, error) {
	const op = "storage.memory.SaveUser"

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
	}

	r.nextID++
	now := time.Now()

	r.users[r.nextID] = models.User{
		ID:        r.nextID,
		Username:  username,
		Email:     email,
		PassHash:  passHash,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return r.nextID, nil
}

func (r *UserRepo) UserByLogin(_ context.Context, login string) (models.User, error) {
	const op = "storage.memory.UserByLogin"

	r.mu.RLock()
	defer r.mu.RUnlock()

	var byEmail *models.User
	for _, u := range r.users {
		if strings.EqualFold(u.Username, login) {
			return u, nil
		}
		if strings.EqualFold(u.Email, login) {
			byEmail = &u
		}
	}

	if byEmail != nil {
		return *byEmail, nil
	}

	return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
}

func (r *UserRepo) UserByEmail(_ context.Context, email string) (models.User, error) {
	const op = "storage.memory.UserByEmail"

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}

	return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
}

func (r *UserRepo) UserByID(_ context.Context, id int64) (models.User, error) {
	const op = "storage.memory.UserByID"

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return u, nil
}

func (r *UserRepo) UpdatePassword(_ context.Context, id int64, passHash string) error {
	return r.update("storage.memory.UpdatePassword", id, func(u *models.User) {
		u.PassHash = passHash
	})
}

func (r *UserRepo) SetBanStatus(_ context.Context, id int64, banned bool, reason string) error {
	return r.update("storage.memory.SetBanStatus", id, func(u *models.User) {
		u.Banned = banned
		u.BanReason = ""
		if banned {
			u.BanReason = reason
		}
	})
}

// SetRole is used by seeding and tests; there is no HTTP surface for it.
func (r *UserRepo) SetRole(_ context.Context, id int64, role string) error {
	return r.update("storage.memory.SetRole", id, func(u *models.User) {
		u.Role = role
	})
}

func (r *UserRepo) SetResetCode(_ context.Context, id int64, codeHash string, expiresAt time.Time) error {
	return r.update("storage.memory.SetResetCode", id, func(u *models.User) {
		u.ResetCodeHash = codeHash
		u.ResetCodeExpiresAt = expiresAt
	})
}

func (r *UserRepo) ConsumeResetCode(_ context.Context, id int64, codeHash string, now time.Time) error {
	const op = "storage.memory.ConsumeResetCode"

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.ResetCodeHash == "" || u.ResetCodeHash != codeHash || !now.Before(u.ResetCodeExpiresAt) {
		return fmt.Errorf("%s: %w", op, storage.ErrResetCodeMismatch)
	}

	u.ResetCodeHash = ""
	u.ResetCodeExpiresAt = time.Time{}
	u.UpdatedAt = time.Now()
	r.users[id] = u

	return nil
}

func (r *UserRepo) ClearResetCode(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[id]; ok {
		u.ResetCodeHash = ""
		u.ResetCodeExpiresAt = time.Time{}
		r.users[id] = u
	}

	return nil
}

func (r *UserRepo) Ping(context.Context) error {
	return nil
}

func (r *UserRepo) update(op string, id int64, fn func(u *models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	fn(&u)
	u.UpdatedAt = time.Now()
	r.users[id] = u

	return nil
}
