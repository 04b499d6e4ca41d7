// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/taibuivan/termboard/internal/platform/apperr"
)

// # User Repository (In-Memory)

// MemoryUserRepository implements the UserRepository interface with
// process-local maps. It backs tests and single-node development setups.
type MemoryUserRepository struct {
	mutex      sync.RWMutex
	byID       map[string]*User
	byUsername map[string]string
	byEmail    map[string]string
}

// NewMemoryRepository creates an empty in-memory user repository.
func NewMemoryRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:       map[string]*User{},
		byUsername: map[string]string{},
		byEmail:    map[string]string{},
	}
}

// Create stores the user, enforcing username/email uniqueness.
func (repository *MemoryUserRepository) Create(_ context.Context, user *User) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if _, taken := repository.byUsername[user.Username]; taken {
		return apperr.Conflict("Username or email already taken")
	}
	if user.Email != "" {
		if _, taken := repository.byEmail[user.Email]; taken {
			return apperr.Conflict("Username or email already taken")
		}
	}

	if user.JoinDate.IsZero() {
		user.JoinDate = time.Now()
	}

	stored := *user
	repository.byID[user.ID] = &stored
	repository.byUsername[user.Username] = user.ID
	if user.Email != "" {
		repository.byEmail[user.Email] = user.ID
	}

	return nil
}

// FindByID returns a copy of the stored user.
func (repository *MemoryUserRepository) FindByID(_ context.Context, id string) (*User, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()

	stored, found := repository.byID[id]
	if !found {
		return nil, apperr.NotFound("User")
	}

	copied := *stored
	return &copied, nil
}

// FindByUsername returns a copy of the stored user.
func (repository *MemoryUserRepository) FindByUsername(_ context.Context, username string) (*User, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()

	id, found := repository.byUsername[username]
	if !found {
		return nil, apperr.NotFound("User")
	}

	copied := *repository.byID[id]
	return &copied, nil
}

// FindByEmail returns a copy of the stored user.
func (repository *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()

	id, found := repository.byEmail[email]
	if !found {
		return nil, apperr.NotFound("User")
	}

	copied := *repository.byID[id]
	return &copied, nil
}

// UpdateLastLogin stamps the last successful login time.
func (repository *MemoryUserRepository) UpdateLastLogin(_ context.Context, userID string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	stored, found := repository.byID[userID]
	if !found {
		return apperr.NotFound("User")
	}

	now := time.Now()
	stored.LastLogin = &now
	return nil
}

// UpdatePassword replaces the stored password hash.
func (repository *MemoryUserRepository) UpdatePassword(_ context.Context, userID, newHash string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	stored, found := repository.byID[userID]
	if !found {
		return apperr.NotFound("User")
	}

	stored.PasswordHash = newHash
	return nil
}
