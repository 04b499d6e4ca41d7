// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"sync"
	"time"

	"github.com/taibuivan/termboard/internal/platform/apperr"
)

// # Session Repository (In-Memory)

// MemorySessionRepository implements the Repository interface with a
// process-local map. It backs tests and single-node development setups
// where no database is available.
type MemorySessionRepository struct {
	mutex    sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryRepository creates an empty in-memory session repository.
func NewMemoryRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: map[string]*Session{}}
}

// FindByKey returns a deep copy of the stored session.
func (repository *MemorySessionRepository) FindByKey(_ context.Context, key string) (*Session, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()

	stored, found := repository.sessions[key]
	if !found {
		return nil, apperr.NotFound("Session not found")
	}

	return stored.Clone(), nil
}

// Create stores a deep copy of the given session.
func (repository *MemorySessionRepository) Create(_ context.Context, session *Session) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if _, exists := repository.sessions[session.Key]; exists {
		return apperr.Conflict("Session key already exists")
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.LastActivity = now

	repository.sessions[session.Key] = session.Clone()
	return nil
}

// Update folds the partial update into the stored session.
func (repository *MemorySessionRepository) Update(_ context.Context, key string, update Update) (*Session, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	stored, found := repository.sessions[key]
	if !found {
		return nil, apperr.NotFound("Session not found")
	}

	update.Apply(stored)
	return stored.Clone(), nil
}

// Touch bumps the last-activity timestamp.
func (repository *MemorySessionRepository) Touch(_ context.Context, key string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	stored, found := repository.sessions[key]
	if !found {
		return apperr.NotFound("Session not found")
	}

	stored.LastActivity = time.Now()
	return nil
}

// Delete removes the session if present.
func (repository *MemorySessionRepository) Delete(_ context.Context, key string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	delete(repository.sessions, key)
	return nil
}

// DeleteIdleBefore removes sessions whose last activity predates the cutoff.
func (repository *MemorySessionRepository) DeleteIdleBefore(_ context.Context, cutoff time.Time) (int64, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	var removed int64
	for key, stored := range repository.sessions {
		if stored.LastActivity.Before(cutoff) {
			delete(repository.sessions, key)
			removed++
		}
	}

	return removed, nil
}

// Count returns the number of live sessions.
func (repository *MemorySessionRepository) Count(_ context.Context) (int64, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()

	return int64(len(repository.sessions)), nil
}
