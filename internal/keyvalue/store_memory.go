// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keyvalue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// # Key/Value Repository (In-Memory)

// MemoryKVRepository implements the Repository interface with a
// process-local map. Values round-trip through JSON so that stored data
// has exactly the same shape as the Postgres implementation returns.
type MemoryKVRepository struct {
	mutex   sync.RWMutex
	entries map[Scope]*Entry
}

// NewMemoryRepository creates an empty in-memory key/value repository.
func NewMemoryRepository() *MemoryKVRepository {
	return &MemoryKVRepository{entries: map[Scope]*Entry{}}
}

// Get returns the decoded value under the scope. Expired entries behave
// as absent.
func (repository *MemoryKVRepository) Get(_ context.Context, scope Scope) (any, bool, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()

	entry, found := repository.entries[scope]
	if !found || entry.Expired(time.Now()) {
		return nil, false, nil
	}

	return entry.Value, true, nil
}

// Set upserts the value under the scope after a JSON round-trip.
func (repository *MemoryKVRepository) Set(_ context.Context, scope Scope, value any, expiresAt *time.Time) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memory_kv_repo_encode_failed: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return fmt.Errorf("memory_kv_repo_decode_failed: %w", err)
	}

	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	now := time.Now()
	if existing, found := repository.entries[scope]; found && !existing.Expired(now) {
		existing.Value = normalized
		existing.ExpiresAt = expiresAt
		existing.UpdatedAt = now
		return nil
	}

	repository.entries[scope] = &Entry{
		Scope:     scope,
		Value:     normalized,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// Delete removes the entry under the scope.
func (repository *MemoryKVRepository) Delete(_ context.Context, scope Scope) (bool, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if _, found := repository.entries[scope]; !found {
		return false, nil
	}

	delete(repository.entries, scope)
	return true, nil
}

// Keys lists the keys in one app/user/namespace partition.
func (repository *MemoryKVRepository) Keys(_ context.Context, appID, userID, namespace string) ([]string, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()

	now := time.Now()
	keys := []string{}
	for scope, entry := range repository.entries {
		if scope.AppID == appID && scope.UserID == userID && scope.Namespace == namespace && !entry.Expired(now) {
			keys = append(keys, scope.Key)
		}
	}
	sort.Strings(keys)

	return keys, nil
}

// DeleteByApp removes every entry written by the app.
func (repository *MemoryKVRepository) DeleteByApp(_ context.Context, appID string) (int64, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	var removed int64
	for scope := range repository.entries {
		if scope.AppID == appID {
			delete(repository.entries, scope)
			removed++
		}
	}

	return removed, nil
}
