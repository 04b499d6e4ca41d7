// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import "sync"

// # Per-Session Locking

// keyedLock serializes work on a single session key while letting distinct
// keys proceed in parallel. Entries are reference-counted so the map does
// not grow with the lifetime set of session keys.
type keyedLock struct {
	mutex   sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mutex sync.Mutex
	refs  int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{entries: map[string]*lockEntry{}}
}

// acquire blocks until the caller holds the exclusive lock for key.
func (lock *keyedLock) acquire(key string) {
	lock.mutex.Lock()
	entry, found := lock.entries[key]
	if !found {
		entry = &lockEntry{}
		lock.entries[key] = entry
	}
	entry.refs++
	lock.mutex.Unlock()

	entry.mutex.Lock()
}

// release frees the lock for key and drops the entry once nobody waits on it.
func (lock *keyedLock) release(key string) {
	lock.mutex.Lock()
	entry, found := lock.entries[key]
	if found {
		entry.refs--
		if entry.refs == 0 {
			delete(lock.entries, key)
		}
	}
	lock.mutex.Unlock()

	if found {
		entry.mutex.Unlock()
	}
}
