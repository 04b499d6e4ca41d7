// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package registry implements the in-memory index of loaded board apps.

# Concurrency

Reads happen on every command dispatch; writes only on install, uninstall,
and refresh. The registry therefore uses a reader/writer lock: readers run
concurrently and a writer appears atomic — no reader ever observes a
partially installed app.

Menu numbering relies on insertion order, which the registry preserves
across replacements: reinstalling an app keeps its menu slot.
*/
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/termboard/internal/bbs/app"
)

// # Registry Entries

// Origin classifies where an app was loaded from.
const (
	OriginBuiltin = "builtin"
	OriginLocal   = "local"
	OriginRemote  = "remote"
)

// Entry is one loaded app together with its lifecycle metadata.
type Entry struct {
	App           app.BBSApp
	Origin        string
	SourceURL     string
	RegisteredAt  time.Time
	LastRefreshed time.Time
}

// Meta is a shortcut for the entry's app metadata.
func (e *Entry) Meta() app.Meta {
	return e.App.Meta()
}

// CapabilityFactory builds the per-app facade handed to an app's OnInit.
type CapabilityFactory func(appID string) app.Capabilities

// RemoteInstaller re-resolves a remote URL into a registered app. The
// remote loader satisfies this; the indirection keeps the registry free of
// sandbox dependencies.
type RemoteInstaller interface {
	Install(ctx context.Context, url string) (*Entry, error)
}

// # The Registry

// Registry is the authoritative in-memory index of loaded apps.
type Registry struct {
	mutex        sync.RWMutex
	apps         map[string]*Entry
	order        []string
	remoteURLs   []string
	capabilities CapabilityFactory
	logger       *slog.Logger
}

// New creates an empty registry. The capability factory may be nil, in
// which case OnInit hooks are skipped (useful in tests).
func New(capabilities CapabilityFactory, logger *slog.Logger) *Registry {
	return &Registry{
		apps:         map[string]*Entry{},
		capabilities: capabilities,
		logger:       logger,
	}
}

/*
Register validates and admits an app, replacing any prior entry with the
same id.

Description: Validation runs before the write lock is taken, so a slow
candidate cannot stall readers. A replaced app keeps its menu slot; a new
app is appended. The app's OnInit hook runs once, with its capability
facade, after the entry is visible.

Parameters:
  - ctx: context.Context
  - candidate: app.BBSApp
  - origin: string (OriginBuiltin, OriginLocal, or OriginRemote)
  - sourceURL: string (remote origin URL, empty otherwise)

Returns:
  - *Entry: The registered entry
  - error: Contract validation failures
*/
func (registry *Registry) Register(ctx context.Context, candidate app.BBSApp, origin, sourceURL string) (*Entry, error) {
	if err := app.Validate(ctx, candidate); err != nil {
		return nil, err
	}

	meta := candidate.Meta()
	now := time.Now()
	entry := &Entry{
		App:           candidate,
		Origin:        origin,
		SourceURL:     sourceURL,
		RegisteredAt:  now,
		LastRefreshed: now,
	}

	registry.mutex.Lock()
	replaced := registry.apps[meta.ID] != nil
	if replaced {
		entry.RegisteredAt = registry.apps[meta.ID].RegisteredAt
	} else {
		registry.order = append(registry.order, meta.ID)
	}
	registry.apps[meta.ID] = entry
	if sourceURL != "" {
		registry.trackRemoteURLLocked(sourceURL)
	}
	registry.mutex.Unlock()

	registry.logger.Info("app registered",
		slog.String("app_id", meta.ID),
		slog.String("origin", origin),
		slog.Bool("replaced", replaced),
	)

	if initializer, ok := candidate.(app.Initializer); ok && registry.capabilities != nil {
		initializer.OnInit(registry.capabilities(meta.ID))
	}

	return entry, nil
}

/*
Unregister removes an app and, for remote apps, forgets its tracked URL.

Parameters:
  - id: string

Returns:
  - bool: True when an entry was removed
*/
func (registry *Registry) Unregister(id string) bool {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	entry, found := registry.apps[id]
	if !found {
		return false
	}

	delete(registry.apps, id)
	for i, orderedID := range registry.order {
		if orderedID == id {
			registry.order = append(registry.order[:i], registry.order[i+1:]...)
			break
		}
	}
	if entry.SourceURL != "" {
		registry.forgetRemoteURLLocked(entry.SourceURL)
	}

	registry.logger.Info("app unregistered", slog.String("app_id", id))
	return true
}

// Get returns the entry for an app id.
func (registry *Registry) Get(id string) (*Entry, bool) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	entry, found := registry.apps[id]
	return entry, found
}

// ListAll returns every entry in insertion order. The slice is a copy.
func (registry *Registry) ListAll() []*Entry {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	entries := make([]*Entry, 0, len(registry.order))
	for _, id := range registry.order {
		entries = append(entries, registry.apps[id])
	}
	return entries
}

// Nth returns the entry at the 1-based menu position, following insertion
// order. Used by the shell's numeric selection.
func (registry *Registry) Nth(position int) (*Entry, bool) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	if position < 1 || position > len(registry.order) {
		return nil, false
	}
	return registry.apps[registry.order[position-1]], true
}

// Count returns the number of registered apps.
func (registry *Registry) Count() int {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	return len(registry.order)
}

// ListRemoteURLs returns the tracked remote source URLs in install order.
func (registry *Registry) ListRemoteURLs() []string {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	return append([]string(nil), registry.remoteURLs...)
}

/*
RefreshRemoteAll re-resolves every tracked remote URL through the installer.

Description: Each URL runs the full install pipeline again; failures are
logged and skipped so one broken repository does not take down the rest.
The registry keeps the previous entry for a URL whose refresh fails.

Parameters:
  - ctx: context.Context
  - installer: RemoteInstaller

Returns:
  - int: Number of successfully refreshed apps
*/
func (registry *Registry) RefreshRemoteAll(ctx context.Context, installer RemoteInstaller) int {
	urls := registry.ListRemoteURLs()

	refreshed := 0
	for _, url := range urls {
		if _, err := installer.Install(ctx, url); err != nil {
			registry.logger.Warn("remote app refresh failed",
				slog.String("url", url),
				slog.Any("error", err),
			)
			continue
		}
		refreshed++
	}

	return refreshed
}

// Dump renders an operator-facing description of the registry for the
// DEBUG verb.
func (registry *Registry) Dump() string {
	entries := registry.ListAll()

	out := fmt.Sprintf("REGISTRY: %d app(s)\n", len(entries))
	for i, entry := range entries {
		meta := entry.Meta()
		out += fmt.Sprintf("%2d. %s v%s [%s]", i+1, meta.ID, meta.Version, entry.Origin)
		if entry.SourceURL != "" {
			out += " " + entry.SourceURL
		}
		out += "\n"
	}
	return out
}

// trackRemoteURLLocked records a remote URL once, preserving install order.
func (registry *Registry) trackRemoteURLLocked(url string) {
	for _, tracked := range registry.remoteURLs {
		if tracked == url {
			return
		}
	}
	registry.remoteURLs = append(registry.remoteURLs, url)
}

// forgetRemoteURLLocked drops a remote URL from tracking.
func (registry *Registry) forgetRemoteURLLocked(url string) {
	for i, tracked := range registry.remoteURLs {
		if tracked == url {
			registry.remoteURLs = append(registry.remoteURLs[:i], registry.remoteURLs[i+1:]...)
			return
		}
	}
}
