// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/termboard/internal/bbs/capability"
	"github.com/taibuivan/termboard/internal/bbs/registry"
	"github.com/taibuivan/termboard/internal/platform/constants"
)

// # The Remote Loader
//
// Install pipeline: parse URL -> resolve artifacts (cache or fetch) ->
// static analysis -> fresh isolate -> execute -> extract contract ->
// guard -> register. Any stage failure aborts the install and leaves the
// registry untouched.

// cachedArtifacts is the fetched state of one remote source, kept for
// RemoteInstallCacheTTL so repeated installs skip the network.
type cachedArtifacts struct {
	Manifest *Manifest `json:"manifest"`
	Source   string    `json:"source"`
}

type localCacheEntry struct {
	artifacts cachedArtifacts
	expiresAt time.Time
}

// Loader installs remote apps into the registry through the sandbox
// pipeline. It satisfies registry.RemoteInstaller.
type Loader struct {
	fetcher      *Fetcher
	registry     *registry.Registry
	capabilities *capability.Factory
	cache        *redis.Client
	logger       *slog.Logger
	allowedHosts []string

	mutex    sync.Mutex
	local    map[string]localCacheEntry
	isolates map[string]*Isolate
}

// NewLoader creates a remote loader. The Redis client is optional; when
// nil the loader falls back to its in-process artifact cache.
func NewLoader(
	fetcher *Fetcher,
	reg *registry.Registry,
	capabilities *capability.Factory,
	cache *redis.Client,
	allowedHosts []string,
	logger *slog.Logger,
) *Loader {
	return &Loader{
		fetcher:      fetcher,
		registry:     reg,
		capabilities: capabilities,
		cache:        cache,
		logger:       logger,
		allowedHosts: allowedHosts,
		local:        map[string]localCacheEntry{},
		isolates:     map[string]*Isolate{},
	}
}

/*
Install resolves a remote source URL into a registered, guarded app.

Description: Artifacts fetched within the last hour are served from
cache; the security pipeline (analysis, isolation, contract extraction)
still runs in full on every install. A failed install leaves any prior
registration for the same app untouched.

Parameters:
  - ctx: context.Context
  - url: string (github.com tree or raw.githubusercontent.com form)

Returns:
  - *registry.Entry: The registered entry
  - error: Pipeline-stage failure (validation, fetch, sandbox, contract)
*/
func (loader *Loader) Install(ctx context.Context, url string) (*registry.Entry, error) {
	return loader.install(ctx, url, false)
}

// Reinstall runs the pipeline bypassing the artifact cache. Used by
// refresh so a new upstream revision is always picked up.
func (loader *Loader) Reinstall(ctx context.Context, url string) (*registry.Entry, error) {
	return loader.install(ctx, url, true)
}

func (loader *Loader) install(ctx context.Context, url string, bypassCache bool) (*registry.Entry, error) {
	source, err := ParseSourceURL(url, loader.allowedHosts)
	if err != nil {
		return nil, err
	}

	artifacts, fromCache := cachedArtifacts{}, false
	if !bypassCache {
		artifacts, fromCache = loader.cachedFetch(ctx, source.URL)
	}
	if !fromCache {
		artifacts.Manifest = loader.fetcher.FetchManifest(ctx, source)

		mainFile := ""
		if artifacts.Manifest != nil {
			mainFile = artifacts.Manifest.Main
		}
		artifacts.Source, err = loader.fetcher.FetchSource(ctx, source, mainFile)
		if err != nil {
			return nil, err
		}

		loader.storeFetch(ctx, source.URL, artifacts)
	}

	if err := Analyze(artifacts.Source); err != nil {
		return nil, err
	}

	appID := source.AppID()

	isolate, err := NewIsolate(appID, loader.logger)
	if err != nil {
		return nil, err
	}
	if err := isolate.Run(artifacts.Source); err != nil {
		isolate.Dispose()
		return nil, err
	}

	extracted, err := Extract(isolate, source, artifacts.Manifest)
	if err != nil {
		isolate.Dispose()
		return nil, err
	}

	guarded := Guard(extracted, loader.capabilities.LimiterFor(appID), loader.logger)

	entry, err := loader.registry.Register(ctx, guarded, registry.OriginRemote, source.URL)
	if err != nil {
		isolate.Dispose()
		return nil, err
	}

	loader.swapIsolate(appID, isolate)

	loader.logger.Info("remote app installed",
		slog.String("app_id", appID),
		slog.String("url", source.URL),
		slog.Bool("from_cache", fromCache),
	)

	return entry, nil
}

/*
Uninstall removes a loaded app and releases its sandbox resources.

Parameters:
  - appID: string

Returns:
  - bool: True when an app was removed
*/
func (loader *Loader) Uninstall(appID string) bool {
	if !loader.registry.Unregister(appID) {
		return false
	}

	loader.capabilities.Forget(appID)
	loader.swapIsolate(appID, nil)
	return true
}

// RefreshAll re-resolves every tracked remote URL, bypassing the
// artifact cache, and returns the number refreshed.
func (loader *Loader) RefreshAll(ctx context.Context) int {
	return loader.registry.RefreshRemoteAll(ctx, installerFunc(loader.Reinstall))
}

// installerFunc adapts a function to registry.RemoteInstaller.
type installerFunc func(ctx context.Context, url string) (*registry.Entry, error)

func (fn installerFunc) Install(ctx context.Context, url string) (*registry.Entry, error) {
	return fn(ctx, url)
}

// swapIsolate retires the previous isolate for an app, if any, and
// records the replacement. A nil replacement just disposes.
func (loader *Loader) swapIsolate(appID string, replacement *Isolate) {
	loader.mutex.Lock()
	previous := loader.isolates[appID]
	if replacement == nil {
		delete(loader.isolates, appID)
	} else {
		loader.isolates[appID] = replacement
	}
	loader.mutex.Unlock()

	if previous != nil {
		previous.Dispose()
	}
}

// # Artifact Cache

// cachedFetch looks the canonical URL up in Redis, then in the local
// fallback map. Cache errors degrade to a miss.
func (loader *Loader) cachedFetch(ctx context.Context, canonicalURL string) (cachedArtifacts, bool) {
	if loader.cache != nil {
		raw, err := loader.cache.Get(ctx, constants.RedisPrefixRemoteSource+canonicalURL).Bytes()
		if err == nil {
			var artifacts cachedArtifacts
			if json.Unmarshal(raw, &artifacts) == nil && artifacts.Source != "" {
				return artifacts, true
			}
		} else if err != redis.Nil {
			loader.logger.Warn("remote source cache read failed", slog.Any("error", err))
		}
	}

	loader.mutex.Lock()
	defer loader.mutex.Unlock()

	entry, found := loader.local[canonicalURL]
	if !found || time.Now().After(entry.expiresAt) {
		delete(loader.local, canonicalURL)
		return cachedArtifacts{}, false
	}
	return entry.artifacts, true
}

// storeFetch records fetched artifacts under the install TTL.
func (loader *Loader) storeFetch(ctx context.Context, canonicalURL string, artifacts cachedArtifacts) {
	if loader.cache != nil {
		if raw, err := json.Marshal(artifacts); err == nil {
			if err := loader.cache.Set(ctx, constants.RedisPrefixRemoteSource+canonicalURL, raw, constants.RemoteInstallCacheTTL).Err(); err != nil {
				loader.logger.Warn("remote source cache write failed", slog.Any("error", err))
			}
		}
	}

	loader.mutex.Lock()
	loader.local[canonicalURL] = localCacheEntry{
		artifacts: artifacts,
		expiresAt: time.Now().Add(constants.RemoteInstallCacheTTL),
	}
	loader.mutex.Unlock()
}
