// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taibuivan/termboard/internal/platform/apperr"
	"github.com/taibuivan/termboard/internal/platform/constants"
)

// # Remote Fetching

// ManifestFile is the well-known app manifest name inside a source tree.
const ManifestFile = "bbs-app.json"

// defaultMainFile is assumed when the manifest is absent or names no main.
const defaultMainFile = "index.js"

// fetchTimeout bounds one remote HTTP round trip.
const fetchTimeout = 10 * time.Second

// Manifest is the optional per-app metadata file. The local loader
// additionally requires the "bbs-app" keyword to tell app directories
// apart from unrelated ones.
type Manifest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description"`
	Author       string   `json:"author"`
	Main         string   `json:"main"`
	Keywords     []string `json:"keywords"`
	Dependencies []string `json:"dependencies"`
}

// HasKeyword reports whether the manifest carries the given keyword.
func (manifest *Manifest) HasKeyword(keyword string) bool {
	for _, candidate := range manifest.Keywords {
		if candidate == keyword {
			return true
		}
	}
	return false
}

// Fetcher retrieves manifest and source files from a remote source tree.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher with a bounded-timeout HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

/*
FetchManifest retrieves and decodes the app manifest.

Description: Manifest failures are recoverable by design — the caller
falls back to the default main file — so this returns nil rather than an
error when the manifest is absent or unreadable.

Parameters:
  - ctx: context.Context
  - source: Source

Returns:
  - *Manifest: Decoded manifest, or nil when unavailable
*/
func (fetcher *Fetcher) FetchManifest(ctx context.Context, source Source) *Manifest {
	body, err := fetcher.fetch(ctx, source.RawFileURL(ManifestFile))
	if err != nil {
		return nil
	}

	var manifest Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil
	}

	return &manifest
}

/*
FetchSource retrieves the raw text of the app's main source file.

Parameters:
  - ctx: context.Context
  - source: Source
  - mainFile: string (empty selects the default main file)

Returns:
  - string: Source text
  - error: apperr.RemoteFetchFailed on HTTP failure, apperr.SandboxRejected
    when the file exceeds the size bound
*/
func (fetcher *Fetcher) FetchSource(ctx context.Context, source Source, mainFile string) (string, error) {
	if mainFile == "" {
		mainFile = defaultMainFile
	}

	body, err := fetcher.fetch(ctx, source.RawFileURL(mainFile))
	if err != nil {
		return "", err
	}
	if len(body) > constants.SandboxSourceMaxBytes {
		return "", apperr.SandboxRejected(fmt.Sprintf("source file exceeds %d bytes", constants.SandboxSourceMaxBytes))
	}

	return string(body), nil
}

// fetch performs one bounded GET and returns the body.
func (fetcher *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.RemoteFetchFailed("Malformed fetch URL", err)
	}

	response, err := fetcher.client.Do(request)
	if err != nil {
		return nil, apperr.RemoteFetchFailed("Remote repository unreachable", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return nil, apperr.RemoteFetchFailed(
			fmt.Sprintf("Remote fetch failed with status %d", response.StatusCode), nil)
	}

	// Read one byte past the cap so oversize bodies are detectable.
	body, err := io.ReadAll(io.LimitReader(response.Body, constants.SandboxSourceMaxBytes+1))
	if err != nil {
		return nil, apperr.RemoteFetchFailed("Remote fetch interrupted", err)
	}

	return body, nil
}
