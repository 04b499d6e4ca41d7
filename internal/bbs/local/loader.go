// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package local loads board apps that ship with the server installation.

Two kinds exist: builtin apps compiled into the binary, and script apps
dropped into the modules directory. Script apps run through the same
sandbox pipeline as remote ones — the only difference is that their
source comes from disk instead of a repository.
*/
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/taibuivan/termboard/internal/bbs/app"
	"github.com/taibuivan/termboard/internal/bbs/capability"
	"github.com/taibuivan/termboard/internal/bbs/registry"
	"github.com/taibuivan/termboard/internal/bbs/sandbox"
	"github.com/taibuivan/termboard/pkg/slug"
)

// appKeyword marks a manifest as a board app; directories without it are
// skipped silently.
const appKeyword = "bbs-app"

// defaultMainFile is assumed when the manifest names no main script.
const defaultMainFile = "index.js"

// Loader registers builtin and modules-directory apps at boot.
type Loader struct {
	registry     *registry.Registry
	capabilities *capability.Factory
	modulesPath  string
	logger       *slog.Logger
}

// NewLoader wires the local loader.
func NewLoader(reg *registry.Registry, capabilities *capability.Factory, modulesPath string, logger *slog.Logger) *Loader {
	return &Loader{
		registry:     reg,
		capabilities: capabilities,
		modulesPath:  modulesPath,
		logger:       logger,
	}
}

/*
RegisterBuiltins admits compiled-in apps under the builtin origin.

Description: Builtins are guarded like every other app so quota and
panic containment hold uniformly. A failing builtin is logged and
skipped; it never prevents the others from registering.

Parameters:
  - ctx: context.Context
  - builtins: ...app.BBSApp

Returns:
  - int: Number registered
*/
func (loader *Loader) RegisterBuiltins(ctx context.Context, builtins ...app.BBSApp) int {
	registered := 0
	for _, builtin := range builtins {
		guarded := sandbox.Guard(builtin, loader.capabilities.LimiterFor(builtin.Meta().ID), loader.logger)
		if _, err := loader.registry.Register(ctx, guarded, registry.OriginBuiltin, ""); err != nil {
			loader.logger.Warn("builtin app rejected",
				slog.String("app_id", builtin.Meta().ID),
				slog.Any("error", err),
			)
			continue
		}
		registered++
	}
	return registered
}

/*
LoadAll scans the modules directory and registers every app package it
finds.

Description: A package is a subdirectory containing a bbs-app.json
manifest with the "bbs-app" keyword. Each package runs the full sandbox
pipeline (analysis, isolation, extraction, guard). A failing package is
logged and skipped.

Parameters:
  - ctx: context.Context

Returns:
  - int: Number of registered apps
*/
func (loader *Loader) LoadAll(ctx context.Context) int {
	entries, err := os.ReadDir(loader.modulesPath)
	if err != nil {
		loader.logger.Info("modules directory not readable, skipping local apps",
			slog.String("path", loader.modulesPath),
			slog.Any("error", err),
		)
		return 0
	}

	loaded := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		admitted, err := loader.loadPackage(ctx, entry.Name())
		if err != nil {
			loader.logger.Warn("local app rejected",
				slog.String("dir", entry.Name()),
				slog.Any("error", err),
			)
			continue
		}
		if admitted {
			loaded++
		}
	}

	return loaded
}

// loadPackage admits one modules-directory package. It returns false
// with a nil error for directories that are not app packages at all.
func (loader *Loader) loadPackage(ctx context.Context, dir string) (bool, error) {
	manifest, err := loader.readManifest(dir)
	if err != nil {
		return false, err
	}
	if manifest == nil || !manifest.HasKeyword(appKeyword) {
		return false, nil
	}

	mainFile := manifest.Main
	if mainFile == "" {
		mainFile = defaultMainFile
	}
	source, err := os.ReadFile(filepath.Join(loader.modulesPath, dir, filepath.Clean(mainFile)))
	if err != nil {
		return false, fmt.Errorf("main script unreadable: %w", err)
	}

	if err := sandbox.Analyze(string(source)); err != nil {
		return false, err
	}

	appID := localAppID(dir)

	isolate, err := sandbox.NewIsolate(appID, loader.logger)
	if err != nil {
		return false, err
	}
	if err := isolate.Run(string(source)); err != nil {
		isolate.Dispose()
		return false, err
	}

	extracted, err := sandbox.ExtractWithMeta(isolate, app.Meta{
		ID:      appID,
		Name:    dir,
		Version: "0.0.0",
		Source:  filepath.Join(loader.modulesPath, dir),
	}, manifest)
	if err != nil {
		isolate.Dispose()
		return false, err
	}

	guarded := sandbox.Guard(extracted, loader.capabilities.LimiterFor(appID), loader.logger)
	if _, err := loader.registry.Register(ctx, guarded, registry.OriginLocal, ""); err != nil {
		isolate.Dispose()
		return false, err
	}

	loader.logger.Info("local app loaded",
		slog.String("app_id", appID),
		slog.String("dir", dir),
	)
	return true, nil
}

// readManifest decodes the package manifest, or returns nil when the
// directory carries none.
func (loader *Loader) readManifest(dir string) (*sandbox.Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(loader.modulesPath, dir, sandbox.ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("manifest unreadable: %w", err)
	}

	var manifest sandbox.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("manifest malformed: %w", err)
	}

	return &manifest, nil
}

// localAppID derives the registry identifier from the package directory.
func localAppID(dir string) string {
	return "local_" + strings.ReplaceAll(slug.From(dir), "-", "_")
}
