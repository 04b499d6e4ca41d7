// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package app

import (
	"context"
	"time"
)

// # Capability Surfaces

// Storage is the scoped key/value surface an app sees. Every call is
// rate-limited and prefixed by the host; a rate-limit breach makes reads
// report absent and writes report refusal rather than erroring.
type Storage interface {

	// Get returns the value under key, or ok=false when absent or refused.
	Get(ctx context.Context, key string) (value any, ok bool, err error)

	// Set upserts the value under key. Code-like string values are rejected.
	Set(ctx context.Context, key string, value any) error

	// SetWithExpiry upserts the value under key with a best-effort expiry.
	// An expired entry behaves as absent on reads.
	SetWithExpiry(ctx context.Context, key string, value any, expiresAt time.Time) error

	// Delete removes the value under key; ok reports whether it existed.
	Delete(ctx context.Context, key string) (ok bool, err error)

	// Keys lists the keys visible in this storage scope.
	Keys(ctx context.Context) ([]string, error)
}

// Utils exposes the safe, pure helper functions injected into apps.
type Utils interface {

	// FormatDate renders a timestamp in the board's standard display format.
	FormatDate(t time.Time) string

	// BoxedTitle renders a title inside an ASCII box.
	BoxedTitle(title string) string

	// Separator renders a horizontal rule of the given character and width.
	Separator(char string, width int) string
}

// Capabilities is the complete per-app facade handed to an app at
// registration and during command handling.
type Capabilities interface {

	// AppID returns the id of the app this facade is scoped to.
	AppID() string

	// Storage returns the app-scoped shared storage.
	Storage() Storage

	// UserStorage returns storage additionally scoped to one user.
	UserStorage(userID string) Storage

	// NamespacedStorage returns storage under a named sub-namespace.
	NamespacedStorage(namespace string) Storage

	// CurrentUser resolves the viewed session's bound user to its public
	// view. Anonymous sessions yield nil without error.
	CurrentUser(ctx context.Context, view SessionView) (*UserView, error)

	// Utils returns the pure helper surface.
	Utils() Utils
}
