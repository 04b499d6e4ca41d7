// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package keyvalue implements the durable JSON key/value store that backs
app persistence on the board.

Every entry is scoped to the app that wrote it; optional user and namespace
qualifiers further partition the keyspace so that per-user state and
plugin-style namespaces never collide.

# Scoping

The tuple (appID, key, userID, namespace) uniquely identifies an entry.
Absent qualifiers are normalized to the empty string, so "no user" and
"no namespace" form their own well-defined partitions.
*/
package keyvalue

import "time"

// # Domain Entities

// Scope identifies one entry in the store.
type Scope struct {
	AppID     string
	Key       string
	UserID    string
	Namespace string
}

// Entry is a stored JSON value together with its scope and timestamps.
// ExpiresAt is optional; an expired entry behaves as absent.
type Entry struct {
	Scope     Scope      `json:"scope"`
	Value     any        `json:"value"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Expired reports whether the entry's expiry has passed.
func (entry *Entry) Expired(now time.Time) bool {
	return entry.ExpiresAt != nil && entry.ExpiresAt.Before(now)
}

// # Field Identifiers

const (
	FieldAppID = "appId"
	FieldKey   = "key"
)
