// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session implements the conversational state layer of the BBS.

A Session is the unit of conversational state: it remembers where a caller
is (current area), what they typed (bounded command history), who they are
(optional user binding), and the per-app scratch data bag.

# Architecture

  - Service: The only writer of Session records; enforces the history cap
    and the per-app data merge semantics.
  - Store: Abstracted persistence interface with Postgres and in-memory
    implementations.
  - Locking: A keyed mutex serializes commands on the same session key
    while distinct sessions proceed in parallel.
*/
package session

import (
	"time"

	"github.com/taibuivan/termboard/internal/platform/constants"
)

// # Domain Entities

// Session represents a persistent conversational session keyed by an opaque token.
type Session struct {
	Key            string                    `json:"sessionKey"`
	UserID         string                    `json:"userId,omitempty"`
	Username       string                    `json:"username,omitempty"`
	Role           string                    `json:"role,omitempty"`
	CurrentArea    string                    `json:"currentArea"`
	CommandHistory []string                  `json:"commandHistory"`
	Data           map[string]map[string]any `json:"data,omitempty"`
	ClientAddr     string                    `json:"clientAddr,omitempty"`
	UserAgent      string                    `json:"userAgent,omitempty"`
	CreatedAt      time.Time                 `json:"createdAt"`
	LastActivity   time.Time                 `json:"lastActivity"`
}

// IsAuthenticated reports whether a user is bound to this session.
func (s *Session) IsAuthenticated() bool {
	return s.UserID != ""
}

// Clone returns a deep copy of the session. Stores hand out clones so that
// callers can never mutate persisted state through shared maps or slices.
func (s *Session) Clone() *Session {
	copied := *s
	copied.CommandHistory = append([]string(nil), s.CommandHistory...)
	if s.Data != nil {
		copied.Data = make(map[string]map[string]any, len(s.Data))
		for appID, bag := range s.Data {
			inner := make(map[string]any, len(bag))
			for key, value := range bag {
				inner[key] = value
			}
			copied.Data[appID] = inner
		}
	}
	return &copied
}

// NewSession constructs a fresh session in the main area.
func NewSession(key, clientAddr, userAgent string) *Session {
	now := time.Now()
	return &Session{
		Key:            key,
		CurrentArea:    constants.AreaMain,
		CommandHistory: []string{},
		Data:           map[string]map[string]any{},
		ClientAddr:     clientAddr,
		UserAgent:      userAgent,
		CreatedAt:      now,
		LastActivity:   now,
	}
}

// # Partial Updates

// Update describes a partial mutation of a session.
//
// Pointer fields are applied only when non-nil; MergeData is merged per app
// id field-by-field rather than replacing the whole bag; ClearUser removes
// the user binding regardless of the pointer fields.
type Update struct {
	CurrentArea    *string
	UserID         *string
	Username       *string
	Role           *string
	MergeData      map[string]map[string]any
	ReplaceHistory *[]string
	ClearUser      bool
}

// Apply folds the update into the given session in place and stamps
// LastActivity. It is shared by every store implementation so the merge
// semantics cannot drift between backends.
func (u Update) Apply(target *Session) {
	if u.ClearUser {
		target.UserID = ""
		target.Username = ""
		target.Role = ""
	}
	if u.UserID != nil {
		target.UserID = *u.UserID
	}
	if u.Username != nil {
		target.Username = *u.Username
	}
	if u.Role != nil {
		target.Role = *u.Role
	}
	if u.CurrentArea != nil {
		target.CurrentArea = *u.CurrentArea
	}
	if u.ReplaceHistory != nil {
		target.CommandHistory = append([]string(nil), (*u.ReplaceHistory)...)
	}
	if u.MergeData != nil {
		if target.Data == nil {
			target.Data = map[string]map[string]any{}
		}
		for appID, bag := range u.MergeData {
			existing, found := target.Data[appID]
			if !found {
				existing = map[string]any{}
				target.Data[appID] = existing
			}
			for key, value := range bag {
				existing[key] = value
			}
		}
	}
	target.LastActivity = time.Now()
}

// # Field Identifiers

// Global field names for validation and identity mapping in the session domain.
const (
	FieldSessionID   = "sessionId"
	FieldCommand     = "command"
	FieldCurrentArea = "currentArea"
)
