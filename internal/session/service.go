// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/taibuivan/termboard/internal/platform/apperr"
	"github.com/taibuivan/termboard/internal/platform/constants"
	"github.com/taibuivan/termboard/internal/platform/sec"
	"github.com/taibuivan/termboard/internal/platform/validate"
)

// sessionKeyBytes is the entropy of a generated session key (48 hex chars).
const sessionKeyBytes = 24

// # Session Service

// Service owns the lifecycle of conversational sessions: creation, partial
// updates, history recording with the retention cap, and idle reaping.
type Service struct {
	repository Repository
	locks      *keyedLock
	logger     *slog.Logger
}

// NewService wires the session service with its repository.
func NewService(repository Repository, logger *slog.Logger) *Service {
	return &Service{
		repository: repository,
		locks:      newKeyedLock(),
		logger:     logger,
	}
}

/*
Resolve returns the session for the provided key, creating a fresh one when
the key is empty or unknown.

Description: An unknown or expired key is not an error; it is adopted
verbatim as the key of a brand-new anonymous session, which is how
terminals recover after a reap without losing their stored key. An empty
key mints a collision-resistant random one. The returned flag reports
whether a new session was created.

Parameters:
  - context: context.Context
  - providedKey: string (may be empty)
  - clientAddr: string
  - userAgent: string

Returns:
  - *Session: Existing or freshly created session
  - bool: True when a new session was created
  - error: Key generation or persistence failures
*/
func (service *Service) Resolve(context context.Context, providedKey, clientAddr, userAgent string) (*Session, bool, error) {
	key := providedKey
	if key != "" {
		existing, err := service.repository.FindByKey(context, key)
		if err == nil {
			if touchErr := service.repository.Touch(context, key); touchErr != nil {
				return nil, false, touchErr
			}
			return existing, false, nil
		}
		if ae := apperr.As(err); ae == nil || ae.HTTPStatus != http.StatusNotFound {
			return nil, false, err
		}
		// Unknown key: fall through and adopt it for a fresh session.
	} else {
		generated, err := sec.GenerateSecureToken(sessionKeyBytes)
		if err != nil {
			return nil, false, err
		}
		key = generated
	}

	fresh := NewSession(key, clientAddr, userAgent)
	if err := service.repository.Create(context, fresh); err != nil {
		return nil, false, err
	}

	service.logger.Info("session created",
		slog.String("session_key", key),
		slog.String("client_addr", clientAddr),
	)

	return fresh, true, nil
}

/*
Get returns the session for the given key and bumps its activity timestamp.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - *Session: Hydrated session
  - error: apperr.NotFound or persistence failures
*/
func (service *Service) Get(context context.Context, key string) (*Session, error) {
	session, err := service.repository.FindByKey(context, key)
	if err != nil {
		return nil, err
	}
	if err := service.repository.Touch(context, key); err != nil {
		return nil, err
	}
	return session, nil
}

/*
RecordCommand appends a command to the session history, enforcing the
retention cap by evicting the oldest entries.

Parameters:
  - context: context.Context
  - key: string
  - command: string (already normalized by the caller)

Returns:
  - *Session: State after the append
  - error: apperr.NotFound or persistence failures
*/
func (service *Service) RecordCommand(context context.Context, key, command string) (*Session, error) {
	session, err := service.repository.FindByKey(context, key)
	if err != nil {
		return nil, err
	}

	history := append(session.CommandHistory, command)
	if overflow := len(history) - constants.CommandHistoryCap; overflow > 0 {
		history = history[overflow:]
	}

	return service.repository.Update(context, key, Update{ReplaceHistory: &history})
}

/*
SetCurrentArea moves the session to a different interaction area.

Parameters:
  - context: context.Context
  - key: string
  - area: string (app id, or the main menu area)

Returns:
  - *Session: State after the move
  - error: Validation, apperr.NotFound or persistence failures
*/
func (service *Service) SetCurrentArea(context context.Context, key, area string) (*Session, error) {
	area = strings.TrimSpace(area)
	if area == "" {
		return nil, validate.RequiredError(FieldCurrentArea, "This field is required")
	}
	return service.repository.Update(context, key, Update{CurrentArea: &area})
}

/*
BindUser attaches an authenticated identity to the session.

Parameters:
  - context: context.Context
  - key: string
  - userID: string
  - username: string
  - role: string

Returns:
  - *Session: State after the bind
  - error: apperr.NotFound or persistence failures
*/
func (service *Service) BindUser(context context.Context, key, userID, username, role string) (*Session, error) {
	return service.repository.Update(context, key, Update{
		UserID:   &userID,
		Username: &username,
		Role:     &role,
	})
}

/*
UnbindUser detaches the identity from the session while preserving the
conversational state (area, history, app data survive a logout).

Parameters:
  - context: context.Context
  - key: string

Returns:
  - *Session: State after the unbind
  - error: apperr.NotFound or persistence failures
*/
func (service *Service) UnbindUser(context context.Context, key string) (*Session, error) {
	return service.repository.Update(context, key, Update{ClearUser: true})
}

/*
MergeAppData folds a partial data bag for one app into the session.

Description: Merging is field-by-field within the app's bag; keys absent
from the incoming bag keep their stored values. Apps can therefore persist
cursor-style state without re-sending everything.

Parameters:
  - context: context.Context
  - key: string
  - appID: string
  - bag: map[string]any

Returns:
  - *Session: State after the merge
  - error: apperr.NotFound or persistence failures
*/
func (service *Service) MergeAppData(context context.Context, key, appID string, bag map[string]any) (*Session, error) {
	if len(bag) == 0 {
		return service.repository.FindByKey(context, key)
	}
	return service.repository.Update(context, key, Update{
		MergeData: map[string]map[string]any{appID: bag},
	})
}

/*
Delete removes the session entirely. Used by full terminal resets; a normal
logoff keeps the row and only unbinds the user.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - error: Persistence failures
*/
func (service *Service) Delete(context context.Context, key string) error {
	return service.repository.Delete(context, key)
}

/*
ReapIdle removes sessions idle for longer than the given number of days.

Parameters:
  - context: context.Context
  - idleDays: int

Returns:
  - int64: Number of sessions removed
  - error: Persistence failures
*/
func (service *Service) ReapIdle(context context.Context, idleDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -idleDays)
	removed, err := service.repository.DeleteIdleBefore(context, cutoff)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		service.logger.Info("idle sessions reaped",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff),
		)
	}

	return removed, nil
}

/*
Diagnostics returns an operator-facing snapshot of the session plus store
health, backing the DEBUG verb.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - map[string]any: Diagnostic payload
  - error: apperr.NotFound or persistence failures
*/
func (service *Service) Diagnostics(context context.Context, key string) (map[string]any, error) {
	session, err := service.repository.FindByKey(context, key)
	if err != nil {
		return nil, err
	}

	total, err := service.repository.Count(context)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"sessionKey":    session.Key,
		"currentArea":   session.CurrentArea,
		"historyLength": len(session.CommandHistory),
		"authenticated": session.IsAuthenticated(),
		"username":      session.Username,
		"createdAt":     session.CreatedAt,
		"lastActivity":  session.LastActivity,
		"liveSessions":  total,
	}, nil
}

// # Serialization

// WithLock runs fn while holding the exclusive per-session lock for key.
// Commands on the same session execute one at a time; distinct sessions
// proceed in parallel.
func (service *Service) WithLock(key string, fn func() error) error {
	service.locks.acquire(key)
	defer service.locks.release(key)
	return fn()
}

// StartReaper launches the periodic idle-session reaper. It stops when the
// context is canceled.
func (service *Service) StartReaper(context context.Context, interval time.Duration, idleDays int) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-context.Done():
				return
			case <-ticker.C:
				if _, err := service.ReapIdle(context, idleDays); err != nil {
					service.logger.Error("session reap failed", slog.Any("error", err))
				}
			}
		}
	}()
}
