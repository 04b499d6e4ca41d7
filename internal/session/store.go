// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"time"
)

// # Session Data Access

// Repository defines the data access contract for conversational sessions.
type Repository interface {

	/*
		FindByKey returns the session with the given opaque key.

		Parameters:
		  - context: context.Context
		  - key: string

		Returns:
		  - *Session: Hydrated entity (deep copy, safe to mutate)
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByKey(context context.Context, key string) (*Session, error)

	/*
		Create persists a brand-new session to the storage.

		Parameters:
		  - context: context.Context
		  - session: *Session

		Returns:
		  - error: Persistence failures (apperr.Conflict on key collision)
	*/
	Create(context context.Context, session *Session) error

	/*
		Update applies a partial mutation to the stored session and returns
		the resulting state.

		Parameters:
		  - context: context.Context
		  - key: string
		  - update: Update

		Returns:
		  - *Session: State after the mutation
		  - error: apperr.NotFound or persistence failures
	*/
	Update(context context.Context, key string, update Update) (*Session, error)

	/*
		Touch bumps the session's last-activity timestamp.

		Parameters:
		  - context: context.Context
		  - key: string

		Returns:
		  - error: apperr.NotFound or persistence failures
	*/
	Touch(context context.Context, key string) error

	/*
		Delete removes the session row entirely.

		Parameters:
		  - context: context.Context
		  - key: string

		Returns:
		  - error: Persistence failures (absent rows are not an error)
	*/
	Delete(context context.Context, key string) error

	/*
		DeleteIdleBefore physically removes sessions whose last activity
		predates the cutoff.

		Parameters:
		  - context: context.Context
		  - cutoff: time.Time

		Returns:
		  - int64: Number of sessions removed
		  - error: Persistence failures
	*/
	DeleteIdleBefore(context context.Context, cutoff time.Time) (int64, error)

	/*
		Count returns the number of live sessions, used for diagnostics.

		Parameters:
		  - context: context.Context

		Returns:
		  - int64: Live session count
		  - error: Retrieval failures
	*/
	Count(context context.Context) (int64, error)
}
