// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keyvalue

import (
	"context"
	"time"
)

// # Key/Value Data Access

// Repository defines the data access contract for scoped JSON entries.
type Repository interface {

	/*
		Get returns the value stored under the scope.

		Parameters:
		  - context: context.Context
		  - scope: Scope

		Returns:
		  - any: Decoded JSON value (nil when absent)
		  - bool: True when the entry exists
		  - error: Retrieval failures
	*/
	Get(context context.Context, scope Scope) (any, bool, error)

	/*
		Set upserts the value under the scope.

		Parameters:
		  - context: context.Context
		  - scope: Scope
		  - value: any (JSON-serializable)
		  - expiresAt: *time.Time (nil for no expiry; expiry is best-effort,
		    expired entries must never be returned)

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, scope Scope, value any, expiresAt *time.Time) error

	/*
		Delete removes the entry under the scope.

		Parameters:
		  - context: context.Context
		  - scope: Scope

		Returns:
		  - bool: True when an entry was actually removed
		  - error: Persistence failures
	*/
	Delete(context context.Context, scope Scope) (bool, error)

	/*
		Keys lists the keys stored by one app, optionally narrowed to a user
		and namespace partition.

		Parameters:
		  - context: context.Context
		  - appID: string
		  - userID: string (empty for the shared partition)
		  - namespace: string (empty for the default namespace)

		Returns:
		  - []string: Stored keys in lexical order
		  - error: Retrieval failures
	*/
	Keys(context context.Context, appID, userID, namespace string) ([]string, error)

	/*
		DeleteByApp removes every entry an app has ever written, across all
		user and namespace partitions. Used when an app is uninstalled.

		Parameters:
		  - context: context.Context
		  - appID: string

		Returns:
		  - int64: Number of entries removed
		  - error: Persistence failures
	*/
	DeleteByApp(context context.Context, appID string) (int64, error)
}
