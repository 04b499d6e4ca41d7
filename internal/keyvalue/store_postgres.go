// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keyvalue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/termboard/internal/platform/database/schema"
)

// # Key/Value Repository (PostgreSQL)

// PostgresKVRepository implements the Repository interface using pgx.
//
// Values are stored in a JSONB column; scope qualifiers are plain text
// columns where the empty string denotes "no user" / "no namespace", which
// keeps the compound unique index simple and NULL-free.
type PostgresKVRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL implementation of the Repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresKVRepository {
	return &PostgresKVRepository{pool: pool}
}

/*
Get retrieves and decodes the JSON value stored under the scope.

Parameters:
  - context: context.Context
  - scope: Scope

Returns:
  - any: Decoded JSON value
  - bool: True when the entry exists
  - error: Database or decode failures
*/
func (repository *PostgresKVRepository) Get(context context.Context, scope Scope) (any, bool, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 AND %s = $2 AND %s = $3 AND %s = $4
		  AND (%s IS NULL OR %s > now())`,
		schema.BBSKeyValue.Value,
		schema.BBSKeyValue.Table,
		schema.BBSKeyValue.AppID, schema.BBSKeyValue.Key,
		schema.BBSKeyValue.UserID, schema.BBSKeyValue.Namespace,
		schema.BBSKeyValue.ExpiresAt, schema.BBSKeyValue.ExpiresAt,
	)

	var raw []byte
	err := repository.pool.QueryRow(context, query,
		scope.AppID, scope.Key, scope.UserID, scope.Namespace,
	).Scan(&raw)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("postgres_kv_repo_get_failed: %w", err)
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("postgres_kv_repo_decode_failed: %w", err)
	}

	return value, true, nil
}

/*
Set upserts the JSON value under the scope.

Description: Relies on the compound unique index over
(appid, key, userid, namespace) for conflict resolution. A nil expiresAt
stores a non-expiring entry.

Parameters:
  - context: context.Context
  - scope: Scope
  - value: any
  - expiresAt: *time.Time

Returns:
  - error: Encode or database failures
*/
func (repository *PostgresKVRepository) Set(context context.Context, scope Scope, value any, expiresAt *time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (%s, %s, %s, %s)
		DO UPDATE SET %s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = EXCLUDED.%s`,
		schema.BBSKeyValue.Table,
		strings.Join(schema.BBSKeyValue.Columns(), ", "),
		schema.BBSKeyValue.AppID, schema.BBSKeyValue.Key,
		schema.BBSKeyValue.UserID, schema.BBSKeyValue.Namespace,
		schema.BBSKeyValue.Value, schema.BBSKeyValue.Value,
		schema.BBSKeyValue.ExpiresAt, schema.BBSKeyValue.ExpiresAt,
		schema.BBSKeyValue.UpdatedAt, schema.BBSKeyValue.UpdatedAt,
	)

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("postgres_kv_repo_encode_failed: %w", err)
	}

	_, err = repository.pool.Exec(context, query,
		scope.AppID, scope.Key, scope.UserID, scope.Namespace, raw, expiresAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("postgres_kv_repo_set_failed: %w", err)
	}

	return nil
}

/*
Delete removes the entry under the scope.

Parameters:
  - context: context.Context
  - scope: Scope

Returns:
  - bool: True when an entry was removed
  - error: Database failures
*/
func (repository *PostgresKVRepository) Delete(context context.Context, scope Scope) (bool, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE %s = $1 AND %s = $2 AND %s = $3 AND %s = $4`,
		schema.BBSKeyValue.Table,
		schema.BBSKeyValue.AppID, schema.BBSKeyValue.Key,
		schema.BBSKeyValue.UserID, schema.BBSKeyValue.Namespace,
	)

	tag, err := repository.pool.Exec(context, query,
		scope.AppID, scope.Key, scope.UserID, scope.Namespace,
	)
	if err != nil {
		return false, fmt.Errorf("postgres_kv_repo_delete_failed: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

/*
Keys lists the keys in one app/user/namespace partition.

Parameters:
  - context: context.Context
  - appID: string
  - userID: string
  - namespace: string

Returns:
  - []string: Stored keys in lexical order
  - error: Database failures
*/
func (repository *PostgresKVRepository) Keys(context context.Context, appID, userID, namespace string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 AND %s = $2 AND %s = $3
		  AND (%s IS NULL OR %s > now())
		ORDER BY %s`,
		schema.BBSKeyValue.Key,
		schema.BBSKeyValue.Table,
		schema.BBSKeyValue.AppID, schema.BBSKeyValue.UserID, schema.BBSKeyValue.Namespace,
		schema.BBSKeyValue.ExpiresAt, schema.BBSKeyValue.ExpiresAt,
		schema.BBSKeyValue.Key,
	)

	rows, err := repository.pool.Query(context, query, appID, userID, namespace)
	if err != nil {
		return nil, fmt.Errorf("postgres_kv_repo_keys_failed: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("postgres_kv_repo_keys_scan_failed: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_kv_repo_keys_rows_failed: %w", err)
	}

	return keys, nil
}

/*
DeleteByApp removes every entry written by the app.

Parameters:
  - context: context.Context
  - appID: string

Returns:
  - int64: Number of entries removed
  - error: Database failures
*/
func (repository *PostgresKVRepository) DeleteByApp(context context.Context, appID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.BBSKeyValue.Table, schema.BBSKeyValue.AppID)

	tag, err := repository.pool.Exec(context, query, appID)
	if err != nil {
		return 0, fmt.Errorf("postgres_kv_repo_delete_by_app_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}
