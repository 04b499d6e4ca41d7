// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/termboard/internal/platform/apperr"
	"github.com/taibuivan/termboard/internal/platform/database/schema"
	"github.com/taibuivan/termboard/internal/platform/dberr"
)

// # Session Repository (PostgreSQL)

// PostgresSessionRepository implements the Repository interface using pgx.
//
// Command history and the per-app data bag are stored as JSONB columns and
// marshaled explicitly so that merge semantics stay in Go code rather than
// in SQL expressions.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL implementation of the Repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

/*
FindByKey retrieves a session record by its opaque key.

Description: Performs a lookup on the bbs.session table and hydrates the
JSONB history and data columns.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - *Session: Hydrated session entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresSessionRepository) FindByKey(context context.Context, key string) (*Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1`,
		strings.Join(schema.BBSSession.Columns(), ", "),
		schema.BBSSession.Table,
		schema.BBSSession.SessionKey,
	)

	row := repository.pool.QueryRow(context, query, key)
	session, err := scanSession(row)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session not found")
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}

	return session, nil
}

/*
Create persists a new session record into the bbs.session table.

Description: Serializes the history and data bags to JSONB. A key collision
surfaces as apperr.Conflict via the dberr bridge.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		schema.BBSSession.Table,
		strings.Join(schema.BBSSession.Columns(), ", "),
	)

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.LastActivity = now

	historyJSON, dataJSON, err := encodeBags(session)
	if err != nil {
		return err
	}

	_, err = repository.pool.Exec(context, query,
		session.Key,
		nullable(session.UserID),
		nullable(session.Username),
		nullable(session.Role),
		session.CurrentArea,
		historyJSON,
		dataJSON,
		session.ClientAddr,
		session.UserAgent,
		session.CreatedAt,
		session.LastActivity,
	)

	if err != nil {
		return dberr.Wrap(err, "Session key already exists")
	}

	return nil
}

/*
Update applies a partial mutation to the stored session.

Description: Reads the current row, folds the update in via Update.Apply so
that history-cap and data-merge semantics match the in-memory store, then
writes the full row back. Callers serialize commands per session key, so
the read-modify-write is not racy in practice.

Parameters:
  - context: context.Context
  - key: string
  - update: Update

Returns:
  - *Session: State after the mutation
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresSessionRepository) Update(context context.Context, key string, update Update) (*Session, error) {
	session, err := repository.FindByKey(context, key)
	if err != nil {
		return nil, err
	}

	update.Apply(session)

	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4, %s = $5, %s = $6, %s = $7, %s = $8
		WHERE %s = $1`,
		schema.BBSSession.Table,
		schema.BBSSession.UserID, schema.BBSSession.Username, schema.BBSSession.Role,
		schema.BBSSession.CurrentArea, schema.BBSSession.CommandHistory,
		schema.BBSSession.Data, schema.BBSSession.LastActivity,
		schema.BBSSession.SessionKey,
	)

	historyJSON, dataJSON, err := encodeBags(session)
	if err != nil {
		return nil, err
	}

	tag, err := repository.pool.Exec(context, query,
		session.Key,
		nullable(session.UserID),
		nullable(session.Username),
		nullable(session.Role),
		session.CurrentArea,
		historyJSON,
		dataJSON,
		session.LastActivity,
	)

	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_update_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.NotFound("Session not found")
	}

	return session, nil
}

/*
Touch bumps the session's last-activity timestamp.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresSessionRepository) Touch(context context.Context, key string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2
		WHERE %s = $1`,
		schema.BBSSession.Table,
		schema.BBSSession.LastActivity,
		schema.BBSSession.SessionKey,
	)

	tag, err := repository.pool.Exec(context, query, key, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_session_repo_touch_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Session not found")
	}

	return nil
}

/*
Delete removes a session row entirely.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - error: Database errors (absent rows are not an error)
*/
func (repository *PostgresSessionRepository) Delete(context context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.BBSSession.Table, schema.BBSSession.SessionKey)

	if _, err := repository.pool.Exec(context, query, key); err != nil {
		return fmt.Errorf("postgres_session_repo_delete_failed: %w", err)
	}

	return nil
}

/*
DeleteIdleBefore physically removes sessions idle since before the cutoff.

Parameters:
  - context: context.Context
  - cutoff: time.Time

Returns:
  - int64: Number of sessions removed
  - error: Database errors
*/
func (repository *PostgresSessionRepository) DeleteIdleBefore(context context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s < $1`,
		schema.BBSSession.Table, schema.BBSSession.LastActivity)

	tag, err := repository.pool.Exec(context, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_reap_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

/*
Count returns the number of live sessions.

Parameters:
  - context: context.Context

Returns:
  - int64: Live session count
  - error: Database errors
*/
func (repository *PostgresSessionRepository) Count(context context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, schema.BBSSession.Table)

	var total int64
	if err := repository.pool.QueryRow(context, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("postgres_session_repo_count_failed: %w", err)
	}

	return total, nil
}

// # Row Mapping

// scanSession hydrates a Session from a database row, decoding JSONB bags.
func scanSession(row pgx.Row) (*Session, error) {
	var (
		session     Session
		userID      *string
		username    *string
		role        *string
		historyJSON []byte
		dataJSON    []byte
	)

	err := row.Scan(
		&session.Key,
		&userID,
		&username,
		&role,
		&session.CurrentArea,
		&historyJSON,
		&dataJSON,
		&session.ClientAddr,
		&session.UserAgent,
		&session.CreatedAt,
		&session.LastActivity,
	)
	if err != nil {
		return nil, err
	}

	session.UserID = deref(userID)
	session.Username = deref(username)
	session.Role = deref(role)

	if err := json.Unmarshal(historyJSON, &session.CommandHistory); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_history_decode_failed: %w", err)
	}
	if err := json.Unmarshal(dataJSON, &session.Data); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_data_decode_failed: %w", err)
	}
	if session.CommandHistory == nil {
		session.CommandHistory = []string{}
	}
	if session.Data == nil {
		session.Data = map[string]map[string]any{}
	}

	return &session, nil
}

// encodeBags serializes the history and data maps for JSONB columns.
func encodeBags(session *Session) ([]byte, []byte, error) {
	history := session.CommandHistory
	if history == nil {
		history = []string{}
	}
	data := session.Data
	if data == nil {
		data = map[string]map[string]any{}
	}

	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres_session_repo_history_encode_failed: %w", err)
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres_session_repo_data_encode_failed: %w", err)
	}

	return historyJSON, dataJSON, nil
}

// nullable maps empty strings to SQL NULL for optional identity columns.
func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// deref maps SQL NULL back to the empty string.
func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
