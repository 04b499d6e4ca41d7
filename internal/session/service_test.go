// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/termboard/internal/platform/constants"
	"github.com/taibuivan/termboard/internal/session"
)

func newTestService() *session.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return session.NewService(session.NewMemoryRepository(), logger)
}

/*
TestService_Resolve tests session creation and reuse via opaque keys.
*/
func TestService_Resolve(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	created, isNew, err := service.Resolve(ctx, "", "203.0.113.9", "curl/8.0")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEmpty(t, created.Key)
	assert.Equal(t, constants.AreaMain, created.CurrentArea)
	assert.Empty(t, created.CommandHistory)

	// Same key comes back untouched
	reused, isNew, err := service.Resolve(ctx, created.Key, "203.0.113.9", "curl/8.0")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.Key, reused.Key)

	// Unknown key is adopted verbatim for a fresh session
	adopted, isNew, err := service.Resolve(ctx, "deadbeef", "203.0.113.9", "curl/8.0")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "deadbeef", adopted.Key)
	assert.Equal(t, constants.AreaMain, adopted.CurrentArea)
}

/*
TestService_RecordCommand_Cap verifies the bounded history: after many
appends only the most recent entries survive, oldest evicted first.
*/
func TestService_RecordCommand_Cap(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	created, _, err := service.Resolve(ctx, "", "", "")
	require.NoError(t, err)

	total := constants.CommandHistoryCap + 25
	var latest *session.Session
	for i := 0; i < total; i++ {
		latest, err = service.RecordCommand(ctx, created.Key, fmt.Sprintf("CMD %d", i))
		require.NoError(t, err)
	}

	require.Len(t, latest.CommandHistory, constants.CommandHistoryCap)
	assert.Equal(t, "CMD 25", latest.CommandHistory[0])
	assert.Equal(t, fmt.Sprintf("CMD %d", total-1), latest.CommandHistory[constants.CommandHistoryCap-1])
}

/*
TestService_Isolation verifies that two sessions never see each other's
history, area, or app data.
*/
func TestService_Isolation(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	first, _, err := service.Resolve(ctx, "", "", "")
	require.NoError(t, err)
	second, _, err := service.Resolve(ctx, "", "", "")
	require.NoError(t, err)

	_, err = service.RecordCommand(ctx, first.Key, "HELLO")
	require.NoError(t, err)
	_, err = service.SetCurrentArea(ctx, first.Key, "hangman")
	require.NoError(t, err)
	_, err = service.MergeAppData(ctx, first.Key, "hangman", map[string]any{"guesses": 3})
	require.NoError(t, err)

	other, err := service.Get(ctx, second.Key)
	require.NoError(t, err)
	assert.Empty(t, other.CommandHistory)
	assert.Equal(t, constants.AreaMain, other.CurrentArea)
	assert.Empty(t, other.Data)
}

/*
TestService_MergeAppData tests the field-by-field merge of per-app bags.
*/
func TestService_MergeAppData(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	created, _, err := service.Resolve(ctx, "", "", "")
	require.NoError(t, err)

	_, err = service.MergeAppData(ctx, created.Key, "notes", map[string]any{"cursor": 1, "filter": "all"})
	require.NoError(t, err)

	// A later partial merge must not clobber untouched fields
	merged, err := service.MergeAppData(ctx, created.Key, "notes", map[string]any{"cursor": 2})
	require.NoError(t, err)

	bag := merged.Data["notes"]
	require.NotNil(t, bag)
	assert.Equal(t, 2, bag["cursor"])
	assert.Equal(t, "all", bag["filter"])
}

/*
TestService_BindUnbindUser tests identity attachment and the logout
semantics: unbinding keeps the conversational state intact.
*/
func TestService_BindUnbindUser(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	created, _, err := service.Resolve(ctx, "", "", "")
	require.NoError(t, err)
	_, err = service.RecordCommand(ctx, created.Key, "LOGIN alice")
	require.NoError(t, err)

	bound, err := service.BindUser(ctx, created.Key, "user-1", "alice", "user")
	require.NoError(t, err)
	assert.True(t, bound.IsAuthenticated())
	assert.Equal(t, "alice", bound.Username)

	unbound, err := service.UnbindUser(ctx, created.Key)
	require.NoError(t, err)
	assert.False(t, unbound.IsAuthenticated())
	assert.Empty(t, unbound.Username)
	assert.Len(t, unbound.CommandHistory, 1)
}

/*
TestService_ReapIdle verifies that only sessions idle beyond the cutoff
are removed.
*/
func TestService_ReapIdle(t *testing.T) {
	repository := session.NewMemoryRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := session.NewService(repository, logger)
	ctx := context.Background()

	stale := session.NewSession("stale-key", "", "")
	require.NoError(t, repository.Create(ctx, stale))
	_, err := repository.Update(ctx, "stale-key", session.Update{})
	require.NoError(t, err)

	fresh, _, err := service.Resolve(ctx, "", "", "")
	require.NoError(t, err)

	// Nothing is older than 30 days yet
	removed, err := service.ReapIdle(ctx, constants.SessionReapAfterDays)
	require.NoError(t, err)
	assert.Zero(t, removed)

	// A cutoff in the future removes everything idle "before" it
	removed, err = repository.DeleteIdleBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = service.Get(ctx, fresh.Key)
	assert.Error(t, err)
}

/*
TestService_WithLock verifies per-session serialization: concurrent
increments under the lock never interleave.
*/
func TestService_WithLock(t *testing.T) {
	service := newTestService()

	var counter int
	var group sync.WaitGroup
	for i := 0; i < 50; i++ {
		group.Add(1)
		go func() {
			defer group.Done()
			_ = service.WithLock("same-key", func() error {
				counter++
				return nil
			})
		}()
	}
	group.Wait()

	assert.Equal(t, 50, counter)
}
