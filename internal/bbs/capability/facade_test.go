// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package capability_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/termboard/internal/bbs/app"
	"github.com/taibuivan/termboard/internal/bbs/capability"
	"github.com/taibuivan/termboard/internal/keyvalue"
	"github.com/taibuivan/termboard/internal/users/auth"
)

type stubResolver struct{}

func (stubResolver) PublicUser(_ context.Context, userID string) (*auth.PublicView, error) {
	return &auth.PublicView{ID: userID, Username: "alice", Role: "user"}, nil
}

func newTestFactory() *capability.Factory {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return capability.NewFactory(keyvalue.NewMemoryRepository(), stubResolver{}, logger)
}

/*
TestFacade_StorageIsolation verifies that keys written through one app's
facade are invisible through another app's, even for identical key names.
*/
func TestFacade_StorageIsolation(t *testing.T) {
	factory := newTestFactory()
	ctx := context.Background()

	first := factory.For("hangman").Storage()
	second := factory.For("notes").Storage()

	require.NoError(t, first.Set(ctx, "scores", map[string]any{"alice": 3}))

	_, found, err := second.Get(ctx, "scores")
	require.NoError(t, err)
	assert.False(t, found)

	value, found, err := first.Get(ctx, "scores")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]any{"alice": float64(3)}, value)
}

/*
TestFacade_ScopedPartitions verifies user and namespace partitions do not
bleed into the shared partition.
*/
func TestFacade_ScopedPartitions(t *testing.T) {
	factory := newTestFactory()
	ctx := context.Background()
	facade := factory.For("notes")

	require.NoError(t, facade.Storage().Set(ctx, "draft", "shared"))
	require.NoError(t, facade.UserStorage("user-1").Set(ctx, "draft", "mine"))
	require.NoError(t, facade.NamespacedStorage("archive").Set(ctx, "draft", "archived"))

	shared, _, err := facade.Storage().Get(ctx, "draft")
	require.NoError(t, err)
	assert.Equal(t, "shared", shared)

	personal, _, err := facade.UserStorage("user-1").Get(ctx, "draft")
	require.NoError(t, err)
	assert.Equal(t, "mine", personal)

	archived, _, err := facade.NamespacedStorage("archive").Get(ctx, "draft")
	require.NoError(t, err)
	assert.Equal(t, "archived", archived)

	// Unsafe qualifier characters are stripped before scoping
	sanitized := facade.UserStorage("user-1")
	messy := facade.UserStorage("u ser--1!")
	require.NoError(t, messy.Set(ctx, "k", 1))
	_, found, err := sanitized.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	keys, err := facade.Storage().Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"draft"}, keys)
}

/*
TestFacade_RejectsCodeLikeValues verifies the write screen against values
that look like executable code.
*/
func TestFacade_RejectsCodeLikeValues(t *testing.T) {
	factory := newTestFactory()
	ctx := context.Background()
	storage := factory.For("notes").Storage()

	tests := []struct {
		name  string
		value any
	}{
		{"function_keyword", "function hack() {}"},
		{"arrow", "x => x"},
		{"eval_call", "eval('1+1')"},
		{"dynamic_function", "new Function('return 1')"},
		{"nested_in_map", map[string]any{"inner": "eval('x')"}},
		{"nested_in_slice", []any{"ok", "() => bad"}},
		{"function_value", func() {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storage.Set(ctx, "k", tt.value)
			require.Error(t, err)
			assert.ErrorIs(t, err, capability.ErrCodeLikeValue)
		})
	}

	require.NoError(t, storage.Set(ctx, "k", "perfectly ordinary text"))
}

/*
TestFacade_WriteQuota verifies the kv_set burst cap: writes beyond the
burst window are refused while the app's reply path stays alive.
*/
func TestFacade_WriteQuota(t *testing.T) {
	factory := newTestFactory()
	ctx := context.Background()
	storage := factory.For("spammy").Storage()

	refusals := 0
	for i := 0; i < 60; i++ {
		if err := storage.Set(ctx, "k", i); err != nil {
			require.True(t, errors.Is(err, capability.ErrRefused))
			refusals++
		}
	}

	// The 5-second burst cap admits 10 immediate writes; the rest refuse.
	assert.GreaterOrEqual(t, refusals, 45)

	// command_execution quota is untouched by storage refusals
	limiter := factory.LimiterFor("spammy")
	if !limiter.InCooldown() {
		assert.True(t, limiter.Allow(capability.OpCommand))
	}
}

/*
TestLimiter_FixedWindowCap verifies the per-minute quota is a fixed
window: exactly cap calls succeed, and every further call in the same
window is refused.
*/
func TestLimiter_FixedWindowCap(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := capability.NewLimiter("boards", logger)

	// command_execution has a 30/minute cap and no burst window.
	allowed := 0
	for i := 0; i < 31; i++ {
		if limiter.Allow(capability.OpCommand) {
			allowed++
		}
	}

	assert.Equal(t, 30, allowed)
	assert.False(t, limiter.Allow(capability.OpCommand))
}

/*
TestFacade_CurrentUser tests the public-view lookup and anonymous sessions.
*/
func TestFacade_CurrentUser(t *testing.T) {
	factory := newTestFactory()
	ctx := context.Background()
	facade := factory.For("notes")

	anonymous := app.SessionView{Key: "s1"}
	view, err := facade.CurrentUser(ctx, anonymous)
	require.NoError(t, err)
	assert.Nil(t, view)

	authenticated := app.SessionView{Key: "s1", UserID: "user-1", Username: "alice"}
	view, err = facade.CurrentUser(ctx, authenticated)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "alice", view.Username)
}

/*
TestUtils tests the pure helper surface.
*/
func TestUtils(t *testing.T) {
	utils := newTestFactory().For("any").Utils()

	stamp := time.Date(2026, time.March, 7, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "Mar 07, 2026 09:30", utils.FormatDate(stamp))

	boxed := utils.BoxedTitle("MAIN MENU")
	assert.Contains(t, boxed, "|   MAIN MENU   |")
	assert.Contains(t, boxed, "+---------------+")

	assert.Equal(t, "=====", utils.Separator("=", 5))
	assert.Equal(t, "-", utils.Separator("", 1))
	assert.Len(t, utils.Separator("*", 9999), 120)
}
