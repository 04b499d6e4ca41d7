// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keyvalue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
TestMemoryKV_ScopeIsolation verifies that the app, user, and namespace
qualifiers partition the keyspace.
*/
func TestMemoryKV_ScopeIsolation(t *testing.T) {
	repository := NewMemoryRepository()
	ctx := context.Background()

	shared := Scope{AppID: "hangman", Key: "highscore"}
	perUser := Scope{AppID: "hangman", Key: "highscore", UserID: "u1"}
	namespaced := Scope{AppID: "hangman", Key: "highscore", Namespace: "season2"}
	otherApp := Scope{AppID: "boards", Key: "highscore"}

	require.NoError(t, repository.Set(ctx, shared, 100, nil))
	require.NoError(t, repository.Set(ctx, perUser, 200, nil))
	require.NoError(t, repository.Set(ctx, namespaced, 300, nil))
	require.NoError(t, repository.Set(ctx, otherApp, 400, nil))

	value, found, err := repository.Get(ctx, shared)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(100), value)

	value, found, err = repository.Get(ctx, perUser)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(200), value)

	value, found, err = repository.Get(ctx, namespaced)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(300), value)

	_, found, err = repository.Get(ctx, Scope{AppID: "hangman", Key: "highscore", UserID: "u2"})
	require.NoError(t, err)
	assert.False(t, found)
}

/*
TestMemoryKV_JSONNormalization verifies that stored values round-trip
through JSON so both repository implementations return the same shapes.
*/
func TestMemoryKV_JSONNormalization(t *testing.T) {
	repository := NewMemoryRepository()
	ctx := context.Background()
	scope := Scope{AppID: "boards", Key: "config"}

	type config struct {
		Title string `json:"title"`
		Max   int    `json:"max"`
	}
	require.NoError(t, repository.Set(ctx, scope, config{Title: "General", Max: 50}, nil))

	value, found, err := repository.Get(ctx, scope)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]any{"title": "General", "max": float64(50)}, value)

	err = repository.Set(ctx, scope, map[string]any{"bad": func() {}}, nil)
	assert.Error(t, err)
}

/*
TestMemoryKV_Delete verifies removal semantics and the removed flag.
*/
func TestMemoryKV_Delete(t *testing.T) {
	repository := NewMemoryRepository()
	ctx := context.Background()
	scope := Scope{AppID: "boards", Key: "draft"}

	removed, err := repository.Delete(ctx, scope)
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, repository.Set(ctx, scope, "hello", nil))
	removed, err = repository.Delete(ctx, scope)
	require.NoError(t, err)
	assert.True(t, removed)

	_, found, err := repository.Get(ctx, scope)
	require.NoError(t, err)
	assert.False(t, found)
}

/*
TestMemoryKV_Keys verifies lexical ordering and partition narrowing.
*/
func TestMemoryKV_Keys(t *testing.T) {
	repository := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repository.Set(ctx, Scope{AppID: "boards", Key: "zulu"}, 1, nil))
	require.NoError(t, repository.Set(ctx, Scope{AppID: "boards", Key: "alpha"}, 2, nil))
	require.NoError(t, repository.Set(ctx, Scope{AppID: "boards", Key: "mike"}, 3, nil))
	require.NoError(t, repository.Set(ctx, Scope{AppID: "boards", Key: "alpha", UserID: "u1"}, 4, nil))

	keys, err := repository.Keys(ctx, "boards", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mike", "zulu"}, keys)

	keys, err = repository.Keys(ctx, "boards", "u1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, keys)

	keys, err = repository.Keys(ctx, "hangman", "", "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

/*
TestMemoryKV_Expiry verifies that expired entries behave as absent on
reads and key listings, and that a rewrite clears the expiry.
*/
func TestMemoryKV_Expiry(t *testing.T) {
	repository := NewMemoryRepository()
	ctx := context.Background()
	scope := Scope{AppID: "boards", Key: "flash"}

	past := time.Now().Add(-time.Minute)
	require.NoError(t, repository.Set(ctx, scope, "gone", &past))

	_, found, err := repository.Get(ctx, scope)
	require.NoError(t, err)
	assert.False(t, found)

	keys, err := repository.Keys(ctx, "boards", "", "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	future := time.Now().Add(time.Hour)
	require.NoError(t, repository.Set(ctx, scope, "fresh", &future))
	value, found, err := repository.Get(ctx, scope)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "fresh", value)

	require.NoError(t, repository.Set(ctx, scope, "forever", nil))
	_, found, err = repository.Get(ctx, scope)
	require.NoError(t, err)
	assert.True(t, found)
}

/*
TestMemoryKV_DeleteByApp verifies the uninstall sweep crosses all
partitions of one app and spares every other app.
*/
func TestMemoryKV_DeleteByApp(t *testing.T) {
	repository := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repository.Set(ctx, Scope{AppID: "hangman", Key: "a"}, 1, nil))
	require.NoError(t, repository.Set(ctx, Scope{AppID: "hangman", Key: "b", UserID: "u1"}, 2, nil))
	require.NoError(t, repository.Set(ctx, Scope{AppID: "hangman", Key: "c", Namespace: "n"}, 3, nil))
	require.NoError(t, repository.Set(ctx, Scope{AppID: "boards", Key: "a"}, 4, nil))

	removed, err := repository.DeleteByApp(ctx, "hangman")
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	_, found, err := repository.Get(ctx, Scope{AppID: "boards", Key: "a"})
	require.NoError(t, err)
	assert.True(t, found)
}
