// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/termboard/internal/platform/apperr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIsolate(t *testing.T) *Isolate {
	t.Helper()

	isolate, err := NewIsolate("test_app", testLogger())
	require.NoError(t, err)
	t.Cleanup(isolate.Dispose)

	return isolate
}

/*
TestIsolate_RunAndEnter verifies that a script's exports are readable
through a guarded entry.
*/
func TestIsolate_RunAndEnter(t *testing.T) {
	isolate := newTestIsolate(t)

	require.NoError(t, isolate.Run(`module.exports = { answer: 40 + 2 };`))

	var answer int64
	_, err := isolate.Enter(func(vm *goja.Runtime) (goja.Value, error) {
		exports := vm.Get("module").ToObject(vm).Get("exports").ToObject(vm)
		answer = exports.Get("answer").ToInteger()
		return nil, nil
	})

	require.NoError(t, err)
	assert.Equal(t, int64(42), answer)
}

/*
TestIsolate_InterruptsInfiniteLoop verifies the time budget: a script
that never yields is interrupted and surfaces as a sandbox rejection,
and the isolate stays usable afterwards.
*/
func TestIsolate_InterruptsInfiniteLoop(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the sandbox time budget")
	}

	isolate := newTestIsolate(t)

	err := isolate.Run(`while (true) {}`)

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "SANDBOX_REJECTED", appError.Code)
	assert.Contains(t, appError.Message, "budget exceeded")

	// The interrupt must not poison later entries.
	require.NoError(t, isolate.Run(`module.exports = { ok: true };`))
}

/*
TestIsolate_ScriptErrorsAreContained verifies that a throwing script
becomes a sandbox rejection rather than a host failure.
*/
func TestIsolate_ScriptErrorsAreContained(t *testing.T) {
	isolate := newTestIsolate(t)

	err := isolate.Run(`throw new Error('boom');`)

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "SANDBOX_REJECTED", appError.Code)
	assert.Contains(t, appError.Message, "app error")
}

/*
TestIsolate_RequireAllowList verifies that allow-listed modules resolve
and everything else throws inside the sandbox.
*/
func TestIsolate_RequireAllowList(t *testing.T) {
	isolate := newTestIsolate(t)

	require.NoError(t, isolate.Run(`
		var utils = require('board-utils');
		var refused = false;
		try {
			require('left-pad');
		} catch (e) {
			refused = true;
		}
		module.exports = {
			merged: utils.merge({ a: 1 }, { b: 2 }),
			refused: refused
		};
	`))

	var refused bool
	var merged map[string]any
	_, err := isolate.Enter(func(vm *goja.Runtime) (goja.Value, error) {
		exports := vm.Get("module").ToObject(vm).Get("exports").ToObject(vm)
		refused = exports.Get("refused").ToBoolean()
		merged, _ = exports.Get("merged").Export().(map[string]any)
		return nil, nil
	})

	require.NoError(t, err)
	assert.True(t, refused)
	assert.Len(t, merged, 2)
}

/*
TestIsolate_DisposedRejectsEntries verifies that a destroyed isolate is
never reused.
*/
func TestIsolate_DisposedRejectsEntries(t *testing.T) {
	isolate, err := NewIsolate("test_app", testLogger())
	require.NoError(t, err)

	isolate.Dispose()

	err = isolate.Run(`module.exports = {};`)
	assert.ErrorIs(t, err, ErrIsolateDisposed)
}
