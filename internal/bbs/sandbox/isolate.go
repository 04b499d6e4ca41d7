// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/taibuivan/termboard/internal/platform/apperr"
	"github.com/taibuivan/termboard/internal/platform/constants"
)

// # The Isolate

// maxCallStackDepth bounds recursion inside the interpreter.
const maxCallStackDepth = 512

// ErrIsolateDisposed is returned when a call reaches a destroyed isolate.
var ErrIsolateDisposed = errors.New("sandbox: isolate disposed")

// interrupt markers distinguish which watchdog fired.
const (
	interruptWall = "wall clock budget exceeded"
	interruptCPU  = "cpu budget exceeded"
)

// Isolate is one app's dedicated JavaScript interpreter with a scrubbed
// global scope and hard time budgets per entry.
//
// # Concurrency
//
// goja runtimes are single-threaded; the isolate serializes every entry
// (script run, exported function call, timer callback) behind one mutex.
type Isolate struct {
	appID  string
	logger *slog.Logger

	mutex    sync.Mutex
	vm       *goja.Runtime
	disposed bool

	timerMutex sync.Mutex
	timerSeq   int64
	timers     map[int64]*time.Timer
}

// NewIsolate creates a fresh interpreter for one app and populates its
// global scope with exactly the injected surface: console, a wrapped
// setTimeout/clearTimeout pair, the allow-listed require, and a CommonJS
// module/exports pair. JSON parse/stringify are the engine's own.
func NewIsolate(appID string, logger *slog.Logger) (*Isolate, error) {
	isolate := &Isolate{
		appID:  appID,
		logger: logger,
		vm:     goja.New(),
		timers: map[int64]*time.Timer{},
	}

	isolate.vm.SetMaxCallStackSize(maxCallStackDepth)

	if err := isolate.injectGlobals(); err != nil {
		return nil, err
	}

	return isolate, nil
}

/*
Run executes the app's script under the load-time budget.

Parameters:
  - source: string (already statically analyzed)

Returns:
  - error: apperr.SandboxRejected when a budget trips or the script throws
*/
func (isolate *Isolate) Run(source string) error {
	program, err := goja.Compile("app.js", source, true)
	if err != nil {
		return apperr.SandboxRejected(fmt.Sprintf("source does not compile: %v", err))
	}

	_, err = isolate.guarded(func() (goja.Value, error) {
		return isolate.vm.RunProgram(program)
	})
	return err
}

// Enter runs fn under the isolate's lock and budgets. All value
// conversion against the runtime must happen inside fn: a hostile app can
// attach getters to exported objects, so even reading them is an entry.
func (isolate *Isolate) Enter(fn func(vm *goja.Runtime) (goja.Value, error)) (goja.Value, error) {
	return isolate.guarded(func() (goja.Value, error) {
		return fn(isolate.vm)
	})
}

// Dispose destroys the isolate: pending timers are stopped and every
// subsequent entry fails with ErrIsolateDisposed.
func (isolate *Isolate) Dispose() {
	isolate.mutex.Lock()
	isolate.disposed = true
	isolate.mutex.Unlock()

	isolate.timerMutex.Lock()
	for id, timer := range isolate.timers {
		timer.Stop()
		delete(isolate.timers, id)
	}
	isolate.timerMutex.Unlock()
}

// guarded serializes one VM entry and arms the wall-clock and CPU
// watchdogs around it.
func (isolate *Isolate) guarded(run func() (goja.Value, error)) (goja.Value, error) {
	isolate.mutex.Lock()
	defer isolate.mutex.Unlock()

	if isolate.disposed {
		return nil, ErrIsolateDisposed
	}

	// The interpreter runs on this goroutine and cannot block on I/O, so
	// the CPU budget is enforced as the tighter of the two timers.
	cpuWatchdog := time.AfterFunc(constants.SandboxCPUTimeout, func() {
		isolate.vm.Interrupt(interruptCPU)
	})
	wallWatchdog := time.AfterFunc(constants.SandboxWallClockTimeout, func() {
		isolate.vm.Interrupt(interruptWall)
	})

	value, err := run()

	cpuWatchdog.Stop()
	wallWatchdog.Stop()
	isolate.vm.ClearInterrupt()

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			reason := fmt.Sprintf("%v", interrupted.Value())
			isolate.logger.Warn("sandboxed app interrupted",
				slog.String("app_id", isolate.appID),
				slog.String("reason", reason),
			)
			return nil, apperr.SandboxRejected(reason)
		}
		return nil, apperr.SandboxRejected(fmt.Sprintf("app error: %v", err))
	}

	return value, nil
}

// # Injected Globals

func (isolate *Isolate) injectGlobals() error {
	vm := isolate.vm

	if err := vm.Set("console", isolate.buildConsole()); err != nil {
		return apperr.Internal(err)
	}
	if err := vm.Set("setTimeout", isolate.wrappedSetTimeout); err != nil {
		return apperr.Internal(err)
	}
	if err := vm.Set("clearTimeout", isolate.wrappedClearTimeout); err != nil {
		return apperr.Internal(err)
	}
	if err := vm.Set("require", isolate.wrappedRequire); err != nil {
		return apperr.Internal(err)
	}

	// CommonJS skeleton so scripts can export their app.
	if _, err := vm.RunString(`var module = { exports: {} }; var exports = module.exports;`); err != nil {
		return apperr.Internal(err)
	}

	return nil
}

// buildConsole returns a console whose output lands in the host log,
// prefixed with the app id.
func (isolate *Isolate) buildConsole() *goja.Object {
	console := isolate.vm.NewObject()

	log := func(level slog.Level) func(args ...goja.Value) {
		return func(args ...goja.Value) {
			parts := make([]any, 0, len(args))
			for _, arg := range args {
				parts = append(parts, arg.Export())
			}
			isolate.logger.Log(context.Background(), level, fmt.Sprintf("[%s] %v", isolate.appID, parts))
		}
	}

	_ = console.Set("log", log(slog.LevelInfo))
	_ = console.Set("info", log(slog.LevelInfo))
	_ = console.Set("warn", log(slog.LevelWarn))
	_ = console.Set("error", log(slog.LevelError))

	return console
}

// wrappedSetTimeout clamps delays to [100ms, 30s], caps concurrent timers
// at 10 per app, and releases references on completion. The callback runs
// under the same budgets as any other VM entry.
func (isolate *Isolate) wrappedSetTimeout(callback goja.Callable, delayMillis int64) int64 {
	delay := time.Duration(delayMillis) * time.Millisecond
	if delay < constants.SandboxTimerMinDelay {
		delay = constants.SandboxTimerMinDelay
	}
	if delay > constants.SandboxTimerMaxDelay {
		delay = constants.SandboxTimerMaxDelay
	}

	isolate.timerMutex.Lock()
	defer isolate.timerMutex.Unlock()

	if len(isolate.timers) >= constants.SandboxTimerMaxConcurrent {
		isolate.logger.Warn("timer limit reached",
			slog.String("app_id", isolate.appID),
		)
		return -1
	}

	isolate.timerSeq++
	id := isolate.timerSeq

	isolate.timers[id] = time.AfterFunc(delay, func() {
		isolate.timerMutex.Lock()
		delete(isolate.timers, id)
		isolate.timerMutex.Unlock()

		if _, err := isolate.guarded(func() (goja.Value, error) {
			return callback(goja.Undefined())
		}); err != nil && !errors.Is(err, ErrIsolateDisposed) {
			isolate.logger.Warn("timer callback failed",
				slog.String("app_id", isolate.appID),
				slog.Any("error", err),
			)
		}
	})

	return id
}

// wrappedClearTimeout cancels a pending wrapped timer.
func (isolate *Isolate) wrappedClearTimeout(id int64) {
	isolate.timerMutex.Lock()
	defer isolate.timerMutex.Unlock()

	if timer, found := isolate.timers[id]; found {
		timer.Stop()
		delete(isolate.timers, id)
	}
}

// wrappedRequire resolves only the allow-listed modules; anything else throws.
func (isolate *Isolate) wrappedRequire(name string) goja.Value {
	builder, found := allowedModules[name]
	if !found {
		panic(isolate.vm.ToValue(fmt.Sprintf("module %q is not available in the sandbox", name)))
	}
	return builder(isolate.vm)
}
