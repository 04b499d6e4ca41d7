// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/termboard/internal/bbs/app"
	"github.com/taibuivan/termboard/internal/bbs/capability"
)

// # The Capability Guard

// rateLimitedResponse is returned in place of the app's reply when the
// command-execution quota trips.
const rateLimitedResponse = "Rate limit exceeded, try again later."

// inAppErrorResponse is returned when the app raises or misbehaves during
// a command; the caller stays inside the app and can leave normally.
const inAppErrorResponse = "The app hit an internal error. Type B to go back."

// Guard wraps an app so every call crosses a host checkpoint: inputs are
// sanitized, the command-execution quota is enforced, panics and errors
// are contained, and outputs are normalized to the contract.
//
// All loaded apps are guarded uniformly; for remote apps the guard is the
// single boundary between the isolate and the shell.
func Guard(inner app.BBSApp, limiter *capability.Limiter, logger *slog.Logger) app.BBSApp {
	return &guardedApp{inner: inner, limiter: limiter, logger: logger}
}

type guardedApp struct {
	inner   app.BBSApp
	limiter *capability.Limiter
	logger  *slog.Logger
}

func (guard *guardedApp) Meta() app.Meta { return guard.inner.Meta() }

// WelcomeScreen passes through with output truncation and panic containment.
func (guard *guardedApp) WelcomeScreen() (welcome string) {
	defer guard.recover("welcome_screen", func() { welcome = inAppErrorResponse })
	return app.TruncateScreenText(guard.inner.WelcomeScreen())
}

// Help passes through with a sanitized screen id and output truncation.
func (guard *guardedApp) Help(screenID *string) (help string) {
	defer guard.recover("help", func() { help = inAppErrorResponse })
	return app.TruncateScreenText(guard.inner.Help(sanitizeScreenPtr(screenID)))
}

/*
HandleCommand runs one guarded command dispatch.

Description: The command-execution quota is checked first; a breach
returns the rate-limit text without touching the app. Inputs are then
sanitized (screen id cleaned, command truncated), the app is invoked with
panics contained, and the result is normalized: screen ids cleaned with
"" folded to nil, response truncated. An app error is converted into an
in-app error result rather than propagating to the host.

Parameters:
  - ctx: context.Context
  - screenID: *string
  - command: string
  - view: app.SessionView

Returns:
  - app.CommandResult: Normalized result (never an error to the shell)
  - error: Always nil; kept for the contract signature
*/
func (guard *guardedApp) HandleCommand(ctx context.Context, screenID *string, command string, view app.SessionView) (result app.CommandResult, err error) {
	current := sanitizeScreenPtr(screenID)

	if !guard.limiter.Allow(capability.OpCommand) {
		return app.CommandResult{Screen: current, Response: rateLimitedResponse, Refresh: false}, nil
	}

	defer guard.recover("handle_command", func() {
		result = app.CommandResult{Screen: current, Response: inAppErrorResponse, Refresh: false}
		err = nil
	})

	inner, callErr := guard.inner.HandleCommand(ctx, current, app.TruncateCommand(command), view)
	if callErr != nil {
		guard.logger.Warn("app command failed",
			slog.String("app_id", guard.inner.Meta().ID),
			slog.Any("error", callErr),
		)
		return app.CommandResult{Screen: current, Response: inAppErrorResponse, Refresh: false}, nil
	}

	return app.NormalizeResult(inner), nil
}

// OnInit forwards the hook when the inner app wants it.
func (guard *guardedApp) OnInit(caps app.Capabilities) {
	initializer, ok := guard.inner.(app.Initializer)
	if !ok {
		return
	}
	defer guard.recover("on_init", func() {})
	initializer.OnInit(caps)
}

// OnUserEnter forwards the hook when the inner app observes boundaries.
func (guard *guardedApp) OnUserEnter(ctx context.Context, userID string, view app.SessionView) {
	observer, ok := guard.inner.(app.EnterExitObserver)
	if !ok {
		return
	}
	defer guard.recover("on_user_enter", func() {})
	observer.OnUserEnter(ctx, userID, view)
}

// OnUserExit forwards the hook when the inner app observes boundaries.
func (guard *guardedApp) OnUserExit(ctx context.Context, userID string, view app.SessionView) {
	observer, ok := guard.inner.(app.EnterExitObserver)
	if !ok {
		return
	}
	defer guard.recover("on_user_exit", func() {})
	observer.OnUserExit(ctx, userID, view)
}

// recover contains an app panic, logs it, and applies the fallback.
func (guard *guardedApp) recover(operation string, fallback func()) {
	if recovered := recover(); recovered != nil {
		guard.logger.Error("app panicked",
			slog.String("app_id", guard.inner.Meta().ID),
			slog.String("operation", operation),
			slog.String("panic", fmt.Sprintf("%v", recovered)),
		)
		fallback()
	}
}

// sanitizeScreenPtr cleans an optional screen id, folding empty to nil.
func sanitizeScreenPtr(screenID *string) *string {
	if screenID == nil {
		return nil
	}
	cleaned := app.SanitizeScreenID(*screenID)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
