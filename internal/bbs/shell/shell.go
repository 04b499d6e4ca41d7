// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package shell implements the top-level command dispatcher.

Each submitted line runs under the session's exclusive lock: universal
verbs are tried first, then the session's current area decides whether
the shell answers directly (main menu) or forwards to an installed app.
The shell is the only component that transitions a session between areas.
*/
package shell

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/taibuivan/termboard/internal/bbs/app"
	"github.com/taibuivan/termboard/internal/bbs/registry"
	"github.com/taibuivan/termboard/internal/platform/constants"
	"github.com/taibuivan/termboard/internal/platform/sec"
	"github.com/taibuivan/termboard/internal/session"
	"github.com/taibuivan/termboard/pkg/pointer"
	"github.com/taibuivan/termboard/pkg/slice"
)

// Result is the outcome of one dispatched command.
type Result struct {
	// Area is the session's area after the command.
	Area string `json:"area"`
	// Screen is the screen inside the app, when the area names one.
	Screen *string `json:"screen,omitempty"`
	// Response is the terminal text to render.
	Response string `json:"response"`
	// Refresh tells the terminal to clear before rendering.
	Refresh bool `json:"refresh"`
}

// RemoteManager drives remote app installs from the admin verbs. The
// sandbox loader satisfies this.
type RemoteManager interface {
	Install(ctx context.Context, url string) (*registry.Entry, error)
	Uninstall(appID string) bool
	RefreshAll(ctx context.Context) int
}

// Shell dispatches commands against the registry and the session store.
type Shell struct {
	sessions *session.Service
	registry *registry.Registry
	remote   RemoteManager
	logger   *slog.Logger
}

// New wires the shell.
func New(sessions *session.Service, reg *registry.Registry, remote RemoteManager, logger *slog.Logger) *Shell {
	return &Shell{
		sessions: sessions,
		registry: reg,
		remote:   remote,
		logger:   logger,
	}
}

// MainMenu renders the current app catalog. The terminal init endpoint
// uses it for the welcome screen.
func (shell *Shell) MainMenu() string {
	return RenderMainMenu(shell.registry.ListAll())
}

/*
Execute runs one command for one session.

Description: The session's keyed lock serializes commands on the same
key; distinct sessions proceed in parallel. After dispatch the raw
command is appended to the history and, when the dispatch moved the
session, the new area is persisted. The returned session reflects the
post-command state.

Parameters:
  - ctx: context.Context
  - key: string (session key)
  - raw: string (command line as typed)

Returns:
  - Result: Area, screen, response text, refresh flag
  - *session.Session: Session snapshot after persistence
  - error: Session lookup or persistence failures
*/
func (shell *Shell) Execute(ctx context.Context, key, raw string) (Result, *session.Session, error) {
	var result Result
	var snapshot *session.Session

	err := shell.sessions.WithLock(key, func() error {
		current, err := shell.sessions.Get(ctx, key)
		if err != nil {
			return err
		}

		raw = strings.TrimSpace(raw)
		result = shell.dispatch(ctx, current, raw)

		snapshot = current
		if raw != "" {
			if snapshot, err = shell.sessions.RecordCommand(ctx, key, raw); err != nil {
				return err
			}
		}
		if result.Area != current.CurrentArea {
			if snapshot, err = shell.sessions.SetCurrentArea(ctx, key, result.Area); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, nil, err
	}

	return result, snapshot, nil
}

// dispatch resolves one normalized command to a result. It never fails:
// anything wrong at the BBS level is reported inside the response text.
func (shell *Shell) dispatch(ctx context.Context, current *session.Session, raw string) Result {
	cmd := strings.ToUpper(raw)
	appID, screenID := ParseArea(current.CurrentArea)

	// Universal verbs win in every area.
	switch cmd {
	case "HELP":
		return shell.help(current, appID, screenID)

	case "MAIN", "MENU":
		return shell.exitToMain(ctx, current, appID, "")

	case "EXIT", "QUIT", "X", "LOGOFF":
		return Result{Area: current.CurrentArea, Screen: screenPtrFor(appID, screenID), Response: logoffText, Refresh: true}

	case "DEBUG":
		return shell.debug(ctx, current)
	}

	if fields := strings.Fields(cmd); len(fields) > 0 {
		switch fields[0] {
		case "INSTALL", "UNINSTALL":
			return shell.adminInstall(ctx, current, fields[0], strings.Fields(raw))
		case "LIST":
			if len(fields) == 3 && fields[2] == "APPS" {
				return shell.adminList(current)
			}
		}
	}

	if appID == "" {
		return shell.dispatchMain(ctx, current, cmd)
	}
	return shell.dispatchApp(ctx, current, appID, screenID, raw, cmd)
}

// # Main-Area Dispatch

func (shell *Shell) dispatchMain(ctx context.Context, current *session.Session, cmd string) Result {
	stay := Result{Area: constants.AreaMain}

	selection, err := strconv.Atoi(cmd)
	if err != nil {
		stay.Response = "Unknown command. " + selectionGuidance(shell.registry.Count()) + " Type HELP for commands."
		return stay
	}

	entry, found := shell.registry.Nth(selection)
	if !found {
		stay.Response = "Invalid selection. " + selectionGuidance(shell.registry.Count())
		return stay
	}

	meta := entry.Meta()
	if current.IsAuthenticated() {
		if observer, ok := entry.App.(app.EnterExitObserver); ok {
			observer.OnUserEnter(ctx, current.UserID, viewFor(current, meta.ID))
		}
	}

	return Result{
		Area:     FormatArea(meta.ID, defaultScreen),
		Screen:   pointer.To(defaultScreen),
		Response: entry.App.WelcomeScreen(),
		Refresh:  true,
	}
}

// # App-Area Dispatch

func (shell *Shell) dispatchApp(ctx context.Context, current *session.Session, appID, screenID, raw, cmd string) Result {
	entry, found := shell.registry.Get(appID)
	if !found {
		return Result{
			Area:     constants.AreaMain,
			Response: "That app is no longer installed.\n\n" + shell.MainMenu(),
			Refresh:  true,
		}
	}

	if cmd == "B" || cmd == "BACK" {
		return shell.exitToMain(ctx, current, appID, "")
	}

	view := viewFor(current, appID)
	outcome, err := entry.App.HandleCommand(ctx, &screenID, raw, view)
	if err != nil {
		// The guard converts app failures in-place; reaching here means a
		// host-side fault. Keep the caller inside the app.
		shell.logger.Error("app dispatch failed",
			slog.String("app_id", appID),
			slog.Any("error", err),
		)
		return Result{
			Area:     current.CurrentArea,
			Screen:   &screenID,
			Response: "The app hit an internal error. Type B to go back.",
		}
	}

	if len(outcome.Data) > 0 {
		if _, err := shell.sessions.MergeAppData(ctx, current.Key, appID, outcome.Data); err != nil {
			shell.logger.Warn("app data merge failed",
				slog.String("app_id", appID),
				slog.Any("error", err),
			)
		}
	}

	if outcome.Screen == nil {
		return shell.exitToMain(ctx, current, appID, outcome.Response)
	}

	return Result{
		Area:     FormatArea(appID, *outcome.Screen),
		Screen:   outcome.Screen,
		Response: outcome.Response,
		Refresh:  outcome.Refresh,
	}
}

// exitToMain leaves an app (when one is active), firing the exit hook for
// authenticated callers, and renders the main menu. A farewell from the
// app, when present, is kept above the menu.
func (shell *Shell) exitToMain(ctx context.Context, current *session.Session, appID, farewell string) Result {
	if appID != "" && current.IsAuthenticated() {
		if entry, found := shell.registry.Get(appID); found {
			if observer, ok := entry.App.(app.EnterExitObserver); ok {
				observer.OnUserExit(ctx, current.UserID, viewFor(current, appID))
			}
		}
	}

	response := shell.MainMenu()
	if farewell != "" {
		response = farewell + "\n\n" + response
	}

	return Result{Area: constants.AreaMain, Response: response, Refresh: true}
}

// # Universal Verbs

func (shell *Shell) help(current *session.Session, appID, screenID string) Result {
	if appID != "" {
		if entry, found := shell.registry.Get(appID); found {
			return Result{
				Area:     current.CurrentArea,
				Screen:   &screenID,
				Response: entry.App.Help(&screenID),
			}
		}
	}
	return Result{Area: current.CurrentArea, Response: renderMainHelp(shell.registry.Count())}
}

func (shell *Shell) debug(ctx context.Context, current *session.Session) Result {
	diagnostics, err := shell.sessions.Diagnostics(ctx, current.Key)
	if err != nil {
		return Result{Area: current.CurrentArea, Response: "Diagnostics unavailable."}
	}

	var builder strings.Builder
	builder.WriteString(shell.registry.Dump())
	builder.WriteString("\nSESSION:\n")
	for _, field := range []string{"sessionKey", "currentArea", "historyLength", "authenticated", "username", "liveSessions"} {
		builder.WriteString(fmt.Sprintf("  %-14s %v\n", field, diagnostics[field]))
	}

	return Result{Area: current.CurrentArea, Response: builder.String()}
}

// # Admin Verbs

func (shell *Shell) adminInstall(ctx context.Context, current *session.Session, verb string, rawFields []string) Result {
	if denied := shell.requireAdmin(current); denied != nil {
		return *denied
	}
	if len(rawFields) != 3 {
		return Result{
			Area:     current.CurrentArea,
			Response: fmt.Sprintf("Usage: %s <HOST> <URL>", verb),
		}
	}
	url := rawFields[2]

	if verb == "UNINSTALL" {
		return shell.uninstall(current, url)
	}

	entry, err := shell.remote.Install(ctx, url)
	if err != nil {
		return Result{Area: current.CurrentArea, Response: "Install failed: " + err.Error()}
	}

	meta := entry.Meta()
	return Result{
		Area:     current.CurrentArea,
		Response: fmt.Sprintf("Installed %s v%s (%s).", meta.Name, meta.Version, meta.ID),
	}
}

func (shell *Shell) uninstall(current *session.Session, url string) Result {
	for _, entry := range shell.registry.ListAll() {
		if entry.SourceURL != url {
			continue
		}
		if shell.remote.Uninstall(entry.Meta().ID) {
			return Result{Area: current.CurrentArea, Response: "Uninstalled " + entry.Meta().ID + "."}
		}
		break
	}
	return Result{Area: current.CurrentArea, Response: "No remote app is installed from that URL."}
}

func (shell *Shell) adminList(current *session.Session) Result {
	if denied := shell.requireAdmin(current); denied != nil {
		return *denied
	}

	remote := slice.Filter(shell.registry.ListAll(), func(entry *registry.Entry) bool {
		return entry.Origin == registry.OriginRemote
	})
	lines := slice.Map(remote, func(entry *registry.Entry) string {
		return fmt.Sprintf("%s  %s  (refreshed %s)",
			entry.Meta().ID, entry.SourceURL, entry.LastRefreshed.Format("2006-01-02 15:04"))
	})

	if len(lines) == 0 {
		return Result{Area: current.CurrentArea, Response: "No remote apps installed."}
	}
	return Result{Area: current.CurrentArea, Response: "REMOTE APPS:\n" + strings.Join(lines, "\n")}
}

// requireAdmin refuses the admin verbs for anonymous or non-admin callers.
func (shell *Shell) requireAdmin(current *session.Session) *Result {
	if !current.IsAuthenticated() {
		return &Result{Area: current.CurrentArea, Response: "You must be logged in as an admin to do that."}
	}
	if current.Role != string(sec.RoleAdmin) {
		return &Result{Area: current.CurrentArea, Response: "Admin privileges required."}
	}
	return nil
}

// screenPtrFor keeps the screen field populated while inside an app.
func screenPtrFor(appID, screenID string) *string {
	if appID == "" {
		return nil
	}
	return pointer.To(screenID)
}
