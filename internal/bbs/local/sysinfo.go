// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package local

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taibuivan/termboard/internal/bbs/app"
	"github.com/taibuivan/termboard/internal/platform/constants"
)

// SysInfo is the builtin diagnostics app: server clock, uptime, and the
// size of the app catalog. It doubles as the reference implementation of
// a Go-native board app.
type SysInfo struct {
	started  time.Time
	appCount func() int
}

// NewSysInfo creates the builtin app. appCount is read live on every
// request so the figure tracks installs and uninstalls.
func NewSysInfo(appCount func() int) *SysInfo {
	return &SysInfo{
		started:  time.Now(),
		appCount: appCount,
	}
}

func (info *SysInfo) Meta() app.Meta {
	return app.Meta{
		ID:          "sysinfo",
		Name:        "System Info",
		Version:     constants.AppVersion,
		Description: "Server clock, uptime, and app catalog size",
		Author:      "Termboard",
	}
}

func (info *SysInfo) WelcomeScreen() string {
	return strings.Join([]string{
		"+------------------------+",
		"|      SYSTEM  INFO      |",
		"+------------------------+",
		"",
		"TIME    server clock",
		"UPTIME  time since boot",
		"APPS    registered app count",
		"WHO     who you are",
		"",
		"Type B to go back.",
	}, "\n")
}

func (info *SysInfo) Help(_ *string) string {
	return "Commands: TIME, UPTIME, APPS, WHO. Type B to go back."
}

func (info *SysInfo) HandleCommand(_ context.Context, screenID *string, command string, view app.SessionView) (app.CommandResult, error) {
	stay := func(response string) app.CommandResult {
		return app.CommandResult{Screen: screenID, Response: response, Refresh: false}
	}

	switch command {
	case "TIME":
		return stay("Server time: " + time.Now().Format("Mon Jan 02 15:04:05 2006 MST")), nil

	case "UPTIME":
		return stay("Up for " + time.Since(info.started).Round(time.Second).String()), nil

	case "APPS":
		return stay(fmt.Sprintf("%d app(s) registered.", info.appCount())), nil

	case "WHO":
		if view.IsAuthenticated() {
			return stay(fmt.Sprintf("You are %s (%s).", view.Username, view.Role)), nil
		}
		return stay("You are browsing as a guest."), nil

	default:
		return stay("Unknown command. " + info.Help(screenID)), nil
	}
}
