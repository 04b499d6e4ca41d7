// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/termboard/internal/platform/apperr"
	"github.com/taibuivan/termboard/internal/platform/constants"
	"github.com/taibuivan/termboard/internal/platform/validate"
)

// # Admission Validation

/*
Validate checks a candidate app against the contract before it may be
admitted to the registry.

Description: Checks metadata bounds, then exercises the callable surface:
WelcomeScreen and Help(nil) must return bounded strings, and a HELP probe
through HandleCommand must produce a well-formed result. Any single failure
rejects the candidate; partial admission is forbidden.

Parameters:
  - ctx: context.Context
  - candidate: BBSApp

Returns:
  - error: apperr.SandboxRejected naming the precise violation, or nil
*/
func Validate(ctx context.Context, candidate BBSApp) error {
	meta := candidate.Meta()

	validator := &validate.Validator{}
	validator.
		Required("id", meta.ID).
		Identifier("id", meta.ID, constants.AppIDMaxLength).
		Required("name", meta.Name).
		MaxLen("name", meta.Name, constants.AppNameMaxLength).
		MaxLen("description", meta.Description, constants.AppDescriptionMaxLength)
	if err := validator.Err(); err != nil {
		return apperr.SandboxRejected(fmt.Sprintf("app %q: invalid metadata: %v", meta.ID, err))
	}

	welcome := candidate.WelcomeScreen()
	if welcome == "" {
		return apperr.SandboxRejected(fmt.Sprintf("app %q: empty welcome screen", meta.ID))
	}
	if utf8.RuneCountInString(welcome) > constants.ScreenTextMaxLength {
		return apperr.SandboxRejected(fmt.Sprintf("app %q: welcome screen exceeds %d characters", meta.ID, constants.ScreenTextMaxLength))
	}

	help := candidate.Help(nil)
	if utf8.RuneCountInString(help) > constants.ScreenTextMaxLength {
		return apperr.SandboxRejected(fmt.Sprintf("app %q: help text exceeds %d characters", meta.ID, constants.ScreenTextMaxLength))
	}

	result, err := candidate.HandleCommand(ctx, nil, "HELP", probeView())
	if err != nil {
		return apperr.SandboxRejected(fmt.Sprintf("app %q: HELP probe failed: %v", meta.ID, err))
	}
	if utf8.RuneCountInString(result.Response) > constants.ScreenTextMaxLength {
		return apperr.SandboxRejected(fmt.Sprintf("app %q: HELP probe response exceeds %d characters", meta.ID, constants.ScreenTextMaxLength))
	}

	return nil
}

// probeView is the throwaway anonymous session used for admission probes.
func probeView() SessionView {
	return SessionView{
		Key:            "probe",
		CurrentArea:    constants.AreaMain,
		CommandHistory: []string{},
		Data:           map[string]any{},
	}
}

// # Input / Output Sanitizers

// SanitizeScreenID strips every character outside [A-Za-z0-9_-] from a
// screen identifier. Used on both input screen ids and returned ones.
func SanitizeScreenID(screenID string) string {
	var builder strings.Builder
	for _, r := range screenID {
		if isIdentifierRune(r) {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// SanitizeIdentifier strips unsafe characters from user ids and namespaces
// before they become part of a storage scope.
func SanitizeIdentifier(value string) string {
	return SanitizeScreenID(value)
}

// TruncateCommand bounds raw command input before it reaches an app.
func TruncateCommand(command string) string {
	return truncateRunes(command, constants.CommandMaxLength)
}

// TruncateScreenText bounds any app-produced terminal text.
func TruncateScreenText(text string) string {
	return truncateRunes(text, constants.ScreenTextMaxLength)
}

// NormalizeResult applies the host-side output rules to an app's result:
// screen ids are sanitized with the empty string normalized to nil (exit).
func NormalizeResult(result CommandResult) CommandResult {
	if result.Screen != nil {
		cleaned := SanitizeScreenID(*result.Screen)
		if cleaned == "" {
			result.Screen = nil
		} else {
			result.Screen = &cleaned
		}
	}
	result.Response = TruncateScreenText(result.Response)
	return result
}

func isIdentifierRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

func truncateRunes(value string, max int) string {
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	return string(runes[:max])
}
