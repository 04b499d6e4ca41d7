// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package shell

import (
	"strings"

	"github.com/taibuivan/termboard/internal/bbs/app"
	"github.com/taibuivan/termboard/internal/platform/constants"
	"github.com/taibuivan/termboard/internal/session"
)

// # Area Addressing
//
// A session's conversational location is either the main menu or a screen
// inside an app, encoded "<appId>:<screenId>".

// defaultScreen is the screen a caller lands on when entering an app.
const defaultScreen = "home"

// ParseArea decomposes a stored area. Empty and "main" map to the main
// menu (empty appID); an app area without a screen lands on the default
// screen.
func ParseArea(area string) (appID, screenID string) {
	area = strings.TrimSpace(area)
	if area == "" || area == constants.AreaMain {
		return "", ""
	}

	parts := strings.SplitN(area, ":", 2)
	if len(parts) == 1 || parts[1] == "" {
		return parts[0], defaultScreen
	}
	return parts[0], parts[1]
}

// FormatArea is the inverse of ParseArea.
func FormatArea(appID, screenID string) string {
	if appID == "" {
		return constants.AreaMain
	}
	if screenID == "" {
		screenID = defaultScreen
	}
	return appID + ":" + screenID
}

// viewFor projects a session into the read-only shape handed to one app.
// Only that app's own data partition is exposed, deep-copied so writes by
// the app are inert.
func viewFor(s *session.Session, appID string) app.SessionView {
	view := app.SessionView{
		Key:            s.Key,
		UserID:         s.UserID,
		Username:       s.Username,
		Role:           s.Role,
		CurrentArea:    s.CurrentArea,
		CommandHistory: append([]string(nil), s.CommandHistory...),
	}

	if bag, found := s.Data[appID]; found {
		view.Data = copyBag(bag)
	}

	return view
}

func copyBag(bag map[string]any) map[string]any {
	copied := make(map[string]any, len(bag))
	for key, value := range bag {
		copied[key] = copyValue(value)
	}
	return copied
}

func copyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return copyBag(typed)
	case []any:
		copied := make([]any, len(typed))
		for i, element := range typed {
			copied[i] = copyValue(element)
		}
		return copied
	default:
		return typed
	}
}
