// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package shell

import (
	"fmt"
	"strings"

	"github.com/taibuivan/termboard/internal/bbs/registry"
)

// # Rendered Screens

const menuHeader = `+--------------------------------------+
|         TERMBOARD  MAIN MENU         |
+--------------------------------------+`

const logoffText = `Goodbye! Your session is preserved.
Call again any time.`

// RenderMainMenu builds the numbered app catalog shown in the main area.
func RenderMainMenu(entries []*registry.Entry) string {
	var builder strings.Builder
	builder.WriteString(menuHeader)
	builder.WriteString("\n\n")

	if len(entries) == 0 {
		builder.WriteString("No apps are installed yet.\n")
	}
	for i, entry := range entries {
		meta := entry.Meta()
		builder.WriteString(fmt.Sprintf("%2d. %s", i+1, meta.Name))
		if meta.Description != "" {
			builder.WriteString(" - " + meta.Description)
		}
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(selectionGuidance(len(entries)))
	builder.WriteString("\nType HELP for commands.")

	return builder.String()
}

// renderMainHelp is the HELP text in the main area.
func renderMainHelp(appCount int) string {
	return strings.Join([]string{
		"TERMBOARD COMMANDS",
		"",
		selectionGuidance(appCount),
		"HELP           this text",
		"MAIN / MENU    return to the main menu",
		"EXIT / QUIT    sign off (session preserved)",
		"DEBUG          session and registry diagnostics",
		"",
		"Admin: INSTALL <HOST> <URL>, UNINSTALL <HOST> <URL>, LIST <HOST> APPS",
	}, "\n")
}

// selectionGuidance names the valid numeric range for app selection.
func selectionGuidance(appCount int) string {
	if appCount == 0 {
		return "No apps to select."
	}
	if appCount == 1 {
		return "Select 1 to enter the app."
	}
	return fmt.Sprintf("Select 1..%d to enter an app.", appCount)
}
