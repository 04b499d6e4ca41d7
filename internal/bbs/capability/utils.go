// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package capability

import (
	"strings"
	"time"

	"github.com/taibuivan/termboard/internal/bbs/app"
)

// displayDateFormat is the board's standard timestamp rendering.
const displayDateFormat = "Jan 02, 2006 15:04"

// maxSeparatorWidth keeps apps from rendering absurdly wide rules.
const maxSeparatorWidth = 120

// boardUtils implements [app.Utils] with pure functions only.
type boardUtils struct{}

// FormatDate renders a timestamp in the board's standard display format.
func (boardUtils) FormatDate(t time.Time) string {
	return t.Format(displayDateFormat)
}

// BoxedTitle renders a title inside an ASCII box:
//
//	+-----------+
//	|   TITLE   |
//	+-----------+
func (boardUtils) BoxedTitle(title string) string {
	title = strings.TrimSpace(title)
	inner := "   " + title + "   "
	border := "+" + strings.Repeat("-", len(inner)) + "+"

	return border + "\n|" + inner + "|\n" + border
}

// Separator renders a horizontal rule of the given character and width.
// Multi-rune characters are truncated to their first rune; width is
// clamped to [1, 120].
func (boardUtils) Separator(char string, width int) string {
	runes := []rune(char)
	if len(runes) == 0 {
		runes = []rune{'-'}
	}
	if width < 1 {
		width = 1
	}
	if width > maxSeparatorWidth {
		width = maxSeparatorWidth
	}

	return strings.Repeat(string(runes[0]), width)
}

// compile-time contract check
var _ app.Utils = boardUtils{}
