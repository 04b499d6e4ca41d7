// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package terminal

import "strings"

// banner is the full-fat greeting for capable terminals.
const banner = `
 _____ _____ ____  __  __ ____   ___    _    ____  ____
|_   _| ____|  _ \|  \/  | __ ) / _ \  / \  |  _ \|  _ \
  | | |  _| | |_) | |\/| |  _ \| | | |/ _ \ | |_) | | | |
  | | | |___|  _ <| |  | | |_) | |_| / ___ \|  _ <| |_| |
  |_| |_____|_| \_\_|  |_|____/ \___/_/   \_\_| \_\____/

         A multi-user bulletin board. Est. 2026.
`

// fullWelcome renders the banner above the main menu.
func fullWelcome(menu string) string {
	return strings.TrimLeft(banner, "\n") + "\n" + menu
}

// simpleWelcome is the low-bandwidth variant for simplified terminals.
func simpleWelcome(menu string) string {
	return "Welcome to TERMBOARD.\n\n" + menu
}
