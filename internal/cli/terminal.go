// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the non-TUI surfaces: one-shot ask and a plain
// line-editing REPL for terminals where the full interface is unwanted.
package cli

import (
	"os"

	"golang.org/x/term"
)

// IsInteractive reports whether stdin and stdout are both terminals. The
// REPL and the TUI require an interactive terminal; piped input gets the
// one-shot path.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
