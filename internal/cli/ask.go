// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/courier-tui/internal/config"
	"github.com/jeranaias/courier-tui/internal/model"
	"github.com/jeranaias/courier-tui/internal/session"
)

var (
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	thinkingNote = lipgloss.NewStyle().Faint(true)
)

// =============================================================================
// ONE-SHOT ASK
// =============================================================================

// Ask sends a single message and streams the reply to stdout. It blocks
// until the reply is terminal and returns an error only for setup
// failures; backend failures arrive as the reply text itself.
func Ask(ctx context.Context, coord *session.Coordinator, cfg *config.Config, text string) error {
	handle, err := coord.Send(ctx, session.Request{
		Text:      text,
		Provider:  cfg.Chat.Provider,
		Mood:      cfg.Chat.Mood,
		WebSearch: cfg.Chat.WebSearch,
	})
	if err != nil {
		return err
	}

	streamToStdout(coord, handle)
	return nil
}

// streamToStdout prints reply text incrementally as the coordinator
// signals changes, then a final newline once the message is done.
func streamToStdout(coord *session.Coordinator, handle *session.Handle) {
	printed := 0
	notedThinking := false

	flush := func() {
		snap := handle.Snapshot()
		if !notedThinking && snap.Phase == model.PhaseThinking && snap.Content == "" {
			fmt.Fprintln(os.Stderr, thinkingNote.Render("thinking..."))
			notedThinking = true
		}
		if len(snap.Content) > printed {
			fmt.Print(snap.Content[printed:])
			printed = len(snap.Content)
		}
	}

	for {
		select {
		case <-coord.Updates():
			flush()
		case <-handle.Done():
			flush()
			fmt.Println()
			return
		}
	}
}

// =============================================================================
// INTERACTIVE REPL
// =============================================================================

// InputReader provides line editing and persistent input history.
// USABILITY: arrow keys navigate history like a shell.
type InputReader struct {
	line        *liner.State
	historyFile string
}

// NewInputReader creates a line reader with history stored under the
// config directory.
func NewInputReader() *InputReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &InputReader{
		line:        line,
		historyFile: filepath.Join(dir, "ask_history"),
	}

	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// Read reads one line with the given prompt and records it in history.
func (r *InputReader) Read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close persists history and restores the terminal.
func (r *InputReader) Close() {
	if err := config.EnsureDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// RunREPL runs the plain-terminal chat loop: read a line, stream the
// reply, repeat. Exits on Ctrl+C, Ctrl+D, or "exit"/"quit".
func RunREPL(ctx context.Context, coord *session.Coordinator, cfg *config.Config) error {
	reader := NewInputReader()
	defer reader.Close()

	for {
		input, err := reader.Read(promptStyle.Render("courier> "))
		if err != nil {
			// Ctrl+C (ErrPromptAborted) or Ctrl+D both end the session.
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}
		if input == "/new" {
			coord.NewConversation()
			fmt.Println(thinkingNote.Render("started a new conversation"))
			continue
		}

		if err := Ask(ctx, coord, cfg, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
	}
}
