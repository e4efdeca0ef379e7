// courier - terminal client for a streaming assistant backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/courier-tui/internal/backend"
	"github.com/jeranaias/courier-tui/internal/cli"
	"github.com/jeranaias/courier-tui/internal/config"
	"github.com/jeranaias/courier-tui/internal/session"
	"github.com/jeranaias/courier-tui/internal/telemetry"
	"github.com/jeranaias/courier-tui/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	backendURL := flag.String("backend", "", "backend base URL (overrides config)")
	provider := flag.String("provider", "", "provider identifier (overrides config)")
	noPoll := flag.Bool("no-poll", false, "disable background conversation refresh")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("courier %s (%s)\n", Version, GitCommit)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "courier: %v\n", err)
		os.Exit(1)
	}
	if *backendURL != "" {
		cfg.BackendURL = *backendURL
	}
	if *provider != "" {
		cfg.Chat.Provider = *provider
	}
	if *noPoll {
		cfg.Poll.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "courier: %v\n", err)
		os.Exit(1)
	}

	// Telemetry is local-only and best-effort; a broken database never
	// blocks chatting.
	var recorder *telemetry.Recorder
	if cfg.Telemetry.Enabled {
		if store, err := telemetry.OpenStore(cfg.Telemetry.DBPath); err == nil {
			defer store.Close()
			recorder = telemetry.NewRecorder(store)
		}
	}

	var clientOpts []backend.Option
	if recorder != nil {
		clientOpts = append(clientOpts, backend.WithMalformedFrameHook(recorder.RecordMalformedFrame))
	}
	client := backend.NewClient(cfg.BackendURL, clientOpts...)

	coord := session.NewCoordinator(client)
	if recorder != nil {
		coord.SetChunkObserver(recorder.RecordChunk)
	}

	localID := coord.NewConversation()
	if cfg.Poll.Enabled {
		coord.StartPolling(localID, cfg.PollInterval())
		defer coord.StopPolling()
	}

	// Live-reload config edits into the pieces that can take them.
	if path, err := config.Path(); err == nil {
		if w, werr := config.NewWatcher(path, func(next *config.Config) {
			cfg.Chat = next.Chat
			cfg.UI = next.UI
		}); werr == nil {
			defer w.Close()
		}
	}

	// One-shot mode: courier ask "question"
	if args := flag.Args(); len(args) > 0 && args[0] == "ask" {
		text := strings.TrimSpace(strings.Join(args[1:], " "))
		if text == "" {
			fmt.Fprintln(os.Stderr, "usage: courier ask <message>")
			os.Exit(2)
		}
		if err := cli.Ask(context.Background(), coord, cfg, text); err != nil {
			fmt.Fprintf(os.Stderr, "courier: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if !cli.IsInteractive() {
		fmt.Fprintln(os.Stderr, "courier: not a terminal; use: courier ask <message>")
		os.Exit(2)
	}

	// Plain REPL on request, full TUI otherwise.
	if len(flag.Args()) > 0 && flag.Args()[0] == "chat" {
		if err := cli.RunREPL(context.Background(), coord, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "courier: %v\n", err)
			os.Exit(1)
		}
		return
	}

	app := ui.NewApp(coord, cfg)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "courier: %v\n", err)
		os.Exit(1)
	}
}
