// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides the terminal chat interface for courier.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds the styles for the chat view.
type Theme struct {
	Header    lipgloss.Style
	UserLabel lipgloss.Style
	BotLabel  lipgloss.Style
	Body      lipgloss.Style
	Reasoning lipgloss.Style
	ToolLine  lipgloss.Style
	ErrorText lipgloss.Style
	StatusBar lipgloss.Style
	InputBox  lipgloss.Style
	Hint      lipgloss.Style
}

// NewTheme builds a theme by name: "dark", "light", or "auto" which probes
// the terminal background via termenv.
func NewTheme(name string) *Theme {
	dark := true
	switch strings.ToLower(name) {
	case "light":
		dark = false
	case "auto":
		dark = termenv.HasDarkBackground()
	}

	if dark {
		return &Theme{
			Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
			UserLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
			BotLabel:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114")),
			Body:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
			Reasoning: lipgloss.NewStyle().Faint(true).Italic(true).Foreground(lipgloss.Color("245")),
			ToolLine:  lipgloss.NewStyle().Foreground(lipgloss.Color("179")),
			ErrorText: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
			StatusBar: lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("245")),
			InputBox: lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1),
			Hint: lipgloss.NewStyle().Faint(true),
		}
	}

	return &Theme{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("25")),
		UserLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("26")),
		BotLabel:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("28")),
		Body:      lipgloss.NewStyle().Foreground(lipgloss.Color("235")),
		Reasoning: lipgloss.NewStyle().Faint(true).Italic(true).Foreground(lipgloss.Color("243")),
		ToolLine:  lipgloss.NewStyle().Foreground(lipgloss.Color("130")),
		ErrorText: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("160")),
		StatusBar: lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("243")),
		InputBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("250")).
			Padding(0, 1),
		Hint: lipgloss.NewStyle().Faint(true),
	}
}

// truncateToWidth shortens a string to fit a display width, honoring wide
// runes.
// UNICODE: display width, not rune count; CJK runes occupy two cells.
func truncateToWidth(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 1 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "…")
}
