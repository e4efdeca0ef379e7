// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/courier-tui/internal/config"
	"github.com/jeranaias/courier-tui/internal/model"
	"github.com/jeranaias/courier-tui/internal/session"
)

// =============================================================================
// KEY BINDINGS
// =============================================================================

// KeyMap defines the chat view's keyboard shortcuts.
type KeyMap struct {
	Send key.Binding
	Stop key.Binding
	New  key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop reply"),
		),
		New: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new conversation"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

// stateChangedMsg means coordinator state moved; re-snapshot and redraw.
type stateChangedMsg struct{}

// stopFinishedMsg means a user-initiated stop completed its teardown.
type stopFinishedMsg struct{}

// =============================================================================
// APP MODEL
// =============================================================================

// App is the Bubble Tea model for the chat interface.
type App struct {
	coord *session.Coordinator
	cfg   *config.Config
	theme *Theme
	keys  KeyMap

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	stopping bool
}

// NewApp creates the chat interface over a coordinator.
func NewApp(coord *session.Coordinator, cfg *config.Config) *App {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Focus()
	input.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	if coord.Selected() == "" {
		coord.NewConversation()
	}

	return &App{
		coord:   coord,
		cfg:     cfg,
		theme:   NewTheme(cfg.UI.Theme),
		keys:    DefaultKeyMap(),
		input:   input,
		spinner: sp,
	}
}

// Init starts the spinner and the coordinator update listener.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.waitForUpdate())
}

// waitForUpdate blocks on the coordinator's coalesced change channel.
func (a *App) waitForUpdate() tea.Cmd {
	updates := a.coord.Updates()
	return func() tea.Msg {
		<-updates
		return stateChangedMsg{}
	}
}

// Update handles Bubble Tea messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		a.refreshViewport()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit

		case key.Matches(msg, a.keys.Stop):
			if a.coord.IsStreaming() && !a.stopping {
				a.stopping = true
				coord := a.coord
				cmds = append(cmds, func() tea.Msg {
					// Stop blocks on teardown; keep it off the UI loop.
					coord.Stop()
					return stopFinishedMsg{}
				})
			}

		case key.Matches(msg, a.keys.New):
			if !a.coord.IsStreaming() {
				a.coord.NewConversation()
				a.refreshViewport()
			}

		case key.Matches(msg, a.keys.Send):
			if cmd := a.send(); cmd != nil {
				cmds = append(cmds, cmd)
			}

		default:
			var cmd tea.Cmd
			a.input, cmd = a.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case stateChangedMsg:
		a.refreshViewport()
		cmds = append(cmds, a.waitForUpdate())

	case stopFinishedMsg:
		a.stopping = false
		a.refreshViewport()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

// send submits the input box as a new turn.
func (a *App) send() tea.Cmd {
	text := strings.TrimSpace(a.input.Value())
	if text == "" || a.coord.IsStreaming() {
		return nil
	}
	a.input.Reset()

	coord := a.coord
	req := session.Request{
		Text:      text,
		Provider:  a.cfg.Chat.Provider,
		Mood:      a.cfg.Chat.Mood,
		WebSearch: a.cfg.Chat.WebSearch,
	}
	return func() tea.Msg {
		// The coordinator streams in the background and signals through
		// Updates; nothing to deliver here.
		coord.Send(context.Background(), req)
		return nil
	}
}

// =============================================================================
// LAYOUT AND RENDERING
// =============================================================================

func (a *App) layout() {
	headerHeight := 1
	inputHeight := 3
	statusHeight := 1
	vpHeight := a.height - headerHeight - inputHeight - statusHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !a.ready {
		a.viewport = viewport.New(a.width, vpHeight)
		a.ready = true
	} else {
		a.viewport.Width = a.width
		a.viewport.Height = vpHeight
	}
	a.input.Width = a.width - 6
}

// refreshViewport re-renders the conversation into the viewport and keeps
// the view pinned to the newest content.
func (a *App) refreshViewport() {
	if !a.ready {
		return
	}
	a.viewport.SetContent(a.renderConversation())
	a.viewport.GotoBottom()
}

func (a *App) renderConversation() string {
	var b strings.Builder

	for _, msg := range a.coord.Snapshots() {
		switch msg.Role {
		case model.RoleUser:
			b.WriteString(a.theme.UserLabel.Render("You"))
		default:
			b.WriteString(a.theme.BotLabel.Render("Assistant"))
		}
		b.WriteString("\n")

		if msg.Role == model.RoleAssistant {
			a.renderAssistantBody(&b, msg)
		} else {
			b.WriteString(a.theme.Body.Render(msg.Content))
		}
		if a.cfg.UI.CompactMode {
			b.WriteString("\n")
		} else {
			b.WriteString("\n\n")
		}
	}

	return b.String()
}

func (a *App) renderAssistantBody(b *strings.Builder, msg model.Snapshot) {
	showReasoning := a.cfg.UI.ShowReasoning && !a.cfg.UI.CompactMode
	if showReasoning && msg.Reasoning != "" && msg.Phase != model.PhaseDone {
		b.WriteString(a.theme.Reasoning.Render(msg.Reasoning))
		b.WriteString("\n")
	}

	for _, tool := range msg.ActiveTools {
		b.WriteString(a.theme.ToolLine.Render(a.spinner.View() + " " + tool))
		b.WriteString("\n")
	}

	switch {
	case msg.Failed:
		b.WriteString(a.theme.ErrorText.Render(msg.Content))
	case msg.Content != "":
		b.WriteString(a.theme.Body.Render(msg.Content))
	case msg.Phase == model.PhaseThinking:
		b.WriteString(a.theme.Hint.Render(a.spinner.View() + " thinking..."))
	}
}

// View renders the full frame.
func (a *App) View() string {
	if !a.ready {
		return "starting..."
	}

	title := a.coord.Title()
	if title == "" {
		title = "courier"
	}
	header := a.theme.Header.Render(truncateToWidth(title, a.width))

	status := a.statusLine()

	return header + "\n" +
		a.viewport.View() + "\n" +
		a.theme.InputBox.Width(a.width - 2).Render(a.input.View()) + "\n" +
		status
}

func (a *App) statusLine() string {
	var parts []string
	if a.stopping {
		parts = append(parts, "stopping...")
	} else if a.coord.IsStreaming() {
		parts = append(parts, a.spinner.View()+" streaming")
		parts = append(parts, a.keys.Stop.Help().Key+" "+a.keys.Stop.Help().Desc)
	} else {
		parts = append(parts,
			a.keys.Send.Help().Key+" "+a.keys.Send.Help().Desc,
			a.keys.New.Help().Key+" "+a.keys.New.Help().Desc,
			a.keys.Quit.Help().Key+" "+a.keys.Quit.Help().Desc,
		)
	}
	return a.theme.StatusBar.Render(truncateToWidth(strings.Join(parts, "  ·  "), a.width))
}
