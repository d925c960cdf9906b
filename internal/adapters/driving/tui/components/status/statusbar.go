// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/styles"
)

// State represents the current activity for display.
type State string

const (
	StateReady      State = "ready"
	StateRetrieving State = "retrieving"
	StateIngesting  State = "ingesting"
	StateResults    State = "results"
	StateError      State = "error"
)

// Bar displays the current activity and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	hints   []key.Binding
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		hints:  km.InputHelp(),
		width:  80,
	}
}

// View renders the status bar.
func (b *Bar) View() string {
	left := b.renderLeft()
	right := b.renderHints()

	padding := max(b.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (b *Bar) renderLeft() string {
	switch b.state {
	case StateRetrieving:
		return b.styles.Muted.Render("Retrieving...")
	case StateIngesting:
		if b.message != "" {
			return b.styles.Warning.Render("Ingesting: " + b.message)
		}
		return b.styles.Warning.Render("Ingesting...")
	case StateError:
		if b.message != "" {
			return b.styles.Error.Render("Error: " + b.message)
		}
		return b.styles.Error.Render("Error")
	case StateResults, StateReady:
		if b.message != "" {
			return b.styles.Normal.Render(b.message)
		}
	}
	return b.styles.Muted.Render("Ready")
}

func (b *Bar) renderHints() string {
	hints := make([]string, 0, len(b.hints))
	for _, binding := range b.hints {
		h := binding.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state and clears the message.
func (b *Bar) SetState(state State) {
	b.state = state
	b.message = ""
}

// State returns the current state.
func (b *Bar) State() State {
	return b.state
}

// SetMessage sets the message shown next to the state.
func (b *Bar) SetMessage(message string) {
	b.message = message
}

// Message returns the current message.
func (b *Bar) Message() string {
	return b.message
}

// SetHints replaces the keybinding hints.
func (b *Bar) SetHints(bindings []key.Binding) {
	b.hints = bindings
}

// SetWidth sets the status bar width.
func (b *Bar) SetWidth(width int) {
	b.width = width
}
