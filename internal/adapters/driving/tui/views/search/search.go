// Package search provides the query view for the TUI.
package search

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
)

// View is the question input with its results list and status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.Prompt
	list      *list.ResultList
	statusbar *status.Bar

	retrieval driving.RetrievalService
	k         int
	ctx       context.Context

	width      int
	height     int
	err        error
	focusInput bool
}

// NewView creates a new query view returning k results per question.
func NewView(s *styles.Styles, km *keymap.KeyMap, retrieval driving.RetrievalService, k int) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	if k <= 0 {
		k = domain.DefaultRetrievalK
	}

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.NewPrompt(s, "Ask:", "What do you want to know?"),
		list:       list.NewResultList(s),
		statusbar:  status.NewBar(s, km),
		retrieval:  retrieval,
		k:          k,
		ctx:        context.Background(),
		width:      80,
		height:     24,
		focusInput: true,
	}
}

// WithContext sets the context used for retrieval.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the query view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case messages.RetrievalCompleted:
		v.handleResults(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			query := strings.TrimSpace(v.input.Value())
			if query == "" {
				return v, nil
			}
			v.statusbar.SetState(status.StateRetrieving)
			v.input.Blur()
			v.focusInput = false
			return v, v.retrieve(query)
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	key := msg.String()
	switch {
	case keymap.Matches(key, v.keymap.Up):
		v.list.MoveUp()
	case keymap.Matches(key, v.keymap.Down):
		v.list.MoveDown()
	case keymap.Matches(key, v.keymap.Expand):
		v.list.ToggleExpanded()
	case keymap.Matches(key, v.keymap.NewQuery):
		v.focusInput = true
		v.input.SetValue("")
		v.statusbar.SetHints(v.keymap.InputHelp())
		return v, v.input.Focus()
	}
	return v, nil
}

// retrieve runs the query off the update loop.
func (v *View) retrieve(query string) tea.Cmd {
	return func() tea.Msg {
		if v.retrieval == nil {
			return messages.ErrorOccurred{Err: ErrNoRetrievalService}
		}
		results, err := v.retrieval.Retrieve(v.ctx, query, v.k)
		return messages.RetrievalCompleted{Query: query, Results: results, Err: err}
	}
}

func (v *View) handleResults(msg messages.RetrievalCompleted) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.err = nil
	v.list.SetResults(msg.Results)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetMessage(fmt.Sprintf("%d result(s)", len(msg.Results)))
	v.statusbar.SetHints(v.keymap.ResultsHelp())
	v.focusInput = false
	v.input.Blur()
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
	v.focusInput = true
	v.input.Focus()
}

// View renders the query view.
func (v *View) View() string {
	sections := []string{v.input.View(), ""}
	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}
	sections = append(sections, v.list.View(), "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-10)
	v.statusbar.SetWidth(width)
}

// Query returns the current question.
func (v *View) Query() string {
	return v.input.Value()
}

// Results returns the current results.
func (v *View) Results() []domain.QueryResult {
	return v.list.Results()
}

// SelectedResult returns the highlighted result, or nil.
func (v *View) SelectedResult() *domain.QueryResult {
	return v.list.SelectedResult()
}

// Err returns the last error, if any.
func (v *View) Err() error {
	return v.err
}

// InputFocused reports whether keys go to the question input.
func (v *View) InputFocused() bool {
	return v.focusInput
}
