package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/views/ingest"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	queryView  *search.View
	ingestView *ingest.View

	currentView messages.ViewType
	stats       domain.StoreStats
	statsErr    error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	a := &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		queryView:   search.NewView(s, km, ports.Retrieval, ports.K),
		currentView: messages.ViewQuery,
	}
	if ports.Ingest != nil {
		a.ingestView = ingest.NewView(s, km, ports.Ingest)
	}
	return a, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.queryView.WithContext(ctx)
	if a.ingestView != nil {
		a.ingestView.WithContext(ctx)
	}
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("ragpipe"),
		a.queryView.Init(),
		a.loadStats(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.StatsLoaded:
		a.stats = msg.Stats
		a.statsErr = msg.Err
		return a, nil

	case messages.ViewChanged:
		a.switchTo(msg.View)
		return a, nil

	case messages.IngestCompleted:
		if a.ingestView == nil {
			return a, nil
		}
		a.ingestView, cmd = a.ingestView.Update(msg)
		return a, tea.Batch(cmd, a.loadStats())
	}

	if a.currentView == messages.ViewIngest && a.ingestView != nil {
		a.ingestView, cmd = a.ingestView.Update(msg)
		return a, cmd
	}
	a.queryView, cmd = a.queryView.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return a, tea.Quit
	}

	if keymap.Matches(key, a.keymap.SwitchView) && a.ingestView != nil && !a.ingestView.Running() {
		if a.currentView == messages.ViewQuery {
			a.switchTo(messages.ViewIngest)
		} else {
			a.switchTo(messages.ViewQuery)
		}
		return a, nil
	}

	var cmd tea.Cmd
	if a.currentView == messages.ViewIngest {
		if msg.Type == tea.KeyEsc && !a.ingestView.Running() {
			a.switchTo(messages.ViewQuery)
			return a, nil
		}
		a.ingestView, cmd = a.ingestView.Update(msg)
		return a, cmd
	}

	// q quits only while browsing results; in the input it is a letter.
	if !a.queryView.InputFocused() && key == "q" {
		return a, tea.Quit
	}
	if msg.Type == tea.KeyEsc && a.queryView.InputFocused() {
		return a, tea.Quit
	}
	a.queryView, cmd = a.queryView.Update(msg)
	return a, cmd
}

func (a *App) switchTo(view messages.ViewType) {
	if view == messages.ViewIngest && a.ingestView == nil {
		return
	}
	a.currentView = view
}

// loadStats reads the store statistics shown in the header.
func (a *App) loadStats() tea.Cmd {
	retrieval := a.ports.Retrieval
	ctx := a.ctx
	return func() tea.Msg {
		stats, err := retrieval.Stats(ctx)
		return messages.StatsLoaded{Stats: stats, Err: err}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	body := a.queryView.View()
	if a.currentView == messages.ViewIngest {
		body = a.ingestView.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, a.header(), "", body)
}

func (a *App) header() string {
	tabs := []string{a.styles.Title.Render("ragpipe"), " "}
	tabs = append(tabs, a.tab("Query", messages.ViewQuery))
	if a.ingestView != nil {
		tabs = append(tabs, a.tab("Ingest", messages.ViewIngest))
	}

	var info string
	if a.statsErr != nil {
		info = a.styles.Error.Render("store: " + a.statsErr.Error())
	} else if a.stats.Backend != "" {
		info = a.styles.Muted.Render(fmt.Sprintf("%s | %s (%d dims) | %d chunks",
			a.stats.Backend, a.stats.Model, a.stats.Dimensions, a.stats.Documents))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, append(tabs, "  ", info)...)
}

func (a *App) tab(label string, view messages.ViewType) string {
	if a.currentView == view {
		return a.styles.TabOn.Render(label)
	}
	return a.styles.Tab.Render(label)
}

// SetDimensions sizes every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.queryView.SetDimensions(width, height-2)
	if a.ingestView != nil {
		a.ingestView.SetDimensions(width, height-2)
	}
}

// CurrentView returns the active view.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Stats returns the last loaded store statistics.
func (a *App) Stats() domain.StoreStats {
	return a.stats
}

// Ready reports whether the terminal size is known.
func (a *App) Ready() bool {
	return a.ready
}
