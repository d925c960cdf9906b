// Package ingest provides the ingestion view for the TUI.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
)

// ErrNoIngestService indicates that no ingest service was provided.
var ErrNoIngestService = errors.New("ingest service is required")

// stagePoll is how often the running job's stage is shown.
const stagePoll = 250 * time.Millisecond

type stageTick struct{}

// View takes a folder path or URLs and runs an ingestion job.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.Prompt
	statusbar *status.Bar

	ingest driving.IngestService
	ctx    context.Context

	running bool
	target  string
	report  *domain.BatchReport
	err     error
	width   int
}

// NewView creates a new ingestion view.
func NewView(s *styles.Styles, km *keymap.KeyMap, ingest driving.IngestService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:    s,
		keymap:    km,
		input:     input.NewPrompt(s, "Ingest:", "folder path or space-separated URLs"),
		statusbar: status.NewBar(s, km),
		ingest:    ingest,
		ctx:       context.Background(),
		width:     80,
	}
}

// WithContext sets the context used for jobs.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the ingestion view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.running {
			return v, nil
		}
		if msg.Type == tea.KeyEnter {
			return v.submit()
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd

	case stageTick:
		if !v.running || v.ingest == nil {
			return v, nil
		}
		v.statusbar.SetMessage(string(v.ingest.Stage()))
		return v, tick()

	case messages.IngestCompleted:
		v.running = false
		v.report = msg.Report
		v.err = msg.Err
		if msg.Err != nil {
			v.statusbar.SetState(status.StateError)
			v.statusbar.SetMessage(msg.Err.Error())
		} else {
			v.statusbar.SetState(status.StateReady)
			v.statusbar.SetMessage("Ingested " + msg.Target)
		}
		v.input.Reset()
		return v, v.input.Focus()
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) submit() (*View, tea.Cmd) {
	target := strings.TrimSpace(v.input.Value())
	if target == "" {
		return v, nil
	}
	if v.ingest == nil {
		v.err = ErrNoIngestService
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(v.err.Error())
		return v, nil
	}

	v.running = true
	v.target = target
	v.report = nil
	v.err = nil
	v.input.Blur()
	v.statusbar.SetState(status.StateIngesting)
	return v, tea.Batch(v.run(target), tick())
}

// run starts the job: URLs when every field is http(s), otherwise a folder.
func (v *View) run(target string) tea.Cmd {
	return func() tea.Msg {
		var (
			report *domain.BatchReport
			err    error
		)
		if urls := strings.Fields(target); allURLs(urls) {
			report, err = v.ingest.IngestURLs(v.ctx, urls)
		} else {
			report, err = v.ingest.IngestFolder(v.ctx, target)
		}
		return messages.IngestCompleted{Target: target, Report: report, Err: err}
	}
}

func allURLs(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !strings.HasPrefix(f, "http://") && !strings.HasPrefix(f, "https://") {
			return false
		}
	}
	return true
}

func tick() tea.Cmd {
	return tea.Tick(stagePoll, func(time.Time) tea.Msg { return stageTick{} })
}

// View renders the ingestion view.
func (v *View) View() string {
	sections := []string{v.input.View(), ""}
	if v.running {
		sections = append(sections, v.styles.Muted.Render("Running "+v.target+"..."))
	}
	if v.report != nil {
		sections = append(sections, v.renderReport())
	}
	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()))
	}
	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *View) renderReport() string {
	r := v.report
	lines := make([]string, 0, 4)
	if r.Completed() {
		lines = append(lines, v.styles.Success.Render(fmt.Sprintf(
			"Done. %d record(s), %d chunk(s), %d stored in %s",
			r.Records, r.Chunks, r.Stored, r.Duration().Round(time.Millisecond))))
	} else {
		lines = append(lines, v.styles.Error.Render("Incomplete: stopped at "+string(r.Stage)))
	}
	for _, o := range r.Skipped() {
		lines = append(lines, v.styles.Warning.Render(fmt.Sprintf("  %-8s %s: %s", o.Status, o.Item, o.Reason)))
	}
	return strings.Join(lines, "\n")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, _ int) {
	v.width = width
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
}

// Running reports whether a job is in progress.
func (v *View) Running() bool {
	return v.running
}

// Report returns the last job report.
func (v *View) Report() *domain.BatchReport {
	return v.report
}

// Err returns the last error, if any.
func (v *View) Err() error {
	return v.err
}
