// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// ResultList displays retrieved chunks in a navigable list.
// The selected chunk can be expanded to show its full text.
type ResultList struct {
	results  []domain.QueryResult
	selected int
	expanded bool
	styles   *styles.Styles
	width    int
	height   int
}

// NewResultList creates a new result list component.
func NewResultList(s *styles.Styles) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &ResultList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// View renders the result list.
func (r *ResultList) View() string {
	if len(r.results) == 0 {
		return r.styles.Muted.Render("No results")
	}

	lines := make([]string, 0, len(r.results)+3)
	lines = append(lines, r.styles.Title.Render(fmt.Sprintf("Results (%d)", len(r.results))), "")

	// Each collapsed result takes two lines.
	visible := max((r.height-4)/2, 1)
	start := 0
	if r.selected >= visible {
		start = r.selected - visible + 1
	}
	end := min(start+visible, len(r.results))

	for i := start; i < end; i++ {
		lines = append(lines, r.renderResult(i))
	}

	if r.expanded {
		if res := r.SelectedResult(); res != nil {
			body := lipgloss.NewStyle().Width(max(r.width-4, 20)).Render(res.Document.Text)
			lines = append(lines, "", r.styles.Border.Render(body))
		}
	}

	return strings.Join(lines, "\n")
}

// renderResult formats one result as a header line and a preview line.
func (r *ResultList) renderResult(index int) string {
	res := &r.results[index]

	source := res.Document.Source()
	if source == "" {
		source = domain.UnknownSource
	}
	maxSource := max(r.width-20, 10)
	source = truncate(source, maxSource)

	header := fmt.Sprintf("[%d] %s", index+1, source)
	score := r.styles.Muted.Render(fmt.Sprintf("%.3f", res.Score))
	if index == r.selected {
		header = r.styles.Selected.Render("> " + header)
	} else {
		header = "  " + r.styles.Source.Render(header)
	}

	preview := strings.Join(strings.Fields(res.Document.Text), " ")
	preview = truncate(preview, max(r.width-6, 20))

	return header + "  " + score + "\n" + r.styles.Muted.Render("    "+preview)
}

// truncate shortens s to n runes with a trailing ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// SetResults replaces the results and resets the selection.
func (r *ResultList) SetResults(results []domain.QueryResult) {
	r.results = results
	r.selected = 0
	r.expanded = false
}

// Results returns the current results.
func (r *ResultList) Results() []domain.QueryResult {
	return r.results
}

// Selected returns the index of the selected result.
func (r *ResultList) Selected() int {
	return r.selected
}

// SelectedResult returns the currently selected result, or nil if none.
func (r *ResultList) SelectedResult() *domain.QueryResult {
	if r.selected < 0 || r.selected >= len(r.results) {
		return nil
	}
	return &r.results[r.selected]
}

// MoveUp moves selection up.
func (r *ResultList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *ResultList) MoveDown() {
	if r.selected < len(r.results)-1 {
		r.selected++
	}
}

// ToggleExpanded shows or hides the full text of the selected result.
func (r *ResultList) ToggleExpanded() {
	if len(r.results) > 0 {
		r.expanded = !r.expanded
	}
}

// Expanded reports whether the selected result's text is shown.
func (r *ResultList) Expanded() bool {
	return r.expanded
}

// SetDimensions sets the component dimensions.
func (r *ResultList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of results.
func (r *ResultList) Count() int {
	return len(r.results)
}
