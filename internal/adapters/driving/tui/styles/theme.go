// Package styles provides colour themes and styling for the TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colour palette for the TUI.
type Theme struct {
	// Accent highlights titles and the selection.
	Accent lipgloss.Color

	// Source colours attribution lines.
	Source lipgloss.Color

	// Text is the default text colour.
	Text lipgloss.Color

	// Muted is for previews, hints and scores.
	Muted lipgloss.Color

	// Success marks completed jobs.
	Success lipgloss.Color

	// Warning marks skipped items.
	Warning lipgloss.Color

	// Error marks failures.
	Error lipgloss.Color

	// Border is the border colour.
	Border lipgloss.Color

	// Bar is the status bar background.
	Bar lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:  lipgloss.Color("#2DD4BF"),
		Source:  lipgloss.Color("#93C5FD"),
		Text:    lipgloss.Color("#E5E7EB"),
		Muted:   lipgloss.Color("#6B7280"),
		Success: lipgloss.Color("#86EFAC"),
		Warning: lipgloss.Color("#FCD34D"),
		Error:   lipgloss.Color("#FCA5A5"),
		Border:  lipgloss.Color("#374151"),
		Bar:     lipgloss.Color("#111827"),
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Tab      lipgloss.Style
	TabOn    lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Source   lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style

	// InputField wraps text inputs.
	InputField lipgloss.Style

	// StatusBar is the bottom line.
	StatusBar lipgloss.Style

	// Border wraps expanded chunk text.
	Border lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme: theme,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Accent),

		Tab: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		TabOn: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Bar).
			Background(theme.Accent).
			Padding(0, 1),

		Normal: lipgloss.NewStyle().
			Foreground(theme.Text),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Source: lipgloss.NewStyle().
			Foreground(theme.Source),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Accent),

		Error: lipgloss.NewStyle().
			Foreground(theme.Error),

		Success: lipgloss.NewStyle().
			Foreground(theme.Success),

		Warning: lipgloss.NewStyle().
			Foreground(theme.Warning),

		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Background(theme.Bar).
			Padding(0, 1),

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}
