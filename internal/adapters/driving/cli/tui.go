package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui"
)

var tuiLimit int

// tuiCmd represents the tui command.
var tuiCmd = pipeline(&cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal UI for asking questions and ingesting
folders or web pages.

Controls:
  Enter    - Ask / Run ingestion / Expand result
  ↑/k, ↓/j - Navigate results
  n        - New question
  Tab      - Switch between Query and Ingest
  Esc, q   - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
})

func init() {
	tuiCmd.Flags().IntVarP(&tuiLimit, "limit", "n", 0, "results per question (default 4)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	app, err := tui.NewApp(&tui.Ports{
		Retrieval: retrievalService,
		Ingest:    ingestService,
		K:         tuiLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
