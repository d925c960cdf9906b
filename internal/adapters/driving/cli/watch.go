package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/services"
)

var watchDebounce time.Duration

var watchCmd = pipeline(&cobra.Command{
	Use:   "watch [folder]",
	Short: "Re-ingest files as they are created or modified",
	Long: `Watches a folder and its subfolders and ingests every file that is
created or modified. Deleted files stay in the store.

Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
})

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", services.DefaultDebounce,
		"wait this long for changes to settle before ingesting")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	w := services.NewWatcher(ingestService, args[0], watchDebounce, func(report *domain.BatchReport) {
		outputReport(cmd, report)
	})

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	if err := w.Run(cmd.Context()); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}
