package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

var ingestJSON bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest documents into the vector store",
	Long: `Extracts text from a folder or from web pages, cleans and chunks it,
embeds every chunk and appends the vectors to the store.

Files that cannot be read are reported and skipped; the rest of the batch
is still ingested. Spreadsheets are excluded.`,
}

var ingestFolderCmd = pipeline(&cobra.Command{
	Use:   "folder [path]",
	Short: "Ingest every file under a folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngestFolder,
})

var ingestWebCmd = pipeline(&cobra.Command{
	Use:   "web [url...]",
	Short: "Ingest the paragraph text of web pages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngestWeb,
})

func init() {
	ingestCmd.PersistentFlags().BoolVar(&ingestJSON, "json", false, "output the report as JSON")
	ingestCmd.AddCommand(ingestFolderCmd)
	ingestCmd.AddCommand(ingestWebCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngestFolder(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if !ingestJSON {
		cmd.Printf("Ingesting %s...\n", args[0])
	}
	report, err := ingestService.IngestFolder(cmd.Context(), args[0])
	return finishIngest(cmd, report, err)
}

func runIngestWeb(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if !ingestJSON {
		cmd.Printf("Fetching %d page(s)...\n", len(args))
	}
	report, err := ingestService.IngestURLs(cmd.Context(), args)
	return finishIngest(cmd, report, err)
}

// finishIngest prints the report, including a partial one, then returns err.
func finishIngest(cmd *cobra.Command, report *domain.BatchReport, err error) error {
	if report != nil {
		if ingestJSON {
			if jsonErr := outputReportJSON(cmd, report); jsonErr != nil {
				return jsonErr
			}
		} else {
			outputReport(cmd, report)
		}
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	return nil
}

func outputReportJSON(cmd *cobra.Command, report *domain.BatchReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputReport(cmd *cobra.Command, report *domain.BatchReport) {
	st := newStyler(cmd.OutOrStdout())

	if report.Completed() {
		cmd.Printf("%s %d record(s), %d chunk(s), %d stored in %s\n",
			st.success("Done."), report.Records, report.Chunks, report.Stored, report.Duration().Round(time.Millisecond))
	} else {
		cmd.Printf("%s stopped at %s after %s\n",
			st.failure("Incomplete:"), report.Stage, report.Duration().Round(time.Millisecond))
	}

	skipped := report.Skipped()
	if len(skipped) == 0 {
		return
	}
	cmd.Printf("\nSkipped %d item(s):\n", len(skipped))
	for _, o := range skipped {
		cmd.Printf("  %-8s %s: %s\n", o.Status, o.Item, o.Reason)
	}
}
