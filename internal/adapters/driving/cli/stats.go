package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = pipeline(&cobra.Command{
	Use:   "stats",
	Short: "Show what the vector store holds",
	Long:  `Prints the store backend and location, the embedding model it is bound to and its document count.`,
	Args:  cobra.NoArgs,
	RunE:  runStats,
})

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	stats, err := retrievalService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Backend:    %s\n", stats.Backend)
	cmd.Printf("Location:   %s\n", stats.Location)
	cmd.Printf("Model:      %s\n", stats.Model)
	cmd.Printf("Dimensions: %d\n", stats.Dimensions)
	cmd.Printf("Documents:  %d\n", stats.Documents)
	return nil
}
