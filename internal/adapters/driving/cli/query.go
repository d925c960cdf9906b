package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// snippetLength is how many characters of each result are shown.
const snippetLength = 200

var (
	queryLimit int
	queryJSON  bool
)

var queryCmd = pipeline(&cobra.Command{
	Use:   "query [question]",
	Short: "Retrieve the chunks most similar to a question",
	Long: `Embeds the question with the store's embedding model and returns the
closest chunks by cosine similarity, best first, with their source.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
})

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", domain.DefaultRetrievalK, "number of results")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	results, err := retrievalService.Retrieve(cmd.Context(), args[0], queryLimit)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, results)
	}
	return outputQueryTable(cmd, results)
}

// queryResultJSON is the JSON form of a result.
type queryResultJSON struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func toResultJSON(results []domain.QueryResult) []queryResultJSON {
	out := make([]queryResultJSON, len(results))
	for i, r := range results {
		out[i] = queryResultJSON{
			ID:       r.Document.ID,
			Source:   r.Document.Source(),
			Score:    r.Score,
			Text:     r.Document.Text,
			Metadata: r.Document.Metadata,
		}
	}
	return out
}

func outputQueryJSON(cmd *cobra.Command, results []domain.QueryResult) error {
	data, err := json.MarshalIndent(toResultJSON(results), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryTable(cmd *cobra.Command, results []domain.QueryResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	st := newStyler(cmd.OutOrStdout())
	cmd.Println(st.heading("Results:"))
	cmd.Println()
	for i, r := range results {
		// Format: [N] source (score)
		cmd.Printf("  [%d] %s %s\n", i+1, r.Document.Source(), st.dim(fmt.Sprintf("(%.3f)", r.Score)))
		if snippet := snippet(r.Document.Text, snippetLength); snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}
	return nil
}

// snippet collapses whitespace and truncates text to n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
