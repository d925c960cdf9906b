package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragpipe/internal/adapters/driving/api"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/mcp"
)

var (
	serveAddr      string
	serveRateLimit float64
	serveBurst     int
	serveMCP       bool
)

var serveCmd = pipeline(&cobra.Command{
	Use:   "serve",
	Short: "Serve the query and ingest HTTP API",
	Long: `Starts an HTTP server exposing:

  POST /api/query          {"question": "...", "k": 4}
  POST /api/ingest/web     {"urls": ["https://..."]}
  POST /api/ingest/folder  {"path": "/srv/docs"}
  GET  /api/stats
  GET  /healthz
  GET  /metrics            Prometheus metrics
  POST /mcp                MCP streamable HTTP (with --mcp)`,
	Args: cobra.NoArgs,
	RunE: runServe,
})

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate-limit", 5, "API requests per second per client (0 = unlimited)")
	serveCmd.Flags().IntVar(&serveBurst, "burst", 10, "API request burst per client")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also serve the MCP endpoint at /mcp")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if ingestService == nil || retrievalService == nil {
		return errors.New("pipeline services not configured")
	}

	cfg := api.Config{
		RateLimit: serveRateLimit,
		Burst:     serveBurst,
		Recorder:  requestRecorder,
		Metrics:   metricsHandler,
	}
	if serveMCP {
		server, err := mcp.NewServer(&mcp.Ports{Retrieval: retrievalService, Ingest: ingestService}, mcp.WithVersion(version))
		if err != nil {
			return err
		}
		cfg.MCP = server.Handler()
	}
	router := api.NewRouter(ingestService, retrievalService, cfg)

	cmd.Printf("Serving on %s\n", serveAddr)
	return api.NewServer(serveAddr, router).Run(cmd.Context())
}
