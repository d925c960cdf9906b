package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragpipe/internal/adapters/driving/api"
	"github.com/custodia-labs/ragpipe/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = pipeline(&cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can retrieve
indexed chunks and trigger ingestion.

Tools: retrieve, ingest_urls, ingest_folder. Resource: ragpipe://stats.

By default the server speaks JSON-RPC over stdio. Use --port to serve
streamable HTTP instead.

Examples:
  ragpipe mcp serve
  ragpipe mcp serve --port 8081

Assistant configuration:
  {
    "mcpServers": {
      "ragpipe": {
        "command": "/path/to/ragpipe",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
})

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().Bool("read-only", false, "disable the ingestion tools")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	readOnly, err := cmd.Flags().GetBool("read-only")
	if err != nil {
		return fmt.Errorf("getting read-only flag: %w", err)
	}

	ports := &mcp.Ports{Retrieval: retrievalService}
	if !readOnly {
		ports.Ingest = ingestService
	}

	server, err := mcp.NewServer(ports, mcp.WithVersion(version))
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return api.NewServer(addr, server.Handler()).Run(cmd.Context())
	}

	return server.Run(cmd.Context())
}
