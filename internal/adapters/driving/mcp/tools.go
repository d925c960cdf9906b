package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"the question or text to find similar chunks for"`
	K     int    `json:"k,omitempty" jsonschema:"number of chunks to return (default 4)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Results []ChunkOutput `json:"results"`
	Count   int           `json:"count"`
}

// ChunkOutput is a single retrieved chunk.
type ChunkOutput struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

// IngestURLsInput is the input schema for the ingest_urls tool.
type IngestURLsInput struct {
	URLs []string `json:"urls" jsonschema:"web pages whose paragraph text should be indexed"`
}

// IngestFolderInput is the input schema for the ingest_folder tool.
type IngestFolderInput struct {
	Path string `json:"path" jsonschema:"local folder to index recursively"`
}

// IngestOutput summarises an ingestion job.
type IngestOutput struct {
	Records   int      `json:"records"`
	Chunks    int      `json:"chunks"`
	Stored    int      `json:"stored"`
	Completed bool     `json:"completed"`
	Skipped   []string `json:"skipped,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find the indexed chunks most similar to a query",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_urls",
		Description: "Fetch web pages and index their paragraph text",
	}, s.handleIngestURLs)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_folder",
		Description: "Extract and index every supported file under a folder",
	}, s.handleIngestFolder)
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	k := input.K
	if k <= 0 {
		k = domain.DefaultRetrievalK
	}

	results, err := s.ports.Retrieval.Retrieve(ctx, input.Query, k)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Results: make([]ChunkOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		output.Results[i] = ChunkOutput{
			ID:     results[i].Document.ID,
			Source: results[i].Document.Source(),
			Score:  results[i].Score,
			Text:   results[i].Document.Text,
		}
	}

	return nil, output, nil
}

func (s *Server) handleIngestURLs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestURLsInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if s.ports.Ingest == nil {
		return nil, IngestOutput{}, ErrIngestDisabled
	}
	report, err := s.ports.Ingest.IngestURLs(ctx, input.URLs)
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, summarise(report), nil
}

func (s *Server) handleIngestFolder(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestFolderInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if s.ports.Ingest == nil {
		return nil, IngestOutput{}, ErrIngestDisabled
	}
	report, err := s.ports.Ingest.IngestFolder(ctx, input.Path)
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, summarise(report), nil
}

func summarise(report *domain.BatchReport) IngestOutput {
	out := IngestOutput{
		Records:   report.Records,
		Chunks:    report.Chunks,
		Stored:    report.Stored,
		Completed: report.Completed(),
	}
	for _, o := range report.Skipped() {
		out.Skipped = append(out.Skipped, o.Item+": "+o.Reason)
	}
	return out
}
