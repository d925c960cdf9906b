// Package mcp provides an MCP (Model Context Protocol) server adapter for ragpipe.
// It lets AI assistants retrieve indexed chunks and trigger ingestion.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// ErrIngestDisabled is returned by ingestion tools when no ingest service is configured.
var ErrIngestDisabled = errors.New("mcp: ingestion is not enabled")
