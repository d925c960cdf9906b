// Package driving defines what the CLI, HTTP API, MCP server and TUI may
// ask of the core: ingest sources, retrieve chunks and manage settings.
// internal/core/services implements every interface here.
package driving
