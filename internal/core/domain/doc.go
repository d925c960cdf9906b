// Package domain defines the core entities of the ragpipe ingestion and
// retrieval pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceRecord: Text extracted from one file or URL
//   - Chunk: A bounded, overlapping segment of one record
//   - IndexedDocument: An embedded chunk as held by a vector store
//   - BatchReport: The per-job account of what was ingested or skipped
//   - Format: The closed set of extraction strategies
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
