// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - ExtractorRegistry: Dispatches files to a format-specific Extractor
//   - WebFetcher: Fetches a URL and returns its paragraph text
//   - TextPipeline: Cleans and chunks extracted records
//   - EmbeddingService: Turns chunk and query text into vectors
//   - VectorStore: Persists indexed documents and answers similarity queries
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - MetricsRecorder: Pipeline counters and stage timings
//   - CommandRunner: External OCR tools. Without it, OCR is skipped.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
