// Package sqlite provides the persistent implementation of driven.VectorStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Documents, their float32 embeddings and
// the model binding live in a single database file.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.ragpipe/data/vectors.db
//
// # Model Binding
//
// The first write records the embedding model and dimension. Opening the store
// with a different model fails with domain.ErrModelMismatch.
//
// # Search
//
// Search is an exact scan. Embeddings are loaded incrementally into memory and
// scored by cosine similarity; ties are broken by insertion order.
//
// # Thread Safety
//
// All operations are thread-safe. Writes are serialised by the store and SQLite
// runs in WAL mode so readers in other processes see committed documents.
package sqlite
