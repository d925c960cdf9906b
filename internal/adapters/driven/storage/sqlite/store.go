package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ragpipe/internal/adapters/driven/storage/similarity"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// FileName is the database file inside the persistence directory.
const FileName = "vectors.db"

// store_meta keys.
const (
	metaModel      = "model"
	metaDimensions = "dimensions"
)

// Ensure VectorStore implements the interfaces.
var (
	_ driven.VectorStore    = (*VectorStore)(nil)
	_ driven.StoreDescriber = (*VectorStore)(nil)
)

// vector is a cached embedding keyed by its insertion sequence.
type vector struct {
	seq  int64
	vec  []float32
	norm float64
}

// VectorStore is a SQLite-backed driven.VectorStore.
type VectorStore struct {
	db   *sql.DB
	path string

	mu         sync.Mutex
	model      string
	dimensions int
	bound      bool
	vectors    []vector
	lastSeq    int64
	closed     bool
}

// NewVectorStore opens or creates the store in dataDir for the given model.
// If dataDir is empty, defaults to ~/.ragpipe/data.
// An empty model opens the store with whatever binding it already has.
func NewVectorStore(dataDir, model string, dimensions int) (*VectorStore, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, &domain.StoreError{Op: "open", Err: fmt.Errorf("getting home directory: %w", err)}
		}
		dataDir = filepath.Join(home, ".ragpipe", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, &domain.StoreError{Op: "open", Err: fmt.Errorf("creating data directory: %w", err)}
	}

	dbPath := filepath.Join(dataDir, FileName)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &domain.StoreError{Op: "open", Err: fmt.Errorf("opening database: %w", err)}
	}

	s := &VectorStore{
		db:         db,
		path:       dbPath,
		model:      model,
		dimensions: dimensions,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, &domain.StoreError{Op: "open", Err: fmt.Errorf("running migrations: %w", err)}
	}

	if err := s.bind(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *VectorStore) Path() string {
	return s.path
}

// bind compares the configured model with the one recorded in store_meta.
func (s *VectorStore) bind() error {
	meta, err := s.readMeta(context.Background())
	if err != nil {
		return &domain.StoreError{Op: "open", Err: err}
	}

	storedModel := meta[metaModel]
	if storedModel == "" {
		return nil
	}
	storedDims, _ := strconv.Atoi(meta[metaDimensions])

	if s.model != "" && s.model != storedModel {
		return &domain.StoreError{
			Op:  "open",
			Err: fmt.Errorf("%w: store was built with %q, configured model is %q", domain.ErrModelMismatch, storedModel, s.model),
		}
	}
	if s.dimensions > 0 && storedDims > 0 && s.dimensions != storedDims {
		return &domain.StoreError{
			Op:  "open",
			Err: fmt.Errorf("%w: store has %d, configured %d", domain.ErrDimensionMismatch, storedDims, s.dimensions),
		}
	}

	s.model = storedModel
	s.dimensions = storedDims
	s.bound = true
	return nil
}

func (s *VectorStore) readMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM store_meta")
	if err != nil {
		return nil, fmt.Errorf("reading store metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning store metadata: %w", err)
		}
		meta[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating store metadata: %w", err)
	}
	return meta, nil
}

// Add appends documents in a single transaction.
func (s *VectorStore) Add(ctx context.Context, docs []domain.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &domain.StoreError{Op: "add", Err: domain.ErrStoreClosed}
	}

	dims := s.dimensions
	if dims == 0 {
		dims = len(docs[0].Embedding)
	}
	for _, doc := range docs {
		if len(doc.Embedding) == 0 || len(doc.Embedding) != dims {
			return &domain.StoreError{
				Op:  "add",
				Err: fmt.Errorf("%w: document %s has %d, store has %d", domain.ErrDimensionMismatch, doc.ID, len(doc.Embedding), dims),
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StoreError{Op: "add", Err: fmt.Errorf("beginning transaction: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	if !s.bound {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO store_meta (key, value) VALUES (?, ?), (?, ?)",
			metaModel, s.model, metaDimensions, strconv.Itoa(dims)); err != nil {
			return &domain.StoreError{Op: "add", Err: fmt.Errorf("recording model binding: %w", err)}
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, text, source, metadata, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return &domain.StoreError{Op: "add", Err: fmt.Errorf("preparing insert: %w", err)}
	}
	defer stmt.Close()

	now := time.Now()
	for _, doc := range docs {
		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return &domain.StoreError{Op: "add", Err: fmt.Errorf("marshalling metadata: %w", err)}
		}
		created := doc.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Text, doc.Source(), string(metaJSON),
			encodeEmbedding(doc.Embedding), created.UnixNano()); err != nil {
			return &domain.StoreError{Op: "add", Err: fmt.Errorf("inserting document %s: %w", doc.ID, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StoreError{Op: "add", Err: fmt.Errorf("committing: %w", err)}
	}

	s.dimensions = dims
	s.bound = true
	logger.Debug("sqlite: stored %d documents in %s", len(docs), s.path)
	return nil
}

// Search returns up to k documents by cosine similarity.
func (s *VectorStore) Search(ctx context.Context, embedding []float32, k int) ([]domain.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, &domain.StoreError{Op: "search", Err: domain.ErrStoreClosed}
	}
	if k <= 0 {
		return []domain.QueryResult{}, nil
	}

	if err := s.refresh(ctx); err != nil {
		return nil, &domain.StoreError{Op: "search", Err: err}
	}
	if len(s.vectors) == 0 {
		return []domain.QueryResult{}, nil
	}
	if len(embedding) != s.dimensions {
		return nil, &domain.StoreError{
			Op:  "search",
			Err: fmt.Errorf("%w: query has %d, store has %d", domain.ErrDimensionMismatch, len(embedding), s.dimensions),
		}
	}

	queryNorm := similarity.Norm(embedding)
	cands := make([]similarity.Candidate, len(s.vectors))
	for i, v := range s.vectors {
		cands[i] = similarity.Candidate{
			Seq:   v.seq,
			Score: similarity.CosineNorm(embedding, queryNorm, v.vec, v.norm),
			Index: i,
		}
	}
	top := similarity.TopK(cands, k)

	docs, err := s.load(ctx, top)
	if err != nil {
		return nil, &domain.StoreError{Op: "search", Err: err}
	}

	results := make([]domain.QueryResult, 0, len(top))
	for _, c := range top {
		doc, ok := docs[c.Seq]
		if !ok {
			continue
		}
		doc.Embedding = append([]float32(nil), s.vectors[c.Index].vec...)
		results = append(results, domain.QueryResult{Document: doc, Score: c.Score})
	}
	return results, nil
}

// refresh loads embeddings written since the last call, including those
// written by other processes (caller must hold lock).
func (s *VectorStore) refresh(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, embedding FROM documents WHERE seq > ? ORDER BY seq", s.lastSeq)
	if err != nil {
		return fmt.Errorf("loading embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var blob []byte
		if err := rows.Scan(&seq, &blob); err != nil {
			return fmt.Errorf("scanning embedding: %w", err)
		}
		vec, err := decodeEmbedding(blob)
		if err != nil {
			return fmt.Errorf("document seq %d: %w", seq, err)
		}
		s.vectors = append(s.vectors, vector{seq: seq, vec: vec, norm: similarity.Norm(vec)})
		s.lastSeq = seq
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating embeddings: %w", err)
	}

	if s.dimensions == 0 && len(s.vectors) > 0 {
		s.dimensions = len(s.vectors[0].vec)
	}
	return nil
}

// load fetches the documents for the given candidates keyed by seq.
func (s *VectorStore) load(ctx context.Context, cands []similarity.Candidate) (map[int64]domain.IndexedDocument, error) {
	if len(cands) == 0 {
		return map[int64]domain.IndexedDocument{}, nil
	}

	placeholders := make([]string, len(cands))
	args := make([]any, len(cands))
	for i, c := range cands {
		placeholders[i] = "?"
		args[i] = c.Seq
	}

	//nolint:gosec // placeholders only
	query := "SELECT seq, id, text, metadata, created_at FROM documents WHERE seq IN (" +
		strings.Join(placeholders, ",") + ")"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[int64]domain.IndexedDocument, len(cands))
	for rows.Next() {
		var seq, created int64
		var doc domain.IndexedDocument
		var metaJSON string
		if err := rows.Scan(&seq, &doc.ID, &doc.Text, &metaJSON, &created); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
		doc.CreatedAt = time.Unix(0, created)
		docs[seq] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// Count returns the number of stored documents.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, &domain.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// Info reports the recorded model binding.
func (s *VectorStore) Info(ctx context.Context) (driven.StoreInfo, error) {
	meta, err := s.readMeta(ctx)
	if err != nil {
		return driven.StoreInfo{}, &domain.StoreError{Op: "info", Err: err}
	}
	dims, _ := strconv.Atoi(meta[metaDimensions])
	return driven.StoreInfo{
		Backend:    domain.StoreSQLite.String(),
		Model:      meta[metaModel],
		Dimensions: dims,
		Location:   s.path,
	}, nil
}

// Close closes the database connection.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.vectors = nil
	return s.db.Close()
}

// migrate runs all pending migrations.
func (s *VectorStore) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_init.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// encodeEmbedding packs a vector as little-endian float32s.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

var errCorruptEmbedding = errors.New("corrupt embedding")

func decodeEmbedding(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", errCorruptEmbedding, len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
