package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragpipe/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T, model string, dims int) (*VectorStore, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := NewVectorStore(dir, model, dims)
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })

	return store, dir
}

func testDoc(id, source string, vec ...float32) domain.IndexedDocument {
	return domain.IndexedDocument{
		ID:        id,
		Embedding: vec,
		Text:      "text of " + id,
		Metadata: map[string]string{
			domain.MetaSource:   source,
			domain.MetaPosition: "0",
		},
	}
}

func TestNewVectorStore_CreatesFile(t *testing.T) {
	store, dir := setupTestStore(t, "m", 2)

	assert.Equal(t, filepath.Join(dir, FileName), store.Path())
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewVectorStore_UnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	_, err := NewVectorStore(filepath.Join(blocker, "data"), "m", 2)
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
}

func TestVectorStore_EmptySearch(t *testing.T) {
	store, _ := setupTestStore(t, "m", 2)

	results, err := store.Search(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestVectorStore_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t, "m", 2)

	require.NoError(t, store.Add(ctx, []domain.IndexedDocument{
		testDoc("a", "a.txt", 1, 0),
		testDoc("b", "b.txt", 0, 1),
		testDoc("c", "c.txt", 1, 1),
	}))

	results, err := store.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Document.ID)
	assert.Equal(t, "text of a", results[0].Document.Text)
	assert.Equal(t, "a.txt", results[0].Document.Source())
	assert.Equal(t, []float32{1, 0}, results[0].Document.Embedding)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "c", results[1].Document.ID)
	assert.False(t, results[0].Document.CreatedAt.IsZero())
}

func TestVectorStore_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t, "m", 2)

	require.NoError(t, store.Add(ctx, []domain.IndexedDocument{testDoc("first", "x", 0, 1)}))
	require.NoError(t, store.Add(ctx, []domain.IndexedDocument{testDoc("second", "x", 0, 1)}))
	require.NoError(t, store.Add(ctx, []domain.IndexedDocument{testDoc("third", "x", 0, 1)}))

	results, err := store.Search(ctx, []float32{0, 3}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Document.ID)
	assert.Equal(t, "second", results[1].Document.ID)
	assert.Equal(t, "third", results[2].Document.ID)
}

func TestVectorStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewVectorStore(dir, "m", 2)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, []domain.IndexedDocument{
		testDoc("a", "a.txt", 1, 0),
		testDoc("b", "b.txt", 0, 1),
	}))
	require.NoError(t, store.Close())

	reopened, err := NewVectorStore(dir, "m", 2)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := reopened.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Document.ID)
	assert.Equal(t, "0", results[0].Document.Metadata[domain.MetaPosition])
}

func TestVectorStore_SeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	reader, dir := setupTestStore(t, "m", 2)

	results, err := reader.Search(ctx, []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, results)

	writer, err := NewVectorStore(dir, "m", 2)
	require.NoError(t, err)
	defer writer.Close()
	require.NoError(t, writer.Add(ctx, []domain.IndexedDocument{testDoc("a", "x", 1, 0)}))

	results, err = reader.Search(ctx, []float32{1, 0}, 4)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Document.ID)
}

func TestVectorStore_ModelBinding(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewVectorStore(dir, "model-a", 2)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, []domain.IndexedDocument{testDoc("a", "x", 1, 0)}))
	require.NoError(t, store.Close())

	t.Run("different model", func(t *testing.T) {
		_, err := NewVectorStore(dir, "model-b", 2)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrModelMismatch)
		assert.True(t, domain.IsFatal(err))
	})

	t.Run("different dimensions", func(t *testing.T) {
		_, err := NewVectorStore(dir, "model-a", 3)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("unbound open adopts binding", func(t *testing.T) {
		s, err := NewVectorStore(dir, "", 0)
		require.NoError(t, err)
		defer s.Close()

		info, err := s.Info(ctx)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", info.Backend)
		assert.Equal(t, "model-a", info.Model)
		assert.Equal(t, 2, info.Dimensions)
		assert.Equal(t, s.Path(), info.Location)
	})
}

func TestVectorStore_InfoBeforeWrite(t *testing.T) {
	store, _ := setupTestStore(t, "m", 2)

	info, err := store.Info(context.Background())
	require.NoError(t, err)
	assert.Empty(t, info.Model)
	assert.Zero(t, info.Dimensions)
}

func TestVectorStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t, "m", 2)

	err := store.Add(ctx, []domain.IndexedDocument{testDoc("a", "x", 1, 0, 0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, store.Add(ctx, []domain.IndexedDocument{testDoc("b", "x", 1, 0)}))
	_, err = store.Search(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestVectorStore_Closed(t *testing.T) {
	store, err := NewVectorStore(t.TempDir(), "m", 2)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	err = store.Add(context.Background(), []domain.IndexedDocument{testDoc("a", "x", 1, 0)})
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
}

func TestEmbeddingCodec(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 3.4e38}

	got, err := decodeEmbedding(encodeEmbedding(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = decodeEmbedding([]byte{1, 2, 3})
	assert.ErrorIs(t, err, errCorruptEmbedding)
}

func TestMigrate_Idempotent(t *testing.T) {
	store, _ := setupTestStore(t, "m", 2)

	require.NoError(t, store.migrate(migrations.FS))

	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 1, n)
}
