package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragpipe/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

func hashingSettings() *domain.Settings {
	s := domain.DefaultSettings()
	s.Embedding.Provider = domain.ProviderHashing
	s.Embedding.Model = "hashing-64"
	s.Embedding.Dimensions = 64
	return &s
}

func TestBuild_IngestAndRetrieve(t *testing.T) {
	configDir := t.TempDir()
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "go.txt"),
		[]byte("Go channels let goroutines communicate safely."), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "tea.txt"),
		[]byte("Green tea is steeped at a lower temperature than black tea."), 0644))

	a, err := Build(context.Background(), hashingSettings(), Options{ConfigDir: configDir, Version: "1.2.3"})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, filepath.Join(configDir, DataDirName), a.Settings.Store.PersistDir)
	assert.FileExists(t, filepath.Join(configDir, DataDirName, sqlite.FileName))

	report, err := a.Ingest.IngestFolder(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stored)

	results, err := a.Retrieval.Retrieve(context.Background(), "goroutines and channels", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "go.txt", results[0].Document.Source())

	stats, err := a.Retrieval.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", stats.Backend)
	assert.Equal(t, "hashing-64", stats.Model)
	assert.Equal(t, 2, stats.Documents)
}

func TestBuild_PersistDirOverride(t *testing.T) {
	persist := filepath.Join(t.TempDir(), "elsewhere")

	a, err := Build(context.Background(), hashingSettings(), Options{ConfigDir: t.TempDir(), PersistDir: persist})
	require.NoError(t, err)
	defer a.Close()

	assert.FileExists(t, filepath.Join(persist, sqlite.FileName))
}

func TestBuild_MemoryBackend(t *testing.T) {
	s := hashingSettings()
	s.Store.Backend = domain.StoreMemory

	a, err := Build(context.Background(), s, Options{ConfigDir: t.TempDir()})
	require.NoError(t, err)
	defer a.Close()

	n, err := a.Retrieval.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBuild_UnavailableEmbedder(t *testing.T) {
	s := domain.DefaultSettings()
	s.Embedding.Provider = domain.ProviderOpenAI

	_, err := Build(context.Background(), &s, Options{ConfigDir: t.TempDir(), SkipPing: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestNewSettingsService(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewSettingsService(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), svc.Path())
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "custom", userAgent("custom", "1.0"))
	assert.Equal(t, "ragpipe/1.0", userAgent("", "1.0"))
	assert.Equal(t, "ragpipe", userAgent("", ""))
}
