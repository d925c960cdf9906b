// Package app assembles ragpipe's services from settings.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/ragpipe/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/metrics"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/storage"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/web"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/core/services"
	"github.com/custodia-labs/ragpipe/internal/extractors"
	"github.com/custodia-labs/ragpipe/internal/extractors/ocr"
	"github.com/custodia-labs/ragpipe/internal/logger"
	"github.com/custodia-labs/ragpipe/internal/postprocessors"
)

// DataDirName is the store directory inside the config directory.
const DataDirName = "data"

// Options controls how the application is assembled.
type Options struct {
	// ConfigDir holds config.toml and, by default, the data directory.
	// Empty means ~/.ragpipe.
	ConfigDir string

	// PersistDir overrides store.persist_dir.
	PersistDir string

	// Version is reported in the web fetcher's User-Agent.
	Version string

	// SkipPing builds the embedder without checking it is reachable.
	SkipPing bool
}

// App holds the assembled services. Close releases the store and embedder.
type App struct {
	Settings  *domain.Settings
	Embedder  driven.EmbeddingService
	Store     driven.VectorStore
	Metrics   *metrics.Recorder
	Ingest    *services.Orchestrator
	Retrieval *services.RetrievalService
}

// ResolveConfigDir returns dir, or ~/.ragpipe when dir is empty.
func ResolveConfigDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".ragpipe"), nil
}

// NewSettingsService opens the config file in configDir.
func NewSettingsService(configDir string) (*services.SettingsService, error) {
	dir, err := ResolveConfigDir(configDir)
	if err != nil {
		return nil, err
	}
	store, err := file.NewConfigStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return services.NewSettingsService(store), nil
}

// Build assembles every service from settings.
func Build(ctx context.Context, settings *domain.Settings, opts Options) (*App, error) {
	cfg := *settings
	if opts.PersistDir != "" {
		cfg.Store.PersistDir = opts.PersistDir
	}
	if cfg.Store.PersistDir == "" {
		dir, err := ResolveConfigDir(opts.ConfigDir)
		if err != nil {
			return nil, err
		}
		cfg.Store.PersistDir = filepath.Join(dir, DataDirName)
	}

	embedder, err := newEmbedder(ctx, &cfg.Embedding, opts.SkipPing)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Store, embedder.ModelName(), embedder.Dimensions())
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	recorder := metrics.NewRecorder()

	fetcher := web.New(web.Config{
		Timeout:   cfg.Web.Timeout,
		RateLimit: cfg.Web.RateLimit,
		UserAgent: userAgent(cfg.Web.UserAgent, opts.Version),
	})

	orch := services.NewOrchestrator(
		extractors.NewDefaultRegistry(cfg.Extraction, ocr.ExecRunner{}),
		fetcher,
		postprocessors.NewDefault(cfg.Chunk),
		embedder,
		store,
		services.WithWorkers(cfg.Extraction.Workers),
		services.WithBatchSize(cfg.Embedding.BatchSize),
		services.WithMetrics(recorder),
	)

	logger.Debug("assembled %s store at %s with %s (%d dims)",
		cfg.Store.Backend, cfg.Store.PersistDir, embedder.ModelName(), embedder.Dimensions())

	return &App{
		Settings:  &cfg,
		Embedder:  embedder,
		Store:     store,
		Metrics:   recorder,
		Ingest:    orch,
		Retrieval: services.NewRetrievalService(embedder, store, recorder),
	}, nil
}

func newEmbedder(ctx context.Context, cfg *domain.EmbeddingSettings, skipPing bool) (driven.EmbeddingService, error) {
	if skipPing {
		svc, err := ai.CreateEmbeddingService(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		return svc, nil
	}
	return ai.CreateAndValidateEmbeddingService(ctx, cfg)
}

func userAgent(configured, version string) string {
	if configured != "" {
		return configured
	}
	if version == "" {
		return web.DefaultUserAgent
	}
	return web.DefaultUserAgent + "/" + version
}

// Close releases the store and the embedder.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.Embedder != nil {
		if err := a.Embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close embedder: %w", err))
		}
	}
	return errors.Join(errs...)
}
