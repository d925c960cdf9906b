package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/ragpipe/internal/adapters/driven/embedding/cache"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/embedding/gemini"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/embedding/huggingface"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// pingTimeout is the timeout for validating embedding service connectivity.
const pingTimeout = 5 * time.Second

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns an error wrapping domain.ErrEmbeddingUnavailable if the service cannot be reached.
func CreateAndValidateEmbeddingService(
	ctx context.Context,
	settings *domain.EmbeddingSettings,
) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'ragpipe config set embedding.provider <name>' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s (%s) is not reachable: %w",
			domain.ErrEmbeddingUnavailable, settings.Provider, svc.ModelName(), err)
	}

	logger.Debug("embedding service %s (%s, %d dims) ready",
		settings.Provider, svc.ModelName(), svc.Dimensions())
	return svc, nil
}

// ValidateEmbeddingConfig creates a temporary service and pings it.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := CreateAndValidateEmbeddingService(ctx, settings)
	if err != nil {
		return err
	}
	return svc.Close()
}

// CreateEmbeddingService creates an embedding service from settings.
// When a Redis cache address is set the service is wrapped with the cache.
// An unreachable cache is logged and skipped.
func CreateEmbeddingService(
	ctx context.Context,
	settings *domain.EmbeddingSettings,
) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: no embedding settings", domain.ErrInvalidInput)
	}
	if !settings.IsConfigured() {
		if settings.Provider.RequiresAPIKey() {
			return nil, fmt.Errorf("%w: %s requires an API key", domain.ErrInvalidInput, settings.Provider)
		}
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, settings.Provider)
	}

	svc, err := createProvider(ctx, settings)
	if err != nil {
		return nil, err
	}

	if settings.CacheRedisAddr == "" {
		return svc, nil
	}
	cached, err := cache.Dial(ctx, svc, settings.CacheRedisAddr, settings.CacheTTL)
	if err != nil {
		logger.Warn("embedding cache at %s unavailable, continuing without it: %v", settings.CacheRedisAddr, err)
		return svc, nil
	}
	return cached, nil
}

func createProvider(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	switch settings.Provider {
	case domain.ProviderHuggingFace:
		return huggingface.NewEmbeddingService(huggingface.Config{
			BaseURL:    settings.BaseURL,
			APIKey:     settings.APIKey,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		}), nil
	case domain.ProviderOllama:
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		}), nil
	case domain.ProviderOpenAI:
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	case domain.ProviderGemini:
		svc, err := gemini.NewEmbeddingService(ctx, gemini.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	case domain.ProviderHashing:
		return hashing.NewEmbeddingService(settings.Dimensions), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, settings.Provider)
	}
}
