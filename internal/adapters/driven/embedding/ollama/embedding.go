// Package ollama embeds text with a model served by a local Ollama daemon.
package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/ragpipe/internal/adapters/driven/embedding/httpjson"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 60 * time.Second
	DefaultDimensions = 768

	// DefaultMaxInputs keeps each /api/embed call small enough for CPU hosts.
	DefaultMaxInputs = 256
)

// Config holds configuration for the Ollama embedding service.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions is the vector size; known models fill it in.
	Dimensions int

	// MaxInputs bounds the texts sent per request.
	MaxInputs int

	// Retry overrides the transport's retry policy.
	Retry []httpjson.Option
}

// EmbeddingService embeds chunks through /api/embed.
type EmbeddingService struct {
	http       *httpjson.Client
	baseURL    string
	model      string
	dimensions int
	maxInputs  int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// NewEmbeddingService creates an Ollama embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxInputs <= 0 {
		cfg.MaxInputs = DefaultMaxInputs
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
		if dims, ok := domain.EmbeddingDimensions()[cfg.Model]; ok {
			cfg.Dimensions = dims
		}
	}

	return &EmbeddingService{
		http:       httpjson.New("ollama", cfg.Timeout, cfg.Retry...),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxInputs:  cfg.MaxInputs,
	}
}

// Embed embeds one text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order, MaxInputs at a time.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for _, b := range httpjson.Batches(len(texts), s.maxInputs) {
		part := texts[b[0]:b[1]]

		var resp embedResponse
		if err := s.http.Post(ctx, s.baseURL+"/api/embed", embedRequest{Model: s.model, Input: part}, &resp); err != nil {
			return nil, err
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("ollama error: %s", resp.Error)
		}
		if len(resp.Embeddings) != len(part) {
			return nil, fmt.Errorf("ollama: got %d embeddings for %d texts", len(resp.Embeddings), len(part))
		}
		out = append(out, resp.Embeddings...)
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the embedding model.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists local models.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.http.Get(ctx, s.baseURL+"/api/tags")
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
