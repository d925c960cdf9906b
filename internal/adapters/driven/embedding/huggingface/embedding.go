// Package huggingface embeds text with a sentence-transformers model, either
// through the hosted inference API or a self-hosted Text Embeddings
// Inference (TEI) server.
package huggingface

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
	DefaultInferenceURL = "https://router.huggingface.co/hf-inference/models"
	DefaultModel        = domain.DefaultEmbeddingModel
	DefaultTimeout      = 60 * time.Second
	DefaultDimensions   = 384

	// DefaultMaxInputs matches TEI's default --max-client-batch-size.
	DefaultMaxInputs = 32
)

// Config holds configuration for the Hugging Face embedding service.
type Config struct {
	// BaseURL is a TEI server (e.g. http://localhost:8080). When empty the
	// hosted inference API is used.
	BaseURL string

	// APIKey is the Hugging Face token. Required for the hosted API.
	APIKey string

	Model   string
	Timeout time.Duration

	// Dimensions overrides the model's known dimension.
	Dimensions int

	// InferenceURL overrides the hosted API root.
	InferenceURL string

	// MaxInputs bounds the texts sent per request.
	MaxInputs int

	// Retry overrides the transport's retry policy. The hosted API answers
	// 503 while a cold model loads.
	Retry []httpjson.Option
}

// EmbeddingService embeds chunks with a sentence-transformers model.
type EmbeddingService struct {
	http       *httpjson.Client
	endpoint   string
	healthURL  string
	model      string
	dimensions int
	maxInputs  int
}

// embedRequest is shared by TEI and the hosted feature-extraction pipeline.
type embedRequest struct {
	Inputs []string `json:"inputs"`
}

// NewEmbeddingService creates a Hugging Face embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.InferenceURL == "" {
		cfg.InferenceURL = DefaultInferenceURL
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

	opts := append([]httpjson.Option{httpjson.WithBearer(cfg.APIKey)}, cfg.Retry...)
	s := &EmbeddingService{
		http:       httpjson.New("huggingface", cfg.Timeout, opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxInputs:  cfg.MaxInputs,
	}
	if cfg.BaseURL != "" {
		base := strings.TrimSuffix(cfg.BaseURL, "/")
		s.endpoint = base + "/embed"
		s.healthURL = base + "/health"
	} else {
		s.endpoint = strings.TrimSuffix(cfg.InferenceURL, "/") + "/" + cfg.Model + "/pipeline/feature-extraction"
	}
	return s
}

// Embed embeds one text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order, MaxInputs at a time. Both endpoints
// return one pooled vector per input.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for _, b := range httpjson.Batches(len(texts), s.maxInputs) {
		part := texts[b[0]:b[1]]

		var vecs [][]float32
		if err := s.http.Post(ctx, s.endpoint, embedRequest{Inputs: part}, &vecs); err != nil {
			return nil, err
		}
		if len(vecs) != len(part) {
			return nil, fmt.Errorf("huggingface: got %d embeddings for %d texts", len(vecs), len(part))
		}
		out = append(out, vecs...)
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

// Ping checks /health on a TEI server. The hosted API has no health
// endpoint, so a one-word embedding is requested instead.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if s.healthURL != "" {
		return s.http.Get(ctx, s.healthURL)
	}
	if _, err := s.Embed(ctx, "ping"); err != nil {
		return fmt.Errorf("huggingface: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
