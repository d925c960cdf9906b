// Package openai embeds text through the OpenAI /embeddings endpoint or any
// server speaking the same protocol (Azure OpenAI, vLLM, LM Studio).
package openai

import (
	"context"
	"encoding/json"
	"errors"
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
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second

	// MaxInputs is the most inputs the API accepts in one request.
	MaxInputs = 2048
)

// fallbackDimensions is used for models missing from domain.EmbeddingDimensions.
const fallbackDimensions = 1536

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	// APIKey is required.
	APIKey string

	// BaseURL points at a compatible server (default: https://api.openai.com/v1).
	BaseURL string

	Model   string
	Timeout time.Duration

	// Dimensions shortens text-embedding-3-* vectors. For other models it
	// only declares the size the server returns.
	Dimensions int

	// Retry overrides the transport's retry policy.
	Retry []httpjson.Option
}

// EmbeddingService embeds chunks with an OpenAI model.
type EmbeddingService struct {
	http       *httpjson.Client
	baseURL    string
	model      string
	dimensions int
	shorten    bool
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewEmbeddingService creates an OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	shorten := strings.HasPrefix(cfg.Model, "text-embedding-3-") && cfg.Dimensions > 0
	dims := cfg.Dimensions
	if dims == 0 {
		var ok bool
		if dims, ok = domain.EmbeddingDimensions()[cfg.Model]; !ok {
			dims = fallbackDimensions
		}
	}

	opts := append([]httpjson.Option{httpjson.WithBearer(cfg.APIKey)}, cfg.Retry...)
	return &EmbeddingService{
		http:       httpjson.New("openai", cfg.Timeout, opts...),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: dims,
		shorten:    shorten,
	}, nil
}

// Embed embeds one text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most MaxInputs, preserving order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for _, b := range httpjson.Batches(len(texts), MaxInputs) {
		vecs, err := s.request(ctx, texts[b[0]:b[1]])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *EmbeddingService) request(ctx context.Context, texts []string) ([][]float32, error) {
	req := embeddingRequest{Model: s.model, Input: texts}
	if s.shorten {
		req.Dimensions = s.dimensions
	}

	var resp embeddingResponse
	if err := s.http.Post(ctx, s.baseURL+"/embeddings", req, &resp); err != nil {
		return nil, explain(err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("openai error: %s", resp.Error.Message)
	}

	// The API may return items out of order; Index is authoritative.
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("openai: no embedding returned for text %d", i)
		}
	}
	return vecs, nil
}

// explain replaces a raw error body with the API's message when it has one.
func explain(err error) error {
	var se *httpjson.StatusError
	if errors.Is(err, domain.ErrEmbeddingUnavailable) || !errors.As(err, &se) {
		return err
	}
	var body struct {
		Error *apiError `json:"error"`
	}
	if json.Unmarshal([]byte(se.Body), &body) == nil && body.Error != nil && body.Error.Message != "" {
		return fmt.Errorf("openai error (status %d): %s", se.Code, body.Error.Message)
	}
	return err
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the embedding model.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists models, which validates the key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.http.Get(ctx, s.baseURL+"/models")
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
