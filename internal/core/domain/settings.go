package domain

import (
	"fmt"
	"runtime"
	"time"
)

const unknownDescription = "Unknown"

// Default configuration values.
const (
	DefaultChunkSize        = 1000
	DefaultChunkOverlap     = 100
	DefaultEmbeddingModel   = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultEmbedBatchSize   = 64
	DefaultPDFMinText       = 50
	DefaultFetchTimeout     = 30 * time.Second
	DefaultFetchRateLimit   = 2.0
	DefaultCacheTTL         = 7 * 24 * time.Hour
	DefaultQdrantHost       = "localhost"
	DefaultQdrantPort       = 6334
	DefaultQdrantCollection = "ragpipe"
	DefaultRetrievalK       = 4
)

// EmbeddingProvider identifies an embedding model backend.
type EmbeddingProvider string

// Available embedding providers.
const (
	// ProviderHuggingFace is the Hugging Face inference API or a TEI server.
	ProviderHuggingFace EmbeddingProvider = "huggingface"

	// ProviderOllama is a local Ollama instance.
	ProviderOllama EmbeddingProvider = "ollama"

	// ProviderOpenAI is the OpenAI embeddings API or a compatible endpoint.
	ProviderOpenAI EmbeddingProvider = "openai"

	// ProviderGemini is the Google Gemini API.
	ProviderGemini EmbeddingProvider = "gemini"

	// ProviderHashing is the offline feature-hashing embedder.
	ProviderHashing EmbeddingProvider = "hashing"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case ProviderHuggingFace, ProviderOllama, ProviderOpenAI, ProviderGemini, ProviderHashing:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p EmbeddingProvider) RequiresAPIKey() bool {
	return p == ProviderOpenAI || p == ProviderGemini
}

// IsLocal returns true if this provider runs without a network service.
func (p EmbeddingProvider) IsLocal() bool {
	return p == ProviderHashing
}

// String returns the string representation.
func (p EmbeddingProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p EmbeddingProvider) Description() string {
	switch p {
	case ProviderHuggingFace:
		return "Hugging Face (inference API or TEI)"
	case ProviderOllama:
		return "Ollama (local)"
	case ProviderOpenAI:
		return "OpenAI (cloud)"
	case ProviderGemini:
		return "Google Gemini (cloud)"
	case ProviderHashing:
		return "Feature hashing (offline)"
	default:
		return unknownDescription
	}
}

// StoreBackend identifies a vector store implementation.
type StoreBackend string

// Available store backends.
const (
	StoreSQLite StoreBackend = "sqlite"
	StoreMemory StoreBackend = "memory"
	StoreQdrant StoreBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreSQLite, StoreMemory, StoreQdrant:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StoreBackend) String() string {
	return string(b)
}

// ChunkSettings controls the chunker.
type ChunkSettings struct {
	// Size is the maximum chunk length in characters.
	Size int

	// Overlap is the number of characters shared by consecutive chunks.
	Overlap int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider EmbeddingProvider

	// Model is the embedding model name. Fixed for a store's lifetime.
	Model string

	// BaseURL is the API endpoint (TEI server, Ollama, OpenAI-compatible).
	BaseURL string

	// APIKey is the API key or token.
	APIKey string

	// Dimensions overrides the model's known dimension.
	Dimensions int

	// BatchSize is the number of texts sent per embedding request.
	BatchSize int

	// CacheRedisAddr enables the Redis embedding cache when set.
	CacheRedisAddr string

	// CacheTTL is how long cached embeddings live.
	CacheTTL time.Duration
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// StoreSettings holds vector store configuration.
type StoreSettings struct {
	// Backend selects the vector store implementation.
	Backend StoreBackend

	// PersistDir is the directory holding the sqlite store.
	PersistDir string

	// QdrantHost is the Qdrant gRPC host.
	QdrantHost string

	// QdrantPort is the Qdrant gRPC port.
	QdrantPort int

	// QdrantCollection is the collection holding indexed documents.
	QdrantCollection string
}

// ExtractionSettings controls file extraction.
type ExtractionSettings struct {
	// PDFMinTextLength is the trimmed length below which a PDF is retried
	// with the decrypting reader.
	PDFMinTextLength int

	// OCR enables OCR of blank PDF pages and images.
	OCR bool

	// Workers bounds parallel extraction and fetching.
	Workers int
}

// WebSettings controls web fetching.
type WebSettings struct {
	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Zero disables limiting.
	RateLimit float64

	// UserAgent is sent with every request.
	UserAgent string
}

// Settings holds all ragpipe configuration.
type Settings struct {
	Chunk      ChunkSettings
	Embedding  EmbeddingSettings
	Store      StoreSettings
	Extraction ExtractionSettings
	Web        WebSettings

	// LogFormat is "text" or "json".
	LogFormat string
}

// DefaultSettings returns settings with the documented defaults.
// PersistDir is left empty; callers resolve it relative to the config directory.
func DefaultSettings() Settings {
	return Settings{
		Chunk: ChunkSettings{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		Embedding: EmbeddingSettings{
			Provider:  ProviderHuggingFace,
			Model:     DefaultEmbeddingModel,
			BatchSize: DefaultEmbedBatchSize,
			CacheTTL:  DefaultCacheTTL,
		},
		Store: StoreSettings{
			Backend:          StoreSQLite,
			QdrantHost:       DefaultQdrantHost,
			QdrantPort:       DefaultQdrantPort,
			QdrantCollection: DefaultQdrantCollection,
		},
		Extraction: ExtractionSettings{
			PDFMinTextLength: DefaultPDFMinText,
			OCR:              true,
			Workers:          runtime.NumCPU(),
		},
		Web: WebSettings{
			Timeout:   DefaultFetchTimeout,
			RateLimit: DefaultFetchRateLimit,
		},
		LogFormat: "text",
	}
}

// Validate checks the settings for values the pipeline cannot run with.
func (s Settings) Validate() error {
	if s.Chunk.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidInput, s.Chunk.Size)
	}
	if s.Chunk.Overlap < 0 || s.Chunk.Overlap >= s.Chunk.Size {
		return fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d",
			ErrInvalidInput, s.Chunk.Size, s.Chunk.Overlap)
	}
	if !s.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidInput, s.Embedding.Provider)
	}
	if s.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding model is required", ErrInvalidInput)
	}
	if !s.Store.Backend.IsValid() {
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidInput, s.Store.Backend)
	}
	if s.Extraction.PDFMinTextLength < 0 {
		return fmt.Errorf("%w: pdf min text length must not be negative", ErrInvalidInput)
	}
	return nil
}

// AllEmbeddingProviders returns every supported embedding provider.
func AllEmbeddingProviders() []EmbeddingProvider {
	return []EmbeddingProvider{
		ProviderHuggingFace,
		ProviderOllama,
		ProviderOpenAI,
		ProviderGemini,
		ProviderHashing,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[EmbeddingProvider]string {
	return map[EmbeddingProvider]string{
		ProviderHuggingFace: DefaultEmbeddingModel,
		ProviderOllama:      "nomic-embed-text",
		ProviderOpenAI:      "text-embedding-3-small",
		ProviderGemini:      "gemini-embedding-001",
		ProviderHashing:     "hashing-384",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Sentence transformers
		"sentence-transformers/all-MiniLM-L6-v2":  384,
		"sentence-transformers/all-MiniLM-L12-v2": 384,
		"sentence-transformers/all-mpnet-base-v2": 768,
		"BAAI/bge-small-en-v1.5":                  384,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"gemini-embedding-001": 768,
		"text-embedding-004":   768,
		// Offline
		"hashing-384": 384,
	}
}
