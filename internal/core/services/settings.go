package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyChunkSize        = "chunk.size"
	KeyChunkOverlap     = "chunk.overlap"
	KeyEmbedProvider    = "embedding.provider"
	KeyEmbedModel       = "embedding.model"
	KeyEmbedBaseURL     = "embedding.base_url"
	KeyEmbedAPIKey      = "embedding.api_key"
	KeyEmbedDimensions  = "embedding.dimensions"
	KeyEmbedBatchSize   = "embedding.batch_size"
	KeyCacheRedisAddr   = "embedding.cache.redis_addr"
	KeyCacheTTL         = "embedding.cache.ttl"
	KeyStoreBackend     = "store.backend"
	KeyStorePersistDir  = "store.persist_dir"
	KeyQdrantHost       = "store.qdrant.host"
	KeyQdrantPort       = "store.qdrant.port"
	KeyQdrantCollection = "store.qdrant.collection"
	KeyPDFMinText       = "pdf.min_text_length"
	KeyPDFOCR           = "pdf.ocr"
	KeyIngestWorkers    = "ingest.workers"
	KeyWebTimeout       = "web.timeout"
	KeyWebRateLimit     = "web.rate_limit"
	KeyWebUserAgent     = "web.user_agent"
	KeyLogFormat        = "log.format"
)

// EnvPrefix prefixes environment overrides: chunk.size is RAGPIPE_CHUNK_SIZE.
const EnvPrefix = "RAGPIPE_"

// providerKeyEnv holds the conventional API key variable of each provider.
// They apply only when no key is configured.
var providerKeyEnv = map[domain.EmbeddingProvider]string{
	domain.ProviderOpenAI:      "OPENAI_API_KEY",
	domain.ProviderGemini:      "GEMINI_API_KEY",
	domain.ProviderHuggingFace: "HF_TOKEN",
}

// valueKind is how a key's raw value is parsed and stored.
type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindBool
	kindFloat
	kindDuration
)

// setting binds a config key to a field of domain.Settings.
type setting struct {
	key  string
	kind valueKind
	get  func(*domain.Settings) string
	set  func(*domain.Settings, string) error
}

func stringSetting(key string, field func(*domain.Settings) *string) setting {
	return setting{
		key:  key,
		kind: kindString,
		get:  func(s *domain.Settings) string { return *field(s) },
		set: func(s *domain.Settings, v string) error {
			*field(s) = v
			return nil
		},
	}
}

func intSetting(key string, field func(*domain.Settings) *int) setting {
	return setting{
		key:  key,
		kind: kindInt,
		get:  func(s *domain.Settings) string { return strconv.Itoa(*field(s)) },
		set: func(s *domain.Settings, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrInvalidInput, key, v)
			}
			*field(s) = n
			return nil
		},
	}
}

func boolSetting(key string, field func(*domain.Settings) *bool) setting {
	return setting{
		key:  key,
		kind: kindBool,
		get:  func(s *domain.Settings) string { return strconv.FormatBool(*field(s)) },
		set: func(s *domain.Settings, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %s must be true or false, got %q", domain.ErrInvalidInput, key, v)
			}
			*field(s) = b
			return nil
		},
	}
}

func floatSetting(key string, field func(*domain.Settings) *float64) setting {
	return setting{
		key:  key,
		kind: kindFloat,
		get:  func(s *domain.Settings) string { return strconv.FormatFloat(*field(s), 'g', -1, 64) },
		set: func(s *domain.Settings, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || f < 0 {
				return fmt.Errorf("%w: %s must be a non-negative number, got %q", domain.ErrInvalidInput, key, v)
			}
			*field(s) = f
			return nil
		},
	}
}

func durationSetting(key string, field func(*domain.Settings) *time.Duration) setting {
	return setting{
		key:  key,
		kind: kindDuration,
		get:  func(s *domain.Settings) string { return field(s).String() },
		set: func(s *domain.Settings, v string) error {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil || d < 0 {
				return fmt.Errorf("%w: %s must be a duration like 30s, got %q", domain.ErrInvalidInput, key, v)
			}
			*field(s) = d
			return nil
		},
	}
}

// settings lists every key in display order.
var settings = []setting{
	intSetting(KeyChunkSize, func(s *domain.Settings) *int { return &s.Chunk.Size }),
	intSetting(KeyChunkOverlap, func(s *domain.Settings) *int { return &s.Chunk.Overlap }),
	{
		key:  KeyEmbedProvider,
		kind: kindString,
		get:  func(s *domain.Settings) string { return s.Embedding.Provider.String() },
		set: func(s *domain.Settings, v string) error {
			p := domain.EmbeddingProvider(strings.ToLower(strings.TrimSpace(v)))
			if !p.IsValid() {
				return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, v)
			}
			s.Embedding.Provider = p
			return nil
		},
	},
	stringSetting(KeyEmbedModel, func(s *domain.Settings) *string { return &s.Embedding.Model }),
	stringSetting(KeyEmbedBaseURL, func(s *domain.Settings) *string { return &s.Embedding.BaseURL }),
	stringSetting(KeyEmbedAPIKey, func(s *domain.Settings) *string { return &s.Embedding.APIKey }),
	intSetting(KeyEmbedDimensions, func(s *domain.Settings) *int { return &s.Embedding.Dimensions }),
	intSetting(KeyEmbedBatchSize, func(s *domain.Settings) *int { return &s.Embedding.BatchSize }),
	stringSetting(KeyCacheRedisAddr, func(s *domain.Settings) *string { return &s.Embedding.CacheRedisAddr }),
	durationSetting(KeyCacheTTL, func(s *domain.Settings) *time.Duration { return &s.Embedding.CacheTTL }),
	{
		key:  KeyStoreBackend,
		kind: kindString,
		get:  func(s *domain.Settings) string { return s.Store.Backend.String() },
		set: func(s *domain.Settings, v string) error {
			b := domain.StoreBackend(strings.ToLower(strings.TrimSpace(v)))
			if !b.IsValid() {
				return fmt.Errorf("%w: unknown store backend %q", domain.ErrInvalidInput, v)
			}
			s.Store.Backend = b
			return nil
		},
	},
	stringSetting(KeyStorePersistDir, func(s *domain.Settings) *string { return &s.Store.PersistDir }),
	stringSetting(KeyQdrantHost, func(s *domain.Settings) *string { return &s.Store.QdrantHost }),
	intSetting(KeyQdrantPort, func(s *domain.Settings) *int { return &s.Store.QdrantPort }),
	stringSetting(KeyQdrantCollection, func(s *domain.Settings) *string { return &s.Store.QdrantCollection }),
	intSetting(KeyPDFMinText, func(s *domain.Settings) *int { return &s.Extraction.PDFMinTextLength }),
	boolSetting(KeyPDFOCR, func(s *domain.Settings) *bool { return &s.Extraction.OCR }),
	intSetting(KeyIngestWorkers, func(s *domain.Settings) *int { return &s.Extraction.Workers }),
	durationSetting(KeyWebTimeout, func(s *domain.Settings) *time.Duration { return &s.Web.Timeout }),
	floatSetting(KeyWebRateLimit, func(s *domain.Settings) *float64 { return &s.Web.RateLimit }),
	stringSetting(KeyWebUserAgent, func(s *domain.Settings) *string { return &s.Web.UserAgent }),
	{
		key:  KeyLogFormat,
		kind: kindString,
		get:  func(s *domain.Settings) string { return s.LogFormat },
		set: func(s *domain.Settings, v string) error {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "text" && v != "json" {
				return fmt.Errorf("%w: log.format must be text or json, got %q", domain.ErrInvalidInput, v)
			}
			s.LogFormat = v
			return nil
		},
	},
}

func lookupSetting(key string) (setting, bool) {
	for _, def := range settings {
		if def.key == key {
			return def, true
		}
	}
	return setting{}, false
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// SettingsOption configures a SettingsService.
type SettingsOption func(*SettingsService)

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) SettingsOption {
	return func(s *SettingsService) {
		s.lookupEnv = fn
	}
}

// SettingsService manages application settings.
// Effective values are: defaults, then the config file, then the environment.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, opts ...SettingsOption) *SettingsService {
	s := &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the effective, validated settings.
func (s *SettingsService) Get() (*domain.Settings, error) {
	settings, err := s.load()
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// load resolves every key without validating the combination.
func (s *SettingsService) load() (*domain.Settings, error) {
	resolved := domain.DefaultSettings()
	modelSet := false

	for _, def := range settings {
		raw, source, ok := s.raw(def)
		if !ok {
			continue
		}
		if err := def.set(&resolved, raw); err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		if def.key == KeyEmbedModel && raw != "" {
			modelSet = true
		}
	}

	// A provider change without an explicit model selects that provider's default.
	if !modelSet || resolved.Embedding.Model == "" {
		resolved.Embedding.Model = domain.DefaultEmbeddingModels()[resolved.Embedding.Provider]
	}

	if resolved.Embedding.APIKey == "" {
		if name, ok := providerKeyEnv[resolved.Embedding.Provider]; ok {
			if v, ok := s.lookupEnv(name); ok {
				resolved.Embedding.APIKey = strings.TrimSpace(v)
			}
		}
	}

	return &resolved, nil
}

// raw returns the configured value of def and where it came from.
// The environment wins over the config file.
func (s *SettingsService) raw(def setting) (value, source string, ok bool) {
	env := EnvName(def.key)
	if v, found := s.lookupEnv(env); found {
		return v, env, true
	}

	val, found := s.configStore.Get(def.key)
	if !found {
		return "", "", false
	}
	return formatValue(val), s.configStore.Path(), true
}

// formatValue renders a TOML value as the string the setters parse.
func formatValue(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Duration:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Set validates and persists a single key.
// The combined settings must still be valid after the change.
func (s *SettingsService) Set(key, value string) error {
	def, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	current, err := s.load()
	if err != nil {
		return err
	}
	if err := def.set(current, value); err != nil {
		return err
	}
	if err := current.Validate(); err != nil {
		return err
	}

	typed, err := typedValue(def, current)
	if err != nil {
		return err
	}
	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("save setting: %w", err)
	}
	return nil
}

// Unset removes a key from the config file so its default (or environment
// override) applies again. The change is reverted if the remaining
// settings are invalid.
func (s *SettingsService) Unset(key string) error {
	if _, ok := lookupSetting(key); !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	prev, had := s.configStore.Get(key)
	if !had {
		return nil
	}
	if err := s.configStore.Delete(key); err != nil {
		return fmt.Errorf("remove setting: %w", err)
	}
	if _, err := s.Get(); err != nil {
		if restoreErr := s.configStore.Set(key, prev); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	return nil
}

// typedValue returns the value to write to TOML for def.
func typedValue(def setting, resolved *domain.Settings) (any, error) {
	str := def.get(resolved)
	switch def.kind {
	case kindInt:
		n, err := strconv.Atoi(str)
		return int64(n), err
	case kindBool:
		return strconv.ParseBool(str)
	case kindFloat:
		return strconv.ParseFloat(str, 64)
	default:
		return str, nil
	}
}

// Keys returns every supported configuration key in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settings))
	for i, def := range settings {
		keys[i] = def.key
	}
	return keys
}

// Value returns the effective value of a key as a string.
func (s *SettingsService) Value(key string) (string, error) {
	def, ok := lookupSetting(key)
	if !ok {
		return "", fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	resolved, err := s.load()
	if err != nil {
		return "", err
	}
	return def.get(resolved), nil
}

// Path returns the configuration file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}
