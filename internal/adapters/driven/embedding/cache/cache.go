// Package cache wraps an embedding service with a Redis-backed cache.
// Cache failures are logged and fall through to the wrapped service.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// KeyPrefix namespaces cache entries.
const KeyPrefix = "ragpipe:emb:"

// EmbeddingService serves embeddings from Redis and embeds misses with the
// wrapped service in a single batch.
type EmbeddingService struct {
	inner  driven.EmbeddingService
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps inner with a cache on client. A zero ttl keeps entries forever.
func New(inner driven.EmbeddingService, client *redis.Client, ttl time.Duration) *EmbeddingService {
	return &EmbeddingService{
		inner:  inner,
		client: client,
		ttl:    ttl,
	}
}

// Dial connects to Redis at addr, verifies it with a ping and wraps inner.
func Dial(ctx context.Context, inner driven.EmbeddingService, addr string, ttl time.Duration) (*EmbeddingService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:                  addr,
		ContextTimeoutEnabled: true,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return New(inner, client, ttl), nil
}

// Key returns the cache key for text under the wrapped model.
func (s *EmbeddingService) Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return KeyPrefix + s.inner.ModelName() + ":" + hex.EncodeToString(sum[:])
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch looks every text up with one MGET, embeds the misses in one
// batch and writes them back in one pipeline.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = s.Key(text)
	}

	out := make([][]float32, len(texts))
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warn("embedding cache lookup failed: %v", err)
		values = nil
	}
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		if vec, ok := decode(str, s.inner.Dimensions()); ok {
			out[i] = vec
		}
	}

	var missIdx []int
	var missTexts []string
	for i, vec := range out {
		if vec == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	s.hits.Add(int64(len(texts) - len(missIdx)))
	s.misses.Add(int64(len(missIdx)))

	if len(missIdx) == 0 {
		return out, nil
	}

	embedded, err := s.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: got %d embeddings for %d texts", len(embedded), len(missTexts))
	}

	pipe := s.client.Pipeline()
	for j, i := range missIdx {
		out[i] = embedded[j]
		pipe.Set(ctx, keys[i], encode(embedded[j]), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		logger.Warn("embedding cache write failed: %v", err)
	}

	return out, nil
}

// Stats returns the number of cache hits and misses so far.
func (s *EmbeddingService) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.inner.ModelName()
}

// Ping validates the wrapped service. The cache is optional and not checked.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close closes the Redis client and the wrapped service.
func (s *EmbeddingService) Close() error {
	return errors.Join(s.client.Close(), s.inner.Close())
}

// encode packs a vector as little-endian float32s.
func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// decode unpacks a cached vector. Entries of the wrong size are treated as misses.
func decode(s string, dims int) ([]float32, bool) {
	if len(s) == 0 || len(s)%4 != 0 || (dims > 0 && len(s) != 4*dims) {
		return nil, false
	}
	b := []byte(s)
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return vec, true
}
