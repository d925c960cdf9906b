package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder returns [len(text), 1] and records every batch.
type countingEmbedder struct {
	batches [][]string
	err     error
	closed  bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.batches = append(c.batches, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int            { return 2 }
func (c *countingEmbedder) ModelName() string          { return "counting" }
func (c *countingEmbedder) Ping(context.Context) error { return c.err }
func (c *countingEmbedder) Close() error {
	c.closed = true
	return nil
}

func setup(t *testing.T) (*miniredis.Miniredis, *countingEmbedder, *EmbeddingService) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingEmbedder{}
	return mr, inner, New(inner, client, time.Hour)
}

func TestEmbedBatch_CachesMisses(t *testing.T) {
	mr, inner, s := setup(t)
	ctx := context.Background()

	first, err := s.EmbedBatch(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 1}}, first)
	assert.True(t, mr.Exists(s.Key("a")))
	assert.Equal(t, time.Hour, mr.TTL(s.Key("a")))

	second, err := s.EmbedBatch(ctx, []string{"bb", "ccc", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 1}, {3, 1}, {1, 1}}, second)

	require.Len(t, inner.batches, 2)
	assert.Equal(t, []string{"ccc"}, inner.batches[1])

	hits, misses := s.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(3), misses)
}

func TestEmbedBatch_AllHitsSkipInner(t *testing.T) {
	_, inner, s := setup(t)
	ctx := context.Background()

	_, err := s.Embed(ctx, "cached")
	require.NoError(t, err)
	vec, err := s.Embed(ctx, "cached")
	require.NoError(t, err)

	assert.Equal(t, []float32{6, 1}, vec)
	assert.Len(t, inner.batches, 1)
}

func TestEmbedBatch_CorruptEntryIsMiss(t *testing.T) {
	mr, inner, s := setup(t)
	require.NoError(t, mr.Set(s.Key("x"), "bad"))

	vec, err := s.Embed(context.Background(), "x")

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, vec)
	assert.Len(t, inner.batches, 1)
}

func TestEmbedBatch_RedisDownFallsThrough(t *testing.T) {
	mr, inner, s := setup(t)
	mr.Close()

	vec, err := s.Embed(context.Background(), "offline")

	require.NoError(t, err)
	assert.Equal(t, []float32{7, 1}, vec)
	assert.Len(t, inner.batches, 1)
}

func TestEmbedBatch_InnerErrorPropagates(t *testing.T) {
	_, inner, s := setup(t)
	inner.err = errors.New("model offline")

	_, err := s.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "model offline")
}

func TestKey_IncludesModel(t *testing.T) {
	_, _, s := setup(t)
	key := s.Key("text")

	assert.Contains(t, key, KeyPrefix+"counting:")
	assert.NotEqual(t, key, s.Key("other"))
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	inner := &countingEmbedder{}

	s, err := Dial(context.Background(), inner, mr.Addr(), 0)
	require.NoError(t, err)
	assert.Equal(t, "counting", s.ModelName())
	assert.Equal(t, 2, s.Dimensions())
	require.NoError(t, s.Close())
	assert.True(t, inner.closed)

	_, err = Dial(context.Background(), inner, "127.0.0.1:1", 0)
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	vec := []float32{0.25, -1.5, 3}
	got, ok := decode(string(encode(vec)), 3)
	require.True(t, ok)
	assert.Equal(t, vec, got)

	_, ok = decode(string(encode(vec)), 4)
	assert.False(t, ok)
}
