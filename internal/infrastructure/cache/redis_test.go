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

	"github.com/provansdecor/catalog/internal/domain"
)

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	cache := NewRedisCache(client)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestRedisCache_SetGet(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	guess := domain.CategoryGuess{
		Category:   domain.CategoryCandlesticks,
		Confidence: 2,
		Matched:    []domain.Category{domain.CategoryCandlesticks},
	}
	require.NoError(t, cache.Set(ctx, "подсвечник", guess, time.Minute))
	assert.True(t, mr.Exists(keyPrefix+"подсвечник"))

	got, err := cache.Get(ctx, "подсвечник")
	require.NoError(t, err)
	assert.Equal(t, guess, got)

	exists, err := cache.Exists(ctx, "подсвечник")
	require.NoError(t, err)
	assert.True(t, exists)

	mr.FastForward(2 * time.Minute)
	_, err = cache.Get(ctx, "подсвечник")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", domain.CategoryGuess{Category: domain.CategoryVases}, time.Minute))
	require.NoError(t, cache.Delete(ctx, "k"))

	exists, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisCache_CorruptEntryIsMiss(t *testing.T) {
	cache, mr := newRedisCache(t)
	require.NoError(t, mr.Set(keyPrefix+"bad", "{not json"))

	_, err := cache.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisCache_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	cache := NewRedisCache(client)
	defer cache.Close()
	mr.Close()

	_, err := cache.Get(context.Background(), "k")
	assert.True(t, errors.Is(err, domain.ErrCacheUnavailable), "got %v", err)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}
