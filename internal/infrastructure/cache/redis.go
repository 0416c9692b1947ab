package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/provansdecor/catalog/internal/domain"
)

const keyPrefix = "provans:classify:"

// RedisCache stores verdicts in Redis so several preview servers share them
type RedisCache struct {
	client *redis.Client
}

// NewRedisClient parses a redis:// URL and verifies the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping: %v", domain.ErrCacheUnavailable, err)
	}

	return client, nil
}

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get retrieves a verdict
func (c *RedisCache) Get(ctx context.Context, key string) (domain.CategoryGuess, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CategoryGuess{}, domain.ErrCacheMiss
	}
	if err != nil {
		return domain.CategoryGuess{}, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}

	var guess domain.CategoryGuess
	if err := json.Unmarshal(data, &guess); err != nil {
		// treat unreadable entries as absent
		return domain.CategoryGuess{}, domain.ErrCacheMiss
	}
	return guess, nil
}

// Set stores a verdict with TTL
func (c *RedisCache) Set(ctx context.Context, key string, guess domain.CategoryGuess, ttl time.Duration) error {
	data, err := json.Marshal(guess)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes a verdict
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Exists checks if a verdict is cached
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return n > 0, nil
}

// Close closes the underlying client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
