// Package likes counts favorites per entity. RedisCounter backs the service;
// MemoryCounter backs tests and runs without redis.
package likes

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"mealgraph/internal/logger"
	"mealgraph/internal/nutrition"
)

// Key is the counter key of an entity, e.g. "likes:recipe:42".
func Key(ref nutrition.Ref) string {
	return fmt.Sprintf("likes:%s:%d", ref.Kind, ref.ID)
}

// RedisCounter keeps one integer key per entity.
type RedisCounter struct {
	rdb *redis.Client
	log *logger.Logger
}

// NewRedisCounter connects to addr and checks the connection.
func NewRedisCounter(ctx context.Context, addr string, log *logger.Logger) (*RedisCounter, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisCounter{rdb: rdb, log: log}, nil
}

// Likes returns the count of ref; an entity never liked has zero.
func (c *RedisCounter) Likes(ctx context.Context, ref nutrition.Ref) (int64, error) {
	n, err := c.rdb.Get(ctx, Key(ref)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get likes of %s: %w", ref, err)
	}
	return n, nil
}

// Like increments the count of ref and returns the new count.
func (c *RedisCounter) Like(ctx context.Context, ref nutrition.Ref) (int64, error) {
	n, err := c.rdb.Incr(ctx, Key(ref)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to like %s: %w", ref, err)
	}
	c.log.Debug("%s liked, now %d", ref, n)
	return n, nil
}

func (c *RedisCounter) Close() error { return c.rdb.Close() }

// MemoryCounter is an in-process counter. Safe for concurrent use.
type MemoryCounter struct {
	mu     sync.RWMutex
	counts map[nutrition.Ref]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[nutrition.Ref]int64)}
}

func (c *MemoryCounter) Likes(_ context.Context, ref nutrition.Ref) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[ref], nil
}

func (c *MemoryCounter) Like(_ context.Context, ref nutrition.Ref) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[ref]++
	return c.counts[ref], nil
}

func (c *MemoryCounter) Close() error { return nil }
