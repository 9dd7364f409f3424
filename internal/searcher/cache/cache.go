// Package cache memoises search responses in Redis. Keys embed the index
// generation, so a commit makes every older entry unreachable without an
// explicit flush.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
)

const keyPrefix = "docsearch:search:"

// Store is the byte store behind the cache; *redis.Client implements it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteMatching(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one cacheable query. Query must be the canonical form of
// the parsed query.
type Key struct {
	Generation uint64
	Query      string
	Limit      int
}

func (k Key) String() string {
	hash := sha256.Sum256(fmt.Appendf(nil, "%s\x00%d", k.Query, k.Limit))
	return fmt.Sprintf("%s%d:%x", keyPrefix, k.Generation, hash[:16])
}

// QueryCache caches values of type T as JSON. Store failures are logged and
// treated as misses; they never fail a search.
type QueryCache[T any] struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New[T any](store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache[T] {
	return &QueryCache[T]{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache[T]) Get(ctx context.Context, key Key) (T, bool) {
	var zero T
	k := key.String()
	data, err := c.store.Get(ctx, k)
	if err != nil {
		if !errors.Is(err, pkgredis.ErrMiss) {
			c.logger.Error("cache get failed", "key", k, "error", err)
		}
		c.miss()
		return zero, false
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return zero, false
	}
	c.hits.Add(1)
	c.metrics.CacheHit()
	c.logger.Debug("cache hit", "query", key.Query, "generation", key.Generation)
	return value, true
}

func (c *QueryCache[T]) Set(ctx context.Context, key Key, value T) {
	k := key.String()
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.store.Set(ctx, k, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached value for key, or runs compute once across
// concurrent callers with the same key and caches its result. The boolean
// reports a cache hit.
func (c *QueryCache[T]) GetOrCompute(ctx context.Context, key Key, compute func() (T, error)) (T, bool, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, true, nil
	}
	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		value, err := compute()
		if err != nil {
			return value, err
		}
		c.Set(ctx, key, value)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}

// Invalidate drops every cached search.
func (c *QueryCache[T]) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.DeleteMatching(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
}

func (c *QueryCache[T]) Stats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	s.Total = s.Hits + s.Misses
	if s.Total > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Total)
	}
	return s
}

func (c *QueryCache[T]) miss() {
	c.misses.Add(1)
	c.metrics.CacheMiss()
}
