package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache provides typed caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
	log    zerolog.Logger
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		log:    zerolog.Nop(),
	}
}

// WithLogger logs Redis failures that are otherwise treated as misses
func (c *Cache) WithLogger(log zerolog.Logger) *Cache {
	c.log = log.With().Str("component", "redis.cache").Str("prefix", c.prefix).Logger()
	return c
}

func (c *Cache) key(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value
// Redis 장애는 캐시 미스로 처리 (리포트는 DB 에서 다시 계산)
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		}
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

// DeletePattern removes every cached value whose key matches pattern
func (c *Cache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if !c.client.Enabled() {
		return 0, nil
	}

	fullPattern := c.key(pattern)
	rdb := c.client.Redis()

	var removed int
	iter := rdb.Scan(ctx, 0, fullPattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("cache delete failed: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("cache scan failed: %w", err)
	}

	return removed, nil
}

// GetOrSet retrieves from cache or calls fn to populate it
// dest 는 캐시 저장 성공 여부와 관계없이 fn 의 결과로 채워짐
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (interface{}, error)) error {
	found, err := c.Get(ctx, key, dest)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	value, err := fn()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal failed: %w", err)
	}

	if c.client.Enabled() {
		if err := c.client.Redis().Set(ctx, c.key(key), data, ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache write failed, serving uncached value")
		}
	}
	return nil
}

// Predefined TTLs
const (
	TTLShort  = 1 * time.Minute  // 대시보드 폴링
	TTLMedium = 10 * time.Minute // 정확도 리포트
	TTLLong   = 1 * time.Hour    // 검증 리포트
)

// Common cache key generators
func AccuracySummaryKey() string {
	return "accuracy:summary"
}

func DistributionKey(start, end string) string {
	return fmt.Sprintf("accuracy:distribution:%s:%s", start, end)
}

func ValidationKey(lookbackMonths int) string {
	return fmt.Sprintf("accuracy:validation:%dm", lookbackMonths)
}

// AccuracyPattern matches every accuracy-derived key (invalidated on grading)
func AccuracyPattern() string {
	return "accuracy:*"
}
