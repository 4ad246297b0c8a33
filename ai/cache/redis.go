package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hrygo/feedbacksense/ai/feedback"
)

const redisKeyPrefix = "feedbacksense:analysis:"

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisAnalysisCache stores analyses as JSON strings with a TTL.
type RedisAnalysisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisAnalysisCache creates a cache on top of an existing client.
func NewRedisAnalysisCache(client redis.UniversalClient, ttl time.Duration) *RedisAnalysisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisAnalysisCache{client: client, ttl: ttl}
}

func (c *RedisAnalysisCache) Get(ctx context.Context, key string) (*feedback.Analysis, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var analysis feedback.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, fmt.Errorf("decode cached analysis: %w", err)
	}
	return &analysis, nil
}

func (c *RedisAnalysisCache) Set(ctx context.Context, key string, analysis *feedback.Analysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisAnalysisCache) Backend() string {
	return BackendRedis
}

// Close closes the underlying client.
func (c *RedisAnalysisCache) Close() error {
	return c.client.Close()
}
