// Package cache stores completed feedback analyses so that repeated feedback
// does not go through the pipeline twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/feedbacksense/ai/feedback"
)

// Backend names, used as metric labels.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = time.Hour

// DefaultJanitorInterval is how often the in-memory cache drops expired entries.
const DefaultJanitorInterval = 5 * time.Minute

// AnalysisCache stores analyses by key.
// Get returns (nil, nil) on a miss.
type AnalysisCache interface {
	Get(ctx context.Context, key string) (*feedback.Analysis, error)
	Set(ctx context.Context, key string, analysis *feedback.Analysis) error
	Backend() string
}

// Key derives the cache key of a piece of feedback.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// MemoryAnalysisCache is an in-process AnalysisCache backed by an LRU.
type MemoryAnalysisCache struct {
	lru *LRUCache[string, *feedback.Analysis]

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewMemoryAnalysisCache creates an in-process cache.
func NewMemoryAnalysisCache(capacity int, ttl time.Duration) *MemoryAnalysisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryAnalysisCache{
		lru:    NewLRUCache[string, *feedback.Analysis](capacity, ttl),
		stopCh: make(chan struct{}),
	}
}

// StartJanitor drops expired entries every interval until Close is called.
// Expired entries are otherwise only removed when they are looked up or evicted.
func (c *MemoryAnalysisCache) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := c.lru.CleanupExpired(); n > 0 {
					slog.Debug("analysis cache: dropped expired entries", "count", n)
				}
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Close stops the janitor.
func (c *MemoryAnalysisCache) Close() error {
	c.once.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	return nil
}

// Get returns a copy of the cached analysis.
func (c *MemoryAnalysisCache) Get(_ context.Context, key string) (*feedback.Analysis, error) {
	a, ok := c.lru.Get(key)
	if !ok {
		return nil, nil
	}
	return a.Clone(), nil
}

// Set stores a copy of the analysis.
func (c *MemoryAnalysisCache) Set(_ context.Context, key string, analysis *feedback.Analysis) error {
	c.lru.Set(key, analysis.Clone(), 0)
	return nil
}

// Backend implements AnalysisCache.
func (c *MemoryAnalysisCache) Backend() string {
	return BackendMemory
}

// Capacity returns the maximum number of cached analyses.
func (c *MemoryAnalysisCache) Capacity() int {
	return c.lru.Capacity()
}

// Size returns the number of cached analyses.
func (c *MemoryAnalysisCache) Size() int {
	return c.lru.Size()
}
