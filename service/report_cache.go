package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FAIRDataPipeline/data-registry/config"
	"github.com/FAIRDataPipeline/data-registry/render"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const reportCacheKeyPrefix = "report:"

var ErrReportCacheMiss = errors.New("report cache miss")

// ReportCache stores rendered reports keyed by request URL.
type ReportCache interface {
	Get(ctx context.Context, key string) (render.Output, error)
	Set(ctx context.Context, key string, out render.Output) error
}

type cachedReport struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	FileName    string `json:"file_name,omitempty"`
}

func toCached(out render.Output) cachedReport {
	return cachedReport{ContentType: out.ContentType, Body: out.Body, FileName: out.FileName}
}

func (c cachedReport) output() render.Output {
	return render.Output{ContentType: c.ContentType, Body: c.Body, FileName: c.FileName}
}

// NewReportCache picks a backend from cfg. Returns nil when caching is off.
func NewReportCache(cfg config.CacheConfig, client *redis.Client) ReportCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = config.DefaultReportCacheTTL
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "none":
		return nil
	case "memory":
		return NewMemoryReportCache(ttl)
	case "redis":
		if client == nil {
			serviceLogger().Warn("redis cache requested without a client, falling back to memory")
			return NewMemoryReportCache(ttl)
		}
		return NewRedisReportCache(client, ttl)
	default:
		if client != nil {
			return NewRedisReportCache(client, ttl)
		}
		return NewMemoryReportCache(ttl)
	}
}

type RedisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReportCache(client *redis.Client, ttl time.Duration) *RedisReportCache {
	return &RedisReportCache{client: client, ttl: ttl}
}

func (c *RedisReportCache) Get(ctx context.Context, key string) (render.Output, error) {
	if c.client == nil {
		return render.Output{}, config.ErrRedisNotConfigured
	}
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := c.client.Get(ctx, reportCacheKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return render.Output{}, ErrReportCacheMiss
		}
		return render.Output{}, fmt.Errorf("get report cache failed (key=%s): %w", key, err)
	}

	var value cachedReport
	if err := json.Unmarshal(raw, &value); err != nil {
		return render.Output{}, fmt.Errorf("parse report cache failed (key=%s): %w", key, err)
	}
	return value.output(), nil
}

func (c *RedisReportCache) Set(ctx context.Context, key string, out render.Output) error {
	if c.client == nil {
		return config.ErrRedisNotConfigured
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := json.Marshal(toCached(out))
	if err != nil {
		return fmt.Errorf("encode report cache failed: %w", err)
	}
	if err := c.client.Set(ctx, reportCacheKeyPrefix+key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set report cache failed (key=%s): %w", key, err)
	}
	return nil
}

// MemoryReportCache keeps reports in process.
type MemoryReportCache struct {
	cache *gocache.Cache
}

func NewMemoryReportCache(ttl time.Duration) *MemoryReportCache {
	return &MemoryReportCache{cache: gocache.New(ttl, 2*ttl)}
}

func (c *MemoryReportCache) Get(_ context.Context, key string) (render.Output, error) {
	value, ok := c.cache.Get(key)
	if !ok {
		return render.Output{}, ErrReportCacheMiss
	}
	out, ok := value.(render.Output)
	if !ok {
		return render.Output{}, ErrReportCacheMiss
	}
	return out, nil
}

func (c *MemoryReportCache) Set(_ context.Context, key string, out render.Output) error {
	c.cache.SetDefault(key, out)
	return nil
}
