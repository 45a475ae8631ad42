package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/FAIRDataPipeline/data-registry/config"
	"github.com/FAIRDataPipeline/data-registry/render"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReportCache(t *testing.T) {
	cache := NewMemoryReportCache(time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrReportCacheMiss)

	out := render.Output{ContentType: "application/zip", Body: []byte("PK"), FileName: "d1.zip"}
	require.NoError(t, cache.Set(ctx, "k", out))

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, out, got)
}

func TestNewReportCacheBackend(t *testing.T) {
	assert.Nil(t, NewReportCache(config.CacheConfig{Backend: "none"}, nil))

	_, ok := NewReportCache(config.CacheConfig{Backend: "memory"}, nil).(*MemoryReportCache)
	assert.True(t, ok)

	// redis without a client degrades to memory
	_, ok = NewReportCache(config.CacheConfig{Backend: "redis"}, nil).(*MemoryReportCache)
	assert.True(t, ok)

	_, ok = NewReportCache(config.CacheConfig{}, nil).(*MemoryReportCache)
	assert.True(t, ok)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	defer client.Close()
	_, ok = NewReportCache(config.CacheConfig{}, client).(*RedisReportCache)
	assert.True(t, ok)
}

func TestRedisReportCacheWithoutClient(t *testing.T) {
	cache := NewRedisReportCache(nil, time.Minute)
	_, err := cache.Get(context.Background(), "k")
	assert.ErrorIs(t, err, config.ErrRedisNotConfigured)
	assert.ErrorIs(t, cache.Set(context.Background(), "k", render.Output{}), config.ErrRedisNotConfigured)
}

// Needs a live server: REDIS_ADDR=127.0.0.1:6379 go test ./service -run Redis
func TestRedisReportCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	cache := NewRedisReportCache(client, time.Minute)
	key := "test:" + t.Name()
	t.Cleanup(func() { client.Del(context.Background(), reportCacheKeyPrefix+key) })

	_, err := cache.Get(ctx, key)
	assert.ErrorIs(t, err, ErrReportCacheMiss)

	out := render.Output{ContentType: "text/provenance-notation", Body: []byte("document\nendDocument")}
	require.NoError(t, cache.Set(ctx, key, out))

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, out.ContentType, got.ContentType)
	assert.Equal(t, out.Body, got.Body)
}
