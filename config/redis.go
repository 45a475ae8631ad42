package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisPort    = 6379
	DefaultRedisTimeout = 5 * time.Second
)

var (
	ErrRedisNotConfigured = errors.New("redis host is empty")
	ErrRedisNotWanted     = errors.New("report cache does not use redis")
)

// RedisClient backs the report cache; nil means the cache falls back to memory.
var RedisClient *redis.Client

// wantsRedis reports whether the cache backend can use a redis client at all.
func (c CacheConfig) wantsRedis() bool {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "memory", "none":
		return false
	default:
		return true
	}
}

// NewRedisClient dials and pings the configured server.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, ErrRedisNotConfigured
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultRedisPort
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRedisTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed (host=%s port=%d db=%d): %w", host, port, cfg.DB, err)
	}
	return client, nil
}

// InitRedis connects the report cache client from AppConfig.
// It returns ErrRedisNotWanted when the cache backend is memory or none.
func InitRedis() error {
	if AppConfig == nil {
		return errors.New("app config is not initialized")
	}
	if !AppConfig.Cache.wantsRedis() {
		return ErrRedisNotWanted
	}

	client, err := NewRedisClient(context.Background(), AppConfig.Redis)
	if err != nil {
		return err
	}
	RedisClient = client
	return nil
}

func CloseRedis() error {
	if RedisClient == nil {
		return nil
	}
	err := RedisClient.Close()
	RedisClient = nil
	return err
}
