package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-cart/internal/domain"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "cartsync:snapshot:"

// RedisConfig holds Redis connection settings for the snapshot backend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisBackend keeps snapshots as plain string values, optionally expiring idle carts.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedis dials Redis and verifies connectivity.
func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisWithClient wraps an existing client, which stays owned by the caller
// unless Close is called.
func NewRedisWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisBackend {
	if keyPrefix == "" {
		keyPrefix = defaultRedisPrefix
	}
	return &RedisBackend{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *RedisBackend) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get snapshot: %w", err)
	}
	return data, nil
}

func (r *RedisBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, r.keyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del snapshot: %w", err)
	}
	return nil
}

func (r *RedisBackend) Name() string { return "redis" }

// Close releases the Redis client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
