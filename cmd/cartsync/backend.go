package main

import (
	"context"
	"fmt"

	"storefront-cart/internal/config"
	"storefront-cart/internal/db"
	"storefront-cart/internal/persist"

	"go.uber.org/zap"
)

// openBackend returns the configured snapshot backend and a func releasing it.
func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (persist.Backend, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return persist.NewMemory(), func() {}, nil
	case config.StorageFile:
		b, err := persist.NewFile(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {}, nil
	case config.StorageRedis:
		b, err := persist.NewRedis(ctx, persist.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Storage.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	case config.StoragePostgres:
		pool, err := db.Connect(ctx, cfg.Database.DSN, db.Options{MaxConns: cfg.Database.MaxConns, Logger: log})
		if err != nil {
			return nil, nil, err
		}
		return persist.NewPostgres(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
