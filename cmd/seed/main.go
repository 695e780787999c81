package main

import (
	"context"
	"flag"

	"storefront-cart/internal/config"
	"storefront-cart/internal/db"
	"storefront-cart/internal/logger"
	variantrepo "storefront-cart/internal/repository/variant"
	"storefront-cart/internal/seed"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stdout"}).
		With(zap.String("service", "seed"))
	defer log.Sync()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.DSN, db.Options{MaxConns: cfg.Database.MaxConns, Logger: log})
	if err != nil {
		log.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	ids, err := seed.Apply(ctx, variantrepo.NewPostgres(pool))
	if err != nil {
		log.Fatal("seed apply", zap.Error(err))
	}
	log.Info("seed applied", zap.Int64s("variant_ids", ids))
}
