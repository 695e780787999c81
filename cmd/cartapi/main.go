package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront-cart/internal/config"
	"storefront-cart/internal/db"
	"storefront-cart/internal/httpserver"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/migrate"
	cartrepo "storefront-cart/internal/repository/cart"
	variantrepo "storefront-cart/internal/repository/variant"
	cartsvc "storefront-cart/internal/service/cart"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	skipMigrate := flag.Bool("skip-migrate", false, "do not apply migrations on start")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stdout"}).
		With(zap.String("service", "cartapi"))
	defer log.Sync()

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.Database.DSN, db.Options{MaxConns: cfg.Database.MaxConns, Logger: log})
	if err != nil {
		log.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	if !*skipMigrate {
		if err := migrate.Apply(ctx, dbpool); err != nil {
			log.Fatal("apply migrations", zap.Error(err))
		}
	}

	variantRepo := variantrepo.NewPostgres(dbpool)
	cartRepo := cartrepo.NewPostgres(dbpool)
	cartService := cartsvc.New(cartRepo, variantRepo)

	srv, err := httpserver.New(cfg.HTTP.Addr, log, httpserver.Deps{
		CartSvc:     cartService,
		CORSOrigins: cfg.HTTP.CORSAllowOrigins,
		Checks:      map[string]httpserver.Checker{"postgres": dbpool},
	})
	if err != nil {
		log.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting http server", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	} else {
		log.Info("server stopped")
	}
}
