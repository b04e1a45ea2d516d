package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/you/orderflow/internal/bridge"
	"github.com/you/orderflow/internal/config"
	"github.com/you/orderflow/internal/queue"
	"github.com/you/orderflow/internal/registry"
	"github.com/you/orderflow/internal/relay"
	"github.com/you/orderflow/internal/storage"
)

func main() {
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	if cfg.AppEnv == "dev" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	store, err := storage.Open(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("postgres open failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(cfg.MigrationsDir); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	q := queue.New(rdb, cfg.MaxAttempts, cfg.BackoffBase, cfg.LeaseTimeout)
	reg := registry.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	disp := bridge.NewDispatcher(reg, store, cfg.CloseGrace, logger)
	sub := relay.NewSubscriber(rdb, logger)
	go func() {
		if err := sub.Run(ctx, disp.Handle); err != nil && ctx.Err() == nil {
			logger.Error("relay subscriber stopped", zap.Error(err))
		}
	}()

	b := bridge.New(q, store, reg, logger)
	rtr := chi.NewRouter()
	rtr.Use(middleware.RequestID, middleware.Recoverer)
	b.Routes(rtr)

	srv := &http.Server{Addr: cfg.APIAddr, Handler: rtr}
	go func() {
		logger.Info("ingress listening", zap.String("addr", cfg.APIAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
