package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/you/orderflow/internal/config"
	"github.com/you/orderflow/internal/engine"
	"github.com/you/orderflow/internal/queue"
	"github.com/you/orderflow/internal/relay"
	"github.com/you/orderflow/internal/venue"
)

func main() {
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	if cfg.AppEnv == "dev" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	q := queue.New(rdb, cfg.MaxAttempts, cfg.BackoffBase, cfg.LeaseTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Delayed-job mover and expired-lease reaper run alongside the pool.
	go q.RunScheduler(ctx, time.Second, func(err error) {
		logger.Error("queue scheduler", zap.Error(err))
	})

	w := engine.New(engine.Params{
		Queue:     q,
		Publisher: relay.NewPublisher(rdb),
		Router:    venue.NewRouter(cfg.StepDelay, nil),
		Log:       logger,
		StepDelay: cfg.StepDelay,
	})

	logger.Info("worker pool starting", zap.Int("concurrency", cfg.WorkerConcurrency))
	if err := w.Run(ctx, cfg.WorkerConcurrency); err != nil && ctx.Err() == nil {
		logger.Fatal("worker pool failed", zap.Error(err))
	}
}
