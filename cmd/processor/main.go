package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baharkarakas/payflow-backend/internal/balance"
	"github.com/baharkarakas/payflow-backend/internal/config"
	"github.com/baharkarakas/payflow-backend/internal/db"
	"github.com/baharkarakas/payflow-backend/internal/guard"
	"github.com/baharkarakas/payflow-backend/internal/logger"
	"github.com/baharkarakas/payflow-backend/internal/metrics"
	"github.com/baharkarakas/payflow-backend/internal/processor"
	"github.com/baharkarakas/payflow-backend/internal/queue"
	"github.com/baharkarakas/payflow-backend/internal/repository/postgres"
	"github.com/baharkarakas/payflow-backend/internal/worker"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	cache := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	defer cache.Close()

	metrics.Init()

	repos := postgres.NewRepositories(dbPool)
	wp := worker.NewPool(cfg.Workers)
	defer wp.Stop()

	// redial loop: a lost broker connection ends Run, we reconnect and
	// resume consuming. Unacked deliveries are redelivered by the broker.
	for ctx.Err() == nil {
		if err := runOnce(ctx, cfg, repos, cache, wp); err != nil && ctx.Err() == nil {
			log.Error("processor run", "err", err)
		}
		if ctx.Err() != nil {
			break
		}
		log.Warn("broker connection lost, reconnecting")
		select {
		case <-ctx.Done():
		case <-time.After(3 * time.Second):
		}
	}
	log.Info("processor stopped")
}

func runOnce(ctx context.Context, cfg config.Config, repos postgres.Repositories, cache *goredis.Client, wp *worker.Pool) error {
	bridge, err := queue.DialRabbitMQ(cfg.AmqpURL, cfg.Prefetch)
	if err != nil {
		return err
	}
	defer bridge.Close()

	materializer := balance.NewMaterializer(repos.Accounts, repos.Transactions, cache, bridge, balance.DefaultTTL)
	g := guard.New(repos.Transactions, repos.Cards)
	p := processor.New(repos.Transactions, g, materializer, bridge, wp, int64(cfg.MaxAttempts))

	slog.Info("processor listening",
		"queues", []string{queue.TransactionsQueue, queue.BalanceQueue},
		"workers", cfg.Workers)
	return p.Run(ctx)
}
