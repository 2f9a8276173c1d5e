package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baharkarakas/payflow-backend/internal/api"
	"github.com/baharkarakas/payflow-backend/internal/balance"
	"github.com/baharkarakas/payflow-backend/internal/config"
	"github.com/baharkarakas/payflow-backend/internal/db"
	"github.com/baharkarakas/payflow-backend/internal/logger"
	"github.com/baharkarakas/payflow-backend/internal/metrics"
	"github.com/baharkarakas/payflow-backend/internal/queue"
	"github.com/baharkarakas/payflow-backend/internal/repository/postgres"
	"github.com/baharkarakas/payflow-backend/internal/services"
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

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, dbPool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	bridge, err := queue.DialRabbitMQ(cfg.AmqpURL, cfg.Prefetch)
	if err != nil {
		log.Error("rabbitmq connect", "err", err)
		os.Exit(1)
	}
	defer bridge.Close()

	cache := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	defer cache.Close()

	repos := postgres.NewRepositories(dbPool)
	accountSvc := services.NewAccountService(repos.Accounts)
	cardSvc := services.NewCardService(repos.Cards, repos.Accounts)
	txnSvc := services.NewTransactionService(repos.Transactions, repos.Accounts, bridge)
	materializer := balance.NewMaterializer(repos.Accounts, repos.Transactions, cache, bridge, balance.DefaultTTL)

	metrics.Init()
	r := api.NewRouter(cfg, accountSvc, cardSvc, txnSvc, materializer)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
