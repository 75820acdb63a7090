package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"subscription-bot/internal/common/config"
	"subscription-bot/internal/common/database"
	"subscription-bot/internal/common/logger"
	"subscription-bot/internal/health"
	"subscription-bot/internal/lifecycle"
	"subscription-bot/internal/store"
	"subscription-bot/internal/telegram"
)

func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting subscription bot...",
		zap.String("name", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Storage ---
	pgStore := store.NewPostgresStore(pg.DB, log)
	if err := pgStore.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}
	subStore := store.NewCachedStore(pgStore, rdb.Client, config.GetDuration(cfg.Subscription.CacheTTL), log)

	// --- Telegram transport ---
	tg, err := telegram.NewClient(cfg.Telegram, log)
	if err != nil {
		zapLog.Fatal("telegram client failed", zap.Error(err))
	}

	// --- Lifecycle engine ---
	engine := lifecycle.NewEngine(subStore, tg, tg, lifecycle.Config{
		MembershipDays:    cfg.Subscription.MembershipDays,
		FirstReminderDays: cfg.Subscription.FirstReminderDays,
		FinalReminderDays: cfg.Subscription.FinalReminderDays,
		RejectMode:        lifecycle.RejectMode(cfg.Subscription.RejectMode),
	}, log)

	// --- Health/metrics endpoint ---
	healthSrv := health.NewServer(cfg.Health.Port, log)
	healthSrv.Start()

	// --- Expiry sweeper ---
	sweeper := lifecycle.NewSweeper(engine, cfg.Subscription.SweepSchedule,
		config.GetDuration(cfg.Subscription.SweepTimeout), log)
	if err := sweeper.Start(); err != nil {
		zapLog.Fatal("sweeper start failed", zap.Error(err))
	}

	// --- Update loop (blocks until shutdown signal) ---
	router := telegram.NewRouter(tg, engine, rdb.Client,
		config.GetDuration(cfg.Subscription.CallbackGuardTTL), cfg.Telegram.PollTimeout, log)
	router.Run(ctx)

	zapLog.Info("Shutting down...")
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("health server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Shutdown complete")
}
