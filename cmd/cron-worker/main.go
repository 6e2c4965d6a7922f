package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/dailycart-backend/internal/cron"
	"github.com/angelmondragon/dailycart-backend/internal/inventory"
	"github.com/angelmondragon/dailycart-backend/internal/loyalty"
	"github.com/angelmondragon/dailycart-backend/internal/orders"
	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/db"
	"github.com/angelmondragon/dailycart-backend/pkg/instance"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	"github.com/angelmondragon/dailycart-backend/pkg/metrics"
	"github.com/angelmondragon/dailycart-backend/pkg/migrate"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox"
	"github.com/angelmondragon/dailycart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	cronMetrics := metrics.NewCronJobMetrics(registry)
	fulfillment := metrics.NewFulfillmentMetrics(registry)

	jobs, err := buildJobs(cfg, logg, dbClient, fulfillment)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+lockEnv(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:      logg,
		Registry:    jobs,
		Lock:        lock,
		Metrics:     cronMetrics,
		Interval:    cfg.Cron.Interval,
		// stop a cycle before the lock can lapse under it
		CycleBudget: cfg.Cron.LockTTL * 9 / 10,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, fulfillment *metrics.FulfillmentMetrics) (*cron.Registry, error) {
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)

	stock, err := inventory.NewService(inventory.NewRepository(conn), dbClient, emitter, logg)
	if err != nil {
		return nil, err
	}
	points, err := loyalty.NewService(loyalty.NewRepository(conn), logg)
	if err != nil {
		return nil, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      dbClient,
		Stock:   stock,
		Loyalty: points,
		Outbox:  emitter,
		Metrics: fulfillment,
		Config:  cfg.Orders,
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}

	orderTTL, err := cron.NewOrderTTLJob(cron.OrderTTLJobParams{
		Logger:     logg,
		Orders:     orderService,
		PendingTTL: cfg.Orders.PendingTTL,
		BatchSize:  cfg.Cron.OrderTTLBatch,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		Repository:    outboxRepo,
		RetentionDays: cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(orderTTL, retention)
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
