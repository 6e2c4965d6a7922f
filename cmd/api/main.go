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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/dailycart-backend/api/routes"
	"github.com/angelmondragon/dailycart-backend/internal/cart"
	"github.com/angelmondragon/dailycart-backend/internal/checkout"
	"github.com/angelmondragon/dailycart-backend/internal/coupons"
	"github.com/angelmondragon/dailycart-backend/internal/inventory"
	"github.com/angelmondragon/dailycart-backend/internal/loyalty"
	"github.com/angelmondragon/dailycart-backend/internal/orders"
	"github.com/angelmondragon/dailycart-backend/internal/reorder"
	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/db"
	"github.com/angelmondragon/dailycart-backend/pkg/instance"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	"github.com/angelmondragon/dailycart-backend/pkg/metrics"
	"github.com/angelmondragon/dailycart-backend/pkg/migrate"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox"
	"github.com/angelmondragon/dailycart-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	fulfillment := metrics.NewFulfillmentMetrics(registry)

	deps, err := buildServices(cfg, logg, dbClient, fulfillment)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.Config = cfg
	deps.Logger = logg
	deps.DB = dbClient
	deps.Redis = redisClient
	deps.Gatherer = registry

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, fulfillment *metrics.FulfillmentMetrics) (routes.Deps, error) {
	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	catalog := inventory.NewRepository(conn)
	inventoryService, err := inventory.NewService(catalog, dbClient, emitter, logg)
	if err != nil {
		return routes.Deps{}, err
	}

	couponService, err := coupons.NewService(coupons.NewRepository(conn), logg)
	if err != nil {
		return routes.Deps{}, err
	}

	loyaltyService, err := loyalty.NewService(loyalty.NewRepository(conn), logg)
	if err != nil {
		return routes.Deps{}, err
	}

	cartService, err := cart.NewService(cart.NewRepository(conn), catalog, couponService, dbClient, cart.Policy{
		MinOrderAmount:        cfg.Pricing.MinOrderAmount,
		FreeDeliveryThreshold: cfg.Pricing.FreeDeliveryThreshold,
		DeliveryFee:           cfg.Pricing.DeliveryFee,
	}, logg)
	if err != nil {
		return routes.Deps{}, err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      dbClient,
		Stock:   inventoryService,
		Loyalty: loyaltyService,
		Outbox:  emitter,
		Metrics: fulfillment,
		Config:  cfg.Orders,
		Logger:  logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:      dbClient,
		Carts:   cartService,
		Orders:  orderService,
		Coupons: couponService,
		Stock:   inventoryService,
		Outbox:  emitter,
		Metrics: fulfillment,
		Logger:  logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	reorderService, err := reorder.NewService(orderService, cartService, logg)
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		Cart:      cartService,
		Checkout:  checkoutService,
		Orders:    orderService,
		Reorder:   reorderService,
		Coupons:   couponService,
		Inventory: inventoryService,
		Loyalty:   loyaltyService,
	}, nil
}
