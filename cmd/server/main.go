package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Abdul07in/supplychainx/internal/api"
	"github.com/Abdul07in/supplychainx/internal/cache"
	"github.com/Abdul07in/supplychainx/internal/clock"
	"github.com/Abdul07in/supplychainx/internal/config"
	"github.com/Abdul07in/supplychainx/internal/coordinator"
	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/Abdul07in/supplychainx/internal/events"
	"github.com/Abdul07in/supplychainx/internal/inventory"
	"github.com/Abdul07in/supplychainx/internal/monitor"
	"github.com/Abdul07in/supplychainx/internal/notify"
	"github.com/Abdul07in/supplychainx/internal/store"
	ws "github.com/Abdul07in/supplychainx/internal/websocket"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Record store
	backend, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	if pg, ok := backend.(*store.PostgresStore); ok {
		if err := pg.RunMigrations(ctx, "migrations"); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}
	logger.Info("record store ready")

	// Redis is optional; without it notices skip the breaker and rate limiter.
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// Event bus
	bus := events.NewBus(logger, events.WithRegisterer(registry))
	busDone := make(chan struct{})
	go func() {
		bus.Run(runCtx)
		close(busDone)
	}()

	// Notices
	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.WebhookURL != "" {
		sender = notify.NewWebhookSender(cfg.WebhookURL, cfg.WebhookSecret)
		logger.Info("notices delivered by webhook", "url", cfg.WebhookURL)
	}

	delivererOpts := []notify.DelivererOption{notify.WithRegisterer(registry)}
	var breaker *notify.CircuitBreaker
	checks := []api.HealthCheck{{
		Name: "store",
		Check: func(ctx context.Context) error {
			_, err := backend.Count(ctx, domain.Products)
			return err
		},
	}}
	if rdb := redisStore.Client(); rdb != nil {
		breaker = notify.NewCircuitBreaker(rdb, logger, notify.WithCooldown(cfg.BreakerCooldown))
		limiter := notify.NewRateLimiter(rdb, cfg.RateLimit, logger, notify.WithWindow(cfg.RateWindow))
		delivererOpts = append(delivererOpts,
			notify.WithCircuitBreaker(breaker),
			notify.WithRateLimit(limiter),
		)
		checks = append(checks, api.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		logger.Info("connected to Redis")
	}

	pool := notify.NewPool(cfg.NumWorkers, notify.NewDeliverer(sender, logger, delivererOpts...), logger)
	pool.Start(runCtx)

	hub := ws.NewHub(logger)
	go hub.Run(runCtx)

	// Subscription order is delivery order: the monitor runs before the
	// feed sees a stock update.
	registrations := []interface {
		Register(events.Registrar) error
	}{
		monitor.NewStockMonitor(bus, cfg.StockLowThreshold, logger),
		notify.NewDispatcher(pool, cfg.Recipients, logger),
		hub,
	}
	for _, r := range registrations {
		if err := r.Register(bus); err != nil {
			logger.Error("failed to subscribe", "error", err)
			os.Exit(1)
		}
	}

	// Cache and coordinator
	queryCache := cache.New(logger,
		cache.WithStaleAfter(cfg.CacheStaleAfter),
		cache.WithRetention(cfg.CacheRetention),
		cache.WithRegisterer(registry),
	)
	go cache.NewJanitor(queryCache, cfg.CacheGCInterval, logger).Start(runCtx)

	coord := coordinator.New(queryCache, logger,
		coordinator.WithPublisher(bus),
		coordinator.WithRegisterer(registry),
	)

	stores := store.NewStores(backend, clock.System{})
	opts := inventory.DefaultOptions()
	opts.Retry.MaxAttempts = cfg.RetryMaxAttempts
	opts.ListStaleAfter = cfg.CacheStaleAfter

	svc := inventory.NewService(inventory.Backends{
		Products:       stores.Products,
		Suppliers:      stores.Suppliers,
		PurchaseOrders: stores.PurchaseOrders,
		SalesOrders:    stores.SalesOrders,
		Shipments:      stores.Shipments,
		Overview:       stores.Counts,
	}, coord, opts, logger)

	// Setup router
	dashboard := api.NewDashboardHandler(svc, stores, cfg.StockLowThreshold, breaker, cfg.Recipients, hub)
	router := api.NewRouter(svc, dashboard, hub, registry, checks...)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Deliver what the last requests published, including alerts the monitor
	// derives from them, then flush queued notices.
	if err := bus.Shutdown(shutdownCtx); err != nil {
		logger.Warn("event backlog not drained", "error", err)
	}
	select {
	case <-busDone:
	case <-shutdownCtx.Done():
	}
	pool.Stop()
	cancelRun()

	logger.Info("server stopped")
}
