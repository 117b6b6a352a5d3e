package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/ordo-backend/api/routes"
	"github.com/angelmondragon/ordo-backend/internal/budgets"
	"github.com/angelmondragon/ordo-backend/internal/catalog"
	"github.com/angelmondragon/ordo-backend/internal/grouping"
	"github.com/angelmondragon/ordo-backend/internal/orders"
	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/internal/vendors/sandbox"
	"github.com/angelmondragon/ordo-backend/pkg/config"
	"github.com/angelmondragon/ordo-backend/pkg/db"
	"github.com/angelmondragon/ordo-backend/pkg/httpsession"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/migrate"
	"github.com/angelmondragon/ordo-backend/pkg/outbox"
	"github.com/angelmondragon/ordo-backend/pkg/redis"
	"github.com/angelmondragon/ordo-backend/pkg/security"
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
	if cfg.JWT.Secret == "" {
		logg.Error(context.Background(), "missing jwt secret", errors.New(config.EnvJWTSecret+" is required for the api"))
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
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
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	session, err := httpsession.New(cfg.Vendors)
	if err != nil {
		logg.Error(context.Background(), "failed to create vendor http session", err)
		os.Exit(1)
	}

	sealer, err := security.NewSealer(cfg.Credentials)
	if err != nil {
		logg.Error(context.Background(), "failed to create credential sealer", err)
		os.Exit(1)
	}

	vendorRegistry := vendors.NewRegistry()
	var impersonate []vendors.Slug
	if cfg.FeatureFlags.SandboxVendor {
		impersonate = vendors.KnownSlugs()
	}
	if err := sandbox.Register(vendorRegistry, cfg.Vendors.SandboxURL, impersonate...); err != nil {
		logg.Error(context.Background(), "failed to register vendor clients", err)
		os.Exit(1)
	}
	var sandboxSite http.Handler
	if cfg.FeatureFlags.SandboxVendor {
		sandboxSite = sandbox.NewSite().Handler()
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	orchestrator, err := orders.NewOrchestrator(ordersRepo, sealer, vendorRegistry, session, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order orchestrator", err)
		os.Exit(1)
	}

	budgetService, err := budgets.NewService(budgets.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create budget service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	checkoutLocker, err := orders.NewCheckoutLocker(redisClient, cfg.Orders.CheckoutLockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout locker", err)
		os.Exit(1)
	}

	statusChecks, err := redis.NewDelayedQueue(redisClient, redisClient.QueueKey(orders.StatusCheckQueue))
	if err != nil {
		logg.Error(context.Background(), "failed to create status check queue", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceDeps{
		Repo:             ordersRepo,
		Tx:               dbClient,
		Outbox:           outboxService,
		Checkout:         orchestrator,
		Locker:           checkoutLocker,
		StatusChecks:     statusChecks,
		Budgets:          budgetService,
		Logger:           logg,
		StatusCheckDelay: cfg.Orders.StatusCheckDelay,
		FakeCheckout:     cfg.FeatureFlags.FakeCheckout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	grouper, err := grouping.New(cfg.Grouping.Threshold)
	if err != nil {
		logg.Error(context.Background(), "failed to create product grouper", err)
		os.Exit(1)
	}
	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), dbClient, outboxService, grouper, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"vendors":  vendorRegistry.Slugs(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			orchestrator,
			orchestrator,
			ordersService,
			budgetService,
			catalogService,
			sandboxSite,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}
