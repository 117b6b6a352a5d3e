package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ordo-backend/internal/budgets"
	"github.com/angelmondragon/ordo-backend/internal/cron"
	"github.com/angelmondragon/ordo-backend/internal/orders"
	"github.com/angelmondragon/ordo-backend/internal/pricing"
	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/internal/vendors/sandbox"
	"github.com/angelmondragon/ordo-backend/pkg/config"
	"github.com/angelmondragon/ordo-backend/pkg/db"
	"github.com/angelmondragon/ordo-backend/pkg/httpsession"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/metrics"
	"github.com/angelmondragon/ordo-backend/pkg/migrate"
	"github.com/angelmondragon/ordo-backend/pkg/outbox"
	"github.com/angelmondragon/ordo-backend/pkg/redis"
	"github.com/angelmondragon/ordo-backend/pkg/security"
)

func main() {
	jobName := flag.String("job", "", "run a single job once and exit (status-check, price-refresh, budget-rollover, outbox-retention)")
	flag.Parse()

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

	ordersRepo := orders.NewRepository(dbClient.DB())
	orchestrator, err := orders.NewOrchestrator(ordersRepo, sealer, vendorRegistry, session, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order orchestrator", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	statusChecks, err := redis.NewDelayedQueue(redisClient, redisClient.QueueKey(orders.StatusCheckQueue))
	if err != nil {
		logg.Error(context.Background(), "failed to create status check queue", err)
		os.Exit(1)
	}

	budgetService, err := budgets.NewService(budgets.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create budget service", err)
		os.Exit(1)
	}

	priceRunner, err := pricing.NewRunner(
		orchestrator,
		pricing.NewRepository(dbClient.DB()),
		logg,
		pricing.Config{
			QueueSize:        cfg.Pricing.QueueSize,
			AttemptThreshold: cfg.Pricing.AttemptThreshold,
			BulkSize:         cfg.Pricing.BulkSize,
			StatWindow:       cfg.Pricing.StatWindow,
		},
		pricing.WithMetrics(metrics.NewPriceRefreshMetrics(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create price refresh runner", err)
		os.Exit(1)
	}

	refreshVendors, err := pricingVendors(cfg.Pricing.Vendors, vendorRegistry)
	if err != nil {
		logg.Error(context.Background(), "invalid pricing vendors", err)
		os.Exit(1)
	}

	statusCheckJob, err := cron.NewOrderStatusCheckJob(cron.OrderStatusCheckJobParams{
		Logger:  logg,
		DB:      dbClient,
		Orders:  ordersRepo,
		Outbox:  outboxService,
		Budgets: budgetService,
		Clients: orchestrator,
		Queue:   statusChecks,
		Batch:   cfg.Orders.StatusCheckBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create status check job", err)
		os.Exit(1)
	}
	priceRefreshJob, err := cron.NewPriceRefreshJob(cron.PriceRefreshJobParams{
		Logger:  logg,
		Runner:  priceRunner,
		Vendors: refreshVendors,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create price refresh job", err)
		os.Exit(1)
	}
	rolloverJob, err := cron.NewBudgetRolloverJob(cron.BudgetRolloverJobParams{
		Logger:  logg,
		Budgets: budgetService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create budget rollover job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(statusCheckJob, rolloverJob, retentionJob, priceRefreshJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
	})

	if *jobName != "" {
		ctx = logg.WithField(ctx, "job", *jobName)
		logg.Info(ctx, "running single cron job")
		if err := service.RunJob(ctx, *jobName); err != nil {
			logg.Error(ctx, "cron job failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// pricingVendors resolves the configured vendor list, defaulting to every
// registered client.
func pricingVendors(raw []string, registry *vendors.Registry) ([]vendors.Slug, error) {
	if len(raw) == 0 {
		return registry.Slugs(), nil
	}
	out := make([]vendors.Slug, 0, len(raw))
	for _, value := range raw {
		slug, err := vendors.ParseSlug(value)
		if err != nil {
			return nil, err
		}
		out = append(out, slug)
	}
	return out, nil
}
