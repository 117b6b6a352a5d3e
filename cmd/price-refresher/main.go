package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ordo-backend/internal/orders"
	"github.com/angelmondragon/ordo-backend/internal/pricing"
	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/internal/vendors/sandbox"
	"github.com/angelmondragon/ordo-backend/pkg/config"
	"github.com/angelmondragon/ordo-backend/pkg/db"
	"github.com/angelmondragon/ordo-backend/pkg/httpsession"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/metrics"
	"github.com/angelmondragon/ordo-backend/pkg/security"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "price-refresher"})

	_ = godotenv.Load()

	vendorFlag := flag.String("vendor", "", "vendor slug to refresh (required)")
	officeFlag := flag.String("office", "", "refresh only this office's products, using its credentials")
	flag.Parse()

	slug, err := vendors.ParseSlug(*vendorFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -vendor: %v\n", err)
		os.Exit(2)
	}
	var officeID *uuid.UUID
	if *officeFlag != "" {
		parsed, err := uuid.Parse(*officeFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -office: %v\n", err)
			os.Exit(2)
		}
		officeID = &parsed
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "price-refresher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	session, err := httpsession.New(cfg.Vendors)
	requireResource(ctx, logg, "vendor http session", err)
	sealer, err := security.NewSealer(cfg.Credentials)
	requireResource(ctx, logg, "credential sealer", err)

	vendorRegistry := vendors.NewRegistry()
	var impersonate []vendors.Slug
	if cfg.FeatureFlags.SandboxVendor {
		impersonate = vendors.KnownSlugs()
	}
	requireResource(ctx, logg, "vendor registry", sandbox.Register(vendorRegistry, cfg.Vendors.SandboxURL, impersonate...))

	orchestrator, err := orders.NewOrchestrator(orders.NewRepository(dbClient.DB()), sealer, vendorRegistry, session, logg)
	requireResource(ctx, logg, "order orchestrator", err)

	runner, err := pricing.NewRunner(
		orchestrator,
		pricing.NewRepository(dbClient.DB()),
		logg,
		pricing.Config{
			QueueSize:        cfg.Pricing.QueueSize,
			AttemptThreshold: cfg.Pricing.AttemptThreshold,
			BulkSize:         cfg.Pricing.BulkSize,
			StatWindow:       cfg.Pricing.StatWindow,
		},
		pricing.WithMetrics(metrics.NewPriceRefreshMetrics(prometheus.NewRegistry())),
	)
	requireResource(ctx, logg, "price refresh runner", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithVendor(runCtx, slug.String())
	if officeID != nil {
		runCtx = logg.WithOfficeID(runCtx, officeID.String())
	}
	logg.Info(runCtx, "price refresh starting")

	summary, err := runner.Refresh(runCtx, slug, officeID)
	if err != nil {
		logg.Error(runCtx, "price refresh failed", err)
		os.Exit(1)
	}

	logg.Info(logg.WithFields(runCtx, map[string]any{
		"enqueued":    summary.Enqueued,
		"updated":     summary.Updated,
		"unavailable": summary.Unavailable,
		"exhausted":   summary.Exhausted,
		"retried":     summary.Retried,
		"skipped":     summary.Skipped,
		"failed":      summary.Failed,
	}), "price refresh complete")
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err != nil {
		logg.Error(ctx, fmt.Sprintf("resource not working: %s", name), err)
		os.Exit(1)
	}
}
