package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/ordo-backend/internal/catalog"
	"github.com/angelmondragon/ordo-backend/internal/grouping"
	"github.com/angelmondragon/ordo-backend/pkg/config"
	"github.com/angelmondragon/ordo-backend/pkg/db"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/migrate"
	"github.com/angelmondragon/ordo-backend/pkg/outbox"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "group-products"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "run", "command: run|manufacturer|export|import")
	category := flag.String("category", "", "category slug (run, export); empty runs every category")
	includeGrouped := flag.Bool("include-grouped", false, "regroup listings that already have a parent")
	file := flag.String("file", "", "csv path for export/import; defaults to stdout/stdin")
	useBy := flag.String("use-by", string(catalog.ResolveByID), "import resolve mode: id|vendor-product")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "group-products",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"cmd":      *cmd,
		"category": *category,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()
	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	grouper, err := grouping.New(cfg.Grouping.Threshold)
	requireResource(ctx, logg, "grouper", err)
	service, err := catalog.NewService(
		catalog.NewRepository(dbClient.DB()),
		dbClient,
		outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		grouper,
		logg,
	)
	requireResource(ctx, logg, "catalog service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	switch *cmd {
	case "run":
		opts := catalog.GroupOptions{IncludeGrouped: *includeGrouped}
		if *category == "" {
			reports, err := service.GroupAllCategories(runCtx, opts)
			printReport(reports)
			exitOnError(runCtx, logg, "grouping failed", err)
			return
		}
		report, err := service.GroupByCategory(runCtx, *category, opts)
		exitOnError(runCtx, logg, "grouping failed", err)
		printReport(report)
	case "manufacturer":
		report, err := service.GroupByManufacturerNumbers(runCtx)
		exitOnError(runCtx, logg, "manufacturer grouping failed", err)
		printReport(report)
	case "export":
		if *category == "" {
			fmt.Fprintln(os.Stderr, "missing -category for export")
			os.Exit(2)
		}
		out, closeFn, err := openOutput(*file)
		exitOnError(runCtx, logg, "open export file", err)
		rows, err := service.ExportCSV(runCtx, out, *category)
		if cerr := closeFn(); err == nil {
			err = cerr
		}
		exitOnError(runCtx, logg, "export failed", err)
		logg.Info(logg.WithField(runCtx, "rows", rows), "export complete")
	case "import":
		mode := catalog.ResolveMode(*useBy)
		if mode != catalog.ResolveByID && mode != catalog.ResolveByVendorProduct {
			fmt.Fprintf(os.Stderr, "invalid -use-by %q\n", *useBy)
			os.Exit(2)
		}
		in, closeFn, err := openInput(*file)
		exitOnError(runCtx, logg, "open import file", err)
		defer closeFn()
		report, err := service.ImportCSV(runCtx, in, mode)
		exitOnError(runCtx, logg, "import failed", err)
		printReport(report)
	default:
		fmt.Fprintf(os.Stderr, "unknown -cmd %q\n", *cmd)
		os.Exit(2)
	}
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func openInput(path string) (io.Reader, func() error, error) {
	if path == "" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func printReport(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func exitOnError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err != nil {
		logg.Error(ctx, msg, err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
