package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/lodgetix/ticket-inventory/internal/backfill"
	"github.com/lodgetix/ticket-inventory/internal/registrations"
	"github.com/lodgetix/ticket-inventory/pkg/config"
	"github.com/lodgetix/ticket-inventory/pkg/db"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "backfill-line-items"})

	_ = godotenv.Load()

	dryRun := flag.Bool("dry-run", true, "report what would change without writing")
	batchSize := flag.Int("batch-size", 0, "registrations per scan page (defaults to config)")
	retries := flag.Int("conflict-retries", -1, "reload attempts after a version conflict (defaults to config)")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "backfill-line-items",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dry_run": *dryRun})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	if *batchSize <= 0 {
		*batchSize = cfg.Backfill.BatchSize
	}
	if *retries < 0 {
		*retries = cfg.Backfill.ConflictRetries
	}

	runner, err := backfill.NewRunner(backfill.Params{
		Store:           registrations.NewRepository(dbClient.DB()),
		Logger:          logg,
		BatchSize:       *batchSize,
		ConflictRetries: *retries,
		DryRun:          *dryRun,
	})
	requireResource(ctx, logg, "backfill runner", err)

	res, runErr := runner.Run(ctx)

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	if runErr != nil {
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
