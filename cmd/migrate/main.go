package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/lodgetix/ticket-inventory/pkg/config"
	"github.com/lodgetix/ticket-inventory/pkg/db"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
	"github.com/lodgetix/ticket-inventory/pkg/migrate"
)

const usage = "migration command: up|down|status|to|create|validate"

func main() {
	cmd := flag.String("cmd", "up", usage)
	dir := flag.String("dir", "", "migrations directory; empty uses the set embedded in the binary (create/validate default to "+migrate.DefaultDir+")")
	name := flag.String("name", "", "migration name for -cmd=create; create_<table> gets a table skeleton")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	// Offline commands work on files only and need no config.
	switch *cmd {
	case "create":
		if *name == "" {
			exit(ctx, logg, "missing -name for create", nil)
		}
		path, err := migrate.CreateSQLMigration(orDefault(*dir), *name)
		if err != nil {
			exit(ctx, logg, "create migration failed", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(orDefault(*dir)); err != nil {
			exit(ctx, logg, "migration validation failed", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		exit(ctx, logg, "failed to load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	source := *dir
	if source == "" {
		source = "embedded"
	}
	ctx = logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd, "source": source})

	if cfg.FeatureFlags.UseSQLite || cfg.DB.Driver == "sqlite" {
		exit(ctx, logg, "goose migrations target postgres; sqlite schemas come from auto-migrate", nil)
	}

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		exit(ctx, logg, "database unavailable", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		exit(ctx, logg, "sql handle unavailable", err)
	}
	fsys, err := migrate.Source(*dir)
	if err != nil {
		exit(ctx, logg, "migration source unavailable", err)
	}
	migrator, err := migrate.NewMigrator(sqlDB, fsys)
	if err != nil {
		exit(ctx, logg, "migrator unavailable", err)
	}
	defer migrator.Close()

	var results []migrate.Result
	switch *cmd {
	case "up":
		results, err = migrator.Up(ctx)
	case "down":
		results, err = migrator.Down(ctx)
	case "to":
		target, perr := migrate.ParseVersion(*version)
		if perr != nil {
			exit(ctx, logg, "invalid -version", perr)
		}
		results, err = migrator.To(ctx, target)
	case "status":
		rows, serr := migrator.Status(ctx)
		if serr != nil {
			exit(ctx, logg, "status failed", serr)
		}
		printStatus(rows)
		return
	default:
		exit(ctx, logg, "unknown -cmd value, expected "+usage, nil)
	}

	printResults(results)
	if err != nil {
		exit(ctx, logg, "migration failed", err)
	}
	logg.Info(logg.WithField(ctx, "migrations", len(results)), "migrate complete")
}

func orDefault(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

func printResults(results []migrate.Result) {
	if len(results) == 0 {
		fmt.Println("no migrations to run")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tDIRECTION\tDURATION\tFILE")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Version, r.Direction, r.Duration, r.Path)
	}
	_ = w.Flush()
}

func printStatus(rows []migrate.StatusRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, r := range rows {
		applied := r.AppliedAt
		if applied == "" {
			applied = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Version, r.State, applied, r.Path)
	}
	_ = w.Flush()
}

func exit(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		logg.Warn(ctx, msg)
	} else {
		logg.Error(ctx, msg, err)
	}
	os.Exit(1)
}
