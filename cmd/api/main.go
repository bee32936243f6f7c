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

	"github.com/lodgetix/ticket-inventory/api/routes"
	"github.com/lodgetix/ticket-inventory/internal/audit"
	"github.com/lodgetix/ticket-inventory/internal/recompute"
	"github.com/lodgetix/ticket-inventory/internal/registrations"
	"github.com/lodgetix/ticket-inventory/internal/tickettypes"
	"github.com/lodgetix/ticket-inventory/pkg/config"
	"github.com/lodgetix/ticket-inventory/pkg/db"
	"github.com/lodgetix/ticket-inventory/pkg/instance"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
	"github.com/lodgetix/ticket-inventory/pkg/metrics"
	"github.com/lodgetix/ticket-inventory/pkg/migrate"
	"github.com/lodgetix/ticket-inventory/pkg/redis"
)

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
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
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

	registrationRepo := registrations.NewRepository(dbClient.DB())
	ticketTypeRepo := tickettypes.NewRepository(dbClient.DB())

	coordinator, err := recompute.NewCoordinator(recompute.CoordinatorParams{
		Registrations: registrationRepo,
		Inventory:     ticketTypeRepo,
		Logger:        logg,
		Metrics:       metrics.NewRecomputeMetrics(prometheus.DefaultRegisterer),
		Options:       recompute.OptionsFromConfig(cfg.Recompute),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create recompute coordinator", err)
		os.Exit(1)
	}

	auditor, err := audit.NewAuditor(audit.Params{
		Registrations: registrationRepo,
		Inventory:     ticketTypeRepo,
		Logger:        logg,
		Tolerance:     cfg.Recompute.Tolerance(),
		SampleLimit:   cfg.Recompute.AnomalySampleLimit,
		BatchSize:     cfg.Recompute.ScanBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auditor", err)
		os.Exit(1)
	}

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
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:          dbClient,
			Redis:       redisClient,
			TicketTypes: ticketTypeRepo,
			States:      coordinator,
			Recomputer:  coordinator,
			Auditor:     auditor,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server stopped")
}
