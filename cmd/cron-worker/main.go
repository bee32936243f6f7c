package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lodgetix/ticket-inventory/internal/audit"
	"github.com/lodgetix/ticket-inventory/internal/cron"
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
	once := flag.Bool("once", false, "run a single locked cycle and exit")
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

	registry := cron.NewRegistry()
	fullJob, err := cron.NewFullRecomputeJob(cron.FullRecomputeJobParams{Logger: logg, Coordinator: coordinator})
	if err != nil {
		logg.Error(context.Background(), "failed to create full recompute job", err)
		os.Exit(1)
	}
	if err := registry.Register(fullJob); err != nil {
		logg.Error(context.Background(), "failed to register full recompute job", err)
		os.Exit(1)
	}

	if cfg.Recompute.AuditEnabled {
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
		auditJob, err := cron.NewAuditJob(cron.AuditJobParams{Logger: logg, Auditor: auditor})
		if err != nil {
			logg.Error(context.Background(), "failed to create audit job", err)
			os.Exit(1)
		}
		if err := registry.Register(auditJob); err != nil {
			logg.Error(context.Background(), "failed to register audit job", err)
			os.Exit(1)
		}
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cfg.App.Env, "inventory-cron"), cfg.Recompute.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Recompute.Interval,
		JobTimeout: cfg.Recompute.JobTimeout,
		Heartbeat:  lock.TTL() / 3,
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
		"instance":    instance.GetID(),
		"interval":    cfg.Recompute.Interval.String(),
		"jobs":        registry.Names(),
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
		service.RunOnce(ctx)
		return
	}

	if addr := cfg.Metrics.Addr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, nil); err != nil {
				logg.Error(ctx, "metrics listener stopped", err)
			}
		}()
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
