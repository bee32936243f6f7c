package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lodgetix/ticket-inventory/pkg/config"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
	"github.com/lodgetix/ticket-inventory/pkg/metrics"
)

const readinessTimeout = 10 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       pinger
	Redis    pinger
	PubSub   pinger
	Consumer runner
}

// Service runs the change feed consumer once every dependency answers, with
// an optional metrics listener alongside it.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	deps     map[string]pinger
	consumer runner
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Redis == nil:
		return nil, errors.New("redis client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Consumer == nil:
		return nil, errors.New("change feed consumer is required")
	}
	return &Service{
		cfg:  params.Config,
		logg: params.Logger,
		deps: map[string]pinger{
			"database": params.DB,
			"redis":    params.Redis,
			"pubsub":   params.PubSub,
		},
		consumer: params.Consumer,
	}, nil
}

// ensureReadiness pings every dependency concurrently and fails on the first
// that does not answer within readinessTimeout.
func (s *Service) ensureReadiness(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(s.deps))
	for name := range s.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		dep := s.deps[name]
		g.Go(func() error {
			if err := dep.Ping(gctx); err != nil {
				s.logg.Error(s.logg.WithField(ctx, "dependency", name), "dependency ping failed", err)
				return fmt.Errorf("%s ping failed: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "dependencies", names), "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	// The metrics listener lives only as long as the consumer.
	runCtx, stopRun := context.WithCancel(gctx)
	defer stopRun()
	g.Go(func() error {
		defer stopRun()
		err := s.consumer.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "consumer stopped unexpectedly", err)
		}
		return err
	})
	if addr := s.cfg.Metrics.Addr; addr != "" {
		g.Go(func() error {
			s.logg.Info(s.logg.WithField(ctx, "addr", addr), "metrics listener started")
			if err := metrics.Serve(runCtx, addr, nil); err != nil {
				s.logg.Error(ctx, "metrics listener stopped", err)
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	}
	return err
}
