package recompute

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/lodgetix/ticket-inventory/internal/pipeline"
	"github.com/lodgetix/ticket-inventory/pkg/config"
	"github.com/lodgetix/ticket-inventory/pkg/db/models"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

// RegistrationSource is the read side of the registration store.
type RegistrationSource interface {
	ScanAll(ctx context.Context, batchSize int, fn func([]models.Registration) error) error
	FindReferencing(ctx context.Context, needles []string) ([]models.Registration, error)
}

// InventoryStore loads the catalog and persists derived snapshots.
type InventoryStore interface {
	LoadCatalog(ctx context.Context) (*pipeline.Catalog, error)
	WriteSnapshot(ctx context.Context, snap pipeline.Snapshot, computedAt time.Time) error
}

// MetricsRecorder observes completed runs.
type MetricsRecorder interface {
	ObserveRun(mode, outcome string, processed, failed int, anomaliesByKind map[string]int, duration time.Duration)
}

// Options tune scanning, fan-out and retries.
type Options struct {
	ScanBatchSize  int
	Workers        int
	WriteAttempts  int
	ReadAttempts   int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// OptionsFromConfig maps the recompute config section onto Options.
func OptionsFromConfig(cfg config.RecomputeConfig) Options {
	return Options{
		ScanBatchSize:  cfg.ScanBatchSize,
		Workers:        cfg.Workers,
		WriteAttempts:  cfg.WriteAttempts,
		ReadAttempts:   cfg.ReadAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}
}

func (o Options) withDefaults() Options {
	if o.ScanBatchSize <= 0 {
		o.ScanBatchSize = 500
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.WriteAttempts <= 0 {
		o.WriteAttempts = 1
	}
	if o.ReadAttempts <= 0 {
		o.ReadAttempts = 1
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 100 * time.Millisecond
	}
	if o.RetryMaxDelay < o.RetryBaseDelay {
		o.RetryMaxDelay = o.RetryBaseDelay
	}
	return o
}

// CoordinatorParams configure the coordinator.
type CoordinatorParams struct {
	Registrations RegistrationSource
	Inventory     InventoryStore
	Logger        *logger.Logger
	Metrics       MetricsRecorder
	Options       Options
	Clock         func() time.Time
}

// Coordinator runs full and incremental recomputes through the same pipeline.
type Coordinator struct {
	registrations RegistrationSource
	inventory     InventoryStore
	logg          *logger.Logger
	metrics       MetricsRecorder
	opts          Options
	now           func() time.Time
	locks         *typeLocks
}

// NewCoordinator builds a coordinator.
func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Registrations == nil {
		return nil, fmt.Errorf("registration source required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Coordinator{
		registrations: params.Registrations,
		inventory:     params.Inventory,
		logg:          params.Logger,
		metrics:       params.Metrics,
		opts:          params.Options.withDefaults(),
		now:           clock,
		locks:         newTypeLocks(),
	}, nil
}

// State reports whether a ticket type is being recomputed in this process.
func (c *Coordinator) State(ticketTypeID string) State {
	return c.locks.state(ticketTypeID)
}

// TriggerFullRecompute re-derives every ticket type from a scan of all
// registrations. Per-type write failures are reported in the summary; the
// error is reserved for runs that could not read their inputs or were
// cancelled. A cancelled run returns the partial summary with ctx.Err().
func (c *Coordinator) TriggerFullRecompute(ctx context.Context) (Summary, error) {
	summary := Summary{Mode: enums.RecomputeModeFull, StartedAt: c.now()}
	ctx = c.logg.WithField(ctx, "mode", string(summary.Mode))
	c.logg.Info(ctx, "recompute started")

	catalog, err := c.loadCatalog(ctx)
	if err != nil {
		return c.finish(ctx, summary, err)
	}
	err = c.runFull(ctx, catalog, &summary)
	return c.finish(ctx, summary, err)
}

// TriggerIncrementalRecompute re-derives only the ticket types touched by one
// registration change. Events whose affected set cannot be determined fall
// back to recomputing every ticket type.
func (c *Coordinator) TriggerIncrementalRecompute(ctx context.Context, event ChangeEvent) (Summary, error) {
	summary := Summary{Mode: enums.RecomputeModeIncremental, StartedAt: c.now()}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"mode":      string(summary.Mode),
		"operation": string(event.Operation),
		"event_id":  event.EventID,
	})
	ctx = c.logg.WithRegistrationID(ctx, event.RegistrationID)

	if err := event.Validate(); err != nil {
		return c.finish(ctx, summary, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid change event"))
	}
	c.logg.Info(ctx, "recompute started")

	catalog, err := c.loadCatalog(ctx)
	if err != nil {
		return c.finish(ctx, summary, err)
	}

	affected, ok := AffectedTicketTypes(event, catalog)
	if !ok {
		summary.FellBack = true
		c.logg.Warn(ctx, "affected ticket types unknown; recomputing all")
		err = c.runFull(ctx, catalog, &summary)
		return c.finish(ctx, summary, err)
	}

	sort.Strings(affected)
	computedAt := c.now()
	var (
		mu        sync.Mutex
		anomalies []pipeline.Anomaly
		scanned   = map[string]struct{}{}
	)
	c.fanOut(ctx, affected, &summary, func(ctx context.Context, id string) error {
		regs, found, err := c.recomputeType(ctx, catalog, id, computedAt)
		mu.Lock()
		anomalies = append(anomalies, found...)
		for _, regID := range regs {
			scanned[regID] = struct{}{}
		}
		mu.Unlock()
		return err
	})
	summary.RegistrationsScanned = len(scanned)
	summary.setAnomalies(anomalies)
	return c.finish(ctx, summary, nil)
}

// runFull scans all registrations once and writes every catalog ticket type.
func (c *Coordinator) runFull(ctx context.Context, catalog *pipeline.Catalog, summary *Summary) error {
	var (
		tally     pipeline.Tally
		anomalies []pipeline.Anomaly
		scanned   int
	)
	err := c.withRetry(ctx, c.opts.ReadAttempts, func(ctx context.Context) error {
		tally, anomalies, scanned = pipeline.Tally{}, nil, 0
		return c.registrations.ScanAll(ctx, c.opts.ScanBatchSize, func(batch []models.Registration) error {
			for _, reg := range batch {
				res := pipeline.Run(reg, catalog)
				tally.AddAll(res.Items)
				anomalies = append(anomalies, res.Anomalies...)
				scanned++
			}
			return nil
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			summary.Cancelled = true
			return ctx.Err()
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan registrations")
	}
	summary.RegistrationsScanned = scanned
	summary.setAnomalies(anomalies)

	computedAt := c.now()
	c.fanOut(ctx, catalog.TicketTypeIDs(), summary, func(ctx context.Context, id string) error {
		def, _ := catalog.TicketType(id)
		snap := pipeline.Reconcile(id, def.TotalCapacity, tally[id])
		release := c.locks.acquire(id)
		defer release()
		return c.write(ctx, snap, computedAt)
	})
	return nil
}

// fanOut runs fn per ticket type with bounded concurrency. Cancellation is
// checked before each type; types already written stay written.
func (c *Coordinator) fanOut(ctx context.Context, ids []string, summary *Summary, fn func(context.Context, string) error) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.opts.Workers)

	for _, id := range ids {
		if ctx.Err() != nil {
			mu.Lock()
			summary.Cancelled = true
			mu.Unlock()
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				summary.Cancelled = true
				mu.Unlock()
				return nil
			}
			typeCtx := c.logg.WithTicketTypeID(ctx, id)
			err := fn(typeCtx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				summary.TicketTypesProcessed++
			case ctx.Err() != nil:
				summary.Cancelled = true
			default:
				summary.recordFailure(id, err)
				c.logg.Error(typeCtx, "ticket type recompute failed", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil && summary.TicketTypesProcessed+summary.TicketTypesFailed < len(ids) {
		summary.Cancelled = true
	}
}

// recomputeType re-derives one ticket type from the registrations that
// currently reference it, directly or through a package.
func (c *Coordinator) recomputeType(ctx context.Context, catalog *pipeline.Catalog, id string, computedAt time.Time) ([]string, []pipeline.Anomaly, error) {
	release := c.locks.acquire(id)
	defer release()

	needles := append([]string{id}, catalog.PackagesContaining(id)...)
	var regs []models.Registration
	err := c.withRetry(ctx, c.opts.ReadAttempts, func(ctx context.Context) error {
		var err error
		regs, err = c.registrations.FindReferencing(ctx, needles)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("find registrations: %w", err)
	}

	var (
		counts    pipeline.Counts
		anomalies []pipeline.Anomaly
		regIDs    = make([]string, 0, len(regs))
	)
	for _, reg := range regs {
		res := pipeline.Run(reg, catalog)
		for _, item := range res.ItemsFor(id) {
			counts.Add(item)
		}
		anomalies = append(anomalies, res.Anomalies...)
		regIDs = append(regIDs, reg.ID)
	}

	def, _ := catalog.TicketType(id)
	snap := pipeline.Reconcile(id, def.TotalCapacity, counts)
	if err := c.write(ctx, snap, computedAt); err != nil {
		return regIDs, anomalies, err
	}
	return regIDs, anomalies, nil
}

func (c *Coordinator) write(ctx context.Context, snap pipeline.Snapshot, computedAt time.Time) error {
	return c.withRetry(ctx, c.opts.WriteAttempts, func(ctx context.Context) error {
		return c.inventory.WriteSnapshot(ctx, snap, computedAt)
	})
}

func (c *Coordinator) loadCatalog(ctx context.Context) (*pipeline.Catalog, error) {
	var catalog *pipeline.Catalog
	err := c.withRetry(ctx, c.opts.ReadAttempts, func(ctx context.Context) error {
		var err error
		catalog, err = c.inventory.LoadCatalog(ctx)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog")
	}
	return catalog, nil
}

// withRetry runs op up to attempts times with capped exponential backoff,
// retrying only errors classified as retryable.
func (c *Coordinator) withRetry(ctx context.Context, attempts int, op func(context.Context) error) error {
	b := retry.NewExponential(c.opts.RetryBaseDelay)
	b = retry.WithCappedDuration(c.opts.RetryMaxDelay, b)
	b = retry.WithMaxRetries(uint64(attempts-1), b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if err != nil && pkgerrors.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Coordinator) finish(ctx context.Context, summary Summary, err error) (Summary, error) {
	if err != nil && ctx.Err() != nil {
		summary.Cancelled = true
	}
	if summary.Cancelled && err == nil {
		err = ctx.Err()
	}
	duration := c.now().Sub(summary.StartedAt)
	summary.DurationMs = duration.Milliseconds()

	if c.metrics != nil {
		byKind := map[string]int{}
		for kind, n := range pipeline.CountByKind(summary.Anomalies) {
			byKind[string(kind)] = n
		}
		c.metrics.ObserveRun(string(summary.Mode), summary.Outcome(err), summary.TicketTypesProcessed, summary.TicketTypesFailed, byKind, duration)
	}

	ctx = c.logg.WithFields(ctx, map[string]any{
		"ticket_types_processed": summary.TicketTypesProcessed,
		"ticket_types_failed":    summary.TicketTypesFailed,
		"anomalies_found":        summary.AnomaliesFound,
		"registrations_scanned":  summary.RegistrationsScanned,
		"duration_ms":            summary.DurationMs,
		"cancelled":              summary.Cancelled,
		"fell_back":              summary.FellBack,
	})
	switch {
	case err != nil && !summary.Cancelled:
		c.logg.Error(ctx, "recompute failed", err)
	case summary.Cancelled:
		c.logg.Warn(ctx, "recompute cancelled")
	default:
		c.logg.Info(ctx, "recompute completed")
	}
	return summary, err
}
