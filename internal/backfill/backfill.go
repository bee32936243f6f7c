package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/lodgetix/ticket-inventory/internal/pipeline"
	"github.com/lodgetix/ticket-inventory/internal/registrations"
	"github.com/lodgetix/ticket-inventory/pkg/db/models"
	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

const (
	defaultBatchSize       = 200
	defaultConflictRetries = 3
)

// Store is the slice of the registration repository the backfill needs.
type Store interface {
	ScanAll(ctx context.Context, batchSize int, fn func([]models.Registration) error) error
	Get(ctx context.Context, id string) (*models.Registration, bool, error)
	ReplaceLineItems(ctx context.Context, id string, expectedVersion int64, items dbtypes.LineItems) (int64, error)
}

// Params configure a Runner.
type Params struct {
	Store           Store
	Logger          *logger.Logger
	BatchSize       int
	ConflictRetries int
	DryRun          bool
}

// Runner rewrites registration line items onto canonical keys in place.
type Runner struct {
	store           Store
	logg            *logger.Logger
	batchSize       int
	conflictRetries int
	dryRun          bool
}

// Result summarizes a backfill pass.
type Result struct {
	Scanned      int      `json:"scanned"`
	NeedsRewrite int      `json:"needsRewrite"`
	Rewritten    int      `json:"rewritten"`
	ItemsChanged int      `json:"itemsChanged"`
	Conflicts    int      `json:"conflicts"`
	Vanished     int      `json:"vanished"`
	Failed       []string `json:"failed,omitempty"`
	DryRun       bool     `json:"dryRun"`
	DurationMs   int64    `json:"durationMs"`
}

func NewRunner(params Params) (*Runner, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("registration store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	retries := params.ConflictRetries
	if retries < 0 {
		retries = defaultConflictRetries
	}
	return &Runner{
		store:           params.Store,
		logg:            params.Logger,
		batchSize:       batch,
		conflictRetries: retries,
		dryRun:          params.DryRun,
	}, nil
}

// CanonicalizeItems rewrites every item, reporting how many changed.
func CanonicalizeItems(items dbtypes.LineItems) (dbtypes.LineItems, int) {
	out := make(dbtypes.LineItems, len(items))
	changed := 0
	for i, item := range items {
		if item == nil {
			out[i] = item
			continue
		}
		canonical, changes := pipeline.Canonicalize(item)
		out[i] = canonical
		if len(changes) > 0 {
			changed++
		}
	}
	return out, changed
}

// Run scans the corpus and rewrites registrations whose line items are not
// already canonical. Per-registration failures are collected and returned
// together; the scan itself keeps going.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	ctx = r.logg.WithFields(ctx, map[string]any{"job": "backfill-line-items", "dry_run": r.dryRun})
	r.logg.Info(ctx, "line item backfill started")

	res := Result{DryRun: r.dryRun}
	var errs error

	scanErr := r.store.ScanAll(ctx, r.batchSize, func(batch []models.Registration) error {
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			res.Scanned++
			if err := r.process(ctx, batch[i], &res); err != nil {
				res.Failed = append(res.Failed, batch[i].ID)
				errs = multierr.Append(errs, err)
				r.logg.Error(r.logg.WithRegistrationID(ctx, batch[i].ID), "line item rewrite failed", err)
			}
		}
		return nil
	})
	if scanErr != nil {
		errs = multierr.Append(errs, fmt.Errorf("scan registrations: %w", scanErr))
	}

	res.DurationMs = time.Since(started).Milliseconds()
	ctx = r.logg.WithFields(ctx, map[string]any{
		"scanned":       res.Scanned,
		"needs_rewrite": res.NeedsRewrite,
		"rewritten":     res.Rewritten,
		"items_changed": res.ItemsChanged,
		"conflicts":     res.Conflicts,
		"failed":        len(res.Failed),
		"duration_ms":   res.DurationMs,
	})
	if errs != nil {
		r.logg.Error(ctx, "line item backfill finished with errors", errs)
	} else {
		r.logg.Info(ctx, "line item backfill completed")
	}
	return res, errs
}

func (r *Runner) process(ctx context.Context, reg models.Registration, res *Result) error {
	items, changed := CanonicalizeItems(reg.LineItems)
	if changed == 0 {
		return nil
	}
	res.NeedsRewrite++
	if r.dryRun {
		res.ItemsChanged += changed
		return nil
	}

	current := reg
	for attempt := 0; ; attempt++ {
		_, err := r.store.ReplaceLineItems(ctx, current.ID, current.Version, items)
		if err == nil {
			res.Rewritten++
			res.ItemsChanged += changed
			return nil
		}
		if !errors.Is(err, registrations.ErrVersionConflict) {
			return err
		}
		res.Conflicts++
		if attempt >= r.conflictRetries {
			return fmt.Errorf("registration %s: %w after %d retries", current.ID, err, attempt)
		}

		fresh, found, getErr := r.store.Get(ctx, current.ID)
		if getErr != nil {
			return getErr
		}
		if !found {
			res.Vanished++
			return nil
		}
		current = *fresh
		items, changed = CanonicalizeItems(current.LineItems)
		if changed == 0 {
			return nil
		}
	}
}
