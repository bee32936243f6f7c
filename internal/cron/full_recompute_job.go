package cron

import (
	"context"
	"fmt"

	"github.com/lodgetix/ticket-inventory/internal/recompute"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

const fullRecomputeJobName = "full-recompute"

type fullRecomputer interface {
	TriggerFullRecompute(ctx context.Context) (recompute.Summary, error)
}

type FullRecomputeJobParams struct {
	Logger      *logger.Logger
	Coordinator fullRecomputer
}

// NewFullRecomputeJob schedules the authoritative full recompute.
func NewFullRecomputeJob(params FullRecomputeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Coordinator == nil {
		return nil, fmt.Errorf("recompute coordinator required")
	}
	return &fullRecomputeJob{logg: params.Logger, coordinator: params.Coordinator}, nil
}

type fullRecomputeJob struct {
	logg        *logger.Logger
	coordinator fullRecomputer
}

func (j *fullRecomputeJob) Name() string { return fullRecomputeJobName }

// Run fails the job when the run errors or any ticket type could not be written.
func (j *fullRecomputeJob) Run(ctx context.Context) error {
	summary, err := j.coordinator.TriggerFullRecompute(ctx)
	if err != nil {
		return fmt.Errorf("full recompute: %w", err)
	}
	if failures := summary.FailureError(); failures != nil {
		return fmt.Errorf("full recompute: %d ticket types failed: %w", summary.TicketTypesFailed, failures)
	}
	return nil
}
