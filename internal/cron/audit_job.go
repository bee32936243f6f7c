package cron

import (
	"context"
	"fmt"

	"github.com/lodgetix/ticket-inventory/internal/audit"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

const auditJobName = "consistency-audit"

type auditRunner interface {
	Run(ctx context.Context) (audit.Report, error)
}

type AuditJobParams struct {
	Logger  *logger.Logger
	Auditor auditRunner
}

// NewAuditJob schedules the read-only consistency audit. Findings are logged,
// not treated as job failures.
func NewAuditJob(params AuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Auditor == nil {
		return nil, fmt.Errorf("auditor required")
	}
	return &auditJob{logg: params.Logger, auditor: params.Auditor}, nil
}

type auditJob struct {
	logg    *logger.Logger
	auditor auditRunner
}

func (j *auditJob) Name() string { return auditJobName }

func (j *auditJob) Run(ctx context.Context) error {
	report, err := j.auditor.Run(ctx)
	if err != nil {
		return fmt.Errorf("consistency audit: %w", err)
	}
	for _, stale := range report.StaleSnapshots {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"ticket_type_id":     stale.TicketTypeID,
			"stored_sold":        stale.Stored.SoldCount,
			"expected_sold":      stale.Expected.SoldCount,
			"stored_available":   stale.Stored.AvailableCount,
			"expected_available": stale.Expected.AvailableCount,
		}), "stale inventory snapshot")
	}
	for _, warning := range report.RevenueWarnings {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"ticket_type_id":  warning.TicketTypeID,
			"implied_revenue": warning.ImpliedRevenue.StringFixed(2),
			"paid_revenue":    warning.PaidRevenue.StringFixed(2),
			"registrations":   warning.Registrations,
		}), "revenue mismatch")
	}
	return nil
}
