package recompute

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/lodgetix/ticket-inventory/internal/pipeline"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

// TypeFailure records a ticket type whose recompute did not complete.
type TypeFailure struct {
	TicketTypeID string `json:"ticketTypeId"`
	Error        string `json:"error"`
}

// Summary is returned by both recompute entry points.
type Summary struct {
	Mode                 enums.RecomputeMode `json:"mode"`
	StartedAt            time.Time           `json:"startedAt"`
	DurationMs           int64               `json:"durationMs"`
	RegistrationsScanned int                 `json:"registrationsScanned"`
	TicketTypesProcessed int                 `json:"ticketTypesProcessed"`
	TicketTypesFailed    int                 `json:"ticketTypesFailed"`
	Failures             []TypeFailure       `json:"failures,omitempty"`
	AnomaliesFound       int                 `json:"anomaliesFound"`
	Anomalies            []pipeline.Anomaly  `json:"anomalies,omitempty"`
	Cancelled            bool                `json:"cancelled"`
	FellBack             bool                `json:"fellBack"`

	errs []error
}

func (s *Summary) recordFailure(ticketTypeID string, err error) {
	s.TicketTypesFailed++
	s.Failures = append(s.Failures, TypeFailure{TicketTypeID: ticketTypeID, Error: err.Error()})
	s.errs = append(s.errs, fmt.Errorf("ticket type %s: %w", ticketTypeID, err))
}

func (s *Summary) setAnomalies(anomalies []pipeline.Anomaly) {
	s.Anomalies = pipeline.DedupeAnomalies(anomalies)
	s.AnomaliesFound = len(s.Anomalies)
}

// FailureError combines the per-type failures, or returns nil when there were
// none. Summaries decoded from JSON only carry Failures.
func (s Summary) FailureError() error {
	if len(s.errs) > 0 {
		return multierr.Combine(s.errs...)
	}
	var err error
	for _, f := range s.Failures {
		err = multierr.Append(err, fmt.Errorf("ticket type %s: %s", f.TicketTypeID, f.Error))
	}
	return err
}

// Outcome labels the run for metrics.
func (s Summary) Outcome(err error) string {
	switch {
	case s.Cancelled:
		return "cancelled"
	case err != nil:
		return "error"
	case s.TicketTypesFailed > 0:
		return "partial"
	default:
		return "success"
	}
}
