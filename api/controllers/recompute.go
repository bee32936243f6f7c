package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/lodgetix/ticket-inventory/api/responses"
	"github.com/lodgetix/ticket-inventory/api/validators"
	"github.com/lodgetix/ticket-inventory/internal/recompute"
	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

const maxChangeEventBytes = 1 << 20

// Recomputer runs full and incremental recomputes.
type Recomputer interface {
	TriggerFullRecompute(ctx context.Context) (recompute.Summary, error)
	TriggerIncrementalRecompute(ctx context.Context, event recompute.ChangeEvent) (recompute.Summary, error)
}

// AdminRecomputeFull re-derives every ticket type. Per-type failures are
// reported inside the summary with a 200; only a run that could not start or
// was cancelled returns an error status.
func AdminRecomputeFull(svc Recomputer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recompute service unavailable"))
			return
		}

		summary, err := svc.TriggerFullRecompute(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}

// AdminRecomputeIncremental recomputes the ticket types touched by one change
// event supplied in the body. A missing eventId is generated.
func AdminRecomputeIncremental(svc Recomputer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recompute service unavailable"))
			return
		}

		data, err := validators.ReadBody(r, maxChangeEventBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := recompute.DecodeChangeEvent(data)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, validators.ValidationError(err))
			return
		}
		if event.EventID == "" {
			event.EventID = uuid.NewString()
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithEventID(ctx, event.EventID)
			ctx = logg.WithRegistrationID(ctx, event.RegistrationID)
		}

		summary, err := svc.TriggerIncrementalRecompute(ctx, event)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"eventId": event.EventID,
			"summary": summary,
		})
	}
}
