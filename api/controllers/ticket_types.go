package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lodgetix/ticket-inventory/api/responses"
	"github.com/lodgetix/ticket-inventory/api/validators"
	"github.com/lodgetix/ticket-inventory/internal/recompute"
	"github.com/lodgetix/ticket-inventory/internal/tickettypes"
	"github.com/lodgetix/ticket-inventory/pkg/db/models"
	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
	"github.com/lodgetix/ticket-inventory/pkg/pagination"
	"github.com/lodgetix/ticket-inventory/pkg/types"
)

// TicketTypeReader is the read side of the ticket type store.
type TicketTypeReader interface {
	ListPage(ctx context.Context, params pagination.Params) (tickettypes.Page, error)
	Get(ctx context.Context, id string) (*models.TicketType, bool, error)
}

// StateReporter reports whether a ticket type is mid-recompute in this process.
type StateReporter interface {
	State(ticketTypeID string) recompute.State
}

// TicketTypeView is the public shape of a ticket type and its derived counts.
type TicketTypeView struct {
	TicketTypeID     string          `json:"ticketTypeId"`
	Name             string          `json:"name"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	TotalCapacity    int             `json:"totalCapacity"`
	SoldCount        int             `json:"soldCount"`
	ReservedCount    int             `json:"reservedCount"`
	TransferredCount int             `json:"transferredCount"`
	CancelledCount   int             `json:"cancelledCount"`
	AvailableCount   int             `json:"availableCount"`
	UtilizationRate  decimal.Decimal `json:"utilizationRate"`
	LastComputedAt   *time.Time      `json:"lastComputedAt"`
	State            recompute.State `json:"state,omitempty"`
}

func newTicketTypeView(tt models.TicketType, states StateReporter) TicketTypeView {
	view := TicketTypeView{
		TicketTypeID:     tt.ID,
		Name:             tt.Name,
		UnitPrice:        tt.UnitPrice,
		TotalCapacity:    tt.TotalCapacity,
		SoldCount:        tt.SoldCount,
		ReservedCount:    tt.ReservedCount,
		TransferredCount: tt.TransferredCount,
		CancelledCount:   tt.CancelledCount,
		AvailableCount:   tt.AvailableCount,
		UtilizationRate:  tt.UtilizationRate,
		LastComputedAt:   tt.LastComputedAt,
	}
	if states != nil {
		view.State = states.State(tt.ID)
	}
	return view
}

const maxCursorLength = 512

// ListTicketTypes returns one cursor page of ticket types ordered by id.
func ListTicketTypes(reader TicketTypeReader, states StateReporter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cursor, err := validators.ParseQueryToken(r, "cursor", maxCursorLength)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := reader.ListPage(r.Context(), pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]TicketTypeView, 0, len(page.Items))
		for _, tt := range page.Items {
			items = append(items, newTicketTypeView(tt, states))
		}

		responses.WriteSuccess(w, types.Page[TicketTypeView]{Items: items, NextCursor: page.NextCursor})
	}
}

func GetTicketType(reader TicketTypeReader, states StateReporter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := validators.SanitizeString(chi.URLParam(r, "ticketTypeId"), 128)
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "ticketTypeId is required"))
			return
		}

		tt, ok, err := reader.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "ticket type not found").
				WithDetail("ticketTypeId", id))
			return
		}

		responses.WriteSuccess(w, newTicketTypeView(*tt, states))
	}
}
