package controllers

import (
	"context"
	"net/http"

	"github.com/lodgetix/ticket-inventory/api/responses"
	"github.com/lodgetix/ticket-inventory/internal/audit"
	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

type Auditor interface {
	Run(ctx context.Context) (audit.Report, error)
}

// AdminAudit runs a read-only consistency audit and returns the report.
func AdminAudit(auditor Auditor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auditor == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auditor unavailable"))
			return
		}

		report, err := auditor.Run(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}
