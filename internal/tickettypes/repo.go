package tickettypes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lodgetix/ticket-inventory/internal/pipeline"
	"github.com/lodgetix/ticket-inventory/internal/repo"
	"github.com/lodgetix/ticket-inventory/pkg/db"
	"github.com/lodgetix/ticket-inventory/pkg/db/models"
	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
	"github.com/lodgetix/ticket-inventory/pkg/pagination"
	"gorm.io/gorm"
)

// Repository reads the ticket type and package catalog and owns the derived
// count columns of ticket_types.
type Repository struct {
	repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

// LoadCatalog snapshots ticket types and packages into an immutable lookup.
func (r *Repository) LoadCatalog(ctx context.Context) (*pipeline.Catalog, error) {
	ticketTypes, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var packages []models.Package
	if err := r.DB(ctx).Order("package_id ASC").Find(&packages).Error; err != nil {
		return nil, db.Classify(err, "list packages")
	}
	return pipeline.CatalogFromModels(ticketTypes, packages), nil
}

// List returns every ticket type ordered by id.
func (r *Repository) List(ctx context.Context) ([]models.TicketType, error) {
	var rows []models.TicketType
	if err := r.Keyset(ctx, "ticket_type_id", "", 0).Find(&rows).Error; err != nil {
		return nil, db.Classify(err, "list ticket types")
	}
	return rows, nil
}

// Page is one keyset page of ticket types.
type Page struct {
	Items      []models.TicketType
	NextCursor string
}

// ListPage returns ticket types ordered by id, resuming after the cursor.
func (r *Repository) ListPage(ctx context.Context, params pagination.Params) (Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	after := ""
	if cursor != nil {
		after = cursor.AfterID
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var rows []models.TicketType
	if err := r.Keyset(ctx, "ticket_type_id", after, pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return Page{}, db.Classify(err, "list ticket type page")
	}

	page := Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{AfterID: rows[limit-1].ID})
	}
	return page, nil
}

// Get returns the ticket type or false when it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*models.TicketType, bool, error) {
	var row models.TicketType
	err := r.DB(ctx).Where("ticket_type_id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, db.Classify(err, fmt.Sprintf("get ticket type %s", id))
	}
	return &row, true, nil
}

// WriteSnapshot replaces the derived field group of one ticket type in a
// single UPDATE so readers never observe a mix of two computations.
func (r *Repository) WriteSnapshot(ctx context.Context, snap pipeline.Snapshot, computedAt time.Time) error {
	computedAt = computedAt.UTC()
	res := r.DB(ctx).
		Model(&models.TicketType{}).
		Where("ticket_type_id = ?", snap.TicketTypeID).
		UpdateColumns(map[string]any{
			"sold_count":        snap.SoldCount,
			"reserved_count":    snap.ReservedCount,
			"transferred_count": snap.TransferredCount,
			"cancelled_count":   snap.CancelledCount,
			"available_count":   snap.AvailableCount,
			"utilization_rate":  snap.UtilizationRate,
			"last_computed_at":  computedAt,
		})
	if res.Error != nil {
		return db.Classify(res.Error, fmt.Sprintf("write snapshot for %s", snap.TicketTypeID))
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "ticket type %s not found", snap.TicketTypeID).WithDetail("ticketTypeId", snap.TicketTypeID)
	}
	return nil
}

// StoredSnapshot extracts the derived fields currently persisted on a ticket type.
func StoredSnapshot(tt models.TicketType) pipeline.Snapshot {
	return pipeline.Snapshot{
		TicketTypeID:     tt.ID,
		SoldCount:        tt.SoldCount,
		ReservedCount:    tt.ReservedCount,
		TransferredCount: tt.TransferredCount,
		CancelledCount:   tt.CancelledCount,
		AvailableCount:   tt.AvailableCount,
		UtilizationRate:  tt.UtilizationRate,
	}
}
