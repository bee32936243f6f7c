package registrations

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lodgetix/ticket-inventory/internal/repo"
	"github.com/lodgetix/ticket-inventory/pkg/db"
	"github.com/lodgetix/ticket-inventory/pkg/db/models"
	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
	"gorm.io/gorm"
)

// ErrVersionConflict is returned when a conditional rewrite finds the
// registration changed since it was read.
var ErrVersionConflict = errors.New("registration version conflict")

const defaultBatchSize = 500

// needlePattern bounds what may be spliced into a LIKE pattern. Ids outside
// it send FindReferencing to a full scan.
var needlePattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// Repository reads registrations and performs the backfill's conditional rewrites.
type Repository struct {
	repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

// ScanAll streams every registration in primary key order, batchSize rows at a time.
func (r *Repository) ScanAll(ctx context.Context, batchSize int, fn func([]models.Registration) error) error {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var batch []models.Registration
		if err := r.Keyset(ctx, "registration_id", cursor, batchSize).Find(&batch).Error; err != nil {
			return db.Classify(err, fmt.Sprintf("scan registrations after %q", cursor))
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		cursor = batch[len(batch)-1].ID
	}
}

// FindReferencing returns registrations whose line items mention any needle.
// Matching is textual, so the result is a superset that callers narrow by
// running the pipeline.
func (r *Repository) FindReferencing(ctx context.Context, needles []string) ([]models.Registration, error) {
	if len(needles) == 0 {
		return []models.Registration{}, nil
	}

	q := r.DB(ctx).Order("registration_id ASC")
	if allSafe(needles) {
		cond := r.DB(ctx)
		for i, needle := range needles {
			pattern := "%" + needle + "%"
			if i == 0 {
				cond = cond.Where("CAST(line_items AS TEXT) LIKE ?", pattern)
				continue
			}
			cond = cond.Or("CAST(line_items AS TEXT) LIKE ?", pattern)
		}
		q = q.Where(cond)
	}

	var rows []models.Registration
	if err := q.Find(&rows).Error; err != nil {
		return nil, db.Classify(err, fmt.Sprintf("find registrations referencing %v", needles))
	}
	return rows, nil
}

// Get returns the registration or false when it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*models.Registration, bool, error) {
	var row models.Registration
	err := r.DB(ctx).Where("registration_id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, db.Classify(err, fmt.Sprintf("get registration %s", id))
	}
	return &row, true, nil
}

// ReplaceLineItems rewrites line_items only if the stored version still
// matches expectedVersion, bumping the version on success.
func (r *Repository) ReplaceLineItems(ctx context.Context, id string, expectedVersion int64, items dbtypes.LineItems) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Registration{}).
		Where("registration_id = ? AND version = ?", id, expectedVersion).
		UpdateColumns(map[string]any{
			"line_items": items,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, db.Classify(res.Error, fmt.Sprintf("replace line items for %s", id))
	}
	if res.RowsAffected == 0 {
		return 0, ErrVersionConflict
	}
	return expectedVersion + 1, nil
}

// Save inserts or replaces a registration. Used by tooling and tests.
func (r *Repository) Save(ctx context.Context, reg *models.Registration) error {
	if err := r.DB(ctx).Save(reg).Error; err != nil {
		return pkgerrors.Wrapf(pkgerrors.CodeDependency, err, "save registration %s", reg.ID)
	}
	return nil
}

func allSafe(needles []string) bool {
	for _, needle := range needles {
		if !needlePattern.MatchString(needle) {
			return false
		}
	}
	return true
}
