package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Keyset starts a query ordered by the text primary key column, resuming
// strictly after the given key. An empty key starts from the beginning and a
// non-positive limit leaves the query unbounded.
func (b Base) Keyset(ctx context.Context, column, after string, limit int) *gorm.DB {
	q := b.DB(ctx).Order(column + " ASC")
	if after != "" {
		q = q.Where(column+" > ?", after)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}
