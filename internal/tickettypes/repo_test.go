package tickettypes

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgetix/ticket-inventory/internal/pipeline"
	"github.com/lodgetix/ticket-inventory/pkg/db/models"
	"github.com/lodgetix/ticket-inventory/pkg/db/sqlitetest"
	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
	"github.com/lodgetix/ticket-inventory/pkg/pagination"
)

func seedCatalog(t *testing.T, r *Repository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.DB(ctx).Create(&[]models.TicketType{
		{ID: "drinks", Name: "Drinks", UnitPrice: decimal.RequireFromString("35.00"), TotalCapacity: 300},
		{ID: "banquet", Name: "Banquet", UnitPrice: decimal.RequireFromString("115.00"), TotalCapacity: 450},
	}).Error)
	require.NoError(t, r.DB(ctx).Create(&models.Package{
		ID:    "dinner-pack",
		Name:  "Dinner Pack",
		Price: decimal.RequireFromString("140.00"),
		IncludedItems: dbtypes.IncludedItems{
			{TicketTypeID: "banquet", Quantity: 1},
			{TicketTypeID: "drinks", Quantity: 1},
		},
	}).Error)
}

func TestLoadCatalog(t *testing.T) {
	r := NewRepository(sqlitetest.Open(t))
	seedCatalog(t, r)

	catalog, err := r.LoadCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"banquet", "drinks"}, catalog.TicketTypeIDs())

	banquet, ok := catalog.TicketType("banquet")
	require.True(t, ok)
	assert.Equal(t, 450, banquet.TotalCapacity)
	assert.True(t, banquet.UnitPrice.Equal(decimal.NewFromInt(115)))

	pack, ok := catalog.Package("dinner-pack")
	require.True(t, ok)
	assert.Len(t, pack.Items, 2)
	assert.Equal(t, []string{"dinner-pack"}, catalog.PackagesContaining("drinks"))

	_, ok = catalog.TicketType("ghost")
	assert.False(t, ok)
}

func TestWriteSnapshotReplacesAllDerivedFields(t *testing.T) {
	r := NewRepository(sqlitetest.Open(t))
	seedCatalog(t, r)
	ctx := context.Background()

	snap := pipeline.Reconcile("banquet", 450, pipeline.Counts{Sold: 10, Reserved: 5, Transferred: 2, Cancelled: 1})
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.WriteSnapshot(ctx, snap, at))

	got, ok, err := r.Get(ctx, "banquet")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, StoredSnapshot(*got).Equal(snap), "stored %+v want %+v", StoredSnapshot(*got), snap)
	require.NotNil(t, got.LastComputedAt)
	assert.True(t, got.LastComputedAt.Equal(at))
	assert.Equal(t, "Banquet", got.Name, "catalog owned fields are untouched")

	zero := pipeline.Reconcile("banquet", 450, pipeline.Counts{})
	require.NoError(t, r.WriteSnapshot(ctx, zero, at.Add(time.Minute)))
	got, _, err = r.Get(ctx, "banquet")
	require.NoError(t, err)
	assert.Equal(t, 0, got.SoldCount, "zero values must be written")
	assert.Equal(t, 450, got.AvailableCount)
}

func TestWriteSnapshotUnknownTicketType(t *testing.T) {
	r := NewRepository(sqlitetest.Open(t))
	err := r.WriteSnapshot(context.Background(), pipeline.Snapshot{TicketTypeID: "ghost"}, time.Now())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.False(t, pkgerrors.IsRetryable(err))
}

func TestGetMissingTicketType(t *testing.T) {
	r := NewRepository(sqlitetest.Open(t))
	got, ok, err := r.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestListPageWalksCursor(t *testing.T) {
	r := NewRepository(sqlitetest.Open(t))
	ctx := context.Background()
	for _, id := range []string{"c", "a", "e", "b", "d"} {
		require.NoError(t, r.DB(ctx).Create(&models.TicketType{ID: id, Name: id}).Error)
	}

	var seen []string
	cursor := ""
	for pages := 0; pages < 5; pages++ {
		page, err := r.ListPage(ctx, pagination.Params{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, tt := range page.Items {
			seen = append(seen, tt.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)

	_, err := r.ListPage(ctx, pagination.Params{Cursor: "%%%"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
