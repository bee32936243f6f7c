package registrations

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgetix/ticket-inventory/pkg/db/models"
	"github.com/lodgetix/ticket-inventory/pkg/db/sqlitetest"
	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

func seed(t *testing.T, r *Repository, regs ...models.Registration) {
	t.Helper()
	for i := range regs {
		require.NoError(t, r.DB(context.Background()).Create(&regs[i]).Error)
	}
}

func TestScanAllStreamsEveryRowInKeyOrder(t *testing.T) {
	r := NewRepository(sqlitetest.Open(t))
	ctx := context.Background()

	var regs []models.Registration
	for i := 0; i < 7; i++ {
		regs = append(regs, models.Registration{
			ID:        fmt.Sprintf("reg-%02d", 6-i),
			LineItems: dbtypes.LineItems{{"ticketTypeId": "banquet"}},
		})
	}
	seed(t, r, regs...)

	var seen []string
	batches := 0
	err := r.ScanAll(ctx, 3, func(batch []models.Registration) error {
		batches++
		for _, reg := range batch {
			seen = append(seen, reg.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, batches)
	assert.Equal(t, []string{"reg-00", "reg-01", "reg-02", "reg-03", "reg-04", "reg-05", "reg-06"}, seen)
}

func TestScanAllStopsOnCallbackErrorAndCancellation(t *testing.T) {
	r := NewRepository(sqlitetest.Open(t))
	seed(t, r,
		models.Registration{ID: "a", LineItems: dbtypes.LineItems{}},
		models.Registration{ID: "b", LineItems: dbtypes.LineItems{}},
	)

	boom := errors.New("boom")
	err := r.ScanAll(context.Background(), 1, func([]models.Registration) error { return boom })
	require.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = r.ScanAll(ctx, 1, func([]models.Registration) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestFindReferencingMatchesAnyNeedle(t *testing.T) {
	r := NewRepository(sqlitetest.Open(t))
	seed(t, r,
		models.Registration{ID: "r1", LineItems: dbtypes.LineItems{{"eventTicketId": "banquet", "quantity": 1}}},
		models.Registration{ID: "r2", LineItems: dbtypes.LineItems{{"isPackage": true, "packageId": "dinner-pack"}}},
		models.Registration{ID: "r3", LineItems: dbtypes.LineItems{{"ticketTypeId": "drinks"}}},
	)

	rows, err := r.FindReferencing(context.Background(), []string{"banquet", "dinner-pack"})
	require.NoError(t, err)
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	assert.Equal(t, []string{"r1", "r2"}, ids)

	none, err := r.FindReferencing(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindReferencingFallsBackToFullScanForUnsafeNeedles(t *testing.T) {
	r := NewRepository(sqlitetest.Open(t))
	seed(t, r,
		models.Registration{ID: "r1", LineItems: dbtypes.LineItems{{"ticketTypeId": "banquet"}}},
		models.Registration{ID: "r2", LineItems: dbtypes.LineItems{{"ticketTypeId": "it's 100%"}}},
	)

	rows, err := r.FindReferencing(context.Background(), []string{"it's 100%"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestGetRoundTripsLineItemsAndPayment(t *testing.T) {
	r := NewRepository(sqlitetest.Open(t))
	seed(t, r, models.Registration{
		ID:               "r1",
		RegistrationType: enums.RegistrationTypeLodge,
		LineItems:        dbtypes.LineItems{{"ticketTypeId": "banquet", "lodgeId": "lodge-1", "price": map[string]any{"$numberDecimal": "115.00"}}},
		PaymentTotal:     decimal.NewNullDecimal(decimal.RequireFromString("115.00")),
	})

	got, ok, err := r.Get(context.Background(), "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, enums.RegistrationTypeLodge, got.RegistrationType)
	assert.Equal(t, "lodge-1", got.LineItems[0]["lodgeId"])
	assert.True(t, got.PaymentTotal.Valid)
	assert.True(t, got.PaymentTotal.Decimal.Equal(decimal.NewFromInt(115)))
	assert.EqualValues(t, 1, got.Version)

	_, ok, err = r.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplaceLineItemsIsConditionalOnVersion(t *testing.T) {
	r := NewRepository(sqlitetest.Open(t))
	ctx := context.Background()
	seed(t, r, models.Registration{ID: "r1", Version: 1, LineItems: dbtypes.LineItems{{"eventTicketId": "banquet"}}})

	next, err := r.ReplaceLineItems(ctx, "r1", 1, dbtypes.LineItems{{"ticketTypeId": "banquet"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, next)

	_, err = r.ReplaceLineItems(ctx, "r1", 1, dbtypes.LineItems{{"ticketTypeId": "stale"}})
	require.ErrorIs(t, err, ErrVersionConflict)

	got, _, err := r.Get(ctx, "r1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Version)
	assert.Equal(t, "banquet", got.LineItems[0]["ticketTypeId"])
}
