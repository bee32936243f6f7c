package recompute

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lodgetix/ticket-inventory/internal/pipeline"
	"github.com/lodgetix/ticket-inventory/internal/registrations"
	"github.com/lodgetix/ticket-inventory/internal/tickettypes"
	"github.com/lodgetix/ticket-inventory/pkg/db/models"
	"github.com/lodgetix/ticket-inventory/pkg/db/sqlitetest"
	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "recompute-test", Output: io.Discard})
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var fastRetries = Options{
	ScanBatchSize:  2,
	Workers:        3,
	WriteAttempts:  3,
	ReadAttempts:   3,
	RetryBaseDelay: time.Millisecond,
	RetryMaxDelay:  2 * time.Millisecond,
}

type fixture struct {
	conn          *gorm.DB
	registrations *registrations.Repository
	ticketTypes   *tickettypes.Repository
	coordinator   *Coordinator
	clock         *stepClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := sqlitetest.Open(t)
	f := &fixture{
		conn:          conn,
		registrations: registrations.NewRepository(conn),
		ticketTypes:   tickettypes.NewRepository(conn),
		clock:         newStepClock(),
	}
	coord, err := NewCoordinator(CoordinatorParams{
		Registrations: f.registrations,
		Inventory:     f.ticketTypes,
		Logger:        testLogger(),
		Options:       fastRetries,
		Clock:         f.clock.Now,
	})
	require.NoError(t, err)
	f.coordinator = coord

	require.NoError(t, conn.Create(&[]models.TicketType{
		{ID: "banquet", Name: "Grand Banquet", UnitPrice: decimal.RequireFromString("115.00"), TotalCapacity: 450},
		{ID: "drinks", Name: "Drinks Reception", UnitPrice: decimal.RequireFromString("35.00"), TotalCapacity: 300},
		{ID: "lecture", Name: "Lecture", UnitPrice: decimal.Zero, TotalCapacity: 2},
	}).Error)
	require.NoError(t, conn.Create(&models.Package{
		ID:    "dinner-pack",
		Name:  "Dinner Pack",
		Price: decimal.RequireFromString("140.00"),
		IncludedItems: dbtypes.IncludedItems{
			{TicketTypeID: "banquet", Quantity: 1},
			{TicketTypeID: "drinks", Quantity: 1},
		},
	}).Error)
	return f
}

func (f *fixture) addRegistration(t *testing.T, id string, items ...dbtypes.LineItem) models.Registration {
	t.Helper()
	reg := models.Registration{ID: id, LineItems: dbtypes.LineItems(items), Version: 1}
	require.NoError(t, f.conn.Create(&reg).Error)
	return reg
}

func (f *fixture) snapshots(t *testing.T) map[string]pipeline.Snapshot {
	t.Helper()
	rows, err := f.ticketTypes.List(context.Background())
	require.NoError(t, err)
	out := make(map[string]pipeline.Snapshot, len(rows))
	for _, row := range rows {
		out[row.ID] = tickettypes.StoredSnapshot(row)
	}
	return out
}

// fakeInventory serves a fixed catalog and records writes.
type fakeInventory struct {
	mu       sync.Mutex
	catalog  *pipeline.Catalog
	writes   map[string]pipeline.Snapshot
	history  []pipeline.Snapshot
	attempts map[string]int
	onWrite  func(ctx context.Context, snap pipeline.Snapshot, attempt int) error
	loadErr  error
}

func newFakeInventory(catalog *pipeline.Catalog) *fakeInventory {
	return &fakeInventory{catalog: catalog, writes: map[string]pipeline.Snapshot{}, attempts: map[string]int{}}
}

func (f *fakeInventory) LoadCatalog(context.Context) (*pipeline.Catalog, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.catalog, nil
}

func (f *fakeInventory) WriteSnapshot(ctx context.Context, snap pipeline.Snapshot, _ time.Time) error {
	f.mu.Lock()
	f.attempts[snap.TicketTypeID]++
	attempt := f.attempts[snap.TicketTypeID]
	hook := f.onWrite
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, snap, attempt); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.writes[snap.TicketTypeID] = snap
	f.history = append(f.history, snap)
	f.mu.Unlock()
	return nil
}

func (f *fakeInventory) attemptsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[id]
}

type fakeRegistrations struct {
	regs    []models.Registration
	scanErr error
	findErr error
	finds   int
	mu      sync.Mutex
}

func (f *fakeRegistrations) ScanAll(ctx context.Context, _ int, fn func([]models.Registration) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.scanErr != nil {
		return f.scanErr
	}
	return fn(f.current())
}

func (f *fakeRegistrations) current() []models.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs
}

func (f *fakeRegistrations) set(regs []models.Registration) {
	f.mu.Lock()
	f.regs = regs
	f.mu.Unlock()
}

func (f *fakeRegistrations) FindReferencing(ctx context.Context, _ []string) ([]models.Registration, error) {
	f.mu.Lock()
	f.finds++
	f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.current(), nil
}

func simpleCatalog(ids ...string) *pipeline.Catalog {
	defs := make([]pipeline.TicketTypeDef, 0, len(ids))
	for _, id := range ids {
		defs = append(defs, pipeline.TicketTypeDef{ID: id, Name: id, TotalCapacity: 10})
	}
	return pipeline.NewCatalog(defs, nil)
}

func newFakeCoordinator(t *testing.T, regs RegistrationSource, inv InventoryStore, opts Options) *Coordinator {
	t.Helper()
	coord, err := NewCoordinator(CoordinatorParams{
		Registrations: regs,
		Inventory:     inv,
		Logger:        testLogger(),
		Options:       opts,
	})
	require.NoError(t, err)
	return coord
}
