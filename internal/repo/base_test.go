package repo

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type keyedRow struct {
	Key string `gorm:"column:row_key;primaryKey"`
}

func (keyedRow) TableName() string { return "keyed_rows" }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return conn
}

func TestNewBaseStoresConnection(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if base.db != db {
		t.Fatalf("expected base db to match provided connection")
	}
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)

	if withCtx == nil {
		t.Fatalf("expected non-nil DB when context provided")
	}
	if withCtx.Statement == nil {
		t.Fatalf("expected statement created after WithContext")
	}
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}

	withoutCtx := base.DB(nil)
	if withoutCtx != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseKeyset(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&keyedRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, k := range []string{"c", "a", "d", "b"} {
		if err := db.Create(&keyedRow{Key: k}).Error; err != nil {
			t.Fatalf("insert %s: %v", k, err)
		}
	}
	base := NewBase(db)

	var rows []keyedRow
	if err := base.Keyset(context.Background(), "row_key", "", 2).Find(&rows).Error; err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(rows) != 2 || rows[0].Key != "a" || rows[1].Key != "b" {
		t.Fatalf("unexpected first page %+v", rows)
	}

	rows = nil
	if err := base.Keyset(context.Background(), "row_key", "b", 0).Find(&rows).Error; err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(rows) != 2 || rows[0].Key != "c" || rows[1].Key != "d" {
		t.Fatalf("unexpected resumed page %+v", rows)
	}
}
