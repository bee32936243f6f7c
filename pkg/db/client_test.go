package db

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lodgetix/ticket-inventory/pkg/config"
	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:dbclient_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Fatal("nil error should not be transient")
	}
	transient := []error{
		sqlite3.Error{Code: sqlite3.ErrBusy},
		fmt.Errorf("scan: %w", driver.ErrBadConn),
		io.ErrUnexpectedEOF,
		&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
	}
	for _, err := range transient {
		if !IsTransient(err) {
			t.Fatalf("expected %v to be transient", err)
		}
	}
	permanent := []error{
		errors.New("UNIQUE constraint failed: ticket_types.ticket_type_id"),
		errors.New("connection refused"),
		sqlite3.Error{Code: sqlite3.ErrConstraint},
	}
	for _, err := range permanent {
		if IsTransient(err) {
			t.Fatalf("expected %v not to be transient", err)
		}
	}
}

func TestClassifyWrapsByTransience(t *testing.T) {
	transient := Classify(fmt.Errorf("query: %w", driver.ErrBadConn), "scan registrations")
	if !pkgerrors.IsRetryable(transient) {
		t.Fatalf("expected transient error to be retryable: %v", transient)
	}
	permanent := Classify(errors.New("no such table: registrations"), "scan registrations")
	if pkgerrors.IsRetryable(permanent) {
		t.Fatalf("expected permanent error to not be retryable: %v", permanent)
	}
	if Classify(nil, "noop") != nil {
		t.Fatal("expected nil passthrough")
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := NewFromGorm(db)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestQueryLoggerReportsSlowQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: "json"})
	ql := newQueryLogger(logg, 10*time.Millisecond)

	ql.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast query should not log, got %s", buf.String())
	}

	ql.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT * FROM registrations", 42 }, nil)
	if !bytes.Contains(buf.Bytes(), []byte(`"db.query.slow"`)) || !bytes.Contains(buf.Bytes(), []byte(`"rows":42`)) {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT", 0 }, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("record not found should not log, got %s", buf.String())
	}
}

func TestNewQueryLoggerWithoutLoggerDiscards(t *testing.T) {
	if newQueryLogger(nil, time.Second) != gormlogger.Discard {
		t.Fatalf("expected discard logger")
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{}, config.FeatureFlagsConfig{}, nil); err == nil {
		t.Fatalf("expected missing dsn to fail")
	}
}
