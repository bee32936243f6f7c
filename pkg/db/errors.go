package db

import (
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
)

const sqlStateUniqueViolation = "23505"

var transientSQLStates = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"53300": {}, // too_many_connections
	"57P01": {}, // admin_shutdown
	"57P03": {}, // cannot_connect_now
}

// IsTransient reports whether a database error is likely to succeed on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if state := pkgerrors.SQLState(err); state != "" {
		if _, ok := transientSQLStates[state]; ok {
			return true
		}
		// class 08: connection exceptions
		return strings.HasPrefix(state, "08")
	}
	if code, _, ok := pkgerrors.SQLiteCode(err); ok {
		return code == sqlite3.ErrBusy || code == sqlite3.ErrLocked
	}
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case pgconn.SafeToRetry(err):
		return true
	case errors.As(err, &netErr):
		return true
	}
	return false
}

// IsUniqueViolation reports a duplicate-key failure on either driver.
func IsUniqueViolation(err error) bool {
	if pkgerrors.SQLState(err) == sqlStateUniqueViolation {
		return true
	}
	_, extended, ok := pkgerrors.SQLiteCode(err)
	return ok && (extended == sqlite3.ErrConstraintUnique || extended == sqlite3.ErrConstraintPrimaryKey)
}

// Classify wraps a repository error: transient failures become retryable
// dependency errors, duplicate keys become conflicts, and the rest internal.
func Classify(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case IsTransient(err):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
	case IsUniqueViolation(err):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, message)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
	}
}
