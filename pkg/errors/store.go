package errors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// FromStore wraps a persistence failure with the code callers should act on.
// Missing records become NOT_FOUND, transport failures become UNAVAILABLE,
// serialization failures become CONFLICT and everything else DEPENDENCY_ERROR.
// Typed errors pass through untouched.
func FromStore(err error, message string) error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	return Wrap(ClassifyStore(err), err, message)
}

// ClassifyStore maps a raw persistence error onto a Code.
func ClassifyStore(err error) Code {
	switch {
	case err == nil:
		return CodeInternal
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, sql.ErrNoRows):
		return CodeNotFound
	case IsUnavailable(err):
		return CodeUnavailable
	case isSerializationFailure(err):
		return CodeConflict
	default:
		return CodeDependency
	}
}

// IsUnavailable reports whether err is a transport-level failure: the store
// could not be reached or the connection dropped mid-request.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	code := pgCode(err)
	if strings.HasPrefix(code, "08") || code == "57P01" || code == "57P03" || code == "53300" {
		return true
	}
	return false
}

func isSerializationFailure(err error) bool {
	code := pgCode(err)
	return code == "40001" || code == "40P01"
}

func pgCode(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
