package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("calculation not found")
	ErrUnavailable = errors.New("storage unavailable")
)

// PostgreSQL error codes that mean the server cannot serve us right now.
const (
	pgErrClassConnection     = "08" // connection_exception and friends
	pgErrInsufficientRes     = "53000"
	pgErrTooManyConnections  = "53300"
	pgErrAdminShutdown       = "57P01"
	pgErrCrashShutdown       = "57P02"
	pgErrCannotConnectNow    = "57P03"
	pgErrDatabaseDropped     = "57P04"
	pgErrIdleSessionTimeout  = "57P05"
	pgErrTransactionRollback = "40000"
)

// classifyError maps driver errors onto the package sentinels while keeping
// the original error in the chain.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, pgErrClassConnection) {
			return true
		}
		switch pgErr.Code {
		case pgErrInsufficientRes, pgErrTooManyConnections,
			pgErrAdminShutdown, pgErrCrashShutdown, pgErrCannotConnectNow,
			pgErrDatabaseDropped, pgErrIdleSessionTimeout, pgErrTransactionRollback:
			return true
		}
	}

	return false
}
