//go:build !no_sqlite

package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/koustreak/racedb/internal/errs"
)

// mapError translates modernc.org/sqlite errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return errs.Wrap(
			classifyCode(sqliteErr.Code()),
			fmt.Sprintf("%s: %s", msg, sqliteErr.Error()),
			err,
		)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

// classifyCode maps a (possibly extended) SQLite result code to ErrKind.
func classifyCode(code int) errs.ErrKind {
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return errs.ErrKindTimeout
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CORRUPT:
		return errs.ErrKindConnectionFailed
	default:
		return errs.ErrKindQueryFailed
	}
}

// setupError reports a failed bootstrap statement.
func setupError(err error, step string) *errs.Error {
	mapped := mapError(err, step)
	if mapped.Kind == errs.ErrKindConnectionFailed || mapped.Kind == errs.ErrKindTimeout {
		return mapped
	}
	return errs.Wrap(errs.ErrKindSetupFailed, mapped.Message, err)
}
