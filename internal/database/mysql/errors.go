//go:build !no_mysql

package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/racedb/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDBAccessDenied  = 1044
	errAccessDenied    = 1045
	errNoDatabase      = 1046
	errUnknownDatabase = 1049
	errTooManyConns    = 1040
	errUserTooManyConn = 1203
	errBadFieldError   = 1054
	errParseError      = 1064
	errNoSuchTable     = 1146
	errServerGone      = 2006
	errServerLost      = 2013
)

// mapError translates go-sql-driver/mysql errors into *errs.Error.
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

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case errDBAccessDenied, errAccessDenied:
		// Retrying with the same credentials cannot succeed.
		return errs.ErrKindPermissionDenied
	case errNoDatabase, errUnknownDatabase:
		return errs.ErrKindConnectionFailed
	case errTooManyConns, errUserTooManyConn, errServerGone, errServerLost:
		return errs.ErrKindConnectionFailed
	case errBadFieldError, errParseError, errNoSuchTable:
		return errs.ErrKindQueryFailed
	default:
		return errs.ErrKindQueryFailed
	}
}

// setupError reports a failed bootstrap statement. Lost connections and
// denied access keep their kind so callers can tell them apart.
func setupError(err error, step string) *errs.Error {
	mapped := mapError(err, step)
	switch mapped.Kind {
	case errs.ErrKindConnectionFailed, errs.ErrKindTimeout, errs.ErrKindPermissionDenied:
		return mapped
	}
	return errs.Wrap(errs.ErrKindSetupFailed, mapped.Message, err)
}
