//go:build !no_postgres

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/racedb/internal/errs"
)

// PostgreSQL SQLSTATE error codes
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrTooManyConnections = "53300"
	pgErrAdminShutdown      = "57P01"
	pgErrCrashShutdown      = "57P02"
	pgErrCannotConnectNow   = "57P03"
	pgErrUnknownDatabase    = "3D000"
	pgErrDuplicateDatabase  = "42P04"

	classConnection     = "08"
	classInvalidAuth    = "28"
	classInvalidCatalog = "3D"
)

// mapError converts a pgx error into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, "record not found", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(
			classifySQLState(pgErr.Code),
			fmt.Sprintf("%s: %s", msg, pgErr.Message),
			err,
		)
	}

	// Dial failures, network errors and closed connections end up here.
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifySQLState maps a SQLSTATE to ErrKind.
func classifySQLState(code string) errs.ErrKind {
	switch code {
	case pgErrTooManyConnections, pgErrAdminShutdown, pgErrCrashShutdown, pgErrCannotConnectNow:
		return errs.ErrKindConnectionFailed
	}
	switch {
	case strings.HasPrefix(code, classInvalidAuth):
		return errs.ErrKindPermissionDenied
	case strings.HasPrefix(code, classConnection),
		strings.HasPrefix(code, classInvalidCatalog):
		return errs.ErrKindConnectionFailed
	default:
		return errs.ErrKindQueryFailed
	}
}

// isUnknownDatabase reports whether the server rejected the connection
// because the target database does not exist.
func isUnknownDatabase(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUnknownDatabase
}

// setupError reports a failed bootstrap statement. Lost connections and
// rejected credentials keep their kind.
func setupError(err error, step string) *errs.Error {
	mapped := mapError(err, step)
	switch mapped.Kind {
	case errs.ErrKindConnectionFailed, errs.ErrKindTimeout, errs.ErrKindPermissionDenied:
		return mapped
	}
	return errs.Wrap(errs.ErrKindSetupFailed, mapped.Message, err)
}
