package database

import (
	"context"

	"github.com/koustreak/racedb/internal/logger"
)

// Conn is the contract every backend adapter implements. One Conn owns
// exactly one physical connection to its backend; the pool owns the Conns.
//
// A caller brackets its work with Connect (or a successful Resume) and
// Disconnect. Between the two the connection is marked in use and
// statements may be issued:
//
//	if err := c.Connect(ctx); err != nil {
//	    return err // c.LastError() holds the bounded detail
//	}
//	defer c.Disconnect()
//	_, err := c.Exec(ctx, "INSERT ...", args...)
type Conn interface {
	// Driver reports the backend kind.
	Driver() Driver

	// Config returns a copy of the connection configuration. Its Setup
	// field reports whether bootstrap is still pending.
	Config() Config

	// Connect marks the connection in use, tears down any previous
	// physical connection and establishes a new one, running schema
	// bootstrap when setup is pending. On failure the in-use mark is
	// cleared again. Calling Connect while the connection is in use
	// aborts the process.
	Connect(ctx context.Context) error

	// Resume marks the connection in use and keeps the established session
	// when it still answers. It returns false, with the in-use mark
	// cleared, when the caller has to Connect instead. Calling Resume while
	// the connection is in use aborts the process.
	Resume(ctx context.Context) bool

	// Disconnect clears the in-use mark. The physical connection is kept.
	Disconnect()

	// Copy returns a fresh, unconnected connection with the same configuration.
	Copy() Conn

	// Print writes a description of the connection (never the password).
	Print(log *logger.Logger, mode string)

	// Close tears down the physical connection and releases the live
	// connection count. The Conn must not be used afterwards.
	Close(ctx context.Context) error

	// LastError returns the bounded error detail of the last failed Connect.
	LastError() string

	// InUse reports whether a caller currently holds the connection.
	InUse() bool

	// Connected reports whether a physical connection is established.
	Connected() bool

	// Exec executes a statement returning the number of rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// Query executes a statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a statement that returns at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}

// ErrRow returns a Row whose Scan reports err. Adapters use it when a
// statement cannot be issued at all.
func ErrRow(err error) Row {
	return errRow{err: err}
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
