//go:build !no_sqlite

// Package sqlite is the embedded SQLite adapter, backed by the pure-Go
// modernc.org/sqlite driver. Config.Database is the database file path.
//
// Each Conn holds one session on the file. Use a file rather than
// ":memory:" when more than one Conn is pooled: every in-memory session is
// a separate database, and reconnecting discards it.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/logger"
	"github.com/koustreak/racedb/internal/schema"
)

// driverName is the name modernc.org/sqlite registers with database/sql.
const driverName = "sqlite"

// Conn implements database.Conn for SQLite.
type Conn struct {
	database.Base

	up   atomic.Bool
	db   *sqlx.DB
	conn *sqlx.Conn
}

// New creates an unconnected SQLite connection.
func New(cfg database.Config, counter *database.Counter) *Conn {
	c := &Conn{}
	c.Init(cfg, counter)
	return c
}

// Copy returns a fresh, unconnected connection with the same configuration.
func (c *Conn) Copy() database.Conn {
	return New(c.Config(), c.Counter())
}

// Print writes the connection description to log.
func (c *Conn) Print(log *logger.Logger, mode string) {
	database.PrintConn(log, c, mode)
}

// Connected reports whether the database file is open.
func (c *Conn) Connected() bool {
	return c.up.Load()
}

// Connect (re)opens the database and creates the tables when setup is pending.
func (c *Conn) Connect(ctx context.Context) error {
	c.BeginConnect()
	if err := c.connect(ctx); err != nil {
		c.teardown()
		return c.FailConnect(err)
	}
	c.Established()
	return nil
}

// Resume keeps the open session when it still answers a ping.
func (c *Conn) Resume(ctx context.Context) bool {
	return c.Reclaim(ctx, c.Connected, c.ping)
}

func (c *Conn) ping(ctx context.Context) error {
	if err := c.conn.PingContext(ctx); err != nil {
		c.teardown()
		return err
	}
	return nil
}

func (c *Conn) connect(ctx context.Context) error {
	c.teardown()

	cfg := c.Config()
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	db, err := sqlx.Open(driverName, buildDSN(cfg))
	if err != nil {
		return mapError(err, "failed to open sqlite")
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Connx(ctx)
	if err != nil {
		_ = db.Close()
		return mapError(err, "connect failed")
	}
	c.db, c.conn = db, conn
	c.up.Store(true)

	// SQLite is the local store results fall back to when the primary
	// write database is down, so it always carries the backup tables.
	if cfg.Setup {
		for _, stmt := range schema.Bootstrap(cfg.Prefix, schema.SQLite, schema.Options{Backup: true}) {
			if _, err := conn.ExecContext(ctx, stmt.SQL); err != nil {
				return setupError(err, "create table "+stmt.Name)
			}
		}
		c.SetupDone()
	}
	return nil
}

func (c *Conn) teardown() {
	c.up.Store(false)
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
	}
}

// Close closes the database file and releases the live connection count.
func (c *Conn) Close(_ context.Context) error {
	if c.MarkClosed() {
		c.teardown()
	}
	return nil
}

// Exec executes a statement returning rows affected.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if err := c.RequireHeld(c.up.Load()); err != nil {
		return 0, err
	}
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, c.lost(mapError(err, "exec failed"))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "rows affected")
	}
	return n, nil
}

// Query executes a query returning multiple rows.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	if err := c.RequireHeld(c.up.Load()); err != nil {
		return nil, err
	}
	rows, err := c.conn.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, c.lost(mapError(err, "query failed"))
	}
	return &sqliteRows{rows: rows}, nil
}

// QueryRow executes a query returning a single row.
func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	if err := c.RequireHeld(c.up.Load()); err != nil {
		return database.ErrRow(err)
	}
	return &sqliteRow{row: c.conn.QueryRowxContext(ctx, query, args...)}
}

func (c *Conn) lost(err *errs.Error) error {
	if database.IsConnLost(err) {
		c.teardown()
	}
	return err
}

// --- sqlx wrappers ---

type sqliteRows struct{ rows *sqlx.Rows }

func (r *sqliteRows) Next() bool                 { return r.rows.Next() }
func (r *sqliteRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqliteRows) Close()                     { _ = r.rows.Close() }

func (r *sqliteRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

func (r *sqliteRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "row iteration failed")
	}
	return nil
}

type sqliteRow struct{ row *sqlx.Row }

func (r *sqliteRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, "record not found", err)
	}
	return mapError(err, "scan failed")
}
