//go:build !no_postgres

// Package postgres is the PostgreSQL adapter. Each Conn owns exactly one
// *pgx.Conn; closing it releases every prepared statement on the server.
package postgres

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/logger"
	"github.com/koustreak/racedb/internal/schema"
)

// session is the part of *pgx.Conn the adapter uses.
type session interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	IsClosed() bool
}

// dialer establishes a session. Tests swap it for a fake.
type dialer func(ctx context.Context, cc *pgx.ConnConfig) (session, error)

func dialPgx(ctx context.Context, cc *pgx.ConnConfig) (session, error) {
	conn, err := pgx.ConnectConfig(ctx, cc)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Conn implements database.Conn for PostgreSQL.
type Conn struct {
	database.Base

	dial dialer
	up   atomic.Bool
	sess session
}

// New creates an unconnected PostgreSQL connection.
func New(cfg database.Config, counter *database.Counter) *Conn {
	return newConn(cfg, counter, dialPgx)
}

func newConn(cfg database.Config, counter *database.Counter, dial dialer) *Conn {
	c := &Conn{dial: dial}
	c.Init(cfg, counter)
	return c
}

// Copy returns a fresh, unconnected connection with the same configuration.
func (c *Conn) Copy() database.Conn {
	return newConn(c.Config(), c.Counter(), c.dial)
}

// Print writes the connection description to log.
func (c *Conn) Print(log *logger.Logger, mode string) {
	database.PrintConn(log, c, mode)
}

// Connected reports whether the session is established.
func (c *Conn) Connected() bool {
	return c.up.Load()
}

// Connect (re)establishes the session and runs bootstrap when setup is pending.
func (c *Conn) Connect(ctx context.Context) error {
	c.BeginConnect()
	if err := c.connect(ctx); err != nil {
		c.teardown(ctx)
		return c.FailConnect(err)
	}
	c.Established()
	return nil
}

// Resume keeps the session when the server still answers a ping.
func (c *Conn) Resume(ctx context.Context) bool {
	return c.Reclaim(ctx, c.Connected, func(ctx context.Context) error {
		if err := c.sess.Ping(ctx); err != nil {
			c.teardown(ctx)
			return err
		}
		return nil
	})
}

func (c *Conn) connect(ctx context.Context) error {
	// Finishing the previous session deletes its statements too.
	c.teardown(ctx)

	cfg := c.Config()
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	cc, err := connectParams(cfg, cfg.Database)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid connect parameters", err)
	}

	sess, err := c.dial(ctx, cc)
	if err != nil && cfg.Setup && isUnknownDatabase(err) {
		if err := c.createDatabase(ctx, cfg); err != nil {
			return err
		}
		sess, err = c.dial(ctx, cc)
	}
	if err != nil {
		return mapError(err, "connect failed")
	}
	c.sess = sess
	c.up.Store(true)

	if cfg.Setup {
		for _, stmt := range schema.Bootstrap(cfg.Prefix, schema.Postgres, schema.Options{}) {
			if _, err := sess.Exec(ctx, stmt.SQL); err != nil {
				return setupError(err, "create table "+stmt.Name)
			}
		}
		c.SetupDone()
	}
	return nil
}

// createDatabase creates the target database through the maintenance
// database. Another server creating it first is not an error.
func (c *Conn) createDatabase(ctx context.Context, cfg database.Config) error {
	cc, err := connectParams(cfg, maintenanceDatabase)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid connect parameters", err)
	}
	admin, err := c.dial(ctx, cc)
	if err != nil {
		return mapError(err, "connect to maintenance database")
	}
	defer admin.Close(ctx)

	if _, err := admin.Exec(ctx, createDatabaseSQL(cfg.Database)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrDuplicateDatabase {
			return nil
		}
		return setupError(err, "create database")
	}
	return nil
}

func (c *Conn) teardown(ctx context.Context) {
	c.up.Store(false)
	if c.sess != nil {
		_ = c.sess.Close(ctx)
		c.sess = nil
	}
}

// Close tears down the session and releases the live connection count.
func (c *Conn) Close(ctx context.Context) error {
	if c.MarkClosed() {
		c.teardown(ctx)
	}
	return nil
}

// Exec executes a statement returning the number of rows affected.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if err := c.RequireHeld(c.up.Load()); err != nil {
		return 0, err
	}
	tag, err := c.sess.Exec(ctx, sql, args...)
	if err != nil {
		return 0, c.lost(ctx, mapError(err, "exec failed"))
	}
	return tag.RowsAffected(), nil
}

// Query executes a query returning multiple rows.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	if err := c.RequireHeld(c.up.Load()); err != nil {
		return nil, err
	}
	rows, err := c.sess.Query(ctx, sql, args...)
	if err != nil {
		return nil, c.lost(ctx, mapError(err, "query failed"))
	}
	return &pgRows{rows: rows}, nil
}

// QueryRow executes a query returning a single row.
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	if err := c.RequireHeld(c.up.Load()); err != nil {
		return database.ErrRow(err)
	}
	return &pgRow{row: c.sess.QueryRow(ctx, sql, args...)}
}

func (c *Conn) lost(ctx context.Context, err *errs.Error) error {
	if database.IsConnLost(err) || c.sess.IsClosed() {
		c.teardown(ctx)
	}
	return err
}

// --- pgx type wrappers ---

// pgRows wraps pgx.Rows to satisfy database.Rows.
type pgRows struct{ rows pgx.Rows }

func (r *pgRows) Next() bool { return r.rows.Next() }
func (r *pgRows) Close()     { r.rows.Close() }

func (r *pgRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

func (r *pgRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "row iteration failed")
	}
	return nil
}

func (r *pgRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}

// pgRow wraps pgx.Row to satisfy database.Row.
type pgRow struct{ row pgx.Row }

func (r *pgRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}
