//go:build !no_mysql

// Package mysql is the MySQL-family adapter (MySQL, MariaDB).
//
// Each Conn pins exactly one physical session: a *sql.DB capped at one open
// connection, from which a single *sqlx.Conn is taken. Closing the session
// closes every prepared statement with it.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/logger"
	"github.com/koustreak/racedb/internal/schema"
)

// opener turns connect parameters into a *sql.DB. Tests swap it for sqlmock.
type opener func(ctx context.Context, mc *gomysql.Config) (*sql.DB, error)

// Conn implements database.Conn for MySQL.
type Conn struct {
	database.Base

	open opener
	up   atomic.Bool
	db   *sqlx.DB
	conn *sqlx.Conn
}

// New creates an unconnected MySQL connection.
func New(cfg database.Config, counter *database.Counter) *Conn {
	return newConn(cfg, counter, openConnector)
}

func newConn(cfg database.Config, counter *database.Counter, open opener) *Conn {
	c := &Conn{open: open}
	c.Init(cfg, counter)
	return c
}

// Copy returns a fresh, unconnected connection with the same configuration.
func (c *Conn) Copy() database.Conn {
	return newConn(c.Config(), c.Counter(), c.open)
}

// Print writes the connection description to log.
func (c *Conn) Print(log *logger.Logger, mode string) {
	database.PrintConn(log, c, mode)
}

// Connected reports whether the physical session is established.
func (c *Conn) Connected() bool {
	return c.up.Load()
}

// Connect (re)establishes the session and runs bootstrap when setup is pending.
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
	// Closing the previous session drops its statements too.
	c.teardown()

	cfg := c.Config()
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	sqlDB, err := c.open(ctx, connectParams(cfg))
	if err != nil {
		return mapError(err, "failed to open mysql")
	}
	db := sqlx.NewDb(sqlDB, "mysql")
	db.SetMaxOpenConns(1)

	conn, err := db.Connx(ctx)
	if err != nil {
		_ = db.Close()
		return mapError(err, "connect failed")
	}
	c.db, c.conn = db, conn
	c.up.Store(true)

	// The charset connect option alone leaves results on the server default;
	// this must be the first statement of the session.
	if _, err := conn.ExecContext(ctx, "SET CHARACTER SET utf8mb4"); err != nil {
		return mapError(err, "set character set")
	}

	if cfg.Setup {
		if _, err := conn.ExecContext(ctx, schema.CreateDatabase(quoteIdent(cfg.Database), schema.MySQL)); err != nil {
			return setupError(err, "create database")
		}
	}

	if _, err := conn.ExecContext(ctx, "USE "+quoteIdent(cfg.Database)); err != nil {
		return mapError(err, "select database")
	}

	if cfg.Setup {
		for _, stmt := range schema.Bootstrap(cfg.Prefix, schema.MySQL, schema.Options{}) {
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

// Close tears down the session and releases the live connection count.
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
	return &mysqlRows{rows: rows}, nil
}

// QueryRow executes a query returning a single row.
func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	if err := c.RequireHeld(c.up.Load()); err != nil {
		return database.ErrRow(err)
	}
	return &mysqlRow{row: c.conn.QueryRowxContext(ctx, query, args...)}
}

// lost tears the session down when err shows it is unusable, so the next
// Connect starts from scratch.
func (c *Conn) lost(err *errs.Error) error {
	if database.IsConnLost(err) {
		c.teardown()
	}
	return err
}

// --- mysqlRows wraps *sqlx.Rows ---

type mysqlRows struct{ rows *sqlx.Rows }

func (r *mysqlRows) Next() bool                 { return r.rows.Next() }
func (r *mysqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *mysqlRows) Close()                     { _ = r.rows.Close() }

func (r *mysqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

func (r *mysqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "row iteration failed")
	}
	return nil
}

// --- mysqlRow wraps *sqlx.Row ---

type mysqlRow struct{ row *sqlx.Row }

func (r *mysqlRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, "record not found", err)
	}
	return mapError(err, "scan failed")
}
