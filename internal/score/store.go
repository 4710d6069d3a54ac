// Package score persists gameplay results: race finishes, team finishes,
// saved games, map metadata and player points. Every operation borrows one
// connection from the pool for its duration, reads go to the read side and
// writes to the write side. When the write side is down and the pool has a
// write backup, finishes and saves are kept in its "_backup" tables.
//
// Statements are built with goqu in the dialect of the leased connection,
// so one Store serves MySQL, PostgreSQL and SQLite backends alike.
package score

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/logger"
	"github.com/koustreak/racedb/internal/pool"
	"github.com/koustreak/racedb/internal/schema"
)

// Store is the persistence facade over a pool.
type Store struct {
	pool *pool.Pool
	log  *logger.Logger
	now  func() time.Time
}

// New creates a Store issuing statements through p.
func New(p *pool.Pool) *Store {
	return &Store{
		pool: p,
		log:  logger.Global().With().Str("component", "score").Logger(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// session is one leased connection plus the statement builder for its dialect.
type session struct {
	conn   database.Conn
	sql    goqu.DialectWrapper
	prefix string
	// backup is set on the write-backup connection; table names then
	// resolve to the "_backup" copies.
	backup bool
}

func (s session) table(t schema.Table) string {
	if s.backup {
		return t.BackupName(s.prefix)
	}
	return t.Name(s.prefix)
}

// builder is any goqu dataset.
type builder interface {
	ToSQL() (string, []interface{}, error)
}

// exec builds ds and executes it.
func (s session) exec(ctx context.Context, ds builder) (int64, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, errs.Wrap(errs.ErrKindInvalidInput, "build statement", err)
	}
	return s.conn.Exec(ctx, query, args...)
}

func (s session) queryRow(ctx context.Context, ds *goqu.SelectDataset) database.Row {
	query, args, err := ds.ToSQL()
	if err != nil {
		return database.ErrRow(errs.Wrap(errs.ErrKindInvalidInput, "build statement", err))
	}
	return s.conn.QueryRow(ctx, query, args...)
}

func (s session) query(ctx context.Context, ds *goqu.SelectDataset) (database.Rows, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "build statement", err)
	}
	return s.conn.Query(ctx, query, args...)
}

// with runs fn on a connection of kind k and releases it afterwards.
func (st *Store) with(ctx context.Context, k pool.Kind, fn func(s session) error) error {
	lease, err := st.pool.Acquire(ctx, k)
	if err != nil {
		return err
	}
	defer lease.Release()

	conn := lease.Conn()
	d, ok := schema.For(conn.Driver())
	if !ok {
		return errs.New(errs.ErrKindUnavailable, "no SQL dialect for "+string(conn.Driver()))
	}
	dialect := goqu.Dialect(d.Name)
	return fn(session{
		conn:   conn,
		sql:    dialect,
		prefix: conn.Config().Prefix,
		backup: k == pool.WriteBackup,
	})
}

// write runs fn on the write connection. If that fails with a retryable
// error and the pool has a write backup, fallback runs there instead and
// its result is returned. A nil fallback disables this.
func (st *Store) write(ctx context.Context, fn, fallback func(s session) error) error {
	err := st.with(ctx, pool.Write, fn)
	if err == nil || fallback == nil || !errs.IsRetryable(err) || !st.pool.Has(pool.WriteBackup) {
		return err
	}
	st.log.WarnWith("write database failed, keeping result in backup", map[string]interface{}{
		"error": err.Error(),
	})
	return st.with(ctx, pool.WriteBackup, fallback)
}
