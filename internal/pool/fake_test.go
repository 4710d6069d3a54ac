package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/logger"
)

// family is shared by a fake connection and all of its copies.
type family struct {
	connects atomic.Int64
	resumes  atomic.Int64
	copies   atomic.Int64
	closes   atomic.Int64

	mu sync.Mutex
	// fail is returned by Connect of generation-0 connections; copies use
	// copyFail.
	fail     error
	copyFail error
	// stale makes the next ping of a connected session fail.
	stale bool
}

func (f *family) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

type fakeConn struct {
	database.Base

	fam        *family
	generation int
	up         atomic.Bool
}

func newFake(driver database.Driver, fam *family) *fakeConn {
	c := &fakeConn{fam: fam}
	c.Init(database.Config{Driver: driver, Database: "ddnet", Prefix: "record", Setup: true}, nil)
	return c
}

func (c *fakeConn) Connect(ctx context.Context) error {
	c.BeginConnect()
	c.fam.connects.Add(1)

	c.fam.mu.Lock()
	err := c.fam.fail
	if c.generation > 0 {
		err = c.fam.copyFail
	}
	c.fam.mu.Unlock()

	if err != nil {
		c.up.Store(false)
		return c.FailConnect(err)
	}
	c.up.Store(true)
	c.SetupDone()
	return nil
}

func (c *fakeConn) Resume(ctx context.Context) bool {
	ok := c.Reclaim(ctx, c.Connected, func(context.Context) error {
		c.fam.mu.Lock()
		defer c.fam.mu.Unlock()
		if c.fam.stale {
			c.fam.stale = false
			c.up.Store(false)
			return errs.New(errs.ErrKindConnectionFailed, "server closed the connection")
		}
		return nil
	})
	if ok {
		c.fam.resumes.Add(1)
	}
	return ok
}

func (c *fakeConn) Copy() database.Conn {
	c.fam.copies.Add(1)
	cp := &fakeConn{fam: c.fam, generation: c.generation + 1}
	cp.Init(c.Config(), c.Counter())
	return cp
}

func (c *fakeConn) Print(log *logger.Logger, mode string) { database.PrintConn(log, c, mode) }
func (c *fakeConn) Connected() bool                       { return c.up.Load() }

func (c *fakeConn) Close(context.Context) error {
	if c.MarkClosed() {
		c.fam.closes.Add(1)
		c.up.Store(false)
	}
	return nil
}

func (c *fakeConn) Exec(context.Context, string, ...any) (int64, error) {
	if err := c.RequireHeld(c.up.Load()); err != nil {
		return 0, err
	}
	return 1, nil
}

func (c *fakeConn) Query(context.Context, string, ...any) (database.Rows, error) {
	return nil, errs.New(errs.ErrKindQueryFailed, "not supported")
}

func (c *fakeConn) QueryRow(context.Context, string, ...any) database.Row {
	return database.ErrRow(errs.New(errs.ErrKindQueryFailed, "not supported"))
}

// newTestPool builds a pool of nRead read fakes and one write fake.
func newTestPool(nRead int, opts ...Option) (*Pool, *family, *family) {
	readFam, writeFam := &family{}, &family{}
	read := make([]database.Conn, nRead)
	for i := range read {
		read[i] = newFake(database.DriverSQLite, readFam)
	}
	write := newFake(database.DriverSQLite, writeFam)

	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	p, err := New(read, write, opts...)
	if err != nil {
		panic(err)
	}
	return p, readFam, writeFam
}
