package database

import (
	"context"
	"sync"

	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/logger"
)

// fakeConn is a minimal adapter over Base. Connect fails with fail when set
// and blocks on hold when set.
type fakeConn struct {
	Base

	mu       sync.Mutex
	up       bool
	fail     error
	pingErr  error
	hold     chan struct{}
	setupRan int
}

func newFake(cfg Config, counter *Counter) *fakeConn {
	f := &fakeConn{}
	f.Init(cfg, counter)
	return f
}

func (f *fakeConn) Connect(ctx context.Context) error {
	f.BeginConnect()
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		f.up = false
		return f.FailConnect(f.fail)
	}
	f.up = true
	if f.SetupPending() {
		f.setupRan++
		f.SetupDone()
	}
	f.Established()
	return nil
}

func (f *fakeConn) Resume(ctx context.Context) bool {
	return f.Reclaim(ctx, f.Connected, f.ping)
}

func (f *fakeConn) ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pingErr != nil {
		f.up = false
	}
	return f.pingErr
}

func (f *fakeConn) Copy() Conn                            { return newFake(f.Config(), f.Counter()) }
func (f *fakeConn) Print(log *logger.Logger, mode string) { PrintConn(log, f, mode) }

func (f *fakeConn) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.up
}

func (f *fakeConn) Close(context.Context) error {
	if f.MarkClosed() {
		f.mu.Lock()
		f.up = false
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeConn) Exec(context.Context, string, ...any) (int64, error) {
	if err := f.RequireHeld(f.Connected()); err != nil {
		return 0, err
	}
	return 1, nil
}

func (f *fakeConn) Query(context.Context, string, ...any) (Rows, error) {
	return nil, errs.New(errs.ErrKindQueryFailed, "not supported")
}

func (f *fakeConn) QueryRow(context.Context, string, ...any) Row {
	return ErrRow(errs.New(errs.ErrKindQueryFailed, "not supported"))
}
