package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/logger"
)

// Base carries the lifecycle state shared by every adapter: the in-use
// guard, the pending-setup flag, the bounded error detail and the live
// connection count. Adapters embed it and implement the backend-specific
// parts of Connect themselves.
type Base struct {
	cfg     Config
	counter *Counter
	guard   Guard
	setup   atomic.Bool
	closed  atomic.Bool

	mu      sync.Mutex
	lastErr string
}

// Init must be called once by the adapter constructor. It counts the
// connection as live.
func (b *Base) Init(cfg Config, counter *Counter) {
	b.cfg = cfg.WithDefaults()
	b.setup.Store(cfg.Setup)
	b.counter = counter
	counter.Inc()
}

// Driver reports the backend kind.
func (b *Base) Driver() Driver { return b.cfg.Driver }

// Config returns a copy of the configuration with Setup reflecting whether
// bootstrap is still pending.
func (b *Base) Config() Config {
	cfg := b.cfg
	cfg.Setup = b.setup.Load()
	return cfg
}

// Counter returns the live-connection counter the adapter was built with.
func (b *Base) Counter() *Counter { return b.counter }

// SetupPending reports whether bootstrap must run on the next connect.
func (b *Base) SetupPending() bool { return b.setup.Load() }

// SetupDone clears the pending-setup flag after every bootstrap statement succeeded.
func (b *Base) SetupDone() { b.setup.Store(false) }

// InUse reports whether a caller currently holds the connection.
func (b *Base) InUse() bool { return b.guard.Busy() }

// Disconnect clears the in-use mark. The physical handle stays open.
func (b *Base) Disconnect() { b.guard.Leave() }

// LastError returns the bounded detail of the last failed connect.
func (b *Base) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// BeginConnect marks the connection in use, aborting the process when a
// caller already holds it, and clears the previous error detail.
func (b *Base) BeginConnect() {
	b.guard.Enter("connect")
	b.mu.Lock()
	b.lastErr = ""
	b.mu.Unlock()
}

// FailConnect records err as the bounded error detail, clears the in-use
// mark, logs the failure and returns err.
func (b *Base) FailConnect(err error) error {
	detail := errs.Detail(err, errs.DetailCapacity)
	b.mu.Lock()
	b.lastErr = detail
	b.mu.Unlock()
	b.guard.Leave()

	logger.Global().ErrorWith("database connect failed", err, map[string]interface{}{
		"driver":   string(b.cfg.Driver),
		"database": b.cfg.Database,
		"setup":    b.setup.Load(),
	})
	return err
}

// Established logs a successful connect.
func (b *Base) Established() {
	logger.Global().With().
		Str("driver", string(b.cfg.Driver)).
		Str("database", b.cfg.Database).
		Logger().
		Info("connection established")
}

// Reclaim marks the connection in use without reconnecting and reports
// whether the current session can be handed out again. It returns false,
// with the in-use mark cleared, when the session is down, bootstrap is
// still pending or ping fails. ping may be nil.
func (b *Base) Reclaim(ctx context.Context, connected func() bool, ping func(context.Context) error) bool {
	b.guard.Enter("acquire")
	if !connected() || b.setup.Load() {
		b.guard.Leave()
		return false
	}
	if ping != nil {
		ctx, cancel := context.WithTimeout(ctx, b.cfg.ConnectTimeout)
		defer cancel()
		if err := ping(ctx); err != nil {
			logger.Global().WarnWith("stale database session", map[string]interface{}{
				"driver":   string(b.cfg.Driver),
				"database": b.cfg.Database,
				"error":    err.Error(),
			})
			b.guard.Leave()
			return false
		}
	}
	return true
}

// RequireHeld rejects statements issued outside Connect/Disconnect.
func (b *Base) RequireHeld(connected bool) error {
	if !b.guard.Busy() {
		return errs.New(errs.ErrKindInvalidInput, "connection is not acquired; call Connect first")
	}
	if !connected {
		return errs.New(errs.ErrKindConnectionFailed, "connection is not established")
	}
	return nil
}

// MarkClosed reports whether this call closed the connection; the live
// count is released exactly once.
func (b *Base) MarkClosed() bool {
	if b.closed.CompareAndSwap(false, true) {
		b.counter.Dec()
		return true
	}
	return false
}

// IsConnLost reports whether err means the physical connection is gone and
// must be re-established by the next Connect.
func IsConnLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errs.IsConnectionFailed(err)
}

// --- diagnostics ---

// Description is the operator-facing view of one connection.
type Description struct {
	Driver    Driver `json:"driver"`
	Mode      string `json:"mode,omitempty"`
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`
	Database  string `json:"database"`
	Prefix    string `json:"prefix"`
	User      string `json:"user,omitempty"`
	Setup     bool   `json:"setup_pending"`
	Connected bool   `json:"connected"`
	InUse     bool   `json:"in_use"`
	LastError string `json:"last_error,omitempty"`
}

// Describe builds the description of c. The password is never included.
func Describe(c Conn, mode string) Description {
	cfg := c.Config()
	d := Description{
		Driver:    cfg.Driver,
		Mode:      mode,
		Database:  cfg.Database,
		Prefix:    cfg.Prefix,
		Setup:     cfg.Setup,
		Connected: c.Connected(),
		InUse:     c.InUse(),
		LastError: c.LastError(),
	}
	if cfg.Driver.Networked() {
		d.Host = cfg.Host
		d.Port = cfg.Port
		d.User = cfg.User
	}
	return d
}

// PrintConn writes the description of c to log. Adapters implement Print with it.
func PrintConn(log *logger.Logger, c Conn, mode string) {
	d := Describe(c, mode)
	ctx := log.With().
		Str("mode", mode).
		Str("database", d.Database).
		Str("prefix", d.Prefix).
		Bool("connected", d.Connected).
		Bool("in_use", d.InUse)
	if d.Host != "" {
		ctx = ctx.Str("host", d.Host).Int("port", d.Port).Str("user", d.User)
	}
	ctx.Logger().Infof("%s-%s", d.Driver.DisplayName(), mode)
}
