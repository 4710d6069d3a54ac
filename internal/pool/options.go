package pool

import (
	"time"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/logger"
)

const (
	DefaultAcquireTimeout  = 30 * time.Second
	DefaultConnectAttempts = 3
	DefaultReplaceAfter    = 5
)

// Options tune the pool.
type Options struct {
	// AcquireTimeout bounds how long Acquire waits for a free connection.
	AcquireTimeout time.Duration

	// ConnectAttempts is the number of Connect calls Acquire makes before
	// giving up on the chosen connection.
	ConnectAttempts int

	// ReplaceAfter is the number of consecutive failed acquisitions after
	// which a connection is replaced by a fresh Copy.
	ReplaceAfter int

	// Logger receives pool events. Defaults to the global logger.
	Logger *logger.Logger

	// WriteBackup, when set, is the single connection of the WriteBackup
	// side. The pool takes ownership of it.
	WriteBackup database.Conn
}

// Option configures a Pool.
type Option func(*Options)

// WithAcquireTimeout sets Options.AcquireTimeout.
func WithAcquireTimeout(d time.Duration) Option {
	return func(o *Options) { o.AcquireTimeout = d }
}

// WithConnectAttempts sets Options.ConnectAttempts.
func WithConnectAttempts(n int) Option {
	return func(o *Options) { o.ConnectAttempts = n }
}

// WithReplaceAfter sets Options.ReplaceAfter.
func WithReplaceAfter(n int) Option {
	return func(o *Options) { o.ReplaceAfter = n }
}

// WithWriteBackup sets Options.WriteBackup.
func WithWriteBackup(c database.Conn) Option {
	return func(o *Options) { o.WriteBackup = c }
}

// WithLogger sets Options.Logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = DefaultAcquireTimeout
	}
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = DefaultConnectAttempts
	}
	if o.ReplaceAfter <= 0 {
		o.ReplaceAfter = DefaultReplaceAfter
	}
	if o.Logger == nil {
		o.Logger = logger.Global()
	}
	return o
}
