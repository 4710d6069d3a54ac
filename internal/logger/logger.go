// Package logger is racedb's zerolog wrapper. It carries the process log
// and is the sink connection and pool diagnostics are printed to.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error, fatal
	Format     string // json, console
	TimeFormat string // rfc3339, unix, unixms, unixmicro
	Output     io.Writer
}

// DefaultConfig logs info and above to stderr in console format.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "console",
		TimeFormat: "rfc3339",
		Output:     os.Stderr,
	}
}

// New builds a logger from cfg. A nil cfg means DefaultConfig.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = timeFormat(cfg.TimeFormat)

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    out != os.Stdout && out != os.Stderr,
		}
	}
	zlog := zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().Timestamp().
		Logger()
	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// WithContext stores l in ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.zlog.WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or the global one.
func FromContext(ctx context.Context) *Logger {
	zlog := zerolog.Ctx(ctx)
	if zlog.GetLevel() == zerolog.Disabled {
		return Global()
	}
	return &Logger{zlog: *zlog}
}

// --- child loggers ---

// With starts a child logger carrying extra fields.
func (l *Logger) With() *Context {
	return &Context{ctx: l.zlog.With()}
}

// Context chains fields onto a child logger.
type Context struct {
	ctx zerolog.Context
}

func (c *Context) Str(key, val string) *Context {
	c.ctx = c.ctx.Str(key, val)
	return c
}

func (c *Context) Int(key string, val int) *Context {
	c.ctx = c.ctx.Int(key, val)
	return c
}

func (c *Context) Bool(key string, val bool) *Context {
	c.ctx = c.ctx.Bool(key, val)
	return c
}

func (c *Context) Any(key string, val interface{}) *Context {
	c.ctx = c.ctx.Interface(key, val)
	return c
}

func (c *Context) Logger() *Logger {
	return &Logger{zlog: c.ctx.Logger()}
}

// --- events ---

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zlog.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zlog.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// InfoWith logs msg at info level with fields attached.
func (l *Logger) InfoWith(msg string, fields map[string]interface{}) {
	l.zlog.Info().Fields(fields).Msg(msg)
}

// WarnWith logs msg at warn level with fields attached.
func (l *Logger) WarnWith(msg string, fields map[string]interface{}) {
	l.zlog.Warn().Fields(fields).Msg(msg)
}

// ErrorWith logs msg and err at error level with fields attached.
func (l *Logger) ErrorWith(msg string, err error, fields map[string]interface{}) {
	l.zlog.Error().Err(err).Fields(fields).Msg(msg)
}

// FatalWith logs at fatal level and exits the process with status 1.
// Nothing happens on a logger whose level is above fatal.
func (l *Logger) FatalWith(msg string, err error, fields map[string]interface{}) {
	l.zlog.Fatal().Err(err).Fields(fields).Msg(msg)
}

// HTTPEvent starts an info event for one served request.
func (l *Logger) HTTPEvent() *zerolog.Event {
	return l.zlog.Info()
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func timeFormat(format string) string {
	switch format {
	case "unix":
		return zerolog.TimeFormatUnix
	case "unixms":
		return zerolog.TimeFormatUnixMs
	case "unixmicro":
		return zerolog.TimeFormatUnixMicro
	default:
		return time.RFC3339
	}
}

// --- process-wide logger ---

var global atomic.Pointer[Logger]

func init() {
	global.Store(New(nil))
}

// Global returns the process-wide logger.
func Global() *Logger {
	return global.Load()
}

// SetGlobal replaces the process-wide logger. Connections and the fatal
// abort path log through it.
func SetGlobal(l *Logger) {
	if l == nil {
		l = Nop()
	}
	global.Store(l)
}

// FatalWith logs through the global logger and exits.
func FatalWith(msg string, err error, fields map[string]interface{}) {
	Global().FatalWith(msg, err, fields)
}
