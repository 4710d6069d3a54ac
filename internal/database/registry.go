package database

import (
	"fmt"
	"sync"

	"github.com/koustreak/racedb/internal/errs"
)

// Factory constructs an unconnected adapter instance for cfg.
type Factory func(cfg Config, counter *Counter) Conn

var (
	registryMu sync.RWMutex
	factories  = make(map[Driver]Factory)
)

// Register makes a backend available. Adapters call it from init in a file
// excluded by their no_<backend> build tag, so a build without the backend
// reports it unavailable instead of failing to link.
func Register(d Driver, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if f == nil {
		panic("database: Register factory is nil for " + string(d))
	}
	if _, dup := factories[d]; dup {
		panic("database: Register called twice for " + string(d))
	}
	factories[d] = f
}

// Available reports whether backend d is compiled into this build.
func Available(d Driver) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[d]
	return ok
}

// Drivers lists every known backend kind, available or not.
func Drivers() []Driver {
	return []Driver{DriverMySQL, DriverPostgres, DriverSQLite}
}

// Open validates cfg and constructs an adapter for it. A backend missing
// from this build yields an ErrKindUnavailable error.
func Open(cfg Config, counters *Counters) (Conn, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	f, ok := factories[cfg.Driver]
	registryMu.RUnlock()
	if !ok {
		return nil, errs.New(errs.ErrKindUnavailable,
			fmt.Sprintf("%s support is not compiled in", cfg.Driver.DisplayName()))
	}
	return f(cfg, counters.For(cfg.Driver)), nil
}
