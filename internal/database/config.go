package database

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/racedb/internal/errs"
)

// Driver identifies the database engine.
type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// DefaultConnectTimeout bounds how long a single connect attempt may block.
const DefaultConnectTimeout = 60 * time.Second

var prefixPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ParseDriver maps a configuration string onto a Driver.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return DriverMySQL, nil
	case "postgres", "postgresql", "psql":
		return DriverPostgres, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	default:
		return "", errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unknown database driver %q", s))
	}
}

// DisplayName is the human-readable backend name used in diagnostics.
func (d Driver) DisplayName() string {
	switch d {
	case DriverMySQL:
		return "MySQL"
	case DriverPostgres:
		return "PostgreSQL"
	case DriverSQLite:
		return "SQLite"
	default:
		return string(d)
	}
}

// DefaultPort returns the backend's conventional TCP port, 0 if it has none.
func (d Driver) DefaultPort() int {
	switch d {
	case DriverMySQL:
		return 3306
	case DriverPostgres:
		return 5432
	default:
		return 0
	}
}

// Networked reports whether the backend is reached over the network.
func (d Driver) Networked() bool {
	return d == DriverMySQL || d == DriverPostgres
}

// Config describes how to reach one database backend. It is a value type:
// every connection keeps its own copy.
type Config struct {
	Driver   Driver
	Host     string
	Port     int
	User     string
	Password string

	// Database is the database name, or the file path for SQLite.
	Database string

	// Prefix is prepended to every feature table name (e.g. "record" -> record_race).
	Prefix string

	// Setup requests schema bootstrap on the next successful connect.
	Setup bool

	// SSLMode is passed to PostgreSQL; empty means "prefer".
	SSLMode string

	ConnectTimeout time.Duration
}

// WithDefaults fills the port and connect timeout when unset.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = c.Driver.DefaultPort()
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

// Validate checks the invariants adapters rely on. The prefix is
// interpolated into SQL, so it must be a plain identifier fragment.
func (c Config) Validate() error {
	d, err := ParseDriver(string(c.Driver))
	if err != nil {
		return err
	}
	if d != c.Driver {
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("driver %q must be given as %q", c.Driver, d))
	}
	if !prefixPattern.MatchString(c.Prefix) {
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("invalid table prefix %q", c.Prefix))
	}
	if c.Database == "" {
		return errs.New(errs.ErrKindInvalidInput, "database name is required")
	}
	if c.Driver.Networked() {
		if c.Host == "" {
			return errs.New(errs.ErrKindInvalidInput, "host is required")
		}
		if c.Port < 0 || c.Port > 65535 {
			return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("invalid port %d", c.Port))
		}
	}
	return nil
}

// Addr returns host:port for networked backends.
func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = c.Driver.DefaultPort()
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// String describes the config without the password.
func (c Config) String() string {
	if !c.Driver.Networked() {
		return fmt.Sprintf("%s db=%q prefix=%q setup=%t", c.Driver, c.Database, c.Prefix, c.Setup)
	}
	return fmt.Sprintf("%s %s@%s db=%q prefix=%q setup=%t",
		c.Driver, c.User, c.Addr(), c.Database, c.Prefix, c.Setup)
}
