// Package config loads the server's database and runtime settings from a
// YAML file. ${VAR} references are expanded from the environment, which
// may be seeded from .env files first.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/errs"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// DefaultFileName is the config file looked up when no path is given.
const DefaultFileName = "racedb.yaml"

// Config is the root of the config file.
type Config struct {
	Log       Log        `yaml:"log"`
	HTTP      HTTP       `yaml:"http"`
	Pool      Pool       `yaml:"pool"`
	Databases []Database `yaml:"databases"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTP configures the operational console.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Pool tunes connection brokering.
type Pool struct {
	AcquireTimeout  time.Duration `yaml:"acquire_timeout"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ReplaceAfter    int           `yaml:"replace_after"`
}

// Database is one backend entry. Mode is "r", "w" or "wb" (write backup).
type Database struct {
	Mode           string        `yaml:"mode"`
	Driver         string        `yaml:"driver"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Database       string        `yaml:"database"`
	Prefix         string        `yaml:"prefix"`
	Setup          bool          `yaml:"setup"`
	SSLMode        string        `yaml:"sslmode"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Connections    int           `yaml:"connections"`
}

// IsWrite reports whether the entry is the write connection.
func (d Database) IsWrite() bool {
	return d.Mode == "w" || d.Mode == "write"
}

// IsWriteBackup reports whether the entry is the local write backup.
func (d Database) IsWriteBackup() bool {
	return d.Mode == "wb" || d.Mode == "write_backup"
}

// ConnConfig converts the entry into a connection config. The driver must
// already be validated.
func (d Database) ConnConfig() database.Config {
	drv, _ := database.ParseDriver(d.Driver)
	return database.Config{
		Driver:         drv,
		Host:           d.Host,
		Port:           d.Port,
		User:           d.User,
		Password:       d.Password,
		Database:       d.Database,
		Prefix:         d.Prefix,
		Setup:          d.Setup,
		SSLMode:        d.SSLMode,
		ConnectTimeout: d.ConnectTimeout,
	}.WithDefaults()
}

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. A missing default ".env" is not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		return godotenv.Load()
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// Load reads, expands, defaults and validates the config at path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	return Parse(data)
}

// envRef matches a ${VAR} reference. A bare $ is left alone, so passwords
// may contain one.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with the variable's value, or the
// empty string when it is unset.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

// Parse decodes YAML config data. ${VAR} references are expanded from the
// environment before decoding.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnv(data), &cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid config file", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8303"
	}
	for i := range c.Databases {
		if c.Databases[i].Connections == 0 {
			c.Databases[i].Connections = 1
		}
	}
}

// Validate checks the database entries: exactly one write entry, at least
// one read entry, at most one SQLite write-backup entry, and a valid
// connection config for each.
func (c *Config) Validate() error {
	var reads, writes, backups int
	for i, d := range c.Databases {
		if _, err := database.ParseDriver(d.Driver); err != nil {
			return entryError(i, err)
		}
		switch d.Mode {
		case "r", "read":
			reads++
		case "w", "write":
			writes++
			if d.Connections != 1 {
				return entryError(i, errs.New(errs.ErrKindInvalidInput, "the write entry takes exactly one connection"))
			}
		case "wb", "write_backup":
			backups++
			if d.Connections != 1 {
				return entryError(i, errs.New(errs.ErrKindInvalidInput, "the write backup entry takes exactly one connection"))
			}
			if drv, _ := database.ParseDriver(d.Driver); drv != database.DriverSQLite {
				return entryError(i, errs.New(errs.ErrKindInvalidInput, "the write backup must be a sqlite database"))
			}
		default:
			return entryError(i, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("mode must be r, w or wb, got %q", d.Mode)))
		}
		if d.Connections < 1 {
			return entryError(i, errs.New(errs.ErrKindInvalidInput, "connections must be at least 1"))
		}
		if err := d.ConnConfig().Validate(); err != nil {
			return entryError(i, err)
		}
	}
	if writes != 1 {
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("exactly one write database is required, got %d", writes))
	}
	if reads == 0 {
		return errs.New(errs.ErrKindInvalidInput, "at least one read database is required")
	}
	if backups > 1 {
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("at most one write backup database is allowed, got %d", backups))
	}
	return nil
}

func entryError(i int, err error) error {
	return errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("databases[%d]", i), err)
}
