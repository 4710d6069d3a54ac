package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/errs"
)

const sampleConfig = `
log:
  level: debug
pool:
  acquire_timeout: 5s
  connect_attempts: 4
databases:
  - mode: w
    driver: mysql
    host: db.example.org
    user: ddnet
    password: ${RACEDB_TEST_PASSWORD}
    database: ddnet
    prefix: record
    setup: true
  - mode: r
    driver: mariadb
    host: replica.example.org
    port: 3307
    user: ddnet
    password: ${RACEDB_TEST_PASSWORD}
    database: ddnet
    prefix: record
    connections: 3
    connect_timeout: 10s
`

func TestParse(t *testing.T) {
	t.Setenv("RACEDB_TEST_PASSWORD", "hunter2")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ":8303", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.Pool.AcquireTimeout)
	assert.Equal(t, 4, cfg.Pool.ConnectAttempts)

	require.Len(t, cfg.Databases, 2)
	w, r := cfg.Databases[0], cfg.Databases[1]
	assert.True(t, w.IsWrite())
	assert.False(t, r.IsWrite())
	assert.Equal(t, 1, w.Connections)
	assert.Equal(t, 3, r.Connections)

	wc := w.ConnConfig()
	assert.Equal(t, database.DriverMySQL, wc.Driver)
	assert.Equal(t, "hunter2", wc.Password)
	assert.Equal(t, 3306, wc.Port)
	assert.Equal(t, database.DefaultConnectTimeout, wc.ConnectTimeout)
	assert.True(t, wc.Setup)

	rc := r.ConnConfig()
	assert.Equal(t, database.DriverMySQL, rc.Driver)
	assert.Equal(t, 3307, rc.Port)
	assert.Equal(t, 10*time.Second, rc.ConnectTimeout)
	assert.False(t, rc.Setup)
}

func TestParse_Invalid(t *testing.T) {
	entry := func(mode, driver string, extra string) string {
		return "  - mode: " + mode + "\n    driver: " + driver + "\n    host: h\n    database: ddnet\n    prefix: record\n" + extra
	}

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"not yaml", "databases: [", "invalid config file"},
		{"no write", "databases:\n" + entry("r", "mysql", ""), "exactly one write database"},
		{"two writes", "databases:\n" + entry("w", "mysql", "") + entry("w", "mysql", "") + entry("r", "mysql", ""), "exactly one write database"},
		{"no read", "databases:\n" + entry("w", "mysql", ""), "at least one read database"},
		{"bad mode", "databases:\n" + entry("rw", "mysql", ""), "mode must be r, w or wb"},
		{"bad driver", "databases:\n" + entry("w", "oracle", ""), "unknown database driver"},
		{"pooled write", "databases:\n" + entry("w", "mysql", "    connections: 2\n") + entry("r", "mysql", ""), "exactly one connection"},
		{"negative connections", "databases:\n" + entry("w", "mysql", "") + entry("r", "mysql", "    connections: -1\n"), "at least 1"},
		{"mysql backup", "databases:\n" + entry("w", "mysql", "") + entry("r", "mysql", "") + entry("wb", "mysql", ""), "must be a sqlite database"},
		{"two backups", "databases:\n" + entry("w", "mysql", "") + entry("r", "mysql", "") + entry("wb", "sqlite", "") + entry("wb", "sqlite", ""), "at most one write backup"},
		{"bad prefix", "databases:\n" + entry("w", "mysql", "") + "  - mode: r\n    driver: mysql\n    host: h\n    database: ddnet\n    prefix: \"x; DROP\"\n", "invalid table prefix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errs.IsInvalidInput(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_EntryIndexInError(t *testing.T) {
	yaml := `
databases:
  - {mode: w, driver: sqlite, database: a.sqlite, prefix: record}
  - {mode: r, driver: postgres, database: ddnet, prefix: record}
`
	_, err := Parse([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "databases[1]")
	assert.Contains(t, err.Error(), "host is required")
}

func TestParse_WriteBackup(t *testing.T) {
	cfg, err := Parse([]byte(`
databases:
  - {mode: w, driver: mysql, host: db.example.org, database: ddnet, prefix: record}
  - {mode: r, driver: mysql, host: db.example.org, database: ddnet, prefix: record}
  - {mode: wb, driver: sqlite, database: backup.sqlite, prefix: record, setup: true}
`))
	require.NoError(t, err)
	b := cfg.Databases[2]
	assert.True(t, b.IsWriteBackup())
	assert.False(t, b.IsWrite())
	assert.Equal(t, 1, b.Connections)
	assert.Equal(t, database.DriverSQLite, b.ConnConfig().Driver)
}

func TestParse_ExpandsOnlyBracedReferences(t *testing.T) {
	t.Setenv("RACEDB_TEST_USER", "ddnet")
	t.Setenv("HOME", "/root")

	cfg, err := Parse([]byte(`
databases:
  - {mode: w, driver: mysql, host: h, user: "${RACEDB_TEST_USER}", password: "pa$$w0rd$HOME", database: ddnet, prefix: record}
  - {mode: r, driver: mysql, host: h, user: "${RACEDB_TEST_UNSET_VAR}", database: ddnet, prefix: record}
`))
	require.NoError(t, err)
	assert.Equal(t, "ddnet", cfg.Databases[0].User)
	assert.Equal(t, "pa$$w0rd$HOME", cfg.Databases[0].Password)
	assert.Empty(t, cfg.Databases[1].User)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "racedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
databases:
  - {mode: w, driver: sqlite, database: ddnet.sqlite, prefix: record, setup: true}
  - {mode: r, driver: sqlite, database: ddnet.sqlite, prefix: record, connections: 2}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Databases, 2)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("RACEDB_TEST_FROM_FILE=from-file\nRACEDB_TEST_PRESET=from-file\n"), 0o600))

	t.Setenv("RACEDB_TEST_PRESET", "from-env")
	// Registered so the variable is unset again after the test.
	t.Setenv("RACEDB_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("RACEDB_TEST_FROM_FILE"))

	require.NoError(t, LoadEnv(envFile))
	assert.Equal(t, "from-file", os.Getenv("RACEDB_TEST_FROM_FILE"))
	assert.Equal(t, "from-env", os.Getenv("RACEDB_TEST_PRESET"))

	assert.Error(t, LoadEnv(filepath.Join(dir, "missing.env")))
}
