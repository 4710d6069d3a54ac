package pool

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/racedb/internal/config"
	"github.com/koustreak/racedb/internal/database"
	_ "github.com/koustreak/racedb/internal/database/sqlite"
	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/logger"
)

func sqliteConfig(t *testing.T) *config.Config {
	path := filepath.Join(t.TempDir(), "ddnet.sqlite")
	return &config.Config{
		Pool: config.Pool{AcquireTimeout: 2 * time.Second},
		Databases: []config.Database{
			{Mode: "w", Driver: "sqlite", Database: path, Prefix: "record", Setup: true, Connections: 1},
			{Mode: "r", Driver: "sqlite", Database: path, Prefix: "record", Connections: 2},
		},
	}
}

func TestFromConfig(t *testing.T) {
	counters := database.NewCounters(nil)
	p, err := FromConfig(sqliteConfig(t), counters, WithLogger(logger.Nop()))
	require.NoError(t, err)

	assert.Equal(t, 2, p.Size(Read))
	assert.Equal(t, 1, p.Size(Write))
	assert.Equal(t, int64(3), counters.Snapshot()[database.DriverSQLite])

	ctx := context.Background()
	require.NoError(t, p.Warm(ctx))

	w, err := p.Acquire(ctx, Write)
	require.NoError(t, err)
	_, err = w.Conn().Exec(ctx, "INSERT INTO record_points (name, points) VALUES (?, ?)", "nameless tee", 7)
	require.NoError(t, err)
	w.Release()

	r, err := p.Acquire(ctx, Read)
	require.NoError(t, err)
	var points int
	require.NoError(t, r.Conn().QueryRow(ctx, "SELECT points FROM record_points WHERE name = ?", "nameless tee").Scan(&points))
	assert.Equal(t, 7, points)
	r.Release()

	require.NoError(t, p.Close(ctx))
	assert.Equal(t, int64(0), counters.Snapshot()[database.DriverSQLite])
}

func TestFromConfig_NoReadAvailable(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Databases[1] = config.Database{
		Mode: "r", Driver: "postgres", Host: "localhost", Database: "ddnet", Prefix: "record", Connections: 1,
	}

	counters := database.NewCounters(nil)
	_, err := FromConfig(cfg, counters, WithLogger(logger.Nop()))
	require.Error(t, err)
	assert.True(t, errs.IsUnavailable(err))
	assert.Equal(t, int64(0), counters.Snapshot()[database.DriverSQLite])
}

func TestAcquire_ReusesSessionAcrossLeases(t *testing.T) {
	p, err := FromConfig(sqliteConfig(t), database.NewCounters(nil), WithLogger(logger.Nop()))
	require.NoError(t, err)
	ctx := context.Background()
	defer p.Close(ctx) //nolint:errcheck

	w, err := p.Acquire(ctx, Write)
	require.NoError(t, err)
	_, err = w.Conn().Exec(ctx, "CREATE TEMP TABLE session_marker (n INTEGER)")
	require.NoError(t, err)
	w.Release()

	// Temporary tables live only as long as the session that created them.
	w, err = p.Acquire(ctx, Write)
	require.NoError(t, err)
	defer w.Release()
	_, err = w.Conn().Exec(ctx, "INSERT INTO session_marker (n) VALUES (1)")
	assert.NoError(t, err)
}

func TestFromConfig_WriteBackup(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Databases = append(cfg.Databases, config.Database{
		Mode: "wb", Driver: "sqlite", Database: filepath.Join(t.TempDir(), "backup.sqlite"),
		Prefix: "record", Setup: true, Connections: 1,
	})
	counters := database.NewCounters(nil)
	p, err := FromConfig(cfg, counters, WithLogger(logger.Nop()))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, 1, p.Size(WriteBackup))
	assert.Equal(t, int64(4), counters.Snapshot()[database.DriverSQLite])

	b, err := p.Acquire(ctx, WriteBackup)
	require.NoError(t, err)
	_, err = b.Conn().Exec(ctx, "INSERT INTO record_race_backup (map, name, time, server) VALUES (?, ?, ?, ?)",
		"Kobra", "nameless tee", 42.5, "GER")
	require.NoError(t, err)
	b.Release()

	require.NoError(t, p.Close(ctx))
	assert.Equal(t, int64(0), counters.Snapshot()[database.DriverSQLite])
}
