package schema

import (
	"context"
	"fmt"

	"github.com/koustreak/racedb/internal/database"
)

// TableExists reports whether the table exists in the connection's current
// database. conn must be held (between Connect and Disconnect).
func TableExists(ctx context.Context, conn database.Conn, d Dialect, table string) (bool, error) {
	var n int64
	if err := conn.QueryRow(ctx, d.tableExists, table).Scan(&n); err != nil {
		return false, fmt.Errorf("table exists check: %w", err)
	}
	return n > 0, nil
}

// Missing returns the feature tables of prefix that do not exist yet.
func Missing(ctx context.Context, conn database.Conn, d Dialect, prefix string) ([]string, error) {
	return missing(ctx, conn, d, TableNames(prefix))
}

// MissingBackup returns the backup tables of prefix that do not exist yet.
func MissingBackup(ctx context.Context, conn database.Conn, d Dialect, prefix string) ([]string, error) {
	return missing(ctx, conn, d, BackupTableNames(prefix))
}

func missing(ctx context.Context, conn database.Conn, d Dialect, names []string) ([]string, error) {
	var missing []string
	for _, name := range names {
		ok, err := TableExists(ctx, conn, d, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// For returns the dialect of a backend.
func For(d database.Driver) (Dialect, bool) {
	switch d {
	case database.DriverMySQL:
		return MySQL, true
	case database.DriverPostgres:
		return Postgres, true
	case database.DriverSQLite:
		return SQLite, true
	default:
		return Dialect{}, false
	}
}
