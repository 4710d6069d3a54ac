//go:build !no_sqlite

package sqlite

import "github.com/koustreak/racedb/internal/database"

func init() {
	database.Register(database.DriverSQLite, func(cfg database.Config, counter *database.Counter) database.Conn {
		return New(cfg, counter)
	})
}

// Available reports whether SQLite support is compiled in.
func Available() bool { return true }
