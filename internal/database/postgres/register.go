//go:build !no_postgres

package postgres

import "github.com/koustreak/racedb/internal/database"

func init() {
	database.Register(database.DriverPostgres, func(cfg database.Config, counter *database.Counter) database.Conn {
		return New(cfg, counter)
	})
}

// Available reports whether PostgreSQL support is compiled in.
func Available() bool { return true }
