//go:build !no_mysql

package mysql

import "github.com/koustreak/racedb/internal/database"

func init() {
	database.Register(database.DriverMySQL, func(cfg database.Config, counter *database.Counter) database.Conn {
		return New(cfg, counter)
	})
}

// Available reports whether MySQL support is compiled in.
func Available() bool { return true }
