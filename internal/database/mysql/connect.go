//go:build !no_mysql

package mysql

import (
	"context"
	"database/sql"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/schema"
)

// connectParams maps the shared config onto driver connect parameters.
// No default database is selected: setup may have to create it first.
func connectParams(cfg database.Config) *gomysql.Config {
	mc := gomysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Addr()
	mc.Timeout = cfg.ConnectTimeout
	mc.ParseTime = true
	mc.Collation = schema.MySQL.Collate
	return mc
}

// openConnector builds a *sql.DB around a connector for mc. Nothing is
// dialed until the first connection is requested.
func openConnector(_ context.Context, mc *gomysql.Config) (*sql.DB, error) {
	connector, err := gomysql.NewConnector(mc)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// quoteIdent wraps a MySQL identifier in backticks.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
