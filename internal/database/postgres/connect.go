//go:build !no_postgres

package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/koustreak/racedb/internal/database"
)

// maintenanceDatabase exists on every server and is used to create the
// target database during setup.
const maintenanceDatabase = "postgres"

const defaultSSLMode = "prefer"

// connectParams builds pgx connect parameters for dbname.
func connectParams(cfg database.Config, dbname string) (*pgx.ConnConfig, error) {
	cc, err := pgx.ParseConfig(buildDSN(cfg, dbname))
	if err != nil {
		return nil, err
	}
	return cc, nil
}

// buildDSN renders a keyword/value connection string. Every value is
// quoted so passwords with spaces or quotes survive.
func buildDSN(cfg database.Config, dbname string) string {
	params := []struct{ key, value string }{
		{"host", cfg.Host},
		{"port", fmt.Sprint(cfg.Port)},
		{"user", cfg.User},
		{"password", cfg.Password},
		{"dbname", dbname},
		{"connect_timeout", fmt.Sprint(int(cfg.ConnectTimeout.Seconds()))},
		{"sslmode", withDefault(cfg.SSLMode, defaultSSLMode)},
		{"application_name", "racedb"},
	}

	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(quoteValue(p.value))
	}
	return b.String()
}

func quoteValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func createDatabaseSQL(name string) string {
	return "CREATE DATABASE " + pq.QuoteIdentifier(name)
}
