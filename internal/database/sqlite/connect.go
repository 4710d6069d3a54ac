//go:build !no_sqlite

package sqlite

import (
	"fmt"
	"net/url"

	"github.com/koustreak/racedb/internal/database"
)

// buildDSN renders the modernc DSN for cfg. Pragmas are applied by the
// driver to every session it opens.
func buildDSN(cfg database.Config) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.ConnectTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(ON)")
	q.Set("_txlock", "immediate")
	return "file:" + cfg.Database + "?" + q.Encode()
}
