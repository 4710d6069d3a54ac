package pool

import (
	"context"
	"fmt"

	"github.com/koustreak/racedb/internal/config"
	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/errs"
)

// FromConfig builds a pool from the database entries of cfg. Each entry
// yields Connections connections: one opened through the registry and the
// rest as Copies of it. Read and write-backup entries whose backend is not
// compiled in are skipped with a warning; an unavailable write backend is
// an error.
//
// Options from cfg.Pool apply first, so explicit opts override them.
func FromConfig(cfg *config.Config, counters *database.Counters, opts ...Option) (*Pool, error) {
	all := append([]Option{
		WithAcquireTimeout(cfg.Pool.AcquireTimeout),
		WithConnectAttempts(cfg.Pool.ConnectAttempts),
		WithReplaceAfter(cfg.Pool.ReplaceAfter),
	}, opts...)
	log := buildOptions(all).Logger

	var (
		read          []database.Conn
		write, backup database.Conn
	)
	closeAll := func() {
		for _, c := range append([]database.Conn{write, backup}, read...) {
			if c != nil {
				_ = c.Close(context.Background())
			}
		}
	}

	for i, entry := range cfg.Databases {
		conn, err := database.Open(entry.ConnConfig(), counters)
		if err != nil {
			if errs.IsUnavailable(err) && !entry.IsWrite() {
				log.WarnWith("skipping database", map[string]interface{}{
					"entry":  i,
					"mode":   entry.Mode,
					"driver": entry.Driver,
					"reason": err.Error(),
				})
				continue
			}
			closeAll()
			return nil, errs.Wrap(errs.KindOf(err), fmt.Sprintf("databases[%d]", i), err)
		}

		switch {
		case entry.IsWrite():
			write = conn
			continue
		case entry.IsWriteBackup():
			backup = conn
			continue
		}
		read = append(read, conn)
		for n := 1; n < entry.Connections; n++ {
			read = append(read, conn.Copy())
		}
	}

	if len(read) == 0 {
		closeAll()
		return nil, errs.New(errs.ErrKindUnavailable, "no read database is available in this build")
	}
	if backup != nil {
		all = append(all, WithWriteBackup(backup))
	}
	p, err := New(read, write, all...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return p, nil
}
