package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/pool"
	"github.com/koustreak/racedb/internal/schema"
)

func newSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Connect every configured database once and verify the tables exist",
		Long: `setup connects each configured connection, running the table bootstrap on
those with setup enabled, then checks that the write database has every
feature table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := pool.FromConfig(cfg, database.NewCounters(nil), pool.WithLogger(log))
			if err != nil {
				return err
			}
			defer p.Close(ctx)

			if err := p.Warm(ctx); err != nil {
				return err
			}

			lease, err := p.Acquire(ctx, pool.Write)
			if err != nil {
				return err
			}
			defer lease.Release()

			conn := lease.Conn()
			d, _ := schema.For(conn.Driver())
			missing, err := schema.Missing(ctx, conn, d, conn.Config().Prefix)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return errs.New(errs.ErrKindSetupFailed, "missing tables: "+strings.Join(missing, ", "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all tables present")
			return nil
		},
	}
}
