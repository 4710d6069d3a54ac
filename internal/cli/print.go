package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/pool"
)

func newPrintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Describe the configured connections without connecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := pool.FromConfig(cfg, database.NewCounters(nil), pool.WithLogger(log))
			if err != nil {
				return err
			}
			defer p.Close(context.Background())

			p.Print(log)
			return nil
		},
	}
}
