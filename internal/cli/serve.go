package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/pool"
	"github.com/koustreak/racedb/internal/server"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open the connection pool and serve the operational console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.HTTP.Addr = addr
			}

			counters := database.NewCounters(nil)
			p, err := pool.FromConfig(cfg, counters, pool.WithLogger(log))
			if err != nil {
				return err
			}
			defer p.Close(context.Background())

			// Connections that fail here are retried on their first Acquire.
			if err := p.Warm(ctx); err != nil {
				log.ErrorWith("warm-up incomplete", err, nil)
			}
			p.Print(log)

			return server.New(cfg.HTTP.Addr, p, counters, log).ListenAndServe(ctx)
		},
	}
	cmd.Flags().String("addr", "", "console listen address (overrides http.addr)")
	return cmd
}
