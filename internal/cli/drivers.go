package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koustreak/racedb/internal/database"
)

func newDriversCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List database backends and whether this build supports them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, d := range database.Drivers() {
				status := "available"
				if !database.Available(d) {
					status = "not compiled in"
				}
				fmt.Fprintf(out, "%-10s %-12s %s\n", d, d.DisplayName(), status)
			}
			return nil
		},
	}
}
