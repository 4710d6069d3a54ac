package main

import (
	"fmt"
	"os"

	"github.com/koustreak/racedb/internal/cli"

	// Backends register themselves; build with no_mysql, no_postgres or
	// no_sqlite to leave one out.
	_ "github.com/koustreak/racedb/internal/database/mysql"
	_ "github.com/koustreak/racedb/internal/database/postgres"
	_ "github.com/koustreak/racedb/internal/database/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "racedb:", err)
		os.Exit(cli.ExitCodeForError(err))
	}
}
