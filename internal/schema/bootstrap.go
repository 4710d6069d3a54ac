package schema

import (
	"fmt"
	"strings"
)

const (
	backupSuffix = "_backup"

	// NumCheckpoints is the number of checkpoint time columns of a race.
	NumCheckpoints = 25
)

// Statement is one rendered bootstrap statement.
type Statement struct {
	Table Table
	// Name is the table the statement creates.
	Name string
	SQL  string
}

// Options select table variants.
type Options struct {
	// Backup also renders the "_backup" copies of BackupTables, which hold
	// results the primary database could not take.
	Backup bool
}

// Bootstrap renders the feature table statements for prefix in dialect d,
// in the order they must run. Backup tables follow the primary ones.
func Bootstrap(prefix string, d Dialect, opts Options) []Statement {
	stmts := make([]Statement, 0, len(Tables)+len(BackupTables))
	for _, t := range Tables {
		stmts = append(stmts, Statement{Table: t, Name: t.Name(prefix), SQL: Render(t, prefix, d, Options{})})
	}
	if opts.Backup {
		for _, t := range BackupTables {
			stmts = append(stmts, Statement{Table: t, Name: t.BackupName(prefix), SQL: Render(t, prefix, d, opts)})
		}
	}
	return stmts
}

// Render renders the CREATE TABLE statement of one table, or of its backup
// copy when opts.Backup is set.
func Render(t Table, prefix string, d Dialect, opts Options) string {
	name := t.Name(prefix)
	if opts.Backup {
		name = t.BackupName(prefix)
	}
	c := d.collate()

	switch t {
	case TableRace:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  map VARCHAR(128)%s NOT NULL,
  name VARCHAR(16)%s NOT NULL,
  timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  time FLOAT DEFAULT 0,
  server CHAR(4),
%s
  game_id VARCHAR(64),
  ddnet7 BOOL DEFAULT FALSE,
  PRIMARY KEY (map, name, time, timestamp, server)
)`, name, c, c, checkpointColumns())

	case TableTeamrace:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  map VARCHAR(128)%s NOT NULL,
  name VARCHAR(16)%s NOT NULL,
  timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  time FLOAT DEFAULT 0,
  id %s NOT NULL,
  game_id VARCHAR(64),
  ddnet7 BOOL DEFAULT FALSE,
  PRIMARY KEY (id, name)
)`, name, c, c, d.BinaryType)

	case TableMaps:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  map VARCHAR(128)%s NOT NULL,
  server VARCHAR(32)%s NOT NULL,
  mapper VARCHAR(128)%s NOT NULL,
  points INT DEFAULT 0,
  stars INT DEFAULT 0,
  timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (map)
)`, name, c, c, c)

	case TableSaves:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  savegame TEXT%s NOT NULL,
  map VARCHAR(128)%s NOT NULL,
  code VARCHAR(128)%s NOT NULL,
  timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  server CHAR(4),
  ddnet7 BOOL DEFAULT FALSE,
  save_id VARCHAR(36) DEFAULT NULL,
  PRIMARY KEY (map, code)
)`, name, c, c, c)

	case TablePoints:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  name VARCHAR(16)%s NOT NULL,
  points INT DEFAULT 0,
  PRIMARY KEY (name)
)`, name, c)
	}
	return ""
}

// CreateDatabase renders CREATE DATABASE IF NOT EXISTS for backends that
// support it. quoted must already be a quoted identifier.
func CreateDatabase(quoted string, d Dialect) string {
	if d.Charset == "" {
		return "CREATE DATABASE IF NOT EXISTS " + quoted
	}
	return "CREATE DATABASE IF NOT EXISTS " + quoted + " CHARACTER SET " + d.Charset
}

// CheckpointColumn names the i-th (1-based) checkpoint column.
func CheckpointColumn(i int) string {
	return fmt.Sprintf("cp%d", i)
}

func checkpointColumns() string {
	var sb strings.Builder
	for i := 1; i <= NumCheckpoints; i++ {
		fmt.Fprintf(&sb, "  %s FLOAT DEFAULT 0,", CheckpointColumn(i))
		if i < NumCheckpoints {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
