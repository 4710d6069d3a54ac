// Package schema owns the feature tables required by gameplay persistence:
// their statement templates, the per-backend dialect used to render them,
// and a verifier that checks the tables exist after bootstrap.
//
// Templates are shared; each adapter renders them with its own Dialect and
// executes them in Bootstrap order. Every statement is idempotent
// (CREATE TABLE IF NOT EXISTS), so re-running bootstrap is harmless.
package schema

// Table identifies one feature table.
type Table string

const (
	TableRace     Table = "race"
	TableTeamrace Table = "teamrace"
	TableMaps     Table = "maps"
	TableSaves    Table = "saves"
	TablePoints   Table = "points"
)

// Tables lists the feature tables in bootstrap order.
var Tables = []Table{TableRace, TableTeamrace, TableMaps, TableSaves, TablePoints}

// BackupTables lists the tables that have a "_backup" copy: the ones a
// finish or a save writes to.
var BackupTables = []Table{TableRace, TableTeamrace, TableSaves}

// Name returns the prefixed table name, e.g. "record_race".
func (t Table) Name(prefix string) string {
	return prefix + "_" + string(t)
}

// BackupName returns the prefixed name of the backup copy, e.g.
// "record_race_backup".
func (t Table) BackupName(prefix string) string {
	return t.Name(prefix) + backupSuffix
}

// TableNames returns the prefixed names of all feature tables in bootstrap order.
func TableNames(prefix string) []string {
	names := make([]string, len(Tables))
	for i, t := range Tables {
		names[i] = t.Name(prefix)
	}
	return names
}

// BackupTableNames returns the prefixed names of the backup tables.
func BackupTableNames(prefix string) []string {
	names := make([]string, len(BackupTables))
	for i, t := range BackupTables {
		names[i] = t.BackupName(prefix)
	}
	return names
}
