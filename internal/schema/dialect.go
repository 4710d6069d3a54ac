package schema

// Dialect captures the DDL differences between backends.
type Dialect struct {
	// Name is the goqu dialect name ("mysql", "postgres", "sqlite3").
	Name string

	// BinaryType is the column type of 16-byte binary ids.
	BinaryType string

	// Collate is the collation applied to text columns; empty for none.
	Collate string

	// Charset is used for CREATE DATABASE when the backend supports it.
	Charset string

	// tableExists counts tables named by the single bind argument in the
	// current database.
	tableExists string
}

var (
	MySQL = Dialect{
		Name:       "mysql",
		BinaryType: "VARBINARY(16)",
		Collate:    "utf8mb4_bin",
		Charset:    "utf8mb4",
		tableExists: `
			SELECT COUNT(*)
			FROM information_schema.tables
			WHERE table_schema = DATABASE()
			  AND table_name   = ?`,
	}

	Postgres = Dialect{
		Name:       "postgres",
		BinaryType: "BYTEA",
		tableExists: `
			SELECT COUNT(*)
			FROM information_schema.tables
			WHERE table_schema = current_schema()
			  AND table_name   = $1`,
	}

	SQLite = Dialect{
		Name:       "sqlite3",
		BinaryType: "BLOB",
		Collate:    "BINARY",
		tableExists: `
			SELECT COUNT(*)
			FROM sqlite_master
			WHERE type = 'table'
			  AND name = ?`,
	}
)

// collate renders the COLLATE clause for text columns.
func (d Dialect) collate() string {
	if d.Collate == "" {
		return ""
	}
	return " COLLATE " + d.Collate
}
