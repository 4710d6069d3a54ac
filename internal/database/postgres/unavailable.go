//go:build no_postgres

// Package postgres is the PostgreSQL adapter. This build was compiled
// without it.
package postgres

// Available reports whether PostgreSQL support is compiled in.
func Available() bool { return false }
