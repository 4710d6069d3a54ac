//go:build no_sqlite

// Package sqlite is the embedded SQLite adapter. This build was compiled
// without it.
package sqlite

// Available reports whether SQLite support is compiled in.
func Available() bool { return false }
