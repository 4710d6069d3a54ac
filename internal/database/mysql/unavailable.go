//go:build no_mysql

// Package mysql is the MySQL-family adapter. This build excludes it.
package mysql

// Available reports whether MySQL support is compiled in.
func Available() bool { return false }
