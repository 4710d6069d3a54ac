package pool

import (
	"fmt"
	"strings"
)

// Kind selects a side of the pool.
type Kind int

const (
	Read Kind = iota
	Write
	// WriteBackup is the optional local connection that takes results
	// the write connection could not.
	WriteBackup

	numKinds
)

// String returns the short mode name used in diagnostics ("r", "w" or "wb").
func (k Kind) String() string {
	switch k {
	case Read:
		return "r"
	case Write:
		return "w"
	case WriteBackup:
		return "wb"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses "r", "read", "w", "write", "wb" or "write_backup".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "read":
		return Read, nil
	case "w", "write":
		return Write, nil
	case "wb", "write_backup":
		return WriteBackup, nil
	default:
		return 0, fmt.Errorf("unknown connection mode %q (want r, w or wb)", s)
	}
}

func (k Kind) valid() bool { return k >= Read && k < numKinds }
