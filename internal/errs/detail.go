package errs

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/koustreak/racedb/internal/logger"
)

// DetailCapacity is the size of the per-connection error-detail buffer.
const DetailCapacity = 128

// Detail renders err as operator-facing text of at most capacity bytes.
// The cut never splits a UTF-8 sequence. A nil error yields "".
func Detail(err error, capacity int) string {
	if err == nil || capacity <= 0 {
		return ""
	}
	var s string
	var e *Error
	if errors.As(err, &e) && e.Cause != nil {
		s = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	} else if e != nil {
		s = e.Message
	} else {
		s = err.Error()
	}
	return truncate(s, capacity)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Abort terminates the process after logging err at fatal level.
// It is reserved for precondition violations: a connection used by two
// callers at once, or a lease released twice.
func Abort(err *Error) {
	logger.FatalWith("fatal precondition violation", err, map[string]interface{}{
		"kind": err.Kind.String(),
	})
	// FatalWith does not exit when the global logger is disabled.
	fmt.Fprintln(os.Stderr, "racedb: fatal:", err.Error())
	os.Exit(1)
}

// Precondition builds the error passed to Abort.
func Precondition(msg string) *Error {
	return New(ErrKindPrecondition, msg)
}
