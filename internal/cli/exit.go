package cli

import (
	"errors"

	"github.com/koustreak/racedb/internal/config"
	"github.com/koustreak/racedb/internal/errs"
)

const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitConfig      = 10
	ExitConnection  = 11
	ExitSetup       = 12
	ExitUnavailable = 13
)

// ExitCodeForError maps an error returned by a command to a process exit code.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, config.ErrConfigNotFound) {
		return ExitConfig
	}
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		return ExitConfig
	case errs.ErrKindConnectionFailed, errs.ErrKindTimeout, errs.ErrKindPoolExhausted,
		errs.ErrKindPermissionDenied:
		return ExitConnection
	case errs.ErrKindSetupFailed:
		return ExitSetup
	case errs.ErrKindUnavailable:
		return ExitUnavailable
	default:
		return ExitError
	}
}
