package database

import (
	"sync/atomic"

	"github.com/koustreak/racedb/internal/errs"
)

// Guard is the per-connection in-use flag. Two callers touching one
// physical connection corrupt the wire protocol, so a second Enter aborts
// the process instead of returning an error.
type Guard struct {
	busy atomic.Bool
}

// Enter marks the connection in use. op names the operation for the fatal log.
func (g *Guard) Enter(op string) {
	if !g.busy.CompareAndSwap(false, true) {
		errs.Abort(errs.Precondition(op + ": connection is already in use"))
	}
}

// Leave clears the in-use mark.
func (g *Guard) Leave() {
	g.busy.Store(false)
}

// Busy reports whether the connection is in use.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}
