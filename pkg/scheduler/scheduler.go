// Package scheduler abstracts "run this after a delay" and "cancel that
// run". The widget coordinator keeps at most one live handle per instance
// and re-arms after every fire, so implementations only need one-shot
// semantics.
package scheduler

import "time"

// Handle identifies one scheduled run. The zero Handle is never returned
// by Schedule and cancelling it is a no-op.
type Handle uint64

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	// Schedule arranges for fn to run once after d.
	Schedule(d time.Duration, fn func()) Handle
	// Cancel prevents a pending run. Cancelling a handle that already
	// fired or was already cancelled does nothing. Once Cancel returns,
	// fn will not be started.
	Cancel(h Handle)
}
