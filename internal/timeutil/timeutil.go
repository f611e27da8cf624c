// Package timeutil holds the small time helpers shared by every
// periodic transformer and module loop: wall-clock helpers and the
// stop-drain-reset dance needed to safely reuse a time.Timer across
// iterations of a select loop.
package timeutil

import "time"

// NowMs returns Unix milliseconds, for bookkeeping expressed in epoch
// time.
func NowMs() int64 { return time.Now().UnixMilli() }

// ResetTimer safely reschedules t to fire after d, draining any pending
// tick first so a select loop never observes a stale fire from the
// previous period.
func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		DrainTimer(t)
	}
	t.Reset(d)
}

// DrainTimer empties a timer's channel if a tick is already queued.
func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
