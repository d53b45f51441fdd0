package rcrx

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// rcrxErrorCategory is the single catrate category RCRX reports errors
// under; the pipeline has exactly one capture in flight at a time, so a
// single category is sufficient.
const rcrxErrorCategory = "rcrx-error"

// errorCounters tracks the plain counters SPEC_FULL.md §3 lists
// alongside the rate-limited disable decision: total, parity-only,
// and since-last-reset, plus the last error timestamp.
type errorCounters struct {
	total       uint64
	parityOnly  uint64
	sinceReset  uint64
	lastErrorMs uint32
}

// newErrorLimiter builds the sliding-window limiter backing the
// error-rate disable policy: any error within window increments a
// short-term count, and the short-term count reaching threshold
// disables the pipeline. A period >= window without error lets
// catrate's own per-category cleanup age the count back out.
//
// catrate.Limiter.Allow reports ok==false starting on the call *after*
// the configured count has been reserved (the reservation that hits the
// limit still succeeds; it only arms the rejection for the next call).
// To make the Nth error the one that disables the pipeline, rather than
// the (N+1)th, the limiter is configured with threshold-1 events.
func newErrorLimiter(window time.Duration, threshold int) *catrate.Limiter {
	count := threshold - 1
	if count < 1 {
		count = 1
	}
	return catrate.NewLimiter(map[time.Duration]int{window: count})
}
