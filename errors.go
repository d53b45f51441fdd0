package cmt

import "fmt"

// Error taxonomy, per SPEC_FULL.md §7:
//
//  1. Configuration-exceeded (full ring on a required Post, scheduler
//     pool exhaustion, a second call to Runtime.Init) aborts the
//     process via panic. Correct client code never triggers these;
//     their presence signals a sizing or logic bug.
//  2. Discardable overflow (PostDiscardable/PostBothDiscardable on a
//     full ring) returns false (one bool per core for
//     PostBothDiscardable) and is also logged at LevelWarn.
//  3. Scheduler races (Cancel arriving after a delivery was already
//     posted) are not signaled; handlers must tolerate spurious
//     arrivals.
//  4. RCRX transient errors (parity/framing) are logged and
//     automatically recovered by re-arming.
//  5. RCRX terminal errors (the rate threshold crossed) transition
//     the pipeline to Disabled, logged at LevelWarn like transient
//     errors (with disabled=true in the entry's context) and visible
//     via the broadcast error message and Pipeline.State().
//
// There is deliberately no custom error type for category 1: a
// panic's message string is the diagnostic, matching "Abort prints a
// diagnostic string and halts" in SPEC_FULL.md §7.
func abortf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logError("abort", msg, 0, 0, nil)
	panic("cmt: " + msg)
}
