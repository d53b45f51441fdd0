package rcrx

import "hash/crc32"

// CaptureResult is delivered through a DMAEngine's completion callback.
// Err is non-nil when the receive state machine raised a framing or
// parity error during the capture; ParityOnly further distinguishes a
// parity-only error (counted separately per SPEC_FULL.md §3) from a
// framing error.
type CaptureResult struct {
	Err        error
	ParityOnly bool
}

// DMAEngine is the contract RCRX expects from the board-support layer:
// "a DMA completion and an error signal" (SPEC_FULL.md's characterization
// of the excluded programmable-I/O bytecode). A board-support package
// implements it against real hardware; tests implement it against a
// fake that drives capture and copy completions deterministically.
type DMAEngine interface {
	// StartCapture arms a byte-wise capture into buf at the given
	// candidate configuration, invoking done exactly once when the
	// capture completes (successfully or with a framing/parity error).
	StartCapture(buf []byte, cfg Candidate, done func(CaptureResult))

	// StartCopy performs the triple buffer's enqueue->current and
	// current->previous shift and invokes done once the shift is
	// visible to the capture-owning core. Implementations must
	// complete the underlying buf.ShiftCopy() before returning, so a
	// capture armed immediately afterward never races the shift; done
	// may be deferred to model interrupt latency between the shift
	// completing and the core observing it.
	StartCopy(buf *TripleBuffer, done func())
}

// checksumFrame computes the CRC accumulated "over the DMA sniff",
// modeled as a post-hoc IEEE CRC-32 over the captured bytes. No example
// repo in the corpus ships a CRC implementation of its own; reimplementing
// a textbook algorithm behind a third-party dependency would buy nothing
// the standard library doesn't already provide (see DESIGN.md).
func checksumFrame(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
