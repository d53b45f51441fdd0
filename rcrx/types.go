// Package rcrx implements the radio-control receive pipeline: baud and
// protocol autodetection, hardware-assisted frame capture, CRC-based
// deduplication, and error-rate-based auto-disable. It is the most
// elaborate client of the cmt package, driving the hardest
// hardware-interaction pathway in the same cooperative dispatch loop as
// any other subsystem.
package rcrx

// Protocol identifies a UART framing used by an RC receiver candidate.
type Protocol uint8

const (
	// Protocol8N1 is 8 data bits, no parity, 1 stop bit.
	Protocol8N1 Protocol = iota
	// Protocol8E2 is 8 data bits, even parity, 2 stop bits.
	Protocol8E2
)

func (p Protocol) String() string {
	switch p {
	case Protocol8N1:
		return "8N1"
	case Protocol8E2:
		return "8E2"
	default:
		return "UNKNOWN"
	}
}

// Candidate is one entry in the autodetect table: a baud rate, framing,
// and whether the line is inverted.
type Candidate struct {
	BaudHz   uint32
	Protocol Protocol
	Inverted bool
}

// DefaultCandidates returns the spec's three-entry autodetect table:
// 100k/115.2k/400k baud, one candidate line-inverted.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{BaudHz: 100_000, Protocol: Protocol8N1, Inverted: false},
		{BaudHz: 115_200, Protocol: Protocol8N1, Inverted: true},
		{BaudHz: 400_000, Protocol: Protocol8E2, Inverted: false},
	}
}

// ProbeWords is the length, in bytes, of the timed capture used during
// protocol detection.
const ProbeWords = 60

// DefaultFrameSize is the per-segment length of the triple buffer, sized
// for an SBUS frame (25 bytes). Fixed-length protocols fill it exactly;
// variable-length protocols treat it as an upper bound.
const DefaultFrameSize = 25

// TripleBuffer is the enqueue|current|previous contiguous byte arena
// described in SPEC_FULL.md §3: three pinned buffers of identical size,
// laid out back to back so a single copy can shift both segments at
// once.
type TripleBuffer struct {
	arena     []byte
	frameSize int
}

// NewTripleBuffer allocates a triple buffer with the given per-segment
// size.
func NewTripleBuffer(frameSize int) *TripleBuffer {
	if frameSize <= 0 {
		panic("rcrx: frameSize must be positive")
	}
	return &TripleBuffer{arena: make([]byte, frameSize*3), frameSize: frameSize}
}

// Enqueue is the segment the DMA engine fills during capture.
func (b *TripleBuffer) Enqueue() []byte {
	return b.arena[0:b.frameSize]
}

// Current is the most recently published, stable frame.
func (b *TripleBuffer) Current() []byte {
	return b.arena[b.frameSize : 2*b.frameSize]
}

// Previous is the frame that was current before the last shift.
func (b *TripleBuffer) Previous() []byte {
	return b.arena[2*b.frameSize : 3*b.frameSize]
}

// ShiftCopy moves current->previous and enqueue->current in a single
// pass, walking both source and destination in reverse over the
// contiguous 2x-frameSize window so the move is safe despite the
// source and destination regions overlapping. This is the Go analogue
// of the original's single DMA descriptor trick: one contiguous,
// reversed copy instead of two independent descriptors.
func (b *TripleBuffer) ShiftCopy() {
	window := 2 * b.frameSize
	for i := window - 1; i >= 0; i-- {
		b.arena[b.frameSize+i] = b.arena[i]
	}
}
