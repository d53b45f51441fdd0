package rcrx

import (
	"sync"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/roverlab/cmt"
)

// State is one of the RCRX pipeline's observable states.
type State int32

const (
	// StateDetecting is cycling the autodetect candidate table.
	StateDetecting State = iota
	// StateDetected has just accepted a candidate and is switching to
	// the capture configuration.
	StateDetected
	// StateCapturing has an armed capture in flight.
	StateCapturing
	// StateCopying has a triple-buffer shift in flight (a capture may
	// be concurrently armed; see Pipeline.handleFrameReady).
	StateCopying
	// StateDisabled is terminal until Pipeline.Reset.
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateDetecting:
		return "DETECTING"
	case StateDetected:
		return "DETECTED"
	case StateCapturing:
		return "CAPTURING"
	case StateCopying:
		return "COPYING"
	case StateDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// Message ids RCRX posts through the owning core's CMT queue. The
// detect/frame-ready/copy-done ids are internal plumbing between the
// pipeline's DMA completion callbacks and its own handlers; MsgRCDetected
// and MsgRCError are broadcast to both cores for other subsystems (e.g.
// rover housekeeping) to subscribe to.
const (
	msgDetectProbeDone cmt.MessageID = cmt.NamespaceHostOS | 0x10
	msgFrameReady      cmt.MessageID = cmt.NamespaceHostOS | 0x11
	msgCopyDone        cmt.MessageID = cmt.NamespaceHostOS | 0x12

	// MsgRCDetected is broadcast to both cores when autodetection
	// accepts a candidate.
	MsgRCDetected cmt.MessageID = cmt.NamespaceHostOS | 0x13
	// MsgRCError is broadcast to both cores on every framing/parity
	// error, disabling or not.
	MsgRCError cmt.MessageID = cmt.NamespaceHostOS | 0x14
)

// Stats is a snapshot of the pipeline's counters, safe to read
// concurrently with pipeline operation.
type Stats struct {
	ErrorsTotal      uint64
	ErrorsParityOnly uint64
	ErrorsSinceReset uint64
	LastErrorMs      uint32
	Same             uint64
	Busy             uint64
	Published        uint64
	Disabled         bool
}

// Pipeline is the RCRX state machine: protocol autodetection,
// DMA-assisted capture, CRC dedup, and error-rate-based disable, all
// driven through a cmt.Runtime's handler registry on one core.
type Pipeline struct {
	rt   *cmt.Runtime
	core cmt.CoreID
	dma  DMAEngine

	candidates []Candidate
	probe      []byte
	buf        *TripleBuffer

	errWindow    time.Duration
	errThreshold int

	onPublish func(frame []byte)

	mu sync.Mutex

	state        State
	candidateIdx int
	chosen       Candidate

	currentCRC, previousCRC uint32
	copyInFlight            bool
	pendingCaptureErr       error
	pendingParityOnly       bool

	errs errorCounters
	same uint64
	busy uint64
	pub  uint64

	limiter *catrate.Limiter
}

// NewPipeline constructs a Pipeline bound to core on rt, using dma as
// the hardware-assist contract. onPublish is invoked with a copy of
// each newly deduplicated frame once its triple-buffer shift completes;
// it must be non-blocking, per the handler contract in SPEC_FULL.md §4.7.
// Construction registers the pipeline's internal handlers but does not
// start detection; call Start for that.
func NewPipeline(rt *cmt.Runtime, core cmt.CoreID, dma DMAEngine, onPublish func(frame []byte), opts ...Option) *Pipeline {
	cfg := resolveOptions(opts)

	p := &Pipeline{
		rt:           rt,
		core:         core,
		dma:          dma,
		candidates:   cfg.candidates,
		probe:        make([]byte, ProbeWords),
		buf:          NewTripleBuffer(cfg.frameSize),
		errWindow:    cfg.errorWindow,
		errThreshold: cfg.errorThreshold,
		onPublish:    onPublish,
		limiter:      newErrorLimiter(cfg.errorWindow, cfg.errorThreshold),
	}

	rt.AddHandler(core, msgDetectProbeDone, p.handleProbeDone)
	rt.AddHandler(core, msgFrameReady, p.handleFrameReady)
	rt.AddHandler(core, msgCopyDone, p.handleCopyDone)

	return p
}

// Start begins protocol autodetection from the first candidate.
func (p *Pipeline) Start() {
	p.armProbe(0)
}

// Reset re-arms detection from candidate index 0, clears error counters
// and the rate limiter, and transitions back to Detecting(0). This is
// the explicit client-triggered restart SPEC_FULL.md's expansion adds
// in place of the source's unspecified re-enable path.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.errs = errorCounters{}
	p.same, p.busy, p.pub = 0, 0, 0
	p.currentCRC, p.previousCRC = 0, 0
	p.copyInFlight = false
	p.limiter = newErrorLimiter(p.errWindow, p.errThreshold)
	p.mu.Unlock()
	p.armProbe(0)
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats returns a snapshot of the pipeline's counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		ErrorsTotal:      p.errs.total,
		ErrorsParityOnly: p.errs.parityOnly,
		ErrorsSinceReset: p.errs.sinceReset,
		LastErrorMs:      p.errs.lastErrorMs,
		Same:             p.same,
		Busy:             p.busy,
		Published:        p.pub,
		Disabled:         p.state == StateDisabled,
	}
}

func (p *Pipeline) armProbe(idx int) {
	p.mu.Lock()
	p.state = StateDetecting
	p.candidateIdx = idx
	cfg := p.candidates[idx]
	probe := p.probe
	p.mu.Unlock()

	p.dma.StartCapture(probe, cfg, func(res CaptureResult) {
		p.rt.Post(p.core, cmt.NewMessageWithPriority(msgDetectProbeDone, cmt.PriorityHigh))
	})
}

func (p *Pipeline) handleProbeDone(cmt.Message) {
	p.mu.Lock()
	idx := p.candidateIdx
	cand := p.candidates[idx]
	maxZero, maxOne := analyzeRuns(p.probe)
	accepted := candidateAccepted(maxZero, maxOne, cand.Inverted)
	p.mu.Unlock()

	if accepted {
		p.mu.Lock()
		p.chosen = cand
		p.state = StateDetected
		p.mu.Unlock()

		p.broadcastDetected(cand, idx)
		p.armCapture()
		return
	}

	next := (idx + 1) % len(p.candidates)
	p.armProbe(next)
}

func (p *Pipeline) broadcastDetected(c Candidate, candidateIdx int) {
	msg := cmt.NewMessage(MsgRCDetected).WithPayload(cmt.Payload{
		Kind: cmt.PayloadRCDetect,
		RCDetect: cmt.RCDetectPayload{
			BaudHz:    c.BaudHz,
			Protocol:  uint8(c.Protocol),
			Inverted:  c.Inverted,
			Candidate: uint8(candidateIdx),
		},
	})
	p.rt.PostBothDiscardable(msg)
}

func (p *Pipeline) armCapture() {
	p.mu.Lock()
	if !p.copyInFlight {
		p.state = StateCapturing
	}
	buf := p.buf.Enqueue()
	cfg := p.chosen
	p.mu.Unlock()

	p.dma.StartCapture(buf, cfg, func(res CaptureResult) {
		p.mu.Lock()
		p.pendingCaptureErr = res.Err
		p.pendingParityOnly = res.ParityOnly
		p.mu.Unlock()
		p.rt.Post(p.core, cmt.NewMessageWithPriority(msgFrameReady, cmt.PriorityHigh))
	})
}

// handleFrameReady implements SPEC_FULL.md §4.8's four-way branch on
// DMA completion: error (halt and count), busy (a copy is still in
// flight), same (dedup), or distinct (roll CRCs, kick a copy, and
// re-arm regardless of the copy's completion).
func (p *Pipeline) handleFrameReady(cmt.Message) {
	p.mu.Lock()
	if err := p.pendingCaptureErr; err != nil {
		parityOnly := p.pendingParityOnly
		p.pendingCaptureErr = nil
		p.pendingParityOnly = false
		p.mu.Unlock()
		p.handleCaptureError(err, parityOnly)
		return
	}

	if p.copyInFlight {
		p.busy++
		p.mu.Unlock()
		p.rearmCapture()
		return
	}

	newCRC := checksumFrame(p.buf.Enqueue())
	if newCRC == p.currentCRC {
		p.same++
		p.mu.Unlock()
		p.rearmCapture()
		return
	}

	p.previousCRC = p.currentCRC
	p.currentCRC = newCRC
	p.copyInFlight = true
	p.state = StateCopying
	buf := p.buf
	p.mu.Unlock()

	p.dma.StartCopy(buf, func() {
		p.rt.Post(p.core, cmt.NewMessageWithPriority(msgCopyDone, cmt.PriorityHigh))
	})
	p.rearmCapture()
}

func (p *Pipeline) handleCopyDone(cmt.Message) {
	p.mu.Lock()
	p.copyInFlight = false
	if p.state == StateCopying {
		p.state = StateCapturing
	}
	p.pub++
	frame := append([]byte(nil), p.buf.Current()...)
	onPublish := p.onPublish
	p.mu.Unlock()

	if onPublish != nil {
		onPublish(frame)
	}
}

func (p *Pipeline) rearmCapture() {
	p.mu.Lock()
	if p.state == StateDisabled {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.armCapture()
}

// handleCaptureError implements SPEC_FULL.md §4.8's error path: halt
// (by not re-arming until the rate check passes), count, broadcast, and
// either re-arm or transition to Disabled.
func (p *Pipeline) handleCaptureError(err error, parityOnly bool) {
	p.mu.Lock()
	p.errs.total++
	p.errs.sinceReset++
	if parityOnly {
		p.errs.parityOnly++
	}
	p.errs.lastErrorMs = p.rt.Clock().NowMs()
	core := p.core
	p.mu.Unlock()

	_, allowed := p.limiter.Allow(rcrxErrorCategory)

	p.mu.Lock()
	if !allowed {
		p.state = StateDisabled
	}
	disabled := p.state == StateDisabled
	p.mu.Unlock()

	cmt.Log(cmt.LogEntry{
		Level:    cmt.LevelWarn,
		Category: "rcrx",
		Core:     int64(core),
		Message:  "capture error",
		Err:      err,
		Context:  map[string]any{"disabled": disabled},
	})

	msg := cmt.NewMessage(MsgRCError).WithPayload(cmt.Payload{Kind: cmt.PayloadScalar, Scalar: boolToScalar(disabled)})
	p.rt.PostBothDiscardable(msg)

	if !disabled {
		p.rearmCapture()
	}
}

func boolToScalar(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
