package cmt

import (
	"sync"
	"sync/atomic"
	"time"
)

// TickFunc is invoked once per tick, from the tick goroutine. It must
// not block and must not re-enter the clock.
type TickFunc func()

// Clock provides monotonic ms/us timestamps and a 1 ms recurring tick,
// mirroring the tickAnchor/tickElapsedTime pattern used by the
// teacher's event loop to avoid repeated syscalls on the hot path.
//
// Production code uses NewClock, which drives ticks from a real
// time.Ticker. Tests use NewManualClock, which only advances when
// Advance is called, giving deterministic control over tick-driven
// behavior (scheduler expiry, housekeeping cadence) without sleeping.
type Clock struct {
	anchor    time.Time
	elapsedNs atomic.Int64

	mu        sync.Mutex
	listeners []TickFunc
	ticking   atomic.Bool // non-reentrant guard: a tick callback may not recurse

	manual   bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewClock creates a Clock anchored to the current wall-clock time,
// driven by a real 1 ms time.Ticker.
func NewClock() *Clock {
	c := &Clock{anchor: time.Now(), stopCh: make(chan struct{})}
	go c.run()
	return c
}

// NewManualClock creates a Clock that never ticks on its own; call
// Advance to move it forward and fire any due tick callbacks.
func NewManualClock() *Clock {
	return &Clock{anchor: time.Now(), manual: true, stopCh: make(chan struct{})}
}

func (c *Clock) run() {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.fire(time.Millisecond)
		case <-c.stopCh:
			return
		}
	}
}

// Stop halts the background ticker goroutine (no-op for manual clocks).
func (c *Clock) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Advance moves a manual clock forward by d, firing one tick callback
// invocation per elapsed millisecond. Panics if called on a clock
// created with NewClock.
func (c *Clock) Advance(d time.Duration) {
	if !c.manual {
		panic("cmt: Advance called on a non-manual Clock")
	}
	ms := d / time.Millisecond
	for i := time.Duration(0); i < ms; i++ {
		c.fire(time.Millisecond)
	}
}

func (c *Clock) fire(delta time.Duration) {
	c.elapsedNs.Add(int64(delta))

	// Re-entrance is forbidden: the ISR either runs to completion or
	// runs once after reenabling. If a tick is already in flight
	// (shouldn't happen with a single ticker goroutine, but Advance
	// may be called concurrently with a live background ticker in
	// tests), skip rather than recurse.
	if !c.ticking.CompareAndSwap(false, true) {
		return
	}
	defer c.ticking.Store(false)

	c.mu.Lock()
	listeners := c.listeners
	c.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Subscribe registers fn to be called on every tick. Intended for the
// Scheduler and the housekeeping cadence only.
func (c *Clock) Subscribe(fn TickFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// NowMs returns a monotonic, non-decreasing millisecond timestamp
// since the clock was created.
func (c *Clock) NowMs() uint32 {
	return uint32(c.elapsedSinceAnchor() / int64(time.Millisecond))
}

// NowUs returns a monotonic, non-decreasing microsecond timestamp
// since the clock was created.
func (c *Clock) NowUs() uint64 {
	return uint64(c.elapsedSinceAnchor() / int64(time.Microsecond))
}

// elapsedSinceAnchor returns nanoseconds since the clock's anchor. A
// real clock reads wall-clock time directly, for full resolution
// between ticks (handler durations are measured in microseconds, far
// finer than the 1 ms tick). A manual clock only advances as far as
// Advance has moved it, so status accounting stays deterministic in
// tests.
func (c *Clock) elapsedSinceAnchor() int64 {
	if c.manual {
		return c.elapsedNs.Load()
	}
	return int64(time.Since(c.anchor))
}
