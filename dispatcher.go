package cmt

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

// Dispatcher is the per-core retrieve-dispatch-account loop described
// in SPEC_FULL.md §4.5. One Dispatcher owns one core's QueueSet and
// drains it forever via RunLoop.
type Dispatcher struct {
	core     CoreID
	queue    *QueueSet
	registry *Registry
	idle     *idleHooks
	status   *StatusAccumulator
	clock    *Clock
	metrics  *LatencyMetrics // nil unless WithMetrics(true)
	statusPin func(bool)

	interruptMask atomic.Uint32
}

// DispatcherConfig groups the inputs a Dispatcher needs, mirroring
// the spec's "a QueueSet, a handler-registry table, an optional
// idle-hook list".
type DispatcherConfig struct {
	Core      CoreID
	Queue     *QueueSet
	Registry  *Registry
	IdleHooks []IdleHook
	Clock     *Clock
	Metrics   *LatencyMetrics // optional
	StatusPin func(bool)      // optional
}

// NewDispatcher builds a Dispatcher from cfg.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		core:      cfg.Core,
		queue:     cfg.Queue,
		registry:  cfg.Registry,
		idle:      newIdleHooks(cfg.IdleHooks),
		status:    NewStatusAccumulator(cfg.Clock.NowUs()),
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		statusPin: cfg.StatusPin,
	}
}

// SetInterruptMask records the interrupt mask snapshot surfaced in
// the next published StatusSnapshot.
func (d *Dispatcher) SetInterruptMask(mask uint32) {
	d.interruptMask.Store(mask)
}

// Snapshot populates out with the dispatcher's most recently
// published per-second status.
func (d *Dispatcher) Snapshot(out *StatusSnapshot) bool {
	return d.status.Snapshot(out)
}

// LatencySnapshot returns the dispatcher's handler-latency
// percentiles. Returns the zero value if metrics are disabled.
func (d *Dispatcher) LatencySnapshot() LatencyPercentiles {
	if d.metrics == nil {
		return LatencyPercentiles{}
	}
	return d.metrics.Snapshot()
}

// RunLoop enters the dispatch loop: retrieve, dispatch, account,
// forever. In production callers pass context.Background(), so in
// practice it never returns, matching "enters the dispatcher; does
// not return" (SPEC_FULL.md §6). Tests pass a cancelable context to
// exercise shutdown deterministically. startFn, if non-nil, runs once
// before the first iteration (e.g. to post an initial message).
func (d *Dispatcher) RunLoop(ctx context.Context, startFn func()) error {
	if startFn != nil {
		startFn()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tStart := d.clock.NowUs()
		d.status.MaybePublish(tStart, d.interruptMask.Load())

		msg, ok := d.queue.TryRetrieve()
		if !ok {
			d.idle.runNext()
			runtime.Gosched()
			continue
		}

		if d.statusPin != nil {
			d.statusPin(true)
		}
		if fn, pinned := msg.PinnedHandler(); pinned {
			fn(msg)
		} else {
			d.registry.Dispatch(msg)
		}
		if d.statusPin != nil {
			d.statusPin(false)
		}

		delta := d.clock.NowUs() - tStart
		d.status.Account(msg.ID, delta)
		if d.metrics != nil {
			d.metrics.Record(time.Duration(delta) * time.Microsecond)
		}
	}
}
