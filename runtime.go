package cmt

import (
	"context"
	"sync"
	"sync/atomic"
)

// SleepFunc is invoked by the generic sleep handler when a SleepMs
// timer expires. user is the opaque value passed to SleepMs.
type SleepFunc func(user uint32)

// CoreConfig supplies one core's static handler table and idle
// hooks at Runtime construction.
type CoreConfig struct {
	Handlers  []RegistryEntry
	IdleHooks []IdleHook
}

// Runtime is the single explicit handle owning every piece of
// process-wide mutable state the original source kept as statics:
// both cores' QueueSets, the Scheduler pool, the Clock, and the
// cross-core sequence counter. No implicit singletons survive this
// port (SPEC_FULL.md §9, "Global mutable state -> explicit runtime
// handle").
type Runtime struct {
	clock    *Clock
	sequence atomic.Uint32

	queues      [2]*QueueSet
	registries  [2]*Registry
	dispatchers [2]*Dispatcher
	scheduler   *Scheduler

	sleepMu        sync.Mutex
	sleepCallbacks []SleepFunc

	initialized atomic.Bool
}

// New constructs a Runtime for both cores. Construction never fails:
// Option values only validate/clamp configuration (e.g. a slot pool
// size below the spec minimum is raised, not rejected).
func New(core0, core1 CoreConfig, opts ...Option) *Runtime {
	cfg := resolveOptions(opts)

	clock := cfg.clock
	if clock == nil {
		clock = NewClock()
	}

	r := &Runtime{clock: clock}

	r.queues[0] = NewQueueSet(cfg.queueCaps)
	r.queues[1] = NewQueueSet(cfg.queueCaps)

	sleepHandler := RegistryEntry{ID: MsgSleepExpired, Handler: r.dispatchSleep}
	r.registries[0] = NewRegistry(append(append([]RegistryEntry(nil), core0.Handlers...), sleepHandler))
	r.registries[1] = NewRegistry(append(append([]RegistryEntry(nil), core1.Handlers...), sleepHandler))

	var metrics [2]*LatencyMetrics
	if cfg.metricsEnabled {
		metrics[0] = newLatencyMetrics()
		metrics[1] = newLatencyMetrics()
	}

	r.dispatchers[0] = NewDispatcher(DispatcherConfig{
		Core: Core0, Queue: r.queues[0], Registry: r.registries[0],
		IdleHooks: core0.IdleHooks, Clock: clock, Metrics: metrics[0], StatusPin: cfg.statusPin,
	})
	r.dispatchers[1] = NewDispatcher(DispatcherConfig{
		Core: Core1, Queue: r.queues[1], Registry: r.registries[1],
		IdleHooks: core1.IdleHooks, Clock: clock, Metrics: metrics[1], StatusPin: cfg.statusPin,
	})

	r.scheduler = NewScheduler(cfg.slotPoolSize, func(core CoreID, msg Message) {
		r.queues[core].Post(msg)
	})

	return r
}

// Init wires the Scheduler's 1 ms tick into the Clock and must be
// called exactly once before any other Runtime entry point. A second
// call aborts: duplicate init is a configuration-exceeded condition,
// not a runtime state to tolerate (SPEC_FULL.md §7).
func (r *Runtime) Init() {
	if !r.initialized.CompareAndSwap(false, true) {
		abortf("runtime: Init called more than once")
	}
	r.clock.Subscribe(func() {
		r.scheduler.Tick(func(msg Message) {
			stamped := r.stamp(msg)
			r.queues[0].PostDiscardable(stamped)
			r.queues[1].PostDiscardable(stamped)
		})
	})
}

// stamp assigns the next sequence number and current ms timestamp to
// msg. Every call anywhere in the Runtime funnels through this one
// atomic counter, so sequence strictly increases across posts to
// either core (SPEC_FULL.md §3 invariant).
func (r *Runtime) stamp(msg Message) Message {
	msg.Sequence = r.sequence.Add(1)
	msg.PostTimeMs = r.clock.NowMs()
	return msg
}

// RunLoop enters the dispatcher for the given core. In production
// this is called once per core and does not return; see
// Dispatcher.RunLoop.
func (r *Runtime) RunLoop(core CoreID, ctx context.Context, startFn func()) error {
	return r.dispatchers[core].RunLoop(ctx, startFn)
}

// LaunchCore1 is the cross-core launch glue: it starts core 1's
// dispatcher on its own goroutine, the Go analogue of core 0's boot
// code kicking off the second physical core. Call once, from core
// 0's init path, before calling RunLoop(Core0, ...).
func (r *Runtime) LaunchCore1(ctx context.Context, startFn func()) {
	go func() {
		_ = r.dispatchers[1].RunLoop(ctx, startFn)
	}()
}

// Post delivers msg to the given core's QueueSet, panicking if the
// destination ring is full (a required post).
func (r *Runtime) Post(core CoreID, msg Message) {
	r.queues[core].Post(r.stamp(msg))
}

// PostDiscardable delivers msg to the given core's QueueSet,
// returning false instead of panicking if the destination ring is
// full.
func (r *Runtime) PostDiscardable(core CoreID, msg Message) bool {
	return r.queues[core].PostDiscardable(r.stamp(msg))
}

// PostBothDiscardable posts the same logical message to both cores as
// a discardable post, returning whether each core accepted it.
func (r *Runtime) PostBothDiscardable(msg Message) (core0, core1 bool) {
	stamped := r.stamp(msg)
	return r.queues[0].PostDiscardable(stamped), r.queues[1].PostDiscardable(stamped)
}

// ScheduleInMs schedules msg for delivery to core after ms
// milliseconds. Panics if the scheduler pool is exhausted.
func (r *Runtime) ScheduleInMs(core CoreID, ms uint32, msg Message) {
	r.scheduler.ScheduleInMs(core, ms, r.stamp(msg))
}

// ScheduleInMsSelf is ScheduleInMs with an explicit "current core"
// argument; Go has no ambient current-core global, so callers thread
// their own core id through instead of relying on one (see
// SPEC_FULL.md §6).
func (r *Runtime) ScheduleInMsSelf(self CoreID, ms uint32, msg Message) {
	r.ScheduleInMs(self, ms, msg)
}

// RegisterSleepCallback registers fn and returns a capability index
// usable with SleepMs. Registering once at startup for every distinct
// sleep continuation keeps the sleep payload a fixed-size value
// (SPEC_FULL.md §9) instead of carrying a raw pointer.
func (r *Runtime) RegisterSleepCallback(fn SleepFunc) uint32 {
	r.sleepMu.Lock()
	defer r.sleepMu.Unlock()
	idx := uint32(len(r.sleepCallbacks))
	r.sleepCallbacks = append(r.sleepCallbacks, fn)
	return idx
}

// SleepMs reserves a scheduler slot that, after ms milliseconds,
// dispatches into the callback registered under callbackIndex with
// the given opaque user value. The expiry posts to core.
func (r *Runtime) SleepMs(core CoreID, ms uint32, callbackIndex uint32, user uint32) {
	msg := NewMessageWithPriority(MsgSleepExpired, PriorityNormal).WithPayload(Payload{
		Kind:  PayloadSleep,
		Sleep: SleepPayload{CallbackIndex: callbackIndex, User: user},
	})
	r.ScheduleInMs(core, ms, msg)
}

func (r *Runtime) dispatchSleep(msg Message) {
	r.sleepMu.Lock()
	idx := int(msg.Payload.Sleep.CallbackIndex)
	var fn SleepFunc
	if idx >= 0 && idx < len(r.sleepCallbacks) {
		fn = r.sleepCallbacks[idx]
	}
	r.sleepMu.Unlock()
	if fn != nil {
		fn(msg.Payload.Sleep.User)
	}
}

// Cancel clears every scheduler slot queuing id. Best-effort: a
// delivery may already have been posted before Cancel observes the
// slot.
func (r *Runtime) Cancel(id MessageID) {
	r.scheduler.Cancel(id)
}

// Exists reports whether any scheduler slot currently queues id.
func (r *Runtime) Exists(id MessageID) bool {
	return r.scheduler.Exists(id)
}

// Count returns the number of non-FREE scheduler slots.
func (r *Runtime) Count() uint32 {
	return r.scheduler.Count()
}

// WaitingIDs fills buf with the ids of non-FREE scheduler slots.
func (r *Runtime) WaitingIDs(buf []MessageID) []MessageID {
	return r.scheduler.WaitingIDs(buf)
}

// SnapshotStatus populates out with core's most recently published
// per-second status.
func (r *Runtime) SnapshotStatus(core CoreID, out *StatusSnapshot) bool {
	return r.dispatchers[core].Snapshot(out)
}

// LatencySnapshot returns core's dispatcher handler-latency
// percentiles (zero value if metrics are disabled).
func (r *Runtime) LatencySnapshot(core CoreID) LatencyPercentiles {
	return r.dispatchers[core].LatencySnapshot()
}

// SetInterruptMask records the interrupt mask snapshot surfaced in
// core's next published status.
func (r *Runtime) SetInterruptMask(core CoreID, mask uint32) {
	r.dispatchers[core].SetInterruptMask(mask)
}

// AddHandler registers fn for id on core's dispatcher after
// construction.
func (r *Runtime) AddHandler(core CoreID, id MessageID, fn HandlerFunc) uint64 {
	return r.registries[core].AddHandler(id, fn)
}

// RemoveHandler removes a handler previously added with AddHandler.
func (r *Runtime) RemoveHandler(core CoreID, id MessageID, handle uint64) {
	r.registries[core].RemoveHandler(id, handle)
}

// Clock returns the Runtime's clock, for clients (e.g. RCRX) that
// need NowMs/NowUs or a tick subscription of their own.
func (r *Runtime) Clock() *Clock {
	return r.clock
}

// QueueDepth returns core's current ring occupancy.
func (r *Runtime) QueueDepth(core CoreID) QueueDepthGauge {
	return QueueDepth(r.queues[core])
}
