package cmt

// runtimeOptions holds configuration resolved once at New(), per the
// teacher's functional-options convention (eventloop/options.go):
// a private config struct mutated by Option closures, never exposed
// for post-construction mutation.
type runtimeOptions struct {
	queueCaps     QueueCapacities
	slotPoolSize  int
	metricsEnabled bool
	clock         *Clock
	statusPin     func(bool)
}

// Option configures a Runtime at construction time.
type Option interface {
	apply(*runtimeOptions)
}

type optionFunc func(*runtimeOptions)

func (f optionFunc) apply(o *runtimeOptions) { f(o) }

// WithQueueCapacities overrides the default per-core ring sizes.
func WithQueueCapacities(caps QueueCapacities) Option {
	return optionFunc(func(o *runtimeOptions) { o.queueCaps = caps })
}

// WithSlotPoolSize overrides the default scheduler pool size. Values
// below DefaultSlotPoolSize are raised to it: the spec treats a
// smaller pool as a configuration error, not a tunable.
func WithSlotPoolSize(n int) Option {
	return optionFunc(func(o *runtimeOptions) { o.slotPoolSize = n })
}

// WithMetrics enables per-dispatcher latency percentile tracking
// (Runtime.LatencySnapshot). Disabled by default: a bare Runtime pays
// zero overhead for metrics it doesn't use. Queue-depth gauges
// (Runtime.QueueDepth) are available whether or not metrics are
// enabled.
func WithMetrics(enabled bool) Option {
	return optionFunc(func(o *runtimeOptions) { o.metricsEnabled = enabled })
}

// WithClock injects a Clock, overriding the default real-time one.
// Primarily for tests, which want a NewManualClock they can Advance
// deterministically instead of waiting on a real 1 ms ticker.
func WithClock(c *Clock) Option {
	return optionFunc(func(o *runtimeOptions) { o.clock = c })
}

// WithStatusPin installs the non-semantic status-output callback
// pulsed around each handler invocation (SPEC_FULL.md §4.5), e.g. to
// drive an LED for oscilloscope-based observation.
func WithStatusPin(fn func(bool)) Option {
	return optionFunc(func(o *runtimeOptions) { o.statusPin = fn })
}

func resolveOptions(opts []Option) *runtimeOptions {
	cfg := &runtimeOptions{
		queueCaps:    DefaultQueueCapacities(),
		slotPoolSize: DefaultSlotPoolSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(cfg)
		}
	}
	if cfg.slotPoolSize < DefaultSlotPoolSize {
		cfg.slotPoolSize = DefaultSlotPoolSize
	}
	return cfg
}
