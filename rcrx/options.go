package rcrx

import "time"

// pipelineOptions holds configuration resolved once at NewPipeline, the
// same functional-options convention cmt.Option uses.
type pipelineOptions struct {
	candidates     []Candidate
	frameSize      int
	errorWindow    time.Duration
	errorThreshold int
}

// Option configures a Pipeline at construction time.
type Option interface {
	apply(*pipelineOptions)
}

type optionFunc func(*pipelineOptions)

func (f optionFunc) apply(o *pipelineOptions) { f(o) }

// WithCandidates overrides the default three-entry autodetect table.
func WithCandidates(candidates []Candidate) Option {
	return optionFunc(func(o *pipelineOptions) { o.candidates = candidates })
}

// WithFrameSize overrides the default per-segment triple buffer size.
func WithFrameSize(n int) Option {
	return optionFunc(func(o *pipelineOptions) { o.frameSize = n })
}

// WithErrorPolicy overrides the default 60s/10-error disable policy.
func WithErrorPolicy(window time.Duration, threshold int) Option {
	return optionFunc(func(o *pipelineOptions) {
		o.errorWindow = window
		o.errorThreshold = threshold
	})
}

func resolveOptions(opts []Option) *pipelineOptions {
	cfg := &pipelineOptions{
		candidates:     DefaultCandidates(),
		frameSize:      DefaultFrameSize,
		errorWindow:    60 * time.Second,
		errorThreshold: 10,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(cfg)
		}
	}
	return cfg
}
