package cmt

import (
	"sync"
	"time"
)

// LatencyPercentiles is a snapshot of a dispatcher's handler-latency
// distribution, computed in O(1) per sample via the P-Square
// algorithm (see quantile.go). This is an expansion beyond the
// mandatory "longest handler" field in StatusSnapshot: it's useful
// observability, optional, and additive (WithMetrics(true) is the
// only thing that turns it on).
type LatencyPercentiles struct {
	P50, P90, P95, P99 time.Duration
	Max                time.Duration
	Mean               time.Duration
	Samples            int
}

// LatencyMetrics is a thread-safe wrapper around latencyQuantiles,
// recording one sample per dispatched message when a Dispatcher's
// metrics are enabled.
type LatencyMetrics struct {
	mu  sync.Mutex
	est *latencyQuantiles
}

func newLatencyMetrics() *LatencyMetrics {
	return &LatencyMetrics{}
}

// Record adds a latency sample. Called by the dispatcher after every
// handler invocation when metrics are enabled.
func (l *LatencyMetrics) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.est == nil {
		l.est = newLatencyQuantiles(0.50, 0.90, 0.95, 0.99)
	}
	l.est.Update(float64(d))
}

// Snapshot returns the current percentile estimates.
func (l *LatencyMetrics) Snapshot() LatencyPercentiles {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.est == nil {
		return LatencyPercentiles{}
	}
	return LatencyPercentiles{
		P50:     time.Duration(l.est.Quantile(0)),
		P90:     time.Duration(l.est.Quantile(1)),
		P95:     time.Duration(l.est.Quantile(2)),
		P99:     time.Duration(l.est.Quantile(3)),
		Max:     time.Duration(l.est.Max()),
		Mean:    time.Duration(l.est.Mean()),
		Samples: l.est.Count(),
	}
}

// QueueDepthGauge is a point-in-time snapshot of a QueueSet's ring
// occupancy, for dashboards that want more resolution than the
// mandatory status accumulator provides.
type QueueDepthGauge struct {
	High, Normal, Low int
}

// QueueDepth reads the current depth of each ring in q as a single
// consistent snapshot (RingLens holds the QueueSet's lock once for
// all three rings).
func QueueDepth(q *QueueSet) QueueDepthGauge {
	h, n, l := q.RingLens()
	return QueueDepthGauge{High: h, Normal: n, Low: l}
}
