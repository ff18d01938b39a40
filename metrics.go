package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID indexes the engine's fixed counter and histogram set.
type MetricID uint16

const (
	MetricAuthorizeSuccess MetricID = iota
	MetricAuthorizeInvalid
	MetricAuthorizeLoginRequired
	MetricTokenExchangeSuccess
	MetricTokenExchangeFailure
	// MetricCodeReplay counts presentations of an already redeemed code.
	MetricCodeReplay
	MetricPKCEMismatch
	MetricRefreshSuccess
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts refresh tokens presented after
	// rotation, including lost concurrent races.
	MetricRefreshReuseDetected
	MetricLogout
	MetricLoginSuccess
	MetricLoginFailure
	MetricAuthenticateSuccess
	MetricAuthenticateFailure
	MetricRevokedTokenRejected
	MetricRateLimitHit
	MetricBackendError
	// MetricFailOpen counts requests let through by a fail-open policy.
	MetricFailOpen
	MetricAuthenticateLatency
	MetricTokenExchangeLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free counter set. A nil or disabled Metrics ignores
// every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy. Histogram slices hold
// per-bucket (not cumulative) counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into a latency histogram. IDs that are not histograms
// are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !IsHistogram(id) {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if IsHistogram(id) {
			if m.enableLatency {
				buckets := make([]uint64, histBucketCount)
				for i := range buckets {
					buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
				}
				s.Histograms[id] = buckets
			}
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}

// IsHistogram reports whether id is a latency histogram rather than a
// counter.
func IsHistogram(id MetricID) bool {
	return id == MetricAuthenticateLatency || id == MetricTokenExchangeLatency
}

// HistogramBucketBounds are the upper bounds, in seconds, of every bucket
// but the last, which is unbounded.
var HistogramBucketBounds = [histBucketCount - 1]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

func bucketIndex(d time.Duration) int {
	s := d.Seconds()
	for i, bound := range HistogramBucketBounds {
		if s <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
