// metrics.go: built-in latency histogram, counters, and health scorer.
//
// Counter shape follows MiraiMindz-watt's AtomicMetrics
// (capacitor/pkg/cache/memory/metrics_atomic.go): one atomic.Int64 per
// counted event, a Snapshot method taking a consistent-enough read. The
// latency histogram departs from every precedent in the corpus (fixed
// linear buckets, or a sorted circular sample buffer): neither meets the
// spec's >=0.1% relative precision requirement across a 1µs-3600s range
// without either enormous bucket counts or throwing away precision at the
// tail. Instead this uses a geometric (HDR-Histogram-style) bucket ladder:
// bucket i covers [boundary^i, boundary^(i+1)), so the relative width of
// every bucket is fixed regardless of where it falls in the range, and a
// reported quantile (the upper boundary of the bucket it falls in) is off
// by at most one bucket's width.
package chronos

import (
	"math"
	"sync"
	"sync/atomic"
)

const (
	// histogramBoundaryRatio is the per-bucket growth factor. 1.001 keeps
	// every bucket within 0.1% of its neighbors, satisfying the spec's
	// relative-precision requirement.
	histogramBoundaryRatio = 1.001
	// histogramMinNs and histogramMaxNs bound the tracked range: 1
	// microsecond to 3600 seconds (spec §4.8 "precision to 0.1% up to
	// 3600s"). Samples outside the range clamp into the first/last bucket.
	histogramMinNs = int64(1_000)
	histogramMaxNs = int64(3600) * 1_000_000_000
)

// latencyHistogram is a fixed, pre-computed ladder of geometric buckets
// with atomic per-bucket counters. Safe for concurrent Record/Quantile
// calls from many goroutines; Record never allocates or blocks.
type latencyHistogram struct {
	bucketCount int
	logBase     float64 // precomputed log(histogramBoundaryRatio)
	counts      []atomic.Int64
	total       atomic.Int64
}

func newLatencyHistogram() *latencyHistogram {
	logBase := math.Log(histogramBoundaryRatio)
	n := int(math.Log(float64(histogramMaxNs)/float64(histogramMinNs))/logBase) + 2
	return &latencyHistogram{
		bucketCount: n,
		logBase:     logBase,
		counts:      make([]atomic.Int64, n),
	}
}

func (h *latencyHistogram) bucketFor(ns int64) int {
	if ns <= histogramMinNs {
		return 0
	}
	if ns >= histogramMaxNs {
		return h.bucketCount - 1
	}
	idx := int(math.Log(float64(ns)/float64(histogramMinNs)) / h.logBase)
	if idx >= h.bucketCount {
		idx = h.bucketCount - 1
	}
	return idx
}

// Record adds one latency sample, in nanoseconds.
func (h *latencyHistogram) Record(ns int64) {
	if ns < 0 {
		ns = 0
	}
	h.counts[h.bucketFor(ns)].Add(1)
	h.total.Add(1)
}

// Quantile returns the approximate upper boundary (in nanoseconds) of the
// bucket containing the q-th quantile (0 < q < 1), walking the bucket
// ladder in ascending order and accumulating counts until the running
// total reaches q*total. Returns 0 if no samples have been recorded.
func (h *latencyHistogram) Quantile(q float64) int64 {
	total := h.total.Load()
	if total == 0 {
		return 0
	}
	target := int64(math.Ceil(q * float64(total)))
	var cumulative int64
	for i := 0; i < h.bucketCount; i++ {
		cumulative += h.counts[i].Load()
		if cumulative >= target {
			return int64(float64(histogramMinNs) * math.Pow(histogramBoundaryRatio, float64(i+1)))
		}
	}
	return histogramMaxNs
}

// Reset zeroes every bucket and the total, for periodic rate-window metrics.
func (h *latencyHistogram) Reset() {
	for i := range h.counts {
		h.counts[i].Store(0)
	}
	h.total.Store(0)
}

// Metrics is the built-in MetricsCollector implementation: lock-free
// counters plus one latencyHistogram per operation, and a health scorer
// derived from them (spec §4.8).
type Metrics struct {
	hits        atomic.Int64
	misses      atomic.Int64
	sets        atomic.Int64
	deletes     atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64

	prefetchDispatch atomic.Int64
	prefetchHit      atomic.Int64

	getLatency    *latencyHistogram
	setLatency    *latencyHistogram
	deleteLatency *latencyHistogram

	tp TimeProvider

	windowMu     sync.Mutex
	windowStart  int64 // NowMono at the start of the current eviction-rate window
	windowEvicts int64 // evictions counted at windowStart
}

// NewMetrics builds a Metrics sink. tp is used only to compute
// evictions-per-second for the health score.
func NewMetrics(tp TimeProvider) *Metrics {
	if tp == nil {
		tp = &systemTimeProvider{}
	}
	m := &Metrics{
		getLatency:    newLatencyHistogram(),
		setLatency:    newLatencyHistogram(),
		deleteLatency: newLatencyHistogram(),
		tp:            tp,
	}
	m.windowStart = tp.NowMono()
	return m
}

func (m *Metrics) RecordGet(latencyNs int64, hit bool) {
	m.getLatency.Record(latencyNs)
	if hit {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
}

func (m *Metrics) RecordSet(latencyNs int64) {
	m.setLatency.Record(latencyNs)
	m.sets.Add(1)
}

func (m *Metrics) RecordDelete(latencyNs int64) {
	m.deleteLatency.Record(latencyNs)
	m.deletes.Add(1)
}

func (m *Metrics) RecordEviction()   { m.evictions.Add(1) }
func (m *Metrics) RecordExpiration() { m.expirations.Add(1) }

func (m *Metrics) RecordPrefetchDispatch() { m.prefetchDispatch.Add(1) }
func (m *Metrics) RecordPrefetchHit()      { m.prefetchHit.Add(1) }

// Snapshot is a point-in-time read of every metric the health scorer and
// /stats endpoint need.
type Snapshot struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Deletes     int64
	Evictions   int64
	Expirations int64

	PrefetchDispatch int64
	PrefetchHit      int64

	HitRate float64

	P50GetLatencyNs int64
	P95GetLatencyNs int64
	P99GetLatencyNs int64

	EvictionsPerSecond float64
}

// Snapshot reads every counter and histogram quantile, and the current
// eviction rate (evictions since the last call to Snapshot, divided by
// elapsed time), resetting the rate window.
func (m *Metrics) Snapshot() Snapshot {
	hits := m.hits.Load()
	misses := m.misses.Load()
	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	evictions := m.evictions.Load()
	evictionsPerSec := m.evictionRate(evictions)

	return Snapshot{
		Hits:               hits,
		Misses:             misses,
		Sets:               m.sets.Load(),
		Deletes:            m.deletes.Load(),
		Evictions:          evictions,
		Expirations:        m.expirations.Load(),
		PrefetchDispatch:   m.prefetchDispatch.Load(),
		PrefetchHit:        m.prefetchHit.Load(),
		HitRate:            hitRate,
		P50GetLatencyNs:    m.getLatency.Quantile(0.50),
		P95GetLatencyNs:    m.getLatency.Quantile(0.95),
		P99GetLatencyNs:    m.getLatency.Quantile(0.99),
		EvictionsPerSecond: evictionsPerSec,
	}
}

func (m *Metrics) evictionRate(currentEvictions int64) float64 {
	m.windowMu.Lock()
	defer m.windowMu.Unlock()
	now := m.tp.NowMono()
	elapsedSec := float64(now-m.windowStart) / 1e9
	delta := currentEvictions - m.windowEvicts
	rate := 0.0
	if elapsedSec > 0 {
		rate = float64(delta) / elapsedSec
	}
	m.windowStart = now
	m.windowEvicts = currentEvictions
	return rate
}

// HealthStatus is the outcome of scoring a Snapshot (spec §4.8).
type HealthStatus struct {
	Score    int
	Status   string // "healthy" or "degraded"
	Issues   []string
	Snapshot Snapshot
}

// ScoreHealth applies the spec's fixed deduction table to snap:
//
//	start at 100
//	- hit_rate < 0.5: -30; else hit_rate < 0.7: -15
//	- p99 > 10ms: -20; else p99 > 5ms: -10
//	- evictions/s > 100: -25; else evictions/s > 50: -15
//	status: "healthy" if score > 70, else "degraded"
func ScoreHealth(snap Snapshot) HealthStatus {
	score := 100
	var issues []string

	switch {
	case snap.HitRate < 0.5:
		score -= 30
		issues = append(issues, "hit rate below 50% — consider a larger MaxMemoryBytes budget or enabling the prefetcher")
	case snap.HitRate < 0.7:
		score -= 15
		issues = append(issues, "hit rate below 70% — workload may benefit from a larger cache or adaptive TTL")
	}

	p99ms := float64(snap.P99GetLatencyNs) / 1e6
	switch {
	case p99ms > 10:
		score -= 20
		issues = append(issues, "p99 get latency above 10ms — check for lock contention or an oversized segment count")
	case p99ms > 5:
		score -= 10
		issues = append(issues, "p99 get latency above 5ms — monitor for growing contention")
	}

	switch {
	case snap.EvictionsPerSecond > 100:
		score -= 25
		issues = append(issues, "eviction rate above 100/s — memory budget is undersized for this working set")
	case snap.EvictionsPerSecond > 50:
		score -= 15
		issues = append(issues, "eviction rate above 50/s — approaching memory pressure")
	}

	status := "degraded"
	if score > 70 {
		status = "healthy"
	}

	return HealthStatus{Score: score, Status: status, Issues: issues, Snapshot: snap}
}
