package chronos

import "testing"

func TestLatencyHistogramQuantileEmpty(t *testing.T) {
	h := newLatencyHistogram()
	if got := h.Quantile(0.5); got != 0 {
		t.Errorf("Quantile on an empty histogram = %d, want 0", got)
	}
}

func TestLatencyHistogramQuantileApproximatesRecordedValue(t *testing.T) {
	h := newLatencyHistogram()
	const sample = int64(1_000_000) // 1ms
	for i := 0; i < 100; i++ {
		h.Record(sample)
	}
	got := h.Quantile(0.5)
	// the bucket ladder guarantees the returned boundary is within one
	// bucket's relative width (0.1%) of the true sample.
	lowerBound := float64(sample) * 0.99
	upperBound := float64(sample) * 1.01
	if float64(got) < lowerBound || float64(got) > upperBound {
		t.Errorf("Quantile(0.5) = %d, want within 1%% of %d", got, sample)
	}
}

func TestLatencyHistogramClampsOutOfRangeSamples(t *testing.T) {
	h := newLatencyHistogram()
	h.Record(-5) // clamps to 0
	h.Record(histogramMaxNs * 10)
	if h.total.Load() != 2 {
		t.Errorf("total = %d, want 2", h.total.Load())
	}
}

func TestLatencyHistogramReset(t *testing.T) {
	h := newLatencyHistogram()
	h.Record(1_000_000)
	h.Reset()
	if h.total.Load() != 0 {
		t.Error("expected total to be zero after Reset")
	}
	if got := h.Quantile(0.5); got != 0 {
		t.Errorf("Quantile after Reset = %d, want 0", got)
	}
}

func TestMetricsRecordGetTracksHitsAndMisses(t *testing.T) {
	m := NewMetrics(newFakeTimeProvider(0))
	m.RecordGet(1000, true)
	m.RecordGet(1000, false)
	m.RecordGet(1000, true)

	snap := m.Snapshot()
	if snap.Hits != 2 || snap.Misses != 1 {
		t.Errorf("Hits=%d Misses=%d, want Hits=2 Misses=1", snap.Hits, snap.Misses)
	}
	want := 2.0 / 3.0
	if snap.HitRate != want {
		t.Errorf("HitRate = %v, want %v", snap.HitRate, want)
	}
}

func TestMetricsSnapshotZeroHitRateWithNoTraffic(t *testing.T) {
	m := NewMetrics(newFakeTimeProvider(0))
	if got := m.Snapshot().HitRate; got != 0 {
		t.Errorf("HitRate with no traffic = %v, want 0", got)
	}
}

func TestMetricsEvictionRateWindow(t *testing.T) {
	tp := newFakeTimeProvider(0)
	m := NewMetrics(tp)

	m.RecordEviction()
	m.RecordEviction()
	tp.Advance(int64(1e9)) // 1 second
	snap := m.Snapshot()
	if snap.EvictionsPerSecond != 2 {
		t.Errorf("EvictionsPerSecond = %v, want 2", snap.EvictionsPerSecond)
	}

	// a second window with no new evictions should report a zero rate.
	tp.Advance(int64(1e9))
	snap = m.Snapshot()
	if snap.EvictionsPerSecond != 0 {
		t.Errorf("EvictionsPerSecond on a quiet window = %v, want 0", snap.EvictionsPerSecond)
	}
}

func TestScoreHealthPerfectScore(t *testing.T) {
	snap := Snapshot{HitRate: 1.0, P99GetLatencyNs: 0, EvictionsPerSecond: 0}
	result := ScoreHealth(snap)
	if result.Score != 100 {
		t.Errorf("Score = %d, want 100", result.Score)
	}
	if result.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", result.Status)
	}
	if len(result.Issues) != 0 {
		t.Errorf("Issues = %v, want none", result.Issues)
	}
}

func TestScoreHealthLowHitRateDeduction(t *testing.T) {
	snap := Snapshot{HitRate: 0.3}
	result := ScoreHealth(snap)
	if result.Score != 70 {
		t.Errorf("Score = %d, want 70 (100-30)", result.Score)
	}
	if result.Status != "degraded" {
		t.Errorf("Status = %q, want degraded (score must be > 70 for healthy)", result.Status)
	}
}

func TestScoreHealthModerateHitRateDeduction(t *testing.T) {
	snap := Snapshot{HitRate: 0.6}
	result := ScoreHealth(snap)
	if result.Score != 85 {
		t.Errorf("Score = %d, want 85 (100-15)", result.Score)
	}
}

func TestScoreHealthLatencyDeductions(t *testing.T) {
	snap := Snapshot{HitRate: 1.0, P99GetLatencyNs: int64(11 * 1e6)}
	if got := ScoreHealth(snap).Score; got != 80 {
		t.Errorf("Score = %d, want 80 (100-20) for p99 > 10ms", got)
	}
	snap = Snapshot{HitRate: 1.0, P99GetLatencyNs: int64(6 * 1e6)}
	if got := ScoreHealth(snap).Score; got != 90 {
		t.Errorf("Score = %d, want 90 (100-10) for p99 > 5ms", got)
	}
}

func TestScoreHealthEvictionRateDeductions(t *testing.T) {
	snap := Snapshot{HitRate: 1.0, EvictionsPerSecond: 150}
	if got := ScoreHealth(snap).Score; got != 75 {
		t.Errorf("Score = %d, want 75 (100-25) for evictions/s > 100", got)
	}
	snap = Snapshot{HitRate: 1.0, EvictionsPerSecond: 75}
	if got := ScoreHealth(snap).Score; got != 85 {
		t.Errorf("Score = %d, want 85 (100-15) for evictions/s > 50", got)
	}
}

func TestScoreHealthStackedDeductionsCrossDegradedThreshold(t *testing.T) {
	snap := Snapshot{HitRate: 0.3, P99GetLatencyNs: int64(11 * 1e6), EvictionsPerSecond: 150}
	result := ScoreHealth(snap)
	wantScore := 100 - 30 - 20 - 25
	if result.Score != wantScore {
		t.Errorf("Score = %d, want %d", result.Score, wantScore)
	}
	if result.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", result.Status)
	}
	if len(result.Issues) != 3 {
		t.Errorf("Issues = %v, want 3 entries", result.Issues)
	}
}
