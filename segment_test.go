package chronos

import (
	"sync"
	"testing"
)

// recordingMetricsCollector counts calls instead of discarding them, so
// tests can assert that a Segment's operations actually feed its
// MetricsCollector rather than only updating its own local counters.
type recordingMetricsCollector struct {
	mu                        sync.Mutex
	gets, sets, deletes       int
	hits, misses              int
	evictions, expirations    int
	getLatencyNs, setLatencyNs, deleteLatencyNs int64
}

func (r *recordingMetricsCollector) RecordGet(latencyNs int64, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	r.getLatencyNs = latencyNs
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *recordingMetricsCollector) RecordSet(latencyNs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets++
	r.setLatencyNs = latencyNs
}

func (r *recordingMetricsCollector) RecordDelete(latencyNs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	r.deleteLatencyNs = latencyNs
}

func (r *recordingMetricsCollector) RecordEviction()   { r.mu.Lock(); r.evictions++; r.mu.Unlock() }
func (r *recordingMetricsCollector) RecordExpiration() { r.mu.Lock(); r.expirations++; r.mu.Unlock() }
func (r *recordingMetricsCollector) RecordPrefetchDispatch() {}
func (r *recordingMetricsCollector) RecordPrefetchHit()      {}

func newTestSegment(t *testing.T, budgetBytes int64, kind PolicyKind) (*Segment, *fakeTimeProvider) {
	t.Helper()
	policy, err := NewEvictionPolicy(kind)
	if err != nil {
		t.Fatalf("NewEvictionPolicy: %v", err)
	}
	tp := newFakeTimeProvider(1_000_000_000)
	return newSegment(budgetBytes, policy, tp, NoOpMetricsCollector{}), tp
}

func TestSegmentPutGetRoundTrip(t *testing.T) {
	s, tp := newTestSegment(t, 1<<20, PolicyLRU)
	e := newEntry([]byte("value"), 0, 0, tp)
	s.Put("key", e)

	got, ok := s.Get("key")
	if !ok {
		t.Fatal("expected key to be found")
	}
	if string(got) != "value" {
		t.Errorf("Get = %q, want %q", got, "value")
	}
}

func TestSegmentGetMissingKey(t *testing.T) {
	s, _ := newTestSegment(t, 1<<20, PolicyLRU)
	if _, ok := s.Get("missing"); ok {
		t.Error("expected miss for absent key")
	}
	_, misses, _ := s.Counters()
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
}

func TestSegmentGetExpiredEntryRemovedLazily(t *testing.T) {
	s, tp := newTestSegment(t, 1<<20, PolicyLRU)
	s.Put("key", newEntry([]byte("v"), 1, 0, tp))
	tp.Advance(int64(2e9))

	if _, ok := s.Get("key"); ok {
		t.Fatal("expected expired key to miss")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after lazy removal", s.Len())
	}
}

func TestSegmentPutReportsChangeOnNewKey(t *testing.T) {
	s, tp := newTestSegment(t, 1<<20, PolicyLRU)
	if changed := s.Put("key", newEntry([]byte("v1"), 0, 0, tp)); !changed {
		t.Error("a brand new key must always report changed=true")
	}
}

func TestSegmentPutReportsChangeOnDifferentValue(t *testing.T) {
	s, tp := newTestSegment(t, 1<<20, PolicyLRU)
	s.Put("key", newEntry([]byte("v1"), 0, 0, tp))
	if changed := s.Put("key", newEntry([]byte("v2"), 0, 0, tp)); !changed {
		t.Error("replacing with a different value must report changed=true")
	}
}

func TestSegmentPutReportsNoChangeOnIdenticalValue(t *testing.T) {
	s, tp := newTestSegment(t, 1<<20, PolicyLRU)
	s.Put("key", newEntry([]byte("same"), 0, 0, tp))
	if changed := s.Put("key", newEntry([]byte("same"), 0, 0, tp)); changed {
		t.Error("replacing with an identical value must report changed=false")
	}
}

func TestSegmentPutEvictsUnderMemoryPressure(t *testing.T) {
	// budget fits exactly one small entry plus overhead.
	budget := int64(EntryOverheadBytes + 1)
	s, tp := newTestSegment(t, budget, PolicyLRU)

	s.Put("a", newEntry([]byte("1"), 0, 0, tp))
	tp.Advance(10)
	s.Put("b", newEntry([]byte("2"), 0, 0, tp))

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (a should have been evicted)", s.Len())
	}
	if _, ok := s.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := s.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	_, _, evictions := s.Counters()
	if evictions != 1 {
		t.Errorf("evictions = %d, want 1", evictions)
	}
}

func TestSegmentDelete(t *testing.T) {
	s, tp := newTestSegment(t, 1<<20, PolicyLRU)
	s.Put("key", newEntry([]byte("v"), 0, 0, tp))
	if !s.Delete("key") {
		t.Fatal("expected Delete to report present=true")
	}
	if s.Delete("key") {
		t.Error("expected second Delete to report present=false")
	}
}

func TestSegmentHasDoesNotAffectHitMissCounters(t *testing.T) {
	s, tp := newTestSegment(t, 1<<20, PolicyLRU)
	s.Put("key", newEntry([]byte("v"), 0, 0, tp))
	if !s.Has("key") {
		t.Error("expected Has to report true")
	}
	hits, misses, _ := s.Counters()
	if hits != 0 || misses != 0 {
		t.Errorf("Has must not touch hit/miss counters, got hits=%d misses=%d", hits, misses)
	}
}

func TestSegmentSetTTLRejectsAbsentKey(t *testing.T) {
	s, _ := newTestSegment(t, 1<<20, PolicyLRU)
	if s.SetTTL("missing", 60) {
		t.Error("SetTTL on an absent key must return false")
	}
}

func TestSegmentSetTTLAndTTLRoundTrip(t *testing.T) {
	s, tp := newTestSegment(t, 1<<20, PolicyLRU)
	s.Put("key", newEntry([]byte("v"), 0, 0, tp))

	if !s.SetTTL("key", 60) {
		t.Fatal("expected SetTTL to succeed")
	}
	secs, ok := s.TTL("key")
	if !ok {
		t.Fatal("expected TTL to find key")
	}
	if secs != 60 {
		t.Errorf("TTL = %d, want 60", secs)
	}
}

func TestSegmentTTLNeverExpiring(t *testing.T) {
	s, tp := newTestSegment(t, 1<<20, PolicyLRU)
	s.Put("key", newEntry([]byte("v"), 0, 0, tp))
	secs, ok := s.TTL("key")
	if !ok || secs != -1 {
		t.Errorf("TTL = (%d, %v), want (-1, true)", secs, ok)
	}
}

func TestSegmentTTLMissingKey(t *testing.T) {
	s, _ := newTestSegment(t, 1<<20, PolicyLRU)
	if _, ok := s.TTL("missing"); ok {
		t.Error("expected TTL to report ok=false for missing key")
	}
}

func TestSegmentClear(t *testing.T) {
	s, tp := newTestSegment(t, 1<<20, PolicyLRU)
	s.Put("a", newEntry([]byte("1"), 0, 0, tp))
	s.Put("b", newEntry([]byte("2"), 0, 0, tp))
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after Clear", s.Len())
	}
	if s.MemoryUsed() != 0 {
		t.Errorf("MemoryUsed = %d, want 0 after Clear", s.MemoryUsed())
	}
}

func TestSegmentKeysSnapshot(t *testing.T) {
	s, tp := newTestSegment(t, 1<<20, PolicyLRU)
	s.Put("a", newEntry([]byte("1"), 0, 0, tp))
	s.Put("b", newEntry([]byte("2"), 0, 0, tp))
	keys := s.Keys()
	if len(keys) != 2 {
		t.Fatalf("len(Keys()) = %d, want 2", len(keys))
	}
}

func TestSegmentSweepExpiredRemovesOnlyExpired(t *testing.T) {
	s, tp := newTestSegment(t, 1<<20, PolicyLRU)
	s.Put("expires", newEntry([]byte("1"), 1, 0, tp))
	s.Put("forever", newEntry([]byte("2"), 0, 0, tp))
	tp.Advance(int64(2e9))

	removed := s.sweepExpired(tp.NowWall())
	if len(removed) != 1 || removed[0] != "expires" {
		t.Errorf("sweepExpired removed %v, want [expires]", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestSegmentGetFeedsMetricsCollector(t *testing.T) {
	policy, err := NewEvictionPolicy(PolicyLRU)
	if err != nil {
		t.Fatalf("NewEvictionPolicy: %v", err)
	}
	tp := newFakeTimeProvider(1_000_000_000)
	mc := &recordingMetricsCollector{}
	s := newSegment(1<<20, policy, tp, mc)

	s.Put("key", newEntry([]byte("value"), 0, 0, tp))
	s.Get("key")
	s.Get("missing")

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.gets != 2 {
		t.Errorf("gets = %d, want 2", mc.gets)
	}
	if mc.hits != 1 || mc.misses != 1 {
		t.Errorf("hits=%d misses=%d, want hits=1 misses=1", mc.hits, mc.misses)
	}
	if mc.sets != 1 {
		t.Errorf("sets = %d, want 1 (from Put)", mc.sets)
	}
}

func TestSegmentDeleteFeedsMetricsCollector(t *testing.T) {
	policy, err := NewEvictionPolicy(PolicyLRU)
	if err != nil {
		t.Fatalf("NewEvictionPolicy: %v", err)
	}
	tp := newFakeTimeProvider(1_000_000_000)
	mc := &recordingMetricsCollector{}
	s := newSegment(1<<20, policy, tp, mc)

	s.Put("key", newEntry([]byte("value"), 0, 0, tp))
	s.Delete("key")
	s.Delete("key") // absent now, still counted as a Delete call

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.deletes != 2 {
		t.Errorf("deletes = %d, want 2", mc.deletes)
	}
}
