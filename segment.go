// segment.go: one lock-striped partition of the Store.
//
// Grounded on other_examples' mahmut-Abi segmented_cache.go (a
// sync.RWMutex-guarded map per segment, found via fnv hashing) combined
// with the teacher's accounting discipline: size_bytes deltas are computed
// once and applied exactly (spec §4.3 step 3 — "this closes a subtle
// double-accounting bug present in naive implementations").
package chronos

import (
	"sync"
	"sync/atomic"
)

// Segment is one striped partition: a table guarded by its own RWMutex, a
// memory budget, and monotonic counters. A key resolves to exactly one
// Segment (spec invariant I4).
type Segment struct {
	mu     sync.RWMutex
	table  map[string]*entry
	policy EvictionPolicy
	tp     TimeProvider
	stats  MetricsCollector

	budgetBytes int64 // immutable
	memoryUsed  int64 // atomic; Σ size_bytes for entries in table

	hits      int64 // atomic
	misses    int64 // atomic
	evictions int64 // atomic
}

// newSegment constructs an empty Segment with the given budget and policy.
func newSegment(budgetBytes int64, policy EvictionPolicy, tp TimeProvider, mc MetricsCollector) *Segment {
	return &Segment{
		table:       make(map[string]*entry),
		policy:      policy,
		tp:          tp,
		stats:       mc,
		budgetBytes: budgetBytes,
	}
}

// Get returns the value for key if present and unexpired, recording a
// hit/miss and touching the entry's access bookkeeping. Expiry discovered
// under the read lock is handled by re-acquiring the write lock to
// physically remove the entry before returning (spec §4.3: "the removal
// must be deferred... re-acquire the write lock to physically remove").
func (s *Segment) Get(key string) ([]byte, bool) {
	start := s.tp.NowMono()
	nowWall := s.tp.NowWall()

	s.mu.RLock()
	e, ok := s.table[key]
	if !ok {
		s.mu.RUnlock()
		atomic.AddInt64(&s.misses, 1)
		s.recordGet(start, false)
		return nil, false
	}
	if e.isExpired(nowWall) {
		s.mu.RUnlock()
		s.removeIfExpired(key, nowWall)
		atomic.AddInt64(&s.misses, 1)
		s.recordGet(start, false)
		return nil, false
	}
	value := e.value
	s.mu.RUnlock()

	s.policy.OnAccess(key, e)
	e.touch(s.tp.NowMono())
	atomic.AddInt64(&s.hits, 1)
	s.recordGet(start, true)
	return value, true
}

// recordGet reports this Get's latency (nanoseconds elapsed since start,
// per the monotonic clock) and hit/miss outcome to the configured
// MetricsCollector, so the health scorer and /stats endpoint (spec §4.8)
// see real traffic instead of a permanently-zero snapshot.
func (s *Segment) recordGet(start int64, hit bool) {
	if s.stats != nil {
		s.stats.RecordGet(s.tp.NowMono()-start, hit)
	}
}

// removeIfExpired re-checks and removes key under the write lock. Another
// goroutine may have already removed or replaced it between the read-lock
// release and this call; both outcomes are safe (re-establishes I1).
func (s *Segment) removeIfExpired(key string, nowWall int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.table[key]
	if !ok || !e.isExpired(nowWall) {
		return
	}
	delete(s.table, key)
	atomic.AddInt64(&s.memoryUsed, -e.sizeBytes)
	s.policy.OnRemove(key)
}

// Put inserts or replaces key. The memory delta is computed once — the
// existing entry's size is subtracted only if key was already present —
// and applied exactly once (spec §4.3 step 3), avoiding the double-
// accounting bug spec §9 calls out in naive ports.
//
// The bool return reports whether the stored value's content actually
// changed (always true for a new key; for a replacement, true only if the
// FNV-1a value hash differs), so callers can feed the TTL controller's
// volatility estimator (spec §4.6: "recordChange ... whenever the new
// value's hash differs from the previous one").
func (s *Segment) Put(key string, e *entry) bool {
	start := s.tp.NowMono()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if s.stats != nil {
			s.stats.RecordSet(s.tp.NowMono() - start)
		}
	}()

	existing, replacing := s.table[key]
	changed := !replacing || existing.valueHash != e.valueHash
	var required int64
	if replacing {
		required = e.sizeBytes - existing.sizeBytes
	} else {
		required = e.sizeBytes
	}

	for atomic.LoadInt64(&s.memoryUsed)+required > s.budgetBytes && len(s.table) > 0 {
		if !s.evictOneLocked() {
			break
		}
		// Recompute in case the victim was the key we're about to replace.
		if replacing {
			if _, stillThere := s.table[key]; !stillThere {
				replacing = false
				required = e.sizeBytes
			}
		}
	}

	s.table[key] = e
	atomic.AddInt64(&s.memoryUsed, required)

	if replacing {
		s.policy.OnRemove(key)
	}
	s.policy.OnInsert(key, e)
	return changed
}

// Delete removes key, returning whether it was present.
func (s *Segment) Delete(key string) bool {
	start := s.tp.NowMono()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if s.stats != nil {
			s.stats.RecordDelete(s.tp.NowMono() - start)
		}
	}()
	e, ok := s.table[key]
	if !ok {
		return false
	}
	delete(s.table, key)
	atomic.AddInt64(&s.memoryUsed, -e.sizeBytes)
	s.policy.OnRemove(key)
	return true
}

// Has reports whether key is present and unexpired, without bookkeeping a
// hit/miss or touching access state — used by the prefetcher's cheap
// existence probe (spec §4.5 step 3).
func (s *Segment) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.table[key]
	if !ok {
		return false
	}
	return !e.isExpired(s.tp.NowWall())
}

// SetTTL rewrites the expiration of an existing, unexpired key. Used by the
// TTL controller's rewrite pass. Returns false if the key is absent or
// already expired.
func (s *Segment) SetTTL(key string, ttlSeconds int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.table[key]
	if !ok || e.isExpired(s.tp.NowWall()) {
		return false
	}
	e.setTTL(ttlSeconds, s.tp)
	return true
}

// TTL returns the remaining TTL in seconds for key: -1 if it never
// expires, and ok=false if the key is absent or already expired.
func (s *Segment) TTL(key string) (seconds int64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, present := s.table[key]
	if !present || e.isExpired(s.tp.NowWall()) {
		return 0, false
	}
	return e.ttlRemainingSeconds(s.tp.NowWall()), true
}

// Clear drops every entry.
func (s *Segment) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = make(map[string]*entry)
	atomic.StoreInt64(&s.memoryUsed, 0)
}

// Len returns the current entry count (weakly consistent w.r.t. concurrent
// writers, since it takes only the read lock momentarily).
func (s *Segment) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.table)
}

// MemoryUsed returns the current tracked memory usage.
func (s *Segment) MemoryUsed() int64 { return atomic.LoadInt64(&s.memoryUsed) }

// Counters returns (hits, misses, evictions).
func (s *Segment) Counters() (hits, misses, evictions int64) {
	return atomic.LoadInt64(&s.hits), atomic.LoadInt64(&s.misses), atomic.LoadInt64(&s.evictions)
}

// Keys returns a snapshot of the keys currently in the segment (spec §4.4:
// "weakly consistent").
func (s *Segment) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.table))
	for k := range s.table {
		keys = append(keys, k)
	}
	return keys
}

// snapshotEntries returns (key, value, ttlRemainingSeconds) triples for
// every live entry, for the SnapshotCodec's weakly-consistent write pass.
func (s *Segment) snapshotEntries() []snapshotEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nowWall := s.tp.NowWall()
	out := make([]snapshotEntry, 0, len(s.table))
	for k, e := range s.table {
		if e.isExpired(nowWall) {
			continue
		}
		out = append(out, snapshotEntry{
			key:       k,
			value:     e.value,
			ttlRemSec: e.ttlRemainingSeconds(nowWall),
		})
	}
	return out
}

// sweepExpired removes every expired entry under the write lock, for the
// Store's periodic expiry sweep (spec §4.4). Returns the removed keys.
func (s *Segment) sweepExpired(nowWall int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for k, e := range s.table {
		if e.isExpired(nowWall) {
			delete(s.table, k)
			atomic.AddInt64(&s.memoryUsed, -e.sizeBytes)
			s.policy.OnRemove(k)
			removed = append(removed, k)
		}
	}
	return removed
}

// evictOneLocked evicts a single victim. Caller must hold the write lock.
// Returns false if the table was already empty.
func (s *Segment) evictOneLocked() bool {
	victim := s.policy.SelectVictim(s.table)
	if victim == "" {
		return false
	}
	e := s.table[victim]
	delete(s.table, victim)
	atomic.AddInt64(&s.memoryUsed, -e.sizeBytes)
	atomic.AddInt64(&s.evictions, 1)
	s.policy.OnRemove(victim)
	if s.stats != nil {
		s.stats.RecordEviction()
	}
	return true
}

// snapshotEntry is the in-memory shape handed to the snapshot codec.
type snapshotEntry struct {
	key       string
	value     []byte
	ttlRemSec int64
}

// ttlSnapshotRow is the in-memory shape handed to the TTL controller's
// periodic rewrite pass: everything its cost-benefit formula needs, read
// once under the read lock.
type ttlSnapshotRow struct {
	key             string
	accessesPerHour float64
	sizeBytes       int64
	computeCostMs   int64
	currentTTL      int64 // remaining TTL in seconds, or -1 if never-expiring
}

// ttlSnapshot returns a weakly-consistent snapshot of every live entry's
// TTL-relevant fields, for the TTLController's rewrite pass.
func (s *Segment) ttlSnapshot(nowMono, nowWall int64) []ttlSnapshotRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ttlSnapshotRow, 0, len(s.table))
	for k, e := range s.table {
		if e.isExpired(nowWall) {
			continue
		}
		out = append(out, ttlSnapshotRow{
			key:             k,
			accessesPerHour: e.accessesPerHour(nowMono),
			sizeBytes:       e.sizeBytes,
			computeCostMs:   e.computeCostMs,
			currentTTL:      e.ttlRemainingSeconds(nowWall),
		})
	}
	return out
}
