// store.go: the fixed array of segments and key→segment hashing.
//
// Grounded on other_examples' mahmut-Abi segmented_cache.go for the
// fan-out shape (array of segments, fnv-ish hash then mask) but following
// spec §4.4's explicit two-step spread ("standard string hash XORed with
// its upper half shift — then masked") rather than a bare fnv mod, since
// the spec calls out that naive modulus of unspread hashes produces hot
// segments.
package chronos

import (
	"context"
	"hash/maphash"
	"sync/atomic"
	"time"
)

// Store is a fixed array of Segments. A key always resolves to exactly one
// segment (invariant I4); the total memory budget is split uniformly.
type Store struct {
	segments []*Segment
	mask     uint64
	seed     maphash.Seed

	tp  TimeProvider
	mc  MetricsCollector
	log Logger

	// forgetter, if set, is notified of every key removed by Delete or by
	// the eager expiry sweep, so the TTL controller's volatility history
	// doesn't grow without bound for keys that no longer exist. Held in an
	// atomic.Value since it's wired once at startup but read on every
	// foreground Delete.
	forgetter atomic.Value // VolatilityForgetter

	expirySweepInterval time.Duration
	stopSweep           chan struct{}
	sweepDone           chan struct{}
}

// NewStore builds a Store with cfg.Segments rounded up to the next power of
// two, splitting cfg.MaxMemoryBytes uniformly across segments. A Segments
// value of 0 is first replaced by DefaultSegmentCount in Validate, so it
// yields 256 segments, not 1.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := nextPowerOfTwo(cfg.Segments)
	perSegment := cfg.MaxMemoryBytes / int64(n)
	if perSegment < 1 {
		perSegment = 1
	}

	policy, err := NewEvictionPolicy(cfg.EvictionPolicy)
	if err != nil {
		return nil, err
	}

	st := &Store{
		segments:            make([]*Segment, n),
		mask:                uint64(n - 1),
		seed:                maphash.MakeSeed(),
		tp:                  cfg.TimeProvider,
		mc:                  cfg.MetricsCollector,
		log:                 cfg.Logger,
		expirySweepInterval: cfg.ExpirySweepInterval,
		stopSweep:           make(chan struct{}),
		sweepDone:           make(chan struct{}),
	}
	for i := range st.segments {
		// LRU/LFU are stateless (all state lives on the entry), so every
		// segment safely shares the same policy value.
		st.segments[i] = newSegment(perSegment, policy, st.tp, st.mc)
	}

	if st.expirySweepInterval > 0 {
		go st.runExpirySweep()
	} else {
		close(st.sweepDone)
	}

	return st, nil
}

// segmentFor hashes key and returns its owning segment (spec §4.4).
func (st *Store) segmentFor(key string) *Segment {
	h := maphash.String(st.seed, key)
	spread := h ^ (h >> 32)
	return st.segments[spread&st.mask]
}

// Get retrieves the value for key.
func (st *Store) Get(key string) ([]byte, bool) {
	return st.segmentFor(key).Get(key)
}

// Has reports existence without touching access bookkeeping.
func (st *Store) Has(key string) bool {
	return st.segmentFor(key).Has(key)
}

// Set stores value under key with the given TTL (0 = never) and optional
// compute-cost hint, used by the adaptive TTL controller's benefit term.
// The bool return reports whether the stored content actually changed,
// for callers that feed the TTL controller's volatility estimator.
func (st *Store) Set(key string, value []byte, ttlSeconds int64, computeCostMs int64) bool {
	e := newEntry(value, ttlSeconds, computeCostMs, st.tp)
	return st.segmentFor(key).Put(key, e)
}

// Delete removes key, returning whether it was present.
func (st *Store) Delete(key string) bool {
	removed := st.segmentFor(key).Delete(key)
	if removed {
		st.forgetVolatility(key)
	}
	return removed
}

// SetForgetter wires f to be notified of every key Delete or the eager
// expiry sweep removes, so the TTL controller's per-key volatility history
// (ttl.go) doesn't outlive the key it describes. Optional: a Store with no
// forgetter set simply skips the notification.
func (st *Store) SetForgetter(f VolatilityForgetter) {
	st.forgetter.Store(f)
}

// forgetVolatility notifies the wired VolatilityForgetter, if any, that key
// is gone.
func (st *Store) forgetVolatility(key string) {
	if f, ok := st.forgetter.Load().(VolatilityForgetter); ok && f != nil {
		f.Forget(key)
	}
}

// SetTTL rewrites key's expiration in place.
func (st *Store) SetTTL(key string, ttlSeconds int64) bool {
	return st.segmentFor(key).SetTTL(key, ttlSeconds)
}

// TTL returns the remaining TTL in seconds for key: -1 if it never
// expires, and ok=false if the key is absent or already expired (spec §6:
// "seconds remaining; -1 if no TTL; -2 if missing").
func (st *Store) TTL(key string) (seconds int64, ok bool) {
	return st.segmentFor(key).TTL(key)
}

// Clear empties every segment.
func (st *Store) Clear() {
	for _, seg := range st.segments {
		seg.Clear()
	}
}

// Keys concatenates a weakly-consistent snapshot of every segment's keys.
func (st *Store) Keys() []string {
	var all []string
	for _, seg := range st.segments {
		all = append(all, seg.Keys()...)
	}
	return all
}

// SegmentCount returns N, the number of segments.
func (st *Store) SegmentCount() int { return len(st.segments) }

// Segments exposes the underlying segments for components (TTL controller,
// snapshot codec) that must fan out across all of them.
func (st *Store) Segments() []*Segment { return st.segments }

// StoreStats aggregates fan-out counters across all segments.
type StoreStats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	EntryCount  int64
	MemoryUsed  int64
	MemoryLimit int64
}

// Stats sums per-segment counters (spec §4.4 fan-out op).
func (st *Store) Stats() StoreStats {
	var s StoreStats
	for _, seg := range st.segments {
		h, m, ev := seg.Counters()
		s.Hits += h
		s.Misses += m
		s.Evictions += ev
		s.EntryCount += int64(seg.Len())
		s.MemoryUsed += seg.MemoryUsed()
		s.MemoryLimit += seg.budgetBytes
	}
	return s
}

// runExpirySweep is the single background worker that periodically removes
// expired entries, one segment lock at a time so foreground ops are never
// blocked for longer than a single segment's critical section (spec §4.4).
func (st *Store) runExpirySweep() {
	defer close(st.sweepDone)
	ticker := time.NewTicker(st.expirySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-st.stopSweep:
			return
		case <-ticker.C:
			nowWall := st.tp.NowWall()
			for _, seg := range st.segments {
				removed := seg.sweepExpired(nowWall)
				for _, key := range removed {
					if st.mc != nil {
						st.mc.RecordExpiration()
					}
					st.forgetVolatility(key)
				}
			}
		}
	}
}

// StopExpirySweep halts the background sweep, waiting up to the given
// grace period for it to drain (spec §5: "drains outstanding tasks for up
// to 5s, then cancels").
func (st *Store) StopExpirySweep(ctx context.Context) {
	select {
	case <-st.sweepDone:
		return
	default:
	}
	close(st.stopSweep)
	select {
	case <-st.sweepDone:
	case <-ctx.Done():
	}
}

// nextPowerOfTwo rounds n up to the next power of two; 0 or negative
// becomes 1 (spec boundary behavior).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
