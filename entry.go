// entry.go: a single cache entry and its access bookkeeping.
//
// Field ordering follows the teacher's convention of putting 64-bit atomic
// fields first for alignment on 32-bit architectures, even though chronos
// entries live behind a segment RWMutex rather than the teacher's lock-free
// table — touch() still updates last_access/access_count with atomics so it
// can be called from a read-locked Get without upgrading to the write lock.
package chronos

import "sync/atomic"

// neverExpire is the expires_at_wall sentinel for TTL == 0 ("never").
const neverExpire int64 = 0

// entry holds a value plus the metadata spec.md §3 assigns to it. An entry
// is owned by exactly one Segment for its whole lifetime.
type entry struct {
	createdAtMono  int64 // monotonic instant at construction
	expiresAtWall  int64 // wall-clock deadline, or neverExpire
	lastAccessMono int64 // atomic: last successful read
	accessCount    int64 // atomic: monotonically non-decreasing

	value         []byte
	valueHash     uint32 // fnv-1a style rolling hash of value, feeds volatility
	computeCostMs int64
	sizeBytes     int64 // immutable once set: EntryOverheadBytes + len(value)
}

// newEntry constructs an entry. ttlSeconds == 0 means "never expires".
func newEntry(value []byte, ttlSeconds int64, computeCostMs int64, tp TimeProvider) *entry {
	now := tp.NowMono()
	e := &entry{
		createdAtMono:  now,
		lastAccessMono: now,
		value:          value,
		valueHash:      hashValue(value),
		computeCostMs:  computeCostMs,
		sizeBytes:      int64(EntryOverheadBytes + len(value)),
	}
	if ttlSeconds > 0 {
		e.expiresAtWall = tp.NowWall() + ttlSeconds*1e9
	} else {
		e.expiresAtWall = neverExpire
	}
	return e
}

// isExpired reports whether nowWall is strictly past the deadline. Ties do
// not expire (spec §4.1). Entries with expiresAtWall == neverExpire never
// expire.
func (e *entry) isExpired(nowWall int64) bool {
	if e.expiresAtWall == neverExpire {
		return false
	}
	return nowWall > e.expiresAtWall
}

// touch records an access. May be called while only the segment read lock
// is held; both fields are updated atomically so concurrent touches never
// tear.
func (e *entry) touch(nowMono int64) {
	atomic.StoreInt64(&e.lastAccessMono, nowMono)
	atomic.AddInt64(&e.accessCount, 1)
}

// setTTL rewrites the expiration deadline. Requires the segment write lock.
func (e *entry) setTTL(ttlSeconds int64, tp TimeProvider) {
	if ttlSeconds <= 0 {
		e.expiresAtWall = neverExpire
		return
	}
	e.expiresAtWall = tp.NowWall() + ttlSeconds*1e9
}

// ttlRemainingSeconds returns the remaining TTL in seconds, with a partial
// second rounded up, or -1 if the entry never expires, as of nowWall.
func (e *entry) ttlRemainingSeconds(nowWall int64) int64 {
	if e.expiresAtWall == neverExpire {
		return -1
	}
	remaining := (e.expiresAtWall - nowWall + 1e9 - 1) / 1e9
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// accessesPerHour implements spec §4.1: (access_count / max(1, age_ms)) * 3.6e6.
func (e *entry) accessesPerHour(nowMono int64) float64 {
	ageMs := float64(nowMono-e.createdAtMono) / 1e6
	if ageMs < 1 {
		ageMs = 1
	}
	count := float64(atomic.LoadInt64(&e.accessCount))
	return (count / ageMs) * 3_600_000
}

func (e *entry) loadAccessCount() int64    { return atomic.LoadInt64(&e.accessCount) }
func (e *entry) loadLastAccessMono() int64 { return atomic.LoadInt64(&e.lastAccessMono) }

// hashValue computes a 32-bit FNV-1a hash of value, used to detect changes
// across replacements for the volatility estimator.
func hashValue(value []byte) uint32 {
	const (
		offsetBasis uint32 = 2166136261
		prime       uint32 = 16777619
	)
	h := offsetBasis
	for _, b := range value {
		h ^= uint32(b)
		h *= prime
	}
	return h
}
