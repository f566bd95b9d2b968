package chronos

import "testing"

func TestNewEntryNeverExpiresWhenTTLZero(t *testing.T) {
	tp := newFakeTimeProvider(1_000_000_000)
	e := newEntry([]byte("v"), 0, 0, tp)
	if e.expiresAtWall != neverExpire {
		t.Errorf("expiresAtWall = %d, want neverExpire", e.expiresAtWall)
	}
	if e.isExpired(tp.NowWall() + int64(1e18)) {
		t.Error("entry with ttlSeconds=0 must never expire")
	}
}

func TestNewEntryComputesDeadline(t *testing.T) {
	tp := newFakeTimeProvider(1_000_000_000)
	e := newEntry([]byte("v"), 10, 0, tp)
	want := tp.NowWall() + 10*1e9
	if e.expiresAtWall != want {
		t.Errorf("expiresAtWall = %d, want %d", e.expiresAtWall, want)
	}
}

func TestIsExpiredTieDoesNotExpire(t *testing.T) {
	tp := newFakeTimeProvider(0)
	e := newEntry([]byte("v"), 10, 0, tp)
	if e.isExpired(e.expiresAtWall) {
		t.Error("a deadline equal to now must not be considered expired")
	}
	if !e.isExpired(e.expiresAtWall + 1) {
		t.Error("one ns past the deadline must be expired")
	}
}

func TestTouchUpdatesAccessBookkeeping(t *testing.T) {
	tp := newFakeTimeProvider(0)
	e := newEntry([]byte("v"), 0, 0, tp)
	tp.Advance(5_000_000)
	e.touch(tp.NowMono())
	if e.loadAccessCount() != 1 {
		t.Errorf("accessCount = %d, want 1", e.loadAccessCount())
	}
	if e.loadLastAccessMono() != tp.NowMono() {
		t.Errorf("lastAccessMono = %d, want %d", e.loadLastAccessMono(), tp.NowMono())
	}
}

func TestSetTTLNeverExpireOnNonPositive(t *testing.T) {
	tp := newFakeTimeProvider(0)
	e := newEntry([]byte("v"), 100, 0, tp)
	e.setTTL(0, tp)
	if e.expiresAtWall != neverExpire {
		t.Error("setTTL(0, ...) must clear expiration")
	}
	e.setTTL(-5, tp)
	if e.expiresAtWall != neverExpire {
		t.Error("setTTL(negative, ...) must clear expiration")
	}
}

func TestTTLRemainingSecondsNeverExpiring(t *testing.T) {
	tp := newFakeTimeProvider(0)
	e := newEntry([]byte("v"), 0, 0, tp)
	if got := e.ttlRemainingSeconds(tp.NowWall()); got != -1 {
		t.Errorf("ttlRemainingSeconds = %d, want -1", got)
	}
}

func TestTTLRemainingSecondsClampsAtZero(t *testing.T) {
	tp := newFakeTimeProvider(0)
	e := newEntry([]byte("v"), 1, 0, tp)
	if got := e.ttlRemainingSeconds(tp.NowWall() + int64(5e9)); got != 0 {
		t.Errorf("ttlRemainingSeconds past deadline = %d, want 0", got)
	}
}

func TestAccessesPerHour(t *testing.T) {
	tp := newFakeTimeProvider(0)
	e := newEntry([]byte("v"), 0, 0, tp)
	tp.Advance(3_600_000_000) // 3600ms (3.6s) in mono ns
	for i := 0; i < 10; i++ {
		e.touch(tp.NowMono())
	}
	got := e.accessesPerHour(tp.NowMono())
	if got <= 0 {
		t.Errorf("accessesPerHour = %v, want > 0", got)
	}
}

func TestHashValueDeterministicAndSensitive(t *testing.T) {
	a := hashValue([]byte("hello"))
	b := hashValue([]byte("hello"))
	c := hashValue([]byte("hellp"))
	if a != b {
		t.Error("hashValue must be deterministic for equal inputs")
	}
	if a == c {
		t.Error("hashValue must differ for different inputs (collisions aside)")
	}
}
