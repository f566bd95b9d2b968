package chronos

import "sync/atomic"

// fakeTimeProvider gives tests full control over both clocks, following the
// teacher's MockTimeProvider pattern (a single advanceable counter) but
// split across NowMono/NowWall since chronos distinguishes the two.
type fakeTimeProvider struct {
	mono int64
	wall int64
}

func newFakeTimeProvider(startNs int64) *fakeTimeProvider {
	return &fakeTimeProvider{mono: startNs, wall: startNs}
}

func (f *fakeTimeProvider) NowMono() int64 { return atomic.LoadInt64(&f.mono) }
func (f *fakeTimeProvider) NowWall() int64 { return atomic.LoadInt64(&f.wall) }

func (f *fakeTimeProvider) Advance(deltaNs int64) {
	atomic.AddInt64(&f.mono, deltaNs)
	atomic.AddInt64(&f.wall, deltaNs)
}
