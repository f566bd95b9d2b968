// warming.go: bulk cache warming.
//
// Distinct from the predictive Prefetcher (prefetch.go): warming loads an
// explicit, caller-supplied key list through the DataLoader ahead of
// traffic — typically at process startup, from a list the operator knows
// matters (spec §5: "one fixed-size pool for prefetch (default 4), one
// for warming (same size)"). Same worker-pool shape as the prefetcher,
// grounded on the same MiraiMindz-watt connection-pool pattern, but with
// no transition tracking or confidence scoring: every requested key is
// dispatched.
package chronos

import (
	"context"
	"sync"
	"time"
)

// Warmer loads a fixed, caller-specified set of keys into a Store through
// a DataLoader, using a bounded worker pool so a large warm list cannot
// stampede the backing store.
type Warmer struct {
	store   *Store
	loader  DataLoader
	workers int
	log     Logger
}

// NewWarmer builds a Warmer. workers <= 0 defaults to
// DefaultPrefetchWorkers, matching the prefetch pool's default size per
// spec §5.
func NewWarmer(store *Store, loader DataLoader, workers int, log Logger) *Warmer {
	if workers <= 0 {
		workers = DefaultPrefetchWorkers
	}
	if log == nil {
		log = NoOpLogger{}
	}
	return &Warmer{store: store, loader: loader, workers: workers, log: log}
}

// WarmResult reports the outcome of a Warm call.
type WarmResult struct {
	Requested int
	Loaded    int
	Skipped   int // already present in the store, or not found by the loader
	Failed    int
}

// Warm loads every key in keys not already present in the store, fanning
// out across the worker pool, and blocks until every key has been
// attempted or ctx is done. Per-key load errors are logged and counted in
// Failed, never returned — a warm pass is best-effort by design.
func (w *Warmer) Warm(ctx context.Context, keys []string) WarmResult {
	result := WarmResult{Requested: len(keys)}
	if len(keys) == 0 {
		return result
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for key := range jobs {
			if w.store.Has(key) {
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				continue
			}
			loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			value, found, err := w.loader.Load(loadCtx, key)
			cancel()
			if err != nil {
				w.log.Warn("warm load failed", "key", key, "error", err)
				mu.Lock()
				result.Failed++
				mu.Unlock()
				continue
			}
			if !found {
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				continue
			}
			w.store.Set(key, value, DefaultTTLBaseSeconds, 0)
			mu.Lock()
			result.Loaded++
			mu.Unlock()
		}
	}

	wg.Add(w.workers)
	for i := 0; i < w.workers; i++ {
		go worker()
	}

feed:
	for _, key := range keys {
		select {
		case jobs <- key:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return result
}
