// prefetch.go: statistical predictive prefetcher.
//
// Tracks one bounded window of recent accesses and a first-order
// Markov transition map built from observed key-after-key transitions.
// Once a successor's estimated probability clears the configured
// confidence threshold, it is dispatched to a fixed worker pool that
// fetches it through the configured DataLoader ahead of the client
// actually asking for it (spec §4.5).
//
// The worker pool shape follows MiraiMindz-watt's connection pool
// (pkg/shockwave/client/pool.go): a job channel, a fixed set of
// long-lived goroutines, atomic counters, and a context-aware Stop.
package chronos

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// transitionRow tracks observed successors of one antecedent key: how many
// times each successor followed it, and the total number of observations.
// Bounded to RowCapacity distinct successors; once full, new successors
// are ignored (see record).
type transitionRow struct {
	mu     sync.Mutex
	counts map[string]int64
	total  int64
}

func newTransitionRow() *transitionRow {
	return &transitionRow{counts: make(map[string]int64)}
}

// record adds one observation of successor following this row's key. If
// the row has reached capacity and successor is not an existing target,
// the insert is skipped entirely — existing targets still increment (spec
// §4.5 step 1: "skip that row's insert", not evict to make room).
func (r *transitionRow) record(successor string, capacity int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.counts[successor]; !exists && len(r.counts) >= capacity {
		return
	}
	r.counts[successor]++
	r.total++
}

// topN returns up to n successors whose observed probability is >= threshold,
// ranked by probability descending.
func (r *transitionRow) topN(n int, threshold float64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.total == 0 {
		return nil
	}
	type candidate struct {
		key  string
		prob float64
	}
	candidates := make([]candidate, 0, len(r.counts))
	for k, c := range r.counts {
		p := float64(c) / float64(r.total)
		if p >= threshold {
			candidates = append(candidates, candidate{k, p})
		}
	}
	// Simple insertion sort: rows are bounded to RowCapacity (small), so
	// this never runs on more than a few dozen candidates.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].prob > candidates[j-1].prob; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.key
	}
	return out
}

// pendingPrediction records when a key was dispatched as a prediction, so a
// subsequent real Get within PredictionExpiry can be scored as a hit.
type pendingPrediction struct {
	dispatchedAt time.Time
}

// prefetchJob is one unit of work for the worker pool: fetch key via the
// DataLoader and, if found, store it.
type prefetchJob struct {
	key string
}

// Prefetcher observes Store accesses, builds a transition map, and
// dispatches high-confidence predictions to a DataLoader ahead of demand.
type Prefetcher struct {
	store  *Store
	loader DataLoader
	tp     TimeProvider
	mc     MetricsCollector
	log    Logger

	// cfgMu guards cfg: HotConfig pushes ConfidenceThreshold/TopN updates
	// into an already-running prefetcher (spec §10.3).
	cfgMu sync.RWMutex
	cfg   PrefetchConfig

	recentMu sync.Mutex
	recent   []string // bounded to cfg.Window, most recent last

	rowsMu sync.RWMutex
	rows   map[string]*transitionRow

	pendingMu sync.Mutex
	pending   map[string]pendingPrediction

	predictionsMade int64 // atomic
	predictionsHit  int64 // atomic

	jobs chan prefetchJob
	wg   sync.WaitGroup
	stop chan struct{}
}

// NewPrefetcher builds a Prefetcher over store using cfg. Returns an error
// if cfg.Enabled but no Loader is configured.
func NewPrefetcher(store *Store, cfg PrefetchConfig, tp TimeProvider, mc MetricsCollector, log Logger) (*Prefetcher, error) {
	if cfg.Enabled && cfg.Loader == nil {
		return nil, NewErrBackendUnavailable("", nil)
	}
	if log == nil {
		log = NoOpLogger{}
	}
	p := &Prefetcher{
		store:   store,
		loader:  cfg.Loader,
		cfg:     cfg,
		tp:      tp,
		mc:      mc,
		log:     log,
		rows:    make(map[string]*transitionRow),
		pending: make(map[string]pendingPrediction),
		jobs:    make(chan prefetchJob, cfg.Workers*4),
		stop:    make(chan struct{}),
	}
	if cfg.Enabled {
		p.startWorkers()
	}
	return p, nil
}

func (p *Prefetcher) startWorkers() {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Prefetcher) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.runJob(job)
		}
	}
}

func (p *Prefetcher) runJob(job prefetchJob) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("prefetch worker panic recovered", "key", job.key, "panic", r)
		}
	}()
	if p.store.Has(job.key) {
		return // already cached, nothing to do
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	value, found, err := p.loader.Load(ctx, job.key)
	if err != nil {
		p.log.Warn("prefetch load failed", "key", job.key, "error", err)
		return
	}
	if !found {
		return
	}
	p.store.Set(job.key, value, DefaultTTLBaseSeconds, 0)
}

// RecordAccess observes an access to key (spec §4.5 step 1): every
// key currently in the bounded recent window gets a transition recorded
// toward key, key is appended to the window (trimmed to Window), and
// key's own likely successors are predicted and dispatched. Also scores
// any pending prediction for key as a hit if it arrives within
// PredictionExpiry, and piggy-backs the periodic expiry of stale
// predictions (step 5). It is not told whether the access was a cache
// hit: a pending prediction is scored on any call for key, including a
// GET that missed or a SET.
func (p *Prefetcher) RecordAccess(key string) {
	if !p.cfg.Enabled {
		return
	}
	p.scorePending(key)
	p.expireStalePredictions()

	p.recentMu.Lock()
	snapshot := make([]string, len(p.recent))
	copy(snapshot, p.recent)
	p.recent = append(p.recent, key)
	if len(p.recent) > p.cfg.Window {
		p.recent = p.recent[len(p.recent)-p.cfg.Window:]
	}
	p.recentMu.Unlock()

	for _, prev := range snapshot {
		if prev != key {
			p.rowFor(prev).record(key, p.cfg.RowCapacity)
		}
	}

	p.predictAndDispatch(key)
}

// expireStalePredictions drops predicted-but-never-confirmed entries older
// than PredictionExpiry, so stale dispatches never accumulate in pending
// (spec §4.5 step 5).
func (p *Prefetcher) expireStalePredictions() {
	cutoff := p.tp.NowWall() - int64(p.cfg.PredictionExpiry)
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	for k, pred := range p.pending {
		if pred.dispatchedAt.UnixNano() < cutoff {
			delete(p.pending, k)
		}
	}
}

func (p *Prefetcher) scorePending(key string) {
	p.pendingMu.Lock()
	pred, ok := p.pending[key]
	if ok {
		delete(p.pending, key)
	}
	p.pendingMu.Unlock()
	if !ok {
		return
	}
	if p.tp.NowWall()-pred.dispatchedAt.UnixNano() <= int64(p.cfg.PredictionExpiry) {
		atomic.AddInt64(&p.predictionsHit, 1)
		if p.mc != nil {
			p.mc.RecordPrefetchHit()
		}
	}
}

func (p *Prefetcher) rowFor(key string) *transitionRow {
	p.rowsMu.RLock()
	row, ok := p.rows[key]
	p.rowsMu.RUnlock()
	if ok {
		return row
	}
	p.rowsMu.Lock()
	defer p.rowsMu.Unlock()
	if row, ok := p.rows[key]; ok {
		return row
	}
	row = newTransitionRow()
	p.rows[key] = row
	return row
}

func (p *Prefetcher) predictAndDispatch(key string) {
	row := p.rowFor(key)
	p.cfgMu.RLock()
	topN, threshold := p.cfg.TopN, p.cfg.ConfidenceThreshold
	p.cfgMu.RUnlock()
	predicted := row.topN(topN, threshold)
	now := time.Unix(0, p.tp.NowWall())
	for _, successor := range predicted {
		if p.store.Has(successor) {
			continue
		}
		select {
		case p.jobs <- prefetchJob{key: successor}:
			// Dispatched: charge accuracy and stamp `predicted` exactly once
			// per dispatch (spec §4.5 step 3/4), regardless of how the load
			// eventually turns out.
			atomic.AddInt64(&p.predictionsMade, 1)
			p.pendingMu.Lock()
			p.pending[successor] = pendingPrediction{dispatchedAt: now}
			p.pendingMu.Unlock()
			if p.mc != nil {
				p.mc.RecordPrefetchDispatch()
			}
		default:
			// Pool saturated; drop the prediction rather than block the
			// foreground access path that called RecordAccess.
		}
	}
}

// UpdateTuning atomically swaps the confidence threshold and topN used by
// the prediction-dispatch step, so HotConfig can push a reloaded
// configuration file into an already-running prefetcher (spec §10.3).
func (p *Prefetcher) UpdateTuning(confidenceThreshold float64, topN int) {
	p.cfgMu.Lock()
	p.cfg.ConfidenceThreshold = confidenceThreshold
	p.cfg.TopN = topN
	p.cfgMu.Unlock()
}

// Accuracy returns (predictionsMade, predictionsHit) lifetime counters.
func (p *Prefetcher) Accuracy() (made, hit int64) {
	return atomic.LoadInt64(&p.predictionsMade), atomic.LoadInt64(&p.predictionsHit)
}

// AccuracyRatio returns predictionsHit / max(1, predictionsMade) (spec §4.5).
func (p *Prefetcher) AccuracyRatio() float64 {
	made, hit := p.Accuracy()
	if made < 1 {
		made = 1
	}
	return float64(hit) / float64(made)
}

// Stop halts the worker pool, waiting for in-flight jobs to finish.
func (p *Prefetcher) Stop() {
	if !p.cfg.Enabled {
		return
	}
	close(p.stop)
	close(p.jobs)
	p.wg.Wait()
}
