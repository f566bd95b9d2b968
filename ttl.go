// ttl.go: volatility estimation and the adaptive TTL controller.
//
// Grounded on the segment/store accounting discipline already established
// in segment.go: the controller never holds a segment lock longer than one
// SetTTL call, and its periodic sweep walks segments the same way the
// Store's expiry sweep does (spec §4.4, §4.6).
package chronos

import (
	"sync"
	"time"
)

// volatilityEstimator tracks a bounded history of change timestamps per key,
// used to estimate how often a key's value actually changes (spec §4.6).
type volatilityEstimator struct {
	mu      sync.Mutex
	history map[string][]int64 // wall-clock nanoseconds, oldest first
	cap     int
}

func newVolatilityEstimator(capacity int) *volatilityEstimator {
	return &volatilityEstimator{
		history: make(map[string][]int64),
		cap:     capacity,
	}
}

// recordChange appends nowWall to key's history, evicting the oldest
// timestamp once the bounded history is full.
func (v *volatilityEstimator) recordChange(key string, nowWall int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	h := v.history[key]
	h = append(h, nowWall)
	if len(h) > v.cap {
		h = h[len(h)-v.cap:]
	}
	v.history[key] = h
}

// estimate returns the volatility for key: 3,600,000 / max(1, mean
// inter-arrival time in ms), or 0.5 for keys with fewer than two samples
// (spec §4.6 default-unknown case).
func (v *volatilityEstimator) estimate(key string) float64 {
	v.mu.Lock()
	h := v.history[key]
	v.mu.Unlock()

	if len(h) < 2 {
		return 0.5
	}
	totalMs := float64(h[len(h)-1]-h[0]) / 1e6
	intervals := float64(len(h) - 1)
	meanInterArrivalMs := totalMs / intervals
	if meanInterArrivalMs < 1 {
		meanInterArrivalMs = 1
	}
	return 3_600_000 / meanInterArrivalMs
}

// forget drops key's history, called when a key is deleted or expires.
func (v *volatilityEstimator) forget(key string) {
	v.mu.Lock()
	delete(v.history, key)
	v.mu.Unlock()
}

// TTLController periodically rewrites each live key's TTL from a
// cost-benefit estimate of access frequency, size, and observed volatility,
// subject to a deadband that suppresses rewrites from small re-estimates
// (spec §4.6).
type TTLController struct {
	store *Store
	tp    TimeProvider
	vol   *volatilityEstimator

	// cfgMu guards cfg: HotConfig pushes Deadband/RewriteInterval updates
	// into a running controller (spec §10.3), so every field read by the
	// rewrite pass must go through it.
	cfgMu sync.RWMutex
	cfg   TTLConfig

	stop chan struct{}
	done chan struct{}
}

// NewTTLController builds a controller over store. Call Start to begin the
// periodic rewrite pass.
func NewTTLController(store *Store, cfg TTLConfig, tp TimeProvider) *TTLController {
	return &TTLController{
		store: store,
		cfg:   cfg,
		tp:    tp,
		vol:   newVolatilityEstimator(cfg.History),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// ObserveChange records that key's value changed at the current time,
// feeding the volatility estimate. Call this from the SET path whenever the
// new value's hash differs from the previous one.
func (c *TTLController) ObserveChange(key string) {
	c.cfgMu.RLock()
	enabled := c.cfg.Enabled
	c.cfgMu.RUnlock()
	if !enabled {
		return
	}
	c.vol.recordChange(key, c.tp.NowWall())
}

// Forget drops key's volatility history (on delete or expiry).
func (c *TTLController) Forget(key string) {
	c.vol.forget(key)
}

// Start launches the periodic rewrite pass. No-op if TTL is disabled.
func (c *TTLController) Start() {
	c.cfgMu.RLock()
	enabled := c.cfg.Enabled
	c.cfgMu.RUnlock()
	if !enabled {
		close(c.done)
		return
	}
	go c.run()
}

func (c *TTLController) run() {
	defer close(c.done)
	timer := time.NewTimer(c.rewriteInterval())
	defer timer.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-timer.C:
			c.rewriteAll()
			// Re-read the interval on every tick rather than capturing it
			// once, so a hot-reloaded RewriteInterval takes effect on the
			// controller's very next sweep instead of requiring a restart.
			timer.Reset(c.rewriteInterval())
		}
	}
}

func (c *TTLController) rewriteInterval() time.Duration {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg.RewriteInterval
}

// rewriteAll sweeps every segment, recomputing and conditionally rewriting
// each live key's TTL.
func (c *TTLController) rewriteAll() {
	nowMono := c.tp.NowMono()
	nowWall := c.tp.NowWall()
	for _, seg := range c.store.Segments() {
		for _, row := range seg.ttlSnapshot(nowMono, nowWall) {
			c.maybeRewrite(row.key, row.accessesPerHour, row.sizeBytes, row.computeCostMs, row.currentTTL)
		}
	}
}

// maybeRewrite computes the cost-benefit target TTL for one key and applies
// it only if it differs from currentTTL by more than the deadband fraction
// (spec §4.6: "target_ttl_s = 3600 * multiplier", "deadband-gated rewrite").
func (c *TTLController) maybeRewrite(key string, accessesPerHour float64, sizeBytes, computeCostMs, currentTTL int64) {
	if currentTTL < 0 {
		return // never expires; the controller does not impose a TTL
	}
	c.cfgMu.RLock()
	minMultiplier, maxMultiplier := c.cfg.MinMultiplier, c.cfg.MaxMultiplier
	baseSeconds, deadband := c.cfg.BaseSeconds, c.cfg.Deadband
	c.cfgMu.RUnlock()

	volatility := c.vol.estimate(key)
	benefit := accessesPerHour * maxFloat(1, float64(computeCostMs))
	cost := float64(sizeBytes) * maxFloat(1e-6, volatility)
	multiplier := benefit / maxFloat(1, cost)
	if multiplier < minMultiplier {
		multiplier = minMultiplier
	}
	if multiplier > maxMultiplier {
		multiplier = maxMultiplier
	}
	targetTTL := int64(float64(baseSeconds) * multiplier)

	if currentTTL == 0 {
		currentTTL = baseSeconds
	}
	delta := absInt64(targetTTL - currentTTL)
	if float64(delta) <= deadband*float64(currentTTL) {
		return // within deadband, skip the rewrite
	}
	c.store.SetTTL(key, targetTTL)
}

// UpdateTuning atomically swaps the deadband and rewrite interval consumed
// by the periodic rewrite pass, so HotConfig can push a reloaded
// configuration file into an already-running controller (spec §10.3)
// without restarting it.
func (c *TTLController) UpdateTuning(deadband float64, rewriteInterval time.Duration) {
	c.cfgMu.Lock()
	c.cfg.Deadband = deadband
	c.cfg.RewriteInterval = rewriteInterval
	c.cfgMu.Unlock()
}

// Stop halts the periodic rewrite pass.
func (c *TTLController) Stop() {
	select {
	case <-c.done:
		return
	default:
	}
	close(c.stop)
	<-c.done
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
