// config.go: configuration for the chronos cache engine.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
//
// Structure follows the teacher's Config/Validate/DefaultConfig trio
// (normalize-don't-reject defaults), expanded with the prefetch/ttl/
// snapshot/health sub-configs spec §6 enumerates.
package chronos

import (
	"time"

	"github.com/agilira/go-timecache"
)

const (
	// DefaultSegmentCount is applied when Config.Segments is 0.
	DefaultSegmentCount = DefaultSegments

	// DefaultExpirySweepInterval is how often the Store's background worker
	// sweeps expired entries (spec §4.4).
	DefaultExpirySweepInterval = 60 * time.Second

	// DefaultPrefetchWindow (W) is the bounded recent-access history length
	// feeding the transition map (spec §4.5).
	DefaultPrefetchWindow = 10
	// DefaultPrefetchConfidence is the minimum transition probability a
	// prediction must clear before dispatch.
	DefaultPrefetchConfidence = 0.6
	// DefaultPrefetchTopN caps how many predictions are dispatched per
	// observed access.
	DefaultPrefetchTopN = 3
	// DefaultPrefetchExpiry (PredExpiry) bounds how long a dispatched
	// prediction can still count as a hit.
	DefaultPrefetchExpiry = 30 * time.Second
	// DefaultPrefetchWorkers is the fixed-size worker pool size.
	DefaultPrefetchWorkers = 4
	// DefaultPrefetchRowCapacity caps distinct successor keys tracked per
	// row; once reached, new successors are ignored while existing ones
	// keep counting.
	DefaultPrefetchRowCapacity = 64

	// DefaultTTLHistory (H) bounds the change-timestamp history kept per
	// key for the volatility estimator (spec §4.6).
	DefaultTTLHistory = 10
	// DefaultTTLDeadband is the fractional change in target TTL that must
	// be exceeded before a rewrite is applied.
	DefaultTTLDeadband = 0.2
	// DefaultTTLRewriteInterval is how often the controller sweeps all
	// keys for a TTL rewrite pass.
	DefaultTTLRewriteInterval = 300 * time.Second
	// DefaultTTLBaseSeconds is the base TTL (1h) the cost-benefit
	// multiplier scales (spec §4.6).
	DefaultTTLBaseSeconds = 3600
	// DefaultTTLMinMultiplier and DefaultTTLMaxMultiplier clamp the
	// cost-benefit multiplier.
	DefaultTTLMinMultiplier = 0.1
	DefaultTTLMaxMultiplier = 10.0

	// DefaultHealthInterval is the default for HealthConfig.Interval (spec
	// §4.8).
	DefaultHealthInterval = 30 * time.Second
)

// PrefetchConfig tunes the statistical predictive prefetcher (spec §4.5).
type PrefetchConfig struct {
	// Enabled turns the prefetcher on. Default: false.
	Enabled bool
	// Window is the bounded recent-access history length (W).
	Window int
	// ConfidenceThreshold is the minimum transition probability required
	// before a successor is predicted.
	ConfidenceThreshold float64
	// TopN caps predictions dispatched per observed access.
	TopN int
	// PredictionExpiry bounds how long a dispatched prediction can still
	// be counted as a hit.
	PredictionExpiry time.Duration
	// Workers is the fixed-size DataLoader dispatch pool.
	Workers int
	// RowCapacity caps distinct successors tracked per antecedent key.
	RowCapacity int
	// Loader fetches a predicted key's value. Required when Enabled.
	Loader DataLoader
}

// TTLConfig tunes the adaptive TTL controller (spec §4.6).
type TTLConfig struct {
	// Enabled turns the controller on. Default: false.
	Enabled bool
	// History is the bounded change-timestamp history length (H).
	History int
	// Deadband is the fractional TTL change a rewrite must exceed.
	Deadband float64
	// RewriteInterval is how often all keys are swept for rewrite.
	RewriteInterval time.Duration
	// BaseSeconds is the base TTL the multiplier scales (default 3600).
	BaseSeconds int64
	// MinMultiplier and MaxMultiplier clamp the cost-benefit multiplier.
	MinMultiplier float64
	MaxMultiplier float64
}

// SnapshotConfig describes persistence settings (spec §4.7). NewStore and
// the rest of this package do not read it: nothing is loaded at
// construction and nothing is written periodically. Snapshots are taken
// and restored only through a SnapshotCodec (Save/Load) driven by the
// caller.
type SnapshotConfig struct {
	// Enabled marks periodic snapshotting as wanted. Default: false.
	Enabled bool
	// Path is the snapshot file location.
	Path string
	// Interval is the desired time between snapshots.
	Interval time.Duration
	// LoadOnStart marks restoring Path at startup as wanted.
	LoadOnStart bool
}

// HealthConfig tunes the health scorer (spec §4.8).
type HealthConfig struct {
	// Interval is carried in Config and updated by HotConfig, but no
	// component reads it: there is no periodic health recomputation, and
	// ScoreHealth computes the score on demand from a Snapshot.
	Interval time.Duration
}

// Config holds every configuration parameter for the chronos engine.
type Config struct {
	// Segments is the number of store segments, rounded up to the next
	// power of two. Must be > 0. Default: DefaultSegmentCount.
	Segments int

	// MaxMemoryBytes is the total memory budget across all segments, split
	// evenly. Must be > 0. Default: DefaultMaxMemoryBytes.
	MaxMemoryBytes int64

	// EvictionPolicy selects LRU or LFU. Default: PolicyLRU.
	EvictionPolicy PolicyKind

	// ExpirySweepInterval is how often the background worker sweeps
	// expired entries. 0 disables the background sweep (lazy expiry on
	// Get still applies). Default: DefaultExpirySweepInterval.
	ExpirySweepInterval time.Duration

	// Prefetch tunes the predictive prefetcher.
	Prefetch PrefetchConfig

	// TTL tunes the adaptive TTL controller.
	TTL TTLConfig

	// Snapshot tunes persistence.
	Snapshot SnapshotConfig

	// Health tunes the health scorer.
	Health HealthConfig

	// Logger is used for background subsystem diagnostics.
	// If nil, NoOpLogger is used. Default: NoOpLogger.
	Logger Logger

	// TimeProvider provides current time. If nil, a default implementation
	// backed by go-timecache is used.
	TimeProvider TimeProvider

	// MetricsCollector receives per-operation counters and latencies.
	// If nil, NoOpMetricsCollector is used (zero overhead).
	MetricsCollector MetricsCollector
}

// Validate normalizes Config in place, applying defaults for anything left
// zero-valued, and rejects only the handful of settings that cannot be
// defaulted safely (spec §7 ConfigError cases).
//
// Default values applied:
//   - Segments: DefaultSegmentCount if 0 (negative is rejected)
//   - MaxMemoryBytes: DefaultMaxMemoryBytes if 0 (negative is rejected)
//   - EvictionPolicy: PolicyLRU if empty
//   - ExpirySweepInterval: DefaultExpirySweepInterval if 0 and not explicitly disabled
//   - Logger: NoOpLogger{} if nil
//   - TimeProvider: systemTimeProvider{} if nil
//   - MetricsCollector: NoOpMetricsCollector{} if nil
//   - Prefetch/TTL/Health sub-configs: their own Default* constants
//     (Snapshot is left as given)
func (c *Config) Validate() error {
	if c.Segments < 0 {
		return NewErrInvalidSegments(c.Segments)
	}
	if c.Segments == 0 {
		c.Segments = DefaultSegmentCount
	}

	if c.MaxMemoryBytes < 0 {
		return NewErrInvalidBudget(c.MaxMemoryBytes)
	}
	if c.MaxMemoryBytes == 0 {
		c.MaxMemoryBytes = DefaultMaxMemoryBytes
	}

	if c.EvictionPolicy == "" {
		c.EvictionPolicy = PolicyLRU
	}

	if c.ExpirySweepInterval == 0 {
		c.ExpirySweepInterval = DefaultExpirySweepInterval
	} else if c.ExpirySweepInterval < 0 {
		c.ExpirySweepInterval = 0 // explicit disable
	}

	c.validatePrefetch()
	c.validateTTL()
	c.validateSnapshot()
	c.validateHealth()

	if c.Logger == nil {
		c.Logger = NoOpLogger{}
	}
	if c.TimeProvider == nil {
		c.TimeProvider = &systemTimeProvider{}
	}
	if c.MetricsCollector == nil {
		c.MetricsCollector = NoOpMetricsCollector{}
	}

	return nil
}

func (c *Config) validatePrefetch() {
	p := &c.Prefetch
	if p.Window <= 0 {
		p.Window = DefaultPrefetchWindow
	}
	if p.ConfidenceThreshold <= 0 || p.ConfidenceThreshold > 1 {
		p.ConfidenceThreshold = DefaultPrefetchConfidence
	}
	if p.TopN <= 0 {
		p.TopN = DefaultPrefetchTopN
	}
	if p.PredictionExpiry <= 0 {
		p.PredictionExpiry = DefaultPrefetchExpiry
	}
	if p.Workers <= 0 {
		p.Workers = DefaultPrefetchWorkers
	}
	if p.RowCapacity <= 0 {
		p.RowCapacity = DefaultPrefetchRowCapacity
	}
}

func (c *Config) validateTTL() {
	t := &c.TTL
	if t.History <= 0 {
		t.History = DefaultTTLHistory
	}
	if t.Deadband <= 0 {
		t.Deadband = DefaultTTLDeadband
	}
	if t.RewriteInterval <= 0 {
		t.RewriteInterval = DefaultTTLRewriteInterval
	}
	if t.BaseSeconds <= 0 {
		t.BaseSeconds = DefaultTTLBaseSeconds
	}
	if t.MinMultiplier <= 0 {
		t.MinMultiplier = DefaultTTLMinMultiplier
	}
	if t.MaxMultiplier <= 0 {
		t.MaxMultiplier = DefaultTTLMaxMultiplier
	}
}

func (c *Config) validateSnapshot() {
	// No defaulting and no checks: the fields are left as given, since
	// nothing in this package reads them.
}

func (c *Config) validateHealth() {
	if c.Health.Interval <= 0 {
		c.Health.Interval = DefaultHealthInterval
	}
}

// DefaultConfig returns a Config with every field set to its documented
// default, suitable for NewStore without further adjustment.
func DefaultConfig() Config {
	c := Config{
		Segments:            DefaultSegmentCount,
		MaxMemoryBytes:      DefaultMaxMemoryBytes,
		EvictionPolicy:      PolicyLRU,
		ExpirySweepInterval: DefaultExpirySweepInterval,
		Prefetch: PrefetchConfig{
			Window:              DefaultPrefetchWindow,
			ConfidenceThreshold: DefaultPrefetchConfidence,
			TopN:                DefaultPrefetchTopN,
			PredictionExpiry:    DefaultPrefetchExpiry,
			Workers:             DefaultPrefetchWorkers,
			RowCapacity:         DefaultPrefetchRowCapacity,
		},
		TTL: TTLConfig{
			History:         DefaultTTLHistory,
			Deadband:        DefaultTTLDeadband,
			RewriteInterval: DefaultTTLRewriteInterval,
			BaseSeconds:     DefaultTTLBaseSeconds,
			MinMultiplier:   DefaultTTLMinMultiplier,
			MaxMultiplier:   DefaultTTLMaxMultiplier,
		},
		Health: HealthConfig{
			Interval: DefaultHealthInterval,
		},
		Logger:           NoOpLogger{},
		TimeProvider:     &systemTimeProvider{},
		MetricsCollector: NoOpMetricsCollector{},
	}
	return c
}

// systemTimeProvider is the default TimeProvider, backed by go-timecache's
// cached clock (~121x faster than time.Now() with zero allocations) for the
// monotonic reading, and time.Now() for the wall-clock reading since
// snapshot timestamps and TTL deadlines must track real time across
// restarts, which a monotonic-only cache cannot provide.
type systemTimeProvider struct{}

func (t *systemTimeProvider) NowMono() int64 {
	return timecache.CachedTimeNano()
}

func (t *systemTimeProvider) NowWall() int64 {
	return time.Now().UnixNano()
}
