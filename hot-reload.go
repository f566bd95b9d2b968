// hot-reload.go: dynamic configuration with Argus integration.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
//
// Only a narrow slice of Config is safe to change at runtime: segment
// count and memory budget are baked into the Store's array of segments at
// construction and would require a full rebuild-and-swap to change, so
// they are deliberately excluded here, same as the teacher's applyChanges
// excluded MaxSize.
package chronos

import (
	"fmt"
	"sync"
	"time"

	"github.com/agilira/argus"
)

// HotConfig watches a configuration file and applies the subset of Config
// that can change without disrupting a running Store: prefetch confidence/
// topN, TTL rewrite interval/deadband, and the health scoring interval.
type HotConfig struct {
	store      *Store
	ttl        *TTLController
	prefetcher *Prefetcher
	watcher    *argus.Watcher
	mu         sync.RWMutex
	config     Config

	// OnReload is called after configuration is successfully reloaded.
	// This callback is optional and must be fast and non-blocking.
	OnReload func(oldConfig, newConfig Config)
}

// HotConfigOptions configures hot reload behavior.
type HotConfigOptions struct {
	// ConfigPath is the path to the configuration file to watch.
	// Supports JSON, YAML, TOML, HCL, INI, Properties formats.
	ConfigPath string

	// PollInterval is how often to check for configuration changes.
	// Default: 1 second. Minimum: 100ms.
	PollInterval time.Duration

	// TTL, if non-nil, receives the reloaded Deadband/RewriteInterval on
	// every successful reload (spec §10.3). Optional: a nil TTL controller
	// leaves the running rewrite pass untouched.
	TTL *TTLController

	// Prefetch, if non-nil, receives the reloaded ConfidenceThreshold/TopN
	// on every successful reload. Optional: a nil prefetcher leaves the
	// running prediction pass untouched.
	Prefetch *Prefetcher

	// OnReload is called after configuration is successfully reloaded.
	OnReload func(oldConfig, newConfig Config)

	// Logger for hot reload operations. If nil, uses NoOpLogger.
	Logger Logger
}

// NewHotConfig creates a hot-reloadable configuration layered over store.
// It starts watching the configuration file immediately.
//
// Example configuration file (YAML):
//
//	prefetch:
//	  confidence_threshold: 0.4
//	  top_n: 2
//	ttl:
//	  deadband: 0.25
//	  rewrite_interval: "5m"
//	health:
//	  interval: "15s"
//
// Note: segments and max_memory_bytes are fixed at construction and are
// never touched by hot reload — changing either requires building a new
// Store and swapping it in at the caller's discretion.
func NewHotConfig(store *Store, opts HotConfigOptions) (*HotConfig, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("config_path is required")
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = 1 * time.Second
	} else if opts.PollInterval < 100*time.Millisecond {
		opts.PollInterval = 100 * time.Millisecond
	}

	if opts.Logger == nil {
		opts.Logger = NoOpLogger{}
	}

	hc := &HotConfig{
		store:      store,
		ttl:        opts.TTL,
		prefetcher: opts.Prefetch,
		OnReload:   opts.OnReload,
		config:     DefaultConfig(),
	}

	argusConfig := argus.Config{
		PollInterval: opts.PollInterval,
	}

	watcher, err := argus.UniversalConfigWatcherWithConfig(opts.ConfigPath, hc.handleConfigChange, argusConfig)
	if err != nil {
		return nil, err
	}
	hc.watcher = watcher

	return hc, nil
}

// Start begins watching the configuration file for changes.
func (hc *HotConfig) Start() error {
	if hc.watcher.IsRunning() {
		return nil
	}
	return hc.watcher.Start()
}

// Stop stops watching the configuration file.
func (hc *HotConfig) Stop() error {
	return hc.watcher.Stop()
}

// GetConfig returns the current configuration (thread-safe).
func (hc *HotConfig) GetConfig() Config {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.config
}

// handleConfigChange is called by Argus when the configuration file changes.
// Beyond updating the locally polled copy (GetConfig), it pushes the
// reloaded tunables into the live TTLController and Prefetcher so a config
// file edit actually changes the running engine's behavior, not just the
// value a caller would get back from GetConfig.
func (hc *HotConfig) handleConfigChange(configData map[string]interface{}) {
	hc.mu.Lock()
	oldConfig := hc.config
	newConfig := hc.parseConfig(configData, oldConfig)
	hc.config = newConfig
	hc.mu.Unlock()

	if hc.ttl != nil {
		hc.ttl.UpdateTuning(newConfig.TTL.Deadband, newConfig.TTL.RewriteInterval)
	}
	if hc.prefetcher != nil {
		hc.prefetcher.UpdateTuning(newConfig.Prefetch.ConfidenceThreshold, newConfig.Prefetch.TopN)
	}

	if hc.OnReload != nil {
		hc.OnReload(oldConfig, newConfig)
	}
}

// parsePositiveInt extracts a positive integer from interface{} value.
// Supports both int and float64 types (YAML/JSON may vary).
func parsePositiveInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v > 0 {
			return v, true
		}
	case float64:
		if v > 0 {
			return int(v), true
		}
	}
	return 0, false
}

// parseDuration extracts a time.Duration from a string value.
func parseDuration(value interface{}) (time.Duration, bool) {
	if str, ok := value.(string); ok {
		if d, err := time.ParseDuration(str); err == nil {
			return d, true
		}
	}
	return 0, false
}

// parseFloatInRange extracts a float64 within the open interval (min, max).
func parseFloatInRange(value interface{}, min, max float64) (float64, bool) {
	if v, ok := value.(float64); ok {
		if v > min && v < max {
			return v, true
		}
	}
	return 0, false
}

// parseConfig extracts the hot-reloadable fields from Argus config data,
// starting from base so any keys absent from the file keep their current
// value.
func (hc *HotConfig) parseConfig(data map[string]interface{}, base Config) Config {
	config := base

	if prefetchSection, ok := data["prefetch"].(map[string]interface{}); ok {
		if conf, ok := parseFloatInRange(prefetchSection["confidence_threshold"], 0, 1); ok {
			config.Prefetch.ConfidenceThreshold = conf
		}
		if topN, ok := parsePositiveInt(prefetchSection["top_n"]); ok {
			config.Prefetch.TopN = topN
		}
	}

	if ttlSection, ok := data["ttl"].(map[string]interface{}); ok {
		if db, ok := parseFloatInRange(ttlSection["deadband"], 0, 1); ok {
			config.TTL.Deadband = db
		}
		if ri, ok := parseDuration(ttlSection["rewrite_interval"]); ok {
			config.TTL.RewriteInterval = ri
		}
	}

	if healthSection, ok := data["health"].(map[string]interface{}); ok {
		if iv, ok := parseDuration(healthSection["interval"]); ok {
			config.Health.Interval = iv
		}
	}

	return config
}
