// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package chronos implements an in-memory, RESP2-addressable key-value
// cache with bounded memory, per-entry expiration, a statistical
// predictive prefetcher, and an adaptive TTL controller.
//
// # Architecture
//
// A Store is a fixed array of Segments (power-of-two count), each guarded
// by its own RWMutex and holding its own slice of the total memory budget.
// A key always hashes to exactly one segment, so foreground operations
// only ever contend with other operations on the same stripe.
//
//	store, err := chronos.NewStore(chronos.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	store.Set("user:42", []byte("..."), 3600, 0)
//	value, ok := store.Get("user:42")
//
// # Eviction
//
// Each segment evicts independently under its own write lock once its
// local budget is exceeded, using either LRU (oldest last access) or LFU
// (lowest access count, ties broken by oldest last access).
//
// # Prefetching
//
// NewStore does not start a prefetcher. A Prefetcher built with
// NewPrefetcher (active when its PrefetchConfig.Enabled is set) and fed
// client accesses, as the resp dispatcher's access observer does, builds a
// first-order Markov transition map per key; once a successor's observed
// probability clears ConfidenceThreshold, it is dispatched to a bounded
// worker pool that calls the configured DataLoader ahead of the client
// actually requesting it.
//
// # Adaptive TTL
//
// NewStore does not start a TTL controller. A TTLController built with
// NewTTLController and started with Start (active when its
// TTLConfig.Enabled is set) periodically
// rewrites each key's TTL from a cost-benefit estimate built from its
// access frequency, size, and observed volatility (how often its value
// actually changes on SET), subject to a deadband that suppresses churn
// from small reestimates.
//
// # Persistence
//
// SnapshotCodec serializes every live entry to a GZIP-compressed binary
// frame and restores it on the next start, tolerating truncated or
// corrupted tails by keeping whatever loaded cleanly before the failure.
package chronos
