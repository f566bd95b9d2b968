// chronos.go: package-wide constants for the chronos cache engine.
//
// Chronos is an in-memory, RESP2-addressable key-value cache with bounded
// memory, per-entry expiration, a statistical predictive prefetcher, and an
// adaptive TTL controller. This file collects the constants shared across
// the engine's components (entry overhead, size limits, snapshot framing).
package chronos

const (
	// Version of the chronos cache engine.
	Version = "v0.1.0-dev"

	// MaxKeyBytes is the largest key accepted by the store; larger keys are
	// rejected by the dispatcher before reaching a Segment.
	MaxKeyBytes = 1024

	// MaxValueBytes is the largest value accepted by the store (10 MiB).
	MaxValueBytes = 10 * 1024 * 1024

	// EntryOverheadBytes (O) models the per-entry object/header overhead
	// added to len(value) when computing size_bytes. A compile-time
	// constant: Config has no field that overrides it.
	EntryOverheadBytes = 64

	// DefaultSegments is the default segment count (rounded to a power of two).
	DefaultSegments = 256

	// DefaultMaxMemoryBytes is the default total cache memory budget (2 GiB).
	DefaultMaxMemoryBytes = 2 << 30

	// SnapshotMagic identifies a chronos snapshot file ("CHRO").
	SnapshotMagic uint32 = 0x4348524F

	// SnapshotVersion is the current on-disk snapshot format version.
	SnapshotVersion uint32 = 1
)
