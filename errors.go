// errors.go: structured error taxonomy for the chronos cache engine.
//
// Errors are built through github.com/agilira/go-errors, giving every
// failure a stable code, optional structured context, and a retryable
// flag that background subsystems can inspect before deciding whether to
// log-and-continue or escalate.
package chronos

import (
	goerrors "errors"
	"fmt"

	"github.com/agilira/go-errors"
)

// Error codes, grouped by the taxonomy in spec §7.
const (
	// Configuration errors (1xxx)
	ErrCodeInvalidConfig   errors.ErrorCode = "CHRONOS_INVALID_CONFIG"
	ErrCodeInvalidSegments errors.ErrorCode = "CHRONOS_INVALID_SEGMENTS"
	ErrCodeInvalidBudget   errors.ErrorCode = "CHRONOS_INVALID_BUDGET"
	ErrCodeInvalidEviction errors.ErrorCode = "CHRONOS_INVALID_EVICTION_POLICY"

	// Validation errors (2xxx) — surfaced to clients, connection stays open
	ErrCodeKeyTooLong    errors.ErrorCode = "CHRONOS_KEY_TOO_LONG"
	ErrCodeValueTooLarge errors.ErrorCode = "CHRONOS_VALUE_TOO_LARGE"
	ErrCodeEmptyKey      errors.ErrorCode = "CHRONOS_EMPTY_KEY"
	ErrCodeArgCount      errors.ErrorCode = "CHRONOS_WRONG_ARG_COUNT"

	// Protocol errors (3xxx) — malformed frame, connection is closed
	ErrCodeProtocol errors.ErrorCode = "CHRONOS_PROTOCOL_ERROR"

	// Backend/prefetch errors (4xxx) — logged, never surfaced to clients
	ErrCodeBackendUnavailable errors.ErrorCode = "CHRONOS_BACKEND_UNAVAILABLE"

	// Persistence errors (5xxx)
	ErrCodeSnapshotWrite    errors.ErrorCode = "CHRONOS_SNAPSHOT_WRITE_FAILED"
	ErrCodeSnapshotRead     errors.ErrorCode = "CHRONOS_SNAPSHOT_READ_FAILED"
	ErrCodeSnapshotCorrupt  errors.ErrorCode = "CHRONOS_SNAPSHOT_CORRUPTED"
	ErrCodeSnapshotMismatch errors.ErrorCode = "CHRONOS_SNAPSHOT_VERSION_MISMATCH"

	// Fatal errors (6xxx) — surfaced to the process supervisor
	ErrCodeFatal errors.ErrorCode = "CHRONOS_FATAL"

	// Internal (7xxx)
	ErrCodePanicRecovered errors.ErrorCode = "CHRONOS_PANIC_RECOVERED"
)

const (
	msgInvalidSegments    = "invalid segment count: must be > 0"
	msgInvalidBudget      = "invalid memory budget: must be > 0"
	msgInvalidEviction    = "invalid eviction policy: must be LRU or LFU"
	msgKeyTooLong         = "key too long"
	msgValueTooLarge      = "value too large"
	msgEmptyKey           = "key cannot be empty"
	msgArgCount           = "wrong number of arguments"
	msgProtocol           = "malformed RESP frame"
	msgBackendUnavailable = "data loader unavailable"
	msgSnapshotWrite      = "failed to write snapshot"
	msgSnapshotRead       = "failed to read snapshot"
	msgSnapshotCorrupt    = "corrupted snapshot entry"
	msgSnapshotMismatch   = "snapshot magic or version mismatch"
	msgFatal              = "fatal error, process cannot continue"
)

// NewErrInvalidSegments reports a non-positive configured segment count.
func NewErrInvalidSegments(n int) error {
	return errors.NewWithContext(ErrCodeInvalidSegments, msgInvalidSegments, map[string]interface{}{
		"provided": n,
	})
}

// NewErrInvalidBudget reports a non-positive configured memory budget.
func NewErrInvalidBudget(bytes int64) error {
	return errors.NewWithContext(ErrCodeInvalidBudget, msgInvalidBudget, map[string]interface{}{
		"provided_bytes": bytes,
	})
}

// NewErrInvalidEviction reports an unrecognized eviction policy name.
func NewErrInvalidEviction(name string) error {
	return errors.NewWithField(ErrCodeInvalidEviction, msgInvalidEviction, "policy", name)
}

// NewErrKeyTooLong reports a key exceeding the 1024-byte limit.
func NewErrKeyTooLong(length int) error {
	return errors.NewWithContext(ErrCodeKeyTooLong, msgKeyTooLong, map[string]interface{}{
		"length": length,
		"limit":  MaxKeyBytes,
	})
}

// NewErrValueTooLarge reports a value exceeding the 10 MiB limit.
func NewErrValueTooLarge(length int) error {
	return errors.NewWithContext(ErrCodeValueTooLarge, msgValueTooLarge, map[string]interface{}{
		"length": length,
		"limit":  MaxValueBytes,
	})
}

// NewErrEmptyKey reports a missing/empty key argument.
func NewErrEmptyKey(operation string) error {
	return errors.NewWithField(ErrCodeEmptyKey, msgEmptyKey, "operation", operation)
}

// NewErrArgCount reports a command invoked with the wrong argument count.
func NewErrArgCount(verb string) error {
	return errors.NewWithField(ErrCodeArgCount, msgArgCount, "verb", verb)
}

// NewErrProtocol reports a malformed RESP frame; the caller must close the connection.
func NewErrProtocol(detail string) error {
	return errors.NewWithField(ErrCodeProtocol, msgProtocol, "detail", detail)
}

// NewErrBackendUnavailable wraps a DataLoader failure. Always logged, never
// surfaced to a client — see spec §7 BackendUnavailable.
func NewErrBackendUnavailable(key string, cause error) error {
	if cause == nil {
		return errors.NewWithField(ErrCodeBackendUnavailable, msgBackendUnavailable, "key", key)
	}
	return errors.Wrap(cause, ErrCodeBackendUnavailable, msgBackendUnavailable).
		WithContext("key", key).
		AsRetryable()
}

// NewErrSnapshotWrite wraps an I/O failure while writing a snapshot.
func NewErrSnapshotWrite(path string, cause error) error {
	return errors.Wrap(cause, ErrCodeSnapshotWrite, msgSnapshotWrite).
		WithContext("path", path).
		AsRetryable()
}

// NewErrSnapshotRead wraps an I/O failure while reading a snapshot.
func NewErrSnapshotRead(path string, cause error) error {
	return errors.Wrap(cause, ErrCodeSnapshotRead, msgSnapshotRead).
		WithContext("path", path).
		AsRetryable()
}

// NewErrSnapshotCorrupt reports a mid-stream decode failure.
func NewErrSnapshotCorrupt(path string, loaded int, cause error) error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeSnapshotCorrupt, msgSnapshotCorrupt).
			WithContext("path", path).
			WithContext("entries_loaded", loaded)
	}
	return errors.NewWithContext(ErrCodeSnapshotCorrupt, msgSnapshotCorrupt, map[string]interface{}{
		"path":           path,
		"entries_loaded": loaded,
	})
}

// NewErrSnapshotMismatch reports a header magic/version mismatch.
func NewErrSnapshotMismatch(gotMagic, wantMagic, gotVersion, wantVersion uint32) error {
	return errors.NewWithContext(ErrCodeSnapshotMismatch, msgSnapshotMismatch, map[string]interface{}{
		"got_magic":    gotMagic,
		"want_magic":   wantMagic,
		"got_version":  gotVersion,
		"want_version": wantVersion,
	})
}

// NewErrFatal wraps a condition that prevents the process from serving
// traffic (e.g. listener bind failure). Never self-healed.
func NewErrFatal(operation string, cause error) error {
	return errors.Wrap(cause, ErrCodeFatal, msgFatal).
		WithContext("operation", operation).
		WithSeverity("critical")
}

// NewErrPanicRecovered wraps a recovered panic from a background worker.
func NewErrPanicRecovered(operation string, panicValue interface{}) error {
	return errors.NewWithContext(ErrCodePanicRecovered, "panic recovered", map[string]interface{}{
		"operation":   operation,
		"panic_value": fmt.Sprintf("%v", panicValue),
	}).WithSeverity("critical")
}

// IsProtocolError reports whether err must close the client connection.
func IsProtocolError(err error) bool {
	return errors.HasCode(err, ErrCodeProtocol)
}

// IsValidationError reports whether err is a per-command validation failure.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		switch coder.ErrorCode() {
		case ErrCodeKeyTooLong, ErrCodeValueTooLarge, ErrCodeEmptyKey, ErrCodeArgCount:
			return true
		}
	}
	return false
}

// IsBackendUnavailable reports whether err came from a DataLoader failure.
func IsBackendUnavailable(err error) bool {
	return errors.HasCode(err, ErrCodeBackendUnavailable)
}

// IsSnapshotError reports whether err originated in the snapshot subsystem.
func IsSnapshotError(err error) bool {
	if err == nil {
		return false
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		switch coder.ErrorCode() {
		case ErrCodeSnapshotWrite, ErrCodeSnapshotRead, ErrCodeSnapshotCorrupt, ErrCodeSnapshotMismatch:
			return true
		}
	}
	return false
}

// IsFatal reports whether err must be surfaced to the process supervisor.
func IsFatal(err error) bool {
	return errors.HasCode(err, ErrCodeFatal)
}

// IsRetryable reports whether err can be retried by its caller.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryable errors.Retryable
	if goerrors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// GetErrorCode extracts the structured error code carried by err, if any.
func GetErrorCode(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}
