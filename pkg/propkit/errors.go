package propkit

import (
	"github.com/LavishGent/propkit/internal/types"
)

// AttrError describes a failed attribute access.
type AttrError = types.AttrError

var (
	// ErrConfiguration indicates an invalid attribute or owner setup.
	ErrConfiguration = types.ErrConfiguration
	// ErrNotInitialized indicates an access on an owner whose Init was never called.
	ErrNotInitialized = types.ErrNotInitialized
	// ErrAccess indicates that the underlying getter, setter or deleter failed.
	ErrAccess = types.ErrAccess
	// ErrCoercion indicates that a value failed conversion.
	ErrCoercion = types.ErrCoercion
	// ErrLockTimeout indicates that a lock layer gave up waiting.
	ErrLockTimeout = types.ErrLockTimeout
	// ErrInvalidKey indicates a key outside a dict's valid keys.
	ErrInvalidKey = types.ErrInvalidKey
	// ErrReadOnly indicates a set on an attribute without a setter.
	ErrReadOnly = types.ErrReadOnly
	// ErrWriteOnly indicates a get on an attribute without a getter.
	ErrWriteOnly = types.ErrWriteOnly
	// ErrNotDeletable indicates a delete on an attribute without a deleter.
	ErrNotDeletable = types.ErrNotDeletable
	// ErrCircuitOpen indicates that a resilient attribute's circuit breaker is open.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrBulkheadFull indicates that a resilient attribute's bulkhead is at capacity.
	ErrBulkheadFull = types.ErrBulkheadFull
	// ErrBulkheadTimeout indicates that bulkhead acquisition timed out.
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
)

// IsConfiguration returns true if err is a configuration error.
func IsConfiguration(err error) bool {
	return types.IsConfiguration(err)
}

// IsAccess returns true if the underlying function failed.
func IsAccess(err error) bool {
	return types.IsAccess(err)
}

// IsCoercion returns true if a value failed conversion.
func IsCoercion(err error) bool {
	return types.IsCoercion(err)
}

// IsLockTimeout returns true if a lock wait expired.
func IsLockTimeout(err error) bool {
	return types.IsLockTimeout(err)
}

// IsInvalidKey returns true if a dict key was rejected.
func IsInvalidKey(err error) bool {
	return types.IsInvalidKey(err)
}

// IsCircuitOpen returns true if the error indicates the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}
