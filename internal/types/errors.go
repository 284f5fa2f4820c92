package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration   = errors.New("propkit: configuration error")
	ErrNotInitialized  = fmt.Errorf("%w: owner storage not initialized", ErrConfiguration)
	ErrAccess          = errors.New("propkit: access failed")
	ErrCoercion        = errors.New("propkit: coercion failed")
	ErrLockTimeout     = errors.New("propkit: lock acquisition timed out")
	ErrInvalidKey      = errors.New("propkit: invalid key")
	ErrReadOnly        = errors.New("propkit: attribute is read-only")
	ErrWriteOnly       = errors.New("propkit: attribute is write-only")
	ErrNotDeletable    = errors.New("propkit: attribute cannot be deleted")
	ErrCircuitOpen     = errors.New("propkit: circuit breaker open")
	ErrBulkheadFull    = errors.New("propkit: bulkhead at capacity")
	ErrBulkheadTimeout = errors.New("propkit: bulkhead timeout")
)

// AttrError describes a failed attribute access. Kind is one of the package
// sentinels (ErrAccess, ErrCoercion, ErrLockTimeout, ...) and Err is the
// underlying cause; errors.Is matches either.
type AttrError struct {
	Kind  error
	Op    string
	Attr  string
	Key   string
	Layer string
	Err   error
}

func (e *AttrError) Error() string {
	where := e.Attr
	if e.Key != "" {
		where = fmt.Sprintf("%s[%s]", e.Attr, e.Key)
	}
	if e.Layer != "" {
		where = fmt.Sprintf("%s (%s)", where, e.Layer)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, where, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, where, e.Kind, e.Err)
}

func (e *AttrError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewAttrError creates an attribute error of the given kind.
func NewAttrError(kind error, op, attr, key, layer string, err error) *AttrError {
	return &AttrError{
		Kind:  kind,
		Op:    op,
		Attr:  attr,
		Key:   key,
		Layer: layer,
		Err:   err,
	}
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsAccess reports whether err is an access error.
func IsAccess(err error) bool {
	return errors.Is(err, ErrAccess)
}

// IsCoercion reports whether err is a coercion error.
func IsCoercion(err error) bool {
	return errors.Is(err, ErrCoercion)
}

// IsLockTimeout reports whether err is a lock timeout.
func IsLockTimeout(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// IsInvalidKey reports whether err is an invalid key error.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

// IsCircuitOpen reports whether err comes from an open circuit breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// IsRetryable reports whether an underlying failure is worth another attempt.
// Failures raised by the library itself are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrCoercion) ||
		errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, ErrReadOnly) ||
		errors.Is(err, ErrWriteOnly) {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrBulkheadFull) ||
		errors.Is(err, ErrBulkheadTimeout) {
		return false
	}

	return true
}
