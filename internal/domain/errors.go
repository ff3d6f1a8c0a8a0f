package domain

import "errors"

var (
	// ErrNotFound is returned when a result or certificate does not exist.
	ErrNotFound = errors.New("result not found")
	// ErrAlreadyRegistered is returned when the email already has a result row.
	ErrAlreadyRegistered = errors.New("email already registered")
	// ErrNotEligible is returned when allocation is requested for a result
	// that is incomplete or scored below the pass threshold.
	ErrNotEligible = errors.New("result not eligible for a certificate")
	// ErrIneligible is returned when verification finds the certificate but
	// the current stored score no longer reaches the pass threshold.
	ErrIneligible = errors.New("certificate holder no longer meets the passing score")
	// ErrInvalidFormat is returned for candidate IDs that do not match the
	// canonical certificate format; no store access happens in that case.
	ErrInvalidFormat = errors.New("certificate id has invalid format")
	// ErrConflict signals a lost allocation race; the allocator retries it
	// internally and only surfaces it once retries are exhausted.
	ErrConflict = errors.New("certificate allocation conflict")
	// ErrCapacityExceeded is returned when the next sequence number would
	// not fit the configured suffix width. Requires widening the scheme.
	ErrCapacityExceeded = errors.New("certificate capacity exhausted")
	// ErrStoreUnavailable wraps transient store failures after retries.
	ErrStoreUnavailable = errors.New("result store unavailable")
)
