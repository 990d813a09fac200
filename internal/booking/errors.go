package booking

import (
	"errors"
	"fmt"

	"github.com/iliyamo/trip-seat-booking/internal/compliance"
	"github.com/iliyamo/trip-seat-booking/internal/repository"
)

// Outcomes of the lock operations.  Every failure returned by LockManager
// matches exactly one of these with errors.Is.
var (
	// ErrSeatUnavailable means the seat was not in the state the caller
	// assumed.  Re-read and retry.
	ErrSeatUnavailable = errors.New("seat unavailable")
	// ErrComplianceViolation wraps a *compliance.Denial carrying the reason.
	ErrComplianceViolation = errors.New("compliance violation")
	// ErrNotLockHolder means the caller does not hold the lock.  Nothing
	// changed.
	ErrNotLockHolder = errors.New("not lock holder")
	// ErrLockExpired means the caller's lock ended before confirm.  The seat
	// must be acquired again.
	ErrLockExpired = errors.New("lock expired")
	// ErrStoreUnavailable wraps a persistence failure.  No state is assumed
	// changed; the call may be retried.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrSeatNotFound    = errors.New("seat not found")
	ErrBookingNotFound = errors.New("booking not found")
)

// storeErr translates a store error into an outcome.  Conflicts are handled
// by the callers since their meaning depends on the operation.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrSeatNotFound):
		return ErrSeatNotFound
	case errors.Is(err, repository.ErrBookingNotFound):
		return ErrBookingNotFound
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// DenialOf returns the compliance denial carried by err, if any.
func DenialOf(err error) (*compliance.Denial, bool) {
	var d *compliance.Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
