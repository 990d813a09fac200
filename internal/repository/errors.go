// Package repository defines the MySQL data access layer and the error
// values shared by every repository.  These sentinel values allow higher
// layers to distinguish between failure scenarios without inspecting
// driver errors.  Any other error returned by a repository means the
// database itself failed.
package repository

import "errors"

// ErrConflict is returned by a compare-and-set when the stored row no longer
// matches the state the caller observed.  Nothing was written.
var ErrConflict = errors.New("conflict")

// ErrSeatNotFound is returned when a seat lookup yields no rows.
var ErrSeatNotFound = errors.New("seat not found")

// ErrBookingNotFound is returned when no booking matches the query.
var ErrBookingNotFound = errors.New("booking not found")

// ErrBookingExists is returned when a booking for the same trip and seat has
// already been recorded.  The ledger is append-only and holds at most one
// booking per seat.
var ErrBookingExists = errors.New("booking already exists")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when a user lookup yields no rows.
var ErrUserNotFound = errors.New("user not found")
