package model

import (
	"errors"
	"fmt"
	"time"
)

// Gender is the fixed gender attribute of a user account.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is one of the supported genders.
func (g Gender) Valid() bool { return g == GenderMale || g == GenderFemale }

// Opposite returns the other gender.
func (g Gender) Opposite() Gender {
	if g == GenderMale {
		return GenderFemale
	}
	return GenderMale
}

// GenderConstraint restricts which users may occupy a seat.
type GenderConstraint string

const (
	Unrestricted GenderConstraint = "any"
	MaleOnly     GenderConstraint = "male"
	FemaleOnly   GenderConstraint = "female"
)

// ConstraintFor returns the single-gender constraint matching g.
func ConstraintFor(g Gender) GenderConstraint {
	if g == GenderFemale {
		return FemaleOnly
	}
	return MaleOnly
}

// Restricted reports whether the seat is reserved for one gender.
func (c GenderConstraint) Restricted() bool { return c == MaleOnly || c == FemaleOnly }

// Allows reports whether a user of gender g satisfies the constraint.
func (c GenderConstraint) Allows(g Gender) bool {
	if !c.Restricted() {
		return true
	}
	return c == ConstraintFor(g)
}

// ParseGenderConstraint accepts "any", "male", "female" and the empty string
// (treated as unrestricted).
func ParseGenderConstraint(s string) (GenderConstraint, error) {
	switch GenderConstraint(s) {
	case "", Unrestricted:
		return Unrestricted, nil
	case MaleOnly, FemaleOnly:
		return GenderConstraint(s), nil
	}
	return "", fmt.Errorf("unknown gender constraint %q", s)
}

// SeatStatus is the lifecycle state of a seat: available -> locked -> booked.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatLocked    SeatStatus = "locked"
	SeatBooked    SeatStatus = "booked"
)

// Position locates a seat in the grid. Rows and columns start at 1.
type Position struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Seat describes one seat of a trip together with its current lifecycle
// state.  It corresponds to a row in the `seats` table.
//
// Fields:
//  ID            – generated identifier (uuid).
//  TripID        – inventory the seat belongs to.
//  Row, Column   – grid position, both 1-based.
//  Number        – display label, "row-column".
//  Gender        – gender constraint of the seat.
//  Status        – available, locked or booked.
//  LockHolder    – user holding the lock (locked only).
//  LockDeadline  – absolute lock expiry (locked only).
//  BookingHolder – user owning the booking (booked only).
//  Version       – incremented by every successful transition.
//  UpdatedAt     – time of the last transition.
type Seat struct {
	ID            string           `json:"id"`
	TripID        string           `json:"trip_id"`
	Row           int              `json:"row"`
	Column        int              `json:"column"`
	Number        string           `json:"number"`
	Gender        GenderConstraint `json:"gender_constraint"`
	Status        SeatStatus       `json:"status"`
	LockHolder    string           `json:"lock_holder,omitempty"`
	LockDeadline  *time.Time       `json:"lock_deadline,omitempty"`
	BookingHolder string           `json:"booking_holder,omitempty"`
	Version       uint32           `json:"version"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Position returns the seat's grid position.
func (s Seat) Position() Position { return Position{Row: s.Row, Column: s.Column} }

// State returns the lifecycle portion of the seat.
func (s Seat) State() SeatState {
	return SeatState{
		Status:        s.Status,
		LockHolder:    s.LockHolder,
		LockDeadline:  s.LockDeadline,
		BookingHolder: s.BookingHolder,
	}
}

// Apply overwrites the lifecycle fields of s with st.
func (s *Seat) Apply(st SeatState) {
	s.Status = st.Status
	s.LockHolder = st.LockHolder
	s.LockDeadline = st.LockDeadline
	s.BookingHolder = st.BookingHolder
}

// LockedBy reports whether userID holds the current lock on the seat.
func (s Seat) LockedBy(userID string) bool {
	return s.Status == SeatLocked && userID != "" && s.LockHolder == userID
}

// LockExpired reports whether the seat is locked and its deadline has passed
// at now.  A lock is still live at exactly its deadline.
func (s Seat) LockExpired(now time.Time) bool {
	return s.Status == SeatLocked && s.LockDeadline != nil && now.After(*s.LockDeadline)
}

// SeatState is the mutable lifecycle portion of a seat.  Exactly one of
// {LockHolder+LockDeadline, BookingHolder} is populated according to Status.
type SeatState struct {
	Status        SeatStatus
	LockHolder    string
	LockDeadline  *time.Time
	BookingHolder string
}

// AvailableState is the state of a free seat.
func AvailableState() SeatState { return SeatState{Status: SeatAvailable} }

// LockedState is the state of a seat locked by holder until deadline.
func LockedState(holder string, deadline time.Time) SeatState {
	d := deadline.UTC()
	return SeatState{Status: SeatLocked, LockHolder: holder, LockDeadline: &d}
}

// BookedState is the terminal state of a seat booked by holder.
func BookedState(holder string) SeatState {
	return SeatState{Status: SeatBooked, BookingHolder: holder}
}

var errInvalidState = errors.New("invalid seat state")

// Validate checks the field invariant of the state.
func (st SeatState) Validate() error {
	switch st.Status {
	case SeatAvailable:
		if st.LockHolder != "" || st.LockDeadline != nil || st.BookingHolder != "" {
			return fmt.Errorf("%w: available seat carries holder fields", errInvalidState)
		}
	case SeatLocked:
		if st.LockHolder == "" || st.LockDeadline == nil || st.BookingHolder != "" {
			return fmt.Errorf("%w: locked seat needs holder and deadline only", errInvalidState)
		}
	case SeatBooked:
		if st.BookingHolder == "" || st.LockHolder != "" || st.LockDeadline != nil {
			return fmt.Errorf("%w: booked seat needs booking holder only", errInvalidState)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", errInvalidState, st.Status)
	}
	return nil
}

// Transition is a compare-and-set request: it moves a seat into To only if
// the stored status and version still equal FromStatus and FromVersion.
type Transition struct {
	SeatID      string
	FromStatus  SeatStatus
	FromVersion uint32
	To          SeatState
	At          time.Time
}

// NewTransition builds a transition from the observed seat to next.
func NewTransition(observed Seat, next SeatState, at time.Time) Transition {
	return Transition{
		SeatID:      observed.ID,
		FromStatus:  observed.Status,
		FromVersion: observed.Version,
		To:          next,
		At:          at.UTC(),
	}
}
