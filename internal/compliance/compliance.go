package compliance

import (
	"fmt"

	"github.com/iliyamo/trip-seat-booking/internal/model"
)

// Reason names the rule that rejected an occupancy request.
type Reason string

const (
	NotAvailable     Reason = "not_available"
	GenderMismatch   Reason = "gender_mismatch"
	AdjacentConflict Reason = "adjacent_conflict"
)

// Denial is returned by CanOccupy when a rule fails.  Neighbor is set for
// AdjacentConflict and names the booked seat that caused it.
type Denial struct {
	Reason   Reason
	SeatID   string
	Neighbor string
}

func (d *Denial) Error() string {
	switch d.Reason {
	case NotAvailable:
		return fmt.Sprintf("seat %s is not available", d.SeatID)
	case GenderMismatch:
		return fmt.Sprintf("seat %s is reserved for another gender", d.SeatID)
	case AdjacentConflict:
		return fmt.Sprintf("seat %s is next to seat %s booked under the other gender's constraint", d.SeatID, d.Neighbor)
	}
	return fmt.Sprintf("seat %s: %s", d.SeatID, d.Reason)
}

// CanOccupy evaluates the seating rules in order and returns nil when user
// may take seat, or a *Denial otherwise.
//
//  1. The seat must be available.
//  2. A gender-restricted seat must match the user's gender.
//  3. A restricted seat matching the user's gender is compliant regardless
//     of its neighbors.
//  4. An unrestricted seat is denied when any adjacent seat is restricted to
//     the other gender and already booked.  Locked or available restricted
//     neighbors never block.
//
// A user without a valid gender is denied with GenderMismatch.
func CanOccupy(seat model.Seat, user model.User, all []model.Seat) error {
	if seat.Status != model.SeatAvailable {
		return &Denial{Reason: NotAvailable, SeatID: seat.ID}
	}
	if !user.Gender.Valid() {
		return &Denial{Reason: GenderMismatch, SeatID: seat.ID}
	}
	if seat.Gender.Restricted() {
		if !seat.Gender.Allows(user.Gender) {
			return &Denial{Reason: GenderMismatch, SeatID: seat.ID}
		}
		return nil
	}
	blocking := model.ConstraintFor(user.Gender.Opposite())
	for _, n := range Neighbors(seat, all) {
		if n.Gender == blocking && n.Status == model.SeatBooked {
			return &Denial{Reason: AdjacentConflict, SeatID: seat.ID, Neighbor: n.ID}
		}
	}
	return nil
}
