// Package queue publishes booking events to RabbitMQ and consumes them into
// the booking log.
package queue

import (
	"time"

	"github.com/iliyamo/trip-seat-booking/internal/model"
)

// BookingConfirmedQueue is the durable queue carrying BookingConfirmedEvent.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published when a seat lock is converted into a
// booking.  It carries enough of the seat to be logged without querying the
// database.
type BookingConfirmedEvent struct {
	BookingID        string `json:"booking_id"`
	UserID           string `json:"user_id"`
	TripID           string `json:"trip_id"`
	SeatID           string `json:"seat_id"`
	SeatNumber       string `json:"seat_number"`
	Row              int    `json:"row"`
	Column           int    `json:"column"`
	GenderConstraint string `json:"gender_constraint"`
	Recovered        bool   `json:"recovered,omitempty"`
	ConfirmedAt      string `json:"confirmed_at"`
}

func NewBookingConfirmedEvent(b model.Booking, seat model.Seat) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		BookingID:        b.ID,
		UserID:           b.UserID,
		TripID:           b.TripID,
		SeatID:           b.SeatID,
		SeatNumber:       seat.Number,
		Row:              seat.Row,
		Column:           seat.Column,
		GenderConstraint: string(seat.Gender),
		Recovered:        b.Recovered,
		ConfirmedAt:      b.ConfirmedAt.UTC().Format(time.RFC3339),
	}
}
