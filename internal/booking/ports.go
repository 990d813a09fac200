// Package booking implements the seat lifecycle of one trip: the registry
// that owns seat state, the lock manager that moves seats between available,
// locked and booked, and the reconciler that releases expired locks and
// repairs the booking ledger.
//
// Stores report failures with the sentinel errors of package repository;
// this package translates them into the outcomes declared in errors.go.
package booking

import (
	"context"

	"github.com/iliyamo/trip-seat-booking/internal/model"
)

// SeatStore is the durable seat state of every trip.  CompareAndSet is the
// only mutation and must be atomic per seat.  ListByTrip returns seats ordered
// by row, then column.
type SeatStore interface {
	ListByTrip(ctx context.Context, tripID string) ([]model.Seat, error)
	GetByID(ctx context.Context, tripID, seatID string) (model.Seat, error)
	CompareAndSet(ctx context.Context, tripID string, t model.Transition) (model.Seat, error)
}

// TripInitializer creates a trip and its seats once.  created is false when
// the trip already existed, in which case nothing was written.
type TripInitializer interface {
	InitTrip(ctx context.Context, trip model.Trip, seats []model.Seat) (created bool, err error)
}

// Ledger is the append-only booking record.
type Ledger interface {
	Append(ctx context.Context, b model.Booking) (model.Booking, error)
	FindLatestByUser(ctx context.Context, tripID, userID string) (model.Booking, error)
	FindBySeat(ctx context.Context, tripID, seatID string) (model.Booking, error)
	FindByID(ctx context.Context, id string) (model.Booking, error)
}

// Transactor runs fn so that the store writes it performs commit together.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier is told after every committed seat mutation of a trip.
type Notifier interface {
	Notify(ctx context.Context, tripID string)
}

// EventPublisher receives confirmed bookings.  Delivery is best effort.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, b model.Booking, seat model.Seat) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) {}

type directTx struct{}

func (directTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
