package model

import "time"

// Booking is the immutable record written when a lock is converted into a
// confirmed booking.  Rows in the `bookings` table are never updated or
// deleted.
//
// Fields:
//  ID          – generated identifier (uuid).
//  UserID      – user who confirmed the seat.
//  SeatID      – seat that was booked.
//  TripID      – inventory the seat belongs to.
//  CreatedAt   – when the record was written.
//  ConfirmedAt – when the seat transitioned to booked.
//  Recovered   – true when the record was written by the reconciliation
//                sweep for a booked seat that had no ledger entry.
type Booking struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SeatID      string    `json:"seat_id"`
	TripID      string    `json:"trip_id"`
	CreatedAt   time.Time `json:"created_at"`
	ConfirmedAt time.Time `json:"confirmed_at"`
	Recovered   bool      `json:"recovered,omitempty"`
}

// Trip is one seat inventory.  The seats of a trip are created together with
// the trip row and never added afterwards.
type Trip struct {
	ID        string    `json:"id"`
	Rows      int       `json:"rows"`
	Columns   int       `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
}
