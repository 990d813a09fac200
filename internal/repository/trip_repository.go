package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/trip-seat-booking/internal/database"
	"github.com/iliyamo/trip-seat-booking/internal/model"
)

// TripRepo owns the trips table and seeds the seats of a new trip.
type TripRepo struct {
	db    *sql.DB
	seats *SeatRepo
	tx    *database.TxManager
}

// NewTripRepo returns a TripRepo.  Seats are written through seats so they
// share its column mapping.
func NewTripRepo(db *sql.DB, seats *SeatRepo, tx *database.TxManager) *TripRepo {
	return &TripRepo{db: db, seats: seats, tx: tx}
}

// InitTrip creates the trip row and its seats in one transaction.  When the
// trip already exists nothing is written and created is false, so calling it
// on every start never resets seat state.
func (r *TripRepo) InitTrip(ctx context.Context, trip model.Trip, seats []model.Seat) (created bool, err error) {
	err = r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		res, err := database.Conn(ctx, r.db).ExecContext(ctx,
			"INSERT IGNORE INTO trips (id, seat_rows, seat_cols) VALUES (?,?,?)",
			trip.ID, trip.Rows, trip.Columns)
		if err != nil {
			return fmt.Errorf("insert trip: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		created = true
		return r.seats.CreateBulk(ctx, seats)
	})
	return created, err
}

// GetByID fetches a trip.  sql.ErrNoRows is returned unchanged when it does
// not exist.
func (r *TripRepo) GetByID(ctx context.Context, id string) (model.Trip, error) {
	var t model.Trip
	err := database.Conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT id, seat_rows, seat_cols, created_at FROM trips WHERE id=? LIMIT 1", id).
		Scan(&t.ID, &t.Rows, &t.Columns, &t.CreatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.Trip{}, err
	}
	return t, err
}
