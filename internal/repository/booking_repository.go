package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/trip-seat-booking/internal/database"
	"github.com/iliyamo/trip-seat-booking/internal/model"
)

const bookingColumns = `id, user_id, seat_id, trip_id, created_at, confirmed_at, recovered`

// BookingRepo is the append-only booking ledger.  Rows are inserted once and
// never updated or deleted.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

func scanBooking(sc rowScanner) (model.Booking, error) {
	var b model.Booking
	if err := sc.Scan(&b.ID, &b.UserID, &b.SeatID, &b.TripID, &b.CreatedAt, &b.ConfirmedAt, &b.Recovered); err != nil {
		return model.Booking{}, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.ConfirmedAt = b.ConfirmedAt.UTC()
	return b, nil
}

// Append records b and returns it with ID and CreatedAt filled in.  A second
// booking for the same trip and seat yields ErrBookingExists.
func (r *BookingRepo) Append(ctx context.Context, b model.Booking) (model.Booking, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES (?,?,?,?,?,?,?)`,
		b.ID, b.UserID, b.SeatID, b.TripID, b.CreatedAt.UTC(), b.ConfirmedAt.UTC(), b.Recovered)
	if err != nil {
		if isDuplicate(err) {
			return model.Booking{}, ErrBookingExists
		}
		return model.Booking{}, err
	}
	return b, nil
}

// FindLatestByUser returns the most recently confirmed booking of a user on
// a trip.
func (r *BookingRepo) FindLatestByUser(ctx context.Context, tripID, userID string) (model.Booking, error) {
	q := `SELECT ` + bookingColumns + `
	      FROM bookings
	      WHERE trip_id = ? AND user_id = ?
	      ORDER BY confirmed_at DESC, created_at DESC
	      LIMIT 1`
	return r.one(ctx, q, tripID, userID)
}

// FindBySeat returns the booking recorded for a seat.
func (r *BookingRepo) FindBySeat(ctx context.Context, tripID, seatID string) (model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE trip_id = ? AND seat_id = ? LIMIT 1`
	return r.one(ctx, q, tripID, seatID)
}

// FindByID returns a booking by id.
func (r *BookingRepo) FindByID(ctx context.Context, id string) (model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? LIMIT 1`
	return r.one(ctx, q, id)
}

func (r *BookingRepo) one(ctx context.Context, q string, args ...any) (model.Booking, error) {
	b, err := scanBooking(database.Conn(ctx, r.db).QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, err
}
