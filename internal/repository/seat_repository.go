package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"
	"fmt"

	"github.com/iliyamo/trip-seat-booking/internal/database"
	"github.com/iliyamo/trip-seat-booking/internal/model"
)

// seatColumns lists the columns scanned by scanSeat, in order.
const seatColumns = `id, trip_id, seat_row, seat_col, number, gender, status,
	lock_holder, lock_deadline, booking_holder, version, updated_at`

// SeatRepo is the authoritative store of seat state.  Every mutation goes
// through CompareAndSet, which succeeds only if the row still has the status
// and version the caller observed.  Methods join a transaction carried by the
// context (see database.TxManager).
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(sc rowScanner) (model.Seat, error) {
	var (
		s             model.Seat
		gender        string
		status        string
		lockHolder    sql.NullString
		lockDeadline  sql.NullTime
		bookingHolder sql.NullString
	)
	if err := sc.Scan(
		&s.ID, &s.TripID, &s.Row, &s.Column, &s.Number, &gender, &status,
		&lockHolder, &lockDeadline, &bookingHolder, &s.Version, &s.UpdatedAt,
	); err != nil {
		return model.Seat{}, err
	}
	s.Gender = model.GenderConstraint(gender)
	s.Status = model.SeatStatus(status)
	s.LockHolder = lockHolder.String
	s.BookingHolder = bookingHolder.String
	if lockDeadline.Valid {
		d := lockDeadline.Time.UTC()
		s.LockDeadline = &d
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// ListByTrip retrieves all seats of a trip ordered by row then column.  The
// ordering is part of the contract: clients render the grid from it.
func (r *SeatRepo) ListByTrip(ctx context.Context, tripID string) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + `
	      FROM seats
	      WHERE trip_id = ?
	      ORDER BY seat_row, seat_col`
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, q, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID retrieves a seat of a trip by its id.
func (r *SeatRepo) GetByID(ctx context.Context, tripID, seatID string) (model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats WHERE id = ? AND trip_id = ?`
	s, err := scanSeat(database.Conn(ctx, r.db).QueryRowContext(ctx, q, seatID, tripID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Seat{}, ErrSeatNotFound
		}
		return model.Seat{}, err
	}
	return s, nil
}

// CompareAndSet applies t atomically: the row is updated only while its
// status and version still equal t.FromStatus and t.FromVersion, and the
// version is incremented on success.  It returns ErrConflict when the row
// changed since it was observed and ErrSeatNotFound when it does not exist.
// The returned seat is read back after the update.
func (r *SeatRepo) CompareAndSet(ctx context.Context, tripID string, t model.Transition) (model.Seat, error) {
	if err := t.To.Validate(); err != nil {
		return model.Seat{}, err
	}
	const q = `UPDATE seats
	           SET status = ?, lock_holder = ?, lock_deadline = ?, booking_holder = ?,
	               version = version + 1, updated_at = ?
	           WHERE id = ? AND trip_id = ? AND status = ? AND version = ?`
	var deadline any
	if t.To.LockDeadline != nil {
		deadline = t.To.LockDeadline.UTC()
	}
	conn := database.Conn(ctx, r.db)
	res, err := conn.ExecContext(ctx, q,
		string(t.To.Status), nullString(t.To.LockHolder), deadline, nullString(t.To.BookingHolder),
		t.At.UTC(),
		t.SeatID, tripID, string(t.FromStatus), t.FromVersion,
	)
	if err != nil {
		return model.Seat{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Seat{}, err
	}
	if n == 0 {
		// Distinguish a lost race from a seat that does not exist.
		if _, err := r.GetByID(ctx, tripID, t.SeatID); err != nil {
			return model.Seat{}, err
		}
		return model.Seat{}, ErrConflict
	}
	return r.GetByID(ctx, tripID, t.SeatID)
}

// CreateBulk inserts the seats of a trip in a single statement.  The seat IDs
// must already be assigned.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO seats (id, trip_id, seat_row, seat_col, number, gender, status) VALUES `
	args := make([]any, 0, len(seats)*7)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?)"
		args = append(args, s.ID, s.TripID, s.Row, s.Column, s.Number, string(s.Gender), string(model.SeatAvailable))
	}
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert seats: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
