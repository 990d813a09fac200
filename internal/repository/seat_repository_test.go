package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trip-seat-booking/internal/database"
	"github.com/iliyamo/trip-seat-booking/internal/model"
)

var seatCols = []string{
	"id", "trip_id", "seat_row", "seat_col", "number", "gender", "status",
	"lock_holder", "lock_deadline", "booking_holder", "version", "updated_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestSeatRepoListByTrip(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	deadline := now.Add(2 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("FROM seats")).
		WithArgs("trip-1").
		WillReturnRows(sqlmock.NewRows(seatCols).
			AddRow("s1", "trip-1", 1, 1, "1-1", "male", "available", nil, nil, nil, 0, now).
			AddRow("s2", "trip-1", 1, 2, "1-2", "any", "locked", "u1", deadline, nil, 4, now).
			AddRow("s3", "trip-1", 1, 3, "1-3", "female", "booked", nil, nil, "u2", 7, now))

	seats, err := NewSeatRepo(db).ListByTrip(context.Background(), "trip-1")
	require.NoError(t, err)
	require.Len(t, seats, 3)

	assert.Equal(t, model.MaleOnly, seats[0].Gender)
	assert.Nil(t, seats[0].LockDeadline)
	assert.Equal(t, "u1", seats[1].LockHolder)
	require.NotNil(t, seats[1].LockDeadline)
	assert.True(t, deadline.Equal(*seats[1].LockDeadline))
	assert.Equal(t, uint32(4), seats[1].Version)
	assert.Equal(t, model.SeatBooked, seats[2].Status)
	assert.Equal(t, "u2", seats[2].BookingHolder)
}

func TestSeatRepoGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE id = ?")).
		WithArgs("nope", "trip-1").
		WillReturnRows(sqlmock.NewRows(seatCols))

	_, err := NewSeatRepo(db).GetByID(context.Background(), "trip-1", "nope")
	assert.ErrorIs(t, err, ErrSeatNotFound)
}

func TestSeatRepoCompareAndSet(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	deadline := now.Add(2 * time.Minute)
	observed := model.Seat{ID: "s1", TripID: "trip-1", Status: model.SeatAvailable, Version: 3}
	tr := model.NewTransition(observed, model.LockedState("u1", deadline), now)

	t.Run("applied", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE seats")).
			WithArgs("locked", "u1", sqlmock.AnyArg(), nil, sqlmock.AnyArg(), "s1", "trip-1", "available", 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE id = ?")).
			WithArgs("s1", "trip-1").
			WillReturnRows(sqlmock.NewRows(seatCols).
				AddRow("s1", "trip-1", 1, 1, "1-1", "any", "locked", "u1", deadline, nil, 4, now))

		seat, err := NewSeatRepo(db).CompareAndSet(context.Background(), "trip-1", tr)
		require.NoError(t, err)
		assert.Equal(t, model.SeatLocked, seat.Status)
		assert.Equal(t, uint32(4), seat.Version)
	})

	t.Run("stale version", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE seats")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE id = ?")).
			WithArgs("s1", "trip-1").
			WillReturnRows(sqlmock.NewRows(seatCols).
				AddRow("s1", "trip-1", 1, 1, "1-1", "any", "locked", "u9", deadline, nil, 4, now))

		_, err := NewSeatRepo(db).CompareAndSet(context.Background(), "trip-1", tr)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("missing seat", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE seats")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE id = ?")).
			WillReturnRows(sqlmock.NewRows(seatCols))

		_, err := NewSeatRepo(db).CompareAndSet(context.Background(), "trip-1", tr)
		assert.ErrorIs(t, err, ErrSeatNotFound)
	})

	t.Run("invalid target state", func(t *testing.T) {
		db, _ := newMock(t)
		bad := tr
		bad.To = model.SeatState{Status: model.SeatLocked}
		_, err := NewSeatRepo(db).CompareAndSet(context.Background(), "trip-1", bad)
		assert.Error(t, err)
	})
}

func TestTripRepoInitTrip(t *testing.T) {
	trip := model.Trip{ID: "trip-1", Rows: 1, Columns: 2}
	seats := []model.Seat{
		{ID: "a", TripID: "trip-1", Row: 1, Column: 1, Number: "1-1", Gender: model.MaleOnly},
		{ID: "b", TripID: "trip-1", Row: 1, Column: 2, Number: "1-2", Gender: model.Unrestricted},
	}

	t.Run("new trip seeds seats", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO trips")).
			WithArgs("trip-1", 1, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO seats")).
			WithArgs("a", "trip-1", 1, 1, "1-1", "male", "available",
				"b", "trip-1", 1, 2, "1-2", "any", "available").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		repo := NewTripRepo(db, NewSeatRepo(db), database.NewTxManager(db))
		created, err := repo.InitTrip(context.Background(), trip, seats)
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("existing trip is left alone", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO trips")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		repo := NewTripRepo(db, NewSeatRepo(db), database.NewTxManager(db))
		created, err := repo.InitTrip(context.Background(), trip, seats)
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("seat insert failure rolls back", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO trips")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO seats")).
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		repo := NewTripRepo(db, NewSeatRepo(db), database.NewTxManager(db))
		_, err := repo.InitTrip(context.Background(), trip, seats)
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})
}

func TestBookingRepoAppend(t *testing.T) {
	confirmed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("assigns id", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
			WithArgs(sqlmock.AnyArg(), "u1", "s1", "trip-1", sqlmock.AnyArg(), confirmed, false).
			WillReturnResult(sqlmock.NewResult(0, 1))

		b, err := NewBookingRepo(db).Append(context.Background(), model.Booking{
			UserID: "u1", SeatID: "s1", TripID: "trip-1", ConfirmedAt: confirmed,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, b.ID)
		assert.False(t, b.CreatedAt.IsZero())
	})

	t.Run("duplicate seat", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

		_, err := NewBookingRepo(db).Append(context.Background(), model.Booking{
			UserID: "u1", SeatID: "s1", TripID: "trip-1", ConfirmedAt: confirmed,
		})
		assert.ErrorIs(t, err, ErrBookingExists)
	})
}

func TestBookingRepoFindLatestByUser(t *testing.T) {
	db, mock := newMock(t)
	cols := []string{"id", "user_id", "seat_id", "trip_id", "created_at", "confirmed_at", "recovered"}
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY confirmed_at DESC")).
		WithArgs("trip-1", "u1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("b2", "u1", "s2", "trip-1", ts, ts, false))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY confirmed_at DESC")).
		WithArgs("trip-1", "u2").
		WillReturnRows(sqlmock.NewRows(cols))

	repo := NewBookingRepo(db)
	b, err := repo.FindLatestByUser(context.Background(), "trip-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "b2", b.ID)

	_, err = repo.FindLatestByUser(context.Background(), "trip-1", "u2")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestUserRepo(t *testing.T) {
	db, mock := newMock(t)
	cols := []string{"id", "email", "name", "gender", "password_hash", "is_active", "created_at", "updated_at"}
	ts := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "ann@example.com", "Ann", "female", sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", "ann@example.com", "Ann", "female", "h", true, ts, ts))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(cols))

	repo := NewUserRepo(db)
	_, err := repo.Create(context.Background(), NewUser{
		Email: " Ann@Example.com ", Name: "Ann", Gender: model.GenderFemale, Password: "pw",
	}, 4)
	assert.ErrorIs(t, err, ErrEmailExists)

	u, err := repo.GetByEmail(context.Background(), "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.GenderFemale, u.Gender)

	_, err = repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTokenRepoValidateRefresh(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cols := []string{"user_id", "expires_at", "revoked_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).WithArgs("live").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", now.Add(time.Hour), nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).WithArgs("revoked").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", now.Add(time.Hour), now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).WithArgs("old").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", now.Add(-time.Second), nil))

	repo := NewTokenRepo(db)
	repo.now = func() time.Time { return now }

	uid, err := repo.ValidateRefresh(context.Background(), "live")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	_, err = repo.ValidateRefresh(context.Background(), "revoked")
	assert.ErrorIs(t, err, ErrRefreshInvalid)
	_, err = repo.ValidateRefresh(context.Background(), "old")
	assert.ErrorIs(t, err, ErrRefreshInvalid)
}
