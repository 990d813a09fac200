package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trip-seat-booking/internal/booking"
	"github.com/iliyamo/trip-seat-booking/internal/client"
	"github.com/iliyamo/trip-seat-booking/internal/handler/handlertest"
	"github.com/iliyamo/trip-seat-booking/internal/model"
	"github.com/iliyamo/trip-seat-booking/internal/session"
)

func newServer(t *testing.T) (*handlertest.Stack, *httptest.Server) {
	t.Helper()
	st, err := handlertest.NewStack()
	require.NoError(t, err)
	srv := httptest.NewServer(st.Echo)
	t.Cleanup(srv.Close)
	return st, srv
}

func signedUp(t *testing.T, srv *httptest.Server, email, gender string) *client.Client {
	t.Helper()
	ctx := context.Background()
	c := client.New(srv.URL, nil)
	_, err := c.Register(ctx, client.RegisterInput{Email: email, Password: "secret1", Name: "N", Gender: gender})
	require.NoError(t, err)
	_, err = c.Login(ctx, email, "secret1")
	require.NoError(t, err)
	return c
}

func TestRegisterLeavesClientSignedOut(t *testing.T) {
	st, srv := newServer(t)
	c := client.New(srv.URL, nil)

	p, err := c.Register(context.Background(), client.RegisterInput{
		Email: "new@example.com", Password: "secret1", Name: "New", Gender: "female",
	})
	require.NoError(t, err)
	assert.Equal(t, model.GenderFemale, p.Gender)
	assert.Equal(t, session.SignedOut, c.Session.State())
	assert.Empty(t, c.Tokens().Access)
	assert.Zero(t, st.Tokens.Active(p.ID), "signup session must be revoked")

	_, err = c.Login(context.Background(), "new@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, session.SignedIn, c.Session.State())
	assert.Equal(t, p.ID, c.Session.User().ID)
}

func TestRegisterFailureAbortsSignup(t *testing.T) {
	_, srv := newServer(t)
	c := client.New(srv.URL, nil)
	_, err := c.Register(context.Background(), client.RegisterInput{Email: "x@example.com", Password: "secret1", Name: "X", Gender: "robot"})

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, session.SignedOut, c.Session.State())
}

func TestLockConfirmFlow(t *testing.T) {
	st, srv := newServer(t)
	ctx := context.Background()
	c := signedUp(t, srv, "m@example.com", "male")

	seats, err := c.Seats(ctx)
	require.NoError(t, err)
	require.Len(t, seats, 20)
	assert.Equal(t, "1-1", seats[0].Number)

	lock, err := c.Lock(ctx, st.SeatID(1, 1))
	require.NoError(t, err)
	assert.Equal(t, "02:00", lock.Countdown)
	assert.True(t, lock.Seat.Mine)
	assert.True(t, st.Now.Add(2*time.Minute).Equal(lock.ExpiresAt))

	b, err := c.Confirm(ctx, st.SeatID(1, 1))
	require.NoError(t, err)
	assert.Equal(t, st.SeatID(1, 1), b.SeatID)

	got, err := c.BookingOrLatest(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	got, err = c.BookingOrLatest(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestErrorsMatchOutcomes(t *testing.T) {
	st, srv := newServer(t)
	ctx := context.Background()
	female := signedUp(t, srv, "f@example.com", "female")
	male := signedUp(t, srv, "m@example.com", "male")

	_, err := female.Lock(ctx, st.SeatID(1, 1))
	assert.ErrorIs(t, err, booking.ErrComplianceViolation)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "gender_mismatch", apiErr.Reason)

	_, err = male.Lock(ctx, st.SeatID(3, 3))
	require.NoError(t, err)
	_, err = female.Lock(ctx, st.SeatID(3, 3))
	assert.ErrorIs(t, err, booking.ErrSeatUnavailable)
	_, err = female.Cancel(ctx, st.SeatID(3, 3))
	assert.ErrorIs(t, err, booking.ErrNotLockHolder)

	_, err = male.Latest(ctx)
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)

	anon := client.New(srv.URL, nil)
	_, err = anon.Seats(ctx)
	assert.ErrorIs(t, err, client.ErrNotSignedIn)
}

func TestExpiredAccessTokenIsRefreshed(t *testing.T) {
	_, srv := newServer(t)
	ctx := context.Background()
	c := signedUp(t, srv, "r@example.com", "male")

	tokens := c.Tokens()
	tokens.Access = "stale"
	_, err := c.Resume(ctx, tokens)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", c.Tokens().Access)
	assert.NotEqual(t, tokens.Refresh, c.Tokens().Refresh)
}

func TestLogout(t *testing.T) {
	st, srv := newServer(t)
	ctx := context.Background()
	c := signedUp(t, srv, "l@example.com", "female")
	id := c.Session.User().ID

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, session.SignedOut, c.Session.State())
	assert.Zero(t, st.Tokens.Active(id))
	assert.ErrorIs(t, c.Logout(ctx), client.ErrNotSignedIn)
}

func TestWatch(t *testing.T) {
	st, srv := newServer(t)
	c := signedUp(t, srv, "w@example.com", "male")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan client.Snapshot, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(s client.Snapshot) error {
			got <- s
			if s.Seq == 2 {
				return errStop
			}
			return nil
		})
	}()

	first := <-got
	assert.EqualValues(t, 1, first.Seq)
	assert.Len(t, first.Seats, 20)

	_, err := st.Locks.Acquire(context.Background(), st.SeatID(2, 3), model.User{ID: "m1", Gender: model.GenderMale})
	require.NoError(t, err)

	second := <-got
	assert.Equal(t, model.SeatLocked, second.Seats[6].Status)
	assert.False(t, second.Seats[6].Mine)
	assert.ErrorIs(t, <-done, errStop)
}

var errStop = errors.New("stop")
