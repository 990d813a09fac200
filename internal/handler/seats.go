package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/trip-seat-booking/internal/booking"
	"github.com/iliyamo/trip-seat-booking/internal/feed"
	"github.com/iliyamo/trip-seat-booking/internal/repository"
)

// Subscriber opens a seat map feed for a trip.
type Subscriber interface {
	Subscribe(ctx context.Context, tripID string) (<-chan feed.Snapshot, error)
}

// SeatHandler serves the seat map and the lock lifecycle of one trip.
type SeatHandler struct {
	Registry  *booking.Registry
	Locks     *booking.LockManager
	Users     UserStore
	Feed      Subscriber
	Heartbeat time.Duration
	Now       func() time.Time
}

func NewSeatHandler(reg *booking.Registry, locks *booking.LockManager, users UserStore, f Subscriber) *SeatHandler {
	return &SeatHandler{
		Registry:  reg,
		Locks:     locks,
		Users:     users,
		Feed:      f,
		Heartbeat: 15 * time.Second,
		Now:       time.Now,
	}
}

type lockResp struct {
	Seat        seatView  `json:"seat"`
	ExpiresAt   time.Time `json:"expires_at"`
	RemainingMs int64     `json:"remaining_ms"`
	Countdown   string    `json:"countdown"`
}

// List returns every seat of the trip ordered by row then column.
func (h *SeatHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	seats, err := h.Registry.ListAll(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"trip_id": h.Registry.TripID(),
		"seats":   seatViews(seats, uid, h.Now()),
	})
}

// Lock acquires a temporary lock on a seat for the caller.
func (h *SeatHandler) Lock(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx := c.Request().Context()

	lookup, cancel := context.WithTimeout(ctx, dbTimeout)
	user, err := h.Users.GetByID(lookup, uid)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return unauthorized(c)
		}
		return writeError(c, fmt.Errorf("load user: %w: %w", booking.ErrStoreUnavailable, err))
	}

	seat, err := h.Locks.Acquire(ctx, c.Param("id"), user)
	if err != nil {
		return writeError(c, err)
	}
	now := h.Now()
	return c.JSON(http.StatusCreated, lockResp{
		Seat:        newSeatView(seat, uid, now),
		ExpiresAt:   *seat.LockDeadline,
		RemainingMs: booking.Remaining(*seat.LockDeadline, now).Milliseconds(),
		Countdown:   booking.FormatCountdown(*seat.LockDeadline, now),
	})
}

// Cancel releases the caller's lock.
func (h *SeatHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	seat, err := h.Locks.Cancel(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"seat": newSeatView(seat, uid, h.Now())})
}

// Confirm turns the caller's lock into a booking.
func (h *SeatHandler) Confirm(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	b, err := h.Locks.Confirm(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"booking": b})
}

// Stream pushes the seat map as server-sent events: one "snapshot" event on
// connect and one after every change, with comment heartbeats in between.
func (h *SeatHandler) Stream(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx := c.Request().Context()
	snaps, err := h.Feed.Subscribe(ctx, h.Registry.TripID())
	if err != nil {
		return writeError(c, fmt.Errorf("subscribe: %w: %w", booking.ErrStoreUnavailable, err))
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()

	log := logrus.WithFields(logrus.Fields{"user_id": uid, "trip_id": h.Registry.TripID()})
	log.Debug("stream: subscribed")
	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			if err := writeSnapshot(res, snap, uid, h.Now()); err != nil {
				log.WithError(err).Debug("stream: write failed")
				return nil
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}

type snapshotEvent struct {
	TripID string     `json:"trip_id"`
	Seq    uint64     `json:"seq"`
	At     time.Time  `json:"at"`
	Seats  []seatView `json:"seats"`
}

func writeSnapshot(res *echo.Response, snap feed.Snapshot, userID string, now time.Time) error {
	data, err := json.Marshal(snapshotEvent{
		TripID: snap.TripID,
		Seq:    snap.Seq,
		At:     snap.At,
		Seats:  seatViews(snap.Seats, userID, now),
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "id: %d\nevent: snapshot\ndata: %s\n\n", snap.Seq, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}

