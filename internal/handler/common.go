package handler // handler contains the HTTP handlers of the booking API

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/trip-seat-booking/internal/booking"
	"github.com/iliyamo/trip-seat-booking/internal/middleware"
	"github.com/iliyamo/trip-seat-booking/internal/model"
	"github.com/iliyamo/trip-seat-booking/internal/repository"
)

// UserStore is the user persistence used by the handlers.
type UserStore interface {
	Create(ctx context.Context, in repository.NewUser, cost int) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

const dbTimeout = 5 * time.Second

var errNoUser = errors.New("missing user in context")

// getUserID returns the id set by the JWT middleware.
func getUserID(c echo.Context) (string, error) {
	if id := middleware.UserID(c); id != "" {
		return id, nil
	}
	return "", errNoUser
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// writeError maps a booking outcome to its HTTP response.
func writeError(c echo.Context, err error) error {
	if d, ok := booking.DenialOf(err); ok && errors.Is(err, booking.ErrComplianceViolation) {
		body := echo.Map{"error": "compliance_violation", "reason": d.Reason, "message": d.Error()}
		if d.Neighbor != "" {
			body["neighbor"] = d.Neighbor
		}
		return c.JSON(http.StatusForbidden, body)
	}
	switch {
	case errors.Is(err, booking.ErrSeatNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "seat_not_found"})
	case errors.Is(err, booking.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking_not_found"})
	case errors.Is(err, booking.ErrSeatUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat_unavailable", "message": err.Error()})
	case errors.Is(err, booking.ErrNotLockHolder):
		return c.JSON(http.StatusConflict, echo.Map{"error": "not_lock_holder"})
	case errors.Is(err, booking.ErrLockExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "lock_expired"})
	case errors.Is(err, booking.ErrStoreUnavailable):
		logrus.WithError(err).WithField("path", c.Request().URL.Path).Error("handler: store unavailable")
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store_unavailable"})
	}
	logrus.WithError(err).WithField("path", c.Request().URL.Path).Error("handler: unexpected error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// seatView is the client representation of a seat.  Holder ids of other users
// are not exposed; Mine tells the caller whether the lock or booking is theirs.
type seatView struct {
	ID          string                 `json:"id"`
	Row         int                    `json:"row"`
	Column      int                    `json:"column"`
	Number      string                 `json:"number"`
	Gender      model.GenderConstraint `json:"gender_constraint"`
	Status      model.SeatStatus       `json:"status"`
	Mine        bool                   `json:"mine,omitempty"`
	ExpiresAt   *time.Time             `json:"expires_at,omitempty"`
	RemainingMs int64                  `json:"remaining_ms,omitempty"`
	Version     uint32                 `json:"version"`
}

func newSeatView(s model.Seat, userID string, now time.Time) seatView {
	v := seatView{
		ID:      s.ID,
		Row:     s.Row,
		Column:  s.Column,
		Number:  s.Number,
		Gender:  s.Gender,
		Status:  s.Status,
		Version: s.Version,
	}
	switch s.Status {
	case model.SeatLocked:
		v.Mine = s.LockHolder == userID
		if v.Mine && s.LockDeadline != nil {
			v.ExpiresAt = s.LockDeadline
			v.RemainingMs = booking.Remaining(*s.LockDeadline, now).Milliseconds()
		}
	case model.SeatBooked:
		v.Mine = s.BookingHolder == userID
	}
	return v
}

func seatViews(seats []model.Seat, userID string, now time.Time) []seatView {
	out := make([]seatView, 0, len(seats))
	for _, s := range seats {
		out = append(out, newSeatView(s, userID, now))
	}
	return out
}
