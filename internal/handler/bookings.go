package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-seat-booking/internal/booking"
)

// BookingHandler exposes the caller's bookings.
type BookingHandler struct {
	Locks *booking.LockManager
}

func NewBookingHandler(locks *booking.LockManager) *BookingHandler {
	return &BookingHandler{Locks: locks}
}

// Latest returns the caller's most recent booking.
func (h *BookingHandler) Latest(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	b, err := h.Locks.FindLatestByUser(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Get returns one booking.  Bookings of other users are reported as missing.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	b, err := h.Locks.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if b.UserID != uid {
		return writeError(c, booking.ErrBookingNotFound)
	}
	return c.JSON(http.StatusOK, b)
}
