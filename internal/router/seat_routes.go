package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-seat-booking/internal/handler"
	"github.com/iliyamo/trip-seat-booking/internal/middleware"
)

// RegisterSeats registers the seat map, its live stream and the lock
// lifecycle.  Every route requires a JWT; mutations also pass the limiter.
func RegisterSeats(e *echo.Echo, h *handler.SeatHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	limiter = orPass(limiter)
	g := e.Group("/v1/seats", middleware.JWTAuth(jwtSecret))
	g.GET("", h.List)
	g.GET("/stream", h.Stream)
	g.POST("/:id/lock", h.Lock, limiter)
	g.DELETE("/:id/lock", h.Cancel, limiter)
	g.POST("/:id/confirm", h.Confirm, limiter)
}

// RegisterBookings registers the booking lookups.  Only lookups by id go
// through cache, since a booking never changes once written while "latest"
// does.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	cache = orPass(cache)
	g := e.Group("/v1/bookings", middleware.JWTAuth(jwtSecret))
	g.GET("/latest", h.Latest)
	g.GET("/:id", h.Get, cache)
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}
