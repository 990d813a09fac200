package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Logger writes one structured access log line per request.
func Logger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			entry := logrus.WithFields(logrus.Fields{
				"method":    c.Request().Method,
				"path":      c.Request().URL.Path,
				"route":     c.Path(),
				"status":    status,
				"duration":  time.Since(start).String(),
				"client_ip": c.RealIP(),
				"user_id":   UserID(c),
			})
			switch {
			case status >= 500:
				entry.Error("http: request failed")
			case status >= 400:
				entry.Warn("http: request rejected")
			default:
				entry.Info("http: request processed")
			}
			return nil
		}
	}
}
