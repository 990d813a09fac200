package middleware // middleware contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-seat-booking/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores its subject as the user id (see UserID).  EventSource clients cannot
// set headers, so the token is also accepted as ?access_token= on GET
// requests.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			sub, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(userIDKey, sub)
			return next(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer "), true
	}
	if c.Request().Method == http.MethodGet {
		if q := c.QueryParam("access_token"); q != "" {
			return q, true
		}
	}
	return "", false
}
