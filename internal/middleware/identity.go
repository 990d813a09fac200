package middleware

import "github.com/labstack/echo/v4"

// userIDKey is the echo context key holding the authenticated user's id.
const userIDKey = "user_id"

// UserID returns the authenticated user's id, or "" on public routes.
func UserID(c echo.Context) string {
	if v, ok := c.Get(userIDKey).(string); ok {
		return v
	}
	return ""
}

// keyUser is UserID with a placeholder for anonymous callers, for use in
// cache and rate limit keys.
func keyUser(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
