package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// subjectID converts a decoded "sub" claim into a user id.  JSON numbers
// decode as float64; string subjects are accepted too.
func subjectID(v any) (uint64, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(uint64(t)) {
			return 0, false
		}
		return uint64(t), true
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}

// UserID returns the authenticated user id set by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	uid, ok := c.Get(ContextUserID).(uint64)
	return uid, ok && uid > 0
}

// currentUserID renders the caller for rate-limit and cache keys; it is
// "anon" when no user is authenticated.
func currentUserID(c echo.Context) string {
	if uid, ok := UserID(c); ok {
		return strconv.FormatUint(uid, 10)
	}
	return "anon"
}
