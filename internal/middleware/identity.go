package middleware

import "github.com/labstack/echo/v4"

// Identity is the authenticated member behind a request.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

// CurrentIdentity returns the identity JWTAuth stored in the context.  ok
// is false for unauthenticated requests.
func CurrentIdentity(c echo.Context) (Identity, bool) {
	id := Identity{
		UserID: stringValue(c, CtxUserID),
		Email:  stringValue(c, CtxEmail),
		Name:   stringValue(c, CtxName),
		Role:   stringValue(c, CtxRole),
	}
	return id, id.Email != ""
}

// currentUserID returns the subject of the request or "anon".
func currentUserID(c echo.Context) string {
	if v := stringValue(c, CtxUserID); v != "" {
		return v
	}
	return "anon"
}

func stringValue(c echo.Context, key string) string {
	if s, ok := c.Get(key).(string); ok {
		return s
	}
	return ""
}
