package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxName   = "name"
	CtxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the token's subject, email, name and role into the request
// context.  The provided secret must match the one used by the issuer.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(CtxUserID, claims.Subject)
			c.Set(CtxEmail, claims.Email)
			c.Set(CtxName, claims.Name)
			c.Set(CtxRole, claims.Role)
			return next(c)
		}
	}
}
