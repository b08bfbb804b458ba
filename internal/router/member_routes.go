package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/handler"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/utils"
)

// RegisterMember registers member endpoints under /v1.  All routes require
// a valid JWT with the MEMBER or ADMIN role.  Reservation creation is
// additionally rate limited.
func RegisterMember(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleMember, utils.RoleAdmin),
	)
	if limiter != nil {
		g.POST("/reservations", h.Create, limiter)
	} else {
		g.POST("/reservations", h.Create)
	}
	g.GET("/my-reservations", h.ListMine)
	g.GET("/reservations/:id", h.Get)
	g.DELETE("/reservations/:id", h.Cancel)
}
