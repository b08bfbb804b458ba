package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/handler"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/utils"
)

// RegisterAdmin registers reservation management for administrators under
// /v1/admin.
func RegisterAdmin(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)
	g.GET("/resources/:id/reservations", h.AdminListByResource)
	g.DELETE("/reservations/:id", h.AdminCancel)
}
