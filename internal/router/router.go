// Package router registers the HTTP routes of the booking API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/handler"
	"github.com/iliyamo/studio-booking/internal/middleware"
)

// RegisterRoutes registers routes that need neither authentication nor
// caching.  Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterPublic registers the unauthenticated browse endpoints.  Responses
// under /v1/resources/:id are cached per resource and dropped whenever a
// reservation on that resource changes.
func RegisterPublic(e *echo.Echo, h *handler.ResourceHandler, cache *middleware.ResponseCache) {
	e.GET("/v1/resources", h.ListResources)

	g := e.Group("/v1/resources/:id", cache.Middleware(middleware.ScopeByParam("id")))
	g.GET("", h.GetResource)
	g.GET("/services", h.ListServices)
	g.GET("/slots", h.ListSlots)
}
