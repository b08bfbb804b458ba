package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/model"
)

// ResourceHandler serves the public browse endpoints: resources, their
// services and staff, and slot availability.
type ResourceHandler struct {
	Resources       ResourceReader
	Catalog         CatalogReader
	Slots           SlotSource
	DefaultDuration time.Duration
	Logger          *zap.Logger
}

// NewResourceHandler panics if a dependency is nil.
func NewResourceHandler(resources ResourceReader, catalog CatalogReader, slots SlotSource, def time.Duration, logger *zap.Logger) *ResourceHandler {
	if resources == nil || catalog == nil || slots == nil {
		panic("nil dependency passed to NewResourceHandler")
	}
	if def <= 0 {
		def = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceHandler{Resources: resources, Catalog: catalog, Slots: slots, DefaultDuration: def, Logger: logger}
}

// ListResources handles GET /v1/resources?type=.
func (h *ResourceHandler) ListResources(c echo.Context) error {
	var t model.BookingType
	if q := c.QueryParam("type"); q != "" {
		parsed, err := model.ParseBookingType(q)
		if err != nil {
			return jsonError(c, http.StatusBadRequest, "invalid type")
		}
		t = parsed
	}
	list, err := h.Resources.List(c.Request().Context(), t)
	if err != nil {
		h.Logger.Error("list resources", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "database error")
	}
	return c.JSON(http.StatusOK, list)
}

// GetResource handles GET /v1/resources/:id.
func (h *ResourceHandler) GetResource(c echo.Context) error {
	res, err := h.Resources.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		status, msg := errorStatus(err)
		return jsonError(c, status, msg)
	}
	return c.JSON(http.StatusOK, res)
}

// ListServices handles GET /v1/resources/:id/services.  It returns the
// services and staff offered on the resource.
func (h *ResourceHandler) ListServices(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := h.Resources.GetByID(ctx, id); err != nil {
		status, msg := errorStatus(err)
		return jsonError(c, status, msg)
	}
	cat, err := h.Catalog.Catalog(ctx, id)
	if err != nil {
		h.Logger.Error("load catalog", zap.String("resource_id", id), zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "database error")
	}
	return c.JSON(http.StatusOK, cat)
}

// ListSlots handles GET /v1/resources/:id/slots?date=YYYY-MM-DD.  The
// length of each slot comes from duration_minutes or duration_hours.
func (h *ResourceHandler) ListSlots(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	res, err := h.Resources.GetByID(ctx, id)
	if err != nil {
		status, msg := errorStatus(err)
		return jsonError(c, status, msg)
	}
	loc := res.Zone()
	date, err := time.ParseInLocation(model.DateLayout, c.QueryParam("date"), loc)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	duration, err := parseDuration(c, h.DefaultDuration)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}
	slots, err := h.Slots.Slots(ctx, id, date, duration)
	if err != nil {
		h.Logger.Error("compute slots", zap.String("resource_id", id), zap.Error(err))
		status, msg := errorStatus(err)
		return jsonError(c, status, msg)
	}
	views := make([]model.SlotView, 0, len(slots))
	for _, s := range slots {
		views = append(views, model.NewSlotView(s, loc))
	}
	return c.JSON(http.StatusOK, views)
}
