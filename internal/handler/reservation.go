package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/utils"
)

// IdempotencyHeader carries the client's idempotency key on creation.
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 64

// ReservationHandler serves member and admin reservation endpoints.  All
// methods assume JWT authentication has already been performed by
// middleware.
type ReservationHandler struct {
	Store  ReservationStore
	Idem   IdempotencyGuard
	Pub    queue.Publisher
	Logger *zap.Logger
	now    func() time.Time
}

// NewReservationHandler panics if store or pub is nil.  idem may be nil,
// in which case the database alone deduplicates requests.
func NewReservationHandler(store ReservationStore, idem IdempotencyGuard, pub queue.Publisher, logger *zap.Logger) *ReservationHandler {
	if store == nil || pub == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationHandler{Store: store, Idem: idem, Pub: pub, Logger: logger, now: time.Now}
}

func (h *ReservationHandler) publish(c echo.Context, kind queue.ChangeKind, r *model.Reservation) {
	ev := queue.NewReservationChanged(kind, r, h.now())
	if err := h.Pub.Publish(c.Request().Context(), ev); err != nil {
		h.Logger.Warn("publish reservation event failed",
			zap.String("kind", string(kind)),
			zap.String("reservation_id", r.ID),
			zap.Error(err))
	}
}

func validateCreate(req *model.CreateReservationRequest) error {
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	req.Title = strings.TrimSpace(req.Title)
	switch {
	case req.ResourceID == "":
		return errors.New("resource_id is required")
	case req.Title == "":
		return errors.New("title is required")
	case req.StartTime.IsZero() || req.EndTime.IsZero():
		return errors.New("start_time and end_time are required")
	case !req.EndTime.After(req.StartTime):
		return errors.New("end_time must be after start_time")
	case req.Capacity < 0:
		return errors.New("capacity must not be negative")
	}
	if req.Capacity == 0 {
		req.Capacity = 1
	}
	return nil
}

// Create handles POST /v1/reservations.  The Idempotency-Key header is
// required.  A repeated key returns the reservation it created with 200;
// a key still being processed returns 409.  The booker's name and email
// come from the token, not the body.
func (h *ReservationHandler) Create(c echo.Context) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return jsonError(c, http.StatusUnauthorized, "unauthorized")
	}
	key := strings.TrimSpace(c.Request().Header.Get(IdempotencyHeader))
	if key == "" || len(key) > maxIdempotencyKeyLen {
		return jsonError(c, http.StatusBadRequest, "Idempotency-Key header is required")
	}
	var req model.CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}
	if err := validateCreate(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}
	req.UserEmail = id.Email
	if req.UserName == "" {
		req.UserName = id.Name
	}
	if req.StartTime.Before(h.now()) {
		return jsonError(c, http.StatusBadRequest, "start_time is in the past")
	}

	ctx := c.Request().Context()
	if h.Idem != nil && !h.Idem.Claim(ctx, key) {
		prevID, pending, err := h.Idem.Lookup(ctx, key)
		if err == nil && pending {
			return jsonError(c, http.StatusConflict, "a request with this Idempotency-Key is in progress")
		}
		if err == nil && prevID != "" {
			if prev, err := h.Store.GetByID(ctx, prevID); err == nil {
				return h.replay(c, id, prev)
			}
		}
		// Fall through: the database decides.
	}

	res, err := h.Store.Create(ctx, req, key)
	switch {
	case errors.Is(err, repository.ErrDuplicateRequest) && res != nil:
		if h.Idem != nil {
			h.Idem.Remember(ctx, key, res.ID)
		}
		return h.replay(c, id, res)
	case err != nil:
		if h.Idem != nil {
			h.Idem.Release(ctx, key)
		}
		status, msg := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("create reservation", zap.String("resource_id", req.ResourceID), zap.Error(err))
		}
		return jsonError(c, status, msg)
	}
	if h.Idem != nil {
		h.Idem.Remember(ctx, key, res.ID)
	}
	h.publish(c, queue.ReservationCreated, res)
	return c.JSON(http.StatusCreated, res)
}

// replay answers a repeated request with the reservation its key created.
// A key reused by a different member is refused.
func (h *ReservationHandler) replay(c echo.Context, id middleware.Identity, res *model.Reservation) error {
	if !strings.EqualFold(res.UserEmail, id.Email) {
		return jsonError(c, http.StatusConflict, "Idempotency-Key already used")
	}
	c.Response().Header().Set("Idempotent-Replayed", "true")
	return c.JSON(http.StatusOK, res)
}

// ListMine handles GET /v1/my-reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return jsonError(c, http.StatusUnauthorized, "unauthorized")
	}
	list, err := h.Store.ListByEmail(c.Request().Context(), id.Email)
	if err != nil {
		h.Logger.Error("list reservations", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "database error")
	}
	return c.JSON(http.StatusOK, list)
}

// Get handles GET /v1/reservations/:id.  Members may only read their own
// reservations; admins may read any.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return jsonError(c, http.StatusUnauthorized, "unauthorized")
	}
	res, err := h.Store.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		status, msg := errorStatus(err)
		return jsonError(c, status, msg)
	}
	if id.Role != utils.RoleAdmin && !strings.EqualFold(res.UserEmail, id.Email) {
		return jsonError(c, http.StatusForbidden, "forbidden")
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles DELETE /v1/reservations/:id for the reservation's owner.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return jsonError(c, http.StatusUnauthorized, "unauthorized")
	}
	return h.cancel(c, id.Email)
}

// AdminCancel handles DELETE /v1/admin/reservations/:id.
func (h *ReservationHandler) AdminCancel(c echo.Context) error {
	return h.cancel(c, "")
}

func (h *ReservationHandler) cancel(c echo.Context, email string) error {
	res, err := h.Store.Cancel(c.Request().Context(), c.Param("id"), email)
	if err != nil {
		status, msg := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("cancel reservation", zap.String("reservation_id", c.Param("id")), zap.Error(err))
		}
		return jsonError(c, status, msg)
	}
	h.publish(c, queue.ReservationCancelled, res)
	return c.NoContent(http.StatusNoContent)
}

// AdminListByResource handles GET /v1/admin/resources/:id/reservations.
// Optional from and to query parameters (YYYY-MM-DD, UTC) bound the range.
func (h *ReservationHandler) AdminListByResource(c echo.Context) error {
	var from, to time.Time
	var err error
	if v := c.QueryParam("from"); v != "" {
		if from, err = time.Parse(model.DateLayout, v); err != nil {
			return jsonError(c, http.StatusBadRequest, "from must be YYYY-MM-DD")
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if to, err = time.Parse(model.DateLayout, v); err != nil {
			return jsonError(c, http.StatusBadRequest, "to must be YYYY-MM-DD")
		}
		to = to.AddDate(0, 0, 1)
	}
	list, err := h.Store.ListByResource(c.Request().Context(), c.Param("id"), from, to)
	if err != nil {
		h.Logger.Error("list resource reservations", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "database error")
	}
	return c.JSON(http.StatusOK, list)
}
