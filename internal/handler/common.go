package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// ResourceReader loads bookable resources.
type ResourceReader interface {
	GetByID(ctx context.Context, id string) (*model.Resource, error)
	List(ctx context.Context, t model.BookingType) ([]model.Resource, error)
}

// CatalogReader loads the services and staff offered on a resource.
type CatalogReader interface {
	Catalog(ctx context.Context, resourceID string) (*model.Catalog, error)
}

// SlotSource computes slots for a resource and day.
type SlotSource interface {
	Slots(ctx context.Context, resourceID string, date time.Time, duration time.Duration) ([]model.Slot, error)
}

// ReservationStore persists and queries reservations.
type ReservationStore interface {
	Create(ctx context.Context, req model.CreateReservationRequest, key string) (*model.Reservation, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	ListByEmail(ctx context.Context, email string) ([]model.Reservation, error)
	ListByResource(ctx context.Context, resourceID string, from, to time.Time) ([]model.Reservation, error)
	Cancel(ctx context.Context, id, email string) (*model.Reservation, error)
}

// IdempotencyGuard short-circuits repeated creation requests.
type IdempotencyGuard interface {
	Claim(ctx context.Context, key string) bool
	Release(ctx context.Context, key string)
	Remember(ctx context.Context, key, reservationID string)
	Lookup(ctx context.Context, key string) (id string, pending bool, err error)
}

// errorStatus maps repository errors to an HTTP status and message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrSlotTaken):
		return http.StatusConflict, repository.ErrSlotTaken.Error()
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "reservation can no longer be changed"
	case errors.Is(err, repository.ErrInvalidRequest):
		return http.StatusBadRequest, repository.ErrInvalidRequest.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

// parseDuration reads duration_minutes or duration_hours from the query,
// preferring minutes.  def is used when neither is present.
func parseDuration(c echo.Context, def time.Duration) (time.Duration, error) {
	if v := c.QueryParam("duration_minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 24*60 {
			return 0, errors.New("invalid duration_minutes")
		}
		return time.Duration(n) * time.Minute, nil
	}
	if v := c.QueryParam("duration_hours"); v != "" {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil || h <= 0 || h > 24 {
			return 0, errors.New("invalid duration_hours")
		}
		return time.Duration(h * float64(time.Hour)).Round(time.Minute), nil
	}
	return def, nil
}
