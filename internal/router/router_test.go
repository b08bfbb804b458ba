package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/handler"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/utils"
)

const secret = "router-secret"

type stubRepo struct{}

func (stubRepo) GetByID(context.Context, string) (*model.Resource, error) {
	return nil, repository.ErrNotFound
}
func (stubRepo) List(context.Context, model.BookingType) ([]model.Resource, error) {
	return []model.Resource{}, nil
}
func (stubRepo) Catalog(context.Context, string) (*model.Catalog, error) { return &model.Catalog{}, nil }
func (stubRepo) Slots(context.Context, string, time.Time, time.Duration) ([]model.Slot, error) {
	return nil, nil
}

type stubStore struct{}

func (stubStore) Create(context.Context, model.CreateReservationRequest, string) (*model.Reservation, error) {
	return nil, repository.ErrSlotTaken
}
func (stubStore) GetByID(context.Context, string) (*model.Reservation, error) {
	return nil, repository.ErrNotFound
}
func (stubStore) ListByEmail(context.Context, string) ([]model.Reservation, error) {
	return []model.Reservation{}, nil
}
func (stubStore) ListByResource(context.Context, string, time.Time, time.Time) ([]model.Reservation, error) {
	return []model.Reservation{}, nil
}
func (stubStore) Cancel(context.Context, string, string) (*model.Reservation, error) {
	return nil, repository.ErrNotFound
}

func newEcho() *echo.Echo {
	e := echo.New()
	rh := handler.NewResourceHandler(stubRepo{}, stubRepo{}, stubRepo{}, time.Hour, nil)
	resh := handler.NewReservationHandler(stubStore{}, nil, queue.NewBus(nil), nil)
	RegisterRoutes(e, nil)
	RegisterPublic(e, rh, middleware.NewResponseCache(config.CacheConfig{}, nil, nil))
	RegisterMember(e, resh, secret, nil)
	RegisterAdmin(e, resh, secret)
	return e
}

func request(e *echo.Echo, method, path, role string) int {
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		tok, _ := utils.NewAccessToken(secret, "u", "u@example.org", "U", role, time.Hour)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRoutes(t *testing.T) {
	e := newEcho()
	cases := []struct {
		method, path, role string
		want               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/v1/resources", "", http.StatusOK},
		{http.MethodGet, "/v1/resources/x", "", http.StatusNotFound},
		{http.MethodGet, "/v1/resources/x/services", "", http.StatusNotFound},
		{http.MethodGet, "/v1/resources/x/slots?date=2025-03-01", "", http.StatusNotFound},
		{http.MethodGet, "/v1/my-reservations", "", http.StatusUnauthorized},
		{http.MethodGet, "/v1/my-reservations", utils.RoleMember, http.StatusOK},
		{http.MethodGet, "/v1/my-reservations", "GUEST", http.StatusForbidden},
		{http.MethodDelete, "/v1/reservations/x", utils.RoleMember, http.StatusNotFound},
		{http.MethodGet, "/v1/admin/resources/x/reservations", utils.RoleMember, http.StatusForbidden},
		{http.MethodGet, "/v1/admin/resources/x/reservations", utils.RoleAdmin, http.StatusOK},
		{http.MethodDelete, "/v1/admin/reservations/x", utils.RoleAdmin, http.StatusNotFound},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, request(e, tc.method, tc.path, tc.role), "%s %s as %q", tc.method, tc.path, tc.role)
	}
	assert.Equal(t, http.StatusBadRequest, request(e, http.MethodPost, "/v1/reservations", utils.RoleMember))
}
