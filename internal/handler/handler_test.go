package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/utils"
)

const testSecret = "handler-secret"

var testNow = time.Date(2025, time.February, 20, 9, 0, 0, 0, time.UTC)

type fixture struct {
	e     *echo.Echo
	store *memStore
	idem  *fakeIdem
	log   *eventLog
	slots *fakeSlots
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		e:     echo.New(),
		store: newMemStore(testNow),
		idem:  newFakeIdem(),
		log:   &eventLog{},
		slots: &fakeSlots{},
	}
	resources := fakeResources{
		"r1": {ID: "r1", Name: "Studio A", BookingType: model.BookingSpace, Capacity: 1, Timezone: "UTC", OpensAt: 540, ClosesAt: 1020},
		"r2": {ID: "r2", Name: "Camera", BookingType: model.BookingEquipment, Capacity: 1, Timezone: "Europe/Rome", OpensAt: 540, ClosesAt: 1020},
	}
	catalog := fakeCatalog{cat: model.Catalog{
		Services: []model.Service{{ID: "s1", ResourceID: "r1", Name: "Session", PriceCents: 2500, DurationMinutes: 60}},
		Staff:    []model.Staff{{ID: "p1", Name: "Grace", Available: true}},
	}}
	rh := NewResourceHandler(resources, catalog, f.slots, time.Hour, zap.NewNop())
	res := NewReservationHandler(f.store, f.idem, f.log, zap.NewNop())
	res.now = func() time.Time { return testNow }

	f.e.GET("/healthz", Health(nil))
	f.e.GET("/v1/resources", rh.ListResources)
	f.e.GET("/v1/resources/:id", rh.GetResource)
	f.e.GET("/v1/resources/:id/services", rh.ListServices)
	f.e.GET("/v1/resources/:id/slots", rh.ListSlots)

	m := f.e.Group("/v1", middleware.JWTAuth(testSecret))
	m.POST("/reservations", res.Create)
	m.GET("/my-reservations", res.ListMine)
	m.GET("/reservations/:id", res.Get)
	m.DELETE("/reservations/:id", res.Cancel)
	a := f.e.Group("/v1/admin", middleware.JWTAuth(testSecret), middleware.RequireRole(utils.RoleAdmin))
	a.GET("/resources/:id/reservations", res.AdminListByResource)
	a.DELETE("/reservations/:id", res.AdminCancel)
	return f
}

func token(t *testing.T, email, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, "sub-"+email, email, "Member "+email, role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

type call struct {
	method, path, body, token, key string
}

func (f *fixture) do(c call) *httptest.ResponseRecorder {
	var req *http.Request
	if c.body != "" {
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(c.method, c.path, nil)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.key != "" {
		req.Header.Set(IdempotencyHeader, c.key)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

const createBody = `{"resource_id":"r1","title":"Session","start_time":"2025-03-01T14:00:00Z","end_time":"2025-03-01T15:00:00Z","metadata":{"service_id":"s1"}}`

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListResourcesFiltersByType(t *testing.T) {
	f := newFixture(t)
	rec := f.do(call{method: http.MethodGet, path: "/v1/resources?type=equipment"})
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Resource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "r2", list[0].ID)

	assert.Equal(t, http.StatusBadRequest, f.do(call{method: http.MethodGet, path: "/v1/resources?type=boat"}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(call{method: http.MethodGet, path: "/v1/resources/zz"}).Code)
}

func TestListServices(t *testing.T) {
	f := newFixture(t)
	rec := f.do(call{method: http.MethodGet, path: "/v1/resources/r1/services"})
	require.Equal(t, http.StatusOK, rec.Code)
	var cat model.Catalog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cat))
	assert.Equal(t, "s1", cat.Services[0].ID)
	assert.Equal(t, "Grace", cat.Staff[0].Name)
}

func TestListSlotsRendersLocalViews(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2025, time.March, 1, 13, 0, 0, 0, time.UTC)
	f.slots.slots = []model.Slot{{Start: start, End: start.Add(90 * time.Minute), Available: true}}

	rec := f.do(call{method: http.MethodGet, path: "/v1/resources/r2/slots?date=2025-03-01&duration_hours=1.5"})
	require.Equal(t, http.StatusOK, rec.Code)
	var views []model.SlotView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "2025-03-01", views[0].Date)
	assert.Equal(t, "14:00", views[0].Time) // Rome is UTC+1 in March
	assert.Equal(t, 1.5, views[0].DurationHours)
	assert.Equal(t, 90*time.Minute, f.slots.duration)
	assert.Equal(t, "Europe/Rome", f.slots.date.Location().String())
}

func TestListSlotsValidation(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(call{method: http.MethodGet, path: "/v1/resources/r1/slots?date=01-03-2025"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(call{method: http.MethodGet, path: "/v1/resources/r1/slots?date=2025-03-01&duration_minutes=-5"}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(call{method: http.MethodGet, path: "/v1/resources/nope/slots?date=2025-03-01"}).Code)

	rec := f.do(call{method: http.MethodGet, path: "/v1/resources/r1/slots?date=2025-03-01"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Hour, f.slots.duration)
}

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)
	tok := token(t, "ada@example.org", utils.RoleMember)

	rec := f.do(call{method: http.MethodPost, path: "/v1/reservations", body: createBody, token: tok, key: "k-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res model.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "ada@example.org", res.UserEmail)
	assert.Equal(t, "Member ada@example.org", res.UserName)
	assert.Equal(t, 1, res.Capacity)
	assert.Equal(t, []queue.ChangeKind{queue.ReservationCreated}, f.log.Kinds())

	// Same key again: replayed, no new event.
	rec = f.do(call{method: http.MethodPost, path: "/v1/reservations", body: createBody, token: tok, key: "k-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.Len(t, f.log.Kinds(), 1)

	// Different key, same slot: taken.
	rec = f.do(call{method: http.MethodPost, path: "/v1/reservations", body: createBody, token: tok, key: "k-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	_, pending, _ := f.idem.Lookup(context.Background(), "k-2")
	assert.False(t, pending, "failed claim must be released")
}

func TestCreateReservationKeyReusedByOtherMember(t *testing.T) {
	f := newFixture(t)
	rec := f.do(call{method: http.MethodPost, path: "/v1/reservations", body: createBody, token: token(t, "ada@example.org", utils.RoleMember), key: "k-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(call{method: http.MethodPost, path: "/v1/reservations", body: createBody, token: token(t, "bob@example.org", utils.RoleMember), key: "k-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateReservationInFlightKey(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.idem.Claim(context.Background(), "busy"))
	rec := f.do(call{method: http.MethodPost, path: "/v1/reservations", body: createBody, token: token(t, "ada@example.org", utils.RoleMember), key: "busy"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.log.Kinds())
}

func TestCreateReservationValidation(t *testing.T) {
	f := newFixture(t)
	tok := token(t, "ada@example.org", utils.RoleMember)
	cases := map[string]call{
		"no token":     {method: http.MethodPost, path: "/v1/reservations", body: createBody, key: "k"},
		"no key":       {method: http.MethodPost, path: "/v1/reservations", body: createBody, token: tok},
		"bad json":     {method: http.MethodPost, path: "/v1/reservations", body: `{`, token: tok, key: "k"},
		"empty range":  {method: http.MethodPost, path: "/v1/reservations", body: `{"resource_id":"r1","title":"x","start_time":"2025-03-01T14:00:00Z","end_time":"2025-03-01T14:00:00Z"}`, token: tok, key: "k"},
		"past":         {method: http.MethodPost, path: "/v1/reservations", body: `{"resource_id":"r1","title":"x","start_time":"2025-01-01T14:00:00Z","end_time":"2025-01-01T15:00:00Z"}`, token: tok, key: "k"},
		"unknown room": {method: http.MethodPost, path: "/v1/reservations", body: strings.Replace(createBody, `"r1"`, `"missing"`, 1), token: tok, key: "k"},
	}
	want := map[string]int{
		"no token": http.StatusUnauthorized, "no key": http.StatusBadRequest, "bad json": http.StatusBadRequest,
		"empty range": http.StatusBadRequest, "past": http.StatusBadRequest, "unknown room": http.StatusNotFound,
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want[name], f.do(c).Code)
		})
	}
}

func TestMemberReadAndCancel(t *testing.T) {
	f := newFixture(t)
	ada := token(t, "ada@example.org", utils.RoleMember)
	bob := token(t, "bob@example.org", utils.RoleMember)
	rec := f.do(call{method: http.MethodPost, path: "/v1/reservations", body: createBody, token: ada, key: "k-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var res model.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	assert.Equal(t, http.StatusOK, f.do(call{method: http.MethodGet, path: "/v1/reservations/" + res.ID, token: ada}).Code)
	assert.Equal(t, http.StatusForbidden, f.do(call{method: http.MethodGet, path: "/v1/reservations/" + res.ID, token: bob}).Code)

	rec = f.do(call{method: http.MethodGet, path: "/v1/my-reservations", token: bob})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusForbidden, f.do(call{method: http.MethodDelete, path: "/v1/reservations/" + res.ID, token: bob}).Code)
	assert.Equal(t, http.StatusNoContent, f.do(call{method: http.MethodDelete, path: "/v1/reservations/" + res.ID, token: ada}).Code)
	assert.Equal(t, http.StatusConflict, f.do(call{method: http.MethodDelete, path: "/v1/reservations/" + res.ID, token: ada}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(call{method: http.MethodDelete, path: "/v1/reservations/nope", token: ada}).Code)
	assert.Equal(t, []queue.ChangeKind{queue.ReservationCreated, queue.ReservationCancelled}, f.log.Kinds())
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)
	ada := token(t, "ada@example.org", utils.RoleMember)
	admin := token(t, "ops@example.org", utils.RoleAdmin)
	rec := f.do(call{method: http.MethodPost, path: "/v1/reservations", body: createBody, token: ada, key: "k-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var res model.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	assert.Equal(t, http.StatusForbidden, f.do(call{method: http.MethodGet, path: "/v1/admin/resources/r1/reservations", token: ada}).Code)
	rec = f.do(call{method: http.MethodGet, path: "/v1/admin/resources/r1/reservations?from=2025-03-01&to=2025-03-01", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
	assert.Equal(t, http.StatusBadRequest, f.do(call{method: http.MethodGet, path: "/v1/admin/resources/r1/reservations?from=x", token: admin}).Code)

	assert.Equal(t, http.StatusOK, f.do(call{method: http.MethodGet, path: "/v1/reservations/" + res.ID, token: admin}).Code)
	assert.Equal(t, http.StatusNoContent, f.do(call{method: http.MethodDelete, path: "/v1/admin/reservations/" + res.ID, token: admin}).Code)
}
