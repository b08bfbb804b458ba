package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/booking"
	"github.com/iliyamo/studio-booking/internal/model"
)

// fakeAPI serves the handful of endpoints the client calls.
type fakeAPI struct {
	mu        sync.Mutex
	keys      []string
	requests  []model.CreateReservationRequest
	failFirst int
	taken     bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/resources/r1/slots", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-03-01", r.URL.Query().Get("date"))
		start := time.Date(2025, time.March, 1, 14, 0, 0, 0, time.UTC)
		views := []model.SlotView{
			model.NewSlotView(model.Slot{Start: start, End: start.Add(time.Hour), Available: true}, time.UTC),
			model.NewSlotView(model.Slot{Start: start.Add(time.Hour), End: start.Add(2 * time.Hour), Available: false}, time.UTC),
		}
		_ = json.NewEncoder(w).Encode(views)
	})
	mux.HandleFunc("GET /v1/resources/r1/services", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(model.Catalog{Services: []model.Service{{ID: "s1", Name: "Session", DurationMinutes: 60, PriceCents: 2500}}})
	})
	mux.HandleFunc("GET /v1/resources/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})
	mux.HandleFunc("POST /v1/reservations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req model.CreateReservationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		defer f.mu.Unlock()
		f.keys = append(f.keys, r.Header.Get("Idempotency-Key"))
		f.requests = append(f.requests, req)
		if f.taken {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"time slot is no longer available"}`))
			return
		}
		if f.failFirst > 0 {
			f.failFirst--
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(model.Reservation{ID: "res-1", ResourceID: req.ResourceID, StartTime: req.StartTime, EndTime: req.EndTime, Status: model.StatusConfirmed})
	})
	mux.HandleFunc("DELETE /v1/reservations/res-1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", "tok", WithLogger(zap.NewNop()), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:8080", "")
	assert.Error(t, err)
}

func TestSlotsDecodesViews(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	slots, err := c.Slots(context.Background(), "r1", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), time.Hour)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].Available)
	assert.False(t, slots[1].Available)
}

func TestErrorsBecomeAPIErrors(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	_, err := c.Resource(context.Background(), "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not found", apiErr.Message)
	assert.False(t, errors.Is(err, booking.ErrSlotUnavailable))

	assert.True(t, errors.Is(&APIError{Status: http.StatusConflict}, booking.ErrSlotUnavailable))
}

func TestCreateReservationRequiresKey(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	_, err := c.CreateReservation(context.Background(), model.CreateReservationRequest{}, "")
	assert.Error(t, err)
}

func TestCancel(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	assert.NoError(t, c.Cancel(context.Background(), "res-1"))
}

func newSession(t *testing.T, c *Client) *booking.Session {
	t.Helper()
	s := booking.NewSession(booking.NewCoordinator(c, nil, zap.NewNop()), booking.SessionConfig{
		ResourceID:  "r1",
		BookingType: model.BookingEquipment,
		Booker:      booking.Booker{Name: "Ada", Email: "ada@example.org"},
	})
	cat, err := c.Services(context.Background(), "r1")
	require.NoError(t, err)
	require.NoError(t, s.SetServices(cat.Services))
	require.NoError(t, s.SetDate(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)))
	_, err = s.Refresh(context.Background(), c)
	require.NoError(t, err)
	return s
}

func TestSessionOverHTTP(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	s := newSession(t, c)

	require.ErrorIs(t, s.SetTime("15:00"), booking.ErrSlotUnavailable)
	require.NoError(t, s.SetTime("14:00"))
	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "res-1", res.Reservation.ID)
	require.Len(t, api.requests, 1)
	assert.Equal(t, time.Date(2025, time.March, 1, 15, 0, 0, 0, time.UTC), api.requests[0].EndTime.UTC())
	assert.True(t, s.Closed())
}

func TestSessionRetryReusesKey(t *testing.T) {
	api := &fakeAPI{failFirst: 1}
	c := newTestClient(t, api)
	s := newSession(t, c)
	require.NoError(t, s.SetTime("14:00"))

	_, err := s.Submit(context.Background())
	require.Error(t, err)
	_, err = s.Submit(context.Background())
	require.ErrorIs(t, err, booking.ErrAvailabilityStale)

	_, err = s.Refresh(context.Background(), c)
	require.NoError(t, err)
	_, err = s.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, api.keys, 2)
	assert.Equal(t, api.keys[0], api.keys[1])
}

func TestSessionConflictMapsToSlotUnavailable(t *testing.T) {
	api := &fakeAPI{taken: true}
	c := newTestClient(t, api)
	s := newSession(t, c)
	require.NoError(t, s.SetTime("14:00"))
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
	assert.Equal(t, booking.StateReady, s.State())
}

func TestIdempotencyConflictIsNotSlotConflict(t *testing.T) {
	err := &APIError{Status: http.StatusConflict, Message: "Idempotency-Key already used"}
	assert.False(t, errors.Is(err, booking.ErrSlotUnavailable))
}
