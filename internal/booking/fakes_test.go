package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/queue"
)

type storeCall struct {
	req model.CreateReservationRequest
	key string
}

// fakeStore records every creation request.  When gate is set each call
// blocks until a value is received from it.
type fakeStore struct {
	mu      sync.Mutex
	calls   []storeCall
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeStore) CreateReservation(ctx context.Context, req model.CreateReservationRequest, key string) (*model.Reservation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, storeCall{req: req, key: key})
	err, gate, entered := f.err, f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &model.Reservation{
		ID:             uuid.NewString(),
		ResourceID:     req.ResourceID,
		Title:          req.Title,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		UserEmail:      req.UserEmail,
		UserName:       req.UserName,
		Status:         model.StatusConfirmed,
		IdempotencyKey: key,
	}, nil
}

func (f *fakeStore) Calls() []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storeCall(nil), f.calls...)
}

func (f *fakeStore) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeSource struct {
	slots []model.Slot
	err   error
	calls int
}

func (f *fakeSource) Slots(ctx context.Context, resourceID string, date time.Time, d time.Duration) ([]model.Slot, error) {
	f.calls++
	return f.slots, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationChanged
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev queue.ReservationChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

var (
	serviceA  = model.Service{ID: "a", Name: "Kiln firing", PriceCents: 2500, DurationMinutes: 60}
	serviceB  = model.Service{ID: "b", Name: "Glaze check", PriceCents: 1000, DurationMinutes: 30}
	serviceS1 = model.Service{ID: "s1", Name: "Camera kit", PriceCents: 0, DurationMinutes: 60}
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func newTestSession(store *fakeStore, pub queue.Publisher) *Session {
	coord := NewCoordinator(store, pub, nil)
	return NewSession(coord, SessionConfig{
		ResourceID:  "r1",
		BookingType: model.BookingEquipment,
		Booker:      Booker{Name: "Ada", Email: "ada@example.org"},
	})
}
