package handler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
)

type fakeResources map[string]*model.Resource

func (f fakeResources) GetByID(_ context.Context, id string) (*model.Resource, error) {
	if r, ok := f[id]; ok {
		return r, nil
	}
	return nil, repository.ErrNotFound
}

func (f fakeResources) List(_ context.Context, t model.BookingType) ([]model.Resource, error) {
	out := []model.Resource{}
	for _, r := range f {
		if t == "" || r.BookingType == t {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeCatalog struct{ cat model.Catalog }

func (f fakeCatalog) Catalog(context.Context, string) (*model.Catalog, error) { return &f.cat, nil }

type fakeSlots struct {
	slots    []model.Slot
	date     time.Time
	duration time.Duration
}

func (f *fakeSlots) Slots(_ context.Context, _ string, date time.Time, d time.Duration) ([]model.Slot, error) {
	f.date, f.duration = date, d
	return f.slots, nil
}

// memStore mimics the MySQL store: dedup on key, capacity one per resource.
type memStore struct {
	mu     sync.Mutex
	byID   map[string]*model.Reservation
	byKey  map[string]string
	nextID int
	now    time.Time
}

func newMemStore(now time.Time) *memStore {
	return &memStore{byID: map[string]*model.Reservation{}, byKey: map[string]string{}, now: now}
}

func (m *memStore) Create(_ context.Context, req model.CreateReservationRequest, key string) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byKey[key]; ok {
		cp := *m.byID[id]
		return &cp, repository.ErrDuplicateRequest
	}
	if req.ResourceID == "missing" {
		return nil, repository.ErrNotFound
	}
	for _, r := range m.byID {
		if r.ResourceID == req.ResourceID && r.Status == model.StatusConfirmed &&
			r.StartTime.Before(req.EndTime) && req.StartTime.Before(r.EndTime) {
			return nil, repository.ErrSlotTaken
		}
	}
	m.nextID++
	id := fmt.Sprintf("res-%d", m.nextID)
	r := &model.Reservation{
		ID: id, ResourceID: req.ResourceID, Title: req.Title, StartTime: req.StartTime, EndTime: req.EndTime,
		Capacity: req.Capacity, UserName: req.UserName, UserEmail: strings.ToLower(req.UserEmail),
		Metadata: req.Metadata, Status: model.StatusConfirmed, IdempotencyKey: key,
	}
	m.byID[id] = r
	m.byKey[key] = id
	cp := *r
	return &cp, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListByEmail(_ context.Context, email string) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Reservation{}
	for _, r := range m.byID {
		if r.UserEmail == email {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) ListByResource(_ context.Context, id string, _, _ time.Time) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Reservation{}
	for _, r := range m.byID {
		if r.ResourceID == id {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) Cancel(_ context.Context, id, email string) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if email != "" && r.UserEmail != email {
		return nil, repository.ErrForbidden
	}
	if r.Status != model.StatusConfirmed || !r.StartTime.After(m.now) {
		return nil, repository.ErrConflict
	}
	r.Status = model.StatusCancelled
	cp := *r
	return &cp, nil
}

type fakeIdem struct {
	mu      sync.Mutex
	entries map[string]string
}

func newFakeIdem() *fakeIdem { return &fakeIdem{entries: map[string]string{}} }

func (f *fakeIdem) Claim(_ context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[key]; ok {
		return false
	}
	f.entries[key] = "-"
	return true
}

func (f *fakeIdem) Release(_ context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries[key] == "-" {
		delete(f.entries, key)
	}
}

func (f *fakeIdem) Remember(_ context.Context, key, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = id
}

func (f *fakeIdem) Lookup(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[key]
	if !ok {
		return "", false, nil
	}
	if v == "-" {
		return "", true, nil
	}
	return v, false, nil
}

type eventLog struct {
	mu  sync.Mutex
	evs []queue.ReservationChanged
}

func (l *eventLog) Publish(_ context.Context, ev queue.ReservationChanged) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evs = append(l.evs, ev)
	return nil
}

func (l *eventLog) Kinds() []queue.ChangeKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]queue.ChangeKind, 0, len(l.evs))
	for _, ev := range l.evs {
		out = append(out, ev.Kind)
	}
	return out
}
