package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/studio-booking/internal/model"
)

// State is the position of a Session in the selection workflow.
type State int

const (
	StateEmpty State = iota
	StateDateChosen
	StateTimeChosen
	StateServiceChosen
	StateReady
	StateSubmitting
	StateSubmitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateDateChosen:
		return "date_chosen"
	case StateTimeChosen:
		return "time_chosen"
	case StateServiceChosen:
		return "service_chosen"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// defaultQueryDuration is used to query availability before a service
// has been chosen.
const defaultQueryDuration = time.Hour

// SessionConfig configures a new Session.
type SessionConfig struct {
	ResourceID  string
	BookingType model.BookingType
	Booker      Booker
	// Location is the zone dates and times are interpreted in.  Defaults to UTC.
	Location *time.Location
	// OnTransition, when set, is called after every state change.  It is
	// invoked without the session lock held.
	OnTransition func(from, to State)
}

type transition struct{ from, to State }

// Session owns one booking draft from open to submit or close.  All
// methods are safe for concurrent use; at most one submission is in
// flight at any time.
type Session struct {
	mu sync.Mutex

	coord        *Coordinator
	booker       Booker
	loc          *time.Location
	onTransition func(from, to State)
	newKey       func() string

	draft    Draft
	services []model.Service
	staff    []model.Staff
	avail    AvailabilitySet
	// fetched is set once availability for the current date has been
	// installed.  An unfetched set is never read as permissive.
	fetched bool

	state      State
	submitting bool
	submitted  bool
	closed     bool
	stale      bool
	key        string
	lastErr    error
}

// NewSession opens an empty draft for cfg.ResourceID.
func NewSession(coord *Coordinator, cfg SessionConfig) *Session {
	if coord == nil {
		panic("nil coordinator passed to NewSession")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Session{
		coord:        coord,
		booker:       cfg.Booker,
		loc:          loc,
		onTransition: cfg.OnTransition,
		newKey:       func() string { return uuid.NewString() },
		draft:        Draft{ResourceID: cfg.ResourceID, BookingType: cfg.BookingType},
		state:        StateEmpty,
	}
}

// State returns the current workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Draft returns a copy of the current selection.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draft
	if d.Service != nil {
		svc := *d.Service
		d.Service = &svc
	}
	if d.Staff != nil {
		st := *d.Staff
		d.Staff = &st
	}
	return d
}

// Services returns the service list the selection is validated against.
func (s *Session) Services() []model.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Service(nil), s.services...)
}

// Availability returns the slots currently installed for the chosen date.
func (s *Session) Availability() AvailabilitySet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avail
}

// Err returns the error from the last failed submission, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Closed reports whether the session was closed or submitted.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// IdempotencyKey returns the key the current draft will be (or was last)
// submitted under.  It is empty until the first submission attempt and
// is reset whenever the selection changes.
func (s *Session) IdempotencyKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// EndTime returns the implied end of the reservation.  ok is false until
// date, time and service are all chosen.
func (s *Session) EndTime() (end time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.draft.Complete() {
		return time.Time{}, false
	}
	end, err := s.draft.End()
	return end, err == nil
}

// SetBookingType switches the kind of booking.  Services, staff, date and
// time are only meaningful for a given type, so a change clears them.
func (s *Session) SetBookingType(t model.BookingType) error {
	if !t.Valid() {
		return fmt.Errorf("unknown booking type %q", t)
	}
	return s.mutate(func() error {
		if s.draft.BookingType == t {
			return nil
		}
		s.draft.BookingType = t
		s.draft.Service = nil
		s.draft.Staff = nil
		s.draft.Date = time.Time{}
		s.draft.Time = ""
		s.services = nil
		s.staff = nil
		s.avail = AvailabilitySet{}
		s.fetched = false
		s.key = ""
		return nil
	})
}

// SetServices replaces the list of offered services.  When the selected
// service is absent from the new list the first service is selected
// instead, so the draft never points at a removed service.
func (s *Session) SetServices(list []model.Service) error {
	return s.mutate(func() error {
		s.services = append([]model.Service(nil), list...)
		if s.draft.Service != nil {
			for i := range s.services {
				if s.services[i].ID == s.draft.Service.ID {
					svc := s.services[i]
					s.draft.Service = &svc
					return nil
				}
			}
		}
		s.key = ""
		if len(s.services) == 0 {
			s.draft.Service = nil
			return nil
		}
		svc := s.services[0]
		s.draft.Service = &svc
		return nil
	})
}

// SetStaffList replaces the staff offered for the resource.  A selected
// staff member missing from the new list falls back to no preference.
func (s *Session) SetStaffList(list []model.Staff) error {
	return s.mutate(func() error {
		s.staff = append([]model.Staff(nil), list...)
		if s.draft.Staff == nil {
			return nil
		}
		for _, st := range s.staff {
			if st.ID == s.draft.Staff.ID && st.Available {
				return nil
			}
		}
		s.draft.Staff = nil
		s.key = ""
		return nil
	})
}

// SelectService chooses a service from the current list.  The chosen
// time is kept; the implied end time follows the new duration.
func (s *Session) SelectService(id string) error {
	return s.mutate(func() error {
		for i := range s.services {
			if s.services[i].ID == id {
				svc := s.services[i]
				if s.draft.Service == nil || s.draft.Service.ID != id {
					s.key = ""
				}
				s.draft.Service = &svc
				return nil
			}
		}
		return fmt.Errorf("%w: %q", ErrUnknownService, id)
	})
}

// SetStaff chooses a staff member by id.  An empty id means no preference.
func (s *Session) SetStaff(id string) error {
	return s.mutate(func() error {
		if id == "" {
			if s.draft.Staff != nil {
				s.key = ""
			}
			s.draft.Staff = nil
			return nil
		}
		for _, st := range s.staff {
			if st.ID != id {
				continue
			}
			if !st.Available {
				return fmt.Errorf("%w: %s", ErrStaffUnavailable, st.Name)
			}
			chosen := st
			s.draft.Staff = &chosen
			s.key = ""
			return nil
		}
		return fmt.Errorf("%w: unknown staff %q", ErrStaffUnavailable, id)
	})
}

// SetDate picks the booking date.  Time slots are date specific, so the
// time and the installed availability are cleared; the service is kept.
func (s *Session) SetDate(d time.Time) error {
	if d.IsZero() {
		return ErrNoDate
	}
	day := midnight(d, s.loc)
	return s.mutate(func() error {
		if !s.draft.Date.IsZero() && s.draft.Date.Equal(day) {
			return nil
		}
		s.draft.Date = day
		s.draft.Time = ""
		s.avail = AvailabilitySet{}
		s.fetched = false
		s.key = ""
		return nil
	})
}

// SetTime picks the start time on the chosen date.  Availability for the
// date must have been installed and the slot must be available in it.
func (s *Session) SetTime(hhmm string) error {
	return s.mutate(func() error {
		if s.draft.Date.IsZero() {
			return ErrNoDate
		}
		if !s.fetched {
			return ErrAvailabilityNotLoaded
		}
		candidate := s.draft
		candidate.Time = hhmm
		start, err := candidate.Start()
		if err != nil {
			return err
		}
		dur := defaultQueryDuration
		if s.draft.Service != nil {
			dur = s.draft.Service.Duration()
		}
		if !s.avail.IsAvailable(model.Slot{Start: start, End: start.Add(dur)}) {
			return fmt.Errorf("%w: %s %s", ErrSlotUnavailable, s.draft.Date.Format(model.DateLayout), hhmm)
		}
		if s.draft.Time != hhmm {
			s.key = ""
		}
		s.draft.Time = hhmm
		return nil
	})
}

// SetAvailability installs slots for the chosen date and clears the
// stale marker left by a failed submission.
func (s *Session) SetAvailability(slots []model.Slot) error {
	return s.mutate(func() error {
		s.avail = NewAvailabilitySet(slots)
		s.fetched = true
		s.stale = false
		return nil
	})
}

// Refresh re-queries src for the chosen date and installs the result.
// A result for a date that was changed meanwhile is discarded.
func (s *Session) Refresh(ctx context.Context, src AvailabilitySource) ([]model.Slot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.draft.Date.IsZero() {
		s.mu.Unlock()
		return nil, ErrNoDate
	}
	resourceID, day := s.draft.ResourceID, s.draft.Date
	dur := defaultQueryDuration
	if s.draft.Service != nil {
		dur = s.draft.Service.Duration()
	}
	s.mu.Unlock()

	slots, err := src.Slots(ctx, resourceID, day, dur)
	if err != nil {
		return nil, fmt.Errorf("query availability: %w", err)
	}

	err = s.mutate(func() error {
		if !s.draft.Date.Equal(day) {
			return nil
		}
		s.avail = NewAvailabilitySet(slots)
		s.fetched = true
		s.stale = false
		return nil
	})
	return slots, err
}

// Submit sends the completed draft through the coordinator.  Only one
// submission runs at a time; a failure keeps the selections, records the
// error and requires availability to be refreshed before trying again.
// Success clears the draft and closes the session.
func (s *Session) Submit(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case s.submitting:
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	case !s.draft.Complete():
		s.mu.Unlock()
		return nil, ErrDraftIncomplete
	case s.stale:
		s.mu.Unlock()
		return nil, ErrAvailabilityStale
	}
	if s.key == "" {
		s.key = s.newKey()
	}
	draft, key, booker := s.draft, s.key, s.booker
	s.submitting = true
	ts := s.settleLocked(nil)
	s.mu.Unlock()
	s.fire(ts)

	res, err := s.coord.Submit(ctx, draft, booker, key)

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		s.lastErr = err
		s.stale = true
		ts = s.settleLocked([]transition{{StateSubmitting, StateFailed}})
		s.mu.Unlock()
		s.fire(ts)
		return nil, err
	}
	s.lastErr = nil
	s.submitted = true
	s.closed = true
	s.draft = Draft{ResourceID: s.draft.ResourceID}
	s.key = ""
	ts = s.settleLocked(nil)
	s.mu.Unlock()
	s.fire(ts)
	return res, nil
}

// Close discards the draft.  A submission that is already in flight
// cannot be cancelled, so closing during one is refused.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.draft = Draft{ResourceID: s.draft.ResourceID}
	s.services, s.staff = nil, nil
	s.avail = AvailabilitySet{}
	s.fetched = false
	s.key = ""
	ts := s.settleLocked(nil)
	s.mu.Unlock()
	s.fire(ts)
	return nil
}

// mutate applies fn under the lock after checking the session is open,
// then reports any resulting state change.
func (s *Session) mutate(fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	err := fn()
	ts := s.settleLocked(nil)
	s.mu.Unlock()
	s.fire(ts)
	return err
}

func (s *Session) derivedLocked() State {
	switch {
	case s.submitted:
		return StateSubmitted
	case s.submitting:
		return StateSubmitting
	case s.closed:
		return StateEmpty
	case s.draft.Complete():
		return StateReady
	case s.draft.Service != nil:
		return StateServiceChosen
	case s.draft.Time != "":
		return StateTimeChosen
	case !s.draft.Date.IsZero():
		return StateDateChosen
	}
	return StateEmpty
}

// settleLocked moves s.state to the derived state, optionally passing
// through the given intermediate transitions first.
func (s *Session) settleLocked(via []transition) []transition {
	ts := via
	from := s.state
	if len(via) > 0 {
		from = via[len(via)-1].to
	}
	to := s.derivedLocked()
	if to != from {
		ts = append(ts, transition{from, to})
	}
	s.state = to
	return ts
}

func (s *Session) fire(ts []transition) {
	if s.onTransition == nil {
		return
	}
	for _, t := range ts {
		s.onTransition(t.from, t.to)
	}
}
