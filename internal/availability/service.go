package availability

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// ResourceLookup loads a resource by ID.
type ResourceLookup interface {
	GetByID(ctx context.Context, id string) (*model.Resource, error)
}

// BusyLister lists the confirmed intervals of a resource within a range.
type BusyLister interface {
	BusyIntervals(ctx context.Context, resourceID string, from, to time.Time) ([]repository.Interval, error)
}

// Service answers availability queries from the database.  It implements
// booking.AvailabilitySource.
type Service struct {
	resources ResourceLookup
	busy      BusyLister
	step      time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires the repositories used to compute slots.  step is the
// spacing between candidate starts; zero means one slot per duration.
func NewService(resources ResourceLookup, busy BusyLister, step time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{resources: resources, busy: busy, step: step, logger: logger, now: time.Now}
}

// Resource returns the resource slots are computed for.
func (s *Service) Resource(ctx context.Context, resourceID string) (*model.Resource, error) {
	return s.resources.GetByID(ctx, resourceID)
}

// Slots returns the slots of resourceID on date's calendar day, read in
// the resource's own time zone.
func (s *Service) Slots(ctx context.Context, resourceID string, date time.Time, duration time.Duration) ([]model.Slot, error) {
	res, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("load resource %s: %w", resourceID, err)
	}
	loc := res.Zone()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	from, to := day, day.AddDate(0, 0, 1)

	busy, err := s.busy.BusyIntervals(ctx, resourceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load busy intervals: %w", err)
	}
	slots := BuildSlots(day, Window{OpensAt: res.OpensAt, ClosesAt: res.ClosesAt}, duration, s.step, busy, res.Capacity, s.now())
	s.logger.Debug("computed slots",
		zap.String("resource_id", resourceID),
		zap.String("date", day.Format(model.DateLayout)),
		zap.Duration("duration", duration),
		zap.Int("busy", len(busy)),
		zap.Int("slots", len(slots)))
	return slots, nil
}
