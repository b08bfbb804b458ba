package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// JobStore is the persistence the scheduled jobs need.
type JobStore interface {
	FinishEndedBefore(ctx context.Context, cutoff time.Time) ([]model.Reservation, error)
	ListUpcomingUnreminded(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

// JobService runs periodic reservation maintenance.
type JobService struct {
	store          JobStore
	pub            queue.Publisher
	reminderWindow time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

func NewJobService(store JobStore, pub queue.Publisher, reminderWindow time.Duration, logger *zap.Logger) *JobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{store: store, pub: pub, reminderWindow: reminderWindow, logger: logger, now: time.Now}
}

// FinishEnded marks confirmed reservations whose end has passed as
// finished and publishes a finished event for each.
func (s *JobService) FinishEnded(ctx context.Context) (int, error) {
	now := s.now().UTC()
	ended, err := s.store.FinishEndedBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("finish ended reservations: %w", err)
	}
	for i := range ended {
		ev := queue.NewReservationChanged(queue.ReservationFinished, &ended[i], now)
		if err := s.pub.Publish(ctx, ev); err != nil {
			s.logger.Warn("publish finished event failed", zap.String("reservation_id", ended[i].ID), zap.Error(err))
		}
	}
	if len(ended) > 0 {
		s.logger.Info("finished reservations", zap.Int("count", len(ended)))
	}
	return len(ended), nil
}

// SendReminders claims and publishes a reminder for every confirmed
// reservation starting within the reminder window.  A reservation another
// instance already claimed is skipped.
func (s *JobService) SendReminders(ctx context.Context) (int, error) {
	now := s.now().UTC()
	upcoming, err := s.store.ListUpcomingUnreminded(ctx, now, now.Add(s.reminderWindow))
	if err != nil {
		return 0, fmt.Errorf("list upcoming reservations: %w", err)
	}
	sent := 0
	for i := range upcoming {
		r := &upcoming[i]
		if err := s.store.MarkReminded(ctx, r.ID, now); err != nil {
			if !errors.Is(err, repository.ErrConflict) {
				s.logger.Warn("mark reminded failed", zap.String("reservation_id", r.ID), zap.Error(err))
			}
			continue
		}
		if err := s.pub.Publish(ctx, queue.NewReservationChanged(queue.ReservationReminder, r, now)); err != nil {
			s.logger.Warn("publish reminder failed", zap.String("reservation_id", r.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// Schedule registers both jobs on a new cron scheduler and starts it.
// Stop the returned scheduler on shutdown.
func (s *JobService) Schedule(ctx context.Context, finishSpec, reminderSpec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(finishSpec, func() {
		if _, err := s.FinishEnded(ctx); err != nil {
			s.logger.Error("finish job failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule finish job %q: %w", finishSpec, err)
	}
	if _, err := c.AddFunc(reminderSpec, func() {
		if _, err := s.SendReminders(ctx); err != nil {
			s.logger.Error("reminder job failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule reminder job %q: %w", reminderSpec, err)
	}
	c.Start()
	return c, nil
}
