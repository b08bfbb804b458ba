package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/booking"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/queue"
)

type bookFlags struct {
	kind    string
	date    string
	clock   string
	service string
	staff   string
	name    string
	email   string
	retries int
}

func newBookCmd(opts *options) *cobra.Command {
	var f bookFlags
	c := &cobra.Command{
		Use:   "book RESOURCE_ID",
		Short: "Reserve a time slot",
		Long: `Reserve a time slot on a resource.

The selection is checked against the slots the server offers before it is
sent.  A request that fails for a reason other than the slot being taken
is retried with the same idempotency key, so at most one reservation is
ever created.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBook(cmd, opts, args[0], f)
		},
	}
	c.Flags().StringVar(&f.kind, "type", string(model.BookingEquipment), "booking type")
	c.Flags().StringVar(&f.date, "date", "", "date as YYYY-MM-DD")
	c.Flags().StringVar(&f.clock, "time", "", "start time as HH:mm")
	c.Flags().StringVar(&f.service, "service", "", "service id (defaults to the first offered)")
	c.Flags().StringVar(&f.staff, "staff", "", "staff id (defaults to no preference)")
	c.Flags().StringVar(&f.name, "name", "", "name to book under")
	c.Flags().StringVar(&f.email, "email", "", "email to book under")
	c.Flags().IntVar(&f.retries, "retry", 0, "resubmit this many times after a transient failure")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("time")
	return c
}

func runBook(cmd *cobra.Command, opts *options, resourceID string, f bookFlags) error {
	kind, err := model.ParseBookingType(f.kind)
	if err != nil {
		return err
	}
	cl, err := opts.client()
	if err != nil {
		return err
	}
	logger := opts.logger()
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	res, err := cl.Resource(ctx, resourceID)
	if err != nil {
		return err
	}
	loc := res.Zone()
	day, err := parseDate(f.date, loc)
	if err != nil {
		return fmt.Errorf("--date: %w", err)
	}
	cat, err := cl.Services(ctx, res.ID)
	if err != nil {
		return err
	}

	bus := queue.NewBus(logger)
	bus.Subscribe(func(_ context.Context, ev queue.ReservationChanged) {
		logger.Debug("reservation event", zap.String("kind", string(ev.Kind)), zap.String("reservation_id", ev.ReservationID))
	})
	sess := booking.NewSession(booking.NewCoordinator(cl, bus, logger), booking.SessionConfig{
		ResourceID:  res.ID,
		BookingType: kind,
		Booker:      booking.Booker{Name: f.name, Email: f.email},
		Location:    loc,
		OnTransition: func(from, to booking.State) {
			logger.Debug("session", zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})
	defer sess.Close()

	if err := sess.SetServices(cat.Services); err != nil {
		return err
	}
	if err := sess.SetStaffList(cat.Staff); err != nil {
		return err
	}
	if f.service != "" {
		if err := sess.SelectService(f.service); err != nil {
			return err
		}
	}
	if err := sess.SetStaff(f.staff); err != nil {
		return err
	}
	if err := sess.SetDate(day); err != nil {
		return err
	}
	if _, err := sess.Refresh(ctx, cl); err != nil {
		return err
	}
	if err := sess.SetTime(f.clock); err != nil {
		if errors.Is(err, booking.ErrSlotUnavailable) {
			printAlternatives(cmd.ErrOrStderr(), sess, loc)
		}
		return err
	}

	result, err := submitWithRetry(ctx, sess, cl, f.retries, logger)
	if err != nil {
		if errors.Is(err, booking.ErrSlotUnavailable) {
			if _, rerr := sess.Refresh(ctx, cl); rerr == nil {
				printAlternatives(cmd.ErrOrStderr(), sess, loc)
			}
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "booked %s\n", result.Reservation.ID)
	fmt.Fprintf(out, "  %s %s-%s\n",
		result.Start.In(loc).Format(model.DateLayout),
		result.Start.In(loc).Format(model.ClockLayout),
		result.End.In(loc).Format(model.ClockLayout))
	fmt.Fprintf(out, "  total %s\n", formatCents(result.TotalPriceCents))
	return nil
}

// submitWithRetry submits once and then, for failures other than a taken
// slot, refreshes availability and resubmits under the same key.
func submitWithRetry(ctx context.Context, sess *booking.Session, src booking.AvailabilitySource, retries int, logger *zap.Logger) (*booking.Result, error) {
	result, err := sess.Submit(ctx)
	for attempt := 1; err != nil && attempt <= retries; attempt++ {
		if errors.Is(err, booking.ErrSlotUnavailable) || ctx.Err() != nil {
			break
		}
		logger.Warn("submission failed; retrying",
			zap.Int("attempt", attempt),
			zap.String("idempotency_key", sess.IdempotencyKey()),
			zap.Error(err))
		if _, rerr := sess.Refresh(ctx, src); rerr != nil {
			return nil, rerr
		}
		result, err = sess.Submit(ctx)
	}
	return result, err
}

func printAlternatives(w io.Writer, sess *booking.Session, loc *time.Location) {
	var free []string
	for _, s := range sess.Availability().Slots() {
		if s.Available {
			free = append(free, s.Start.In(loc).Format(model.ClockLayout))
		}
	}
	if len(free) == 0 {
		fmt.Fprintf(w, "no other slots are free that day (%s)\n", loc)
		return
	}
	fmt.Fprintf(w, "free start times (%s): %v\n", loc, free)
}
