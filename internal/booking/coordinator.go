package booking

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/queue"
)

// Booker identifies who the reservation is made for.
type Booker struct {
	Name  string
	Email string
}

// Result describes a successfully created reservation.
type Result struct {
	Reservation     *model.Reservation
	IdempotencyKey  string
	Start           time.Time
	End             time.Time
	TotalPriceCents int64
}

// Coordinator turns a complete draft into exactly one create-reservation
// request.  It never retries: creation is not idempotent from the
// store's point of view unless the caller reuses the same key.
type Coordinator struct {
	store     ReservationStore
	publisher queue.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewCoordinator wires a coordinator.  publisher may be nil when nobody
// needs to hear about new reservations.
func NewCoordinator(store ReservationStore, publisher queue.Publisher, logger *zap.Logger) *Coordinator {
	if store == nil {
		panic("nil reservation store passed to NewCoordinator")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{store: store, publisher: publisher, logger: logger, now: time.Now}
}

// BuildRequest computes the derived fields for draft: start, end from the
// service duration, and the price of the single service.
func BuildRequest(d Draft, booker Booker) (model.CreateReservationRequest, error) {
	if !d.Complete() {
		return model.CreateReservationRequest{}, ErrDraftIncomplete
	}
	start, err := d.Start()
	if err != nil {
		return model.CreateReservationRequest{}, err
	}
	end, err := d.End()
	if err != nil {
		return model.CreateReservationRequest{}, err
	}
	meta := map[string]string{
		model.MetaBookingType:     string(d.BookingType),
		model.MetaServiceID:       d.Service.ID,
		model.MetaPriceCents:      strconv.FormatInt(d.Service.PriceCents, 10),
		model.MetaDurationMinutes: strconv.Itoa(d.Service.DurationMinutes),
	}
	desc := d.Service.Name
	if d.Staff != nil {
		meta[model.MetaStaffID] = d.Staff.ID
		desc = fmt.Sprintf("%s with %s", d.Service.Name, d.Staff.Name)
	}
	return model.CreateReservationRequest{
		ResourceID:  d.ResourceID,
		Title:       d.Service.Name,
		Description: desc,
		StartTime:   start,
		EndTime:     end,
		Capacity:    1,
		UserName:    booker.Name,
		UserEmail:   booker.Email,
		Metadata:    meta,
	}, nil
}

// Submit validates the draft, issues one creation request and, on
// success, announces the change.  A failure to announce is logged and
// does not fail the submission.
func (c *Coordinator) Submit(ctx context.Context, d Draft, booker Booker, idempotencyKey string) (*Result, error) {
	req, err := BuildRequest(d, booker)
	if err != nil {
		return nil, err
	}
	res, err := c.store.CreateReservation(ctx, req, idempotencyKey)
	if err != nil {
		c.logger.Warn("create reservation failed",
			zap.String("resource_id", req.ResourceID),
			zap.Time("start", req.StartTime),
			zap.String("idempotency_key", idempotencyKey),
			zap.Error(err))
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	if c.publisher != nil {
		ev := queue.NewReservationChanged(queue.ReservationCreated, res, c.now())
		if perr := c.publisher.Publish(ctx, ev); perr != nil {
			c.logger.Warn("reservation change notification failed",
				zap.String("reservation_id", res.ID), zap.Error(perr))
		}
	}
	return &Result{
		Reservation:     res,
		IdempotencyKey:  idempotencyKey,
		Start:           req.StartTime,
		End:             req.EndTime,
		TotalPriceCents: d.Service.PriceCents,
	}, nil
}
