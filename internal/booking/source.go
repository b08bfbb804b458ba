package booking

import (
	"context"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// AvailabilitySource supplies the slots offered for a resource on a date
// for a given booking length.  Implementations decide which slots are
// available; the booking flow never mutates them.
type AvailabilitySource interface {
	Slots(ctx context.Context, resourceID string, date time.Time, duration time.Duration) ([]model.Slot, error)
}

// ReservationStore persists reservation requests.  It is responsible for
// enforcing overlap and capacity rules and for deduplicating requests
// that share an idempotency key.  A rejected slot should be reported as
// an error that matches ErrSlotUnavailable.
type ReservationStore interface {
	CreateReservation(ctx context.Context, req model.CreateReservationRequest, idempotencyKey string) (*model.Reservation, error)
}
