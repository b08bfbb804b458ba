// Package queue carries reservation change notifications between the
// booking flow and whoever needs to react to them: cache invalidation,
// email, and other server instances via RabbitMQ.
package queue

import (
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// ChangeKind says what happened to a reservation.
type ChangeKind string

const (
	ReservationCreated   ChangeKind = "created"
	ReservationCancelled ChangeKind = "cancelled"
	ReservationFinished  ChangeKind = "finished"
	ReservationReminder  ChangeKind = "reminder"
)

// ReservationChanged is published whenever reservation data changes.  It
// carries enough for downstream consumers to refresh availability and
// notify the booker without querying the primary database.
type ReservationChanged struct {
	Kind          ChangeKind `json:"kind"`
	ReservationID string     `json:"reservation_id"`
	ResourceID    string     `json:"resource_id"`
	Title         string     `json:"title"`
	Location      string     `json:"location,omitempty"`
	UserName      string     `json:"user_name"`
	UserEmail     string     `json:"user_email"`
	StartsAt      time.Time  `json:"starts_at"`
	EndsAt        time.Time  `json:"ends_at"`
	OccurredAt    time.Time  `json:"occurred_at"`

	// Remote is set on events that arrived from another instance.
	Remote bool `json:"-"`
}

// NewReservationChanged builds an event from a persisted reservation.
func NewReservationChanged(kind ChangeKind, r *model.Reservation, at time.Time) ReservationChanged {
	return ReservationChanged{
		Kind:          kind,
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		Title:         r.Title,
		Location:      r.Location,
		UserName:      r.UserName,
		UserEmail:     r.UserEmail,
		StartsAt:      r.StartTime.UTC(),
		EndsAt:        r.EndTime.UTC(),
		OccurredAt:    at.UTC(),
	}
}
