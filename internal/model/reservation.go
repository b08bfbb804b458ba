package model

import "time"

// Reservation statuses.
const (
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusFinished  = "FINISHED"
)

// Reservation records a booking of a resource for an interval.  It is
// created by the reservation store from a CreateReservationRequest and
// carries the idempotency key it was created under so that resubmissions
// resolve to the same row.
//
// Fields:
//
//	ID             – primary key (uuid).
//	ResourceID     – resource being booked.
//	StartTime      – inclusive start, UTC.
//	EndTime        – exclusive end, UTC.
//	Capacity       – units of the resource consumed.
//	Metadata       – free-form attributes (booking type, service, staff, price).
//	Status         – CONFIRMED, CANCELLED or FINISHED.
//	IdempotencyKey – client token the row was created under.
type Reservation struct {
	ID             string            `json:"id"`
	ResourceID     string            `json:"resource_id"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        time.Time         `json:"end_time"`
	Capacity       int               `json:"capacity"`
	Location       string            `json:"location,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	UserName       string            `json:"user_name"`
	UserEmail      string            `json:"user_email"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Status         string            `json:"status"`
	IdempotencyKey string            `json:"-"`
	RemindedAt     *time.Time        `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// CreateReservationRequest is the body accepted by the reservation store.
// The idempotency key is sent separately in the Idempotency-Key header.
type CreateReservationRequest struct {
	ResourceID  string            `json:"resource_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	Capacity    int               `json:"capacity"`
	Location    string            `json:"location,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	UserName    string            `json:"user_name"`
	UserEmail   string            `json:"user_email"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Metadata keys written by the booking coordinator.
const (
	MetaBookingType     = "booking_type"
	MetaServiceID       = "service_id"
	MetaStaffID         = "staff_id"
	MetaPriceCents      = "price_cents"
	MetaDurationMinutes = "duration_minutes"
)
