package model

import (
	"math"
	"time"
)

// Slot is a single offerable interval for a bookable resource.  The
// interval is half-open: [Start, End).  Available is computed by the
// availability source and is never mutated by callers.
type Slot struct {
	Start     time.Time // first instant covered by the slot
	End       time.Time // first instant after the slot
	Available bool      // whether the slot can currently be chosen
}

// Valid reports whether the slot has a positive length.
func (s Slot) Valid() bool { return s.Start.Before(s.End) }

// Duration returns End - Start.
func (s Slot) Duration() time.Duration { return s.End.Sub(s.Start) }

// DurationMinutes returns the slot length in whole minutes.
func (s Slot) DurationMinutes() int { return int(s.Duration() / time.Minute) }

// Overlaps reports whether two half-open intervals share any instant.
func (s Slot) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && start.Before(s.End)
}

// SlotView is the wire representation returned by the availability
// endpoint.  Date and Time are rendered in the resource's time zone so
// clients never need to know the zone rules.
type SlotView struct {
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	DurationHours float64   `json:"duration_hours"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Available     bool      `json:"available"`
}

// DateLayout and ClockLayout are the formats used for SlotView.Date and
// SlotView.Time and for the draft's date/time fields.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// NewSlotView renders a slot in the given location.
func NewSlotView(s Slot, loc *time.Location) SlotView {
	if loc == nil {
		loc = time.UTC
	}
	start := s.Start.In(loc)
	hours := s.Duration().Hours()
	return SlotView{
		StartsAt:      s.Start.UTC(),
		EndsAt:        s.End.UTC(),
		DurationHours: math.Round(hours*100) / 100,
		Date:          start.Format(DateLayout),
		Time:          start.Format(ClockLayout),
		Available:     s.Available,
	}
}

// Slot converts the wire view back into a Slot.
func (v SlotView) Slot() Slot {
	return Slot{Start: v.StartsAt, End: v.EndsAt, Available: v.Available}
}
