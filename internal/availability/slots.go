// Package availability computes the slots a resource offers on a day from
// its opening hours and the reservations already confirmed on it.
package availability

import (
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// Window describes the daily opening hours of a resource as minutes after
// local midnight.
type Window struct {
	OpensAt  int
	ClosesAt int
}

// BuildSlots lays out candidate slots of the given duration across the
// opening window of day, one every step.  day's location decides what
// local midnight means.  A slot is available when it does not start
// before now and the units already booked over it leave room within
// capacity.  Slots that would run past closing are not offered.
func BuildSlots(day time.Time, w Window, duration, step time.Duration, busy []repository.Interval, capacity int, now time.Time) []model.Slot {
	if duration <= 0 || w.ClosesAt <= w.OpensAt {
		return []model.Slot{}
	}
	if step <= 0 {
		step = duration
	}
	if capacity < 1 {
		capacity = 1
	}
	open := wallClock(day, w.OpensAt)
	closing := wallClock(day, w.ClosesAt)

	out := []model.Slot{}
	for start := open; !start.Add(duration).After(closing); start = start.Add(step) {
		s := model.Slot{Start: start, End: start.Add(duration)}
		s.Available = !start.Before(now) && usedUnits(s, busy)+1 <= capacity
		out = append(out, s)
	}
	return out
}

// wallClock returns the instant day's calendar date reads minutes after
// midnight on a local clock.  Adding elapsed time to midnight would drift
// by the offset change on daylight-saving transition days.
func wallClock(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}

// usedUnits sums the units of every busy interval overlapping s.
func usedUnits(s model.Slot, busy []repository.Interval) int {
	n := 0
	for _, iv := range busy {
		if s.Overlaps(iv.Start, iv.End) {
			units := iv.Units
			if units < 1 {
				units = 1
			}
			n += units
		}
	}
	return n
}
