package booking

import (
	"fmt"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// Draft is the in-progress, unsaved booking selection.  Date is local
// midnight in the booking location; Time is the chosen start as HH:mm on
// that date.
type Draft struct {
	ResourceID  string
	BookingType model.BookingType
	Date        time.Time
	Time        string
	Service     *model.Service
	Staff       *model.Staff
}

// Complete reports whether the draft can be submitted.
func (d Draft) Complete() bool {
	return !d.Date.IsZero() && d.Time != "" && d.Service != nil
}

// Start returns the reservation start: Date at Time in Date's location.
func (d Draft) Start() (time.Time, error) {
	if d.Date.IsZero() {
		return time.Time{}, ErrNoDate
	}
	h, m, err := parseClock(d.Time)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, day := d.Date.Date()
	return time.Date(y, mo, day, h, m, 0, 0, d.Date.Location()), nil
}

// End returns Start plus the selected service's duration.  It is
// recomputed from the current fields on every call, so changing either
// the time or the service is reflected immediately.
func (d Draft) End() (time.Time, error) {
	start, err := d.Start()
	if err != nil {
		return time.Time{}, err
	}
	if d.Service == nil {
		return time.Time{}, ErrDraftIncomplete
	}
	return start.Add(d.Service.Duration()), nil
}

func parseClock(s string) (hour, minute int, err error) {
	t, perr := time.Parse(model.ClockLayout, s)
	if perr != nil || len(s) != len(model.ClockLayout) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return t.Hour(), t.Minute(), nil
}

// midnight returns the start of t's calendar day in loc.
func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
