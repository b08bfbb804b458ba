package booking

import "errors"

var (
	// ErrDraftIncomplete is returned when a submit is attempted before
	// date, time and service are all chosen.
	ErrDraftIncomplete = errors.New("booking draft is incomplete")
	// ErrSubmissionInFlight is returned while a submission is running.
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	// ErrSessionClosed is returned by every mutation after Close or a
	// successful submission.
	ErrSessionClosed = errors.New("booking session is closed")
	// ErrAvailabilityStale is returned when resubmitting after a failure
	// without re-querying availability first.
	ErrAvailabilityStale = errors.New("availability must be refreshed before resubmitting")
	// ErrSlotUnavailable is returned when the chosen slot is not offered,
	// either locally or by the reservation store.
	ErrSlotUnavailable = errors.New("time slot is not available")
	// ErrUnknownService is returned when selecting a service id that is
	// not in the current service list.
	ErrUnknownService = errors.New("service is not offered")
	// ErrStaffUnavailable is returned when selecting an unavailable staff member.
	ErrStaffUnavailable = errors.New("staff member is not available")
	// ErrInvalidTime is returned for a time that is not HH:mm.
	ErrInvalidTime = errors.New("time must be HH:mm")
	// ErrAvailabilityNotLoaded is returned when choosing a time before
	// availability for the date has been fetched.
	ErrAvailabilityNotLoaded = errors.New("availability for the date has not been loaded")
	// ErrNoDate is returned when choosing a time before a date.
	ErrNoDate = errors.New("choose a date first")
)
