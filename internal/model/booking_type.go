package model

import (
	"fmt"
	"strings"
)

// BookingType classifies what is being booked.  The set of services and
// slots offered depends on it.
type BookingType string

const (
	BookingEquipment BookingType = "equipment"
	BookingSpace     BookingType = "space"
	BookingWorkshop  BookingType = "workshop"
	BookingPerson    BookingType = "person"
)

// Valid reports whether t is one of the known booking types.
func (t BookingType) Valid() bool {
	switch t {
	case BookingEquipment, BookingSpace, BookingWorkshop, BookingPerson:
		return true
	}
	return false
}

// ParseBookingType normalizes s and validates it.
func ParseBookingType(s string) (BookingType, error) {
	t := BookingType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown booking type %q", s)
	}
	return t, nil
}
