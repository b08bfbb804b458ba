package model

import "time"

// Resource is a bookable thing: a piece of equipment, a studio space, a
// workshop or a person.  OpensAt and ClosesAt are minutes after local
// midnight in Timezone and bound the slots offered each day.
type Resource struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	BookingType BookingType `json:"booking_type"`
	Capacity    int         `json:"capacity"`
	Location    string      `json:"location"`
	Timezone    string      `json:"timezone"`
	OpensAt     int         `json:"opens_at_minutes"`
	ClosesAt    int         `json:"closes_at_minutes"`
}

// Zone resolves the resource's time zone, falling back to UTC when
// the zone name is empty or unknown.
func (r Resource) Zone() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Service is a bookable item offered on a resource.  DurationMinutes
// determines a reservation's end time.
type Service struct {
	ID              string `json:"id"`
	ResourceID      string `json:"resource_id"`
	Name            string `json:"name"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Duration returns the service length.
func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Staff is a person who may deliver a service.  A nil *Staff in a
// selection means "no preference".
type Staff struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Catalog is the set of services and staff offered for one resource.
type Catalog struct {
	Services []Service `json:"services"`
	Staff    []Staff   `json:"staff"`
}
