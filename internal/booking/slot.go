package booking

import (
	"slices"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// slotKey canonicalizes a start instant so that the same wall-clock
// minute always maps to the same key regardless of zone or seconds.
func slotKey(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format(time.RFC3339)
}

// AvailabilitySet is an immutable lookup over the slots returned by an
// availability source.
type AvailabilitySet struct {
	slots map[string]model.Slot
}

// NewAvailabilitySet indexes slots by canonical start.  When two slots
// share a start, an available one wins.
func NewAvailabilitySet(slots []model.Slot) AvailabilitySet {
	m := make(map[string]model.Slot, len(slots))
	for _, s := range slots {
		k := slotKey(s.Start)
		if existing, ok := m[k]; ok && existing.Available {
			continue
		}
		m[k] = s
	}
	return AvailabilitySet{slots: m}
}

// Len returns the number of indexed slots.
func (a AvailabilitySet) Len() int { return len(a.slots) }

// Empty reports whether the source returned nothing.
func (a AvailabilitySet) Empty() bool { return len(a.slots) == 0 }

// IsAvailable reports whether slot may be chosen.  An empty set treats
// every candidate as available: no data is read as "no restrictions".
func (a AvailabilitySet) IsAvailable(slot model.Slot) bool {
	if a.Empty() {
		return true
	}
	s, ok := a.slots[slotKey(slot.Start)]
	return ok && s.Available
}

// Slots returns the indexed slots ordered by start.
func (a AvailabilitySet) Slots() []model.Slot {
	out := make([]model.Slot, 0, len(a.slots))
	for _, s := range a.slots {
		out = append(out, s)
	}
	slices.SortFunc(out, func(x, y model.Slot) int { return x.Start.Compare(y.Start) })
	return out
}

// Lookup returns the indexed slot starting at start.
func (a AvailabilitySet) Lookup(start time.Time) (model.Slot, bool) {
	s, ok := a.slots[slotKey(start)]
	return s, ok
}

// IsSelected reports whether slot is the one whose start is selected.
func IsSelected(slot model.Slot, selected time.Time) bool {
	if selected.IsZero() {
		return false
	}
	return slotKey(slot.Start) == slotKey(selected)
}

// SameDay reports whether a and b fall on the same calendar day in a's
// location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
