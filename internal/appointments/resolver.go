package appointments

import (
	"time"
)

// maxProbes bounds the forward search for a free slot to one day.
const maxProbes = 24

// Overlaps reports whether two slots starting at a and b overlap.
// Slots are half-open intervals, so back-to-back appointments never
// overlap.
func Overlaps(a, b time.Time) bool {
	return a.Before(b.Add(SlotDuration)) && a.Add(SlotDuration).After(b)
}

// Collides reports whether a slot starting at start collides with any
// of the existing appointments. An appointment whose ID is in exclude
// is skipped, so editing an appointment never collides with itself.
// Appointments with malformed date or time fields are ignored.
func Collides(existing []Appointment, start time.Time, exclude ...int64) bool {
	return firstConflict(existing, start, exclude...) != nil
}

func firstConflict(existing []Appointment, start time.Time, exclude ...int64) *Appointment {
	for i := range existing {
		a := &existing[i]
		if excluded(a.ID, exclude) {
			continue
		}
		other, err := a.Start()
		if err != nil {
			continue
		}
		if Overlaps(start, other) {
			return a
		}
	}
	return nil
}

func excluded(id int64, exclude []int64) bool {
	for _, e := range exclude {
		if id == e {
			return true
		}
	}
	return false
}

// NextFreeSlot suggests an alternative slot for a rejected start time.
// Probes advance in fixed hourly steps anchored on the conflicting
// appointment's own start, so the suggestion lands exactly where the
// occupied slot frees up rather than at an offset of the rejected
// time. The search is bounded at 24 probes; the final candidate is
// returned regardless, so the caller always gets a suggestion.
func NextFreeSlot(existing []Appointment, start time.Time, exclude ...int64) Slot {
	base := start
	if conflict := firstConflict(existing, start, exclude...); conflict != nil {
		if cs, err := conflict.Start(); err == nil {
			base = cs
		}
	}

	candidate := base
	for i := 0; i < maxProbes; i++ {
		candidate = candidate.Add(SlotDuration)
		if !Collides(existing, candidate, exclude...) {
			break
		}
	}
	return NewSlot(candidate)
}
