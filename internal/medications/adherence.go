package medications

import (
	"time"
)

// DayStatus classifies one day of the weekly adherence strip
type DayStatus string

const (
	StatusFull    DayStatus = "full"
	StatusPartial DayStatus = "partial"
	StatusNone    DayStatus = "none"
	StatusNeutral DayStatus = "neutral"
)

// Ratio is the taken/active count for a single day
type Ratio struct {
	Taken  int `json:"taken"`
	Active int `json:"active"`
}

// StripDay is one entry of the weekly adherence strip
type StripDay struct {
	Date   string    `json:"date"`
	Label  string    `json:"label"`
	Status DayStatus `json:"status"`
}

// SameDayRatio returns how many adherence-active medications have a
// recorded intake on now's calendar day, over the active count.
func SameDayRatio(meds []Medication, now time.Time) Ratio {
	var r Ratio
	for i := range meds {
		m := &meds[i]
		if !m.AdherenceActive() {
			continue
		}
		r.Active++
		if m.TakenOn(now) {
			r.Taken++
		}
	}
	return r
}

// WeeklyStrip builds the Monday-through-Sunday adherence strip for the
// week containing now. Days after today are neutral. A past day is
// full when every medication active and already created by that day
// was taken, partial when at least one was, none otherwise. Today is
// graded against the same-day ratio instead, and stays neutral while
// nothing has been taken yet, since the day is not over.
func WeeklyStrip(meds []Medication, now time.Time) [7]StripDay {
	var strip [7]StripDay

	monday := now.AddDate(0, 0, -distanceToMonday(now))
	today := SameDayRatio(meds, now)

	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		strip[i] = StripDay{
			Date:   day.Format("2006-01-02"),
			Label:  day.Format("Mon"),
			Status: dayStatus(meds, day, now, today),
		}
	}

	return strip
}

func distanceToMonday(now time.Time) int {
	wd := int(now.Weekday())
	if wd == 0 {
		return 6
	}
	return wd - 1
}

func dayStatus(meds []Medication, day, now time.Time, today Ratio) DayStatus {
	if sameDay(day, now) {
		switch {
		case today.Active > 0 && today.Taken == today.Active:
			return StatusFull
		case today.Taken > 0:
			return StatusPartial
		default:
			return StatusNeutral
		}
	}

	if day.After(now) {
		return StatusNeutral
	}

	var active, taken int
	for i := range meds {
		m := &meds[i]
		if !m.AdherenceActive() || !m.EligibleOn(day) {
			continue
		}
		active++
		if m.TakenOn(day) {
			taken++
		}
	}

	switch {
	case active == 0:
		return StatusNeutral
	case taken == active:
		return StatusFull
	case taken > 0:
		return StatusPartial
	default:
		return StatusNone
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
