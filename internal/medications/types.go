package medications

import (
	"time"
)

// Frequency represents how often a medication is taken
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyAsNeeded Frequency = "asNeeded"
)

// Medication represents a tracked medication
type Medication struct {
	ID     int64  `json:"id" gorm:"primaryKey"`
	Name   string `json:"name"`
	Dosage string `json:"dosage"`

	Frequency Frequency `json:"frequency"`

	// Time is the daily reminder clock time, zero-padded "15:04".
	// Empty means no reminder.
	Time string `json:"time"`

	// History holds every recorded intake, oldest first.
	History []Intake `json:"history" gorm:"foreignKey:MedicationID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Intake is a single recorded dose
type Intake struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	MedicationID int64     `json:"medication_id" gorm:"index"`
	TakenAt      time.Time `json:"taken_at"`
}

// AdherenceActive reports whether the medication counts toward
// adherence. Weekly medications are tracked but excluded.
func (m *Medication) AdherenceActive() bool {
	return m.Frequency == FrequencyDaily || m.Frequency == FrequencyAsNeeded
}

// TakenOn reports whether any intake falls on the same calendar day
// as day, in local time.
func (m *Medication) TakenOn(day time.Time) bool {
	y, mo, d := day.Date()
	for _, in := range m.History {
		iy, imo, id := in.TakenAt.Date()
		if iy == y && imo == mo && id == d {
			return true
		}
	}
	return false
}

// EligibleOn reports whether the medication existed by the given
// instant, so days before it was added stay out of its history.
func (m *Medication) EligibleOn(day time.Time) bool {
	return !m.CreatedAt.After(day)
}
