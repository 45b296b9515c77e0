package appointments

import (
	"time"
)

// SlotDuration is how long every appointment occupies its slot.
const SlotDuration = time.Hour

// Appointment represents a scheduled appointment
type Appointment struct {
	ID    int64  `json:"id" gorm:"primaryKey"`
	Title string `json:"title"`

	// Scheduling. Date is "2006-01-02", Time is zero-padded "15:04".
	Date string `json:"date" gorm:"index"`
	Time string `json:"time"`

	Location string `json:"location"`
	Notes    string `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Start returns the appointment's start instant in local time.
func (a *Appointment) Start() (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, time.Local)
}

// End returns the end of the appointment's occupied slot.
func (a *Appointment) End() (time.Time, error) {
	start, err := a.Start()
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(SlotDuration), nil
}

// IsPast returns true if the appointment's slot has fully elapsed
func (a *Appointment) IsPast() bool {
	end, err := a.End()
	if err != nil {
		return false
	}
	return end.Before(time.Now())
}

// IsToday returns true if the appointment is today
func (a *Appointment) IsToday() bool {
	return a.Date == time.Now().Format("2006-01-02")
}

// Slot is a candidate start time produced by the resolver.
type Slot struct {
	Start time.Time `json:"start"`
	Date  string    `json:"date"`
	Time  string    `json:"time"`
}

// NewSlot builds a Slot from a start instant.
func NewSlot(start time.Time) Slot {
	return Slot{
		Start: start,
		Date:  start.Format("2006-01-02"),
		Time:  start.Format("15:04"),
	}
}
