// Package session owns the in-memory record set and funnels every
// mutation through a single persist-and-recompute step.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gmsas95/caretrack/internal/appointments"
	"github.com/gmsas95/caretrack/internal/config"
	apperrors "github.com/gmsas95/caretrack/internal/errors"
	"github.com/gmsas95/caretrack/internal/medications"
	"github.com/gmsas95/caretrack/internal/metrics"
	"github.com/gmsas95/caretrack/internal/notify"
	"github.com/gmsas95/caretrack/internal/recordstore"
	"go.uber.org/zap"
)

// Clock supplies the current time, injectable for tests
type Clock func() time.Time

// Session is the single owner of the live record collections. All
// mutations take the session mutex, so a collision check and the write
// it guards can never interleave with another mutation.
type Session struct {
	mu      sync.Mutex
	records recordstore.Records

	store      recordstore.Store
	dispatcher *notify.Dispatcher
	logger     *zap.Logger
	clock      Clock

	lastID int64
}

// Option configures a Session
type Option func(*Session)

// WithClock overrides the session clock
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// New creates a session over the given record store
func New(store recordstore.Store, dispatcher *notify.Dispatcher, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory collections with the persisted state
func (s *Session) Load(ctx context.Context) error {
	recs, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = *recs
	for _, a := range recs.Appointments {
		if a.ID > s.lastID {
			s.lastID = a.ID
		}
	}
	for _, m := range recs.Medications {
		if m.ID > s.lastID {
			s.lastID = m.ID
		}
	}

	s.logger.Info("records loaded",
		zap.Int("appointments", len(recs.Appointments)),
		zap.Int("medications", len(recs.Medications)))
	return nil
}

// nextID derives an ID from the clock, bumped past the previous one so
// two mutations in the same millisecond stay collision-free under the
// single-writer assumption. Callers hold the session mutex.
func (s *Session) nextID() int64 {
	id := s.clock().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// ==================== Appointments ====================

// AppointmentInput carries the user-editable appointment fields
type AppointmentInput struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

func (in *AppointmentInput) validate() (time.Time, error) {
	if strings.TrimSpace(in.Title) == "" {
		return time.Time{}, apperrors.ErrTitleEmpty
	}
	if !config.ValidClockTime(in.Time) {
		return time.Time{}, apperrors.New("GEN_002", "appointment time must be HH:MM")
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", in.Date+" "+in.Time, time.Local)
	if err != nil {
		return time.Time{}, apperrors.New("GEN_002", "appointment date must be YYYY-MM-DD", err)
	}
	return start, nil
}

// CreateAppointment validates and books a new appointment. A slot
// collision rejects the submission and the returned error carries the
// next suggested start time.
func (s *Session) CreateAppointment(ctx context.Context, in AppointmentInput) (*appointments.Appointment, error) {
	start, err := in.validate()
	if err != nil {
		metrics.RecordMutation(true)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSlot(start); err != nil {
		return nil, err
	}

	appt := appointments.Appointment{
		ID:        s.nextID(),
		Title:     in.Title,
		Date:      in.Date,
		Time:      in.Time,
		Location:  in.Location,
		Notes:     in.Notes,
		CreatedAt: s.clock(),
	}

	prev := s.records.Appointments
	s.records.Appointments = append(s.records.Appointments, appt)

	if err := s.persistAppointments(ctx, prev); err != nil {
		return nil, err
	}

	metrics.RecordMutation(false)
	s.dispatcher.Success(fmt.Sprintf("Appointment %q booked for %s %s", appt.Title, appt.Date, appt.Time))
	return &appt, nil
}

// UpdateAppointment replaces an appointment's editable fields, keeping
// its identity and creation time. The edited appointment never
// collides with its own current slot.
func (s *Session) UpdateAppointment(ctx context.Context, id int64, in AppointmentInput) (*appointments.Appointment, error) {
	start, err := in.validate()
	if err != nil {
		metrics.RecordMutation(true)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findAppointment(id)
	if idx < 0 {
		metrics.RecordMutation(true)
		return nil, apperrors.New("GEN_001", fmt.Sprintf("appointment %d not found", id))
	}

	if err := s.checkSlot(start, id); err != nil {
		return nil, err
	}

	prev := make([]appointments.Appointment, len(s.records.Appointments))
	copy(prev, s.records.Appointments)

	appt := &s.records.Appointments[idx]
	appt.Title = in.Title
	appt.Date = in.Date
	appt.Time = in.Time
	appt.Location = in.Location
	appt.Notes = in.Notes
	appt.UpdatedAt = s.clock()

	if err := s.persistAppointments(ctx, prev); err != nil {
		return nil, err
	}

	metrics.RecordMutation(false)
	s.dispatcher.Success(fmt.Sprintf("Appointment %q updated", appt.Title))
	result := *appt
	return &result, nil
}

// DeleteAppointment removes an appointment. Deleting an absent id is
// a no-op.
func (s *Session) DeleteAppointment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findAppointment(id)
	if idx < 0 {
		return nil
	}

	prev := make([]appointments.Appointment, len(s.records.Appointments))
	copy(prev, s.records.Appointments)

	title := s.records.Appointments[idx].Title
	s.records.Appointments = append(s.records.Appointments[:idx], s.records.Appointments[idx+1:]...)

	if err := s.persistAppointments(ctx, prev); err != nil {
		return err
	}

	metrics.RecordMutation(false)
	s.dispatcher.Info(fmt.Sprintf("Appointment %q deleted", title))
	return nil
}

// checkSlot rejects a colliding start time. Callers hold the mutex.
func (s *Session) checkSlot(start time.Time, exclude ...int64) error {
	if !appointments.Collides(s.records.Appointments, start, exclude...) {
		return nil
	}

	metrics.RecordCollision()
	metrics.RecordSlotSuggestion()
	metrics.RecordMutation(true)

	slot := appointments.NextFreeSlot(s.records.Appointments, start, exclude...)
	s.dispatcher.Error(fmt.Sprintf("Clash detected! Try %s instead.", slot.Time))
	return apperrors.NewSlotConflict(slot.Start)
}

func (s *Session) findAppointment(id int64) int {
	for i := range s.records.Appointments {
		if s.records.Appointments[i].ID == id {
			return i
		}
	}
	return -1
}

// persistAppointments writes the full collection, restoring prev on
// failure so memory never diverges from the store. Callers hold the
// mutex.
func (s *Session) persistAppointments(ctx context.Context, prev []appointments.Appointment) error {
	if err := s.store.SaveAppointments(ctx, s.records.Appointments); err != nil {
		s.records.Appointments = prev
		metrics.RecordStoreWrite(false)
		metrics.RecordMutation(true)
		s.logger.Error("appointment persist failed, state rolled back", zap.Error(err))
		return err
	}
	metrics.RecordStoreWrite(true)
	return nil
}

// ==================== Medications ====================

// MedicationInput carries the user-editable medication fields
type MedicationInput struct {
	Name      string                `json:"name"`
	Dosage    string                `json:"dosage"`
	Frequency medications.Frequency `json:"frequency"`
	Time      string                `json:"time"`
}

func (in *MedicationInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.ErrNameEmpty
	}
	if in.Time != "" && !config.ValidClockTime(in.Time) {
		return apperrors.ErrBadClockTime
	}
	return nil
}

// CreateMedication adds a medication with an empty intake history
func (s *Session) CreateMedication(ctx context.Context, in MedicationInput) (*medications.Medication, error) {
	if err := in.validate(); err != nil {
		metrics.RecordMutation(true)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	med := medications.Medication{
		ID:        s.nextID(),
		Name:      in.Name,
		Dosage:    in.Dosage,
		Frequency: in.Frequency,
		Time:      in.Time,
		History:   []medications.Intake{},
		CreatedAt: s.clock(),
	}

	prev := s.records.Medications
	s.records.Medications = append(s.records.Medications, med)

	if err := s.persistMedications(ctx, prev); err != nil {
		return nil, err
	}

	metrics.RecordMutation(false)
	s.dispatcher.Success(fmt.Sprintf("Medication %q added", med.Name))
	return &med, nil
}

// UpdateMedication replaces a medication's editable fields. Identity,
// creation time and intake history are never touched by an edit.
func (s *Session) UpdateMedication(ctx context.Context, id int64, in MedicationInput) (*medications.Medication, error) {
	if err := in.validate(); err != nil {
		metrics.RecordMutation(true)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findMedication(id)
	if idx < 0 {
		metrics.RecordMutation(true)
		return nil, apperrors.New("GEN_001", fmt.Sprintf("medication %d not found", id))
	}

	prev := make([]medications.Medication, len(s.records.Medications))
	copy(prev, s.records.Medications)

	med := &s.records.Medications[idx]
	med.Name = in.Name
	med.Dosage = in.Dosage
	med.Frequency = in.Frequency
	med.Time = in.Time
	med.UpdatedAt = s.clock()

	if err := s.persistMedications(ctx, prev); err != nil {
		return nil, err
	}

	metrics.RecordMutation(false)
	s.dispatcher.Success(fmt.Sprintf("Medication %q updated", med.Name))
	result := *med
	return &result, nil
}

// DeleteMedication removes a medication and its history. Deleting an
// absent id is a no-op.
func (s *Session) DeleteMedication(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findMedication(id)
	if idx < 0 {
		return nil
	}

	prev := make([]medications.Medication, len(s.records.Medications))
	copy(prev, s.records.Medications)

	name := s.records.Medications[idx].Name
	s.records.Medications = append(s.records.Medications[:idx], s.records.Medications[idx+1:]...)

	if err := s.persistMedications(ctx, prev); err != nil {
		return err
	}

	metrics.RecordMutation(false)
	s.dispatcher.Info(fmt.Sprintf("Medication %q deleted", name))
	return nil
}

// MarkTaken appends one intake timestamp to a medication's history.
// History only ever grows; marking twice in one day records two doses
// while adherence still counts the day once.
func (s *Session) MarkTaken(ctx context.Context, id int64) (*medications.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findMedication(id)
	if idx < 0 {
		metrics.RecordMutation(true)
		return nil, apperrors.New("GEN_001", fmt.Sprintf("medication %d not found", id))
	}

	prev := make([]medications.Medication, len(s.records.Medications))
	copy(prev, s.records.Medications)
	prev[idx].History = append([]medications.Intake{}, s.records.Medications[idx].History...)

	med := &s.records.Medications[idx]
	med.History = append(med.History, medications.Intake{
		MedicationID: med.ID,
		TakenAt:      s.clock(),
	})

	if err := s.persistMedications(ctx, prev); err != nil {
		return nil, err
	}

	metrics.RecordMutation(false)
	metrics.RecordIntake()
	s.dispatcher.Success(fmt.Sprintf("Dose of %q logged", med.Name))
	result := *med
	return &result, nil
}

func (s *Session) findMedication(id int64) int {
	for i := range s.records.Medications {
		if s.records.Medications[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) persistMedications(ctx context.Context, prev []medications.Medication) error {
	if err := s.store.SaveMedications(ctx, s.records.Medications); err != nil {
		s.records.Medications = prev
		metrics.RecordStoreWrite(false)
		metrics.RecordMutation(true)
		s.logger.Error("medication persist failed, state rolled back", zap.Error(err))
		return err
	}
	metrics.RecordStoreWrite(true)
	return nil
}

// ==================== Read side ====================

// Appointments returns a copy of the appointment collection
func (s *Session) Appointments() []appointments.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]appointments.Appointment, len(s.records.Appointments))
	copy(out, s.records.Appointments)
	return out
}

// Medications returns a copy of the medication collection
func (s *Session) Medications() []medications.Medication {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]medications.Medication, len(s.records.Medications))
	copy(out, s.records.Medications)
	return out
}

// Dashboard is the read-side summary recomputed after every mutation
type Dashboard struct {
	TotalAppointments int                        `json:"total_appointments"`
	Upcoming          []appointments.Appointment `json:"upcoming"`
	Adherence         medications.Ratio          `json:"adherence"`
	WeeklyStrip       [7]medications.StripDay    `json:"weekly_strip"`
}

// Dashboard builds the dashboard view for the current clock
func (s *Session) Dashboard() Dashboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()

	var upcoming []appointments.Appointment
	for _, a := range s.records.Appointments {
		if start, err := a.Start(); err == nil && start.After(now) {
			upcoming = append(upcoming, a)
		}
	}
	sortByStart(upcoming)
	if len(upcoming) > 3 {
		upcoming = upcoming[:3]
	}

	return Dashboard{
		TotalAppointments: len(s.records.Appointments),
		Upcoming:          upcoming,
		Adherence:         medications.SameDayRatio(s.records.Medications, now),
		WeeklyStrip:       medications.WeeklyStrip(s.records.Medications, now),
	}
}

// MonthEvents returns the appointments falling in the given month,
// keyed by date, for the calendar view.
func (s *Session) MonthEvents(year int, month time.Month) map[string][]appointments.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := fmt.Sprintf("%04d-%02d-", year, int(month))
	out := make(map[string][]appointments.Appointment)
	for _, a := range s.records.Appointments {
		if strings.HasPrefix(a.Date, prefix) {
			out[a.Date] = append(out[a.Date], a)
		}
	}
	return out
}

func sortByStart(appts []appointments.Appointment) {
	for i := 0; i < len(appts)-1; i++ {
		for j := i + 1; j < len(appts); j++ {
			si, erri := appts[i].Start()
			sj, errj := appts[j].Start()
			if erri == nil && errj == nil && sj.Before(si) {
				appts[i], appts[j] = appts[j], appts[i]
			}
		}
	}
}
