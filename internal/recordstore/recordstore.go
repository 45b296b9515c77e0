package recordstore

import (
	"context"

	"github.com/gmsas95/caretrack/internal/appointments"
	"github.com/gmsas95/caretrack/internal/medications"
)

// Records is the full persisted state: every appointment and every
// medication with its intake history.
type Records struct {
	Appointments []appointments.Appointment `json:"appointments"`
	Medications  []medications.Medication   `json:"medications"`
}

// Store persists records as whole collections. Mutations replace the
// collection they touch rather than patching individual rows, so the
// persisted state always matches what the session holds in memory.
type Store interface {
	// Load reads the full persisted state.
	Load(ctx context.Context) (*Records, error)

	// SaveAppointments replaces the persisted appointment collection.
	SaveAppointments(ctx context.Context, appts []appointments.Appointment) error

	// SaveMedications replaces the persisted medication collection,
	// including intake history.
	SaveMedications(ctx context.Context, meds []medications.Medication) error

	Close() error
}
