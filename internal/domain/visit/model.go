package visit

import (
	"time"

	"github.com/google/uuid"
)

// Visit statuses. A patient has at most one in_progress visit at a time; it
// is the authorization gate for clinical writes.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Visit maps to the visits table.
type Visit struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Status    string     `db:"status" json:"status"`
	StartedAt time.Time  `db:"started_at" json:"started_at"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

// IsActive reports whether the visit gates clinical writes.
func (v *Visit) IsActive() bool {
	return v.Status == StatusInProgress
}

var terminalOutcomes = map[string]bool{
	StatusCompleted: true,
	StatusCancelled: true,
}
