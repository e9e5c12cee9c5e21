package content

import (
	"time"

	"github.com/google/uuid"
)

// HealthContent is one generated patient-education text.
type HealthContent struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	Topic       string    `db:"topic" json:"topic"`
	Body        string    `db:"body" json:"body"`
	Model       string    `db:"model" json:"model"`
	GeneratedBy uuid.UUID `db:"generated_by" json:"generated_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
