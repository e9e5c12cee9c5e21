package clinical

import (
	"time"

	"github.com/google/uuid"
)

// Diagnosis statuses.
const (
	DiagnosisActive   = "active"
	DiagnosisResolved = "resolved"
)

// Allergy severities.
const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// Diagnosis is one diagnosed condition recorded during a visit. Rows are
// soft-deleted; DeletedAt set means the row is a tombstone.
type Diagnosis struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitID       uuid.UUID  `db:"visit_id" json:"visit_id"`
	DiagnosisName string     `db:"diagnosis_name" json:"diagnosis_name"`
	DiagnosisCode *string    `db:"diagnosis_code" json:"diagnosis_code,omitempty"`
	Status        string     `db:"status" json:"status"`
	DiagnosedBy   uuid.UUID  `db:"diagnosed_by" json:"diagnosed_by"`
	DiagnosedDate time.Time  `db:"diagnosed_date" json:"diagnosed_date"`
	ResolvedAt    *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Allergy is one recorded patient allergy, soft-deleted like Diagnosis.
type Allergy struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitID    uuid.UUID  `db:"visit_id" json:"visit_id"`
	Allergen   string     `db:"allergen" json:"allergen"`
	Reaction   *string    `db:"reaction" json:"reaction,omitempty"`
	Severity   string     `db:"severity" json:"severity"`
	RecordedBy uuid.UUID  `db:"recorded_by" json:"recorded_by"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

var validSeverities = map[string]bool{
	SeverityMild: true, SeverityModerate: true, SeveritySevere: true,
}
