package clinical

import (
	"context"

	"github.com/google/uuid"
)

// DiagnosisRepository persists diagnoses. List excludes soft-deleted rows;
// GetByID returns tombstones too so direct lookups keep working.
type DiagnosisRepository interface {
	Create(ctx context.Context, d *Diagnosis) error
	GetByID(ctx context.Context, id uuid.UUID) (*Diagnosis, error)
	Update(ctx context.Context, d *Diagnosis) error
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Diagnosis, error)
}

type AllergyRepository interface {
	Create(ctx context.Context, a *Allergy) error
	GetByID(ctx context.Context, id uuid.UUID) (*Allergy, error)
	Update(ctx context.Context, a *Allergy) error
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error)
}
