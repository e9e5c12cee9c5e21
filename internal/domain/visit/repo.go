package visit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	// GetActiveByPatient returns the patient's in_progress visit, or a
	// NotFound error when none exists.
	GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Visit, error)
	// End transitions an in_progress visit to the given terminal status and
	// reports whether a row was affected.
	End(ctx context.Context, id uuid.UUID, outcome string) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error)
}
