package content

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, hc *HealthContent) error
	GetByID(ctx context.Context, id uuid.UUID) (*HealthContent, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*HealthContent, error)
}
