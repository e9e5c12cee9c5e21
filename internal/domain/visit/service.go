package visit

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicd/clinicd/internal/platform/apperror"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// StartVisit opens an in_progress visit for the patient. A patient may have
// at most one active visit; starting a second one is a conflict.
func (s *Service) StartVisit(ctx context.Context, patientID, doctorID uuid.UUID) (*Visit, error) {
	if patientID == uuid.Nil {
		return nil, apperror.Validation("patient_id is required")
	}
	if doctorID == uuid.Nil {
		return nil, apperror.Validation("doctor_id is required")
	}

	if existing, err := s.repo.GetActiveByPatient(ctx, patientID); err == nil && existing != nil {
		return nil, apperror.Conflict("patient already has a visit in progress")
	} else if err != nil && !apperror.IsKind(err, apperror.KindNotFound) {
		return nil, err
	}

	v := &Visit{PatientID: patientID, DoctorID: doctorID, Status: StatusInProgress}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// EndVisit closes an in_progress visit with the given outcome. Ending an
// already-closed visit is a conflict.
func (s *Service) EndVisit(ctx context.Context, id uuid.UUID, outcome string) (*Visit, error) {
	if !terminalOutcomes[outcome] {
		return nil, apperror.Validation("invalid outcome: %s", outcome)
	}

	affected, err := s.repo.End(ctx, id, outcome)
	if err != nil {
		return nil, err
	}
	if !affected {
		// Either the visit does not exist or it is already closed.
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperror.Conflict("visit is not in progress")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.repo.GetByID(ctx, id)
}

// GetActiveVisit returns the patient's in_progress visit or a NotFound error.
func (s *Service) GetActiveVisit(ctx context.Context, patientID uuid.UUID) (*Visit, error) {
	return s.repo.GetActiveByPatient(ctx, patientID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
