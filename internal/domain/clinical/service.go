package clinical

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicd/clinicd/internal/domain/visit"
	"github.com/clinicd/clinicd/internal/platform/apperror"
)

type Service struct {
	diagnoses DiagnosisRepository
	allergies AllergyRepository
	now       func() time.Time
}

func NewService(diagnoses DiagnosisRepository, allergies AllergyRepository) *Service {
	return &Service{diagnoses: diagnoses, allergies: allergies, now: time.Now}
}

// CreateDiagnosis records a diagnosis against the caller's active visit.
// The visit id is stamped from the request context when not supplied.
func (s *Service) CreateDiagnosis(ctx context.Context, d *Diagnosis) (*Diagnosis, error) {
	d.DiagnosisName = strings.TrimSpace(d.DiagnosisName)
	if d.PatientID == uuid.Nil {
		return nil, apperror.Validation("patient_id is required")
	}
	if d.DiagnosisName == "" {
		return nil, apperror.Validation("diagnosis_name is required")
	}
	if d.DiagnosedBy == uuid.Nil {
		return nil, apperror.Validation("diagnosed_by is required")
	}
	if d.VisitID == uuid.Nil {
		v := visit.ActiveVisitFromContext(ctx)
		if v == nil {
			return nil, apperror.Validation("visit_id is required")
		}
		d.VisitID = v.ID
	}
	if d.Status == "" {
		d.Status = DiagnosisActive
	}
	if d.Status != DiagnosisActive && d.Status != DiagnosisResolved {
		return nil, apperror.Validation("invalid status: %s", d.Status)
	}
	if d.DiagnosedDate.IsZero() {
		d.DiagnosedDate = s.now()
	}
	if err := s.diagnoses.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) UpdateDiagnosis(ctx context.Context, id uuid.UUID, upd *Diagnosis) (*Diagnosis, error) {
	d, err := s.diagnoses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.DeletedAt != nil {
		return nil, apperror.NotFound("diagnosis not found")
	}

	if name := strings.TrimSpace(upd.DiagnosisName); name != "" {
		d.DiagnosisName = name
	}
	if upd.DiagnosisCode != nil {
		d.DiagnosisCode = upd.DiagnosisCode
	}
	if !upd.DiagnosedDate.IsZero() {
		d.DiagnosedDate = upd.DiagnosedDate
	}
	if upd.Notes != nil {
		d.Notes = upd.Notes
	}
	if err := s.diagnoses.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SetDiagnosisStatus flips a diagnosis between active and resolved,
// stamping or clearing the resolution time.
func (s *Service) SetDiagnosisStatus(ctx context.Context, id uuid.UUID, status string) (*Diagnosis, error) {
	if status != DiagnosisActive && status != DiagnosisResolved {
		return nil, apperror.Validation("invalid status: %s", status)
	}
	d, err := s.diagnoses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.DeletedAt != nil {
		return nil, apperror.NotFound("diagnosis not found")
	}

	d.Status = status
	if status == DiagnosisResolved {
		now := s.now()
		d.ResolvedAt = &now
	} else {
		d.ResolvedAt = nil
	}
	if err := s.diagnoses.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) DeleteDiagnosis(ctx context.Context, id uuid.UUID) error {
	affected, err := s.diagnoses.SoftDelete(ctx, id)
	if err != nil {
		return err
	}
	if !affected {
		return apperror.NotFound("diagnosis not found")
	}
	return nil
}

func (s *Service) GetDiagnosis(ctx context.Context, id uuid.UUID) (*Diagnosis, error) {
	return s.diagnoses.GetByID(ctx, id)
}

func (s *Service) ListDiagnosesByPatient(ctx context.Context, patientID uuid.UUID) ([]*Diagnosis, error) {
	return s.diagnoses.ListByPatient(ctx, patientID)
}

func (s *Service) CreateAllergy(ctx context.Context, a *Allergy) (*Allergy, error) {
	a.Allergen = strings.TrimSpace(a.Allergen)
	if a.PatientID == uuid.Nil {
		return nil, apperror.Validation("patient_id is required")
	}
	if a.Allergen == "" {
		return nil, apperror.Validation("allergen is required")
	}
	if a.RecordedBy == uuid.Nil {
		return nil, apperror.Validation("recorded_by is required")
	}
	if a.Severity == "" {
		a.Severity = SeverityMild
	}
	if !validSeverities[a.Severity] {
		return nil, apperror.Validation("invalid severity: %s", a.Severity)
	}
	if a.VisitID == uuid.Nil {
		v := visit.ActiveVisitFromContext(ctx)
		if v == nil {
			return nil, apperror.Validation("visit_id is required")
		}
		a.VisitID = v.ID
	}
	if err := s.allergies.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) UpdateAllergy(ctx context.Context, id uuid.UUID, upd *Allergy) (*Allergy, error) {
	a, err := s.allergies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.DeletedAt != nil {
		return nil, apperror.NotFound("allergy not found")
	}

	if allergen := strings.TrimSpace(upd.Allergen); allergen != "" {
		a.Allergen = allergen
	}
	if upd.Reaction != nil {
		a.Reaction = upd.Reaction
	}
	if upd.Severity != "" {
		if !validSeverities[upd.Severity] {
			return nil, apperror.Validation("invalid severity: %s", upd.Severity)
		}
		a.Severity = upd.Severity
	}
	if upd.Notes != nil {
		a.Notes = upd.Notes
	}
	if err := s.allergies.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) DeleteAllergy(ctx context.Context, id uuid.UUID) error {
	affected, err := s.allergies.SoftDelete(ctx, id)
	if err != nil {
		return err
	}
	if !affected {
		return apperror.NotFound("allergy not found")
	}
	return nil
}

func (s *Service) GetAllergy(ctx context.Context, id uuid.UUID) (*Allergy, error) {
	return s.allergies.GetByID(ctx, id)
}

func (s *Service) ListAllergiesByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	return s.allergies.ListByPatient(ctx, patientID)
}
