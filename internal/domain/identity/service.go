package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicd/clinicd/internal/platform/apperror"
)

type Service struct {
	patients PatientRepository
	users    UserRepository
}

func NewService(patients PatientRepository, users UserRepository) *Service {
	return &Service{patients: patients, users: users}
}

// -- Patients --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" {
		return apperror.Validation("first_name is required")
	}
	if p.PatientNumber == "" {
		num, err := s.patients.NextPatientNumber(ctx)
		if err != nil {
			return apperror.Upstream(err, "allocating patient number")
		}
		p.PatientNumber = num
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.FirstName) == "" {
		return apperror.Validation("first_name is required")
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.patients.SoftDelete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, search, limit, offset)
}

// ContactInfo returns a patient's display name and phone for outbound
// messaging. The phone is empty when none is on file.
func (s *Service) ContactInfo(ctx context.Context, id uuid.UUID) (name, phone string, err error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return "", "", err
	}
	if p.Phone != nil {
		phone = *p.Phone
	}
	return p.FullName(), phone, nil
}

// -- Users --

func (s *Service) CreateUser(ctx context.Context, u *User) error {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return apperror.Validation("name is required")
	}
	if !validRoles[u.Role] {
		return apperror.Validation("invalid role: %s", u.Role)
	}
	if u.WorkStart < 0 || u.WorkStart >= 24*60 || u.WorkEnd < 0 || u.WorkEnd >= 24*60 {
		return apperror.Validation("working hours must be minutes within a day")
	}
	return s.users.Create(ctx, u)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, u *User) error {
	if u.Role != "" && !validRoles[u.Role] {
		return apperror.Validation("invalid role: %s", u.Role)
	}
	return s.users.Update(ctx, u)
}

func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && !validRoles[role] {
		return nil, 0, apperror.Validation("invalid role: %s", role)
	}
	return s.users.List(ctx, role, limit, offset)
}

func (s *Service) ListDoctors(ctx context.Context) ([]*User, error) {
	return s.users.ListDoctors(ctx)
}
