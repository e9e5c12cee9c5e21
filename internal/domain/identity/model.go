package identity

import (
	"time"

	"github.com/google/uuid"
)

// Staff roles.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RoleNurse        = "nurse"
	RoleReceptionist = "receptionist"
)

// Patient maps to the patients table.
type Patient struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientNumber string     `db:"patient_number" json:"patient_number"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	Email         *string    `db:"email" json:"email,omitempty"`
	DateOfBirth   *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// FullName returns the patient's display name.
func (p *Patient) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// User maps to the users table. Doctors carry working hours as minutes from
// midnight; WorkStart == WorkEnd means no scheduled hours.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      string    `db:"role" json:"role"`
	WorkStart int       `db:"work_start" json:"work_start"`
	WorkEnd   int       `db:"work_end" json:"work_end"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

var validRoles = map[string]bool{
	RoleAdmin: true, RoleDoctor: true, RoleNurse: true, RoleReceptionist: true,
}

// IsWorkingAt reports whether t falls within the user's working hours
// (minutes from midnight, in t's location).
func (u *User) IsWorkingAt(t time.Time) bool {
	if !u.Active {
		return false
	}
	if u.WorkStart == u.WorkEnd {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	if u.WorkStart < u.WorkEnd {
		return minutes >= u.WorkStart && minutes < u.WorkEnd
	}
	// Overnight shift wraps midnight.
	return minutes >= u.WorkStart || minutes < u.WorkEnd
}
