package queue

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicd/clinicd/internal/domain/identity"
)

// Token statuses. completed, missed and cancelled are terminal.
const (
	StatusWaiting   = "waiting"
	StatusCalled    = "called"
	StatusServing   = "serving"
	StatusCompleted = "completed"
	StatusMissed    = "missed"
	StatusCancelled = "cancelled"
)

// Nurse-side room statuses, persisted alongside the token status.
const (
	RoomWaiting = "waiting"
	RoomDelayed = "delayed"
	RoomReady   = "ready"
)

// UrgentPriority is the threshold at or above which a token is surfaced
// ahead of normal tokens.
const UrgentPriority = 4

// QueueToken maps to the queue_tokens table. TokenNumber increases
// monotonically per (doctor, day).
type QueueToken struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	DoctorID    uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	TokenNumber int        `db:"token_number" json:"token_number"`
	Status      string     `db:"status" json:"status"`
	Priority    int        `db:"priority" json:"priority"`
	RoomStatus  string     `db:"room_status" json:"room_status"`
	DelayReason *string    `db:"delay_reason" json:"delay_reason,omitempty"`
	VitalsTaken bool       `db:"vitals_taken" json:"vitals_taken"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	IssuedTime  time.Time  `db:"issued_time" json:"issued_time"`
	ServedAt    *time.Time `db:"served_at" json:"served_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// IsTerminal reports whether the token has left the queue for good.
func (t *QueueToken) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusMissed, StatusCancelled:
		return true
	}
	return false
}

// IsUrgent reports whether the token jumps ahead of normal tokens.
func (t *QueueToken) IsUrgent() bool {
	return t.Priority >= UrgentPriority
}

// SortTokens orders tokens for display and for call-next selection: urgent
// before normal, then issue time ascending. The sort is stable.
func SortTokens(tokens []*QueueToken) {
	sort.SliceStable(tokens, func(i, j int) bool {
		a, b := tokens[i], tokens[j]
		if a.IsUrgent() != b.IsUrgent() {
			return a.IsUrgent()
		}
		return a.IssuedTime.Before(b.IssuedTime)
	})
}

// DoctorStatus is derived, never stored.
type DoctorStatus string

const (
	DoctorUnavailable DoctorStatus = "unavailable"
	DoctorAvailable   DoctorStatus = "available"
	DoctorConsulting  DoctorStatus = "consulting"
	DoctorFull        DoctorStatus = "full"
)

// ComputeDoctorStatus derives the doctor's queue status at time now.
// waitingCap is the configured maximum waiting-list length.
func ComputeDoctorStatus(doctor *identity.User, waiting, serving int, waitingCap int, now time.Time) DoctorStatus {
	if doctor == nil || !doctor.IsWorkingAt(now) {
		return DoctorUnavailable
	}
	if serving > 0 {
		return DoctorConsulting
	}
	if waiting >= waitingCap {
		return DoctorFull
	}
	return DoctorAvailable
}

// CanAcceptPatients reports whether new tokens may be issued for a doctor in
// the given derived status with the given waiting count.
func CanAcceptPatients(status DoctorStatus, waiting, waitingCap int) bool {
	switch status {
	case DoctorAvailable:
		return true
	case DoctorConsulting:
		return waiting < waitingCap
	}
	return false
}

// DoctorQueueView is the per-doctor dashboard payload.
type DoctorQueueView struct {
	DoctorID     uuid.UUID     `json:"doctor_id"`
	DoctorName   string        `json:"doctor_name"`
	Status       DoctorStatus  `json:"status"`
	CanAccept    bool          `json:"can_accept_patients"`
	WaitingCount int           `json:"waiting_count"`
	ServingCount int           `json:"serving_count"`
	Tokens       []*QueueToken `json:"tokens"`
}
