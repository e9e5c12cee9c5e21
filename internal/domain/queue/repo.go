package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the token, allocating the next token number for the
	// doctor's day atomically.
	Create(ctx context.Context, t *QueueToken) error
	GetByID(ctx context.Context, id uuid.UUID) (*QueueToken, error)
	// ListForDoctorDay returns all tokens issued for the doctor on the day
	// containing at, urgent first then issue time ascending.
	ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, at time.Time) ([]*QueueToken, error)
	// ListWaiting returns the doctor's waiting tokens for the day in
	// call-next order.
	ListWaiting(ctx context.Context, doctorID uuid.UUID, at time.Time) ([]*QueueToken, error)
	// CountByStatus returns status counts for the doctor's day.
	CountByStatus(ctx context.Context, doctorID uuid.UUID, at time.Time) (map[string]int, error)
	// TransitionStatus moves the token from one of the given statuses to the
	// target status as a single conditional update, reporting whether a row
	// was affected. Timestamps are stamped according to the target status.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error)
	// StartServing transitions called to serving only while the doctor has
	// no other serving token. Returns false both on a lost race and on an
	// invalid prior state.
	StartServing(ctx context.Context, id uuid.UUID) (bool, error)
	// SetRoomStatus writes the nurse annotations on a non-terminal token.
	SetRoomStatus(ctx context.Context, id uuid.UUID, roomStatus string, delayReason *string, vitalsTaken *bool, notes *string) (bool, error)
	// HasServing reports whether the doctor currently has a serving token.
	HasServing(ctx context.Context, doctorID uuid.UUID) (bool, error)
}
