package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicd/clinicd/internal/domain/identity"
	"github.com/clinicd/clinicd/internal/platform/apperror"
)

// DoctorDirectory is the slice of the identity domain the queue engine
// needs: doctor lookup and enumeration.
type DoctorDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	ListDoctors(ctx context.Context) ([]*identity.User, error)
}

// Publisher fans queue transition events out to live dashboards. Publish
// failures are the publisher's problem; the queue engine ignores them.
type Publisher interface {
	Publish(topic string, payload interface{})
}

// Notifier tells a patient their token has been called. Failures are logged
// and swallowed.
type Notifier interface {
	NotifyCalled(ctx context.Context, token *QueueToken) error
}

// Event is the payload published on queue topics.
type Event struct {
	Type     string      `json:"type"`
	DoctorID uuid.UUID   `json:"doctor_id"`
	Token    *QueueToken `json:"token,omitempty"`
	At       time.Time   `json:"at"`
}

// TopicAll receives every queue event; per-doctor topics are
// "queue:<doctorID>".
const TopicAll = "queue:all"

func doctorTopic(doctorID uuid.UUID) string {
	return "queue:" + doctorID.String()
}

type Service struct {
	repo       Repository
	doctors    DoctorDirectory
	publisher  Publisher
	notifier   Notifier
	waitingCap int
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(repo Repository, doctors DoctorDirectory, publisher Publisher, notifier Notifier, waitingCap int, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		doctors:    doctors,
		publisher:  publisher,
		notifier:   notifier,
		waitingCap: waitingCap,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) publish(eventType string, token *QueueToken) {
	if s.publisher == nil {
		return
	}
	ev := Event{Type: eventType, DoctorID: token.DoctorID, Token: token, At: s.now()}
	s.publisher.Publish(doctorTopic(token.DoctorID), ev)
	s.publisher.Publish(TopicAll, ev)
}

// IssueToken checks the patient in with the doctor for today. The doctor
// must exist and be able to accept patients.
func (s *Service) IssueToken(ctx context.Context, doctorID, patientID uuid.UUID, priority int) (*QueueToken, error) {
	if doctorID == uuid.Nil {
		return nil, apperror.Validation("doctor_id is required")
	}
	if patientID == uuid.Nil {
		return nil, apperror.Validation("patient_id is required")
	}
	if priority < 0 {
		return nil, apperror.Validation("priority must not be negative")
	}

	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor.Role != identity.RoleDoctor {
		return nil, apperror.Validation("user %s is not a doctor", doctorID)
	}

	status, counts, err := s.doctorStatus(ctx, doctor)
	if err != nil {
		return nil, err
	}
	if !CanAcceptPatients(status, counts[StatusWaiting], s.waitingCap) {
		return nil, apperror.Validation("doctor is not accepting patients (%s)", status)
	}

	t := &QueueToken{
		DoctorID:   doctorID,
		PatientID:  patientID,
		Status:     StatusWaiting,
		Priority:   priority,
		RoomStatus: RoomWaiting,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.publish("token_issued", t)
	return t, nil
}

// CallNext moves the doctor's next waiting token to called and returns it,
// or nil when the queue is empty. Urgent tokens go first, then FIFO.
// Concurrent calls race on the conditional update; a lost race moves on to
// the next candidate.
func (s *Service) CallNext(ctx context.Context, doctorID uuid.UUID) (*QueueToken, error) {
	if doctorID == uuid.Nil {
		return nil, apperror.Validation("doctor_id is required")
	}

	candidates, err := s.repo.ListWaiting(ctx, doctorID, s.now())
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		ok, err := s.repo.TransitionStatus(ctx, candidate.ID, []string{StatusWaiting}, StatusCalled)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Another caller claimed this token first.
			continue
		}
		token, err := s.repo.GetByID(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		s.publish("token_called", token)
		s.notifyCalled(ctx, token)
		return token, nil
	}
	return nil, nil
}

func (s *Service) notifyCalled(ctx context.Context, token *QueueToken) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyCalled(ctx, token); err != nil {
		s.logger.Warn().Err(err).
			Str("token_id", token.ID.String()).
			Msg("call notification failed")
	}
}

// StartConsultation transitions called to serving. At most one token per
// doctor may be serving; a violation is a conflict.
func (s *Service) StartConsultation(ctx context.Context, tokenID uuid.UUID) (*QueueToken, error) {
	token, err := s.repo.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.StartServing(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		serving, err := s.repo.HasServing(ctx, token.DoctorID)
		if err != nil {
			return nil, err
		}
		if serving {
			return nil, apperror.Conflict("doctor already has a patient in consultation")
		}
		return nil, apperror.Conflict("token is not in called state")
	}

	token, err = s.repo.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	s.publish("consultation_started", token)
	return token, nil
}

// CompleteConsultation closes the token as completed or missed. Repeating
// the call on a terminal token is a conflict, never a silent success.
func (s *Service) CompleteConsultation(ctx context.Context, tokenID uuid.UUID, outcome string) (*QueueToken, error) {
	if outcome != StatusCompleted && outcome != StatusMissed {
		return nil, apperror.Validation("invalid outcome: %s", outcome)
	}

	from := []string{StatusServing}
	if outcome == StatusMissed {
		// A called patient who never showed can be marked missed directly.
		from = []string{StatusServing, StatusCalled}
	}

	ok, err := s.repo.TransitionStatus(ctx, tokenID, from, outcome)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.repo.GetByID(ctx, tokenID); err != nil {
			return nil, err
		}
		return nil, apperror.Conflict("token cannot transition to %s", outcome)
	}

	token, err := s.repo.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	s.publish("consultation_"+outcome, token)
	return token, nil
}

// Delay records a nurse-side delay annotation. Terminal tokens cannot be
// delayed.
func (s *Service) Delay(ctx context.Context, tokenID uuid.UUID, reason string) (*QueueToken, error) {
	if reason == "" {
		return nil, apperror.Validation("reason is required")
	}
	ok, err := s.repo.SetRoomStatus(ctx, tokenID, RoomDelayed, &reason, nil, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.repo.GetByID(ctx, tokenID); err != nil {
			return nil, err
		}
		return nil, apperror.Conflict("token is no longer in the queue")
	}
	token, err := s.repo.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	s.publish("token_delayed", token)
	return token, nil
}

// MarkReady records vitals-taken and readiness for the doctor.
func (s *Service) MarkReady(ctx context.Context, tokenID uuid.UUID, vitalsTaken bool, notes string) (*QueueToken, error) {
	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	ok, err := s.repo.SetRoomStatus(ctx, tokenID, RoomReady, nil, &vitalsTaken, notesPtr)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.repo.GetByID(ctx, tokenID); err != nil {
			return nil, err
		}
		return nil, apperror.Conflict("token is no longer in the queue")
	}
	token, err := s.repo.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	s.publish("token_ready", token)
	return token, nil
}

// CancelToken removes a waiting or called token from the queue.
func (s *Service) CancelToken(ctx context.Context, tokenID uuid.UUID) (*QueueToken, error) {
	ok, err := s.repo.TransitionStatus(ctx, tokenID, []string{StatusWaiting, StatusCalled}, StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.repo.GetByID(ctx, tokenID); err != nil {
			return nil, err
		}
		return nil, apperror.Conflict("token cannot be cancelled")
	}
	token, err := s.repo.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	s.publish("token_cancelled", token)
	return token, nil
}

func (s *Service) GetToken(ctx context.Context, tokenID uuid.UUID) (*QueueToken, error) {
	return s.repo.GetByID(ctx, tokenID)
}

func (s *Service) doctorStatus(ctx context.Context, doctor *identity.User) (DoctorStatus, map[string]int, error) {
	counts, err := s.repo.CountByStatus(ctx, doctor.ID, s.now())
	if err != nil {
		return "", nil, err
	}
	status := ComputeDoctorStatus(doctor, counts[StatusWaiting], counts[StatusServing], s.waitingCap, s.now())
	return status, counts, nil
}

// GetDoctorQueueStatus returns today's tokens for the doctor plus the
// derived doctor status.
func (s *Service) GetDoctorQueueStatus(ctx context.Context, doctorID uuid.UUID) (*DoctorQueueView, error) {
	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	tokens, err := s.repo.ListForDoctorDay(ctx, doctorID, s.now())
	if err != nil {
		return nil, err
	}
	SortTokens(tokens)

	status, counts, err := s.doctorStatus(ctx, doctor)
	if err != nil {
		return nil, err
	}

	return &DoctorQueueView{
		DoctorID:     doctor.ID,
		DoctorName:   doctor.Name,
		Status:       status,
		CanAccept:    CanAcceptPatients(status, counts[StatusWaiting], s.waitingCap),
		WaitingCount: counts[StatusWaiting],
		ServingCount: counts[StatusServing],
		Tokens:       tokens,
	}, nil
}

// GetAllDoctorsQueueStatus fans GetDoctorQueueStatus out across every
// active doctor for the live dashboard.
func (s *Service) GetAllDoctorsQueueStatus(ctx context.Context) ([]*DoctorQueueView, error) {
	doctors, err := s.doctors.ListDoctors(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*DoctorQueueView, 0, len(doctors))
	for _, doctor := range doctors {
		view, err := s.GetDoctorQueueStatus(ctx, doctor.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}
