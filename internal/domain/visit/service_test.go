package visit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicd/clinicd/internal/platform/apperror"
)

type mockRepo struct {
	visits map[uuid.UUID]*Visit
}

func newMockRepo() *mockRepo {
	return &mockRepo{visits: make(map[uuid.UUID]*Visit)}
}

func (m *mockRepo) Create(_ context.Context, v *Visit) error {
	v.ID = uuid.New()
	v.StartedAt = time.Now()
	m.visits[v.ID] = v
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Visit, error) {
	v, ok := m.visits[id]
	if !ok {
		return nil, apperror.NotFound("visit not found")
	}
	return v, nil
}

func (m *mockRepo) GetActiveByPatient(_ context.Context, patientID uuid.UUID) (*Visit, error) {
	for _, v := range m.visits {
		if v.PatientID == patientID && v.Status == StatusInProgress {
			return v, nil
		}
	}
	return nil, apperror.NotFound("visit not found")
}

func (m *mockRepo) End(_ context.Context, id uuid.UUID, outcome string) (bool, error) {
	v, ok := m.visits[id]
	if !ok || v.Status != StatusInProgress {
		return false, nil
	}
	now := time.Now()
	v.Status = outcome
	v.EndedAt = &now
	return true, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	var result []*Visit
	for _, v := range m.visits {
		if v.PatientID == patientID {
			result = append(result, v)
		}
	}
	return result, len(result), nil
}

func TestStartVisit_RequiresIDs(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, err := svc.StartVisit(context.Background(), uuid.Nil, uuid.New()); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.StartVisit(context.Background(), uuid.New(), uuid.Nil); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartVisit_OnePerPatient(t *testing.T) {
	svc := NewService(newMockRepo())
	patient := uuid.New()

	first, err := svc.StartVisit(context.Background(), patient, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", first.Status)
	}

	_, err = svc.StartVisit(context.Background(), patient, uuid.New())
	if !apperror.IsKind(err, apperror.KindConflict) {
		t.Fatalf("expected conflict for second active visit, got %v", err)
	}
}

func TestEndVisit(t *testing.T) {
	svc := NewService(newMockRepo())
	patient := uuid.New()
	v, err := svc.StartVisit(context.Background(), patient, uuid.New())
	if err != nil {
		t.Fatal(err)
	}

	ended, err := svc.EndVisit(context.Background(), v.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ended.Status != StatusCompleted || ended.EndedAt == nil {
		t.Errorf("expected completed visit with EndedAt, got %+v", ended)
	}

	// A second end on the closed visit is a conflict, not a silent success.
	if _, err := svc.EndVisit(context.Background(), v.ID, StatusCompleted); !apperror.IsKind(err, apperror.KindConflict) {
		t.Fatalf("expected conflict on repeat end, got %v", err)
	}

	// Once closed, the patient can open a new visit.
	if _, err := svc.StartVisit(context.Background(), patient, uuid.New()); err != nil {
		t.Fatalf("expected new visit after close: %v", err)
	}
}

func TestEndVisit_InvalidOutcome(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, err := svc.EndVisit(context.Background(), uuid.New(), "paused"); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEndVisit_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, err := svc.EndVisit(context.Background(), uuid.New(), StatusCompleted); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
