package clinical

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicd/clinicd/internal/domain/visit"
	"github.com/clinicd/clinicd/internal/platform/apperror"
	"github.com/clinicd/clinicd/internal/platform/auth"
)

// mockVisitRepo backs the gate with a fixed set of active visits.
type mockVisitRepo struct {
	activeByPatient map[uuid.UUID]*visit.Visit
}

func (m *mockVisitRepo) Create(_ context.Context, _ *visit.Visit) error { return nil }

func (m *mockVisitRepo) GetByID(_ context.Context, _ uuid.UUID) (*visit.Visit, error) {
	return nil, apperror.NotFound("visit not found")
}

func (m *mockVisitRepo) GetActiveByPatient(_ context.Context, patientID uuid.UUID) (*visit.Visit, error) {
	v, ok := m.activeByPatient[patientID]
	if !ok {
		return nil, apperror.NotFound("visit not found")
	}
	return v, nil
}

func (m *mockVisitRepo) End(_ context.Context, _ uuid.UUID, _ string) (bool, error) {
	return false, nil
}

func (m *mockVisitRepo) ListByPatient(_ context.Context, _ uuid.UUID, _, _ int) ([]*visit.Visit, int, error) {
	return nil, 0, nil
}

type httpFixture struct {
	e       *echo.Echo
	visits  *mockVisitRepo
	patient uuid.UUID
	visitID uuid.UUID
}

func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()
	f := &httpFixture{
		visits:  &mockVisitRepo{activeByPatient: make(map[uuid.UUID]*visit.Visit)},
		patient: uuid.New(),
		visitID: uuid.New(),
	}

	logger := zerolog.Nop()
	svc := NewService(
		&mockDiagnosisRepo{rows: make(map[uuid.UUID]*Diagnosis)},
		&mockAllergyRepo{rows: make(map[uuid.UUID]*Allergy)},
	)
	gate := visit.NewGate(visit.NewService(f.visits), logger)

	f.e = echo.New()
	f.e.HTTPErrorHandler = apperror.HTTPErrorHandler(logger, false)
	// Tests inject the authenticated doctor directly.
	f.e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithUser(c.Request().Context(),
				uuid.NewString(), "Dr. Test", []string{auth.RoleDoctor})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(svc).RegisterRoutes(f.e.Group("/api/v1"), gate)
	return f
}

func (f *httpFixture) startVisit() {
	f.visits.activeByPatient[f.patient] = &visit.Visit{
		ID: f.visitID, PatientID: f.patient, Status: visit.StatusInProgress,
	}
}

func (f *httpFixture) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestPostDiagnosis_NoActiveVisitForbidden(t *testing.T) {
	f := newHTTPFixture(t)

	body := `{"patient_id":"` + f.patient.String() + `","diagnosis_name":"Flu","diagnosed_by":"` + uuid.NewString() + `"}`
	rec := f.post(t, "/api/v1/patient-diagnoses", body)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if envelope.Success || envelope.Code != visit.CodeNoActiveVisit {
		t.Fatalf("envelope = %s", rec.Body.String())
	}
}

func TestPostDiagnosis_ActiveVisitAutoPopulatesVisitID(t *testing.T) {
	f := newHTTPFixture(t)
	f.startVisit()

	body := `{"patient_id":"` + f.patient.String() + `","diagnosis_name":"Flu","diagnosed_by":"` + uuid.NewString() + `"}`
	rec := f.post(t, "/api/v1/patient-diagnoses", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			VisitID uuid.UUID `json:"visit_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if !envelope.Success || envelope.Data.VisitID != f.visitID {
		t.Fatalf("envelope = %s", rec.Body.String())
	}
}

func TestPostAllergy_GatedLikeDiagnoses(t *testing.T) {
	f := newHTTPFixture(t)

	body := `{"patient_id":"` + f.patient.String() + `","allergen":"Penicillin","severity":"severe"}`
	rec := f.post(t, "/api/v1/patient-allergies", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("without visit: status = %d, want 403", rec.Code)
	}

	f.startVisit()
	rec = f.post(t, "/api/v1/patient-allergies", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("with visit: status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
}
