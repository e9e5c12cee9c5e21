package clinical

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicd/clinicd/internal/domain/visit"
	"github.com/clinicd/clinicd/internal/platform/apperror"
	"github.com/clinicd/clinicd/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires clinical routes. Mutations that create or edit
// records require the patient to have a visit in progress.
func (h *Handler) RegisterRoutes(api *echo.Group, gate *visit.Gate) {
	g := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))

	g.POST("/patient-diagnoses", h.CreateDiagnosis, gate.RequireActiveVisit())
	g.PUT("/patient-diagnoses/:id", h.UpdateDiagnosis, gate.RequireActiveVisit())
	g.PATCH("/patient-diagnoses/:id/status", h.SetDiagnosisStatus)
	g.DELETE("/patient-diagnoses/:id", h.DeleteDiagnosis)
	g.GET("/patient-diagnoses/:id", h.GetDiagnosis)
	g.GET("/patients/:patientId/diagnoses", h.ListDiagnoses)

	g.POST("/patient-allergies", h.CreateAllergy, gate.RequireActiveVisit())
	g.PUT("/patient-allergies/:id", h.UpdateAllergy, gate.RequireActiveVisit())
	g.DELETE("/patient-allergies/:id", h.DeleteAllergy)
	g.GET("/patient-allergies/:id", h.GetAllergy)
	g.GET("/patients/:patientId/allergies", h.ListAllergies)
}

func (h *Handler) CreateDiagnosis(c echo.Context) error {
	var d Diagnosis
	if err := c.Bind(&d); err != nil {
		return apperror.Validation("invalid request body")
	}
	created, err := h.svc.CreateDiagnosis(c.Request().Context(), &d)
	if err != nil {
		return err
	}
	return apperror.Created(c, created)
}

func (h *Handler) UpdateDiagnosis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var d Diagnosis
	if err := c.Bind(&d); err != nil {
		return apperror.Validation("invalid request body")
	}
	updated, err := h.svc.UpdateDiagnosis(c.Request().Context(), id, &d)
	if err != nil {
		return err
	}
	return apperror.OK(c, updated)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetDiagnosisStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	d, err := h.svc.SetDiagnosisStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return apperror.OK(c, d)
}

func (h *Handler) DeleteDiagnosis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	if err := h.svc.DeleteDiagnosis(c.Request().Context(), id); err != nil {
		return err
	}
	return apperror.OKMessage(c, nil, "diagnosis deleted")
}

func (h *Handler) GetDiagnosis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	d, err := h.svc.GetDiagnosis(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return apperror.OK(c, d)
}

func (h *Handler) ListDiagnoses(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return apperror.Validation("invalid patient id")
	}
	items, err := h.svc.ListDiagnosesByPatient(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return apperror.OK(c, items)
}

func (h *Handler) CreateAllergy(c echo.Context) error {
	var a Allergy
	if err := c.Bind(&a); err != nil {
		return apperror.Validation("invalid request body")
	}
	// The recording clerk defaults to the authenticated caller.
	if a.RecordedBy == uuid.Nil {
		if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
			a.RecordedBy = uid
		}
	}
	created, err := h.svc.CreateAllergy(c.Request().Context(), &a)
	if err != nil {
		return err
	}
	return apperror.Created(c, created)
}

func (h *Handler) UpdateAllergy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var a Allergy
	if err := c.Bind(&a); err != nil {
		return apperror.Validation("invalid request body")
	}
	updated, err := h.svc.UpdateAllergy(c.Request().Context(), id, &a)
	if err != nil {
		return err
	}
	return apperror.OK(c, updated)
}

func (h *Handler) DeleteAllergy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	if err := h.svc.DeleteAllergy(c.Request().Context(), id); err != nil {
		return err
	}
	return apperror.OKMessage(c, nil, "allergy deleted")
}

func (h *Handler) GetAllergy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	a, err := h.svc.GetAllergy(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return apperror.OK(c, a)
}

func (h *Handler) ListAllergies(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return apperror.Validation("invalid patient id")
	}
	items, err := h.svc.ListAllergiesByPatient(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return apperror.OK(c, items)
}
