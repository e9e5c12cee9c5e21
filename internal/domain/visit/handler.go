package visit

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicd/clinicd/internal/platform/apperror"
	"github.com/clinicd/clinicd/internal/platform/auth"
	"github.com/clinicd/clinicd/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	g.POST("/visits", h.StartVisit)
	g.POST("/visits/:id/end", h.EndVisit)
	g.GET("/visits/:id", h.GetVisit)
	g.GET("/patients/:patientId/visits", h.ListByPatient)
	g.GET("/patients/:patientId/visits/active", h.GetActiveVisit)
}

type startVisitRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
}

func (h *Handler) StartVisit(c echo.Context) error {
	var req startVisitRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	v, err := h.svc.StartVisit(c.Request().Context(), req.PatientID, req.DoctorID)
	if err != nil {
		return err
	}
	return apperror.Created(c, v)
}

type endVisitRequest struct {
	Outcome string `json:"outcome"`
}

func (h *Handler) EndVisit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var req endVisitRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	if req.Outcome == "" {
		req.Outcome = StatusCompleted
	}
	v, err := h.svc.EndVisit(c.Request().Context(), id, req.Outcome)
	if err != nil {
		return err
	}
	return apperror.OK(c, v)
}

func (h *Handler) GetVisit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	v, err := h.svc.GetVisit(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return apperror.OK(c, v)
}

func (h *Handler) GetActiveVisit(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return apperror.Validation("invalid patient id")
	}
	v, err := h.svc.GetActiveVisit(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return apperror.OK(c, v)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return apperror.Validation("invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit(), pg.Offset())
	if err != nil {
		return err
	}
	return apperror.OK(c, pagination.NewResponse(items, total, pg))
}
