package queue

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicd/clinicd/internal/platform/apperror"
	"github.com/clinicd/clinicd/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	read.GET("/queue/doctor/:doctorId", h.GetDoctorQueueStatus)
	read.GET("/queue/doctors", h.GetAllDoctorsQueueStatus)
	read.GET("/queue/tokens/:id", h.GetToken)

	reception := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleNurse))
	reception.POST("/queue/tokens", h.IssueToken)
	reception.POST("/queue/tokens/:id/cancel", h.CancelToken)

	nurse := api.Group("", auth.RequireRole(auth.RoleNurse))
	nurse.POST("/queue/tokens/:id/delay", h.Delay)
	nurse.POST("/queue/tokens/:id/ready", h.MarkReady)

	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	doctor.POST("/queue/doctor/:doctorId/call-next", h.CallNext)
	doctor.POST("/queue/tokens/:id/start", h.StartConsultation)
	doctor.POST("/queue/tokens/:id/complete", h.CompleteConsultation)
}

type issueTokenRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Priority  int       `json:"priority"`
}

func (h *Handler) IssueToken(c echo.Context) error {
	var req issueTokenRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	token, err := h.svc.IssueToken(c.Request().Context(), req.DoctorID, req.PatientID, req.Priority)
	if err != nil {
		return err
	}
	return apperror.Created(c, token)
}

func (h *Handler) CallNext(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return apperror.Validation("invalid doctor id")
	}
	token, err := h.svc.CallNext(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	if token == nil {
		return apperror.OKMessage(c, nil, "no waiting tokens")
	}
	return apperror.OK(c, token)
}

func (h *Handler) StartConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	token, err := h.svc.StartConsultation(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return apperror.OK(c, token)
}

type completeRequest struct {
	Outcome string `json:"outcome"`
}

func (h *Handler) CompleteConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	if req.Outcome == "" {
		req.Outcome = StatusCompleted
	}
	token, err := h.svc.CompleteConsultation(c.Request().Context(), id, req.Outcome)
	if err != nil {
		return err
	}
	return apperror.OK(c, token)
}

type delayRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Delay(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var req delayRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	token, err := h.svc.Delay(c.Request().Context(), id, req.Reason)
	if err != nil {
		return err
	}
	return apperror.OK(c, token)
}

type readyRequest struct {
	VitalsTaken bool   `json:"vitals_taken"`
	Notes       string `json:"notes"`
}

func (h *Handler) MarkReady(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var req readyRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	token, err := h.svc.MarkReady(c.Request().Context(), id, req.VitalsTaken, req.Notes)
	if err != nil {
		return err
	}
	return apperror.OK(c, token)
}

func (h *Handler) CancelToken(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	token, err := h.svc.CancelToken(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return apperror.OK(c, token)
}

func (h *Handler) GetToken(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	token, err := h.svc.GetToken(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return apperror.OK(c, token)
}

func (h *Handler) GetDoctorQueueStatus(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return apperror.Validation("invalid doctor id")
	}
	view, err := h.svc.GetDoctorQueueStatus(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	return apperror.OK(c, view)
}

func (h *Handler) GetAllDoctorsQueueStatus(c echo.Context) error {
	views, err := h.svc.GetAllDoctorsQueueStatus(c.Request().Context())
	if err != nil {
		return err
	}
	return apperror.OK(c, views)
}
