package content

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
	g := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	g.POST("/patients/:patientId/health-content", h.Generate)
	g.GET("/patients/:patientId/health-content", h.List)
	g.GET("/health-content/:id", h.Get)
}

type generateRequest struct {
	Topic string `json:"topic"`
}

func (h *Handler) Generate(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return apperror.Validation("invalid patient id")
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}

	requestedBy := uuid.Nil
	if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		requestedBy = uid
	}

	hc, err := h.svc.Generate(c.Request().Context(), patientID, requestedBy, req.Topic)
	if err != nil {
		return err
	}
	return apperror.Created(c, hc)
}

func (h *Handler) List(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return apperror.Validation("invalid patient id")
	}
	items, err := h.svc.ListByPatient(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return apperror.OK(c, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	hc, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return apperror.OK(c, hc)
}
