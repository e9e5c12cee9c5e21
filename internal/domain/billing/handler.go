package billing

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
	g := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleNurse, auth.RoleDoctor))
	g.POST("/invoices", h.CreateInvoice)
	g.GET("/invoices/:id", h.GetInvoice)
	g.GET("/invoices/:id/items", h.ListItems)
	g.POST("/invoices/:id/items", h.AddItem)
	g.POST("/invoices/:id/payments", h.RecordPayment)
	g.POST("/invoices/:id/cancel", h.CancelInvoice)
	g.GET("/patients/:patientId/invoices", h.ListByPatient)
}

type createInvoiceRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	inv, err := h.svc.CreateInvoice(c.Request().Context(), req.PatientID)
	if err != nil {
		return err
	}
	return apperror.Created(c, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return apperror.OK(c, inv)
}

func (h *Handler) AddItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var item InvoiceItem
	if err := c.Bind(&item); err != nil {
		return apperror.Validation("invalid request body")
	}
	added, err := h.svc.AddItem(c.Request().Context(), id, &item)
	if err != nil {
		return err
	}
	return apperror.Created(c, added)
}

func (h *Handler) ListItems(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	items, err := h.svc.ListItems(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return apperror.OK(c, items)
}

type paymentRequest struct {
	Amount float64 `json:"amount"`
}

func (h *Handler) RecordPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}

	receivedBy := uuid.Nil
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		if parsed, err := uuid.Parse(uid); err == nil {
			receivedBy = parsed
		}
	}

	inv, err := h.svc.RecordPayment(c.Request().Context(), id, req.Amount, receivedBy)
	if err != nil {
		return err
	}
	return apperror.OK(c, inv)
}

func (h *Handler) CancelInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	inv, err := h.svc.CancelInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return apperror.OK(c, inv)
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
