package dispense

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

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
	g := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	g.GET("/dispenses", h.List)
	g.GET("/dispenses/export", h.Export)
}

func (h *Handler) List(c echo.Context) error {
	f, err := filtersFromRequest(c)
	if err != nil {
		return err
	}
	report, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return apperror.OK(c, report)
}

func (h *Handler) Export(c echo.Context) error {
	f, err := filtersFromRequest(c)
	if err != nil {
		return err
	}

	// Buffer the whole file so a mid-export failure returns a clean JSON
	// error instead of a truncated CSV.
	var buf bytes.Buffer
	if _, err := h.svc.ExportCSV(c.Request().Context(), f, &buf); err != nil {
		return err
	}

	filename := fmt.Sprintf("dispenses_%s.csv", time.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// filtersFromRequest parses query filters. Missing date bounds default to
// the current day.
func filtersFromRequest(c echo.Context) (Filters, error) {
	now := time.Now()
	f := Filters{
		From:    time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		To:      time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999999999, now.Location()),
		Search:  c.QueryParam("search"),
		SortBy:  c.QueryParam("sortBy"),
		SortDir: c.QueryParam("sortDir"),
	}

	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, apperror.Validation("invalid from: %s", raw)
		}
		f.From = t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, apperror.Validation("invalid to: %s", raw)
		}
		f.To = t
	}
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, apperror.Validation("invalid page: %s", raw)
		}
		f.Page = n
	}
	if raw := c.QueryParam("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			return f, apperror.Validation("invalid pageSize: %s", raw)
		}
		f.PageSize = n
	}
	return f, nil
}
