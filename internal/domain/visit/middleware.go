package visit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicd/clinicd/internal/platform/apperror"
)

// CodeNoActiveVisit is the machine-readable code returned when a clinical
// write is attempted for a patient without an in_progress visit.
const CodeNoActiveVisit = "NO_ACTIVE_VISIT"

type visitCtxKey string

const activeVisitKey visitCtxKey = "active_visit"

// ActiveVisitFromContext returns the visit attached by the gate middleware,
// or nil when none was attached.
func ActiveVisitFromContext(ctx context.Context) *Visit {
	v, _ := ctx.Value(activeVisitKey).(*Visit)
	return v
}

// ContextWithActiveVisit attaches a visit the way the gate middleware does.
func ContextWithActiveVisit(ctx context.Context, v *Visit) context.Context {
	return context.WithValue(ctx, activeVisitKey, v)
}

// Gate provides the active-visit middleware for clinical write routes.
type Gate struct {
	svc    *Service
	logger zerolog.Logger
}

func NewGate(svc *Service, logger zerolog.Logger) *Gate {
	return &Gate{svc: svc, logger: logger}
}

// patientIDFromBody peeks at the JSON request body for a patient_id field
// and restores the body so the handler can still bind it.
func patientIDFromBody(c echo.Context) (uuid.UUID, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return uuid.Nil, err
	}
	c.Request().Body = io.NopCloser(bytes.NewReader(body))

	var peek struct {
		PatientID uuid.UUID `json:"patient_id"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return uuid.Nil, err
	}
	return peek.PatientID, nil
}

// RequireActiveVisit blocks the request with a 403 NO_ACTIVE_VISIT unless the
// patient named in the request body has an in_progress visit. On success the
// visit is attached to the request context for downstream use.
func (g *Gate) RequireActiveVisit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			patientID, err := patientIDFromBody(c)
			if err != nil {
				return apperror.Validation("invalid request body")
			}
			if patientID == uuid.Nil {
				return apperror.Validation("patient_id is required")
			}

			v, err := g.svc.GetActiveVisit(c.Request().Context(), patientID)
			if err != nil {
				if apperror.IsKind(err, apperror.KindNotFound) {
					return apperror.Forbidden(CodeNoActiveVisit, "patient has no visit in progress")
				}
				return err
			}

			c.SetRequest(c.Request().WithContext(
				ContextWithActiveVisit(c.Request().Context(), v)))
			return next(c)
		}
	}
}

// CheckActiveVisit attaches the patient's active visit when one exists and
// proceeds either way. Lookup failures are logged, never surfaced.
func (g *Gate) CheckActiveVisit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			patientID, err := patientIDFromBody(c)
			if err != nil || patientID == uuid.Nil {
				return next(c)
			}

			v, err := g.svc.GetActiveVisit(c.Request().Context(), patientID)
			if err != nil {
				if !apperror.IsKind(err, apperror.KindNotFound) {
					g.logger.Warn().Err(err).
						Str("patient_id", patientID.String()).
						Msg("active visit lookup failed")
				}
				return next(c)
			}

			c.SetRequest(c.Request().WithContext(
				ContextWithActiveVisit(c.Request().Context(), v)))
			return next(c)
		}
	}
}
