// Package reporting exposes predefined SQL measures for clinic analytics.
// Measures are fixed queries; clients pick one by id and supply a date
// range, never raw SQL.
package reporting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/clinicd/clinicd/internal/platform/apperror"
	"github.com/clinicd/clinicd/internal/platform/auth"
)

// MeasureDefinition is one predefined analytic query. The SQL takes the
// report window as $1 (from) and $2 (to).
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"-"`
}

// MeasureReport holds one evaluation.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	From        time.Time                `json:"from"`
	To          time.Time                `json:"to"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
}

// PredefinedMeasures is the clinic's analytic catalogue.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "daily-visit-volume",
		Name:        "Daily Visit Volume",
		Description: "Visits started per day, split by outcome",
		SQL: `SELECT started_at::date AS day, status, COUNT(*) AS total
		      FROM visits WHERE started_at BETWEEN $1 AND $2
		      GROUP BY day, status ORDER BY day`,
	},
	{
		ID:          "queue-throughput",
		Name:        "Queue Throughput by Doctor",
		Description: "Tokens issued, completed, and missed per doctor",
		SQL: `SELECT doctor_id,
		             COUNT(*) AS issued,
		             COUNT(*) FILTER (WHERE status = 'completed') AS completed,
		             COUNT(*) FILTER (WHERE status = 'missed') AS missed
		      FROM queue_tokens WHERE issued_time BETWEEN $1 AND $2
		      GROUP BY doctor_id ORDER BY issued DESC`,
	},
	{
		ID:          "revenue-by-day",
		Name:        "Revenue by Day",
		Description: "Paid invoice totals per completion day",
		SQL: `SELECT completed_at::date AS day,
		             COUNT(*) AS invoices,
		             SUM(total_amount) AS revenue
		      FROM invoices WHERE status = 'paid' AND completed_at BETWEEN $1 AND $2
		      GROUP BY day ORDER BY day`,
	},
	{
		ID:          "dispense-volume",
		Name:        "Dispense Volume by Medicine",
		Description: "Units of each medicine dispensed from paid invoices",
		SQL: `SELECT ii.item_name AS medicine, SUM(ii.quantity) AS units
		      FROM invoice_items ii
		      JOIN invoices i ON i.id = ii.invoice_id
		      WHERE i.status = 'paid' AND ii.item_type = 'medicine'
		        AND ii.fulfillment = 'dispensed'
		        AND i.completed_at BETWEEN $1 AND $2
		      GROUP BY ii.item_name ORDER BY units DESC`,
	},
}

// FindMeasure looks up a measure by id.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

type Handler struct {
	pool *pgxpool.Pool
}

func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	g.GET("/measures", h.ListMeasures)
	g.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return apperror.OK(c, PredefinedMeasures)
}

// EvaluateMeasure runs a measure over the requested window, defaulting to
// the last 30 days.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return apperror.NotFound("measure not found")
	}

	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return apperror.Validation("invalid from: %s", raw)
		}
		from = t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return apperror.Validation("invalid to: %s", raw)
		}
		to = t
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL, from, to)
	if err != nil {
		return apperror.Upstream(err, "measure evaluation failed")
	}

	return apperror.OK(c, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		From:        from,
		To:          to,
		GeneratedAt: time.Now(),
		Results:     results,
	})
}

// executeSQL runs a measure query and flattens rows into maps keyed by
// column name.
func (h *Handler) executeSQL(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	return results, rows.Err()
}
