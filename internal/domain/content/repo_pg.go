package content

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicd/clinicd/internal/platform/apperror"
	"github.com/clinicd/clinicd/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const contentCols = `id, patient_id, topic, body, model, generated_by, created_at`

func scanContent(row pgx.Row) (*HealthContent, error) {
	var hc HealthContent
	err := row.Scan(&hc.ID, &hc.PatientID, &hc.Topic, &hc.Body, &hc.Model,
		&hc.GeneratedBy, &hc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("health content not found")
	}
	return &hc, err
}

func (r *repoPG) Create(ctx context.Context, hc *HealthContent) error {
	hc.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO health_content (id, patient_id, topic, body, model, generated_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		hc.ID, hc.PatientID, hc.Topic, hc.Body, hc.Model, hc.GeneratedBy).
		Scan(&hc.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*HealthContent, error) {
	return scanContent(r.conn(ctx).QueryRow(ctx,
		`SELECT `+contentCols+` FROM health_content WHERE id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*HealthContent, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+contentCols+` FROM health_content
		 WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*HealthContent
	for rows.Next() {
		hc, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, hc)
	}
	return items, rows.Err()
}
