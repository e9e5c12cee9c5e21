package clinical

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

type diagnosisRepoPG struct{ pool *pgxpool.Pool }

func NewDiagnosisRepoPG(pool *pgxpool.Pool) DiagnosisRepository {
	return &diagnosisRepoPG{pool: pool}
}

func (r *diagnosisRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const diagnosisCols = `id, patient_id, visit_id, diagnosis_name, diagnosis_code,
	status, diagnosed_by, diagnosed_date, resolved_at, notes,
	created_at, updated_at, deleted_at`

func scanDiagnosis(row pgx.Row) (*Diagnosis, error) {
	var d Diagnosis
	err := row.Scan(&d.ID, &d.PatientID, &d.VisitID, &d.DiagnosisName, &d.DiagnosisCode,
		&d.Status, &d.DiagnosedBy, &d.DiagnosedDate, &d.ResolvedAt, &d.Notes,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("diagnosis not found")
	}
	return &d, err
}

func (r *diagnosisRepoPG) Create(ctx context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_diagnoses
			(id, patient_id, visit_id, diagnosis_name, diagnosis_code,
			 status, diagnosed_by, diagnosed_date, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		d.ID, d.PatientID, d.VisitID, d.DiagnosisName, d.DiagnosisCode,
		d.Status, d.DiagnosedBy, d.DiagnosedDate, d.Notes).
		Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *diagnosisRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Diagnosis, error) {
	return scanDiagnosis(r.conn(ctx).QueryRow(ctx,
		`SELECT `+diagnosisCols+` FROM patient_diagnoses WHERE id = $1`, id))
}

func (r *diagnosisRepoPG) Update(ctx context.Context, d *Diagnosis) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_diagnoses SET
			diagnosis_name = $2, diagnosis_code = $3, status = $4,
			diagnosed_date = $5, resolved_at = $6, notes = $7, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		d.ID, d.DiagnosisName, d.DiagnosisCode, d.Status,
		d.DiagnosedDate, d.ResolvedAt, d.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("diagnosis not found")
	}
	return nil
}

func (r *diagnosisRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_diagnoses SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *diagnosisRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Diagnosis, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+diagnosisCols+` FROM patient_diagnoses
		 WHERE patient_id = $1 AND deleted_at IS NULL
		 ORDER BY diagnosed_date DESC, created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Diagnosis
	for rows.Next() {
		d, err := scanDiagnosis(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

type allergyRepoPG struct{ pool *pgxpool.Pool }

func NewAllergyRepoPG(pool *pgxpool.Pool) AllergyRepository {
	return &allergyRepoPG{pool: pool}
}

func (r *allergyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const allergyCols = `id, patient_id, visit_id, allergen, reaction, severity,
	recorded_by, notes, created_at, updated_at, deleted_at`

func scanAllergy(row pgx.Row) (*Allergy, error) {
	var a Allergy
	err := row.Scan(&a.ID, &a.PatientID, &a.VisitID, &a.Allergen, &a.Reaction,
		&a.Severity, &a.RecordedBy, &a.Notes, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("allergy not found")
	}
	return &a, err
}

func (r *allergyRepoPG) Create(ctx context.Context, a *Allergy) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_allergies
			(id, patient_id, visit_id, allergen, reaction, severity, recorded_by, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.VisitID, a.Allergen, a.Reaction, a.Severity, a.RecordedBy, a.Notes).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *allergyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Allergy, error) {
	return scanAllergy(r.conn(ctx).QueryRow(ctx,
		`SELECT `+allergyCols+` FROM patient_allergies WHERE id = $1`, id))
}

func (r *allergyRepoPG) Update(ctx context.Context, a *Allergy) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_allergies SET
			allergen = $2, reaction = $3, severity = $4, notes = $5, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		a.ID, a.Allergen, a.Reaction, a.Severity, a.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("allergy not found")
	}
	return nil
}

func (r *allergyRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_allergies SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *allergyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+allergyCols+` FROM patient_allergies
		 WHERE patient_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Allergy
	for rows.Next() {
		a, err := scanAllergy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
