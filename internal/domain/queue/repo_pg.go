package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const tokenCols = `id, doctor_id, patient_id, token_number, status, priority, room_status,
	delay_reason, vitals_taken, notes, issued_time, served_at, completed_at`

func scanToken(row pgx.Row) (*QueueToken, error) {
	var t QueueToken
	err := row.Scan(&t.ID, &t.DoctorID, &t.PatientID, &t.TokenNumber, &t.Status, &t.Priority,
		&t.RoomStatus, &t.DelayReason, &t.VitalsTaken, &t.Notes,
		&t.IssuedTime, &t.ServedAt, &t.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("queue token not found")
	}
	return &t, err
}

// Create allocates token_number with a MAX+1 subselect inside the INSERT so
// two concurrent check-ins for the same doctor cannot draw the same number;
// the unique index on (doctor_id, day, token_number) backstops the race.
func (r *repoPG) Create(ctx context.Context, t *QueueToken) error {
	t.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO queue_tokens (id, doctor_id, patient_id, token_number, status, priority, room_status, vitals_taken)
		SELECT $1, $2, $3,
			COALESCE(MAX(token_number), 0) + 1,
			$4, $5, $6, false
		FROM queue_tokens
		WHERE doctor_id = $2 AND issued_time::date = CURRENT_DATE
		RETURNING token_number, issued_time`,
		t.ID, t.DoctorID, t.PatientID, t.Status, t.Priority, t.RoomStatus).
		Scan(&t.TokenNumber, &t.IssuedTime)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*QueueToken, error) {
	return scanToken(r.conn(ctx).QueryRow(ctx,
		`SELECT `+tokenCols+` FROM queue_tokens WHERE id = $1`, id))
}

// call-next ordering: urgent tier first, then FIFO on issue time.
const tokenOrder = ` ORDER BY (priority >= 4) DESC, issued_time ASC`

func (r *repoPG) listDay(ctx context.Context, doctorID uuid.UUID, at time.Time, extra string, args ...interface{}) ([]*QueueToken, error) {
	query := `SELECT ` + tokenCols + ` FROM queue_tokens
		WHERE doctor_id = $1 AND issued_time::date = $2::date` + extra + tokenOrder
	allArgs := append([]interface{}{doctorID, at}, args...)
	rows, err := r.conn(ctx).Query(ctx, query, allArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*QueueToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *repoPG) ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, at time.Time) ([]*QueueToken, error) {
	return r.listDay(ctx, doctorID, at, "")
}

func (r *repoPG) ListWaiting(ctx context.Context, doctorID uuid.UUID, at time.Time) ([]*QueueToken, error) {
	return r.listDay(ctx, doctorID, at, ` AND status = $3`, StatusWaiting)
}

func (r *repoPG) CountByStatus(ctx context.Context, doctorID uuid.UUID, at time.Time) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, COUNT(*) FROM queue_tokens
		WHERE doctor_id = $1 AND issued_time::date = $2::date
		GROUP BY status`, doctorID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *repoPG) TransitionStatus(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error) {
	var stamp string
	switch to {
	case StatusServing:
		stamp = `, served_at = NOW()`
	case StatusCompleted, StatusMissed, StatusCancelled:
		stamp = `, completed_at = NOW()`
	}
	tag, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(`
		UPDATE queue_tokens SET status = $2%s
		WHERE id = $1 AND status = ANY($3)`, stamp),
		id, to, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// StartServing enforces the at-most-one-serving invariant in a single
// statement: the transition only fires while no other token of the same
// doctor is serving.
func (r *repoPG) StartServing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE queue_tokens t SET status = $2, served_at = NOW()
		WHERE t.id = $1 AND t.status = $3
		  AND NOT EXISTS (
			SELECT 1 FROM queue_tokens s
			WHERE s.doctor_id = t.doctor_id AND s.status = $2 AND s.id <> t.id
		  )`,
		id, StatusServing, StatusCalled)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) SetRoomStatus(ctx context.Context, id uuid.UUID, roomStatus string, delayReason *string, vitalsTaken *bool, notes *string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE queue_tokens SET
			room_status = $2,
			delay_reason = $3,
			vitals_taken = COALESCE($4, vitals_taken),
			notes = COALESCE($5, notes)
		WHERE id = $1 AND status NOT IN ($6, $7, $8)`,
		id, roomStatus, delayReason, vitalsTaken, notes,
		StatusCompleted, StatusMissed, StatusCancelled)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) HasServing(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM queue_tokens WHERE doctor_id = $1 AND status = $2)`,
		doctorID, StatusServing).Scan(&exists)
	return exists, err
}
