package billing

import (
	"context"
	"errors"
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

const invoiceCols = `id, patient_id, status, total_amount, paid_amount, balance,
	completed_at, completed_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.PatientID, &inv.Status, &inv.TotalAmount, &inv.PaidAmount,
		&inv.Balance, &inv.CompletedAt, &inv.CompletedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("invoice not found")
	}
	return &inv, err
}

func (r *repoPG) CreateInvoice(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoices (id, patient_id, status, total_amount, paid_amount, balance)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		inv.ID, inv.PatientID, inv.Status, inv.TotalAmount, inv.PaidAmount, inv.Balance).
		Scan(&inv.CreatedAt, &inv.UpdatedAt)
}

func (r *repoPG) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
}

func (r *repoPG) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET status=$2, total_amount=$3, paid_amount=$4, balance=$5,
			completed_at=$6, completed_by=$7, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.Status, inv.TotalAmount, inv.PaidAmount, inv.Balance,
		inv.CompletedAt, inv.CompletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("invoice not found")
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE patient_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListPaidInRange(ctx context.Context, from, to time.Time) ([]*Invoice, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invoiceCols+` FROM invoices
		 WHERE status = $1 AND completed_at BETWEEN $2 AND $3
		 ORDER BY completed_at ASC`, StatusPaid, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

const itemCols = `id, invoice_id, item_type, item_name, quantity, unit_price,
	total_price, fulfillment, notes, created_at`

func scanItem(row pgx.Row) (*InvoiceItem, error) {
	var it InvoiceItem
	err := row.Scan(&it.ID, &it.InvoiceID, &it.ItemType, &it.ItemName, &it.Quantity,
		&it.UnitPrice, &it.TotalPrice, &it.Fulfillment, &it.Notes, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("invoice item not found")
	}
	return &it, err
}

func (r *repoPG) AddItem(ctx context.Context, item *InvoiceItem) error {
	item.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoice_items (id, invoice_id, item_type, item_name, quantity, unit_price, total_price, fulfillment, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		item.ID, item.InvoiceID, item.ItemType, item.ItemName, item.Quantity,
		item.UnitPrice, item.TotalPrice, item.Fulfillment, item.Notes).
		Scan(&item.CreatedAt)
}

func (r *repoPG) ListItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM invoice_items WHERE invoice_id = $1 ORDER BY created_at ASC`,
		invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*InvoiceItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repoPG) ListMedicineItems(ctx context.Context, invoiceIDs []uuid.UUID, search string) ([]*InvoiceItem, error) {
	if len(invoiceIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + itemCols + ` FROM invoice_items
		WHERE invoice_id = ANY($1) AND item_type = $2`
	args := []interface{}{invoiceIDs, ItemMedicine}
	if search != "" {
		query += ` AND item_name ILIKE $3`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*InvoiceItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
