package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error)
	// ListPaidInRange returns all paid invoices with completed_at in
	// [from, to].
	ListPaidInRange(ctx context.Context, from, to time.Time) ([]*Invoice, error)

	AddItem(ctx context.Context, item *InvoiceItem) error
	ListItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error)
	// ListMedicineItems returns medicine items belonging to the given
	// invoices, optionally filtered by a case-insensitive name substring.
	ListMedicineItems(ctx context.Context, invoiceIDs []uuid.UUID, search string) ([]*InvoiceItem, error)
}
