package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invoice statuses.
const (
	StatusPending   = "pending"
	StatusPartial   = "partial"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Invoice line item types.
const (
	ItemService  = "service"
	ItemMedicine = "medicine"
)

// Fulfillment states for medicine items. A written-out medicine is
// prescribed on the invoice but not physically dispensed.
const (
	FulfillmentDispensed  = "dispensed"
	FulfillmentWrittenOut = "written_out"
)

// writeOutMarker is the legacy naming convention for write-outs, still
// honored when deriving Fulfillment for items created without one.
const writeOutMarker = "write-out"

// Invoice maps to the invoices table.
type Invoice struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Status      string     `db:"status" json:"status"`
	TotalAmount float64    `db:"total_amount" json:"total_amount"`
	PaidAmount  float64    `db:"paid_amount" json:"paid_amount"`
	Balance     float64    `db:"balance" json:"balance"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy *uuid.UUID `db:"completed_by" json:"completed_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// IsOpen reports whether the invoice can still take items and payments.
func (i *Invoice) IsOpen() bool {
	return i.Status == StatusPending || i.Status == StatusPartial
}

// InvoiceItem maps to the invoice_items table.
type InvoiceItem struct {
	ID          uuid.UUID `db:"id" json:"id"`
	InvoiceID   uuid.UUID `db:"invoice_id" json:"invoice_id"`
	ItemType    string    `db:"item_type" json:"item_type"`
	ItemName    string    `db:"item_name" json:"item_name"`
	Quantity    int       `db:"quantity" json:"quantity"`
	UnitPrice   float64   `db:"unit_price" json:"unit_price"`
	TotalPrice  float64   `db:"total_price" json:"total_price"`
	Fulfillment string    `db:"fulfillment" json:"fulfillment"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DeriveFulfillment resolves the fulfillment state for an item created
// without an explicit one, falling back to the name convention.
func DeriveFulfillment(itemName, explicit string) string {
	if explicit == FulfillmentDispensed || explicit == FulfillmentWrittenOut {
		return explicit
	}
	if strings.Contains(strings.ToLower(itemName), writeOutMarker) {
		return FulfillmentWrittenOut
	}
	return FulfillmentDispensed
}

// IsDispensed reports whether the item counts toward the pharmacy report.
// Items matching the legacy name convention are excluded regardless of the
// typed field.
func (it *InvoiceItem) IsDispensed() bool {
	if it.ItemType != ItemMedicine {
		return false
	}
	if it.Fulfillment == FulfillmentWrittenOut {
		return false
	}
	return !strings.Contains(strings.ToLower(it.ItemName), writeOutMarker)
}
