package billing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicd/clinicd/internal/platform/apperror"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) CreateInvoice(ctx context.Context, patientID uuid.UUID) (*Invoice, error) {
	if patientID == uuid.Nil {
		return nil, apperror.Validation("patient_id is required")
	}
	inv := &Invoice{PatientID: patientID, Status: StatusPending}
	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// AddItem appends a line item to an open invoice. TotalPrice is computed
// server-side; Fulfillment is derived from the name convention when not
// supplied explicitly.
func (s *Service) AddItem(ctx context.Context, invoiceID uuid.UUID, item *InvoiceItem) (*InvoiceItem, error) {
	item.ItemName = strings.TrimSpace(item.ItemName)
	if item.ItemName == "" {
		return nil, apperror.Validation("item_name is required")
	}
	if item.ItemType != ItemService && item.ItemType != ItemMedicine {
		return nil, apperror.Validation("invalid item_type: %s", item.ItemType)
	}
	if item.Quantity <= 0 {
		return nil, apperror.Validation("quantity must be positive")
	}
	if item.UnitPrice < 0 {
		return nil, apperror.Validation("unit_price must not be negative")
	}

	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.IsOpen() {
		return nil, apperror.Conflict("invoice is %s", inv.Status)
	}

	item.InvoiceID = invoiceID
	item.TotalPrice = float64(item.Quantity) * item.UnitPrice
	item.Fulfillment = DeriveFulfillment(item.ItemName, item.Fulfillment)
	if err := s.repo.AddItem(ctx, item); err != nil {
		return nil, err
	}

	inv.TotalAmount += item.TotalPrice
	inv.Balance = inv.TotalAmount - inv.PaidAmount
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return item, nil
}

// RecordPayment applies a payment. Full payment marks the invoice paid and
// stamps completed_at/completed_by; anything less leaves it partial.
func (s *Service) RecordPayment(ctx context.Context, invoiceID uuid.UUID, amount float64, receivedBy uuid.UUID) (*Invoice, error) {
	if amount <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}

	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.IsOpen() {
		return nil, apperror.Conflict("invoice is %s", inv.Status)
	}
	if amount > inv.Balance {
		return nil, apperror.Validation("amount exceeds outstanding balance")
	}

	inv.PaidAmount += amount
	inv.Balance = inv.TotalAmount - inv.PaidAmount
	if inv.Balance == 0 {
		inv.Status = StatusPaid
		now := s.now()
		inv.CompletedAt = &now
		if receivedBy != uuid.Nil {
			inv.CompletedBy = &receivedBy
		}
	} else {
		inv.Status = StatusPartial
	}

	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) CancelInvoice(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.IsOpen() {
		return nil, apperror.Conflict("invoice is %s", inv.Status)
	}
	inv.Status = StatusCancelled
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	if _, err := s.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, invoiceID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
