package dispense

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicd/clinicd/internal/domain/billing"
	"github.com/clinicd/clinicd/internal/domain/identity"
)

// InvoiceSource is the slice of billing storage the aggregator reads.
type InvoiceSource interface {
	ListPaidInRange(ctx context.Context, from, to time.Time) ([]*billing.Invoice, error)
	ListMedicineItems(ctx context.Context, invoiceIDs []uuid.UUID, search string) ([]*billing.InvoiceItem, error)
}

// PatientDirectory resolves patients in batch.
type PatientDirectory interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*identity.Patient, error)
}

// UserDirectory resolves staff users in batch.
type UserDirectory interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*identity.User, error)
}

// Export internals. The iteration cap guards against a store that keeps
// returning rows past the reported total.
const (
	exportPageSize = 200
	exportMaxPages = 500
)

type Service struct {
	invoices InvoiceSource
	patients PatientDirectory
	users    UserDirectory
	logger   zerolog.Logger
}

func NewService(invoices InvoiceSource, patients PatientDirectory, users UserDirectory, logger zerolog.Logger) *Service {
	return &Service{invoices: invoices, patients: patients, users: users, logger: logger}
}

// List produces one page of the dispense report. Total and Summary always
// reflect the full filtered set regardless of the requested page.
func (s *Service) List(ctx context.Context, f Filters) (*Report, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.collect(ctx, f)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Items:    []Row{},
		Total:    len(rows),
		Summary:  summarize(rows, f.SortDir),
		Page:     f.Page,
		PageSize: f.PageSize,
	}

	start := (f.Page - 1) * f.PageSize
	if start > len(rows) {
		start = len(rows)
	}
	end := start + f.PageSize
	if end > len(rows) {
		end = len(rows)
	}
	report.Items = rows[start:end]
	return report, nil
}

// collect assembles and sorts the full filtered row set.
func (s *Service) collect(ctx context.Context, f Filters) ([]Row, error) {
	invoices, err := s.invoices.ListPaidInRange(ctx, f.From, f.To)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}

	byInvoice := make(map[uuid.UUID]*billing.Invoice, len(invoices))
	invoiceIDs := make([]uuid.UUID, 0, len(invoices))
	for _, inv := range invoices {
		byInvoice[inv.ID] = inv
		invoiceIDs = append(invoiceIDs, inv.ID)
	}

	items, err := s.invoices.ListMedicineItems(ctx, invoiceIDs, f.Search)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	// Batch the directory lookups so each patient and user is fetched once.
	patientSet := make(map[uuid.UUID]bool)
	userSet := make(map[uuid.UUID]bool)
	for _, inv := range invoices {
		patientSet[inv.PatientID] = true
		if inv.CompletedBy != nil {
			userSet[*inv.CompletedBy] = true
		}
	}
	patients, err := s.patients.GetByIDs(ctx, keys(patientSet))
	if err != nil {
		return nil, err
	}
	users, err := s.users.GetByIDs(ctx, keys(userSet))
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(items))
	for _, it := range items {
		if !it.IsDispensed() {
			continue
		}
		inv := byInvoice[it.InvoiceID]
		if inv == nil || inv.CompletedAt == nil {
			continue
		}
		row := Row{
			DispensedAt:  *inv.CompletedAt,
			MedicineName: it.ItemName,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
			InvoiceID:    inv.ID,
		}
		if p := patients[inv.PatientID]; p != nil {
			row.PatientName = p.FullName()
			row.PatientNumber = p.PatientNumber
		}
		if inv.CompletedBy != nil {
			if u := users[*inv.CompletedBy]; u != nil {
				row.DispensedBy = u.Name
				row.DispensedByRole = u.Role
			}
		}
		rows = append(rows, row)
	}

	sortRows(rows, f.SortBy, f.SortDir)
	return rows, nil
}

// sortRows orders rows in memory. String keys compare case-insensitively;
// ties keep their original order.
func sortRows(rows []Row, sortBy, sortDir string) {
	less := func(a, b Row) int {
		switch sortBy {
		case SortMedicineName:
			return strings.Compare(strings.ToLower(a.MedicineName), strings.ToLower(b.MedicineName))
		case SortPatientName:
			return strings.Compare(strings.ToLower(a.PatientName), strings.ToLower(b.PatientName))
		case SortQuantity:
			return a.Quantity - b.Quantity
		default:
			switch {
			case a.DispensedAt.Before(b.DispensedAt):
				return -1
			case a.DispensedAt.After(b.DispensedAt):
				return 1
			}
			return 0
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		cmp := less(rows[i], rows[j])
		if sortDir == DirDesc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func summarize(rows []Row, sortDir string) Summary {
	sum := Summary{Total: len(rows), ByMedicine: []MedicineTotal{}}
	units := make(map[string]int)
	for _, r := range rows {
		sum.TotalUnits += r.Quantity
		units[r.MedicineName] += r.Quantity
	}
	for name, n := range units {
		sum.ByMedicine = append(sum.ByMedicine, MedicineTotal{MedicineName: name, Units: n})
	}
	sort.Slice(sum.ByMedicine, func(i, j int) bool {
		a, b := sum.ByMedicine[i], sum.ByMedicine[j]
		if a.Units != b.Units {
			if sortDir == DirAsc {
				return a.Units < b.Units
			}
			return a.Units > b.Units
		}
		return strings.ToLower(a.MedicineName) < strings.ToLower(b.MedicineName)
	})
	return sum
}

var csvHeader = []string{
	"Dispensed At", "Medicine", "Quantity", "Unit Price", "Total Price",
	"Patient Name", "Patient Number", "Dispensed By", "Dispensed By Role", "Invoice ID",
}

// ExportCSV streams the full filtered result set as CSV, paginating
// internally until the reported total is reached. The first failed page
// fetch aborts the whole export. Returns the number of data rows written.
func (s *Service) ExportCSV(ctx context.Context, f Filters, w io.Writer) (int, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	f.Page = 1
	f.PageSize = exportPageSize

	// Byte-order mark keeps spreadsheet tools from mangling UTF-8.
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}

	written := 0
	for page := 1; page <= exportMaxPages; page++ {
		f.Page = page
		report, err := s.List(ctx, f)
		if err != nil {
			return written, err
		}
		if len(report.Items) == 0 {
			break
		}
		for _, r := range report.Items {
			record := []string{
				r.DispensedAt.Format(time.RFC3339),
				r.MedicineName,
				strconv.Itoa(r.Quantity),
				formatMoney(r.UnitPrice),
				formatMoney(r.TotalPrice),
				r.PatientName,
				r.PatientNumber,
				r.DispensedBy,
				r.DispensedByRole,
				r.InvoiceID.String(),
			}
			if err := cw.Write(record); err != nil {
				return written, err
			}
			written++
		}
		if written >= report.Total {
			break
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return written, err
	}
	s.logger.Debug().Int("rows", written).Msg("dispense export complete")
	return written, nil
}

func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func keys(set map[uuid.UUID]bool) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
