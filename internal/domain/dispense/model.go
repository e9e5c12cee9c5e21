package dispense

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicd/clinicd/internal/platform/apperror"
)

// Sort keys for the dispense report.
const (
	SortDispensedAt  = "dispensedAt"
	SortMedicineName = "medicineName"
	SortPatientName  = "patientName"
	SortQuantity     = "quantity"
)

const (
	DirAsc  = "asc"
	DirDesc = "desc"
)

const maxSearchLen = 100

var validSortBy = map[string]bool{
	SortDispensedAt: true, SortMedicineName: true, SortPatientName: true, SortQuantity: true,
}

// Filters selects and orders the dispense report. From/To bound the
// invoice completion time; Search matches the medicine name.
type Filters struct {
	From     time.Time
	To       time.Time
	Search   string
	Page     int
	PageSize int
	SortBy   string
	SortDir  string
}

// Validate normalizes defaults and rejects malformed filters before any
// query runs.
func (f *Filters) Validate() error {
	if len(f.Search) > maxSearchLen {
		return apperror.Validation("search must be at most %d characters", maxSearchLen)
	}
	if f.From.After(f.To) {
		return apperror.Validation("from must not be after to")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 25
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	if f.SortBy == "" {
		f.SortBy = SortDispensedAt
	}
	if !validSortBy[f.SortBy] {
		return apperror.Validation("invalid sortBy: %s", f.SortBy)
	}
	switch f.SortDir {
	case "":
		f.SortDir = DirDesc
	case DirAsc, DirDesc:
	default:
		return apperror.Validation("invalid sortDir: %s", f.SortDir)
	}
	return nil
}

// Row is one dispensed medicine line, denormalized for the report.
type Row struct {
	DispensedAt     time.Time `json:"dispensed_at"`
	MedicineName    string    `json:"medicine_name"`
	Quantity        int       `json:"quantity"`
	UnitPrice       float64   `json:"unit_price"`
	TotalPrice      float64   `json:"total_price"`
	PatientName     string    `json:"patient_name"`
	PatientNumber   string    `json:"patient_number"`
	DispensedBy     string    `json:"dispensed_by"`
	DispensedByRole string    `json:"dispensed_by_role"`
	InvoiceID       uuid.UUID `json:"invoice_id"`
}

// MedicineTotal aggregates units for one medicine across the filtered set.
type MedicineTotal struct {
	MedicineName string `json:"medicine_name"`
	Units        int    `json:"units"`
}

// Summary covers the entire filtered set, not just the returned page.
type Summary struct {
	Total      int             `json:"total"`
	TotalUnits int             `json:"total_units"`
	ByMedicine []MedicineTotal `json:"by_medicine"`
}

// Report is one page of rows plus the full-set summary.
type Report struct {
	Items    []Row   `json:"items"`
	Total    int     `json:"total"`
	Summary  Summary `json:"summary"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}
