package dispense

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicd/clinicd/internal/domain/billing"
	"github.com/clinicd/clinicd/internal/domain/identity"
	"github.com/clinicd/clinicd/internal/platform/apperror"
)

type mockStore struct {
	invoices []*billing.Invoice
	items    []*billing.InvoiceItem
	patients map[uuid.UUID]*identity.Patient
	users    map[uuid.UUID]*identity.User
}

func (m *mockStore) ListPaidInRange(_ context.Context, from, to time.Time) ([]*billing.Invoice, error) {
	var out []*billing.Invoice
	for _, inv := range m.invoices {
		if inv.Status != billing.StatusPaid || inv.CompletedAt == nil {
			continue
		}
		if inv.CompletedAt.Before(from) || inv.CompletedAt.After(to) {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (m *mockStore) ListMedicineItems(_ context.Context, invoiceIDs []uuid.UUID, search string) ([]*billing.InvoiceItem, error) {
	want := make(map[uuid.UUID]bool, len(invoiceIDs))
	for _, id := range invoiceIDs {
		want[id] = true
	}
	var out []*billing.InvoiceItem
	for _, it := range m.items {
		if it.ItemType != billing.ItemMedicine || !want[it.InvoiceID] {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(it.ItemName), strings.ToLower(search)) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (m *mockStore) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*identity.Patient, error) {
	out := make(map[uuid.UUID]*identity.Patient)
	for _, id := range ids {
		if p, ok := m.patients[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type mockUsers struct{ users map[uuid.UUID]*identity.User }

func (m *mockUsers) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*identity.User, error) {
	out := make(map[uuid.UUID]*identity.User)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fixture struct {
	store *mockStore
	svc   *Service
	day   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &mockStore{
		patients: make(map[uuid.UUID]*identity.Patient),
		users:    make(map[uuid.UUID]*identity.User),
	}
	svc := NewService(store, store, &mockUsers{users: store.users}, zerolog.Nop())
	return &fixture{
		store: store,
		svc:   svc,
		day:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) addPatient(first, last, number string) uuid.UUID {
	id := uuid.New()
	f.store.patients[id] = &identity.Patient{ID: id, FirstName: first, LastName: last, PatientNumber: number}
	return id
}

func (f *fixture) addUser(name, role string) uuid.UUID {
	id := uuid.New()
	f.store.users[id] = &identity.User{ID: id, Name: name, Role: role}
	return id
}

// paidInvoice adds a paid invoice completed at the fixture day plus the
// given hour offset.
func (f *fixture) paidInvoice(patientID, completedBy uuid.UUID, hour int) uuid.UUID {
	id := uuid.New()
	at := f.day.Add(time.Duration(hour) * time.Hour)
	f.store.invoices = append(f.store.invoices, &billing.Invoice{
		ID: id, PatientID: patientID, Status: billing.StatusPaid,
		CompletedAt: &at, CompletedBy: &completedBy,
	})
	return id
}

func (f *fixture) pendingInvoice(patientID uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.store.invoices = append(f.store.invoices, &billing.Invoice{
		ID: id, PatientID: patientID, Status: billing.StatusPending,
	})
	return id
}

func (f *fixture) medicine(invoiceID uuid.UUID, name string, qty int, price float64, fulfillment string) {
	f.store.items = append(f.store.items, &billing.InvoiceItem{
		ID: uuid.New(), InvoiceID: invoiceID, ItemType: billing.ItemMedicine,
		ItemName: name, Quantity: qty, UnitPrice: price,
		TotalPrice: float64(qty) * price, Fulfillment: fulfillment,
	})
}

func (f *fixture) filters() Filters {
	return Filters{From: f.day, To: f.day.Add(24 * time.Hour)}
}

func seedReport(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	alice := f.addPatient("Alice", "Ng", "P000001")
	bob := f.addPatient("Bob", "Tan", "P000002")
	pharmacist := f.addUser("Rina", "nurse")

	inv1 := f.paidInvoice(alice, pharmacist, 9)
	f.medicine(inv1, "Amoxicillin 500mg", 3, 2.5, billing.FulfillmentDispensed)
	f.medicine(inv1, "Paracetamol", 10, 0.5, billing.FulfillmentDispensed)

	inv2 := f.paidInvoice(bob, pharmacist, 11)
	f.medicine(inv2, "amoxicillin 500mg", 2, 2.5, billing.FulfillmentDispensed)
	f.medicine(inv2, "Insulin (write-out)", 1, 30, billing.FulfillmentDispensed)
	f.medicine(inv2, "Cough Syrup", 1, 4, billing.FulfillmentWrittenOut)

	pending := f.pendingInvoice(alice)
	f.medicine(pending, "Should Not Appear", 99, 1, billing.FulfillmentDispensed)
	return f
}

func TestList_ExcludesWriteOutsAndUnpaid(t *testing.T) {
	f := seedReport(t)

	report, err := f.svc.List(context.Background(), f.filters())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if report.Total != 3 {
		t.Fatalf("total = %d, want 3", report.Total)
	}
	for _, r := range report.Items {
		lower := strings.ToLower(r.MedicineName)
		if strings.Contains(lower, "write-out") {
			t.Fatalf("write-out row leaked: %q", r.MedicineName)
		}
		if r.MedicineName == "Cough Syrup" {
			t.Fatal("written_out item leaked into report")
		}
		if r.MedicineName == "Should Not Appear" {
			t.Fatal("item from unpaid invoice leaked into report")
		}
	}
}

func TestList_JoinsPatientAndDispenser(t *testing.T) {
	f := seedReport(t)
	filters := f.filters()
	filters.Search = "paracetamol"

	report, err := f.svc.List(context.Background(), filters)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if report.Total != 1 {
		t.Fatalf("total = %d, want 1", report.Total)
	}
	row := report.Items[0]
	if row.PatientName != "Alice Ng" || row.PatientNumber != "P000001" {
		t.Fatalf("patient join: %q %q", row.PatientName, row.PatientNumber)
	}
	if row.DispensedBy != "Rina" || row.DispensedByRole != "nurse" {
		t.Fatalf("dispenser join: %q %q", row.DispensedBy, row.DispensedByRole)
	}
	if row.TotalPrice != 5 {
		t.Fatalf("total price = %v, want 5", row.TotalPrice)
	}
}

func TestList_SortOrders(t *testing.T) {
	f := seedReport(t)

	filters := f.filters()
	filters.SortBy = SortQuantity
	filters.SortDir = DirDesc
	report, err := f.svc.List(context.Background(), filters)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for i := 1; i < len(report.Items); i++ {
		if report.Items[i-1].Quantity < report.Items[i].Quantity {
			t.Fatalf("quantity not descending at %d", i)
		}
	}

	// Case-insensitive name sort groups both Amoxicillin spellings.
	filters.SortBy = SortMedicineName
	filters.SortDir = DirAsc
	report, err = f.svc.List(context.Background(), filters)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, r := range report.Items {
		names = append(names, strings.ToLower(r.MedicineName))
	}
	if names[0] != "amoxicillin 500mg" || names[1] != "amoxicillin 500mg" {
		t.Fatalf("name sort: %v", names)
	}
}

func TestList_SummaryIndependentOfPagination(t *testing.T) {
	f := seedReport(t)

	filters := f.filters()
	filters.PageSize = 1
	filters.Page = 2
	report, err := f.svc.List(context.Background(), filters)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(report.Items) != 1 {
		t.Fatalf("page items = %d, want 1", len(report.Items))
	}
	if report.Total != 3 {
		t.Fatalf("total = %d, want 3", report.Total)
	}
	// 3 + 10 + 2 units across the full filtered set.
	if report.Summary.TotalUnits != 15 {
		t.Fatalf("total units = %d, want 15", report.Summary.TotalUnits)
	}
	if len(report.Summary.ByMedicine) != 3 {
		t.Fatalf("byMedicine = %d medicines, want 3", len(report.Summary.ByMedicine))
	}
	if report.Summary.ByMedicine[0].MedicineName != "Paracetamol" {
		t.Fatalf("top medicine = %q, want Paracetamol", report.Summary.ByMedicine[0].MedicineName)
	}
}

func TestList_EmptyRange(t *testing.T) {
	f := seedReport(t)

	filters := Filters{From: f.day.AddDate(0, 0, 5), To: f.day.AddDate(0, 0, 6)}
	report, err := f.svc.List(context.Background(), filters)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if report.Total != 0 || report.Summary.TotalUnits != 0 || len(report.Summary.ByMedicine) != 0 {
		t.Fatalf("expected zeroed report, got %+v", report)
	}
}

func TestList_FilterValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		mut  func(*Filters)
	}{
		{"long search", func(fl *Filters) { fl.Search = strings.Repeat("a", 101) }},
		{"bad sortBy", func(fl *Filters) { fl.SortBy = "price" }},
		{"bad sortDir", func(fl *Filters) { fl.SortDir = "sideways" }},
		{"inverted range", func(fl *Filters) { fl.From, fl.To = fl.To, fl.From }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			filters := f.filters()
			tc.mut(&filters)
			if _, err := f.svc.List(context.Background(), filters); !apperror.IsKind(err, apperror.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestExportCSV_MatchesListTotal(t *testing.T) {
	f := seedReport(t)

	report, err := f.svc.List(context.Background(), f.filters())
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	var buf bytes.Buffer
	written, err := f.svc.ExportCSV(context.Background(), f.filters(), &buf)
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if written != report.Total {
		t.Fatalf("export rows = %d, list total = %d", written, report.Total)
	}

	raw := buf.Bytes()
	if !bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatal("export missing UTF-8 byte-order mark")
	}

	records, err := csv.NewReader(bytes.NewReader(raw[3:])).ReadAll()
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(records) != report.Total+1 {
		t.Fatalf("csv lines = %d, want %d", len(records), report.Total+1)
	}
	if records[0][0] != "Dispensed At" || records[0][9] != "Invoice ID" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	for _, rec := range records {
		if len(rec) != 10 {
			t.Fatalf("record has %d columns, want 10: %v", len(rec), rec)
		}
	}
}
