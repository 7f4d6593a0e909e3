package estate

import (
	"context"
	"errors"
	"testing"
	"time"

	"kingsbuilder.org/internal/auth"
)

type memStore struct {
	builders     map[string]*Builder
	projects     map[string]*Project
	inventory    map[string]*Inventory
	customers    map[string]*Customer
	bookings     map[string]*Booking
	payments     map[string]*Payment
	installments map[string]*Installment
	transfers    map[string]*Transfer
}

func newMemStore() *memStore {
	return &memStore{
		builders:     map[string]*Builder{},
		projects:     map[string]*Project{},
		inventory:    map[string]*Inventory{},
		customers:    map[string]*Customer{},
		bookings:     map[string]*Booking{},
		payments:     map[string]*Payment{},
		installments: map[string]*Installment{},
		transfers:    map[string]*Transfer{},
	}
}

func (m *memStore) CreateBuilder(_ context.Context, b *Builder) error {
	m.builders[b.ID] = b
	return nil
}

func (m *memStore) FindBuilder(_ context.Context, id string) (*Builder, error) {
	b, ok := m.builders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) ListBuilders(_ context.Context, q ListQuery) ([]*Builder, int, error) {
	if q.Scope.DenyAll {
		return nil, 0, nil
	}
	var out []*Builder
	for _, b := range m.builders {
		if q.Scope.BuilderID != nil && b.ID != *q.Scope.BuilderID {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memStore) UpdateBuilder(_ context.Context, id string, upd BuilderUpdate) (*Builder, error) {
	b, ok := m.builders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		b.Name = *upd.Name
	}
	if upd.Status != nil {
		b.Status = *upd.Status
	}
	if upd.MaxProjects != nil {
		b.MaxProjects = *upd.MaxProjects
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) CreateProject(_ context.Context, p *Project) error {
	m.projects[p.ID] = p
	return nil
}

func (m *memStore) FindProject(_ context.Context, id string) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListProjects(_ context.Context, q ListQuery) ([]*Project, int, error) {
	if q.Scope.DenyAll {
		return nil, 0, nil
	}
	var out []*Project
	for _, p := range m.projects {
		if q.Scope.BuilderID != nil && p.BuilderID != *q.Scope.BuilderID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memStore) UpdateProject(_ context.Context, id string, upd ProjectUpdate) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.TotalUnits != nil {
		p.TotalUnits = *upd.TotalUnits
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CountActiveProjects(_ context.Context, builderID string) (int, error) {
	n := 0
	for _, p := range m.projects {
		if p.BuilderID == builderID && p.Status == StatusActive {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateInventory(_ context.Context, u *Inventory) error {
	m.inventory[u.ID] = u
	return nil
}

func (m *memStore) FindInventory(_ context.Context, id string) (*Inventory, error) {
	u, ok := m.inventory[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) ListInventory(_ context.Context, q ListQuery) ([]*Inventory, int, error) {
	if q.Scope.DenyAll {
		return nil, 0, nil
	}
	var out []*Inventory
	for _, u := range m.inventory {
		if q.Scope.BuilderID != nil && u.BuilderID != *q.Scope.BuilderID {
			continue
		}
		if q.Scope.InvestorID != nil {
			if u.InvestorID == nil || *u.InvestorID != *q.Scope.InvestorID {
				continue
			}
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memStore) UpdateInventory(_ context.Context, id string, upd InventoryUpdate) (*Inventory, error) {
	u, ok := m.inventory[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Price != nil {
		u.Price = *upd.Price
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) CreateCustomer(_ context.Context, c *Customer) error {
	m.customers[c.ID] = c
	return nil
}

func (m *memStore) FindCustomer(_ context.Context, id string) (*Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListCustomers(_ context.Context, q ListQuery) ([]*Customer, int, error) {
	if q.Scope.DenyAll {
		return nil, 0, nil
	}
	var out []*Customer
	for _, c := range m.customers {
		if q.Scope.BuilderID != nil && c.BuilderID != *q.Scope.BuilderID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memStore) UpdateCustomer(_ context.Context, id string, upd CustomerUpdate) (*Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.ContactNumber != nil {
		c.ContactNumber = *upd.ContactNumber
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CreateBooking(_ context.Context, b *Booking) error {
	u, ok := m.inventory[b.InventoryID]
	if !ok {
		return ErrNotFound
	}
	u.Status = UnitBooked
	u.BookedByID = &b.CustomerID
	m.bookings[b.ID] = b
	return nil
}

func (m *memStore) FindBooking(_ context.Context, id string) (*Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) ListBookings(_ context.Context, q ListQuery) ([]*Booking, int, error) {
	if q.Scope.DenyAll {
		return nil, 0, nil
	}
	var out []*Booking
	for _, b := range m.bookings {
		if q.Scope.BuilderID != nil && b.BuilderID != *q.Scope.BuilderID {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memStore) CancelBooking(_ context.Context, id, reason string) (*Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	b.Status = BookingCancelled
	b.CancellationReason = reason
	b.CancellationDate = &now
	if u, ok := m.inventory[b.InventoryID]; ok {
		u.Status = UnitAvailable
		u.BookedByID = nil
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) CreatePayment(_ context.Context, p *Payment) error {
	m.payments[p.ID] = p
	return nil
}

func (m *memStore) FindPayment(_ context.Context, id string) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListPayments(_ context.Context, q ListQuery) ([]*Payment, int, error) {
	if q.Scope.DenyAll {
		return nil, 0, nil
	}
	var out []*Payment
	for _, p := range m.payments {
		if q.Scope.BuilderID != nil && p.BuilderID != *q.Scope.BuilderID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memStore) CreateInstallment(_ context.Context, i *Installment) error {
	for _, other := range m.installments {
		if other.BookingID == i.BookingID && other.Number == i.Number {
			return ErrConflict
		}
	}
	m.installments[i.ID] = i
	return nil
}

func (m *memStore) FindInstallment(_ context.Context, id string) (*Installment, error) {
	i, ok := m.installments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (m *memStore) ListInstallments(_ context.Context, q ListQuery) ([]*Installment, int, error) {
	if q.Scope.DenyAll {
		return nil, 0, nil
	}
	var out []*Installment
	for _, i := range m.installments {
		if q.Scope.BuilderID != nil && i.BuilderID != *q.Scope.BuilderID {
			continue
		}
		if q.BookingID != "" && i.BookingID != q.BookingID {
			continue
		}
		cp := *i
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memStore) UpdateInstallment(_ context.Context, id string, upd InstallmentUpdate) (*Installment, error) {
	i, ok := m.installments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.DueDate != nil {
		i.DueDate = *upd.DueDate
	}
	if upd.Amount != nil {
		i.Amount = *upd.Amount
	}
	if upd.PaidAmount != nil {
		i.PaidAmount = *upd.PaidAmount
	}
	if upd.DueStatus != nil {
		i.DueStatus = *upd.DueStatus
	}
	if upd.PaidDate != nil {
		i.PaidDate = upd.PaidDate
	}
	if upd.Remarks != nil {
		i.Remarks = *upd.Remarks
	}
	i.BalanceAmount = i.Amount - i.PaidAmount
	cp := *i
	return &cp, nil
}

func (m *memStore) CreateTransfer(_ context.Context, t *Transfer) error {
	m.transfers[t.ID] = t
	return nil
}

func (m *memStore) FindTransfer(_ context.Context, id string) (*Transfer, error) {
	t, ok := m.transfers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) ListTransfers(_ context.Context, q ListQuery) ([]*Transfer, int, error) {
	if q.Scope.DenyAll {
		return nil, 0, nil
	}
	var out []*Transfer
	for _, t := range m.transfers {
		if q.Scope.BuilderID != nil && t.BuilderID != *q.Scope.BuilderID {
			continue
		}
		if q.BookingID != "" && t.BookingID != q.BookingID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memStore) ApproveTransfer(_ context.Context, id, approverID string, at time.Time) (*Transfer, error) {
	t, ok := m.transfers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.Status != TransferPending {
		return nil, ErrConflict
	}
	t.Status = TransferApproved
	t.ApprovedByID = &approverID
	t.TransferDate = &at
	if b, ok := m.bookings[t.BookingID]; ok {
		b.CustomerID = t.ToCustomerID
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) RejectTransfer(_ context.Context, id, remarks string) (*Transfer, error) {
	t, ok := m.transfers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.Status != TransferPending {
		return nil, ErrConflict
	}
	t.Status = TransferRejected
	if remarks != "" {
		t.Remarks = remarks
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) Summarize(_ context.Context, scope auth.Scope) (Summary, error) {
	projects, _, _ := m.ListProjects(context.Background(), ListQuery{Scope: scope})
	units, _, _ := m.ListInventory(context.Background(), ListQuery{Scope: scope})
	return Summary{Projects: len(projects), Units: len(units)}, nil
}

func strptr(s string) *string { return &s }

func masterAdmin() *auth.Account {
	return &auth.Account{ID: "acc-master", Role: auth.RoleMasterAdmin, Status: auth.StatusActive}
}

func builderAdmin(builderID string) *auth.Account {
	return &auth.Account{ID: "acc-" + builderID, Role: auth.RoleBuilderAdmin, Status: auth.StatusActive, BuilderID: &builderID}
}

func salesStaff(builderID string) *auth.Account {
	return &auth.Account{ID: "acc-sales", Role: auth.RoleSalesStaff, Status: auth.StatusActive, BuilderID: &builderID}
}

func investor(builderID, investorID string) *auth.Account {
	return &auth.Account{ID: "acc-inv", Role: auth.RoleInvestor, Status: auth.StatusActive, BuilderID: &builderID, InvestorID: &investorID}
}

func testService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc, err := NewService(store, WithClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func seedBuilder(t *testing.T, svc *Service, name string) *Builder {
	t.Helper()
	b, err := svc.CreateBuilder(context.Background(), masterAdmin(), BuilderInput{Name: name})
	if err != nil {
		t.Fatalf("CreateBuilder: %v", err)
	}
	return b
}

func TestCreateBuilderRequiresMasterAdmin(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.CreateBuilder(context.Background(), builderAdmin("b1"), BuilderInput{Name: "Shoreline"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestCreateProjectForcesOwnBuilder(t *testing.T) {
	svc, _ := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	other := seedBuilder(t, svc, "Northgate")

	_, err := svc.CreateProject(context.Background(), builderAdmin(b.ID), ProjectInput{
		BuilderID: other.ID,
		Name:      "Marina Heights",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("cross-builder create err = %v, want ErrForbidden", err)
	}

	p, err := svc.CreateProject(context.Background(), builderAdmin(b.ID), ProjectInput{
		Name:       "Marina Heights",
		TotalUnits: 40,
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.BuilderID != b.ID {
		t.Fatalf("BuilderID = %s, want %s", p.BuilderID, b.ID)
	}
	if p.AvailableUnits != 40 {
		t.Fatalf("AvailableUnits = %d, want 40", p.AvailableUnits)
	}
}

func TestCreateProjectEnforcesBuilderLimit(t *testing.T) {
	svc, _ := testService(t)
	b, err := svc.CreateBuilder(context.Background(), masterAdmin(), BuilderInput{Name: "Shoreline", MaxProjects: 1})
	if err != nil {
		t.Fatalf("CreateBuilder: %v", err)
	}
	actor := builderAdmin(b.ID)
	if _, err := svc.CreateProject(context.Background(), actor, ProjectInput{Name: "First"}); err != nil {
		t.Fatalf("first project: %v", err)
	}
	_, err = svc.CreateProject(context.Background(), actor, ProjectInput{Name: "Second"})
	if !errors.Is(err, ErrProjectLimit) {
		t.Fatalf("err = %v, want ErrProjectLimit", err)
	}
}

func TestGetProjectOutOfScopeIsNotFound(t *testing.T) {
	svc, _ := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	other := seedBuilder(t, svc, "Northgate")
	p, err := svc.CreateProject(context.Background(), masterAdmin(), ProjectInput{BuilderID: b.ID, Name: "Marina"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	_, err = svc.GetProject(context.Background(), builderAdmin(other.ID), p.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListProjectsIgnoresForeignBuilderFilter(t *testing.T) {
	svc, _ := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	other := seedBuilder(t, svc, "Northgate")
	if _, err := svc.CreateProject(context.Background(), masterAdmin(), ProjectInput{BuilderID: b.ID, Name: "Mine"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := svc.CreateProject(context.Background(), masterAdmin(), ProjectInput{BuilderID: other.ID, Name: "Theirs"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	items, page, err := svc.ListProjects(context.Background(), builderAdmin(b.ID), ListQuery{BuilderID: other.ID})
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if page.Total != 1 || len(items) != 1 || items[0].Name != "Mine" {
		t.Fatalf("foreign filter leaked: total=%d items=%d", page.Total, len(items))
	}
}

func TestInvestorSeesOnlyAssignedInventory(t *testing.T) {
	svc, _ := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	actor := builderAdmin(b.ID)
	p, err := svc.CreateProject(context.Background(), actor, ProjectInput{Name: "Marina", TotalUnits: 2})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	mine, err := svc.CreateInventory(context.Background(), actor, InventoryInput{
		ProjectID: p.ID, UnitType: "apartment", Price: 100, InvestorID: strptr("inv-1"),
	})
	if err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}
	if _, err := svc.CreateInventory(context.Background(), actor, InventoryInput{
		ProjectID: p.ID, UnitType: "apartment", Price: 200,
	}); err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}

	inv := investor(b.ID, "inv-1")
	items, page, err := svc.ListInventory(context.Background(), inv, ListQuery{})
	if err != nil {
		t.Fatalf("ListInventory: %v", err)
	}
	if page.Total != 1 || len(items) != 1 || items[0].ID != mine.ID {
		t.Fatalf("investor list = %d items, want only assigned unit", len(items))
	}

	// Investors read, never write.
	price := int64(999)
	_, err = svc.UpdateInventory(context.Background(), inv, mine.ID, InventoryUpdate{Price: &price})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("investor update err = %v, want ErrForbidden", err)
	}
}

func TestCreateBookingMarksUnitBooked(t *testing.T) {
	svc, store := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	actor := builderAdmin(b.ID)
	p, err := svc.CreateProject(context.Background(), actor, ProjectInput{Name: "Marina", TotalUnits: 1})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	unit, err := svc.CreateInventory(context.Background(), actor, InventoryInput{ProjectID: p.ID, UnitType: "shop", Price: 500})
	if err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}
	cust, err := svc.CreateCustomer(context.Background(), actor, CustomerInput{
		FirstName: "Ayesha", LastName: "Khan", ContactNumber: "03001234567",
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	bk, err := svc.CreateBooking(context.Background(), actor, BookingInput{
		InventoryID: unit.ID, CustomerID: cust.ID, Amount: 250,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if bk.Status != BookingConfirmed {
		t.Fatalf("Status = %s, want confirmed", bk.Status)
	}
	if bk.Reference == "" {
		t.Fatal("expected booking reference to be set")
	}
	if got := store.inventory[unit.ID].Status; got != UnitBooked {
		t.Fatalf("unit status = %s, want booked", got)
	}

	// The same unit cannot be booked twice.
	_, err = svc.CreateBooking(context.Background(), actor, BookingInput{
		InventoryID: unit.ID, CustomerID: cust.ID, Amount: 250,
	})
	if !errors.Is(err, ErrUnitUnavailable) {
		t.Fatalf("double book err = %v, want ErrUnitUnavailable", err)
	}
}

func TestCreateBookingRejectsInvestorLockedUnit(t *testing.T) {
	svc, _ := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	actor := builderAdmin(b.ID)
	p, err := svc.CreateProject(context.Background(), actor, ProjectInput{Name: "Marina"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	unit, err := svc.CreateInventory(context.Background(), actor, InventoryInput{
		ProjectID: p.ID, UnitType: "plot", Price: 500, InvestorLocked: true, InvestorID: strptr("inv-1"),
	})
	if err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}
	cust, err := svc.CreateCustomer(context.Background(), actor, CustomerInput{
		FirstName: "Sana", LastName: "Malik", ContactNumber: "03007654321",
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	_, err = svc.CreateBooking(context.Background(), actor, BookingInput{InventoryID: unit.ID, CustomerID: cust.ID, Amount: 100})
	if !errors.Is(err, ErrUnitUnavailable) {
		t.Fatalf("err = %v, want ErrUnitUnavailable", err)
	}
}

func TestCancelBookingReleasesUnit(t *testing.T) {
	svc, store := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	actor := builderAdmin(b.ID)
	p, _ := svc.CreateProject(context.Background(), actor, ProjectInput{Name: "Marina"})
	unit, _ := svc.CreateInventory(context.Background(), actor, InventoryInput{ProjectID: p.ID, UnitType: "shop", Price: 500})
	cust, _ := svc.CreateCustomer(context.Background(), actor, CustomerInput{
		FirstName: "Ayesha", LastName: "Khan", ContactNumber: "03001234567",
	})
	bk, err := svc.CreateBooking(context.Background(), actor, BookingInput{InventoryID: unit.ID, CustomerID: cust.ID, Amount: 250})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if _, err := svc.CancelBooking(context.Background(), actor, bk.ID, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty reason err = %v, want ErrValidation", err)
	}

	cancelled, err := svc.CancelBooking(context.Background(), actor, bk.ID, "customer withdrew")
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if cancelled.Status != BookingCancelled || cancelled.CancellationReason != "customer withdrew" {
		t.Fatalf("cancel state = %s/%s", cancelled.Status, cancelled.CancellationReason)
	}
	if got := store.inventory[unit.ID].Status; got != UnitAvailable {
		t.Fatalf("unit status = %s, want available", got)
	}

	if _, err := svc.CancelBooking(context.Background(), actor, bk.ID, "again"); !errors.Is(err, ErrConflict) {
		t.Fatalf("second cancel err = %v, want ErrConflict", err)
	}
}

func TestCreatePaymentValidatesMethodAndAmount(t *testing.T) {
	svc, _ := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	actor := builderAdmin(b.ID)
	p, _ := svc.CreateProject(context.Background(), actor, ProjectInput{Name: "Marina"})
	unit, _ := svc.CreateInventory(context.Background(), actor, InventoryInput{ProjectID: p.ID, UnitType: "shop", Price: 500})
	cust, _ := svc.CreateCustomer(context.Background(), actor, CustomerInput{
		FirstName: "Ayesha", LastName: "Khan", ContactNumber: "03001234567",
	})
	bk, err := svc.CreateBooking(context.Background(), actor, BookingInput{InventoryID: unit.ID, CustomerID: cust.ID, Amount: 250})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if _, err := svc.CreatePayment(context.Background(), actor, PaymentInput{BookingID: bk.ID, Amount: 0, Method: PaymentCash}); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero amount err = %v, want ErrValidation", err)
	}
	if _, err := svc.CreatePayment(context.Background(), actor, PaymentInput{BookingID: bk.ID, Amount: 50, Method: "crypto"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad method err = %v, want ErrValidation", err)
	}

	pay, err := svc.CreatePayment(context.Background(), actor, PaymentInput{BookingID: bk.ID, Amount: 50, Method: PaymentBankTransfer})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if pay.CustomerID != cust.ID || pay.BuilderID != b.ID {
		t.Fatalf("payment linkage = %s/%s", pay.CustomerID, pay.BuilderID)
	}
}

func TestCatalogCreationRequiresAdminRole(t *testing.T) {
	svc, _ := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	admin := builderAdmin(b.ID)
	p, err := svc.CreateProject(context.Background(), admin, ProjectInput{Name: "Marina"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	unit, err := svc.CreateInventory(context.Background(), admin, InventoryInput{ProjectID: p.ID, UnitType: "shop", Price: 500})
	if err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}

	staff := salesStaff(b.ID)
	if _, err := svc.CreateProject(context.Background(), staff, ProjectInput{Name: "Staff Project"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("staff create project err = %v, want ErrForbidden", err)
	}
	if _, err := svc.CreateInventory(context.Background(), staff, InventoryInput{ProjectID: p.ID, UnitType: "shop", Price: 100}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("staff create inventory err = %v, want ErrForbidden", err)
	}

	// Sales staff keep their booking workflow.
	cust, err := svc.CreateCustomer(context.Background(), staff, CustomerInput{
		FirstName: "Ayesha", LastName: "Khan", ContactNumber: "03001234567",
	})
	if err != nil {
		t.Fatalf("staff create customer: %v", err)
	}
	if _, err := svc.CreateBooking(context.Background(), staff, BookingInput{InventoryID: unit.ID, CustomerID: cust.ID, Amount: 100}); err != nil {
		t.Fatalf("staff create booking: %v", err)
	}
}

func seedBooking(t *testing.T, svc *Service, actor *auth.Account) (*Booking, *Customer) {
	t.Helper()
	p, err := svc.CreateProject(context.Background(), actor, ProjectInput{Name: "Marina"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	unit, err := svc.CreateInventory(context.Background(), actor, InventoryInput{ProjectID: p.ID, UnitType: "shop", Price: 500})
	if err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}
	cust, err := svc.CreateCustomer(context.Background(), actor, CustomerInput{
		FirstName: "Ayesha", LastName: "Khan", ContactNumber: "03001234567",
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	bk, err := svc.CreateBooking(context.Background(), actor, BookingInput{InventoryID: unit.ID, CustomerID: cust.ID, Amount: 250})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return bk, cust
}

func TestInstallmentPaymentTransitions(t *testing.T) {
	svc, _ := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	actor := builderAdmin(b.ID)
	bk, _ := seedBooking(t, svc, actor)

	due := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	inst, err := svc.CreateInstallment(context.Background(), actor, InstallmentInput{
		BookingID: bk.ID, Number: 1, DueDate: &due, Amount: 100,
	})
	if err != nil {
		t.Fatalf("CreateInstallment: %v", err)
	}
	if inst.DueStatus != InstallmentPending || inst.BalanceAmount != 100 {
		t.Fatalf("new installment = %s/%d, want pending/100", inst.DueStatus, inst.BalanceAmount)
	}

	if _, err := svc.CreateInstallment(context.Background(), actor, InstallmentInput{
		BookingID: bk.ID, Number: 1, DueDate: &due, Amount: 50,
	}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate number err = %v, want ErrConflict", err)
	}

	paid := int64(40)
	inst, err = svc.UpdateInstallment(context.Background(), actor, inst.ID, InstallmentUpdate{PaidAmount: &paid})
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if inst.DueStatus != InstallmentPartial || inst.BalanceAmount != 60 {
		t.Fatalf("after partial = %s/%d, want partial/60", inst.DueStatus, inst.BalanceAmount)
	}

	paid = 100
	inst, err = svc.UpdateInstallment(context.Background(), actor, inst.ID, InstallmentUpdate{PaidAmount: &paid})
	if err != nil {
		t.Fatalf("full payment: %v", err)
	}
	if inst.DueStatus != InstallmentPaid || inst.BalanceAmount != 0 {
		t.Fatalf("after full = %s/%d, want paid/0", inst.DueStatus, inst.BalanceAmount)
	}
	if inst.PaidDate == nil {
		t.Fatal("expected paid_date to be stamped on full payment")
	}

	paid = 200
	if _, err := svc.UpdateInstallment(context.Background(), actor, inst.ID, InstallmentUpdate{PaidAmount: &paid}); !errors.Is(err, ErrValidation) {
		t.Fatalf("overpay err = %v, want ErrValidation", err)
	}
}

func TestTransferApprovalReassignsBooking(t *testing.T) {
	svc, store := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	actor := builderAdmin(b.ID)
	bk, from := seedBooking(t, svc, actor)
	to, err := svc.CreateCustomer(context.Background(), actor, CustomerInput{
		FirstName: "Bilal", LastName: "Ahmed", ContactNumber: "03009876543",
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	if _, err := svc.CreateTransfer(context.Background(), actor, TransferInput{
		BookingID: bk.ID, ToCustomerID: from.ID,
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("same customer err = %v, want ErrValidation", err)
	}

	tr, err := svc.CreateTransfer(context.Background(), actor, TransferInput{
		BookingID: bk.ID, ToCustomerID: to.ID, TransferFee: 25,
	})
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	if tr.Status != TransferPending || tr.FromCustomerID != from.ID {
		t.Fatalf("new transfer = %s from %s", tr.Status, tr.FromCustomerID)
	}

	if _, err := svc.ApproveTransfer(context.Background(), salesStaff(b.ID), tr.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("staff approve err = %v, want ErrForbidden", err)
	}

	approved, err := svc.ApproveTransfer(context.Background(), actor, tr.ID)
	if err != nil {
		t.Fatalf("ApproveTransfer: %v", err)
	}
	if approved.Status != TransferApproved || approved.ApprovedByID == nil || approved.TransferDate == nil {
		t.Fatalf("approved state = %+v", approved)
	}
	if got := store.bookings[bk.ID].CustomerID; got != to.ID {
		t.Fatalf("booking customer = %s, want %s", got, to.ID)
	}

	if _, err := svc.ApproveTransfer(context.Background(), actor, tr.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("second approve err = %v, want ErrConflict", err)
	}
}

func TestRejectTransferLeavesBooking(t *testing.T) {
	svc, store := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	actor := builderAdmin(b.ID)
	bk, from := seedBooking(t, svc, actor)
	to, err := svc.CreateCustomer(context.Background(), actor, CustomerInput{
		FirstName: "Bilal", LastName: "Ahmed", ContactNumber: "03009876543",
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	tr, err := svc.CreateTransfer(context.Background(), actor, TransferInput{BookingID: bk.ID, ToCustomerID: to.ID})
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	rejected, err := svc.RejectTransfer(context.Background(), actor, tr.ID, "buyer backed out")
	if err != nil {
		t.Fatalf("RejectTransfer: %v", err)
	}
	if rejected.Status != TransferRejected {
		t.Fatalf("Status = %s, want rejected", rejected.Status)
	}
	if got := store.bookings[bk.ID].CustomerID; got != from.ID {
		t.Fatalf("booking customer = %s, want unchanged %s", got, from.ID)
	}
}

func TestClampPage(t *testing.T) {
	cases := []struct {
		name                 string
		skip, limit          int
		wantSkip, wantLimit  int
	}{
		{"defaults", 0, 0, 0, defaultPageLimit},
		{"negative skip", -5, 20, 0, 20},
		{"over cap", 10, 1000, 10, maxPageLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			skip, limit := ClampPage(tc.skip, tc.limit)
			if skip != tc.wantSkip || limit != tc.wantLimit {
				t.Fatalf("ClampPage(%d, %d) = %d, %d", tc.skip, tc.limit, skip, limit)
			}
		})
	}
}

func TestSummarizeScopesToBuilder(t *testing.T) {
	svc, _ := testService(t)
	b := seedBuilder(t, svc, "Shoreline")
	other := seedBuilder(t, svc, "Northgate")
	if _, err := svc.CreateProject(context.Background(), masterAdmin(), ProjectInput{BuilderID: b.ID, Name: "Mine"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := svc.CreateProject(context.Background(), masterAdmin(), ProjectInput{BuilderID: other.ID, Name: "Theirs"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	sum, err := svc.Summarize(context.Background(), builderAdmin(b.ID))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Projects != 1 {
		t.Fatalf("Projects = %d, want 1", sum.Projects)
	}
}
