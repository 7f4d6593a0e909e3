package estate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kingsbuilder.org/internal/auth"
	"kingsbuilder.org/internal/ids"
)

const (
	defaultMaxProjects = 10
	maxPageLimit       = 100
	defaultPageLimit   = 10
)

// Service owns the business-record operations. Every method resolves the
// caller's scope before touching the store; there is no unscoped path.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service over the given store.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("estate: store is required")
	}
	svc := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ClampPage normalizes skip/limit to the supported window.
func ClampPage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return skip, limit
}

// NewPage builds the pagination envelope for a result set.
func NewPage(skip, limit, total int) Page {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page{Skip: skip, Limit: limit, Total: total, Pages: pages}
}

// --- builders ---

// BuilderInput carries the fields to register a builder organization.
type BuilderInput struct {
	Name               string
	RegistrationNumber string
	ContactPerson      string
	ContactEmail       string
	ContactPhone       string
	Address            string
	City               string
	Country            string
	MaxProjects        int
}

// CreateBuilder registers a tenant. Only master_admin creates builders.
func (s *Service) CreateBuilder(ctx context.Context, actor *auth.Account, in BuilderInput) (*Builder, error) {
	if actor.Role != auth.RoleMasterAdmin {
		return nil, ErrForbidden
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: builder name is required", ErrValidation)
	}
	if in.ContactEmail != "" && !strings.Contains(in.ContactEmail, "@") {
		return nil, fmt.Errorf("%w: invalid contact email", ErrValidation)
	}
	if in.MaxProjects <= 0 {
		in.MaxProjects = defaultMaxProjects
	}
	now := s.now().UTC()
	b := &Builder{
		ID:                 ids.New(),
		Name:               in.Name,
		RegistrationNumber: strings.TrimSpace(in.RegistrationNumber),
		ContactPerson:      strings.TrimSpace(in.ContactPerson),
		ContactEmail:       strings.TrimSpace(strings.ToLower(in.ContactEmail)),
		ContactPhone:       strings.TrimSpace(in.ContactPhone),
		Address:            strings.TrimSpace(in.Address),
		City:               strings.TrimSpace(in.City),
		Country:            strings.TrimSpace(in.Country),
		MaxProjects:        in.MaxProjects,
		Status:             StatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreateBuilder(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBuilders returns builders visible to the actor.
func (s *Service) ListBuilders(ctx context.Context, actor *auth.Account, q ListQuery) ([]*Builder, Page, error) {
	q.Scope = auth.ResolveScope(actor, auth.ResourceBuilders, auth.Filters{BuilderID: q.BuilderID})
	q.Skip, q.Limit = ClampPage(q.Skip, q.Limit)
	items, total, err := s.store.ListBuilders(ctx, q)
	if err != nil {
		return nil, Page{}, err
	}
	return items, NewPage(q.Skip, q.Limit, total), nil
}

// GetBuilder loads one builder visible to the actor.
func (s *Service) GetBuilder(ctx context.Context, actor *auth.Account, id string) (*Builder, error) {
	b, err := s.store.FindBuilder(ctx, id)
	if err != nil {
		return nil, err
	}
	scope := auth.ResolveScope(actor, auth.ResourceBuilders, auth.Filters{})
	if !scope.Allows(b.ID) {
		return nil, ErrNotFound
	}
	return b, nil
}

// UpdateBuilder applies a partial update. Only master_admin mutates builders.
func (s *Service) UpdateBuilder(ctx context.Context, actor *auth.Account, id string, upd BuilderUpdate) (*Builder, error) {
	if actor.Role != auth.RoleMasterAdmin {
		return nil, ErrForbidden
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: builder name is required", ErrValidation)
		}
		upd.Name = &name
	}
	if upd.Status != nil && *upd.Status != StatusActive && *upd.Status != StatusArchived {
		return nil, fmt.Errorf("%w: unsupported status %s", ErrValidation, *upd.Status)
	}
	if upd.MaxProjects != nil && *upd.MaxProjects <= 0 {
		return nil, fmt.Errorf("%w: max_projects must be positive", ErrValidation)
	}
	return s.store.UpdateBuilder(ctx, id, upd)
}

// --- projects ---

// ProjectInput carries the fields to create a project.
type ProjectInput struct {
	BuilderID              string
	Name                   string
	Description            string
	Location               string
	City                   string
	TotalUnits             int
	StartDate              *time.Time
	ExpectedCompletionDate *time.Time
}

// CreateProject creates a project inside the actor's builder (master_admin may
// name any builder). Admin roles only; creation past the builder's
// max_projects ceiling fails.
func (s *Service) CreateProject(ctx context.Context, actor *auth.Account, in ProjectInput) (*Project, error) {
	if !adminRole(actor) {
		return nil, ErrForbidden
	}
	builderID, err := resolveTargetBuilder(actor, in.BuilderID)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrValidation)
	}
	if in.TotalUnits < 0 {
		return nil, fmt.Errorf("%w: total_units must be >= 0", ErrValidation)
	}
	builder, err := s.store.FindBuilder(ctx, builderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: builder not found", ErrValidation)
		}
		return nil, err
	}
	count, err := s.store.CountActiveProjects(ctx, builder.ID)
	if err != nil {
		return nil, err
	}
	if count >= builder.MaxProjects {
		return nil, fmt.Errorf("%w: maximum %d projects", ErrProjectLimit, builder.MaxProjects)
	}
	now := s.now().UTC()
	p := &Project{
		ID:                     ids.New(),
		BuilderID:              builder.ID,
		Name:                   in.Name,
		Description:            strings.TrimSpace(in.Description),
		Location:               strings.TrimSpace(in.Location),
		City:                   strings.TrimSpace(in.City),
		TotalUnits:             in.TotalUnits,
		AvailableUnits:         in.TotalUnits,
		Status:                 StatusActive,
		StartDate:              in.StartDate,
		ExpectedCompletionDate: in.ExpectedCompletionDate,
		CreatedByID:            actor.ID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects returns projects under the actor's resolved scope. A caller
// filter naming a foreign builder is overridden by the resolver, never
// honored.
func (s *Service) ListProjects(ctx context.Context, actor *auth.Account, q ListQuery) ([]*Project, Page, error) {
	q.Scope = auth.ResolveScope(actor, auth.ResourceProjects, auth.Filters{BuilderID: q.BuilderID})
	q.Skip, q.Limit = ClampPage(q.Skip, q.Limit)
	items, total, err := s.store.ListProjects(ctx, q)
	if err != nil {
		return nil, Page{}, err
	}
	return items, NewPage(q.Skip, q.Limit, total), nil
}

// GetProject loads one project; out-of-scope rows surface as not found.
func (s *Service) GetProject(ctx context.Context, actor *auth.Account, id string) (*Project, error) {
	p, err := s.store.FindProject(ctx, id)
	if err != nil {
		return nil, err
	}
	scope := auth.ResolveScope(actor, auth.ResourceProjects, auth.Filters{})
	if !scope.Allows(p.BuilderID) {
		return nil, ErrNotFound
	}
	return p, nil
}

// UpdateProject applies a partial update after the write gate.
func (s *Service) UpdateProject(ctx context.Context, actor *auth.Account, id string, upd ProjectUpdate) (*Project, error) {
	current, err := s.GetProject(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanWrite(actor, current.BuilderID) {
		return nil, ErrForbidden
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: project name is required", ErrValidation)
		}
		upd.Name = &name
	}
	if upd.TotalUnits != nil && *upd.TotalUnits < 0 {
		return nil, fmt.Errorf("%w: total_units must be >= 0", ErrValidation)
	}
	return s.store.UpdateProject(ctx, id, upd)
}

// ArchiveProject soft-deletes a project via its status flag.
func (s *Service) ArchiveProject(ctx context.Context, actor *auth.Account, id string) (*Project, error) {
	status := StatusArchived
	return s.UpdateProject(ctx, actor, id, ProjectUpdate{Status: &status})
}

// --- inventory ---

// InventoryInput carries the fields to register a unit.
type InventoryInput struct {
	ProjectID      string
	UnitNumber     string
	UnitType       string
	Category       string
	Size           float64
	Price          int64
	InvestorLocked bool
	InvestorID     *string
	Remarks        string
}

// CreateInventory registers a unit under a project the actor can write to.
// Admin roles only.
func (s *Service) CreateInventory(ctx context.Context, actor *auth.Account, in InventoryInput) (*Inventory, error) {
	if !adminRole(actor) {
		return nil, ErrForbidden
	}
	in.UnitType = strings.TrimSpace(strings.ToLower(in.UnitType))
	if in.UnitType == "" {
		return nil, fmt.Errorf("%w: unit_type is required", ErrValidation)
	}
	if in.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	project, err := s.GetProject(ctx, actor, strings.TrimSpace(in.ProjectID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: project not found", ErrValidation)
		}
		return nil, err
	}
	if !auth.CanWrite(actor, project.BuilderID) {
		return nil, ErrForbidden
	}
	now := s.now().UTC()
	u := &Inventory{
		ID:             ids.New(),
		BuilderID:      project.BuilderID,
		ProjectID:      project.ID,
		UnitNumber:     strings.TrimSpace(in.UnitNumber),
		UnitType:       in.UnitType,
		Category:       strings.TrimSpace(in.Category),
		Size:           in.Size,
		Price:          in.Price,
		Status:         UnitAvailable,
		InvestorLocked: in.InvestorLocked,
		InvestorID:     in.InvestorID,
		Remarks:        strings.TrimSpace(in.Remarks),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateInventory(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListInventory returns units under the actor's resolved scope. For investor
// accounts the scope is forced to units assigned to them regardless of any
// caller-supplied builder filter.
func (s *Service) ListInventory(ctx context.Context, actor *auth.Account, q ListQuery) ([]*Inventory, Page, error) {
	q.Scope = auth.ResolveScope(actor, auth.ResourceInventory, auth.Filters{
		BuilderID:  q.BuilderID,
		InvestorID: q.InvestorID,
	})
	q.Skip, q.Limit = ClampPage(q.Skip, q.Limit)
	items, total, err := s.store.ListInventory(ctx, q)
	if err != nil {
		return nil, Page{}, err
	}
	return items, NewPage(q.Skip, q.Limit, total), nil
}

// GetInventory loads one unit visible under the actor's scope.
func (s *Service) GetInventory(ctx context.Context, actor *auth.Account, id string) (*Inventory, error) {
	u, err := s.store.FindInventory(ctx, id)
	if err != nil {
		return nil, err
	}
	scope := auth.ResolveScope(actor, auth.ResourceInventory, auth.Filters{})
	if scope.InvestorID != nil {
		if u.InvestorID == nil || *u.InvestorID != *scope.InvestorID {
			return nil, ErrNotFound
		}
		return u, nil
	}
	if !scope.Allows(u.BuilderID) {
		return nil, ErrNotFound
	}
	return u, nil
}

// UpdateInventory applies a partial update after the write gate.
func (s *Service) UpdateInventory(ctx context.Context, actor *auth.Account, id string, upd InventoryUpdate) (*Inventory, error) {
	current, err := s.GetInventory(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanWrite(actor, current.BuilderID) {
		return nil, ErrForbidden
	}
	if upd.Price != nil && *upd.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if upd.Status != nil {
		switch *upd.Status {
		case UnitAvailable, UnitHeld, UnitBooked, UnitSold:
		default:
			return nil, fmt.Errorf("%w: unsupported status %s", ErrValidation, *upd.Status)
		}
	}
	return s.store.UpdateInventory(ctx, id, upd)
}

// --- customers ---

// CustomerInput carries the fields to register a customer.
type CustomerInput struct {
	BuilderID        string
	FirstName        string
	LastName         string
	FatherName       string
	CNIC             string
	ContactNumber    string
	AlternateContact string
	Email            string
	Address          string
	City             string
	Country          string
	Occupation       string
}

// CreateCustomer registers a customer inside the actor's builder.
func (s *Service) CreateCustomer(ctx context.Context, actor *auth.Account, in CustomerInput) (*Customer, error) {
	builderID, err := resolveTargetBuilder(actor, in.BuilderID)
	if err != nil {
		return nil, err
	}
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.ContactNumber = strings.TrimSpace(in.ContactNumber)
	if in.FirstName == "" || in.LastName == "" {
		return nil, fmt.Errorf("%w: first_name and last_name are required", ErrValidation)
	}
	if len(in.ContactNumber) < 10 {
		return nil, fmt.Errorf("%w: contact_number must be at least 10 digits", ErrValidation)
	}
	if cnic := strings.TrimSpace(in.CNIC); cnic != "" && len(cnic) != 13 {
		return nil, fmt.Errorf("%w: cnic must be 13 digits", ErrValidation)
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	now := s.now().UTC()
	c := &Customer{
		ID:               ids.New(),
		BuilderID:        builderID,
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		FatherName:       strings.TrimSpace(in.FatherName),
		CNIC:             strings.TrimSpace(in.CNIC),
		ContactNumber:    in.ContactNumber,
		AlternateContact: strings.TrimSpace(in.AlternateContact),
		Email:            strings.TrimSpace(strings.ToLower(in.Email)),
		Address:          strings.TrimSpace(in.Address),
		City:             strings.TrimSpace(in.City),
		Country:          strings.TrimSpace(in.Country),
		Occupation:       strings.TrimSpace(in.Occupation),
		Status:           StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCustomers returns customers under the actor's resolved scope.
func (s *Service) ListCustomers(ctx context.Context, actor *auth.Account, q ListQuery) ([]*Customer, Page, error) {
	q.Scope = auth.ResolveScope(actor, auth.ResourceCustomers, auth.Filters{BuilderID: q.BuilderID})
	q.Skip, q.Limit = ClampPage(q.Skip, q.Limit)
	items, total, err := s.store.ListCustomers(ctx, q)
	if err != nil {
		return nil, Page{}, err
	}
	return items, NewPage(q.Skip, q.Limit, total), nil
}

// GetCustomer loads one customer visible under the actor's scope.
func (s *Service) GetCustomer(ctx context.Context, actor *auth.Account, id string) (*Customer, error) {
	c, err := s.store.FindCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	scope := auth.ResolveScope(actor, auth.ResourceCustomers, auth.Filters{})
	if !scope.Allows(c.BuilderID) {
		return nil, ErrNotFound
	}
	return c, nil
}

// UpdateCustomer applies a partial update after the write gate.
func (s *Service) UpdateCustomer(ctx context.Context, actor *auth.Account, id string, upd CustomerUpdate) (*Customer, error) {
	current, err := s.GetCustomer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanWrite(actor, current.BuilderID) {
		return nil, ErrForbidden
	}
	if upd.ContactNumber != nil && len(strings.TrimSpace(*upd.ContactNumber)) < 10 {
		return nil, fmt.Errorf("%w: contact_number must be at least 10 digits", ErrValidation)
	}
	if upd.Status != nil && *upd.Status != StatusActive && *upd.Status != StatusArchived {
		return nil, fmt.Errorf("%w: unsupported status %s", ErrValidation, *upd.Status)
	}
	return s.store.UpdateCustomer(ctx, id, upd)
}

// --- bookings ---

// BookingInput carries the fields to book a unit for a customer.
type BookingInput struct {
	InventoryID string
	CustomerID  string
	Amount      int64
	Remarks     string
}

// CreateBooking books an available unit for a customer of the same builder.
// The unit is marked booked in the same transaction as the booking insert.
func (s *Service) CreateBooking(ctx context.Context, actor *auth.Account, in BookingInput) (*Booking, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: booking_amount must be positive", ErrValidation)
	}
	unit, err := s.GetInventory(ctx, actor, strings.TrimSpace(in.InventoryID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: inventory unit not found", ErrValidation)
		}
		return nil, err
	}
	if !auth.CanWrite(actor, unit.BuilderID) {
		return nil, ErrForbidden
	}
	if unit.Status != UnitAvailable || unit.InvestorLocked {
		return nil, ErrUnitUnavailable
	}
	customer, err := s.GetCustomer(ctx, actor, strings.TrimSpace(in.CustomerID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: customer not found", ErrValidation)
		}
		return nil, err
	}
	if customer.BuilderID != unit.BuilderID {
		return nil, fmt.Errorf("%w: customer belongs to a different builder", ErrValidation)
	}
	now := s.now().UTC()
	id := ids.New()
	b := &Booking{
		ID:          id,
		BuilderID:   unit.BuilderID,
		ProjectID:   unit.ProjectID,
		InventoryID: unit.ID,
		CustomerID:  customer.ID,
		BookingDate: now,
		Amount:      in.Amount,
		Status:      BookingConfirmed,
		Reference:   "BK-" + id[len(id)-10:],
		Remarks:     strings.TrimSpace(in.Remarks),
		CreatedByID: actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBookings returns bookings under the actor's resolved scope.
func (s *Service) ListBookings(ctx context.Context, actor *auth.Account, q ListQuery) ([]*Booking, Page, error) {
	q.Scope = auth.ResolveScope(actor, auth.ResourceBookings, auth.Filters{BuilderID: q.BuilderID})
	q.Skip, q.Limit = ClampPage(q.Skip, q.Limit)
	items, total, err := s.store.ListBookings(ctx, q)
	if err != nil {
		return nil, Page{}, err
	}
	return items, NewPage(q.Skip, q.Limit, total), nil
}

// GetBooking loads one booking visible under the actor's scope.
func (s *Service) GetBooking(ctx context.Context, actor *auth.Account, id string) (*Booking, error) {
	b, err := s.store.FindBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	scope := auth.ResolveScope(actor, auth.ResourceBookings, auth.Filters{})
	if !scope.Allows(b.BuilderID) {
		return nil, ErrNotFound
	}
	return b, nil
}

// CancelBooking cancels a confirmed booking and releases the unit.
func (s *Service) CancelBooking(ctx context.Context, actor *auth.Account, id, reason string) (*Booking, error) {
	current, err := s.GetBooking(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanWrite(actor, current.BuilderID) {
		return nil, ErrForbidden
	}
	if current.Status != BookingConfirmed {
		return nil, fmt.Errorf("%w: only confirmed bookings can be cancelled", ErrConflict)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: cancellation_reason is required", ErrValidation)
	}
	return s.store.CancelBooking(ctx, id, reason)
}

// --- payments ---

// PaymentInput carries the fields to record a payment.
type PaymentInput struct {
	BookingID       string
	Amount          int64
	Method          string
	PaymentDate     *time.Time
	ReferenceNumber string
	Remarks         string
}

// CreatePayment records money received against a booking in scope.
func (s *Service) CreatePayment(ctx context.Context, actor *auth.Account, in PaymentInput) (*Payment, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	in.Method = strings.TrimSpace(strings.ToLower(in.Method))
	switch in.Method {
	case PaymentCash, PaymentCheque, PaymentBankTransfer, PaymentOnline:
	default:
		return nil, fmt.Errorf("%w: unsupported payment_method %s", ErrValidation, in.Method)
	}
	booking, err := s.GetBooking(ctx, actor, strings.TrimSpace(in.BookingID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: booking not found", ErrValidation)
		}
		return nil, err
	}
	if !auth.CanWrite(actor, booking.BuilderID) {
		return nil, ErrForbidden
	}
	if booking.Status == BookingCancelled {
		return nil, fmt.Errorf("%w: booking is cancelled", ErrConflict)
	}
	now := s.now().UTC()
	paymentDate := now
	if in.PaymentDate != nil {
		paymentDate = in.PaymentDate.UTC()
	}
	p := &Payment{
		ID:              ids.New(),
		BuilderID:       booking.BuilderID,
		BookingID:       booking.ID,
		CustomerID:      booking.CustomerID,
		Amount:          in.Amount,
		Method:          in.Method,
		PaymentDate:     paymentDate,
		ReferenceNumber: strings.TrimSpace(in.ReferenceNumber),
		Remarks:         strings.TrimSpace(in.Remarks),
		CreatedByID:     actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPayments returns payments under the actor's resolved scope.
func (s *Service) ListPayments(ctx context.Context, actor *auth.Account, q ListQuery) ([]*Payment, Page, error) {
	q.Scope = auth.ResolveScope(actor, auth.ResourcePayments, auth.Filters{BuilderID: q.BuilderID})
	q.Skip, q.Limit = ClampPage(q.Skip, q.Limit)
	items, total, err := s.store.ListPayments(ctx, q)
	if err != nil {
		return nil, Page{}, err
	}
	return items, NewPage(q.Skip, q.Limit, total), nil
}

// GetPayment loads one payment visible under the actor's scope.
func (s *Service) GetPayment(ctx context.Context, actor *auth.Account, id string) (*Payment, error) {
	p, err := s.store.FindPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	scope := auth.ResolveScope(actor, auth.ResourcePayments, auth.Filters{})
	if !scope.Allows(p.BuilderID) {
		return nil, ErrNotFound
	}
	return p, nil
}

// --- installments ---

// InstallmentInput carries the fields to add one schedule entry.
type InstallmentInput struct {
	BookingID string
	Number    int
	DueDate   *time.Time
	Amount    int64
	Remarks   string
}

// CreateInstallment adds a schedule entry to a booking in scope. Entries start
// pending with nothing paid.
func (s *Service) CreateInstallment(ctx context.Context, actor *auth.Account, in InstallmentInput) (*Installment, error) {
	if in.Number <= 0 {
		return nil, fmt.Errorf("%w: installment_number must be positive", ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if in.DueDate == nil {
		return nil, fmt.Errorf("%w: due_date is required", ErrValidation)
	}
	booking, err := s.GetBooking(ctx, actor, strings.TrimSpace(in.BookingID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: booking not found", ErrValidation)
		}
		return nil, err
	}
	if !auth.CanWrite(actor, booking.BuilderID) {
		return nil, ErrForbidden
	}
	if booking.Status == BookingCancelled {
		return nil, fmt.Errorf("%w: booking is cancelled", ErrConflict)
	}
	now := s.now().UTC()
	i := &Installment{
		ID:            ids.New(),
		BuilderID:     booking.BuilderID,
		BookingID:     booking.ID,
		Number:        in.Number,
		DueDate:       in.DueDate.UTC(),
		Amount:        in.Amount,
		BalanceAmount: in.Amount,
		DueStatus:     InstallmentPending,
		Remarks:       strings.TrimSpace(in.Remarks),
		CreatedByID:   actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateInstallment(ctx, i); err != nil {
		return nil, err
	}
	return i, nil
}

// ListInstallments returns schedule entries under the actor's resolved scope.
func (s *Service) ListInstallments(ctx context.Context, actor *auth.Account, q ListQuery) ([]*Installment, Page, error) {
	q.Scope = auth.ResolveScope(actor, auth.ResourceInstallments, auth.Filters{BuilderID: q.BuilderID})
	q.Skip, q.Limit = ClampPage(q.Skip, q.Limit)
	items, total, err := s.store.ListInstallments(ctx, q)
	if err != nil {
		return nil, Page{}, err
	}
	return items, NewPage(q.Skip, q.Limit, total), nil
}

// GetInstallment loads one schedule entry visible under the actor's scope.
func (s *Service) GetInstallment(ctx context.Context, actor *auth.Account, id string) (*Installment, error) {
	i, err := s.store.FindInstallment(ctx, id)
	if err != nil {
		return nil, err
	}
	scope := auth.ResolveScope(actor, auth.ResourceInstallments, auth.Filters{})
	if !scope.Allows(i.BuilderID) {
		return nil, ErrNotFound
	}
	return i, nil
}

// UpdateInstallment applies a partial update after the write gate. A
// paid_amount change recomputes the due status unless the caller sets one
// explicitly; full payment stamps paid_date.
func (s *Service) UpdateInstallment(ctx context.Context, actor *auth.Account, id string, upd InstallmentUpdate) (*Installment, error) {
	current, err := s.GetInstallment(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanWrite(actor, current.BuilderID) {
		return nil, ErrForbidden
	}
	if upd.Amount != nil && *upd.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if upd.PaidAmount != nil && *upd.PaidAmount < 0 {
		return nil, fmt.Errorf("%w: paid_amount must be >= 0", ErrValidation)
	}
	if upd.DueStatus != nil {
		switch *upd.DueStatus {
		case InstallmentPending, InstallmentPartial, InstallmentPaid, InstallmentOverdue:
		default:
			return nil, fmt.Errorf("%w: unsupported due_status %s", ErrValidation, *upd.DueStatus)
		}
	}
	if upd.PaidAmount != nil {
		amount := current.Amount
		if upd.Amount != nil {
			amount = *upd.Amount
		}
		if *upd.PaidAmount > amount {
			return nil, fmt.Errorf("%w: paid_amount exceeds amount", ErrValidation)
		}
		if upd.DueStatus == nil {
			status := InstallmentPending
			switch {
			case *upd.PaidAmount >= amount:
				status = InstallmentPaid
			case *upd.PaidAmount > 0:
				status = InstallmentPartial
			}
			upd.DueStatus = &status
		}
		if *upd.DueStatus == InstallmentPaid && upd.PaidDate == nil {
			paid := s.now().UTC()
			upd.PaidDate = &paid
		}
	}
	return s.store.UpdateInstallment(ctx, id, upd)
}

// --- transfers ---

// TransferInput carries the fields to open a unit transfer.
type TransferInput struct {
	BookingID    string
	ToCustomerID string
	TransferFee  int64
	Remarks      string
}

// CreateTransfer opens a pending transfer moving a confirmed booking to
// another customer of the same builder.
func (s *Service) CreateTransfer(ctx context.Context, actor *auth.Account, in TransferInput) (*Transfer, error) {
	if in.TransferFee < 0 {
		return nil, fmt.Errorf("%w: transfer_fee must be >= 0", ErrValidation)
	}
	booking, err := s.GetBooking(ctx, actor, strings.TrimSpace(in.BookingID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: booking not found", ErrValidation)
		}
		return nil, err
	}
	if !auth.CanWrite(actor, booking.BuilderID) {
		return nil, ErrForbidden
	}
	if booking.Status != BookingConfirmed {
		return nil, fmt.Errorf("%w: only confirmed bookings can be transferred", ErrConflict)
	}
	to, err := s.GetCustomer(ctx, actor, strings.TrimSpace(in.ToCustomerID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: customer not found", ErrValidation)
		}
		return nil, err
	}
	if to.BuilderID != booking.BuilderID {
		return nil, fmt.Errorf("%w: customer belongs to a different builder", ErrValidation)
	}
	if to.ID == booking.CustomerID {
		return nil, fmt.Errorf("%w: booking already belongs to this customer", ErrValidation)
	}
	now := s.now().UTC()
	t := &Transfer{
		ID:             ids.New(),
		BuilderID:      booking.BuilderID,
		InventoryID:    booking.InventoryID,
		BookingID:      booking.ID,
		FromCustomerID: booking.CustomerID,
		ToCustomerID:   to.ID,
		TransferFee:    in.TransferFee,
		Status:         TransferPending,
		Remarks:        strings.TrimSpace(in.Remarks),
		CreatedByID:    actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateTransfer(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransfers returns transfers under the actor's resolved scope.
func (s *Service) ListTransfers(ctx context.Context, actor *auth.Account, q ListQuery) ([]*Transfer, Page, error) {
	q.Scope = auth.ResolveScope(actor, auth.ResourceTransfers, auth.Filters{BuilderID: q.BuilderID})
	q.Skip, q.Limit = ClampPage(q.Skip, q.Limit)
	items, total, err := s.store.ListTransfers(ctx, q)
	if err != nil {
		return nil, Page{}, err
	}
	return items, NewPage(q.Skip, q.Limit, total), nil
}

// GetTransfer loads one transfer visible under the actor's scope.
func (s *Service) GetTransfer(ctx context.Context, actor *auth.Account, id string) (*Transfer, error) {
	t, err := s.store.FindTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	scope := auth.ResolveScope(actor, auth.ResourceTransfers, auth.Filters{})
	if !scope.Allows(t.BuilderID) {
		return nil, ErrNotFound
	}
	return t, nil
}

// ApproveTransfer approves a pending transfer and reassigns the booking to
// the incoming customer. Admin roles only.
func (s *Service) ApproveTransfer(ctx context.Context, actor *auth.Account, id string) (*Transfer, error) {
	if !adminRole(actor) {
		return nil, ErrForbidden
	}
	current, err := s.GetTransfer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanWrite(actor, current.BuilderID) {
		return nil, ErrForbidden
	}
	if current.Status != TransferPending {
		return nil, fmt.Errorf("%w: only pending transfers can be approved", ErrConflict)
	}
	return s.store.ApproveTransfer(ctx, id, actor.ID, s.now().UTC())
}

// RejectTransfer closes a pending transfer without touching the booking.
// Admin roles only.
func (s *Service) RejectTransfer(ctx context.Context, actor *auth.Account, id, remarks string) (*Transfer, error) {
	if !adminRole(actor) {
		return nil, ErrForbidden
	}
	current, err := s.GetTransfer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanWrite(actor, current.BuilderID) {
		return nil, ErrForbidden
	}
	if current.Status != TransferPending {
		return nil, fmt.Errorf("%w: only pending transfers can be rejected", ErrConflict)
	}
	return s.store.RejectTransfer(ctx, id, strings.TrimSpace(remarks))
}

// --- reports ---

// Summarize aggregates the caller-visible portfolio.
func (s *Service) Summarize(ctx context.Context, actor *auth.Account) (Summary, error) {
	resource := auth.ResourceProjects
	if actor.Role == auth.RoleInvestor {
		resource = auth.ResourceInventory
	}
	scope := auth.ResolveScope(actor, resource, auth.Filters{})
	return s.store.Summarize(ctx, scope)
}

// --- helpers ---

// adminRole reports whether the actor holds an administrative role. Catalog
// writes (projects, inventory) are reserved for admins; sales_staff operate on
// bookings, customers and payments only.
func adminRole(actor *auth.Account) bool {
	return actor.Role == auth.RoleMasterAdmin || actor.Role == auth.RoleBuilderAdmin
}

// resolveTargetBuilder decides which builder a create lands in: master_admin
// may name any builder, everyone else is forced into their own. Naming a
// foreign builder is a scope violation, not a silent override, on writes.
func resolveTargetBuilder(actor *auth.Account, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if actor.Role == auth.RoleInvestor {
		return "", ErrForbidden
	}
	if actor.Role == auth.RoleMasterAdmin {
		if requested == "" {
			return "", fmt.Errorf("%w: builder_id is required", ErrValidation)
		}
		return requested, nil
	}
	if actor.BuilderID == nil {
		return "", ErrForbidden
	}
	if requested != "" && requested != *actor.BuilderID {
		return "", ErrForbidden
	}
	return *actor.BuilderID, nil
}
