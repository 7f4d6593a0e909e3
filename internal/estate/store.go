package estate

import (
	"context"
	"time"

	"kingsbuilder.org/internal/auth"
)

// Store describes persistence for the business records. Every read takes a
// resolved scope; the implementation must apply it to the query, never after
// the fact.
type Store interface {
	CreateBuilder(ctx context.Context, b *Builder) error
	FindBuilder(ctx context.Context, id string) (*Builder, error)
	ListBuilders(ctx context.Context, q ListQuery) ([]*Builder, int, error)
	UpdateBuilder(ctx context.Context, id string, upd BuilderUpdate) (*Builder, error)
	CountActiveProjects(ctx context.Context, builderID string) (int, error)

	CreateProject(ctx context.Context, p *Project) error
	FindProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context, q ListQuery) ([]*Project, int, error)
	UpdateProject(ctx context.Context, id string, upd ProjectUpdate) (*Project, error)

	CreateInventory(ctx context.Context, u *Inventory) error
	FindInventory(ctx context.Context, id string) (*Inventory, error)
	ListInventory(ctx context.Context, q ListQuery) ([]*Inventory, int, error)
	UpdateInventory(ctx context.Context, id string, upd InventoryUpdate) (*Inventory, error)

	CreateCustomer(ctx context.Context, c *Customer) error
	FindCustomer(ctx context.Context, id string) (*Customer, error)
	ListCustomers(ctx context.Context, q ListQuery) ([]*Customer, int, error)
	UpdateCustomer(ctx context.Context, id string, upd CustomerUpdate) (*Customer, error)

	// CreateBooking inserts the booking and marks the unit booked in one
	// transaction.
	CreateBooking(ctx context.Context, b *Booking) error
	FindBooking(ctx context.Context, id string) (*Booking, error)
	ListBookings(ctx context.Context, q ListQuery) ([]*Booking, int, error)
	// CancelBooking records the cancellation and releases the unit in one
	// transaction.
	CancelBooking(ctx context.Context, id, reason string) (*Booking, error)

	CreatePayment(ctx context.Context, p *Payment) error
	FindPayment(ctx context.Context, id string) (*Payment, error)
	ListPayments(ctx context.Context, q ListQuery) ([]*Payment, int, error)

	CreateInstallment(ctx context.Context, i *Installment) error
	FindInstallment(ctx context.Context, id string) (*Installment, error)
	ListInstallments(ctx context.Context, q ListQuery) ([]*Installment, int, error)
	UpdateInstallment(ctx context.Context, id string, upd InstallmentUpdate) (*Installment, error)

	CreateTransfer(ctx context.Context, t *Transfer) error
	FindTransfer(ctx context.Context, id string) (*Transfer, error)
	ListTransfers(ctx context.Context, q ListQuery) ([]*Transfer, int, error)
	// ApproveTransfer marks the pending transfer approved and reassigns the
	// booking to the incoming customer in one transaction.
	ApproveTransfer(ctx context.Context, id, approverID string, at time.Time) (*Transfer, error)
	RejectTransfer(ctx context.Context, id, remarks string) (*Transfer, error)

	Summarize(ctx context.Context, scope auth.Scope) (Summary, error)
}

// BuilderUpdate carries optional builder field changes. Nil means keep.
type BuilderUpdate struct {
	Name               *string
	RegistrationNumber *string
	ContactPerson      *string
	ContactEmail       *string
	ContactPhone       *string
	Address            *string
	City               *string
	Country            *string
	MaxProjects        *int
	Status             *string
}

// ProjectUpdate carries optional project field changes.
type ProjectUpdate struct {
	Name                   *string
	Description            *string
	Location               *string
	City                   *string
	TotalUnits             *int
	Status                 *string
	StartDate              *time.Time
	ExpectedCompletionDate *time.Time
}

// InventoryUpdate carries optional inventory field changes.
type InventoryUpdate struct {
	UnitNumber     *string
	UnitType       *string
	Category       *string
	Size           *float64
	Price          *int64
	Status         *string
	HoldExpiryDate *time.Time
	InvestorLocked *bool
	InvestorID     *string
	Remarks        *string
}

// InstallmentUpdate carries optional installment field changes.
type InstallmentUpdate struct {
	DueDate    *time.Time
	Amount     *int64
	PaidAmount *int64
	DueStatus  *string
	PaidDate   *time.Time
	Remarks    *string
}

// CustomerUpdate carries optional customer field changes.
type CustomerUpdate struct {
	FirstName        *string
	LastName         *string
	FatherName       *string
	CNIC             *string
	ContactNumber    *string
	AlternateContact *string
	Email            *string
	Address          *string
	City             *string
	Country          *string
	Occupation       *string
	Status           *string
}
