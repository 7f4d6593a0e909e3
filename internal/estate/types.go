package estate

import (
	"time"

	"kingsbuilder.org/internal/auth"
)

// Record status values shared across the entities. Records are archived
// rather than hard-deleted.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Inventory unit lifecycle.
const (
	UnitAvailable = "available"
	UnitHeld      = "held"
	UnitBooked    = "booked"
	UnitSold      = "sold"
)

// Booking lifecycle.
const (
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// Installment due-status values.
const (
	InstallmentPending = "pending"
	InstallmentPartial = "partial"
	InstallmentPaid    = "paid"
	InstallmentOverdue = "overdue"
)

// Transfer lifecycle.
const (
	TransferPending  = "pending"
	TransferApproved = "approved"
	TransferRejected = "rejected"
)

// Payment methods accepted by the back office.
const (
	PaymentCash         = "cash"
	PaymentCheque       = "cheque"
	PaymentBankTransfer = "bank_transfer"
	PaymentOnline       = "online"
)

// Builder is the tenant boundary owning projects, inventory and staff.
type Builder struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	RegistrationNumber string    `json:"registration_number,omitempty"`
	ContactPerson      string    `json:"contact_person,omitempty"`
	ContactEmail       string    `json:"contact_email,omitempty"`
	ContactPhone       string    `json:"contact_phone,omitempty"`
	Address            string    `json:"address,omitempty"`
	City               string    `json:"city,omitempty"`
	Country            string    `json:"country,omitempty"`
	MaxProjects        int       `json:"max_projects"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Project groups inventory units under a builder.
type Project struct {
	ID                     string     `json:"id"`
	BuilderID              string     `json:"builder_id"`
	Name                   string     `json:"name"`
	Description            string     `json:"description,omitempty"`
	Location               string     `json:"location,omitempty"`
	City                   string     `json:"city,omitempty"`
	TotalUnits             int        `json:"total_units"`
	AvailableUnits         int        `json:"available_units"`
	Status                 string     `json:"status"`
	StartDate              *time.Time `json:"start_date,omitempty"`
	ExpectedCompletionDate *time.Time `json:"expected_completion_date,omitempty"`
	CreatedByID            string     `json:"created_by_id,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Inventory is a sellable unit inside a project. InvestorID marks units
// assigned to an investor; investor-locked units cannot be booked.
type Inventory struct {
	ID             string     `json:"id"`
	BuilderID      string     `json:"builder_id"`
	ProjectID      string     `json:"project_id"`
	UnitNumber     string     `json:"unit_number,omitempty"`
	UnitType       string     `json:"unit_type"`
	Category       string     `json:"category,omitempty"`
	Size           float64    `json:"size,omitempty"`
	Price          int64      `json:"price"`
	Status         string     `json:"status"`
	HoldExpiryDate *time.Time `json:"hold_expiry_date,omitempty"`
	InvestorLocked bool       `json:"investor_locked"`
	InvestorID     *string    `json:"investor_id,omitempty"`
	BookedByID     *string    `json:"booked_by_id,omitempty"`
	Remarks        string     `json:"remarks,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Customer is a buyer registered under a builder.
type Customer struct {
	ID               string    `json:"id"`
	BuilderID        string    `json:"builder_id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	FatherName       string    `json:"father_name,omitempty"`
	CNIC             string    `json:"cnic,omitempty"`
	ContactNumber    string    `json:"contact_number"`
	AlternateContact string    `json:"alternate_contact,omitempty"`
	Email            string    `json:"email,omitempty"`
	Address          string    `json:"address,omitempty"`
	City             string    `json:"city,omitempty"`
	Country          string    `json:"country,omitempty"`
	Occupation       string    `json:"occupation,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Booking ties a customer to an inventory unit.
type Booking struct {
	ID                 string     `json:"id"`
	BuilderID          string     `json:"builder_id"`
	ProjectID          string     `json:"project_id"`
	InventoryID        string     `json:"inventory_id"`
	CustomerID         string     `json:"customer_id"`
	BookingDate        time.Time  `json:"booking_date"`
	Amount             int64      `json:"booking_amount"`
	Status             string     `json:"booking_status"`
	Reference          string     `json:"booking_reference"`
	Remarks            string     `json:"remarks,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancellationDate   *time.Time `json:"cancellation_date,omitempty"`
	CreatedByID        string     `json:"created_by_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Payment records money received against a booking.
type Payment struct {
	ID              string    `json:"id"`
	BuilderID       string    `json:"builder_id"`
	BookingID       string    `json:"booking_id"`
	CustomerID      string    `json:"customer_id"`
	Amount          int64     `json:"amount"`
	Method          string    `json:"payment_method"`
	PaymentDate     time.Time `json:"payment_date"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	Remarks         string    `json:"remarks,omitempty"`
	CreatedByID     string    `json:"created_by_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Installment is one entry of a booking's payment schedule. BalanceAmount is
// derived from amount and paid_amount, never stored.
type Installment struct {
	ID            string     `json:"id"`
	BuilderID     string     `json:"builder_id"`
	BookingID     string     `json:"booking_id"`
	Number        int        `json:"installment_number"`
	DueDate       time.Time  `json:"due_date"`
	Amount        int64      `json:"amount"`
	PaidAmount    int64      `json:"paid_amount"`
	BalanceAmount int64      `json:"balance_amount"`
	DueStatus     string     `json:"due_status"`
	PaidDate      *time.Time `json:"paid_date,omitempty"`
	Remarks       string     `json:"remarks,omitempty"`
	CreatedByID   string     `json:"created_by_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Transfer moves a confirmed booking from one customer to another. The record
// stays pending until an admin approves it; approval reassigns the booking.
type Transfer struct {
	ID             string     `json:"id"`
	BuilderID      string     `json:"builder_id"`
	InventoryID    string     `json:"inventory_id"`
	BookingID      string     `json:"booking_id"`
	FromCustomerID string     `json:"from_customer_id"`
	ToCustomerID   string     `json:"to_customer_id"`
	TransferFee    int64      `json:"transfer_fee"`
	TransferDate   *time.Time `json:"transfer_date,omitempty"`
	Status         string     `json:"status"`
	ApprovedByID   *string    `json:"approved_by_id,omitempty"`
	Remarks        string     `json:"remarks,omitempty"`
	CreatedByID    string     `json:"created_by_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Page describes the pagination envelope returned by list operations.
type Page struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// ListQuery carries common list parameters. BuilderID and InvestorID are
// caller-supplied filters; Scope is set by the service after resolution and
// always wins over them.
type ListQuery struct {
	Scope      auth.Scope
	BuilderID  string
	InvestorID string
	Search     string
	Status     string
	ProjectID  string
	BookingID  string
	Skip       int
	Limit      int
}

// Summary aggregates the caller-visible portfolio for the reports endpoint.
type Summary struct {
	Builders       int   `json:"builders,omitempty"`
	Projects       int   `json:"projects"`
	Units          int   `json:"units"`
	AvailableUnits int   `json:"available_units"`
	Bookings       int   `json:"bookings"`
	ActiveBookings int   `json:"active_bookings"`
	Customers      int   `json:"customers"`
	PaymentsTotal  int64 `json:"payments_total"`
}
