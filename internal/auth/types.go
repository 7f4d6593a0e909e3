package auth

import "time"

// Roles understood by the scope resolver. The hierarchy is flat: a role either
// sees everything (master_admin), its own builder's rows, or its assigned
// inventory (investor).
const (
	RoleMasterAdmin  = "master_admin"
	RoleBuilderAdmin = "builder_admin"
	RoleSalesStaff   = "sales_staff"
	RoleInvestor     = "investor"
)

// Account status values. Accounts are never hard-deleted; the status flag
// governs visibility and login.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Account is a login identity with a role and builder scope. BuilderID is nil
// only for master_admin accounts.
type Account struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	BuilderID    *string    `json:"builder_id"`
	InvestorID   *string    `json:"investor_id,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AccountUpdate carries optional field changes for an account. Nil means keep.
type AccountUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
	Password  *string
	Role      *string
	Status    *string
	BuilderID *string
}

// AccountQuery filters account listings.
type AccountQuery struct {
	BuilderID string
	Role      string
	Status    string
	Skip      int
	Limit     int
}

// ValidRole reports whether role is one of the fixed role tags.
func ValidRole(role string) bool {
	switch role {
	case RoleMasterAdmin, RoleBuilderAdmin, RoleSalesStaff, RoleInvestor:
		return true
	}
	return false
}

// ValidStatus reports whether status is a known account status.
func ValidStatus(status string) bool {
	return status == StatusActive || status == StatusInactive
}
