package auth

// Resource identifies a scoped record collection.
type Resource string

const (
	ResourceBuilders     Resource = "builders"
	ResourceProjects     Resource = "projects"
	ResourceInventory    Resource = "inventory"
	ResourceBookings     Resource = "bookings"
	ResourceCustomers    Resource = "customers"
	ResourcePayments     Resource = "payments"
	ResourceInstallments Resource = "installments"
	ResourceTransfers    Resource = "transfers"
	ResourceAccounts     Resource = "accounts"
)

// Filters are the caller-supplied query parameters relevant to scoping.
type Filters struct {
	BuilderID  string
	InvestorID string
}

// Scope is the resolved row-visibility restriction a storage query must apply.
// Nil fields impose no restriction. Every read and write goes through
// ResolveScope before reaching storage; no endpoint bypasses it.
type Scope struct {
	BuilderID  *string
	InvestorID *string
	DenyAll    bool
}

// ResolveScope refines caller-supplied filters by the account's role:
//
//  1. master_admin: requested filters pass through unchanged.
//  2. investor querying inventory: forced to units assigned to that investor;
//     any caller-supplied builder filter is overridden.
//  3. everyone else: forced to the account's own builder, AND-combined with
//     the remaining caller filters. A filter naming a foreign builder is
//     silently overridden, never honored.
func ResolveScope(account *Account, resource Resource, f Filters) Scope {
	if account.Role == RoleMasterAdmin {
		var sc Scope
		if f.BuilderID != "" {
			sc.BuilderID = &f.BuilderID
		}
		if f.InvestorID != "" {
			sc.InvestorID = &f.InvestorID
		}
		return sc
	}
	if account.Role == RoleInvestor && resource == ResourceInventory {
		if account.InvestorID == nil {
			return Scope{DenyAll: true}
		}
		return Scope{InvestorID: account.InvestorID}
	}
	if account.BuilderID == nil {
		return Scope{DenyAll: true}
	}
	sc := Scope{BuilderID: account.BuilderID}
	if f.InvestorID != "" {
		sc.InvestorID = &f.InvestorID
	}
	return sc
}

// Allows reports whether a record owned by recordBuilderID is visible under
// the scope.
func (sc Scope) Allows(recordBuilderID string) bool {
	if sc.DenyAll {
		return false
	}
	return sc.BuilderID == nil || *sc.BuilderID == recordBuilderID
}

// CanWrite reports whether account may mutate a record owned by
// recordBuilderID. Investors are read-only; everyone else writes only inside
// their own builder, and master_admin writes anywhere.
func CanWrite(account *Account, recordBuilderID string) bool {
	switch account.Role {
	case RoleMasterAdmin:
		return true
	case RoleInvestor:
		return false
	default:
		return account.BuilderID != nil && *account.BuilderID == recordBuilderID
	}
}
