package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kingsbuilder.org/internal/ids"
)

// memAccounts is an in-memory AccountStore for service tests.
type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: map[string]*Account{}}
}

func (m *memAccounts) Create(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Username == account.Username || a.Email == account.Email {
			return ErrConflict
		}
	}
	cp := *account
	m.accounts[account.ID] = &cp
	return nil
}

func (m *memAccounts) Find(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) FindByUsername(_ context.Context, username string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memAccounts) List(_ context.Context, q AccountQuery) ([]*Account, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Account
	for _, a := range m.accounts {
		if q.BuilderID != "" && (a.BuilderID == nil || *a.BuilderID != q.BuilderID) {
			continue
		}
		if q.Role != "" && a.Role != q.Role {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memAccounts) Update(_ context.Context, id string, upd AccountUpdate) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Email != nil {
		a.Email = *upd.Email
	}
	if upd.Role != nil {
		a.Role = *upd.Role
	}
	if upd.Status != nil {
		a.Status = *upd.Status
	}
	if upd.Password != nil {
		a.PasswordHash = *upd.Password
	}
	if upd.BuilderID != nil {
		a.BuilderID = upd.BuilderID
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		a.LastLoginAt = &at
	}
	return nil
}

func strptr(s string) *string { return &s }

func testClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *memAccounts) {
	t.Helper()
	store := newMemAccounts()
	opts = append([]ServiceOption{WithClock(testClock(testEpoch))}, opts...)
	svc, err := NewService(store, "access-secret", "refresh-secret", opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func seedAccount(t *testing.T, store *memAccounts, username, password, role string, builderID *string) *Account {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	account := &Account{
		ID:           ids.New(),
		Username:     username,
		Email:        username + "@test.pk",
		PasswordHash: hash,
		Role:         role,
		Status:       StatusActive,
		BuilderID:    builderID,
		CreatedAt:    testEpoch,
		UpdatedAt:    testEpoch,
	}
	if err := store.Create(context.Background(), account); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account
}

func TestNewServiceRejectsSharedSecret(t *testing.T) {
	if _, err := NewService(newMemAccounts(), "same", "same"); err == nil {
		t.Fatal("expected error for identical secrets")
	}
	if _, err := NewService(newMemAccounts(), "", "refresh"); err == nil {
		t.Fatal("expected error for empty access secret")
	}
}

func TestLoginIssuesVerifiablePair(t *testing.T) {
	svc, store := newTestService(t)
	seeded := seedAccount(t, store, "owner", "pw-owner-1", RoleMasterAdmin, nil)

	pair, account, err := svc.Login(context.Background(), "owner", "pw-owner-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if account.ID != seeded.ID {
		t.Fatalf("account id = %s, want %s", account.ID, seeded.ID)
	}
	if account.LastLoginAt == nil {
		t.Fatal("expected last login to be stamped")
	}
	if want := testEpoch.Add(30 * time.Minute); !pair.AccessExpiresAt.Equal(want) {
		t.Fatalf("access expiry = %v, want %v", pair.AccessExpiresAt, want)
	}
	if want := testEpoch.Add(7 * 24 * time.Hour); !pair.RefreshExpiresAt.Equal(want) {
		t.Fatalf("refresh expiry = %v, want %v", pair.RefreshExpiresAt, want)
	}

	claims, err := svc.Verify(pair.AccessToken, TokenKindAccess)
	if err != nil {
		t.Fatalf("Verify access: %v", err)
	}
	if claims.Subject != seeded.ID || claims.Role != RoleMasterAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	refreshClaims, err := svc.Verify(pair.RefreshToken, TokenKindRefresh)
	if err != nil {
		t.Fatalf("Verify refresh: %v", err)
	}
	// Refresh tokens drop the role claim so authority is always re-read from
	// storage on refresh.
	if refreshClaims.Role != "" {
		t.Fatalf("refresh token carries role %q", refreshClaims.Role)
	}
}

func TestLoginNormalizesUsername(t *testing.T) {
	svc, store := newTestService(t)
	seedAccount(t, store, "owner", "pw-owner-1", RoleMasterAdmin, nil)

	if _, _, err := svc.Login(context.Background(), "  OWNER ", "pw-owner-1"); err != nil {
		t.Fatalf("Login with mixed case: %v", err)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	svc, store := newTestService(t)
	seedAccount(t, store, "owner", "pw-owner-1", RoleMasterAdmin, nil)

	// Unknown user and wrong password must fail identically.
	if _, _, err := svc.Login(context.Background(), "ghost", "pw-owner-1"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("unknown user err = %v, want ErrBadCredentials", err)
	}
	if _, _, err := svc.Login(context.Background(), "owner", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("wrong password err = %v, want ErrBadCredentials", err)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, store := newTestService(t)
	a := seedAccount(t, store, "owner", "pw-owner-1", RoleMasterAdmin, nil)
	store.accounts[a.ID].Status = StatusInactive

	if _, _, err := svc.Login(context.Background(), "owner", "pw-owner-1"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("err = %v, want ErrAccountInactive", err)
	}
}

func TestVerifyRejectsCrossKind(t *testing.T) {
	svc, store := newTestService(t)
	seedAccount(t, store, "owner", "pw-owner-1", RoleMasterAdmin, nil)
	pair, _, err := svc.Login(context.Background(), "owner", "pw-owner-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := svc.Verify(pair.RefreshToken, TokenKindAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh-as-access err = %v, want ErrInvalidToken", err)
	}
	if _, err := svc.Verify(pair.AccessToken, TokenKindRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access-as-refresh err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	svc, store := newTestService(t)
	seedAccount(t, store, "owner", "pw-owner-1", RoleMasterAdmin, nil)
	pair, _, err := svc.Login(context.Background(), "owner", "pw-owner-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Re-verify with a clock past the access TTL.
	svc.now = testClock(testEpoch.Add(31 * time.Minute))
	if _, err := svc.Verify(pair.AccessToken, TokenKindAccess); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("err = %v, want ErrExpiredToken", err)
	}
	// The refresh token has a week to live and still verifies.
	if _, err := svc.Verify(pair.RefreshToken, TokenKindRefresh); err != nil {
		t.Fatalf("refresh verify: %v", err)
	}
}

func TestRefreshMintsAccessWithCurrentRole(t *testing.T) {
	svc, store := newTestService(t)
	a := seedAccount(t, store, "owner", "pw-owner-1", RoleBuilderAdmin, strptr("b1"))
	pair, _, err := svc.Login(context.Background(), "owner", "pw-owner-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Demote the account between login and refresh; the new access token must
	// carry the current role, not the one at login time.
	store.accounts[a.ID].Role = RoleSalesStaff

	access, exp, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if want := testEpoch.Add(30 * time.Minute); !exp.Equal(want) {
		t.Fatalf("expiry = %v, want %v", exp, want)
	}
	claims, err := svc.Verify(access, TokenKindAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Role != RoleSalesStaff {
		t.Fatalf("role = %s, want %s", claims.Role, RoleSalesStaff)
	}
}

func TestRefreshDeniesInactiveAccount(t *testing.T) {
	svc, store := newTestService(t)
	a := seedAccount(t, store, "owner", "pw-owner-1", RoleMasterAdmin, nil)
	pair, _, err := svc.Login(context.Background(), "owner", "pw-owner-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	store.accounts[a.ID].Status = StatusInactive

	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("err = %v, want ErrAccountInactive", err)
	}
}

func TestCreateAccountAuthority(t *testing.T) {
	svc, store := newTestService(t)
	master := seedAccount(t, store, "root", "pw-root-1", RoleMasterAdmin, nil)
	badmin := seedAccount(t, store, "badmin", "pw-badmin-1", RoleBuilderAdmin, strptr("b1"))

	// master_admin creates a builder_admin for any builder.
	created, err := svc.CreateAccount(context.Background(), master, AccountInput{
		Username:  "lead",
		Email:     "lead@b2.pk",
		Password:  "pw-lead-1",
		Role:      RoleBuilderAdmin,
		BuilderID: strptr("b2"),
	})
	if err != nil {
		t.Fatalf("master create: %v", err)
	}
	if created.BuilderID == nil || *created.BuilderID != "b2" {
		t.Fatalf("builder id = %v", created.BuilderID)
	}

	// builder_admin creates sales staff, always pinned to its own builder even
	// when the request names another one.
	staff, err := svc.CreateAccount(context.Background(), badmin, AccountInput{
		Username:  "agent",
		Email:     "agent@b1.pk",
		Password:  "pw-agent-1",
		Role:      RoleSalesStaff,
		BuilderID: strptr("b1"),
	})
	if err != nil {
		t.Fatalf("builder_admin create: %v", err)
	}
	if staff.BuilderID == nil || *staff.BuilderID != "b1" {
		t.Fatalf("staff builder id = %v", staff.BuilderID)
	}

	// builder_admin cannot mint admins.
	if _, err := svc.CreateAccount(context.Background(), badmin, AccountInput{
		Username: "rogue",
		Email:    "rogue@b1.pk",
		Password: "pw-rogue-1",
		Role:     RoleBuilderAdmin,
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	// Non-master roles require a builder.
	if _, err := svc.CreateAccount(context.Background(), master, AccountInput{
		Username: "floating",
		Email:    "floating@test.pk",
		Password: "pw-float-1",
		Role:     RoleSalesStaff,
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	// Duplicate usernames conflict.
	if _, err := svc.CreateAccount(context.Background(), master, AccountInput{
		Username:  "agent",
		Email:     "other@b1.pk",
		Password:  "pw-dup-1",
		Role:      RoleSalesStaff,
		BuilderID: strptr("b1"),
	}); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestUpdateAccountAuthority(t *testing.T) {
	svc, store := newTestService(t)
	master := seedAccount(t, store, "root", "pw-root-1", RoleMasterAdmin, nil)
	badmin := seedAccount(t, store, "badmin", "pw-badmin-1", RoleBuilderAdmin, strptr("b1"))
	staff := seedAccount(t, store, "agent", "pw-agent-1", RoleSalesStaff, strptr("b1"))
	foreign := seedAccount(t, store, "other", "pw-other-1", RoleSalesStaff, strptr("b2"))

	// builder_admin deactivates own staff.
	updated, err := svc.UpdateAccount(context.Background(), badmin, staff.ID, AccountUpdate{
		Status: strptr(StatusInactive),
	})
	if err != nil {
		t.Fatalf("update own staff: %v", err)
	}
	if updated.Status != StatusInactive {
		t.Fatalf("status = %s", updated.Status)
	}

	// Foreign staff reads as not found, not forbidden.
	if _, err := svc.UpdateAccount(context.Background(), badmin, foreign.ID, AccountUpdate{
		Status: strptr(StatusInactive),
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign err = %v, want ErrNotFound", err)
	}

	// builder_admin cannot promote to master_admin.
	if _, err := svc.UpdateAccount(context.Background(), badmin, staff.ID, AccountUpdate{
		Role: strptr(RoleMasterAdmin),
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("promote err = %v, want ErrForbidden", err)
	}

	// Password updates are stored hashed.
	if _, err := svc.UpdateAccount(context.Background(), master, staff.ID, AccountUpdate{
		Password: strptr("pw-new-1"),
	}); err != nil {
		t.Fatalf("password update: %v", err)
	}
	stored := store.accounts[staff.ID]
	if stored.PasswordHash == "pw-new-1" {
		t.Fatal("password stored in clear")
	}
	if err := VerifyPassword(stored.PasswordHash, "pw-new-1"); err != nil {
		t.Fatalf("new password does not verify: %v", err)
	}
}

func TestEnsureMasterAdminIdempotent(t *testing.T) {
	svc, store := newTestService(t)

	if err := svc.EnsureMasterAdmin(context.Background(), "Root", "root@test.pk", "pw-root-1"); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	if err := svc.EnsureMasterAdmin(context.Background(), "root", "root@test.pk", "pw-root-1"); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if len(store.accounts) != 1 {
		t.Fatalf("accounts = %d, want 1", len(store.accounts))
	}
	if _, _, err := svc.Login(context.Background(), "root", "pw-root-1"); err != nil {
		t.Fatalf("bootstrap login: %v", err)
	}
}
