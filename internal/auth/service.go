package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kingsbuilder.org/internal/ids"
	"kingsbuilder.org/internal/obs"
)

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuer     = "kingsbuilder"
)

// Service verifies credentials, issues and verifies token pairs, and manages
// accounts. Tokens are stateless: there is no session store, so a token cannot
// be revoked before its natural expiry. That trade-off is deliberate and
// documented; password changes take effect at the next refresh.
type Service struct {
	accounts AccountStore
	now      func() time.Time

	issuer        string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		if v := strings.TrimSpace(issuer); v != "" {
			s.issuer = v
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service. Access and refresh tokens are signed with
// distinct secrets; both are required and must differ.
func NewService(accounts AccountStore, accessSecret, refreshSecret string, opts ...ServiceOption) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("auth: account store is required")
	}
	accessSecret = strings.TrimSpace(accessSecret)
	refreshSecret = strings.TrimSpace(refreshSecret)
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("auth: both token secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	svc := &Service{
		accounts:      accounts,
		now:           time.Now,
		issuer:        defaultIssuer,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// TokenPair carries both bearer credentials and their expirations.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Login authenticates a username/password pair and issues a fresh token pair.
// Unknown usernames and wrong passwords fail identically with
// ErrBadCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, *Account, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" || password == "" {
		return TokenPair{}, nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrBadCredentials
		}
		return TokenPair{}, nil, err
	}
	if err := VerifyPassword(account.PasswordHash, password); err != nil {
		return TokenPair{}, nil, ErrBadCredentials
	}
	if account.Status != StatusActive {
		return TokenPair{}, nil, ErrAccountInactive
	}

	now := s.now().UTC()
	pair, err := s.mintPair(account, now)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if err := s.accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
		obs.LogError("touch last login failed", map[string]any{"account_id": account.ID, "err": err.Error()})
	}
	account.LastLoginAt = &now
	return pair, account, nil
}

// Refresh verifies a refresh token, re-resolves the account (so role and
// builder scope are always current), and mints a new access token. A refresh
// token never extends its own life.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		return "", time.Time{}, err
	}
	account, err := s.accounts.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", time.Time{}, ErrInvalidToken
		}
		return "", time.Time{}, err
	}
	if account.Status != StatusActive {
		return "", time.Time{}, ErrAccountInactive
	}
	return s.signToken(account, TokenKindAccess, s.now().UTC())
}

// Authenticate verifies an access token and loads the current account state.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Account, error) {
	claims, err := s.Verify(accessToken, TokenKindAccess)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if account.Status != StatusActive {
		return nil, ErrAccountInactive
	}
	return account, nil
}

func (s *Service) mintPair(account *Account, now time.Time) (TokenPair, error) {
	access, accessExp, err := s.signToken(account, TokenKindAccess, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.signToken(account, TokenKindRefresh, now)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// AccountInput carries the fields required to register an account.
type AccountInput struct {
	Username   string
	Email      string
	Password   string
	FirstName  string
	LastName   string
	Phone      string
	Role       string
	Status     string
	BuilderID  *string
	InvestorID *string
}

// CreateAccount registers an account on behalf of actor. master_admin may
// create any account; builder_admin may create sales_staff and investor
// accounts inside its own builder.
func (s *Service) CreateAccount(ctx context.Context, actor *Account, in AccountInput) (*Account, error) {
	in.Username = strings.TrimSpace(strings.ToLower(in.Username))
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Role = strings.TrimSpace(strings.ToLower(in.Role))
	if in.Status = strings.TrimSpace(strings.ToLower(in.Status)); in.Status == "" {
		in.Status = StatusActive
	}
	if in.Username == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if !ValidRole(in.Role) {
		return nil, fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, in.Role)
	}
	if !ValidStatus(in.Status) {
		return nil, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, in.Status)
	}
	if err := checkAccountAuthority(actor, in.Role, in.BuilderID); err != nil {
		return nil, err
	}
	if actor.Role == RoleBuilderAdmin {
		in.BuilderID = actor.BuilderID
	}
	if in.Role != RoleMasterAdmin && in.BuilderID == nil {
		return nil, fmt.Errorf("%w: builder_id is required for role %s", ErrInvalidInput, in.Role)
	}
	if in.Role == RoleMasterAdmin && in.BuilderID != nil {
		return nil, fmt.Errorf("%w: master_admin accounts carry no builder_id", ErrInvalidInput)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	account := &Account{
		ID:           ids.New(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         in.Role,
		Status:       in.Status,
		BuilderID:    in.BuilderID,
		InvestorID:   in.InvestorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccounts returns accounts visible to actor, paginated.
func (s *Service) ListAccounts(ctx context.Context, actor *Account, q AccountQuery) ([]*Account, int, error) {
	if actor.Role != RoleMasterAdmin && actor.Role != RoleBuilderAdmin {
		return nil, 0, ErrForbidden
	}
	if actor.Role == RoleBuilderAdmin {
		// Builder admins only ever see their own staff; a foreign builder_id
		// filter is overridden, never honored.
		if actor.BuilderID == nil {
			return nil, 0, ErrForbidden
		}
		q.BuilderID = *actor.BuilderID
	}
	return s.accounts.List(ctx, q)
}

// GetAccount loads one account visible to actor.
func (s *Service) GetAccount(ctx context.Context, actor *Account, id string) (*Account, error) {
	account, err := s.accounts.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeAccount(actor, account) {
		return nil, ErrNotFound
	}
	return account, nil
}

// UpdateAccount applies a partial update on behalf of actor.
func (s *Service) UpdateAccount(ctx context.Context, actor *Account, id string, upd AccountUpdate) (*Account, error) {
	current, err := s.accounts.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeAccount(actor, current) {
		return nil, ErrNotFound
	}
	if actor.Role != RoleMasterAdmin && actor.Role != RoleBuilderAdmin {
		return nil, ErrForbidden
	}
	if actor.Role == RoleBuilderAdmin {
		if current.Role == RoleMasterAdmin || (current.Role == RoleBuilderAdmin && current.ID != actor.ID) {
			return nil, ErrForbidden
		}
		// Builder admins cannot migrate accounts across builders.
		upd.BuilderID = nil
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Role != nil {
		role := strings.TrimSpace(strings.ToLower(*upd.Role))
		if !ValidRole(role) {
			return nil, fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, role)
		}
		if actor.Role != RoleMasterAdmin && role == RoleMasterAdmin {
			return nil, ErrForbidden
		}
		upd.Role = &role
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if !ValidStatus(status) {
			return nil, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	if upd.Password != nil {
		pw := strings.TrimSpace(*upd.Password)
		if pw == "" {
			return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := HashPassword(pw)
		if err != nil {
			return nil, err
		}
		upd.Password = &hash
	}
	return s.accounts.Update(ctx, id, upd)
}

// EnsureMasterAdmin creates the bootstrap master_admin account if no account
// with that username exists yet.
func (s *Service) EnsureMasterAdmin(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" || password == "" {
		return fmt.Errorf("%w: bootstrap username and password are required", ErrInvalidInput)
	}
	_, err := s.accounts.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	return s.accounts.Create(ctx, &Account{
		ID:           ids.New(),
		Username:     username,
		Email:        strings.TrimSpace(strings.ToLower(email)),
		FirstName:    "Master",
		LastName:     "Admin",
		PasswordHash: hash,
		Role:         RoleMasterAdmin,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func checkAccountAuthority(actor *Account, newRole string, builderID *string) error {
	switch actor.Role {
	case RoleMasterAdmin:
		return nil
	case RoleBuilderAdmin:
		if newRole != RoleSalesStaff && newRole != RoleInvestor {
			return ErrForbidden
		}
		if builderID != nil && (actor.BuilderID == nil || *builderID != *actor.BuilderID) {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

func canSeeAccount(actor, target *Account) bool {
	if actor.Role == RoleMasterAdmin {
		return true
	}
	if actor.ID == target.ID {
		return true
	}
	return actor.BuilderID != nil && target.BuilderID != nil && *actor.BuilderID == *target.BuilderID
}
