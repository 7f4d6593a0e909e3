package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"kingsbuilder.org/internal/auth"
	"kingsbuilder.org/internal/estate"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store is the Postgres implementation of the account and estate stores.
type Store struct {
	db *sql.DB
}

var (
	_ auth.AccountStore = (*Store)(nil)
	_ estate.Store      = (*Store)(nil)
)

// Open connects to Postgres through the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests and migrations.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// scopeConds renders a resolved scope into WHERE conditions on the given
// columns. A DenyAll scope becomes a constant false so the query stays a
// single code path.
func scopeConds(sc auth.Scope, builderCol, investorCol string, idx *int, args *[]any) []string {
	if sc.DenyAll {
		return []string{"false"}
	}
	var conds []string
	if sc.BuilderID != nil {
		conds = append(conds, fmt.Sprintf("%s = $%d", builderCol, *idx))
		*args = append(*args, *sc.BuilderID)
		*idx++
	}
	if sc.InvestorID != nil && investorCol != "" {
		conds = append(conds, fmt.Sprintf("%s = $%d", investorCol, *idx))
		*args = append(*args, *sc.InvestorID)
		*idx++
	}
	return conds
}

const accountCols = `id, username, email, first_name, last_name, phone, password_hash,
	role, status, builder_id, investor_id, last_login_at, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*auth.Account, error) {
	var (
		a          auth.Account
		phone      sql.NullString
		builderID  sql.NullString
		investorID sql.NullString
		lastLogin  sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &phone,
		&a.PasswordHash, &a.Role, &a.Status, &builderID, &investorID, &lastLogin,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Phone = phone.String
	if builderID.Valid {
		a.BuilderID = &builderID.String
	}
	if investorID.Valid {
		a.InvestorID = &investorID.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return &a, nil
}

func (s *Store) Create(ctx context.Context, account *auth.Account) error {
	_, err := s.db.ExecContext(ctx, `
		insert into accounts (id, username, email, first_name, last_name, phone,
			password_hash, role, status, builder_id, investor_id, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, account.ID, account.Username, account.Email, account.FirstName, account.LastName,
		nullIfEmpty(account.Phone), account.PasswordHash, account.Role, account.Status,
		account.BuilderID, account.InvestorID, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *Store) Find(ctx context.Context, id string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx, `select `+accountCols+` from accounts where id = $1`, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx, `select `+accountCols+` from accounts where username = $1`, username)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Store) List(ctx context.Context, q auth.AccountQuery) ([]*auth.Account, int, error) {
	var (
		conds []string
		args  []any
		idx   = 1
	)
	if q.BuilderID != "" {
		conds = append(conds, fmt.Sprintf("builder_id = $%d", idx))
		args = append(args, q.BuilderID)
		idx++
	}
	if q.Role != "" {
		conds = append(conds, fmt.Sprintf("role = $%d", idx))
		args = append(args, q.Role)
		idx++
	}
	if q.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", idx))
		args = append(args, q.Status)
		idx++
	}
	where := ""
	if len(conds) > 0 {
		where = " where " + strings.Join(conds, " and ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from accounts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`select %s from accounts%s order by username offset $%d limit $%d`,
		accountCols, where, idx, idx+1)
	args = append(args, q.Skip, q.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var accounts []*auth.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

func (s *Store) Update(ctx context.Context, id string, upd auth.AccountUpdate) (*auth.Account, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	set := func(col string, val any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}
	if upd.Email != nil {
		set("email", *upd.Email)
	}
	if upd.FirstName != nil {
		set("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		set("last_name", *upd.LastName)
	}
	if upd.Phone != nil {
		set("phone", nullIfEmpty(*upd.Phone))
	}
	if upd.Password != nil {
		set("password_hash", *upd.Password)
	}
	if upd.Role != nil {
		set("role", *upd.Role)
	}
	if upd.Status != nil {
		set("status", *upd.Status)
	}
	if upd.BuilderID != nil {
		set("builder_id", nullIfEmpty(*upd.BuilderID))
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update accounts set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return nil, auth.ErrConflict
			}
			return nil, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if aff == 0 {
			return nil, auth.ErrNotFound
		}
	}
	return s.Find(ctx, id)
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `update accounts set last_login_at = $1 where id = $2`, at, id)
	return err
}
