package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kingsbuilder.org/internal/estate"
)

const builderCols = `id, name, registration_number, contact_person, contact_email,
	contact_phone, address, city, country, max_projects, status, created_at, updated_at`

func scanBuilder(row interface{ Scan(...any) error }) (*estate.Builder, error) {
	var (
		b                           estate.Builder
		regNo, person, email, phone sql.NullString
		address, city, country      sql.NullString
	)
	err := row.Scan(&b.ID, &b.Name, &regNo, &person, &email, &phone,
		&address, &city, &country, &b.MaxProjects, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.RegistrationNumber = regNo.String
	b.ContactPerson = person.String
	b.ContactEmail = email.String
	b.ContactPhone = phone.String
	b.Address = address.String
	b.City = city.String
	b.Country = country.String
	return &b, nil
}

func (s *Store) CreateBuilder(ctx context.Context, b *estate.Builder) error {
	_, err := s.db.ExecContext(ctx, `
		insert into builders (id, name, registration_number, contact_person, contact_email,
			contact_phone, address, city, country, max_projects, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, b.ID, b.Name, nullIfEmpty(b.RegistrationNumber), nullIfEmpty(b.ContactPerson),
		nullIfEmpty(b.ContactEmail), nullIfEmpty(b.ContactPhone), nullIfEmpty(b.Address),
		nullIfEmpty(b.City), nullIfEmpty(b.Country), b.MaxProjects, b.Status,
		b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return estate.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) FindBuilder(ctx context.Context, id string) (*estate.Builder, error) {
	row := s.db.QueryRowContext(ctx, `select `+builderCols+` from builders where id = $1`, id)
	b, err := scanBuilder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, estate.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) ListBuilders(ctx context.Context, q estate.ListQuery) ([]*estate.Builder, int, error) {
	var (
		args []any
		idx  = 1
	)
	conds := scopeConds(q.Scope, "id", "", &idx, &args)
	if q.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", idx))
		args = append(args, q.Status)
		idx++
	}
	if q.Search != "" {
		conds = append(conds, fmt.Sprintf("name ilike $%d", idx))
		args = append(args, "%"+q.Search+"%")
		idx++
	}
	where := whereClause(conds)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from builders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`select %s from builders%s order by name offset $%d limit $%d`,
		builderCols, where, idx, idx+1)
	args = append(args, q.Skip, q.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var builders []*estate.Builder
	for rows.Next() {
		b, err := scanBuilder(rows)
		if err != nil {
			return nil, 0, err
		}
		builders = append(builders, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return builders, total, nil
}

func (s *Store) UpdateBuilder(ctx context.Context, id string, upd estate.BuilderUpdate) (*estate.Builder, error) {
	u := newUpdateBuilder()
	u.setString("name", upd.Name)
	u.setNullString("registration_number", upd.RegistrationNumber)
	u.setNullString("contact_person", upd.ContactPerson)
	u.setNullString("contact_email", upd.ContactEmail)
	u.setNullString("contact_phone", upd.ContactPhone)
	u.setNullString("address", upd.Address)
	u.setNullString("city", upd.City)
	u.setNullString("country", upd.Country)
	u.setInt("max_projects", upd.MaxProjects)
	u.setString("status", upd.Status)
	if err := u.exec(ctx, s.db, "builders", id); err != nil {
		return nil, err
	}
	return s.FindBuilder(ctx, id)
}

func (s *Store) CountActiveProjects(ctx context.Context, builderID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from projects where builder_id = $1 and status = $2
	`, builderID, estate.StatusActive).Scan(&n)
	return n, err
}

const projectCols = `id, builder_id, name, description, location, city, total_units,
	available_units, status, start_date, expected_completion_date, created_by_id,
	created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*estate.Project, error) {
	var (
		p                     estate.Project
		description, location sql.NullString
		city, createdBy       sql.NullString
		start, completion     sql.NullTime
	)
	err := row.Scan(&p.ID, &p.BuilderID, &p.Name, &description, &location, &city,
		&p.TotalUnits, &p.AvailableUnits, &p.Status, &start, &completion, &createdBy,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	p.Location = location.String
	p.City = city.String
	p.CreatedByID = createdBy.String
	if start.Valid {
		t := start.Time
		p.StartDate = &t
	}
	if completion.Valid {
		t := completion.Time
		p.ExpectedCompletionDate = &t
	}
	return &p, nil
}

func (s *Store) CreateProject(ctx context.Context, p *estate.Project) error {
	_, err := s.db.ExecContext(ctx, `
		insert into projects (id, builder_id, name, description, location, city,
			total_units, available_units, status, start_date, expected_completion_date,
			created_by_id, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.BuilderID, p.Name, nullIfEmpty(p.Description), nullIfEmpty(p.Location),
		nullIfEmpty(p.City), p.TotalUnits, p.AvailableUnits, p.Status, p.StartDate,
		p.ExpectedCompletionDate, nullIfEmpty(p.CreatedByID), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return estate.ErrConflict
			case pgErrForeignKeyViolation:
				return estate.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *Store) FindProject(ctx context.Context, id string) (*estate.Project, error) {
	row := s.db.QueryRowContext(ctx, `select `+projectCols+` from projects where id = $1`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, estate.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, q estate.ListQuery) ([]*estate.Project, int, error) {
	var (
		args []any
		idx  = 1
	)
	conds := scopeConds(q.Scope, "builder_id", "", &idx, &args)
	if q.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", idx))
		args = append(args, q.Status)
		idx++
	}
	if q.Search != "" {
		conds = append(conds, fmt.Sprintf("(name ilike $%d or city ilike $%d)", idx, idx))
		args = append(args, "%"+q.Search+"%")
		idx++
	}
	where := whereClause(conds)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from projects`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`select %s from projects%s order by created_at desc offset $%d limit $%d`,
		projectCols, where, idx, idx+1)
	args = append(args, q.Skip, q.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var projects []*estate.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (s *Store) UpdateProject(ctx context.Context, id string, upd estate.ProjectUpdate) (*estate.Project, error) {
	u := newUpdateBuilder()
	u.setString("name", upd.Name)
	u.setNullString("description", upd.Description)
	u.setNullString("location", upd.Location)
	u.setNullString("city", upd.City)
	u.setInt("total_units", upd.TotalUnits)
	u.setString("status", upd.Status)
	u.setTime("start_date", upd.StartDate)
	u.setTime("expected_completion_date", upd.ExpectedCompletionDate)
	if err := u.exec(ctx, s.db, "projects", id); err != nil {
		return nil, err
	}
	return s.FindProject(ctx, id)
}

const inventoryCols = `id, builder_id, project_id, unit_number, unit_type, category,
	size, price, status, hold_expiry_date, investor_locked, investor_id, booked_by_id,
	remarks, created_at, updated_at`

func scanInventory(row interface{ Scan(...any) error }) (*estate.Inventory, error) {
	var (
		u                    estate.Inventory
		unitNumber, category sql.NullString
		investorID, bookedBy sql.NullString
		remarks              sql.NullString
		size                 sql.NullFloat64
		holdExpiry           sql.NullTime
	)
	err := row.Scan(&u.ID, &u.BuilderID, &u.ProjectID, &unitNumber, &u.UnitType, &category,
		&size, &u.Price, &u.Status, &holdExpiry, &u.InvestorLocked, &investorID, &bookedBy,
		&remarks, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.UnitNumber = unitNumber.String
	u.Category = category.String
	u.Size = size.Float64
	u.Remarks = remarks.String
	if investorID.Valid {
		u.InvestorID = &investorID.String
	}
	if bookedBy.Valid {
		u.BookedByID = &bookedBy.String
	}
	if holdExpiry.Valid {
		t := holdExpiry.Time
		u.HoldExpiryDate = &t
	}
	return &u, nil
}

func (s *Store) CreateInventory(ctx context.Context, u *estate.Inventory) error {
	_, err := s.db.ExecContext(ctx, `
		insert into inventory (id, builder_id, project_id, unit_number, unit_type,
			category, size, price, status, hold_expiry_date, investor_locked,
			investor_id, booked_by_id, remarks, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, u.ID, u.BuilderID, u.ProjectID, nullIfEmpty(u.UnitNumber), u.UnitType,
		nullIfEmpty(u.Category), u.Size, u.Price, u.Status, u.HoldExpiryDate,
		u.InvestorLocked, u.InvestorID, u.BookedByID, nullIfEmpty(u.Remarks),
		u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return estate.ErrConflict
			case pgErrForeignKeyViolation:
				return estate.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *Store) FindInventory(ctx context.Context, id string) (*estate.Inventory, error) {
	row := s.db.QueryRowContext(ctx, `select `+inventoryCols+` from inventory where id = $1`, id)
	u, err := scanInventory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, estate.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) ListInventory(ctx context.Context, q estate.ListQuery) ([]*estate.Inventory, int, error) {
	var (
		args []any
		idx  = 1
	)
	conds := scopeConds(q.Scope, "builder_id", "investor_id", &idx, &args)
	if q.ProjectID != "" {
		conds = append(conds, fmt.Sprintf("project_id = $%d", idx))
		args = append(args, q.ProjectID)
		idx++
	}
	if q.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", idx))
		args = append(args, q.Status)
		idx++
	}
	if q.Search != "" {
		conds = append(conds, fmt.Sprintf("(unit_number ilike $%d or unit_type ilike $%d)", idx, idx))
		args = append(args, "%"+q.Search+"%")
		idx++
	}
	where := whereClause(conds)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from inventory`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`select %s from inventory%s order by unit_number offset $%d limit $%d`,
		inventoryCols, where, idx, idx+1)
	args = append(args, q.Skip, q.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var units []*estate.Inventory
	for rows.Next() {
		u, err := scanInventory(rows)
		if err != nil {
			return nil, 0, err
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return units, total, nil
}

func (s *Store) UpdateInventory(ctx context.Context, id string, upd estate.InventoryUpdate) (*estate.Inventory, error) {
	u := newUpdateBuilder()
	u.setNullString("unit_number", upd.UnitNumber)
	u.setString("unit_type", upd.UnitType)
	u.setNullString("category", upd.Category)
	u.setFloat("size", upd.Size)
	u.setInt64("price", upd.Price)
	u.setString("status", upd.Status)
	u.setTime("hold_expiry_date", upd.HoldExpiryDate)
	u.setBool("investor_locked", upd.InvestorLocked)
	u.setNullString("investor_id", upd.InvestorID)
	u.setNullString("remarks", upd.Remarks)
	if err := u.exec(ctx, s.db, "inventory", id); err != nil {
		return nil, err
	}
	return s.FindInventory(ctx, id)
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " where " + strings.Join(conds, " and ")
}
