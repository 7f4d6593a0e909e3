package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kingsbuilder.org/internal/auth"
	"kingsbuilder.org/internal/estate"
)

const customerCols = `id, builder_id, first_name, last_name, father_name, cnic,
	contact_number, alternate_contact, email, address, city, country, occupation,
	status, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (*estate.Customer, error) {
	var (
		c                      estate.Customer
		father, cnic, altPhone sql.NullString
		email, address, city   sql.NullString
		country, occupation    sql.NullString
	)
	err := row.Scan(&c.ID, &c.BuilderID, &c.FirstName, &c.LastName, &father, &cnic,
		&c.ContactNumber, &altPhone, &email, &address, &city, &country, &occupation,
		&c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.FatherName = father.String
	c.CNIC = cnic.String
	c.AlternateContact = altPhone.String
	c.Email = email.String
	c.Address = address.String
	c.City = city.String
	c.Country = country.String
	c.Occupation = occupation.String
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c *estate.Customer) error {
	_, err := s.db.ExecContext(ctx, `
		insert into customers (id, builder_id, first_name, last_name, father_name,
			cnic, contact_number, alternate_contact, email, address, city, country,
			occupation, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, c.ID, c.BuilderID, c.FirstName, c.LastName, nullIfEmpty(c.FatherName),
		nullIfEmpty(c.CNIC), c.ContactNumber, nullIfEmpty(c.AlternateContact),
		nullIfEmpty(c.Email), nullIfEmpty(c.Address), nullIfEmpty(c.City),
		nullIfEmpty(c.Country), nullIfEmpty(c.Occupation), c.Status,
		c.CreatedAt, c.UpdatedAt)
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

func (s *Store) FindCustomer(ctx context.Context, id string) (*estate.Customer, error) {
	row := s.db.QueryRowContext(ctx, `select `+customerCols+` from customers where id = $1`, id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, estate.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context, q estate.ListQuery) ([]*estate.Customer, int, error) {
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
		conds = append(conds, fmt.Sprintf("(first_name ilike $%d or last_name ilike $%d or contact_number ilike $%d)", idx, idx, idx))
		args = append(args, "%"+q.Search+"%")
		idx++
	}
	where := whereClause(conds)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`select %s from customers%s order by last_name, first_name offset $%d limit $%d`,
		customerCols, where, idx, idx+1)
	args = append(args, q.Skip, q.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var customers []*estate.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, id string, upd estate.CustomerUpdate) (*estate.Customer, error) {
	u := newUpdateBuilder()
	u.setString("first_name", upd.FirstName)
	u.setString("last_name", upd.LastName)
	u.setNullString("father_name", upd.FatherName)
	u.setNullString("cnic", upd.CNIC)
	u.setString("contact_number", upd.ContactNumber)
	u.setNullString("alternate_contact", upd.AlternateContact)
	u.setNullString("email", upd.Email)
	u.setNullString("address", upd.Address)
	u.setNullString("city", upd.City)
	u.setNullString("country", upd.Country)
	u.setNullString("occupation", upd.Occupation)
	u.setString("status", upd.Status)
	if err := u.exec(ctx, s.db, "customers", id); err != nil {
		return nil, err
	}
	return s.FindCustomer(ctx, id)
}

const bookingCols = `id, builder_id, project_id, inventory_id, customer_id,
	booking_date, booking_amount, status, reference, remarks, cancellation_reason,
	cancellation_date, created_by_id, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*estate.Booking, error) {
	var (
		b                  estate.Booking
		remarks, cancelWhy sql.NullString
		createdBy          sql.NullString
		cancelDate         sql.NullTime
	)
	err := row.Scan(&b.ID, &b.BuilderID, &b.ProjectID, &b.InventoryID, &b.CustomerID,
		&b.BookingDate, &b.Amount, &b.Status, &b.Reference, &remarks, &cancelWhy,
		&cancelDate, &createdBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Remarks = remarks.String
	b.CancellationReason = cancelWhy.String
	b.CreatedByID = createdBy.String
	if cancelDate.Valid {
		t := cancelDate.Time
		b.CancellationDate = &t
	}
	return &b, nil
}

// CreateBooking inserts the booking and flips the unit to booked in one
// transaction. The unit row is locked first so concurrent bookings of the
// same unit serialize; the second one sees a non-available status.
func (s *Store) CreateBooking(ctx context.Context, b *estate.Booking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `
		select status from inventory where id = $1 for update
	`, b.InventoryID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return estate.ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != estate.UnitAvailable {
		return estate.ErrUnitUnavailable
	}

	if _, err := tx.ExecContext(ctx, `
		insert into bookings (id, builder_id, project_id, inventory_id, customer_id,
			booking_date, booking_amount, status, reference, remarks, created_by_id,
			created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, b.ID, b.BuilderID, b.ProjectID, b.InventoryID, b.CustomerID, b.BookingDate,
		b.Amount, b.Status, b.Reference, nullIfEmpty(b.Remarks),
		nullIfEmpty(b.CreatedByID), b.CreatedAt, b.UpdatedAt); err != nil {
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
	if _, err := tx.ExecContext(ctx, `
		update inventory set status = $1, booked_by_id = $2, updated_at = now() where id = $3
	`, estate.UnitBooked, b.CustomerID, b.InventoryID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		update projects set available_units = available_units - 1, updated_at = now()
		where id = $1 and available_units > 0
	`, b.ProjectID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) FindBooking(ctx context.Context, id string) (*estate.Booking, error) {
	row := s.db.QueryRowContext(ctx, `select `+bookingCols+` from bookings where id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, estate.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) ListBookings(ctx context.Context, q estate.ListQuery) ([]*estate.Booking, int, error) {
	var (
		args []any
		idx  = 1
	)
	conds := scopeConds(q.Scope, "builder_id", "", &idx, &args)
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
		conds = append(conds, fmt.Sprintf("reference ilike $%d", idx))
		args = append(args, "%"+q.Search+"%")
		idx++
	}
	where := whereClause(conds)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from bookings`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`select %s from bookings%s order by booking_date desc offset $%d limit $%d`,
		bookingCols, where, idx, idx+1)
	args = append(args, q.Skip, q.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bookings []*estate.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// CancelBooking records the cancellation and releases the unit in one
// transaction.
func (s *Store) CancelBooking(ctx context.Context, id, reason string) (*estate.Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		inventoryID string
		projectID   string
	)
	err = tx.QueryRowContext(ctx, `
		update bookings
		set status = $1, cancellation_reason = $2, cancellation_date = now(), updated_at = now()
		where id = $3 and status = $4
		returning inventory_id, project_id
	`, estate.BookingCancelled, reason, id, estate.BookingConfirmed).Scan(&inventoryID, &projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, estate.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		update inventory set status = $1, booked_by_id = null, updated_at = now() where id = $2
	`, estate.UnitAvailable, inventoryID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		update projects set available_units = available_units + 1, updated_at = now() where id = $1
	`, projectID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.FindBooking(ctx, id)
}

const paymentCols = `id, builder_id, booking_id, customer_id, amount, payment_method,
	payment_date, reference_number, remarks, created_by_id, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*estate.Payment, error) {
	var (
		p              estate.Payment
		refNo, remarks sql.NullString
		createdBy      sql.NullString
	)
	err := row.Scan(&p.ID, &p.BuilderID, &p.BookingID, &p.CustomerID, &p.Amount,
		&p.Method, &p.PaymentDate, &refNo, &remarks, &createdBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ReferenceNumber = refNo.String
	p.Remarks = remarks.String
	p.CreatedByID = createdBy.String
	return &p, nil
}

func (s *Store) CreatePayment(ctx context.Context, p *estate.Payment) error {
	_, err := s.db.ExecContext(ctx, `
		insert into payments (id, builder_id, booking_id, customer_id, amount,
			payment_method, payment_date, reference_number, remarks, created_by_id,
			created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.ID, p.BuilderID, p.BookingID, p.CustomerID, p.Amount, p.Method, p.PaymentDate,
		nullIfEmpty(p.ReferenceNumber), nullIfEmpty(p.Remarks), nullIfEmpty(p.CreatedByID),
		p.CreatedAt, p.UpdatedAt)
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

func (s *Store) FindPayment(ctx context.Context, id string) (*estate.Payment, error) {
	row := s.db.QueryRowContext(ctx, `select `+paymentCols+` from payments where id = $1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, estate.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, q estate.ListQuery) ([]*estate.Payment, int, error) {
	var (
		args []any
		idx  = 1
	)
	conds := scopeConds(q.Scope, "builder_id", "", &idx, &args)
	if q.BookingID != "" {
		conds = append(conds, fmt.Sprintf("booking_id = $%d", idx))
		args = append(args, q.BookingID)
		idx++
	}
	where := whereClause(conds)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from payments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`select %s from payments%s order by payment_date desc offset $%d limit $%d`,
		paymentCols, where, idx, idx+1)
	args = append(args, q.Skip, q.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var payments []*estate.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// Summarize aggregates portfolio counts under the scope. Each aggregate runs
// as its own query; the numbers are informational, not transactional.
func (s *Store) Summarize(ctx context.Context, scope auth.Scope) (estate.Summary, error) {
	if scope.DenyAll {
		return estate.Summary{}, nil
	}
	var sum estate.Summary

	count := func(table, investorCol string, extra ...string) (int, error) {
		var (
			args []any
			idx  = 1
		)
		conds := scopeConds(scope, "builder_id", investorCol, &idx, &args)
		for i := 0; i+1 < len(extra); i += 2 {
			conds = append(conds, fmt.Sprintf("%s = $%d", extra[i], idx))
			args = append(args, extra[i+1])
			idx++
		}
		var n int
		err := s.db.QueryRowContext(ctx,
			`select count(*) from `+table+whereClause(conds), args...).Scan(&n)
		return n, err
	}

	var err error
	if sum.Units, err = count("inventory", "investor_id"); err != nil {
		return estate.Summary{}, err
	}
	if sum.AvailableUnits, err = count("inventory", "investor_id", "status", estate.UnitAvailable); err != nil {
		return estate.Summary{}, err
	}
	// Investor scopes see their assigned units only; the remaining aggregates
	// would leak builder-wide numbers, so they stay zero.
	if scope.InvestorID != nil {
		return sum, nil
	}
	if scope.BuilderID == nil {
		if sum.Builders, err = count("builders", ""); err != nil {
			return estate.Summary{}, err
		}
	}
	if sum.Projects, err = count("projects", ""); err != nil {
		return estate.Summary{}, err
	}
	if sum.Bookings, err = count("bookings", ""); err != nil {
		return estate.Summary{}, err
	}
	if sum.ActiveBookings, err = count("bookings", "", "status", estate.BookingConfirmed); err != nil {
		return estate.Summary{}, err
	}
	if sum.Customers, err = count("customers", ""); err != nil {
		return estate.Summary{}, err
	}

	var (
		args []any
		idx  = 1
	)
	conds := scopeConds(scope, "builder_id", "", &idx, &args)
	err = s.db.QueryRowContext(ctx,
		`select coalesce(sum(amount), 0) from payments`+whereClause(conds), args...,
	).Scan(&sum.PaymentsTotal)
	if err != nil {
		return estate.Summary{}, err
	}
	return sum, nil
}
