package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kingsbuilder.org/internal/estate"
)

const installmentCols = `id, builder_id, booking_id, installment_number, due_date,
	amount, paid_amount, due_status, paid_date, remarks, created_by_id,
	created_at, updated_at`

func scanInstallment(row interface{ Scan(...any) error }) (*estate.Installment, error) {
	var (
		i         estate.Installment
		remarks   sql.NullString
		createdBy sql.NullString
		paidDate  sql.NullTime
	)
	err := row.Scan(&i.ID, &i.BuilderID, &i.BookingID, &i.Number, &i.DueDate,
		&i.Amount, &i.PaidAmount, &i.DueStatus, &paidDate, &remarks, &createdBy,
		&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.Remarks = remarks.String
	i.CreatedByID = createdBy.String
	if paidDate.Valid {
		t := paidDate.Time
		i.PaidDate = &t
	}
	i.BalanceAmount = i.Amount - i.PaidAmount
	return &i, nil
}

func (s *Store) CreateInstallment(ctx context.Context, i *estate.Installment) error {
	_, err := s.db.ExecContext(ctx, `
		insert into installments (id, builder_id, booking_id, installment_number,
			due_date, amount, paid_amount, due_status, remarks, created_by_id,
			created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, i.ID, i.BuilderID, i.BookingID, i.Number, i.DueDate, i.Amount, i.PaidAmount,
		i.DueStatus, nullIfEmpty(i.Remarks), nullIfEmpty(i.CreatedByID),
		i.CreatedAt, i.UpdatedAt)
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

func (s *Store) FindInstallment(ctx context.Context, id string) (*estate.Installment, error) {
	row := s.db.QueryRowContext(ctx, `select `+installmentCols+` from installments where id = $1`, id)
	i, err := scanInstallment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, estate.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return i, nil
}

func (s *Store) ListInstallments(ctx context.Context, q estate.ListQuery) ([]*estate.Installment, int, error) {
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
	if q.Status != "" {
		conds = append(conds, fmt.Sprintf("due_status = $%d", idx))
		args = append(args, q.Status)
		idx++
	}
	where := whereClause(conds)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from installments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`select %s from installments%s order by booking_id, installment_number offset $%d limit $%d`,
		installmentCols, where, idx, idx+1)
	args = append(args, q.Skip, q.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var installments []*estate.Installment
	for rows.Next() {
		i, err := scanInstallment(rows)
		if err != nil {
			return nil, 0, err
		}
		installments = append(installments, i)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return installments, total, nil
}

func (s *Store) UpdateInstallment(ctx context.Context, id string, upd estate.InstallmentUpdate) (*estate.Installment, error) {
	u := newUpdateBuilder()
	u.setTime("due_date", upd.DueDate)
	u.setInt64("amount", upd.Amount)
	u.setInt64("paid_amount", upd.PaidAmount)
	u.setString("due_status", upd.DueStatus)
	u.setTime("paid_date", upd.PaidDate)
	u.setNullString("remarks", upd.Remarks)
	if err := u.exec(ctx, s.db, "installments", id); err != nil {
		return nil, err
	}
	return s.FindInstallment(ctx, id)
}

const transferCols = `id, builder_id, inventory_id, booking_id, from_customer_id,
	to_customer_id, transfer_fee, transfer_date, status, approved_by_id, remarks,
	created_by_id, created_at, updated_at`

func scanTransfer(row interface{ Scan(...any) error }) (*estate.Transfer, error) {
	var (
		t            estate.Transfer
		remarks      sql.NullString
		approvedBy   sql.NullString
		createdBy    sql.NullString
		transferDate sql.NullTime
	)
	err := row.Scan(&t.ID, &t.BuilderID, &t.InventoryID, &t.BookingID,
		&t.FromCustomerID, &t.ToCustomerID, &t.TransferFee, &transferDate,
		&t.Status, &approvedBy, &remarks, &createdBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Remarks = remarks.String
	t.CreatedByID = createdBy.String
	if approvedBy.Valid {
		v := approvedBy.String
		t.ApprovedByID = &v
	}
	if transferDate.Valid {
		v := transferDate.Time
		t.TransferDate = &v
	}
	return &t, nil
}

func (s *Store) CreateTransfer(ctx context.Context, t *estate.Transfer) error {
	_, err := s.db.ExecContext(ctx, `
		insert into transfers (id, builder_id, inventory_id, booking_id,
			from_customer_id, to_customer_id, transfer_fee, status, remarks,
			created_by_id, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, t.BuilderID, t.InventoryID, t.BookingID, t.FromCustomerID,
		t.ToCustomerID, t.TransferFee, t.Status, nullIfEmpty(t.Remarks),
		nullIfEmpty(t.CreatedByID), t.CreatedAt, t.UpdatedAt)
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

func (s *Store) FindTransfer(ctx context.Context, id string) (*estate.Transfer, error) {
	row := s.db.QueryRowContext(ctx, `select `+transferCols+` from transfers where id = $1`, id)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, estate.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTransfers(ctx context.Context, q estate.ListQuery) ([]*estate.Transfer, int, error) {
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
	if q.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", idx))
		args = append(args, q.Status)
		idx++
	}
	where := whereClause(conds)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from transfers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`select %s from transfers%s order by created_at desc offset $%d limit $%d`,
		transferCols, where, idx, idx+1)
	args = append(args, q.Skip, q.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var transfers []*estate.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, err
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return transfers, total, nil
}

// ApproveTransfer flips the pending transfer to approved and reassigns the
// booking to the incoming customer in one transaction. A transfer in any other
// state maps to a conflict.
func (s *Store) ApproveTransfer(ctx context.Context, id, approverID string, at time.Time) (*estate.Transfer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		bookingID    string
		toCustomerID string
	)
	err = tx.QueryRowContext(ctx, `
		update transfers
		set status = $1, approved_by_id = $2, transfer_date = $3, updated_at = now()
		where id = $4 and status = $5
		returning booking_id, to_customer_id
	`, estate.TransferApproved, approverID, at, id, estate.TransferPending).Scan(&bookingID, &toCustomerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, estate.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		update bookings set customer_id = $1, updated_at = now() where id = $2
	`, toCustomerID, bookingID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.FindTransfer(ctx, id)
}

func (s *Store) RejectTransfer(ctx context.Context, id, remarks string) (*estate.Transfer, error) {
	res, err := s.db.ExecContext(ctx, `
		update transfers
		set status = $1, remarks = coalesce(nullif($2, ''), remarks), updated_at = now()
		where id = $3 and status = $4
	`, estate.TransferRejected, remarks, id, estate.TransferPending)
	if err != nil {
		return nil, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if aff == 0 {
		return nil, estate.ErrConflict
	}
	return s.FindTransfer(ctx, id)
}
