package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"kingsbuilder.org/internal/estate"
)

// updateBuilder accumulates SET clauses for the partial-update queries. Nil
// inputs are skipped so callers can feed it the optional update structs
// directly.
type updateBuilder struct {
	setClauses []string
	args       []any
	idx        int
}

func newUpdateBuilder() *updateBuilder {
	return &updateBuilder{idx: 1}
}

func (u *updateBuilder) add(col string, val any) {
	u.setClauses = append(u.setClauses, fmt.Sprintf("%s = $%d", col, u.idx))
	u.args = append(u.args, val)
	u.idx++
}

func (u *updateBuilder) setString(col string, val *string) {
	if val != nil {
		u.add(col, *val)
	}
}

func (u *updateBuilder) setNullString(col string, val *string) {
	if val != nil {
		u.add(col, nullIfEmpty(*val))
	}
}

func (u *updateBuilder) setInt(col string, val *int) {
	if val != nil {
		u.add(col, *val)
	}
}

func (u *updateBuilder) setInt64(col string, val *int64) {
	if val != nil {
		u.add(col, *val)
	}
}

func (u *updateBuilder) setFloat(col string, val *float64) {
	if val != nil {
		u.add(col, *val)
	}
}

func (u *updateBuilder) setBool(col string, val *bool) {
	if val != nil {
		u.add(col, *val)
	}
}

func (u *updateBuilder) setTime(col string, val *time.Time) {
	if val != nil {
		u.add(col, *val)
	}
}

// exec runs the accumulated update against the table. No accumulated clauses
// means nothing to do; a zero-row update maps to not found.
func (u *updateBuilder) exec(ctx context.Context, db *sql.DB, table, id string) error {
	if len(u.setClauses) == 0 {
		return nil
	}
	u.setClauses = append(u.setClauses, "updated_at = now()")
	query := fmt.Sprintf(`update %s set %s where id = $%d`, table, strings.Join(u.setClauses, ", "), u.idx)
	u.args = append(u.args, id)
	res, err := db.ExecContext(ctx, query, u.args...)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return estate.ErrConflict
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return estate.ErrNotFound
	}
	return nil
}
