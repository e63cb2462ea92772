package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Assignments collects the SET list of a partial UPDATE in the order the
// columns were added.
type Assignments struct {
	clauses []string
	args    []any
}

// Set assigns value to column.
func (a *Assignments) Set(column string, value any) *Assignments {
	a.args = append(a.args, value)
	a.clauses = append(a.clauses, fmt.Sprintf("%s = $%d", pgx.Identifier{column}.Sanitize(), len(a.args)))
	return a
}

// SetIf assigns *value to column when value is non-nil.
func SetIf[T any](a *Assignments, column string, value *T) *Assignments {
	if value != nil {
		a.Set(column, *value)
	}
	return a
}

// Touch stamps updated_at with the transaction time.
func (a *Assignments) Touch() *Assignments {
	a.clauses = append(a.clauses, `"updated_at" = NOW()`)
	return a
}

// Empty reports whether no column has been assigned.
func (a *Assignments) Empty() bool { return len(a.args) == 0 }

// UpdateByID renders the statement against table for one id.
func (a *Assignments) UpdateByID(table string, id int64) (string, []any) {
	args := append(append([]any(nil), a.args...), id)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		pgx.Identifier{table}.Sanitize(), strings.Join(a.clauses, ", "), len(args))
	return sql, args
}

// ExecUpdateByID runs UpdateByID on q and returns the affected row count.
// Rows hidden by the table's policies count as unaffected.
func (a *Assignments) ExecUpdateByID(ctx context.Context, q DBTX, table string, id int64) (int64, error) {
	if a.Empty() {
		return 0, nil
	}
	sql, args := a.UpdateByID(table, id)
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
