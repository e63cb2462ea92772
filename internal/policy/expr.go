package policy

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// Subject is the evaluator's view of the bound actor: the value of
// app_current_user_id() and the result of app_is_admin().
type Subject struct {
	UserID *int64
	Admin  bool
}

// Anonymous is the subject of a transaction with no actor bound.
var Anonymous = Subject{}

// SubjectFor builds a subject. Admin is ignored without a user id, matching
// app_is_admin() returning false when the session variable is unset.
func SubjectFor(userID *int64, admin bool) Subject {
	if userID == nil {
		return Subject{}
	}
	id := *userID
	return Subject{UserID: &id, Admin: admin}
}

// Row carries the owner column of the row under evaluation.
type Row struct {
	OwnerID *int64
}

// Owned is shorthand for a row owned by id.
func Owned(id int64) Row { return Row{OwnerID: &id} }

// Public is a row with a NULL owner.
var Public = Row{}

// Expr is a policy predicate with both its SQL text and an equivalent Go
// evaluation. The zero Expr means "no clause".
type Expr struct {
	sql  string
	eval func(Subject, Row) bool
}

// SQL returns the predicate as rendered into CREATE POLICY.
func (e Expr) SQL() string { return e.sql }

// IsZero reports whether the clause is absent.
func (e Expr) IsZero() bool { return e.eval == nil }

// Eval evaluates the predicate. SQL NULL comparisons evaluate to false.
func (e Expr) Eval(s Subject, r Row) bool {
	if e.eval == nil {
		return false
	}
	return e.eval(s, r)
}

// True admits every row.
func True() Expr {
	return Expr{sql: "true", eval: func(Subject, Row) bool { return true }}
}

// OwnerIsNull matches public rows.
func OwnerIsNull(column string) Expr {
	return Expr{
		sql:  ident(column) + " IS NULL",
		eval: func(_ Subject, r Row) bool { return r.OwnerID == nil },
	}
}

// OwnerIsSet matches rows that have an owner.
func OwnerIsSet(column string) Expr {
	return Expr{
		sql:  ident(column) + " IS NOT NULL",
		eval: func(_ Subject, r Row) bool { return r.OwnerID != nil },
	}
}

// OwnerIsCurrent matches rows owned by the bound actor. With no actor bound
// the comparison is NULL and the row is denied.
func OwnerIsCurrent(column string) Expr {
	return Expr{
		sql: ident(column) + " = app_current_user_id()",
		eval: func(s Subject, r Row) bool {
			return s.UserID != nil && r.OwnerID != nil && *s.UserID == *r.OwnerID
		},
	}
}

// IsAdmin matches when the bound actor is an administrator.
func IsAdmin() Expr {
	return Expr{
		sql:  "app_is_admin()",
		eval: func(s Subject, _ Row) bool { return s.UserID != nil && s.Admin },
	}
}

// Or combines predicates; an empty Or is false.
func Or(exprs ...Expr) Expr {
	return combine(" OR ", exprs, func(s Subject, r Row) bool {
		for _, e := range exprs {
			if e.Eval(s, r) {
				return true
			}
		}
		return false
	})
}

// And combines predicates; an empty And is true.
func And(exprs ...Expr) Expr {
	return combine(" AND ", exprs, func(s Subject, r Row) bool {
		for _, e := range exprs {
			if !e.Eval(s, r) {
				return false
			}
		}
		return true
	})
}

func combine(op string, exprs []Expr, eval func(Subject, Row) bool) Expr {
	switch len(exprs) {
	case 0:
		if op == " AND " {
			return True()
		}
		return Expr{sql: "false", eval: func(Subject, Row) bool { return false }}
	case 1:
		return exprs[0]
	}
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.sql
	}
	return Expr{sql: "(" + strings.Join(parts, op) + ")", eval: eval}
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
