package policy

import "fmt"

// The evaluator mirrors how Postgres applies permissive policies: clauses of
// the policies for a command are OR-combined; USING filters existing rows
// without error; WITH CHECK failures on new rows are errors. A table with no
// applicable policy denies everything.

// CanSelect reports whether the row is visible to s.
func (t Table) CanSelect(s Subject, r Row) bool {
	return t.anyUsing(CommandSelect, s, r)
}

// CanInsert returns an error wrapping ErrPolicyViolation when the new row
// fails every WITH CHECK clause.
func (t Table) CanInsert(s Subject, r Row) error {
	if t.anyCheck(CommandInsert, s, r) {
		return nil
	}
	return t.violation()
}

// CanUpdate reports whether the existing row is targeted by an update from
// s (USING on both SELECT and UPDATE policies). A matched row whose new
// version fails the check yields an error.
func (t Table) CanUpdate(s Subject, existing, updated Row) (bool, error) {
	if !t.anyUsing(CommandSelect, s, existing) || !t.anyUsing(CommandUpdate, s, existing) {
		return false, nil
	}
	if !t.anyCheck(CommandUpdate, s, updated) {
		return true, t.violation()
	}
	return true, nil
}

// CanDelete reports whether the row is removed by a delete from s.
func (t Table) CanDelete(s Subject, r Row) bool {
	return t.anyUsing(CommandSelect, s, r) && t.anyUsing(CommandDelete, s, r)
}

func (t Table) anyUsing(cmd Command, s Subject, r Row) bool {
	for _, p := range t.Policies {
		if p.appliesTo(cmd) && p.Using.Eval(s, r) {
			return true
		}
	}
	return false
}

func (t Table) anyCheck(cmd Command, s Subject, r Row) bool {
	for _, p := range t.Policies {
		if p.appliesTo(cmd) && p.checkClause().Eval(s, r) {
			return true
		}
	}
	return false
}

func (t Table) violation() error {
	return fmt.Errorf("%w for table %q", ErrPolicyViolation, t.Name)
}
