package policydb

import (
	"fmt"
	"maps"
	"slices"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/forecast-tournament/forecast/internal/policy"
)

const (
	codeUniqueViolation       = "23505"
	codeForeignKeyViolation   = "23503"
	codeCheckViolation        = "23514"
	codeInsufficientPrivilege = "42501"
)

type constraint[R any] struct {
	name  string
	code  string
	check func(existing []R, candidate R, self int64) bool
}

// Table holds the rows of one policy-protected table. Rows carry their own
// id, read and written through the id accessors.
type Table[R any] struct {
	store       *Store
	rules       policy.Table
	owner       func(R) *int64
	getID       func(R) int64
	setID       func(*R, int64)
	rows        map[int64]R
	nextID      int64
	constraints []constraint[R]
}

// NewTable registers a table with the store. The name must be declared in
// the store's policy set.
func NewTable[R any](s *Store, name string, owner func(R) *int64, getID func(R) int64, setID func(*R, int64)) *Table[R] {
	rules, ok := s.set.Lookup(name)
	if !ok {
		panic(fmt.Errorf("%w: %s", policy.ErrUnknownTable, name))
	}
	if owner == nil {
		owner = func(R) *int64 { return nil }
	}
	t := &Table[R]{store: s, rules: rules, owner: owner, getID: getID, setID: setID, rows: make(map[int64]R)}
	s.tables = append(s.tables, t)
	return t
}

// Unique adds a unique constraint over key.
func (t *Table[R]) Unique(name string, key func(R) string) *Table[R] {
	t.constraints = append(t.constraints, constraint[R]{
		name: name,
		code: codeUniqueViolation,
		check: func(existing []R, candidate R, self int64) bool {
			k := key(candidate)
			for _, r := range existing {
				if t.getID(r) != self && key(r) == k {
					return false
				}
			}
			return true
		},
	})
	return t
}

// Check adds a CHECK constraint.
func (t *Table[R]) Check(name string, ok func(R) bool) *Table[R] {
	t.constraints = append(t.constraints, constraint[R]{
		name:  name,
		code:  codeCheckViolation,
		check: func(_ []R, candidate R, _ int64) bool { return ok(candidate) },
	})
	return t
}

// References adds a foreign key check resolved by exists.
func (t *Table[R]) References(name string, exists func(R) bool) *Table[R] {
	t.constraints = append(t.constraints, constraint[R]{
		name:  name,
		code:  codeForeignKeyViolation,
		check: func(_ []R, candidate R, _ int64) bool { return exists(candidate) },
	})
	return t
}

// Seed inserts a row as the table owner, bypassing policies and
// constraints. Zero ids are assigned.
func (t *Table[R]) Seed(row R) R {
	id := t.getID(row)
	if id == 0 {
		t.nextID++
		id = t.nextID
		t.setID(&row, id)
	} else if id > t.nextID {
		t.nextID = id
	}
	t.rows[id] = row
	return row
}

// Raw returns every row in id order, ignoring policies.
func (t *Table[R]) Raw() []R {
	out := make([]R, 0, len(t.rows))
	for _, id := range slices.Sorted(maps.Keys(t.rows)) {
		out = append(out, t.rows[id])
	}
	return out
}

// RawGet returns a row by id ignoring policies, the way a SECURITY DEFINER
// function or a foreign key check sees it.
func (t *Table[R]) RawGet(id int64) (R, bool) {
	r, ok := t.rows[id]
	return r, ok
}

func (t *Table[R]) row(r R) policy.Row {
	return policy.Row{OwnerID: t.owner(r)}
}

// Select returns visible rows matching pred in id order.
func (t *Table[R]) Select(pred func(R) bool) []R {
	subject := t.store.Subject()
	out := make([]R, 0)
	for _, r := range t.Raw() {
		if !t.rules.CanSelect(subject, t.row(r)) {
			continue
		}
		if pred == nil || pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// Get returns the row with id when it is visible.
func (t *Table[R]) Get(id int64) (R, bool) {
	r, ok := t.rows[id]
	if !ok || !t.rules.CanSelect(t.store.Subject(), t.row(r)) {
		var zero R
		return zero, false
	}
	return r, true
}

// Insert assigns an id, applies WITH CHECK and the constraints, and stores
// the row.
func (t *Table[R]) Insert(row R) (R, error) {
	if err := t.rules.CanInsert(t.store.Subject(), t.row(row)); err != nil {
		return row, t.policyError()
	}
	if err := t.validate(row, 0); err != nil {
		return row, err
	}
	t.nextID++
	t.setID(&row, t.nextID)
	t.rows[t.nextID] = row
	return row, nil
}

// Update applies mutate to every row matching pred that the actor may
// update, returning the number of rows changed. A row failing WITH CHECK
// aborts the statement.
func (t *Table[R]) Update(pred func(R) bool, mutate func(R) R) (int, error) {
	subject := t.store.Subject()
	pending := make(map[int64]R)
	for _, old := range t.Raw() {
		if pred != nil && !pred(old) {
			continue
		}
		updated := mutate(old)
		t.setID(&updated, t.getID(old))
		matched, err := t.rules.CanUpdate(subject, t.row(old), t.row(updated))
		if !matched {
			continue
		}
		if err != nil {
			return 0, t.policyError()
		}
		if err := t.validate(updated, t.getID(old)); err != nil {
			return 0, err
		}
		pending[t.getID(old)] = updated
	}
	maps.Copy(t.rows, pending)
	return len(pending), nil
}

// UpdateByID updates one row by id.
func (t *Table[R]) UpdateByID(id int64, mutate func(R) R) (int, error) {
	return t.Update(func(r R) bool { return t.getID(r) == id }, mutate)
}

// Delete removes the rows matching pred the actor may delete.
func (t *Table[R]) Delete(pred func(R) bool) int {
	subject := t.store.Subject()
	n := 0
	for _, r := range t.Raw() {
		if pred != nil && !pred(r) {
			continue
		}
		if t.rules.CanDelete(subject, t.row(r)) {
			delete(t.rows, t.getID(r))
			n++
		}
	}
	return n
}

// DeleteByID removes one row by id.
func (t *Table[R]) DeleteByID(id int64) int {
	return t.Delete(func(r R) bool { return t.getID(r) == id })
}

// RawDelete removes rows ignoring policies, as ON DELETE CASCADE does.
func (t *Table[R]) RawDelete(pred func(R) bool) {
	for id, r := range t.rows {
		if pred(r) {
			delete(t.rows, id)
		}
	}
}

func (t *Table[R]) validate(row R, self int64) error {
	existing := t.Raw()
	for _, c := range t.constraints {
		if !c.check(existing, row, self) {
			return &pgconn.PgError{
				Code:           c.code,
				ConstraintName: c.name,
				TableName:      t.rules.Name,
				Message:        fmt.Sprintf("constraint %q violated on %q", c.name, t.rules.Name),
			}
		}
	}
	return nil
}

func (t *Table[R]) policyError() error {
	return &pgconn.PgError{
		Code:      codeInsufficientPrivilege,
		TableName: t.rules.Name,
		Message:   fmt.Sprintf("new row violates row-level security policy for table %q", t.rules.Name),
	}
}

type tableSnapshot[R any] struct {
	rows   map[int64]R
	nextID int64
}

func (t *Table[R]) snapshot() any {
	return tableSnapshot[R]{rows: maps.Clone(t.rows), nextID: t.nextID}
}

func (t *Table[R]) restore(v any) {
	snap := v.(tableSnapshot[R])
	t.rows = snap.rows
	t.nextID = snap.nextID
}
