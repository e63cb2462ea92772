package policy

import (
	"errors"
	"fmt"
	"slices"

	"github.com/forecast-tournament/forecast/internal/platform/db"
)

// AppRole is the database role the application runs as. It does not own the
// tables, so row-level security applies to it.
const AppRole = "forecast_app"

// Command is the statement class a policy applies to.
type Command string

const (
	CommandAll    Command = "ALL"
	CommandSelect Command = "SELECT"
	CommandInsert Command = "INSERT"
	CommandUpdate Command = "UPDATE"
	CommandDelete Command = "DELETE"
)

// Policy is one permissive row-level policy.
type Policy struct {
	Name    string
	Command Command
	Using   Expr
	Check   Expr
}

// appliesTo reports whether the policy participates in cmd.
func (p Policy) appliesTo(cmd Command) bool {
	return p.Command == CommandAll || p.Command == cmd
}

// checkClause returns the WITH CHECK clause, falling back to USING for ALL
// and UPDATE policies the way Postgres does.
func (p Policy) checkClause() Expr {
	if !p.Check.IsZero() {
		return p.Check
	}
	if p.Command == CommandAll || p.Command == CommandUpdate {
		return p.Using
	}
	return Expr{}
}

// Table is a table with row-level security enabled and its policies.
// OwnerColumn is empty for tables without an owner.
type Table struct {
	Name        string
	OwnerColumn string
	Policies    []Policy
}

// ErrUnknownTable is returned when a table is not part of the policy set.
var ErrUnknownTable = errors.New("policy: unknown table")

// OwnerScoped declares the owner rules: rows are visible when public, owned by
// the actor, or the actor is an admin; rows are writable by their owner or an
// admin, and a public row is never writable by a non-admin.
func OwnerScoped(table, ownerColumn string) Table {
	ownedByActor := And(OwnerIsSet(ownerColumn), OwnerIsCurrent(ownerColumn))
	return Table{
		Name:        table,
		OwnerColumn: ownerColumn,
		Policies: []Policy{
			{
				Name:    table + "_read",
				Command: CommandSelect,
				Using:   Or(OwnerIsNull(ownerColumn), OwnerIsCurrent(ownerColumn), IsAdmin()),
			},
			{Name: table + "_insert_own", Command: CommandInsert, Check: ownedByActor},
			{Name: table + "_update_own", Command: CommandUpdate, Using: ownedByActor, Check: ownedByActor},
			{Name: table + "_delete_own", Command: CommandDelete, Using: ownedByActor},
			adminAll(table),
		},
	}
}

// PublicCatalog declares a table readable by everyone, including anonymous
// visitors, and writable only by admins.
func PublicCatalog(table string) Table {
	return Table{
		Name: table,
		Policies: []Policy{
			{Name: table + "_read", Command: CommandSelect, Using: True()},
			adminAll(table),
		},
	}
}

// Locked declares a table with row-level security on and no policies. Only
// SECURITY DEFINER functions owned by the table owner can reach its rows.
func Locked(table string) Table {
	return Table{Name: table}
}

func adminAll(table string) Policy {
	return Policy{Name: table + "_admin_all", Command: CommandAll, Using: IsAdmin(), Check: IsAdmin()}
}

// Set is the ordered collection of protected tables.
type Set struct {
	tables []Table
}

// NewSet builds a set. Table names must be unique.
func NewSet(tables ...Table) (Set, error) {
	seen := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		if _, dup := seen[t.Name]; dup {
			return Set{}, fmt.Errorf("policy: table %q declared twice", t.Name)
		}
		seen[t.Name] = struct{}{}
		names := make(map[string]struct{}, len(t.Policies))
		for _, p := range t.Policies {
			if _, dup := names[p.Name]; dup {
				return Set{}, fmt.Errorf("policy: policy %q declared twice on %q", p.Name, t.Name)
			}
			names[p.Name] = struct{}{}
		}
	}
	return Set{tables: slices.Clone(tables)}, nil
}

// Tables returns the declared tables in order.
func (s Set) Tables() []Table { return slices.Clone(s.tables) }

// Lookup returns the table declaration for name.
func (s Set) Lookup(name string) (Table, bool) {
	for _, t := range s.tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// MustLookup panics when name is not declared.
func (s Set) MustLookup(name string) Table {
	t, ok := s.Lookup(name)
	if !ok {
		panic(fmt.Errorf("%w: %s", ErrUnknownTable, name))
	}
	return t
}

// Schema returns the policy set of the forecasting schema.
func Schema() Set {
	set, err := NewSet(
		Locked("logins"),
		OwnerScoped("users", "id"),
		PublicCatalog("categories"),
		PublicCatalog("competitions"),
		OwnerScoped("props", "user_id"),
		OwnerScoped("resolutions", "user_id"),
		OwnerScoped("forecasts", "user_id"),
		OwnerScoped("suggested_props", "user_id"),
		OwnerScoped("user_sessions", "user_id"),
	)
	if err != nil {
		panic(err)
	}
	return set
}

// ErrPolicyViolation is wrapped by write-check failures. It matches
// db.ErrPolicyViolation so callers classify emulated and real denials alike.
var ErrPolicyViolation = db.ErrPolicyViolation
