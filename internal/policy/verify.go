package policy

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/forecast-tournament/forecast/internal/platform/db"
)

// TableState is what the catalog reports for one table.
type TableState struct {
	RowSecurity   bool
	ForceSecurity bool
}

// CatalogPolicy is one row of pg_policies.
type CatalogPolicy struct {
	Table      string
	Name       string
	Command    string
	Permissive bool
}

// Catalog reads the live security state of a database.
type Catalog interface {
	Tables(ctx context.Context, names []string) (map[string]TableState, error)
	Policies(ctx context.Context) ([]CatalogPolicy, error)
	ViewOptions(ctx context.Context, names []string) (map[string][]string, error)
}

// Drift kinds reported by Verify.
const (
	DriftTableMissing    = "table_missing"
	DriftRLSDisabled     = "rls_disabled"
	DriftPolicyMissing   = "policy_missing"
	DriftPolicyUnknown   = "policy_unknown"
	DriftPolicyMismatch  = "policy_mismatch"
	DriftViewMissing     = "view_missing"
	DriftViewUnprotected = "view_unprotected"
)

// Drift is one difference between the declared and the live schema.
type Drift struct {
	Kind   string `yaml:"kind" json:"kind"`
	Object string `yaml:"object" json:"object"`
	Detail string `yaml:"detail,omitempty" json:"detail,omitempty"`
}

func (d Drift) String() string {
	if d.Detail == "" {
		return d.Kind + " " + d.Object
	}
	return d.Kind + " " + d.Object + ": " + d.Detail
}

// Report lists drifts found by Verify.
type Report struct {
	Drifts []Drift `yaml:"drifts" json:"drifts"`
}

// OK reports whether the live schema matches the declarations.
func (r Report) OK() bool { return len(r.Drifts) == 0 }

// RequiredViewOptions must be present on every projection view.
var RequiredViewOptions = []string{"security_invoker=true", "security_barrier=true"}

// Verify compares the catalog against the set and the named views. Policies
// present in the database but not declared count as drift, since permissive
// policies can only widen access.
func Verify(ctx context.Context, cat Catalog, s Set, views ...string) (Report, error) {
	var report Report
	names := make([]string, 0, len(s.tables))
	for _, t := range s.tables {
		names = append(names, t.Name)
	}

	states, err := cat.Tables(ctx, names)
	if err != nil {
		return Report{}, fmt.Errorf("policy: read tables: %w", err)
	}
	live, err := cat.Policies(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("policy: read policies: %w", err)
	}
	byTable := make(map[string]map[string]CatalogPolicy)
	for _, p := range live {
		if byTable[p.Table] == nil {
			byTable[p.Table] = make(map[string]CatalogPolicy)
		}
		byTable[p.Table][p.Name] = p
	}

	for _, t := range s.tables {
		state, ok := states[t.Name]
		if !ok {
			report.add(DriftTableMissing, t.Name, "")
			continue
		}
		if !state.RowSecurity {
			report.add(DriftRLSDisabled, t.Name, "")
		}
		declared := make(map[string]struct{}, len(t.Policies))
		for _, p := range t.Policies {
			declared[p.Name] = struct{}{}
			got, ok := byTable[t.Name][p.Name]
			switch {
			case !ok:
				report.add(DriftPolicyMissing, t.Name+"."+p.Name, "")
			case !strings.EqualFold(got.Command, string(p.Command)) || !got.Permissive:
				report.add(DriftPolicyMismatch, t.Name+"."+p.Name,
					fmt.Sprintf("want permissive %s, got %s permissive=%t", p.Command, got.Command, got.Permissive))
			}
		}
		extra := make([]string, 0)
		for name := range byTable[t.Name] {
			if _, ok := declared[name]; !ok {
				extra = append(extra, name)
			}
		}
		slices.Sort(extra)
		for _, name := range extra {
			report.add(DriftPolicyUnknown, t.Name+"."+name, "")
		}
	}

	if len(views) > 0 {
		opts, err := cat.ViewOptions(ctx, views)
		if err != nil {
			return Report{}, fmt.Errorf("policy: read views: %w", err)
		}
		for _, v := range views {
			got, ok := opts[v]
			if !ok {
				report.add(DriftViewMissing, v, "")
				continue
			}
			for _, want := range RequiredViewOptions {
				if !slices.Contains(got, want) {
					report.add(DriftViewUnprotected, v, "missing "+want)
				}
			}
		}
	}
	return report, nil
}

func (r *Report) add(kind, object, detail string) {
	r.Drifts = append(r.Drifts, Drift{Kind: kind, Object: object, Detail: detail})
}

// PGCatalog reads pg_class and pg_policies in the current schema.
type PGCatalog struct {
	q db.DBTX
}

// NewPGCatalog wraps a connection or transaction.
func NewPGCatalog(q db.DBTX) *PGCatalog { return &PGCatalog{q: q} }

const (
	tablesSQL = `SELECT c.relname, c.relrowsecurity, c.relforcerowsecurity
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = current_schema() AND c.relkind = 'r' AND c.relname = ANY($1)`
	policiesSQL = `SELECT tablename, policyname, cmd, permissive = 'PERMISSIVE'
FROM pg_policies
WHERE schemaname = current_schema()
ORDER BY tablename, policyname`
	viewOptionsSQL = `SELECT c.relname, COALESCE(c.reloptions, '{}')
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = current_schema() AND c.relkind = 'v' AND c.relname = ANY($1)`
)

func (c *PGCatalog) Tables(ctx context.Context, names []string) (map[string]TableState, error) {
	rows, err := c.q.Query(ctx, tablesSQL, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]TableState, len(names))
	for rows.Next() {
		var (
			name  string
			state TableState
		)
		if err := rows.Scan(&name, &state.RowSecurity, &state.ForceSecurity); err != nil {
			return nil, err
		}
		out[name] = state
	}
	return out, rows.Err()
}

func (c *PGCatalog) Policies(ctx context.Context) ([]CatalogPolicy, error) {
	rows, err := c.q.Query(ctx, policiesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CatalogPolicy
	for rows.Next() {
		var p CatalogPolicy
		if err := rows.Scan(&p.Table, &p.Name, &p.Command, &p.Permissive); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *PGCatalog) ViewOptions(ctx context.Context, names []string) (map[string][]string, error) {
	rows, err := c.q.Query(ctx, viewOptionsSQL, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]string, len(names))
	for rows.Next() {
		var (
			name string
			opts []string
		)
		if err := rows.Scan(&name, &opts); err != nil {
			return nil, err
		}
		out[name] = opts
	}
	return out, rows.Err()
}
