package policy

import (
	"fmt"
	"strings"
)

// RenderDDL renders idempotent statements that enable row-level security on
// every table in the set and (re)create its policies. Running it twice
// yields the same catalog state.
func RenderDDL(s Set) string {
	var b strings.Builder
	for i, t := range s.tables {
		if i > 0 {
			b.WriteString("\n")
		}
		table := ident(t.Name)
		fmt.Fprintf(&b, "ALTER TABLE %s ENABLE ROW LEVEL SECURITY;\n", table)
		for _, p := range t.Policies {
			fmt.Fprintf(&b, "DROP POLICY IF EXISTS %s ON %s;\n", ident(p.Name), table)
			b.WriteString(renderPolicy(t, p))
		}
	}
	return b.String()
}

func renderPolicy(t Table, p Policy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE POLICY %s ON %s AS PERMISSIVE FOR %s TO PUBLIC",
		ident(p.Name), ident(t.Name), p.Command)
	if !p.Using.IsZero() {
		fmt.Fprintf(&b, "\n    USING (%s)", p.Using.SQL())
	}
	if !p.Check.IsZero() {
		fmt.Fprintf(&b, "\n    WITH CHECK (%s)", p.Check.SQL())
	}
	b.WriteString(";\n")
	return b.String()
}

// PolicyDoc is the serialisable description of one policy.
type PolicyDoc struct {
	Name    string `yaml:"name" json:"name"`
	Command string `yaml:"command" json:"command"`
	Using   string `yaml:"using,omitempty" json:"using,omitempty"`
	Check   string `yaml:"with_check,omitempty" json:"with_check,omitempty"`
}

// TableDoc is the serialisable description of one table.
type TableDoc struct {
	Table       string      `yaml:"table" json:"table"`
	OwnerColumn string      `yaml:"owner_column,omitempty" json:"owner_column,omitempty"`
	Policies    []PolicyDoc `yaml:"policies" json:"policies"`
}

// Describe flattens the set for dumping.
func Describe(s Set) []TableDoc {
	out := make([]TableDoc, 0, len(s.tables))
	for _, t := range s.tables {
		doc := TableDoc{Table: t.Name, OwnerColumn: t.OwnerColumn, Policies: []PolicyDoc{}}
		for _, p := range t.Policies {
			doc.Policies = append(doc.Policies, PolicyDoc{
				Name:    p.Name,
				Command: string(p.Command),
				Using:   p.Using.SQL(),
				Check:   p.Check.SQL(),
			})
		}
		out = append(out, doc)
	}
	return out
}
