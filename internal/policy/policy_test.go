package policy

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(v int64) *int64 { return &v }

var (
	alice = SubjectFor(id(1), false)
	bob   = SubjectFor(id(2), false)
	admin = SubjectFor(id(9), true)
)

func ownerScopedTables(t *testing.T) []Table {
	t.Helper()
	var out []Table
	for _, tbl := range Schema().Tables() {
		if tbl.OwnerColumn != "" {
			out = append(out, tbl)
		}
	}
	require.NotEmpty(t, out)
	return out
}

func TestOwnerScopedNeverShowsOtherActorsRows(t *testing.T) {
	for _, tbl := range ownerScopedTables(t) {
		t.Run(tbl.Name, func(t *testing.T) {
			assert.True(t, tbl.CanSelect(alice, Owned(1)))
			assert.False(t, tbl.CanSelect(alice, Owned(2)))
			assert.False(t, tbl.CanSelect(bob, Owned(1)))
		})
	}
}

func TestOwnerScopedWriteCheckRejectsForeignOwner(t *testing.T) {
	for _, tbl := range ownerScopedTables(t) {
		t.Run(tbl.Name, func(t *testing.T) {
			err := tbl.CanInsert(alice, Owned(2))
			require.ErrorIs(t, err, ErrPolicyViolation)

			matched, err := tbl.CanUpdate(alice, Owned(1), Owned(2))
			assert.True(t, matched)
			require.ErrorIs(t, err, ErrPolicyViolation)

			require.NoError(t, tbl.CanInsert(alice, Owned(1)))
		})
	}
}

func TestPublicRowsAreNotWritableByUsers(t *testing.T) {
	props := Schema().MustLookup("props")
	require.ErrorIs(t, props.CanInsert(alice, Public), ErrPolicyViolation)
	matched, err := props.CanUpdate(alice, Public, Public)
	assert.False(t, matched)
	assert.NoError(t, err)
	assert.False(t, props.CanDelete(alice, Public))
}

func TestAdminReadsAndWritesEveryRow(t *testing.T) {
	for _, tbl := range Schema().Tables() {
		if len(tbl.Policies) == 0 {
			continue
		}
		t.Run(tbl.Name, func(t *testing.T) {
			for _, row := range []Row{Public, Owned(1), Owned(2)} {
				assert.True(t, tbl.CanSelect(admin, row))
				assert.NoError(t, tbl.CanInsert(admin, row))
				matched, err := tbl.CanUpdate(admin, row, Owned(3))
				assert.True(t, matched)
				assert.NoError(t, err)
				assert.True(t, tbl.CanDelete(admin, row))
			}
		})
	}
}

func TestPublicRowsVisibleWithoutBoundActor(t *testing.T) {
	for _, tbl := range ownerScopedTables(t) {
		assert.True(t, tbl.CanSelect(Anonymous, Public), tbl.Name)
		assert.False(t, tbl.CanSelect(Anonymous, Owned(1)), tbl.Name)
		assert.ErrorIs(t, tbl.CanInsert(Anonymous, Owned(1)), ErrPolicyViolation, tbl.Name)
	}
	categories := Schema().MustLookup("categories")
	assert.True(t, categories.CanSelect(Anonymous, Public))
	assert.ErrorIs(t, categories.CanInsert(alice, Public), ErrPolicyViolation)
}

func TestAdminFlagIgnoredWithoutUser(t *testing.T) {
	s := SubjectFor(nil, true)
	assert.False(t, IsAdmin().Eval(s, Public))
	assert.False(t, Schema().MustLookup("forecasts").CanSelect(s, Owned(1)))
}

func TestLockedTableDeniesEveryone(t *testing.T) {
	logins := Schema().MustLookup("logins")
	assert.Empty(t, logins.Policies)
	assert.False(t, logins.CanSelect(admin, Owned(9)))
	assert.ErrorIs(t, logins.CanInsert(admin, Public), ErrPolicyViolation)
}

func TestUsersTableScopesToOwnRow(t *testing.T) {
	users := Schema().MustLookup("users")
	assert.Equal(t, "id", users.OwnerColumn)
	assert.True(t, users.CanSelect(alice, Owned(1)))
	assert.False(t, users.CanSelect(alice, Owned(2)))
	matched, err := users.CanUpdate(alice, Owned(1), Owned(1))
	assert.True(t, matched)
	assert.NoError(t, err)
}

func TestNewSetRejectsDuplicates(t *testing.T) {
	_, err := NewSet(PublicCatalog("a"), PublicCatalog("a"))
	require.Error(t, err)

	bad := PublicCatalog("b")
	bad.Policies = append(bad.Policies, bad.Policies[0])
	_, err = NewSet(bad)
	require.ErrorContains(t, err, "declared twice")
}

func TestExprSQL(t *testing.T) {
	e := Or(OwnerIsNull("user_id"), OwnerIsCurrent("user_id"), IsAdmin())
	assert.Equal(t, `("user_id" IS NULL OR "user_id" = app_current_user_id() OR app_is_admin())`, e.SQL())
	assert.Equal(t, "false", Or().SQL())
	assert.Equal(t, "true", And().SQL())
	assert.True(t, Expr{}.IsZero())
	assert.False(t, Expr{}.Eval(admin, Public))
}

func TestRenderDDL(t *testing.T) {
	ddl := RenderDDL(Schema())

	assert.Contains(t, ddl, `ALTER TABLE "forecasts" ENABLE ROW LEVEL SECURITY;`)
	assert.Contains(t, ddl, `ALTER TABLE "logins" ENABLE ROW LEVEL SECURITY;`)
	assert.NotContains(t, ddl, "FORCE")
	assert.NotContains(t, ddl, "DISABLE")
	assert.Contains(t, ddl, `DROP POLICY IF EXISTS "forecasts_read" ON "forecasts";`)
	assert.Contains(t, ddl, `CREATE POLICY "forecasts_insert_own" ON "forecasts" AS PERMISSIVE FOR INSERT TO PUBLIC
    WITH CHECK (("user_id" IS NOT NULL AND "user_id" = app_current_user_id()));`)
	assert.Contains(t, ddl, `CREATE POLICY "categories_read" ON "categories" AS PERMISSIVE FOR SELECT TO PUBLIC
    USING (true);`)

	drops := strings.Count(ddl, "DROP POLICY IF EXISTS")
	creates := strings.Count(ddl, "CREATE POLICY")
	assert.Equal(t, drops, creates)
}

func TestDescribe(t *testing.T) {
	docs := Describe(Schema())
	require.Len(t, docs, len(Schema().Tables()))
	assert.Equal(t, "logins", docs[0].Table)
	assert.Empty(t, docs[0].Policies)
	for _, d := range docs {
		if d.Table == "forecasts" {
			assert.Equal(t, "user_id", d.OwnerColumn)
			assert.Len(t, d.Policies, 5)
		}
	}
}

type fakeCatalog struct {
	tables   map[string]TableState
	policies []CatalogPolicy
	views    map[string][]string
	err      error
}

func (c fakeCatalog) Tables(context.Context, []string) (map[string]TableState, error) {
	return c.tables, c.err
}

func (c fakeCatalog) Policies(context.Context) ([]CatalogPolicy, error) { return c.policies, nil }

func (c fakeCatalog) ViewOptions(context.Context, []string) (map[string][]string, error) {
	return c.views, nil
}

func catalogFor(s Set) fakeCatalog {
	cat := fakeCatalog{tables: map[string]TableState{}, views: map[string][]string{}}
	for _, t := range s.Tables() {
		cat.tables[t.Name] = TableState{RowSecurity: true}
		for _, p := range t.Policies {
			cat.policies = append(cat.policies, CatalogPolicy{Table: t.Name, Name: p.Name, Command: string(p.Command), Permissive: true})
		}
	}
	return cat
}

func TestVerifyCleanCatalog(t *testing.T) {
	cat := catalogFor(Schema())
	cat.views["v_props"] = []string{"security_invoker=true", "security_barrier=true"}

	report, err := Verify(context.Background(), cat, Schema(), "v_props")
	require.NoError(t, err)
	assert.True(t, report.OK(), report.Drifts)
}

func TestVerifyReportsDrift(t *testing.T) {
	cat := catalogFor(Schema())
	cat.tables["forecasts"] = TableState{RowSecurity: false}
	delete(cat.tables, "resolutions")
	cat.policies = append(cat.policies, CatalogPolicy{Table: "props", Name: "props_everyone", Command: "ALL", Permissive: true})
	for i, p := range cat.policies {
		if p.Name == "props_read" {
			cat.policies[i].Command = "ALL"
		}
	}
	cat.policies = slices.DeleteFunc(cat.policies, func(p CatalogPolicy) bool {
		return p.Name == "users_insert_own"
	})
	cat.views["v_props"] = []string{"security_barrier=true"}

	report, err := Verify(context.Background(), cat, Schema(), "v_props", "v_users")
	require.NoError(t, err)
	require.False(t, report.OK())

	kinds := map[string]string{}
	for _, d := range report.Drifts {
		kinds[d.Object] = d.Kind
	}
	assert.Equal(t, DriftRLSDisabled, kinds["forecasts"])
	assert.Equal(t, DriftTableMissing, kinds["resolutions"])
	assert.Equal(t, DriftPolicyUnknown, kinds["props.props_everyone"])
	assert.Equal(t, DriftPolicyMismatch, kinds["props.props_read"])
	assert.Equal(t, DriftPolicyMissing, kinds["users.users_insert_own"])
	assert.Equal(t, DriftViewUnprotected, kinds["v_props"])
	assert.Equal(t, DriftViewMissing, kinds["v_users"])
}

func TestVerifyPropagatesCatalogErrors(t *testing.T) {
	_, err := Verify(context.Background(), fakeCatalog{err: errors.New("conn closed")}, Schema())
	require.ErrorContains(t, err, "conn closed")
}
