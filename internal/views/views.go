// Package views declares the read models the application queries instead of
// the base tables. Every view runs with the caller's rights, so the base table
// policies keep filtering rows, and is a security barrier, so user-supplied
// predicates cannot be pushed below the policy filters.
package views

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/forecast-tournament/forecast/internal/policy"
)

// View is a parameterless read-only projection.
type View struct {
	Name            string
	Body            string
	SecurityInvoker bool
	SecurityBarrier bool
}

// ErrUnsafeView is returned for a declaration missing either option.
var ErrUnsafeView = errors.New("views: view must be security_invoker and security_barrier")

const (
	Users          = "v_users"
	Props          = "v_props"
	Forecasts      = "v_forecasts"
	SuggestedProps = "v_suggested_props"
)

func projection(name, body string) View {
	return View{Name: name, Body: strings.TrimSpace(body), SecurityInvoker: true, SecurityBarrier: true}
}

// All returns the projection views in creation order.
func All() []View {
	return []View{
		projection(Users, `
SELECT u.id, u.name, u.email, u.is_admin, u.login_id, u.created_at, u.updated_at
FROM users u`),
		projection(Props, `
SELECT p.id, p.text, p.notes, p.category_id, c.name AS category_name,
       p.competition_id, comp.name AS competition_name,
       comp.forecasts_close_date AS competition_forecasts_close_date,
       p.user_id, r.resolution, r.notes AS resolution_notes,
       p.created_at, p.updated_at,
       comp.forecasts_open_date AS competition_forecasts_open_date
FROM props p
JOIN categories c ON c.id = p.category_id
LEFT JOIN competitions comp ON comp.id = p.competition_id
LEFT JOIN resolutions r ON r.prop_id = p.id`),
		projection(Forecasts, `
SELECT f.id, f.prop_id, p.text AS prop_text, p.category_id, c.name AS category_name,
       p.competition_id, p.user_id AS prop_user_id,
       f.user_id, u.name AS user_name, f.forecast, r.resolution,
       CASE WHEN r.resolution IS NULL THEN NULL
            ELSE power(f.forecast - CASE WHEN r.resolution THEN 1 ELSE 0 END, 2)
       END AS score,
       f.created_at, f.updated_at
FROM forecasts f
JOIN props p ON p.id = f.prop_id
JOIN categories c ON c.id = p.category_id
JOIN users u ON u.id = f.user_id
LEFT JOIN resolutions r ON r.prop_id = f.prop_id`),
		projection(SuggestedProps, `
SELECT s.id, s.prop_text, s.notes, s.user_id, u.name AS user_name, u.email AS user_email, s.created_at
FROM suggested_props s
JOIN users u ON u.id = s.user_id`),
	}
}

// Names returns the names of All.
func Names() []string {
	all := All()
	out := make([]string, len(all))
	for i, v := range all {
		out[i] = v.Name
	}
	return out
}

// Validate rejects views that would run with the owner's rights or let
// predicates leak past the row filters.
func Validate(v View) error {
	if v.Name == "" || v.Body == "" {
		return fmt.Errorf("views: %q: name and body are required", v.Name)
	}
	if !v.SecurityInvoker || !v.SecurityBarrier {
		return fmt.Errorf("%w: %s", ErrUnsafeView, v.Name)
	}
	return nil
}

// Render emits CREATE OR REPLACE VIEW statements for the given views.
func Render(vs ...View) (string, error) {
	var b strings.Builder
	for i, v := range vs {
		if err := Validate(v); err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "CREATE OR REPLACE VIEW %s WITH (security_invoker = true, security_barrier = true) AS\n%s;\n",
			pgx.Identifier{v.Name}.Sanitize(), v.Body)
		fmt.Fprintf(&b, "GRANT SELECT ON %s TO %s;\n", pgx.Identifier{v.Name}.Sanitize(), policy.AppRole)
	}
	return b.String(), nil
}

// MustRender renders All and panics on an invalid declaration.
func MustRender() string {
	ddl, err := Render(All()...)
	if err != nil {
		panic(err)
	}
	return ddl
}

// Brier returns the squared error of a probability against the outcome, the
// score v_forecasts exposes for resolved props.
func Brier(forecast float64, resolution bool) float64 {
	outcome := 0.0
	if resolution {
		outcome = 1
	}
	d := forecast - outcome
	return d * d
}
