// Package props manages propositions: the yes/no questions forecasts are
// made on. A prop belongs either to a competition (public) or to a user
// (personal); the row policies enforce who sees and writes which.
package props

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/forecast-tournament/forecast/internal/rbac"
	"github.com/forecast-tournament/forecast/internal/views"
)

// Prop is the read shape of a proposition.
type Prop = views.PropRow

// CreateInput describes a new prop. A nil CompetitionID and UserID makes a
// public prop outside any competition, which only admins may create.
type CreateInput struct {
	Text          string  `json:"text" validate:"required,max=500"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	CategoryID    int64   `json:"category_id" validate:"required,gt=0"`
	CompetitionID *int64  `json:"competition_id,omitempty" validate:"omitempty,gt=0"`
	UserID        *int64  `json:"user_id,omitempty" validate:"omitempty,gt=0"`
}

// Patch edits some fields of a prop.
type Patch struct {
	Text          *string `json:"text,omitempty" validate:"omitempty,min=1,max=500"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	CategoryID    *int64  `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	CompetitionID *int64  `json:"competition_id,omitempty" validate:"omitempty,gt=0"`
}

// Fields names the columns the patch sets.
func (p Patch) Fields() []string {
	var fields []string
	if p.Text != nil {
		fields = append(fields, "text")
	}
	if p.Notes != nil {
		fields = append(fields, "notes")
	}
	if p.CategoryID != nil {
		fields = append(fields, "category_id")
	}
	if p.CompetitionID != nil {
		fields = append(fields, "competition_id")
	}
	return fields
}

// EditableFields: owners edit wording and category, admins may also move a
// prop into a competition.
var EditableFields = rbac.NewFieldPolicy(
	[]string{"text", "notes", "category_id"},
	[]string{"competition_id"},
)

// ResolveInput records the outcome of a prop.
type ResolveInput struct {
	Resolution bool    `json:"resolution"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// Filter narrows List. Nil fields do not filter.
type Filter struct {
	CompetitionID *int64
	CategoryID    *int64
	Personal      *bool
	Resolved      *bool
}

// Match applies the filter to one prop.
func (f Filter) Match(p Prop) bool {
	if f.CompetitionID != nil && (p.CompetitionID == nil || *p.CompetitionID != *f.CompetitionID) {
		return false
	}
	if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
		return false
	}
	if f.Personal != nil && (p.UserID != nil) != *f.Personal {
		return false
	}
	if f.Resolved != nil && p.Resolved() != *f.Resolved {
		return false
	}
	return true
}

// FilterFromQuery reads competition_id, category_id, personal and resolved.
func FilterFromQuery(q url.Values) (Filter, error) {
	var f Filter
	var err error
	if f.CompetitionID, err = int64Param(q, "competition_id"); err != nil {
		return Filter{}, err
	}
	if f.CategoryID, err = int64Param(q, "category_id"); err != nil {
		return Filter{}, err
	}
	if f.Personal, err = boolParam(q, "personal"); err != nil {
		return Filter{}, err
	}
	if f.Resolved, err = boolParam(q, "resolved"); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func int64Param(q url.Values, name string) (*int64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return &v, nil
}

func boolParam(q url.Values, name string) (*bool, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return &v, nil
}
