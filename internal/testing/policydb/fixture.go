package policydb

import (
	"fmt"
	"time"

	"github.com/forecast-tournament/forecast/internal/policy"
	"github.com/forecast-tournament/forecast/internal/views"
)

// Base table rows of the forecasting schema.
type (
	User struct {
		ID        int64
		Name      string
		Email     string
		IsAdmin   bool
		LoginID   *int64
		CreatedAt time.Time
		UpdatedAt time.Time
	}
	Category struct {
		ID   int64
		Name string
	}
	Competition struct {
		ID        int64
		Name      string
		OpenAt    time.Time
		CloseAt   time.Time
		EndAt     time.Time
		CreatedAt time.Time
		UpdatedAt time.Time
	}
	Prop struct {
		ID            int64
		Text          string
		Notes         *string
		CategoryID    int64
		CompetitionID *int64
		UserID        *int64
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}
	Resolution struct {
		ID         int64
		PropID     int64
		Resolution bool
		Notes      *string
		UserID     *int64
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}
	Forecast struct {
		ID        int64
		PropID    int64
		UserID    int64
		Forecast  float64
		CreatedAt time.Time
		UpdatedAt time.Time
	}
	Suggestion struct {
		ID        int64
		PropText  string
		Notes     *string
		UserID    int64
		CreatedAt time.Time
	}
)

// Fixture is the whole schema in memory with its constraints and the
// projection views evaluated with invoker rights.
type Fixture struct {
	*Store
	Users        *Table[User]
	Categories   *Table[Category]
	Competitions *Table[Competition]
	Props        *Table[Prop]
	Resolutions  *Table[Resolution]
	Forecasts    *Table[Forecast]
	Suggestions  *Table[Suggestion]
	Now          func() time.Time
}

func ptrOwner(id *int64) *int64 { return id }

// NewFixture builds an empty schema enforcing policy.Schema().
func NewFixture() *Fixture {
	s := New(policy.Schema())
	f := &Fixture{Store: s, Now: func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }}

	f.Users = NewTable(s, "users",
		func(u User) *int64 { return &u.ID },
		func(u User) int64 { return u.ID },
		func(u *User, id int64) { u.ID = id },
	).Unique("users_email_key", func(u User) string { return u.Email })

	f.Categories = NewTable(s, "categories", nil,
		func(c Category) int64 { return c.ID },
		func(c *Category, id int64) { c.ID = id },
	).Unique("categories_name_key", func(c Category) string { return c.Name })

	f.Competitions = NewTable(s, "competitions", nil,
		func(c Competition) int64 { return c.ID },
		func(c *Competition, id int64) { c.ID = id },
	).Unique("competitions_name_key", func(c Competition) string { return c.Name }).
		Check("competitions_dates_ordered", func(c Competition) bool {
			return c.OpenAt.Before(c.CloseAt) && !c.CloseAt.After(c.EndAt)
		})

	f.Props = NewTable(s, "props",
		func(p Prop) *int64 { return ptrOwner(p.UserID) },
		func(p Prop) int64 { return p.ID },
		func(p *Prop, id int64) { p.ID = id },
	).Check("props_single_scope", func(p Prop) bool { return p.CompetitionID == nil || p.UserID == nil }).
		References("props_category_id_fkey", func(p Prop) bool {
			_, ok := f.Categories.RawGet(p.CategoryID)
			return ok
		}).
		References("props_competition_id_fkey", func(p Prop) bool {
			if p.CompetitionID == nil {
				return true
			}
			_, ok := f.Competitions.RawGet(*p.CompetitionID)
			return ok
		})

	f.Resolutions = NewTable(s, "resolutions",
		func(r Resolution) *int64 { return ptrOwner(r.UserID) },
		func(r Resolution) int64 { return r.ID },
		func(r *Resolution, id int64) { r.ID = id },
	).Unique("resolutions_prop_id_key", func(r Resolution) string { return fmt.Sprint(r.PropID) }).
		References("resolutions_prop_id_fkey", func(r Resolution) bool {
			_, ok := f.Props.RawGet(r.PropID)
			return ok
		})

	f.Forecasts = NewTable(s, "forecasts",
		func(fc Forecast) *int64 { return &fc.UserID },
		func(fc Forecast) int64 { return fc.ID },
		func(fc *Forecast, id int64) { fc.ID = id },
	).Unique("forecasts_user_prop_unique", func(fc Forecast) string {
		return fmt.Sprintf("%d:%d", fc.UserID, fc.PropID)
	}).
		Check("forecasts_probability_range", func(fc Forecast) bool { return fc.Forecast >= 0 && fc.Forecast <= 1 }).
		References("forecasts_prop_id_fkey", func(fc Forecast) bool {
			_, ok := f.Props.RawGet(fc.PropID)
			return ok
		})

	f.Suggestions = NewTable(s, "suggested_props",
		func(sp Suggestion) *int64 { return &sp.UserID },
		func(sp Suggestion) int64 { return sp.ID },
		func(sp *Suggestion, id int64) { sp.ID = id },
	)

	s.SetAdminLookup(func(userID int64) bool {
		u, ok := f.Users.RawGet(userID)
		return ok && u.IsAdmin
	})
	return f
}

// SeedUser adds a user as the schema owner.
func (f *Fixture) SeedUser(name string, admin bool) User {
	now := f.Now()
	return f.Users.Seed(User{Name: name, Email: name + "@example.com", IsAdmin: admin, CreatedAt: now, UpdatedAt: now})
}

// SeedCategory adds a category as the schema owner.
func (f *Fixture) SeedCategory(name string) Category {
	return f.Categories.Seed(Category{Name: name})
}

// SeedCompetition adds a competition whose forecasts close at closeAt.
func (f *Fixture) SeedCompetition(name string, closeAt time.Time) Competition {
	now := f.Now()
	return f.Competitions.Seed(Competition{
		Name:      name,
		OpenAt:    closeAt.Add(-30 * 24 * time.Hour),
		CloseAt:   closeAt,
		EndAt:     closeAt.Add(365 * 24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// SeedProp adds a prop as the schema owner.
func (f *Fixture) SeedProp(text string, categoryID int64, competitionID, userID *int64) Prop {
	now := f.Now()
	return f.Props.Seed(Prop{Text: text, CategoryID: categoryID, CompetitionID: competitionID, UserID: userID, CreatedAt: now, UpdatedAt: now})
}

// SeedForecast adds a forecast as the schema owner.
func (f *Fixture) SeedForecast(propID, userID int64, value float64) Forecast {
	now := f.Now()
	return f.Forecasts.Seed(Forecast{PropID: propID, UserID: userID, Forecast: value, CreatedAt: now, UpdatedAt: now})
}

// CascadeProp removes rows referencing a deleted prop, as ON DELETE CASCADE
// does regardless of policies.
func (f *Fixture) CascadeProp(propID int64) {
	f.Forecasts.RawDelete(func(fc Forecast) bool { return fc.PropID == propID })
	f.Resolutions.RawDelete(func(r Resolution) bool { return r.PropID == propID })
}

// UserView projects a users row into v_users.
func (f *Fixture) UserView(u User) views.UserRow {
	return views.UserRow{ID: u.ID, Name: u.Name, Email: u.Email, IsAdmin: u.IsAdmin, LoginID: u.LoginID, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

// VUsers evaluates v_users for the bound actor.
func (f *Fixture) VUsers() []views.UserRow {
	out := make([]views.UserRow, 0)
	for _, u := range f.Users.Select(nil) {
		out = append(out, f.UserView(u))
	}
	return out
}

func (f *Fixture) resolutionFor(propID int64) (Resolution, bool) {
	rs := f.Resolutions.Select(func(r Resolution) bool { return r.PropID == propID })
	if len(rs) == 0 {
		return Resolution{}, false
	}
	return rs[0], true
}

// PropView projects a visible prop into v_props. ok is false when an inner
// join drops the row.
func (f *Fixture) PropView(p Prop) (views.PropRow, bool) {
	cat, ok := f.Categories.Get(p.CategoryID)
	if !ok {
		return views.PropRow{}, false
	}
	row := views.PropRow{
		ID: p.ID, Text: p.Text, Notes: p.Notes, CategoryID: p.CategoryID, CategoryName: cat.Name,
		CompetitionID: p.CompetitionID, UserID: p.UserID, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
	if p.CompetitionID != nil {
		if comp, ok := f.Competitions.Get(*p.CompetitionID); ok {
			name, openAt, closeAt := comp.Name, comp.OpenAt, comp.CloseAt
			row.CompetitionName, row.CompetitionOpenAt, row.CompetitionCloseAt = &name, &openAt, &closeAt
		}
	}
	if r, ok := f.resolutionFor(p.ID); ok {
		res := r.Resolution
		row.Resolution, row.ResolutionNotes = &res, r.Notes
	}
	return row, true
}

// VProps evaluates v_props for the bound actor.
func (f *Fixture) VProps() []views.PropRow {
	out := make([]views.PropRow, 0)
	for _, p := range f.Props.Select(nil) {
		if row, ok := f.PropView(p); ok {
			out = append(out, row)
		}
	}
	return out
}

// ForecastView projects a visible forecast into v_forecasts.
func (f *Fixture) ForecastView(fc Forecast) (views.ForecastRow, bool) {
	p, ok := f.Props.Get(fc.PropID)
	if !ok {
		return views.ForecastRow{}, false
	}
	cat, ok := f.Categories.Get(p.CategoryID)
	if !ok {
		return views.ForecastRow{}, false
	}
	u, ok := f.Users.Get(fc.UserID)
	if !ok {
		return views.ForecastRow{}, false
	}
	row := views.ForecastRow{
		ID: fc.ID, PropID: fc.PropID, PropText: p.Text, CategoryID: p.CategoryID, CategoryName: cat.Name,
		CompetitionID: p.CompetitionID, PropUserID: p.UserID, UserID: fc.UserID, UserName: u.Name,
		Forecast: fc.Forecast, CreatedAt: fc.CreatedAt, UpdatedAt: fc.UpdatedAt,
	}
	if r, ok := f.resolutionFor(fc.PropID); ok {
		res := r.Resolution
		score := views.Brier(fc.Forecast, res)
		row.Resolution, row.Score = &res, &score
	}
	return row, true
}

// VForecasts evaluates v_forecasts for the bound actor.
func (f *Fixture) VForecasts() []views.ForecastRow {
	out := make([]views.ForecastRow, 0)
	for _, fc := range f.Forecasts.Select(nil) {
		if row, ok := f.ForecastView(fc); ok {
			out = append(out, row)
		}
	}
	return out
}

// SuggestionView projects a visible suggestion into v_suggested_props.
func (f *Fixture) SuggestionView(sp Suggestion) (views.SuggestedPropRow, bool) {
	u, ok := f.Users.Get(sp.UserID)
	if !ok {
		return views.SuggestedPropRow{}, false
	}
	return views.SuggestedPropRow{
		ID: sp.ID, PropText: sp.PropText, Notes: sp.Notes, UserID: sp.UserID,
		UserName: u.Name, UserEmail: u.Email, CreatedAt: sp.CreatedAt,
	}, true
}

// VSuggestedProps evaluates v_suggested_props for the bound actor.
func (f *Fixture) VSuggestedProps() []views.SuggestedPropRow {
	out := make([]views.SuggestedPropRow, 0)
	for _, sp := range f.Suggestions.Select(nil) {
		if row, ok := f.SuggestionView(sp); ok {
			out = append(out, row)
		}
	}
	return out
}
