package views

import (
	"time"

	"github.com/jackc/pgx/v5"
)

// Column lists in scan order.
const (
	UserColumns          = "id, name, email, is_admin, login_id, created_at, updated_at"
	PropColumns          = "id, text, notes, category_id, category_name, competition_id, competition_name, competition_forecasts_open_date, competition_forecasts_close_date, user_id, resolution, resolution_notes, created_at, updated_at"
	ForecastColumns      = "id, prop_id, prop_text, category_id, category_name, competition_id, prop_user_id, user_id, user_name, forecast, resolution, score, created_at, updated_at"
	SuggestedPropColumns = "id, prop_text, notes, user_id, user_name, user_email, created_at"
)

// UserRow is a row of v_users.
type UserRow struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	LoginID   *int64    `json:"login_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PropRow is a row of v_props.
type PropRow struct {
	ID                 int64      `json:"id"`
	Text               string     `json:"text"`
	Notes              *string    `json:"notes,omitempty"`
	CategoryID         int64      `json:"category_id"`
	CategoryName       string     `json:"category_name"`
	CompetitionID      *int64     `json:"competition_id,omitempty"`
	CompetitionName    *string    `json:"competition_name,omitempty"`
	CompetitionOpenAt  *time.Time `json:"competition_forecasts_open_date,omitempty"`
	CompetitionCloseAt *time.Time `json:"competition_forecasts_close_date,omitempty"`
	UserID             *int64     `json:"user_id,omitempty"`
	Resolution         *bool      `json:"resolution,omitempty"`
	ResolutionNotes    *string    `json:"resolution_notes,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Resolved reports whether the prop has an outcome.
func (p PropRow) Resolved() bool { return p.Resolution != nil }

// ForecastRow is a row of v_forecasts. Score is set once the prop resolves.
type ForecastRow struct {
	ID            int64     `json:"id"`
	PropID        int64     `json:"prop_id"`
	PropText      string    `json:"prop_text"`
	CategoryID    int64     `json:"category_id"`
	CategoryName  string    `json:"category_name"`
	CompetitionID *int64    `json:"competition_id,omitempty"`
	PropUserID    *int64    `json:"prop_user_id,omitempty"`
	UserID        int64     `json:"user_id"`
	UserName      string    `json:"user_name"`
	Forecast      float64   `json:"forecast"`
	Resolution    *bool     `json:"resolution,omitempty"`
	Score         *float64  `json:"score,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SuggestedPropRow is a row of v_suggested_props.
type SuggestedPropRow struct {
	ID        int64     `json:"id"`
	PropText  string    `json:"prop_text"`
	Notes     *string   `json:"notes,omitempty"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	CreatedAt time.Time `json:"created_at"`
}

func ScanUser(row pgx.Row) (UserRow, error) {
	var u UserRow
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.LoginID, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func ScanProp(row pgx.Row) (PropRow, error) {
	var p PropRow
	err := row.Scan(&p.ID, &p.Text, &p.Notes, &p.CategoryID, &p.CategoryName, &p.CompetitionID,
		&p.CompetitionName, &p.CompetitionOpenAt, &p.CompetitionCloseAt, &p.UserID, &p.Resolution, &p.ResolutionNotes,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func ScanForecast(row pgx.Row) (ForecastRow, error) {
	var f ForecastRow
	err := row.Scan(&f.ID, &f.PropID, &f.PropText, &f.CategoryID, &f.CategoryName, &f.CompetitionID,
		&f.PropUserID, &f.UserID, &f.UserName, &f.Forecast, &f.Resolution, &f.Score,
		&f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func ScanSuggestedProp(row pgx.Row) (SuggestedPropRow, error) {
	var s SuggestedPropRow
	err := row.Scan(&s.ID, &s.PropText, &s.Notes, &s.UserID, &s.UserName, &s.UserEmail, &s.CreatedAt)
	return s, err
}

// CollectRows drains rows with scan. It closes rows.
func CollectRows[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
