// Package catalog manages the public catalog: categories and competitions.
// Everyone may read it; only administrators may change it.
package catalog

import (
	"time"

	"github.com/jackc/pgx/v5"
)

// Category groups props by topic.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Competition is a forecasting window. Forecasts on its props are accepted
// until ForecastsCloseDate.
type Competition struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	ForecastsOpenDate  time.Time `json:"forecasts_open_date"`
	ForecastsCloseDate time.Time `json:"forecasts_close_date"`
	EndDate            time.Time `json:"end_date"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// OpenAt reports whether forecasts are accepted at t.
func (c Competition) OpenAt(t time.Time) bool {
	return !t.Before(c.ForecastsOpenDate) && t.Before(c.ForecastsCloseDate)
}

const (
	categoryColumns    = "id, name"
	competitionColumns = "id, name, forecasts_open_date, forecasts_close_date, end_date, created_at, updated_at"
)

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name)
	return c, err
}

func scanCompetition(row pgx.Row) (Competition, error) {
	var c Competition
	err := row.Scan(&c.ID, &c.Name, &c.ForecastsOpenDate, &c.ForecastsCloseDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
