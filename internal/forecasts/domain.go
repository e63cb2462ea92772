// Package forecasts records each user's probability for a prop. A forecast
// always belongs to the user who made it; the row policies hide it from
// everyone else except administrators.
package forecasts

import (
	"time"

	"github.com/forecast-tournament/forecast/internal/views"
)

// Forecast is the read shape of a forecast, scored once its prop resolves.
type Forecast = views.ForecastRow

// MaxBatch bounds CreateBatch.
const MaxBatch = 100

// CreateInput is one new forecast for the caller.
type CreateInput struct {
	PropID   int64   `json:"prop_id" validate:"required,gt=0"`
	Forecast float64 `json:"forecast" validate:"gte=0,lte=1"`
}

// UpdateInput changes the probability of a forecast.
type UpdateInput struct {
	Forecast float64 `json:"forecast" validate:"gte=0,lte=1"`
}

// Filter narrows List. Nil fields do not filter.
type Filter struct {
	UserID *int64
	PropID *int64
}

// Match applies the filter to one forecast.
func (f Filter) Match(fc Forecast) bool {
	if f.UserID != nil && fc.UserID != *f.UserID {
		return false
	}
	if f.PropID != nil && fc.PropID != *f.PropID {
		return false
	}
	return true
}

// closedReason explains why prop does not take forecasts at now, or
// returns "" when it does. A competition window is open <= now < close.
func closedReason(prop views.PropRow, now time.Time) string {
	switch {
	case prop.Resolved():
		return "prop is already resolved"
	case prop.CompetitionOpenAt != nil && now.Before(*prop.CompetitionOpenAt):
		return "forecasts for this competition are not open yet"
	case prop.CompetitionCloseAt != nil && !now.Before(*prop.CompetitionCloseAt):
		return "forecasts for this competition are closed"
	default:
		return ""
	}
}
