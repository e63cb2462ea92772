package catalog

import "time"

type CategoryInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

type CompetitionInput struct {
	Name               string    `json:"name" validate:"required,max=200"`
	ForecastsOpenDate  time.Time `json:"forecasts_open_date" validate:"required"`
	ForecastsCloseDate time.Time `json:"forecasts_close_date" validate:"required,gtfield=ForecastsOpenDate"`
	EndDate            time.Time `json:"end_date" validate:"required,gtefield=ForecastsCloseDate"`
}

// CompetitionPatch changes some fields of a competition.
type CompetitionPatch struct {
	Name               *string    `json:"name,omitempty"`
	ForecastsOpenDate  *time.Time `json:"forecasts_open_date,omitempty"`
	ForecastsCloseDate *time.Time `json:"forecasts_close_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
}

// Apply merges the patch over c.
func (p CompetitionPatch) Apply(c Competition) CompetitionInput {
	in := CompetitionInput{
		Name:               c.Name,
		ForecastsOpenDate:  c.ForecastsOpenDate,
		ForecastsCloseDate: c.ForecastsCloseDate,
		EndDate:            c.EndDate,
	}
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.ForecastsOpenDate != nil {
		in.ForecastsOpenDate = *p.ForecastsOpenDate
	}
	if p.ForecastsCloseDate != nil {
		in.ForecastsCloseDate = *p.ForecastsCloseDate
	}
	if p.EndDate != nil {
		in.EndDate = *p.EndDate
	}
	return in
}
