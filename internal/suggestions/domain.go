// Package suggestions lets users propose props for admins to approve into
// the public catalog.
package suggestions

import "github.com/forecast-tournament/forecast/internal/views"

// Suggestion is the read shape of a suggested prop.
type Suggestion = views.SuggestedPropRow

type SuggestInput struct {
	PropText string  `json:"prop_text" validate:"required,max=500"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ApproveInput places the approved prop. Text and Notes override the
// suggestion's wording when set.
type ApproveInput struct {
	CategoryID    int64   `json:"category_id" validate:"required,gt=0"`
	CompetitionID *int64  `json:"competition_id,omitempty" validate:"omitempty,gt=0"`
	Text          *string `json:"text,omitempty" validate:"omitempty,min=1,max=500"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}
