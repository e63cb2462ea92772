package users

import (
	"github.com/forecast-tournament/forecast/internal/rbac"
	"github.com/forecast-tournament/forecast/internal/views"
)

// User is the profile shape exposed to callers.
type User = views.UserRow

// Profile fields a caller may name in an update.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldIsAdmin = "is_admin"
)

// ProfileFields lets users edit their own name and email; admins may also
// grant or revoke the admin flag.
var ProfileFields = rbac.NewFieldPolicy(
	[]string{FieldName, FieldEmail},
	[]string{FieldIsAdmin},
)

// Patch is a partial update of a users row. Nil fields are left untouched.
type Patch struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	IsAdmin *bool   `json:"is_admin,omitempty"`
}
