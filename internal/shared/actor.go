package shared

import "strconv"

// Role tags the kind of actor performing a request.
type Role int

const (
	// RoleUser is a regular participant acting on their own records.
	RoleUser Role = iota + 1
	// RoleAdmin may read and write any row.
	RoleAdmin
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Actor is the authenticated identity behind a request. A nil *Actor means
// the request is anonymous.
type Actor struct {
	ID   int64
	Role Role
}

// NewActor builds an actor from an identity row.
func NewActor(id int64, isAdmin bool) *Actor {
	if isAdmin {
		return &Actor{ID: id, Role: RoleAdmin}
	}
	return &Actor{ID: id, Role: RoleUser}
}

// UserID returns the id bound to the policy session variable, or nil for an
// anonymous actor.
func (a *Actor) UserID() *int64 {
	if a == nil {
		return nil
	}
	id := a.ID
	return &id
}

// IsAdmin reports whether the actor carries the admin tag.
func (a *Actor) IsAdmin() bool {
	if a == nil {
		return false
	}
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleUser:
		return false
	default:
		return false
	}
}

// Owns reports whether the record owner equals the actor. Public records
// (nil owner) are owned by nobody.
func (a *Actor) Owns(owner *int64) bool {
	return a != nil && owner != nil && *owner == a.ID
}

// String renders the actor for logs.
func (a *Actor) String() string {
	if a == nil {
		return "anonymous"
	}
	return a.Role.String() + ":" + strconv.FormatInt(a.ID, 10)
}
