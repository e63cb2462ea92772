package rbac

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/forecast-tournament/forecast/internal/action"
	"github.com/forecast-tournament/forecast/internal/shared"
)

// ErrFieldNotAllowed is returned when an actor sets a field outside its
// allow-list.
var ErrFieldNotAllowed = errors.New("rbac: field not allowed")

// FieldPolicy lists the fields each role may set on a record. Admin fields
// extend the user fields.
type FieldPolicy struct {
	User  []string
	Admin []string
}

// NewFieldPolicy normalises both lists.
func NewFieldPolicy(user, admin []string) FieldPolicy {
	return FieldPolicy{User: normalizeFields(user), Admin: normalizeFields(admin)}
}

// Allowed returns the fields actor may set.
func (p FieldPolicy) Allowed(actor *shared.Actor) []string {
	if actor == nil {
		return nil
	}
	switch actor.Role {
	case shared.RoleAdmin:
		return normalizeFields(append(slices.Clone(p.User), p.Admin...))
	case shared.RoleUser:
		return slices.Clone(p.User)
	default:
		return nil
	}
}

// CheckFields rejects any field outside the actor's allow-list, naming the
// offending fields in sorted order.
func (p FieldPolicy) CheckFields(actor *shared.Actor, fields []string) error {
	if denied := p.denied(actor, fields); len(denied) > 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotAllowed, strings.Join(denied, ", "))
	}
	return nil
}

// CheckFieldsResult is CheckFields expressed as a validation result.
func CheckFieldsResult[T any](p FieldPolicy, actor *shared.Actor, fields []string) (action.Result[T], bool) {
	if denied := p.denied(actor, fields); len(denied) > 0 {
		return action.Invalid[T]("field not allowed: " + strings.Join(denied, ", ")), false
	}
	return action.Result[T]{}, true
}

func (p FieldPolicy) denied(actor *shared.Actor, fields []string) []string {
	allowed := p.Allowed(actor)
	var denied []string
	for _, f := range normalizeFields(fields) {
		if !slices.Contains(allowed, f) {
			denied = append(denied, f)
		}
	}
	return denied
}

func normalizeFields(fields []string) []string {
	unique := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(strings.ToLower(f))
		if f == "" {
			continue
		}
		unique[f] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for f := range unique {
		normalized = append(normalized, f)
	}
	slices.Sort(normalized)
	return normalized
}
