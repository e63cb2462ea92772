package auth

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/forecast-tournament/forecast/internal/shared"
)

// IdentityStore resolves identities. Implementations run their queries in
// policy-scoped transactions.
type IdentityStore interface {
	// ActorForLogin resolves the user behind a login without a bound actor.
	ActorForLogin(ctx context.Context, loginID int64) (*shared.Actor, error)
	// ActorForUser loads userID as seen by the actor asUserID.
	ActorForUser(ctx context.Context, asUserID, userID int64) (*shared.Actor, error)
}

// dedupedIdentities collapses concurrent lookups of the same login into one
// query.
type dedupedIdentities struct {
	IdentityStore
	group singleflight.Group
}

// Deduplicate wraps store so concurrent ActorForLogin calls share a result.
func Deduplicate(store IdentityStore) IdentityStore {
	return &dedupedIdentities{IdentityStore: store}
}

func (d *dedupedIdentities) ActorForLogin(ctx context.Context, loginID int64) (*shared.Actor, error) {
	v, err, _ := d.group.Do(strconv.FormatInt(loginID, 10), func() (any, error) {
		return d.IdentityStore.ActorForLogin(ctx, loginID)
	})
	if err != nil {
		return nil, err
	}
	actor := *v.(*shared.Actor)
	return &actor, nil
}
