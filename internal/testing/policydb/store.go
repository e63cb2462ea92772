// Package policydb is an in-memory stand-in for the policy-scoped database.
// It binds an actor per transaction, filters and checks rows with the
// declared policy set, raises the same Postgres error codes as the real
// schema and restores every table when a transaction rolls back.
package policydb

import (
	"context"
	"fmt"
	"sync"

	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/policy"
	_ "github.com/forecast-tournament/forecast/internal/testing/guard"
)

type snapshotter interface {
	snapshot() any
	restore(any)
}

// Store implements db.Runner. Transactions are serialised.
type Store struct {
	mu      sync.Mutex
	set     policy.Set
	admins  map[int64]bool
	isAdmin func(userID int64) bool
	tables  []snapshotter
	subject policy.Subject

	transactions int
	commits      int
	rollbacks    int
}

var _ db.Runner = (*Store)(nil)

// New creates a store enforcing set.
func New(set policy.Set) *Store {
	return &Store{set: set, admins: make(map[int64]bool)}
}

// SetAdmin records the is_admin flag app_is_admin() would read.
func (s *Store) SetAdmin(userID int64, admin bool) {
	s.admins[userID] = admin
}

// SetAdminLookup replaces the recorded flags with a lookup, typically over a
// users table.
func (s *Store) SetAdminLookup(fn func(userID int64) bool) {
	s.isAdmin = fn
}

// IsAdmin reports whether userID is an administrator.
func (s *Store) IsAdmin(userID int64) bool {
	if s.isAdmin != nil {
		return s.isAdmin(userID)
	}
	return s.admins[userID]
}

// Subject is the actor bound to the running transaction; outside a
// transaction it is anonymous.
func (s *Store) Subject() policy.Subject { return s.subject }

// Transactions counts RunScoped calls.
func (s *Store) Transactions() int { return s.transactions }

// Commits counts committed transactions.
func (s *Store) Commits() int { return s.commits }

// Rollbacks counts rolled back transactions.
func (s *Store) Rollbacks() int { return s.rollbacks }

// RunScoped snapshots every table, binds actorID, runs fn with a nil DBTX and
// restores the snapshot unless fn returns (true, nil).
func (s *Store) RunScoped(ctx context.Context, actorID *int64, fn db.ScopedFunc) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions++

	snaps := make([]any, len(s.tables))
	for i, t := range s.tables {
		snaps[i] = t.snapshot()
	}
	admin := false
	if actorID != nil {
		admin = s.IsAdmin(*actorID)
	}
	s.subject = policy.SubjectFor(actorID, admin)

	committed := false
	defer func() {
		s.subject = policy.Anonymous
		if committed {
			return
		}
		for i, t := range s.tables {
			t.restore(snaps[i])
		}
		s.rollbacks++
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("policydb: begin: %w", err)
	}
	commit, err := fn(ctx, nil)
	if err != nil || !commit {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("policydb: commit: %w", err)
	}
	committed = true
	s.commits++
	return nil
}
