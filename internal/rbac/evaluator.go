package rbac

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// EventKind classifies authentication state changes.
type EventKind int

const (
	EventSignedIn EventKind = iota
	EventSignedOut
	EventRefreshed
)

// String returns the label used for the event kind in logs.
func (k EventKind) String() string {
	switch k {
	case EventSignedIn:
		return "signed-in"
	case EventSignedOut:
		return "signed-out"
	case EventRefreshed:
		return "refreshed"
	}
	return "unknown"
}

// SessionEvent describes one authentication state change for an identity.
type SessionEvent struct {
	Kind      EventKind
	AccountID uuid.UUID
}

// Resolution is the effective outcome of resolving one identity's profile.
type Resolution struct {
	Role        Role
	Permissions PermissionSet
}

// ProfileSource resolves the effective role and permission set for an
// authenticated identity, lazily creating the backing profile if absent.
type ProfileSource interface {
	EffectiveFor(ctx context.Context, accountID uuid.UUID) (Resolution, error)
}

// State tracks evaluator progress for one identity.
type State int

const (
	// StateUnresolved means no resolution has completed yet; every
	// capability query answers false.
	StateUnresolved State = iota
	// StateResolved means a role and permission set are known.
	StateResolved
	// StateError means resolution failed; every capability query answers
	// false until a fresh authentication state change.
	StateError
)

// Evaluator computes and caches the effective permission set for the
// currently authenticated identity. It re-evaluates on every session
// event and tolerates interleaved events: each event bumps a generation
// counter and a resolution that finishes after a newer event started is
// discarded (last write wins).
type Evaluator struct {
	source ProfileSource

	mu      sync.Mutex
	gen     uint64
	state   State
	account uuid.UUID
	role    Role
	perms   PermissionSet
	err     error
}

// NewEvaluator constructs an Evaluator over the given profile source.
func NewEvaluator(source ProfileSource) *Evaluator {
	return &Evaluator{source: source, state: StateUnresolved}
}

// HandleEvent applies one authentication state change, resolving the
// profile for sign-in and refresh events and clearing state on sign-out.
func (e *Evaluator) HandleEvent(ctx context.Context, ev SessionEvent) {
	switch ev.Kind {
	case EventSignedOut:
		e.mu.Lock()
		e.gen++
		e.state = StateUnresolved
		e.account = uuid.Nil
		e.role = ""
		e.perms = nil
		e.err = nil
		e.mu.Unlock()
	case EventSignedIn, EventRefreshed:
		e.resolve(ctx, ev.AccountID)
	}
}

func (e *Evaluator) resolve(ctx context.Context, accountID uuid.UUID) {
	e.mu.Lock()
	e.gen++
	myGen := e.gen
	e.state = StateUnresolved
	e.account = accountID
	e.err = nil
	e.mu.Unlock()

	res, err := e.source.EffectiveFor(ctx, accountID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != myGen {
		// A newer event superseded this resolution.
		return
	}
	if err != nil {
		e.state = StateError
		e.role = ""
		e.perms = nil
		e.err = err
		return
	}
	e.state = StateResolved
	e.role = res.Role
	e.perms = res.Permissions.Clone()
}

// State returns the current evaluator state.
func (e *Evaluator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the resolution failure, if any.
func (e *Evaluator) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// AccountID returns the identity the evaluator currently tracks.
func (e *Evaluator) AccountID() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account
}

// Role returns the resolved role, empty unless resolved.
func (e *Evaluator) Role() Role {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateResolved {
		return ""
	}
	return e.role
}

// Permissions returns a copy of the effective permission set, nil unless
// resolved.
func (e *Evaluator) Permissions() PermissionSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateResolved {
		return nil
	}
	return e.perms.Clone()
}

// HasCapability reports whether the identity holds the capability. False
// whenever the evaluator is unresolved or errored.
func (e *Evaluator) HasCapability(c Capability) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateResolved {
		return false
	}
	return e.perms.Allows(c)
}

// HasMinimumRole reports whether the identity's role carries at least the
// privilege of min. False whenever the evaluator is unresolved or errored.
func (e *Evaluator) HasMinimumRole(min Role) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateResolved {
		return false
	}
	return e.role.AtLeast(min)
}

// IsAdministrator reports whether the resolved role is exactly
// administrator. Administrator is the top of the hierarchy, so exact
// match and minimum-role agree today; exact match is kept deliberately
// in case a higher tier is ever added.
func (e *Evaluator) IsAdministrator() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateResolved && e.role == RoleAdministrator
}
