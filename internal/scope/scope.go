// Package scope implements the Execution Scope: a small propagating value
// that gates side effects in inactive subtrees and namespaces spawned
// tasks. The engine renders on a single logical thread, so the scope needed
// by any render call is always available as an ordinary parameter on the
// call stack — there is no global or goroutine-local scope store.
package scope

import "github.com/google/uuid"

// Scope is `{enabled, scopeId}` threaded through the reconciler exactly
// like context.Context is threaded through a call chain: each element
// passes its children either its own scope unchanged or a derived one.
type Scope struct {
	Enabled bool
	ScopeID uuid.UUID
}

// Root returns the enabled top-level scope a fresh render starts from.
func Root() Scope {
	return Scope{Enabled: true, ScopeID: uuid.New()}
}

// Disabled returns a copy of s with Enabled forced false, so side-effecting
// elements rendered under it do nothing (Human's probe render uses it).
func (s Scope) Disabled() Scope {
	s.Enabled = false
	return s
}

// WithNewScope returns the scope a Step passes to its own children: a fresh ScopeID so task counts for
// this activation can be isolated from sibling activations, inheriting
// Enabled from the parent so a scope can never re-enable itself inside an
// already-disabled ancestor.
func (s Scope) WithNewScope() Scope {
	return Scope{Enabled: s.Enabled, ScopeID: uuid.New()}
}

// CanExecute implements the render guard every scheduling element applies
// before rendering side-effecting children: scope.enabled && isActive &&
// !hasError && !hasCompleted.
func (s Scope) CanExecute(isActive, hasError, hasCompleted bool) bool {
	return s.Enabled && isActive && !hasError && !hasCompleted
}

// IsZero reports whether s is the zero Scope (no scope has been assigned
// yet), distinguishing "never rendered" from "rendered but disabled".
func (s Scope) IsZero() bool {
	return !s.Enabled && s.ScopeID == uuid.Nil
}
