// Package elements implements the scheduling and leaf primitives a workflow
// tree is built from: the iteration driver, phase and step schedulers, the
// human-approval gate, and the external-executor leaves (Command, Agent,
// Snapshot, Commit).
package elements

import (
	"github.com/smithers-run/smithers/internal/reactive"
	"github.com/smithers-run/smithers/internal/scope"
)

// Ctx is the ambient context every element constructor closes over: the
// Reactive Layer, the current Execution Scope, the owning execution id, and
// the iteration of the nearest enclosing While. Elements never reach for
// global state, only what Ctx hands them.
type Ctx struct {
	Store     *reactive.Store
	Scope     scope.Scope
	ExecID    string
	Iteration int
	// InPhase is true while rendering inside an active Phase's subtree, so
	// a second Phase mounted underneath it can be rejected instead of
	// silently sharing the single currentPhaseIndex cursor.
	InPhase bool
}

// WithScope returns a copy of c scoped to s, used when an element renders
// children inside a freshly allocated or disabled Execution Scope.
func (c Ctx) WithScope(s scope.Scope) Ctx {
	c.Scope = s
	return c
}

// WithIteration returns a copy of c bound to a different loop iteration,
// used by While when rendering its children for iteration N.
func (c Ctx) WithIteration(i int) Ctx {
	c.Iteration = i
	return c
}

// WithinPhase returns a copy of c marked as being inside an active Phase's
// subtree, used when rendering that Phase's own children.
func (c Ctx) WithinPhase() Ctx {
	c.InPhase = true
	return c
}
