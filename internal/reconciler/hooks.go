package reconciler

import (
	"reflect"

	"github.com/smithers-run/smithers/internal/reactive"
)

// Cursor is handed to a Component on every call; its hook methods must be
// called unconditionally and in the same order every render, the same
// slot-cursor discipline React hooks use, since slot identity is purely
// positional (the Nth hook call this render binds to the Nth hookSlot).
type Cursor struct {
	node *Node
	idx  int
	rec  *Reconciler
}

func (c *Cursor) nextSlotIndex() int {
	idx := c.idx
	c.idx++
	for len(c.node.hooks) <= idx {
		c.node.hooks = append(c.node.hooks, hookSlot{})
	}
	return idx
}

// State returns a local-state cell's current value and a setter. A write
// takes effect from the next render onward; it does not itself force a
// render (the engine re-renders once per tick regardless).
func (c *Cursor) State(initial any) (any, func(any)) {
	idx := c.nextSlotIndex()
	node := c.node
	if !node.hooks[idx].ran {
		node.hooks[idx].value = initial
		node.hooks[idx].ran = true
	}
	return node.hooks[idx].value, func(v any) { node.hooks[idx].value = v }
}

// RefCell is a mutable box returned by Cursor.Ref.
type RefCell struct{ value any }

func (r *RefCell) Get() any   { return r.value }
func (r *RefCell) Set(v any)  { r.value = v }

// Ref behaves like State but its identity (the *RefCell pointer) is what's
// preserved across renders, not a render-triggering value — writing
// through it never implies a re-render.
func (c *Cursor) Ref(initial any) *RefCell {
	idx := c.nextSlotIndex()
	node := c.node
	if !node.hooks[idx].ran {
		node.hooks[idx].value = &RefCell{value: initial}
		node.hooks[idx].ran = true
	}
	return node.hooks[idx].value.(*RefCell)
}

// OnMount registers fn to run exactly once, the first time this Node's
// component renders. Mount effects run in declaration order once the
// current render pass completes.
func (c *Cursor) OnMount(fn func()) {
	idx := c.nextSlotIndex()
	node := c.node
	if node.hooks[idx].ran {
		return
	}
	node.hooks[idx].ran = true
	c.rec.pendingMounts = append(c.rec.pendingMounts, fn)
}

// OnUnmount registers fn to run when this Node is removed from the tree.
// Unlike State/OnMount, calls accumulate rather than reusing one slot: a
// component may register several independent cleanups in one render.
func (c *Cursor) OnUnmount(fn func()) {
	c.node.onUnmounts = append(c.node.onUnmounts, fn)
}

// OnChange runs fn the first time it is called and again whenever deps no
// longer deep-equals the deps from the previous render.
func (c *Cursor) OnChange(deps []any, fn func()) {
	idx := c.nextSlotIndex()
	node := c.node
	if node.hooks[idx].ran && reflect.DeepEqual(node.hooks[idx].changed, deps) {
		return
	}
	node.hooks[idx].ran = true
	node.hooks[idx].changed = deps
	fn()
}

// subscriptionBinding ties a Reactive Layer Handle to the Node that
// subscribed, so unmount can close it.
type subscriptionBinding struct {
	id     string
	handle *reactive.Handle[any]
}

// Subscribe binds this Node to a Reactive Layer subscription. The bus call
// happens once, at first render; every later render just reads the
// handle's latest Result, which the engine's per-tick Bus.Flush has
// already refreshed before Render is called again.
func (c *Cursor) Subscribe(id string, tables []string, query func() (any, error)) (any, bool) {
	idx := c.nextSlotIndex()
	node := c.node
	if !node.hooks[idx].ran {
		h := reactive.Subscribe(c.rec.bus, id, tables, query)
		node.hooks[idx].value = h
		node.hooks[idx].ran = true
		node.subs = append(node.subs, &subscriptionBinding{id: id, handle: h})
	}
	h := node.hooks[idx].value.(*reactive.Handle[any])
	return h.Result()
}
