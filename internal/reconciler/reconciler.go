package reconciler

import (
	"fmt"
	"strconv"

	"github.com/smithers-run/smithers/internal/reactive"
)

// Reconciler holds the live tree and re-renders it against a new root
// Element on demand. The engine calls Render once per tick; because a
// render is synchronous, there is never more than one reconciliation
// in flight.
type Reconciler struct {
	bus     *reactive.Bus
	onError func(error)

	root          *Node
	pendingMounts []func()
}

// New constructs a Reconciler. bus may be nil for trees that never use
// Cursor.Subscribe (e.g. unit tests of pure structural diffing). onError
// defaults to a no-op if nil.
func New(bus *reactive.Bus, onError func(error)) *Reconciler {
	if onError == nil {
		onError = func(error) {}
	}
	return &Reconciler{bus: bus, onError: onError}
}

// Root returns the current live tree, or nil before the first Render or
// after Dispose.
func (r *Reconciler) Root() *Node { return r.root }

// Render reconciles root against the previously rendered tree, applying
// mount/unmount/effect callbacks. On error, the failure is surfaced to
// onError, the whole tree is unmounted — siblings of the failing element
// are not rendered and all previously mounted descendants are torn down —
// and the error is also returned so the caller can decide whether to keep
// the engine running.
func (r *Reconciler) Render(root Element) error {
	newRoot, err := r.reconcileNode(nil, r.root, root, "root")
	if err != nil {
		r.onError(err)
		if r.root != nil {
			r.unmount(r.root)
			r.root = nil
		}
		r.pendingMounts = nil
		return err
	}
	r.root = newRoot
	r.runPendingMounts()
	return nil
}

// Dispose unmounts the entire tree. Idempotent: calling it again once the
// tree is already nil does nothing.
func (r *Reconciler) Dispose() {
	if r.root == nil {
		return
	}
	r.unmount(r.root)
	r.root = nil
}

func (r *Reconciler) runPendingMounts() {
	mounts := r.pendingMounts
	r.pendingMounts = nil
	for _, fn := range mounts {
		fn()
	}
}

// reconcileNode is the single entry point for turning one Element (plus
// whatever Node previously occupied its slot) into the Node that should
// now occupy that slot.
func (r *Reconciler) reconcileNode(parent *Node, prev *Node, el Element, positionalKey string) (*Node, error) {
	if el.Type == "" && el.Component == nil {
		if prev != nil {
			r.unmount(prev)
		}
		return nil, nil
	}

	id := el.identity(positionalKey)
	var node *Node
	if prev != nil && prev.Type == id.typ && prev.Key == id.key {
		node = prev
	} else {
		if prev != nil {
			r.unmount(prev)
		}
		node = &Node{Type: el.Type, Key: id.key, Parent: parent, component: el.Component}
	}
	node.Props = el.Props

	if el.Component != nil {
		child, err := r.callComponent(node, el.Component, el.Props)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", describeNode(node), err)
		}
		var prevChild *Node
		if len(node.Children) == 1 {
			prevChild = node.Children[0]
		}
		childNode, err := r.reconcileNode(node, prevChild, child, "0")
		if err != nil {
			return nil, err
		}
		if childNode != nil {
			node.Children = []*Node{childNode}
		} else {
			node.Children = nil
		}
		return node, nil
	}

	children, err := r.diffChildren(node, node.Children, el.Children)
	if err != nil {
		return nil, err
	}
	node.Children = children
	return node, nil
}

// callComponent invokes a Component, converting a panic into an error so a
// single misbehaving element cannot take down the whole engine process —
// render-time failures still surface through the normal onError path.
func (r *Reconciler) callComponent(node *Node, comp Component, props Props) (child Element, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	cursor := &Cursor{node: node, rec: r}
	return comp(cursor, props)
}

// diffChildren matches old children to new elements by (type, key):
// explicit keys match regardless of position; unkeyed elements match by
// position. Anything left unmatched in prevChildren is unmounted.
func (r *Reconciler) diffChildren(parent *Node, prevChildren []*Node, elements []Element) ([]*Node, error) {
	prevByID := make(map[identity]*Node, len(prevChildren))
	order := make([]identity, 0, len(prevChildren))
	for _, n := range prevChildren {
		id := identity{typ: n.Type, key: n.Key}
		prevByID[id] = n
		order = append(order, id)
	}

	used := make(map[identity]bool, len(prevChildren))
	newChildren := make([]*Node, 0, len(elements))
	for i, el := range elements {
		positionalKey := strconv.Itoa(i)
		id := el.identity(positionalKey)
		prev := prevByID[id]
		if prev != nil {
			used[id] = true
		}
		child, err := r.reconcileNode(parent, prev, el, positionalKey)
		if err != nil {
			return nil, err
		}
		if child != nil {
			newChildren = append(newChildren, child)
		}
	}

	for _, id := range order {
		if !used[id] {
			r.unmount(prevByID[id])
		}
	}
	return newChildren, nil
}

// unmount tears down a Node and its whole subtree: descendants first, then
// this Node's own unmount effects in reverse declaration order, then its
// subscriptions are closed so the Reactive Layer stops tracking them.
func (r *Reconciler) unmount(n *Node) {
	if n == nil {
		return
	}
	for _, child := range n.Children {
		r.unmount(child)
	}
	for i := len(n.onUnmounts) - 1; i >= 0; i-- {
		n.onUnmounts[i]()
	}
	for _, sub := range n.subs {
		sub.handle.Close()
	}
}

func describeNode(n *Node) string {
	if n.Key != "" {
		return fmt.Sprintf("%s[%s]", n.Type, n.Key)
	}
	return n.Type
}
