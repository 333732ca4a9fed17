package reconciler

// Node is the reconciler's live, persistent counterpart to an Element: it
// survives across renders so local state, refs, and effects attached to it
// are preserved as long as its (type, key) identity keeps matching.
type Node struct {
	Type     string
	Key      string
	Props    Props
	Children []*Node
	Parent   *Node

	component Component
	mounted   bool

	hooks      []hookSlot
	subs       []*subscriptionBinding
	onUnmounts []func()
}

// hookSlot stores one local-state or ref-cell value, indexed by call order
// within a single component's render — the same slot-cursor discipline
// React hooks use, which is why hook calls must happen unconditionally and
// in the same order every render.
type hookSlot struct {
	value   any
	isRef   bool
	changed any // last dependency slice observed by an OnChange hook
	ran     bool
}

// ToSerializedForm renders the tree to the tag-and-attribute form used for
// inspection and golden tests. Attribute values are converted to their
// canonical string form (true/false, decimal integers).
func (n *Node) ToSerializedForm() string {
	var b serializer
	b.writeNode(n)
	return b.String()
}
