// Package reconciler maintains a live tree of declarative elements and
// re-renders the parts that depend on changed state, the way a React-style
// UI reconciler would, except the "UI" being reconciled is a running
// workflow: mounting a Node may start a task, spawn a command, or open a
// human-approval request rather than paint a pixel.
package reconciler

// Component is a function element: called with the hook Cursor for its
// Node and its declared props, it returns the single child element it
// expands to (or nil to render nothing). The reconciler calls it again on
// every re-render of its Node.
type Component func(c *Cursor, props Props) (Element, error)

// Props is the serializable property bag carried by an Element. Values
// should be primitives, strings, or nested Props/[]Element — anything a
// caller may later want to inspect via ToSerializedForm.
type Props map[string]any

// Element is the declarative description authored by a workflow tree: it
// names either a Component to expand or an intrinsic Type understood
// directly by the reconciler (e.g. "While", "Phase", "Step", "Command",
// "TEXT"). Key disambiguates siblings that share a Type so the differ can
// match them across renders instead of matching by position alone.
type Element struct {
	Type      string
	Key       string
	Props     Props
	Children  []Element
	Component Component
}

// Text returns the intrinsic TEXT element string children are wrapped as.
func Text(value string) Element {
	return Element{Type: "TEXT", Props: Props{"value": value}}
}

// IsFunction reports whether e expands further via a Component call rather
// than being directly materialized as a Node.
func (e Element) IsFunction() bool {
	return e.Component != nil
}

// identity is the (type, key) pair the differ matches Nodes by.
type identity struct {
	typ string
	key string
}

func (e Element) identity(positionalKey string) identity {
	key := e.Key
	if key == "" {
		key = positionalKey
	}
	return identity{typ: e.Type, key: key}
}
