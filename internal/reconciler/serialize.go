package reconciler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// serializer accumulates the tag-and-attribute form of a tree. It is a
// small hand-rolled builder rather than text/template: the output format is
// a fixed, narrow grammar (tag + sorted attrs + nested children) that a
// template would only obscure.
type serializer struct {
	sb    strings.Builder
	depth int
}

func (s *serializer) String() string { return s.sb.String() }

func (s *serializer) indent() {
	s.sb.WriteString(strings.Repeat("  ", s.depth))
}

func (s *serializer) writeNode(n *Node) {
	if n == nil {
		return
	}
	s.indent()
	s.sb.WriteString("<")
	s.sb.WriteString(n.Type)

	for _, k := range sortedKeys(n.Props) {
		s.sb.WriteString(" ")
		s.sb.WriteString(k)
		s.sb.WriteString("=\"")
		s.sb.WriteString(canonicalAttr(n.Props[k]))
		s.sb.WriteString("\"")
	}

	if len(n.Children) == 0 {
		s.sb.WriteString(" />\n")
		return
	}

	s.sb.WriteString(">\n")
	s.depth++
	for _, child := range n.Children {
		s.writeNode(child)
	}
	s.depth--
	s.indent()
	s.sb.WriteString("</")
	s.sb.WriteString(n.Type)
	s.sb.WriteString(">\n")
}

func sortedKeys(props Props) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// canonicalAttr converts a prop value to the canonical attribute string the
// spec requires: true/false for bools, decimal for integers, the value
// itself for strings, and a best-effort %v for anything else.
func canonicalAttr(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
