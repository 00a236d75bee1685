package querytree

import (
	"fmt"
	"strings"
)

// String renders the live tree, one node per line, indented by depth.
func (t *Tree) String() string {
	var sb strings.Builder
	t.dump(&sb, t.Root())
	return sb.String()
}

func (t *Tree) dump(sb *strings.Builder, id NodeID) {
	n := t.Node(id)
	if n == nil {
		return
	}
	sb.WriteString(strings.Repeat("    ", n.Depth))
	sb.WriteString(n.Table.String())
	fmt.Fprintf(sb, " depth=%d %s", n.Depth, n.Step)
	if n.parent != NoNode || n.Direction != 0 {
		fmt.Fprintf(sb, " %s", n.Direction)
	}
	if len(n.Labels) > 0 {
		fmt.Fprintf(sb, " labels=%v", n.Labels)
	}
	for _, f := range n.Filters {
		fmt.Fprintf(sb, " [%s]", f)
	}
	for _, o := range n.Orderings {
		if o.Kind == OrderBySelect {
			fmt.Fprintf(sb, " order(%s.%s %s)", o.Select, o.Key, o.Order)
		} else {
			fmt.Fprintf(sb, " order(%s %s)", o.Key, o.Order)
		}
	}
	if n.Optional {
		sb.WriteString(" optional")
	}
	if n.Emit {
		sb.WriteString(" emit")
	}
	if t.IsLeaf(id) {
		sb.WriteString(" *")
	}
	sb.WriteString("\n")
	for _, c := range n.children {
		t.dump(sb, c)
	}
}
