package querytree

import "github.com/aidanlsb/sqlgraph/internal/schema"

// Prune keeps only branches that reach maxDepth. Childless nodes shallower
// than maxDepth are removed together with ancestors left childless, except
// optional and emit steps, which are projected by their own statements. The
// leaf set becomes exactly the childless nodes at maxDepth. Prune is
// idempotent.
func (t *Tree) Prune(maxDepth int) {
	var order []NodeID
	t.Walk(func(n *Node) { order = append(order, n.ID) })

	// Deepest first, so a removal is seen by the parent's check.
	for i := len(order) - 1; i > 0; i-- {
		n := t.Node(order[i])
		if n == nil || n.Optional || n.Emit {
			continue
		}
		if n.Depth < maxDepth && len(t.Children(n.ID)) == 0 {
			t.markRemoved(n.ID)
		}
	}

	t.leaves = t.leaves[:0]
	for _, id := range order {
		n := t.Node(id)
		if n != nil && n.Depth == maxDepth && len(t.Children(id)) == 0 {
			t.leaves = append(t.leaves, id)
		}
	}
}

// PruneByFilters resolves filters that can be decided from the schema alone.
// Label filters are evaluated against each node's own table and dropped when
// true. A node is removed, with its now-childless ancestors, when a label
// filter is false, when it filters on a property its table lacks, or when it
// has an empty within. It returns true when the root itself can match
// nothing. Calling it again changes nothing.
func (t *Tree) PruneByFilters() bool {
	var order []NodeID
	t.Walk(func(n *Node) { order = append(order, n.ID) })

	for _, id := range order {
		n := t.Node(id)
		if n == nil {
			continue
		}
		if !t.resolveFilters(n) {
			if id == t.Root() {
				t.rootInvalid = true
				n.Filters = nil
				continue
			}
			t.remove(id)
		}
	}
	return t.rootInvalid
}

// RootInvalidated reports whether PruneByFilters found the root unmatchable.
func (t *Tree) RootInvalidated() bool { return t.rootInvalid }

// resolveFilters rewrites n.Filters in place and reports whether n can still
// match anything.
func (t *Tree) resolveFilters(n *Node) bool {
	names := tableNames(n.Table)
	kept := n.Filters[:0]
	valid := true

	for _, f := range n.Filters {
		switch {
		case f.Key == LabelKey:
			if f.Predicate == PredWithin && len(f.Values) == 0 {
				valid = false
			} else if !f.evalLabel(names) {
				valid = false
			}
			continue
		case f.Predicate == PredWithin && len(f.Values) == 0:
			valid = false
		case f.Predicate == PredWithout && len(f.Values) == 0:
			continue
		case !f.Reserved() && t.catalog != nil && !t.catalog.HasProperty(n.Table, f.Key):
			valid = false
		}
		kept = append(kept, f)
	}
	n.Filters = kept
	return valid
}

// tableNames lists the names a ~label filter may use for st, raw label first.
func tableNames(st schema.SchemaTable) []string {
	raw := st.RawLabel()
	return []string{raw, st.Schema + "." + raw, st.Table, st.String()}
}
