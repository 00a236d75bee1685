package querytree

import (
	"fmt"
	"strings"

	"github.com/aidanlsb/sqlgraph/internal/schema"
)

// Validate checks every live node for shapes the compiler cannot express.
// It returns the first problem found, wrapping ErrStructuralViolation or
// ErrUnsupportedPredicate.
func (t *Tree) Validate() error {
	var err error
	t.Walk(func(n *Node) {
		if err == nil {
			err = t.validateNode(n)
		}
	})
	return err
}

func (t *Tree) validateNode(n *Node) error {
	if n.Table.Kind() == schema.KindUnknown {
		return fmt.Errorf("%w: node %d: table %s is neither a vertex nor an edge table", ErrStructuralViolation, n.ID, n.Table)
	}
	if t.catalog != nil {
		if _, ok := t.catalog.Properties(n.Table); !ok {
			return fmt.Errorf("%w: node %d: unknown table %s", ErrStructuralViolation, n.ID, n.Table)
		}
	}

	if n.parent != NoNode {
		if n.Direction == schema.DirectionBoth {
			return fmt.Errorf("%w: node %d (%s): direction BOTH below the root", ErrStructuralViolation, n.ID, n.Table)
		}
		parent := t.nodes[n.parent]
		if parent.Table.Kind() == n.Table.Kind() {
			return fmt.Errorf("%w: node %d: %s step follows %s step (%s -> %s)",
				ErrStructuralViolation, n.ID, n.Table.Kind(), parent.Table.Kind(), parent.Table, n.Table)
		}
	}

	for _, l := range n.Labels {
		if l == "" || strings.Contains(l, ".") {
			return fmt.Errorf("%w: node %d: invalid label %q", ErrStructuralViolation, n.ID, l)
		}
	}

	for _, f := range n.Filters {
		if !f.Predicate.Valid() {
			return fmt.Errorf("%w: node %d: filter on %q uses %s", ErrUnsupportedPredicate, n.ID, f.Key, f.Predicate)
		}
		if f.Key == "" {
			return fmt.Errorf("%w: node %d: filter without key", ErrStructuralViolation, n.ID)
		}
		if !f.Multi() && f.Value == nil {
			return fmt.Errorf("%w: node %d: %s filter on %q has no value", ErrUnsupportedPredicate, n.ID, f.Predicate, f.Key)
		}
	}

	for _, o := range n.Orderings {
		switch o.Kind {
		case OrderByProperty:
		case OrderBySelect:
			if _, ok := t.FindLabeled(n.ID, o.Select); !ok {
				return fmt.Errorf("%w: node %d: ordering references unknown label %q", ErrStructuralViolation, n.ID, o.Select)
			}
		default:
			return fmt.Errorf("%w: node %d: ordering kind %d", ErrUnsupportedPredicate, n.ID, o.Kind)
		}
		if o.Order != Asc && o.Order != Desc {
			return fmt.Errorf("%w: node %d: order %d", ErrUnsupportedPredicate, n.ID, o.Order)
		}
	}
	return nil
}
