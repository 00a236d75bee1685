// Package querytree models a graph traversal as a tree of steps over schema
// tables. Each root-to-leaf path is later compiled into SQL.
package querytree

import (
	"sort"

	"github.com/aidanlsb/sqlgraph/internal/schema"
)

// NodeID addresses a node in the tree's arena.
type NodeID int

// NoNode is the parent of the root.
const NoNode NodeID = -1

// StepKind is the kind of traversal step that produced a node.
type StepKind int

const (
	// StepGraph starts from every element of the root table.
	StepGraph StepKind = iota
	// StepVertex moves from a vertex over edges.
	StepVertex
	// StepEdgeVertex moves from an edge to one of its vertices.
	StepEdgeVertex
)

func (s StepKind) String() string {
	switch s {
	case StepGraph:
		return "graph"
	case StepVertex:
		return "vertex"
	case StepEdgeVertex:
		return "edgeVertex"
	}
	return "unknown"
}

// ElementKind is the element kind a step asks for.
type ElementKind int

const (
	ElementVertex ElementKind = iota
	ElementEdge
)

func (e ElementKind) matches(st schema.SchemaTable) bool {
	switch e {
	case ElementVertex:
		return st.IsVertex()
	case ElementEdge:
		return st.IsEdge()
	}
	return false
}

// Node is one step of the traversal bound to one table.
type Node struct {
	ID        NodeID
	Table     schema.SchemaTable
	Depth     int
	Direction schema.Direction
	Step      StepKind
	Filters   []Filter
	Orderings []Ordering
	Labels    []string
	Optional  bool
	Emit      bool

	parent   NodeID
	children []NodeID
	removed  bool
}

// Parent returns the parent node, or NoNode for the root.
func (n *Node) Parent() NodeID { return n.parent }

// HasLabel reports whether the step carries label.
func (n *Node) HasLabel(label string) bool {
	i := sort.SearchStrings(n.Labels, label)
	return i < len(n.Labels) && n.Labels[i] == label
}

// Labeled reports whether the step carries any label.
func (n *Node) Labeled() bool { return len(n.Labels) > 0 }

// RootSpec describes the start step of a traversal.
type RootSpec struct {
	Table     schema.SchemaTable
	Step      StepKind
	Direction schema.Direction
	StartID   any
	Filters   []Filter
	Orderings []Ordering
	Labels    []string
}

// ChildSpec describes a step appended below an existing node.
type ChildSpec struct {
	Table          schema.SchemaTable
	Direction      schema.Direction
	Element        ElementKind
	EdgeVertexStep bool
	Filters        []Filter
	Orderings      []Ordering
	Labels         []string
	Optional       bool
	Emit           bool
}

// Tree is an arena of nodes rooted at node 0.
type Tree struct {
	catalog     schema.Catalog
	nodes       []*Node
	leaves      []NodeID
	startID     any
	rootInvalid bool
}

// New creates a tree holding only its root.
func New(catalog schema.Catalog, spec RootSpec) *Tree {
	root := &Node{
		ID:        0,
		Table:     spec.Table,
		Direction: spec.Direction,
		Step:      spec.Step,
		Filters:   append([]Filter(nil), spec.Filters...),
		Orderings: append([]Ordering(nil), spec.Orderings...),
		Labels:    sortedLabels(spec.Labels),
		parent:    NoNode,
	}
	t := &Tree{
		catalog: catalog,
		nodes:   []*Node{root},
		leaves:  []NodeID{0},
	}
	if spec.Step != StepGraph {
		t.startID = spec.StartID
	}
	return t
}

// AddChild appends a child below parent and returns its id. The child always
// joins the tree; its filters and orderings are kept only when the requested
// element kind matches the kind of its table.
func (t *Tree) AddChild(parent NodeID, spec ChildSpec) NodeID {
	p := t.nodes[parent]
	step := StepVertex
	if spec.EdgeVertexStep {
		step = StepEdgeVertex
	}
	child := &Node{
		ID:        NodeID(len(t.nodes)),
		Table:     spec.Table,
		Depth:     p.Depth + 1,
		Direction: spec.Direction,
		Step:      step,
		Labels:    sortedLabels(spec.Labels),
		Optional:  spec.Optional,
		Emit:      spec.Emit,
		parent:    parent,
	}
	if spec.Element.matches(spec.Table) {
		child.Filters = append([]Filter(nil), spec.Filters...)
		child.Orderings = append([]Ordering(nil), spec.Orderings...)
	}
	t.nodes = append(t.nodes, child)
	p.children = append(p.children, child.ID)

	t.leaves = removeID(t.leaves, parent)
	t.leaves = append(t.leaves, child.ID)
	return child.ID
}

// Root returns the root id.
func (t *Tree) Root() NodeID { return 0 }

// Node returns a live node, or nil when id is unknown or removed.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) || t.nodes[id].removed {
		return nil
	}
	return t.nodes[id]
}

// Children returns the live children of id in insertion order.
func (t *Tree) Children(id NodeID) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	out := make([]NodeID, 0, len(n.children))
	for _, c := range n.children {
		if !t.nodes[c].removed {
			out = append(out, c)
		}
	}
	return out
}

// Catalog returns the schema the tree was built against.
func (t *Tree) Catalog() schema.Catalog { return t.catalog }

// StartID returns the identity the traversal starts from, when the root is
// not a graph step.
func (t *Tree) StartID() (any, bool) {
	return t.startID, t.startID != nil
}

// Leaves returns the current leaf set.
func (t *Tree) Leaves() []NodeID {
	return append([]NodeID(nil), t.leaves...)
}

// IsLeaf reports whether id is in the leaf set.
func (t *Tree) IsLeaf(id NodeID) bool {
	for _, l := range t.leaves {
		if l == id {
			return true
		}
	}
	return false
}

// Walk visits live nodes breadth-first.
func (t *Tree) Walk(fn func(*Node)) {
	queue := []NodeID{0}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n := t.Node(id)
		if n == nil {
			continue
		}
		fn(n)
		queue = append(queue, n.children...)
	}
}

// Depth is the greatest depth of any live node.
func (t *Tree) Depth() int {
	max := 0
	t.Walk(func(n *Node) {
		if n.Depth > max {
			max = n.Depth
		}
	})
	return max
}

// NumberOfNodes counts live nodes.
func (t *Tree) NumberOfNodes() int {
	count := 0
	t.Walk(func(*Node) { count++ })
	return count
}

// LabeledSteps returns live labeled nodes breadth-first.
func (t *Tree) LabeledSteps() []NodeID {
	var out []NodeID
	t.Walk(func(n *Node) {
		if n.Labeled() {
			out = append(out, n.ID)
		}
	})
	return out
}

// FindLabeled walks up from id (inclusive) to the first step carrying label.
func (t *Tree) FindLabeled(id NodeID, label string) (NodeID, bool) {
	for cur := id; cur != NoNode; cur = t.nodes[cur].parent {
		if t.nodes[cur].HasLabel(label) {
			return cur, true
		}
	}
	return NoNode, false
}

// remove detaches id and every now-childless ancestor below the root. Emit
// steps stand on their own and stop the cascade.
func (t *Tree) remove(id NodeID) {
	for id != NoNode {
		n := t.nodes[id]
		if id == 0 {
			return
		}
		t.markRemoved(id)
		parent := n.parent
		if parent == 0 || t.nodes[parent].Emit || len(t.Children(parent)) > 0 {
			return
		}
		id = parent
	}
}

func (t *Tree) markRemoved(id NodeID) {
	n := t.nodes[id]
	n.removed = true
	t.leaves = removeID(t.leaves, id)
	for _, c := range n.children {
		if !t.nodes[c].removed {
			t.markRemoved(c)
		}
	}
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func sortedLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	out := append([]string(nil), labels...)
	sort.Strings(out)
	j := 0
	for i, l := range out {
		if i == 0 || l != out[j-1] {
			out[j] = l
			j++
		}
	}
	return out[:j]
}
