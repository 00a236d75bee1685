package querytree

import "github.com/aidanlsb/sqlgraph/internal/schema"

// Path is one root-to-node chain. Nodes runs from the root's child to the
// projected node; the root supplies the FROM table. An empty Nodes projects
// the root itself.
type Path struct {
	Root  NodeID
	Nodes []NodeID
}

// Leaf returns the projected node.
func (p Path) Leaf() NodeID {
	if len(p.Nodes) == 0 {
		return p.Root
	}
	return p.Nodes[len(p.Nodes)-1]
}

// All returns the root followed by Nodes.
func (p Path) All() []NodeID {
	return append([]NodeID{p.Root}, p.Nodes...)
}

// OptionalPath projects node Path.Leaf() for the rows where none of the
// optional Branches has a first step.
type OptionalPath struct {
	Path     Path
	Branches []NodeID
}

// PathTo builds the path from the root down to id.
func (t *Tree) PathTo(id NodeID) Path {
	var rev []NodeID
	for cur := id; cur != t.Root(); cur = t.nodes[cur].parent {
		rev = append(rev, cur)
	}
	nodes := make([]NodeID, len(rev))
	for i, id := range rev {
		nodes[len(rev)-1-i] = id
	}
	return Path{Root: t.Root(), Nodes: nodes}
}

// ExtractDistinctPaths returns one path per leaf in leaf order.
func (t *Tree) ExtractDistinctPaths() []Path {
	if t.rootInvalid {
		return nil
	}
	paths := make([]Path, 0, len(t.leaves))
	for _, leaf := range t.leaves {
		paths = append(paths, t.PathTo(leaf))
	}
	return paths
}

// OptionalPaths returns, for every node with live optional children, the
// path to that node and the optional children, breadth-first.
func (t *Tree) OptionalPaths() []OptionalPath {
	if t.rootInvalid {
		return nil
	}
	var out []OptionalPath
	t.Walk(func(n *Node) {
		var branches []NodeID
		for _, c := range t.Children(n.ID) {
			if t.nodes[c].Optional {
				branches = append(branches, c)
			}
		}
		if len(branches) > 0 {
			out = append(out, OptionalPath{Path: t.PathTo(n.ID), Branches: branches})
		}
	})
	return out
}

// EmitPaths returns the path to every emit step that is not already a leaf,
// breadth-first.
func (t *Tree) EmitPaths() []Path {
	if t.rootInvalid {
		return nil
	}
	var out []Path
	t.Walk(func(n *Node) {
		if n.Emit && !t.IsLeaf(n.ID) {
			out = append(out, t.PathTo(n.ID))
		}
	})
	return out
}

// Tables returns the table of every node of p, root excluded.
func (t *Tree) Tables(p Path) []schema.SchemaTable {
	out := make([]schema.SchemaTable, len(p.Nodes))
	for i, id := range p.Nodes {
		out[i] = t.nodes[id].Table
	}
	return out
}

// HasDuplicateTables reports whether a table repeats among p.Nodes.
func (t *Tree) HasDuplicateTables(p Path) bool {
	return len(t.Segments(p)) > 1
}

// Segments splits p.Nodes into maximal runs with no repeated table. Scanning
// left to right, a new run starts at the first node whose table already
// occurs in the current run. A path without repeats yields one segment.
func (t *Tree) Segments(p Path) [][]NodeID {
	if len(p.Nodes) == 0 {
		return [][]NodeID{nil}
	}
	var (
		segments [][]NodeID
		current  []NodeID
		seen     = make(map[schema.SchemaTable]bool)
	)
	for _, id := range p.Nodes {
		st := t.nodes[id].Table
		if seen[st] {
			segments = append(segments, current)
			current = nil
			seen = make(map[schema.SchemaTable]bool)
		}
		current = append(current, id)
		seen[st] = true
	}
	return append(segments, current)
}
