// Package materialize executes compiled statements and turns result rows
// back into graph elements.
package materialize

import (
	"sort"

	"github.com/aidanlsb/sqlgraph/internal/schema"
	"github.com/aidanlsb/sqlgraph/internal/sqlgen"
)

// Element is one vertex or edge decoded from a result row.
type Element struct {
	Table      schema.SchemaTable `json:"table"`
	ID         int64              `json:"id"`
	Properties map[string]any     `json:"properties,omitempty"`

	// Edge endpoints, keyed by vertex table.
	OutVertices map[schema.SchemaTable]int64 `json:"out,omitempty"`
	InVertices  map[schema.SchemaTable]int64 `json:"in,omitempty"`
}

// IsEdge reports whether the element is an edge.
func (e *Element) IsEdge() bool { return e.Table.IsEdge() }

// OutVertex returns the single out vertex of an edge.
func (e *Element) OutVertex() (schema.SchemaTable, int64, bool) {
	return single(e.OutVertices)
}

// InVertex returns the single in vertex of an edge.
func (e *Element) InVertex() (schema.SchemaTable, int64, bool) {
	return single(e.InVertices)
}

func single(m map[schema.SchemaTable]int64) (schema.SchemaTable, int64, bool) {
	for st, id := range m {
		return st, id, true
	}
	return schema.SchemaTable{}, 0, false
}

// Result is one decoded row: the projected element plus the elements of the
// labeled steps on its path.
type Result struct {
	Element *Element
	Labeled map[string][]*Element
	Mode    sqlgen.Mode
}

// Labels returns the labels present in the result, sorted.
func (r Result) Labels() []string {
	out := make([]string, 0, len(r.Labeled))
	for l := range r.Labeled {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Select returns the first element labeled label.
func (r Result) Select(label string) (*Element, bool) {
	els := r.Labeled[label]
	if len(els) == 0 {
		return nil, false
	}
	return els[0], true
}
