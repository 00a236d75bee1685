// Package schema describes the relational layout of a property graph: which
// tables hold vertices and edges, their property columns, and the foreign-key
// columns that connect edges to vertices.
package schema

import (
	"fmt"
	"strings"
)

const (
	// VertexPrefix marks a table holding vertices of one label.
	VertexPrefix = "V_"
	// EdgePrefix marks a table holding edges of one label.
	EdgePrefix = "E_"

	// IDColumn is the identity column present on every element table.
	IDColumn = "ID"

	// InSuffix and OutSuffix terminate edge foreign-key column names.
	InSuffix  = "__I"
	OutSuffix = "__O"
)

// Kind is the element kind a table stores.
type Kind int

const (
	KindUnknown Kind = iota
	KindVertex
	KindEdge
)

func (k Kind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindEdge:
		return "edge"
	default:
		return "unknown"
	}
}

// SchemaTable identifies an element table. It is a comparable value and can
// be used as a map key.
type SchemaTable struct {
	Schema string
	Table  string
}

// Of builds a SchemaTable.
func Of(schema, table string) SchemaTable {
	return SchemaTable{Schema: schema, Table: table}
}

// Vertex builds the vertex table for a raw label.
func Vertex(schema, label string) SchemaTable {
	return SchemaTable{Schema: schema, Table: VertexPrefix + label}
}

// Edge builds the edge table for a raw label.
func Edge(schema, label string) SchemaTable {
	return SchemaTable{Schema: schema, Table: EdgePrefix + label}
}

// ParseTable parses "schema.table" or a bare "table". Bare names are placed in
// defaultSchema.
func ParseTable(s, defaultSchema string) (SchemaTable, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SchemaTable{}, fmt.Errorf("empty table name")
	}
	st := SchemaTable{Schema: defaultSchema, Table: s}
	if i := strings.LastIndex(s, "."); i >= 0 {
		st = SchemaTable{Schema: s[:i], Table: s[i+1:]}
	}
	if st.Schema == "" || st.Table == "" {
		return SchemaTable{}, fmt.Errorf("invalid table name %q", s)
	}
	if st.Kind() == KindUnknown {
		return SchemaTable{}, fmt.Errorf("table %q has neither %s nor %s prefix", s, VertexPrefix, EdgePrefix)
	}
	return st, nil
}

// Kind derives the element kind from the table prefix.
func (st SchemaTable) Kind() Kind {
	switch {
	case strings.HasPrefix(st.Table, VertexPrefix):
		return KindVertex
	case strings.HasPrefix(st.Table, EdgePrefix):
		return KindEdge
	default:
		return KindUnknown
	}
}

func (st SchemaTable) IsVertex() bool { return st.Kind() == KindVertex }
func (st SchemaTable) IsEdge() bool   { return st.Kind() == KindEdge }

// RawLabel returns the table name without its V_/E_ prefix.
func (st SchemaTable) RawLabel() string {
	switch st.Kind() {
	case KindVertex:
		return strings.TrimPrefix(st.Table, VertexPrefix)
	case KindEdge:
		return strings.TrimPrefix(st.Table, EdgePrefix)
	}
	return st.Table
}

// String renders "schema.table".
func (st SchemaTable) String() string {
	return st.Schema + "." + st.Table
}

// MarshalText renders st as "schema.table", also when used as a map key.
func (st SchemaTable) MarshalText() ([]byte, error) {
	return []byte(st.String()), nil
}

// IsZero reports whether st is unset.
func (st SchemaTable) IsZero() bool {
	return st.Schema == "" && st.Table == ""
}

// Direction is the traversal direction of a step.
type Direction int

const (
	DirectionOut Direction = iota
	DirectionIn
	DirectionBoth
)

func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "OUT"
	case DirectionIn:
		return "IN"
	case DirectionBoth:
		return "BOTH"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Suffix returns the foreign-key suffix for d. BOTH has no suffix.
func (d Direction) Suffix() string {
	switch d {
	case DirectionIn:
		return InSuffix
	case DirectionOut:
		return OutSuffix
	}
	return ""
}

// Opposite swaps IN and OUT. BOTH is returned unchanged.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionIn:
		return DirectionOut
	case DirectionOut:
		return DirectionIn
	}
	return d
}

// ParseDirection accepts "out", "in" and "both" in any case. An empty string
// means OUT.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "out":
		return DirectionOut, nil
	case "in":
		return DirectionIn, nil
	case "both":
		return DirectionBoth, nil
	}
	return DirectionOut, fmt.Errorf("unknown direction %q", s)
}

// ForeignKeyColumn names the edge column that references vertex in direction dir,
// e.g. "public.Person__O".
func ForeignKeyColumn(vertex SchemaTable, dir Direction) string {
	return vertex.Schema + "." + vertex.RawLabel() + dir.Suffix()
}
