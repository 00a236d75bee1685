package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPublicSchema is used when a topology file does not name one.
const DefaultPublicSchema = "public"

// Catalog answers the schema questions the query compiler asks.
type Catalog interface {
	// Properties returns the ordered property list of a table.
	Properties(st SchemaTable) ([]Property, bool)
	// HasProperty reports whether key is a property (or the identity column)
	// of the table.
	HasProperty(st SchemaTable, key string) bool
	// ForeignKeys returns the ordered foreign-key columns of an edge table.
	ForeignKeys(st SchemaTable) []ForeignKey
	// ResolveColumn maps a physical column back to its property and postfix.
	ResolveColumn(st SchemaTable, column string) (Property, string, bool)
}

// ForeignKey is an edge column referencing a vertex table.
type ForeignKey struct {
	Column    string
	Vertex    SchemaTable
	Direction Direction
}

// Topology is the full graph schema, usually loaded from topology.yaml.
type Topology struct {
	PublicSchema string                       `yaml:"public_schema"`
	Schemas      map[string]*SchemaDefinition `yaml:"schemas"`

	tables map[SchemaTable]*tableInfo
}

// SchemaDefinition groups the vertex and edge labels of one schema.
type SchemaDefinition struct {
	Vertices map[string]*VertexDefinition `yaml:"vertices"`
	Edges    map[string]*EdgeDefinition   `yaml:"edges"`
}

// VertexDefinition declares a vertex label.
type VertexDefinition struct {
	Properties []Property `yaml:"properties"`
}

// EdgeDefinition declares an edge label and the vertex labels it connects.
// Endpoint labels may be schema-qualified ("other.Person").
type EdgeDefinition struct {
	Out        []string   `yaml:"out"`
	In         []string   `yaml:"in"`
	Properties []Property `yaml:"properties"`
}

type tableInfo struct {
	props   []Property
	fks     []ForeignKey
	columns map[string]columnRef
}

type columnRef struct {
	prop    Property
	postfix string
}

// NewTopology creates an empty topology.
func NewTopology(publicSchema string) *Topology {
	if publicSchema == "" {
		publicSchema = DefaultPublicSchema
	}
	return &Topology{
		PublicSchema: publicSchema,
		Schemas:      make(map[string]*SchemaDefinition),
		tables:       make(map[SchemaTable]*tableInfo),
	}
}

// Load reads and validates a topology file.
func Load(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse topology file %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates topology YAML.
func Parse(data []byte) (*Topology, error) {
	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t.PublicSchema == "" {
		t.PublicSchema = DefaultPublicSchema
	}
	if t.Schemas == nil {
		t.Schemas = make(map[string]*SchemaDefinition)
	}
	if err := t.index(); err != nil {
		return nil, err
	}
	return &t, nil
}

// AddVertex declares a vertex label and re-indexes the topology.
func (t *Topology) AddVertex(schemaName, label string, props ...Property) error {
	def := t.schemaDef(schemaName)
	if def.Vertices == nil {
		def.Vertices = make(map[string]*VertexDefinition)
	}
	def.Vertices[label] = &VertexDefinition{Properties: props}
	return t.index()
}

// AddEdge declares an edge label between vertex tables and re-indexes the
// topology.
func (t *Topology) AddEdge(schemaName, label string, out, in []SchemaTable, props ...Property) error {
	def := t.schemaDef(schemaName)
	if def.Edges == nil {
		def.Edges = make(map[string]*EdgeDefinition)
	}
	e := &EdgeDefinition{Properties: props}
	for _, v := range out {
		e.Out = append(e.Out, v.Schema+"."+v.RawLabel())
	}
	for _, v := range in {
		e.In = append(e.In, v.Schema+"."+v.RawLabel())
	}
	def.Edges[label] = e
	return t.index()
}

func (t *Topology) schemaDef(name string) *SchemaDefinition {
	if t.Schemas == nil {
		t.Schemas = make(map[string]*SchemaDefinition)
	}
	def, ok := t.Schemas[name]
	if !ok {
		def = &SchemaDefinition{}
		t.Schemas[name] = def
	}
	return def
}

func (t *Topology) index() error {
	tables := make(map[SchemaTable]*tableInfo)

	for schemaName, def := range t.Schemas {
		if def == nil {
			continue
		}
		for label, v := range def.Vertices {
			var props []Property
			if v != nil {
				props = v.Properties
			}
			info, err := newTableInfo(Vertex(schemaName, label), props)
			if err != nil {
				return err
			}
			tables[Vertex(schemaName, label)] = info
		}
	}

	for schemaName, def := range t.Schemas {
		if def == nil {
			continue
		}
		for label, e := range def.Edges {
			if e == nil {
				e = &EdgeDefinition{}
			}
			st := Edge(schemaName, label)
			info, err := newTableInfo(st, e.Properties)
			if err != nil {
				return err
			}
			for _, side := range []struct {
				labels []string
				dir    Direction
			}{{e.Out, DirectionOut}, {e.In, DirectionIn}} {
				for _, ref := range side.labels {
					v := t.vertexRef(ref, schemaName)
					if _, ok := tables[v]; !ok {
						return fmt.Errorf("edge %s references unknown vertex %s", st, v)
					}
					fk := ForeignKey{Column: ForeignKeyColumn(v, side.dir), Vertex: v, Direction: side.dir}
					if _, dup := info.columns[fk.Column]; dup {
						return fmt.Errorf("edge %s: duplicate column %q", st, fk.Column)
					}
					info.fks = append(info.fks, fk)
					info.columns[fk.Column] = columnRef{}
				}
			}
			tables[st] = info
		}
	}

	t.tables = tables
	return nil
}

func (t *Topology) vertexRef(ref, defaultSchema string) SchemaTable {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return Vertex(ref[:i], ref[i+1:])
	}
	return Vertex(defaultSchema, ref)
}

func newTableInfo(st SchemaTable, props []Property) (*tableInfo, error) {
	info := &tableInfo{props: props, columns: make(map[string]columnRef)}
	info.columns[IDColumn] = columnRef{}
	for _, p := range props {
		if p.Name == "" {
			return nil, fmt.Errorf("%s: property with empty name", st)
		}
		if !p.Type.Valid() {
			return nil, fmt.Errorf("%s.%s: unknown property type %q", st, p.Name, p.Type)
		}
		if p.Name == IDColumn {
			return nil, fmt.Errorf("%s: property name %q is reserved", st, IDColumn)
		}
		if _, dup := info.columns[p.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate property %q", st, p.Name)
		}
		info.columns[p.Name] = columnRef{prop: p}
		for _, pf := range p.Type.PostFixes() {
			info.columns[p.Name+pf] = columnRef{prop: p, postfix: pf}
		}
	}
	return info, nil
}

// Properties implements Catalog.
func (t *Topology) Properties(st SchemaTable) ([]Property, bool) {
	info, ok := t.tables[st]
	if !ok {
		return nil, false
	}
	return info.props, true
}

// HasProperty implements Catalog.
func (t *Topology) HasProperty(st SchemaTable, key string) bool {
	info, ok := t.tables[st]
	if !ok {
		return false
	}
	ref, ok := info.columns[key]
	return ok && ref.postfix == ""
}

// ForeignKeys implements Catalog.
func (t *Topology) ForeignKeys(st SchemaTable) []ForeignKey {
	if info, ok := t.tables[st]; ok {
		return info.fks
	}
	return nil
}

// ResolveColumn implements Catalog. The identity column and foreign keys
// resolve with a zero Property.
func (t *Topology) ResolveColumn(st SchemaTable, column string) (Property, string, bool) {
	info, ok := t.tables[st]
	if !ok {
		return Property{}, "", false
	}
	ref, ok := info.columns[column]
	return ref.prop, ref.postfix, ok
}

// HasTable reports whether st is declared.
func (t *Topology) HasTable(st SchemaTable) bool {
	_, ok := t.tables[st]
	return ok
}

// Tables returns every declared table, sorted.
func (t *Topology) Tables() []SchemaTable {
	out := make([]SchemaTable, 0, len(t.tables))
	for st := range t.tables {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Schema != out[j].Schema {
			return out[i].Schema < out[j].Schema
		}
		return out[i].Table < out[j].Table
	})
	return out
}

// Resolve parses a table reference against the public schema. A reference
// without a V_/E_ prefix is taken as a raw label, vertex first.
func (t *Topology) Resolve(ref string) (SchemaTable, error) {
	st, err := ParseTable(ref, t.PublicSchema)
	if err != nil {
		raw, perr := ParseTable(VertexPrefix+lastSegment(ref), t.PublicSchema)
		if perr != nil {
			return SchemaTable{}, err
		}
		schemaName := raw.Schema
		if i := strings.LastIndex(ref, "."); i >= 0 {
			schemaName = strings.TrimSpace(ref[:i])
		}
		label := strings.TrimPrefix(raw.Table, VertexPrefix)
		for _, cand := range []SchemaTable{Vertex(schemaName, label), Edge(schemaName, label)} {
			if t.HasTable(cand) {
				return cand, nil
			}
		}
		return SchemaTable{}, fmt.Errorf("unknown table %s", strings.TrimSpace(ref))
	}
	if !t.HasTable(st) {
		return SchemaTable{}, fmt.Errorf("unknown table %s", st)
	}
	return st, nil
}

func lastSegment(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
