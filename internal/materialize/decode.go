package materialize

import (
	"fmt"
	"strconv"

	"github.com/aidanlsb/sqlgraph/internal/alias"
	"github.com/aidanlsb/sqlgraph/internal/schema"
	"github.com/aidanlsb/sqlgraph/internal/sqlgen"
)

// decoder maps the columns of one result set back to logical columns.
type decoder struct {
	cat     schema.Catalog
	mode    sqlgen.Mode
	columns []alias.Column
	skip    []bool
}

func newDecoder(cat schema.Catalog, reg *alias.Registry, mode sqlgen.Mode, names []string) (*decoder, error) {
	d := &decoder{
		cat:     cat,
		mode:    mode,
		columns: make([]alias.Column, len(names)),
		skip:    make([]bool, len(names)),
	}
	for i, name := range names {
		col, ok := reg.Column(name)
		if !ok {
			return nil, fmt.Errorf("result column %q has no registered alias", name)
		}
		d.columns[i] = col
		d.skip[i] = col.IsHidden()
	}
	return d, nil
}

// group collects the columns of one table occurrence within a row.
type group struct {
	labels string
	table  schema.SchemaTable
	values map[string]any
}

// decode turns one scanned row into a result. ok is false when the row has
// no projected element (its leaf identity is NULL).
func (d *decoder) decode(values []any) (Result, bool, error) {
	var (
		order  []*group
		byKey  = make(map[string]*group)
		occurs = make(map[string]int)
	)
	for i, col := range d.columns {
		if d.skip[i] {
			continue
		}
		// The same logical column repeats when a split path re-projects it;
		// each repeat belongs to the next occurrence of its table.
		k := col.Key()
		n := occurs[k]
		occurs[k]++

		gk := col.Labels + "\x00" + col.Table.String() + "\x00" + strconv.Itoa(n)
		g, ok := byKey[gk]
		if !ok {
			g = &group{labels: col.Labels, table: col.Table, values: make(map[string]any)}
			byKey[gk] = g
			order = append(order, g)
		}
		g.values[col.Name] = normalize(values[i])
	}

	var res Result
	res.Mode = d.mode
	for _, g := range order {
		el, err := d.element(g)
		if err != nil {
			return Result{}, false, err
		}
		if el == nil {
			continue
		}
		if g.labels == "" {
			if res.Element == nil {
				res.Element = el
			}
			continue
		}
		if res.Labeled == nil {
			res.Labeled = make(map[string][]*Element)
		}
		for _, l := range (alias.Column{Labels: g.labels}).LabelSet() {
			res.Labeled[l] = append(res.Labeled[l], el)
		}
	}
	if res.Element == nil {
		return Result{}, false, nil
	}
	return res, true, nil
}

// element builds the element of one group, or nil when its identity is NULL.
func (d *decoder) element(g *group) (*Element, error) {
	rawID := g.values[schema.IDColumn]
	if rawID == nil {
		return nil, nil
	}
	id, err := toInt64(rawID)
	if err != nil {
		return nil, fmt.Errorf("%s identity: %w", g.table, err)
	}
	el := &Element{Table: g.table, ID: id, Properties: make(map[string]any)}

	props, _ := d.cat.Properties(g.table)
	for _, p := range props {
		base, ok := g.values[p.Name]
		if !ok {
			continue
		}
		pfs := p.Type.PostFixes()
		parts := make([]any, len(pfs))
		for i, pf := range pfs {
			parts[i] = g.values[p.Name+pf]
		}
		v, err := p.Type.Decode(base, parts)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", g.table, p.Name, err)
		}
		if v != nil {
			el.Properties[p.Name] = v
		}
	}

	if g.table.IsEdge() {
		for _, fk := range d.cat.ForeignKeys(g.table) {
			raw := g.values[fk.Column]
			if raw == nil {
				continue
			}
			vid, err := toInt64(raw)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", g.table, fk.Column, err)
			}
			if fk.Direction == schema.DirectionOut {
				if el.OutVertices == nil {
					el.OutVertices = make(map[schema.SchemaTable]int64)
				}
				el.OutVertices[fk.Vertex] = vid
			} else {
				if el.InVertices == nil {
					el.InVertices = make(map[schema.SchemaTable]int64)
				}
				el.InVertices[fk.Vertex] = vid
			}
		}
	}
	return el, nil
}

// normalize copies driver byte slices, which may be reused by the next scan.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("cannot use %T as an identity", v)
}
