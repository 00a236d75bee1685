package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aidanlsb/sqlgraph/internal/alias"
	"github.com/aidanlsb/sqlgraph/internal/querytree"
	"github.com/aidanlsb/sqlgraph/internal/schema"
)

// builder accumulates the state of one statement: bind args in textual
// order, bulk tables and the aliases projected per node.
type builder struct {
	c    *Compiler
	tree *querytree.Tree
	cat  schema.Catalog
	reg  *alias.Registry

	args []any
	bulk []BulkTable

	tableAlias map[querytree.NodeID]string
	leafAlias  map[string]string
	labelAlias map[querytree.NodeID]map[string]string
	hideAlias  map[querytree.NodeID]map[string]string

	bulkCount int
}

func newBuilder(c *Compiler, tree *querytree.Tree, reg *alias.Registry) *builder {
	return &builder{
		c:          c,
		tree:       tree,
		cat:        tree.Catalog(),
		reg:        reg,
		tableAlias: make(map[querytree.NodeID]string),
		leafAlias:  make(map[string]string),
		labelAlias: make(map[querytree.NodeID]map[string]string),
		hideAlias:  make(map[querytree.NodeID]map[string]string),
	}
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.c.dialect.Placeholder(len(b.args))
}

func (b *builder) quote(ident string) string {
	return b.c.dialect.Quote(ident)
}

func (b *builder) col(id querytree.NodeID, column string) string {
	return b.tableAlias[id] + "." + b.quote(column)
}

func (b *builder) node(id querytree.NodeID) *querytree.Node {
	return b.tree.Node(id)
}

// columns lists every physical column of st in projection order: identity,
// properties with their postfix columns, then edge foreign keys.
func (b *builder) columns(st schema.SchemaTable) ([]string, error) {
	props, ok := b.cat.Properties(st)
	if !ok {
		return nil, fmt.Errorf("%w: unknown table %s", querytree.ErrStructuralViolation, st)
	}
	cols := []string{schema.IDColumn}
	for _, p := range props {
		cols = append(cols, p.Columns()...)
	}
	if st.IsEdge() {
		for _, fk := range b.cat.ForeignKeys(st) {
			cols = append(cols, fk.Column)
		}
	}
	return cols, nil
}

// assignTableAliases names every node of the path t0, t1, ... in path order.
func (b *builder) assignTableAliases(p querytree.Path) {
	for i, id := range p.All() {
		b.tableAlias[id] = "t" + strconv.Itoa(i)
	}
}

// projectNode registers and renders the full column set of a node, either
// unlabeled (the leaf) or under its label set.
func (b *builder) projectNode(id querytree.NodeID, labeled bool) ([]string, []string, error) {
	n := b.node(id)
	cols, err := b.columns(n.Table)
	if err != nil {
		return nil, nil, err
	}
	labels := ""
	target := b.leafAlias
	if labeled {
		labels = alias.LabelPrefix(n.Labels)
		target = make(map[string]string, len(cols))
		b.labelAlias[id] = target
	}
	lines := make([]string, 0, len(cols))
	aliases := make([]string, 0, len(cols))
	for _, c := range cols {
		a := b.reg.Register(alias.Column{Labels: labels, Table: n.Table, Name: c})
		target[c] = a
		lines = append(lines, fmt.Sprintf("%s AS %s", b.col(id, c), b.quote(a)))
		aliases = append(aliases, a)
	}
	return lines, aliases, nil
}

// projectHidden registers and renders a helper column of a node.
func (b *builder) projectHidden(id querytree.NodeID, column string) string {
	m, ok := b.hideAlias[id]
	if !ok {
		m = make(map[string]string)
		b.hideAlias[id] = m
	}
	if _, ok := m[column]; ok {
		return ""
	}
	n := b.node(id)
	a := b.reg.Register(alias.Column{Labels: alias.Hidden, Table: n.Table, Name: column})
	m[column] = a
	return fmt.Sprintf("%s AS %s", b.col(id, column), b.quote(a))
}

// projectedAlias finds the alias under which a node's column is projected.
func (b *builder) projectedAlias(id, leaf querytree.NodeID, column string) (string, bool) {
	if m, ok := b.labelAlias[id]; ok {
		if a, ok := m[column]; ok {
			return a, true
		}
	}
	if id == leaf {
		if a, ok := b.leafAlias[column]; ok {
			return a, true
		}
	}
	if m, ok := b.hideAlias[id]; ok {
		if a, ok := m[column]; ok {
			return a, true
		}
	}
	return "", false
}

// projection renders the projection of the nodes in ids: the leaf unlabeled,
// labeled nodes under their labels. It also returns the aliases in order.
func (b *builder) projection(ids []querytree.NodeID, leaf querytree.NodeID) ([]string, []string, error) {
	var lines, aliases []string
	for _, id := range ids {
		if id == leaf {
			l, a, err := b.projectNode(id, false)
			if err != nil {
				return nil, nil, err
			}
			lines = append(lines, l...)
			aliases = append(aliases, a...)
		}
		if b.node(id).Labeled() {
			l, a, err := b.projectNode(id, true)
			if err != nil {
				return nil, nil, err
			}
			lines = append(lines, l...)
			aliases = append(aliases, a...)
		}
	}
	return lines, aliases, nil
}

// joinColumns returns the parent and child columns correlating two adjacent
// steps. A vertex joins its edge on the edge's foreign key for the step
// direction; an edge joins its vertex on the foreign key of the far end, or
// of the named end for an edge-vertex step.
func (b *builder) joinColumns(parent, child *querytree.Node) (string, string, error) {
	var parentCol, childCol, fk string
	var edge schema.SchemaTable

	switch {
	case parent.Table.IsVertex() && child.Table.IsEdge():
		dir := schema.DirectionOut
		if child.Direction == schema.DirectionIn {
			dir = schema.DirectionIn
		}
		fk = schema.ForeignKeyColumn(parent.Table, dir)
		edge = child.Table
		parentCol, childCol = schema.IDColumn, fk
	case parent.Table.IsEdge() && child.Table.IsVertex():
		dir := child.Direction
		if child.Step != querytree.StepEdgeVertex {
			dir = dir.Opposite()
		}
		if dir == schema.DirectionBoth {
			return "", "", fmt.Errorf("%w: node %d: direction BOTH cannot be joined", querytree.ErrStructuralViolation, child.ID)
		}
		fk = schema.ForeignKeyColumn(child.Table, dir)
		edge = parent.Table
		parentCol, childCol = fk, schema.IDColumn
	default:
		return "", "", fmt.Errorf("%w: %s step cannot follow %s step", querytree.ErrStructuralViolation, child.Table.Kind(), parent.Table.Kind())
	}

	if _, _, ok := b.cat.ResolveColumn(edge, fk); !ok {
		return "", "", fmt.Errorf("%w: edge %s has no column %q", querytree.ErrStructuralViolation, edge, fk)
	}
	return parentCol, childCol, nil
}

// chainJoins renders LEFT JOINs for ids, each correlated with its parent.
func (b *builder) chainJoins(ids []querytree.NodeID) ([]string, error) {
	joins := make([]string, 0, len(ids))
	for _, id := range ids {
		n := b.node(id)
		parent := b.node(n.Parent())
		pc, cc, err := b.joinColumns(parent, n)
		if err != nil {
			return nil, err
		}
		joins = append(joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s = %s",
			b.c.dialect.QuoteTable(n.Table), b.tableAlias[id], b.col(parent.ID, pc), b.col(id, cc)))
	}
	return joins, nil
}

// optionalJoins renders a LEFT JOIN per optional branch below leaf, with the
// branch filters folded into ON, and the IS NULL conditions that keep only
// rows where no branch matched.
func (b *builder) optionalJoins(leaf querytree.NodeID, branches []querytree.NodeID) ([]string, []string, error) {
	var joins, conds []string
	parent := b.node(leaf)
	for j, id := range branches {
		n := b.node(id)
		if n == nil || n.Parent() != leaf {
			return nil, nil, fmt.Errorf("%w: node %d is not an optional child of %d", querytree.ErrStructuralViolation, id, leaf)
		}
		b.tableAlias[id] = "o" + strconv.Itoa(j)
		pc, cc, err := b.joinColumns(parent, n)
		if err != nil {
			return nil, nil, err
		}
		on := []string{fmt.Sprintf("%s = %s", b.col(leaf, pc), b.col(id, cc))}
		for _, f := range n.Filters {
			cond, _, err := b.predicate(id, f, false)
			if err != nil {
				return nil, nil, err
			}
			if cond != "" {
				on = append(on, cond)
			}
		}
		joins = append(joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s",
			b.c.dialect.QuoteTable(n.Table), b.tableAlias[id], strings.Join(on, " AND ")))
		conds = append(conds, b.col(id, schema.IDColumn)+" IS NULL")
	}
	return joins, conds, nil
}

// filters renders WHERE conditions (and bulk joins) for the filters of ids.
func (b *builder) filters(ids []querytree.NodeID) ([]string, []string, error) {
	var conds, joins []string
	for _, id := range ids {
		for _, f := range b.node(id).Filters {
			cond, join, err := b.predicate(id, f, true)
			if err != nil {
				return nil, nil, err
			}
			if join != "" {
				joins = append(joins, join)
			}
			if cond != "" {
				conds = append(conds, cond)
			}
		}
	}
	return conds, joins, nil
}

type orderTerm struct {
	node   querytree.NodeID
	column string
	order  querytree.Order
}

// orderTerms resolves the orderings of every path node to (node, column).
func (b *builder) orderTerms(ids []querytree.NodeID) ([]orderTerm, error) {
	var terms []orderTerm
	for _, id := range ids {
		for _, o := range b.node(id).Orderings {
			target := id
			switch o.Kind {
			case querytree.OrderByProperty:
			case querytree.OrderBySelect:
				t, ok := b.tree.FindLabeled(id, o.Select)
				if !ok {
					return nil, fmt.Errorf("%w: ordering references unknown label %q", querytree.ErrStructuralViolation, o.Select)
				}
				target = t
			default:
				return nil, fmt.Errorf("%w: ordering kind %d", querytree.ErrUnsupportedPredicate, o.Kind)
			}
			column := o.Key
			if column == querytree.IDKey {
				column = schema.IDColumn
			}
			if !b.cat.HasProperty(b.node(target).Table, column) {
				return nil, fmt.Errorf("%w: cannot order %s by unknown property %q", querytree.ErrStructuralViolation, b.node(target).Table, o.Key)
			}
			terms = append(terms, orderTerm{node: target, column: column, order: o.Order})
		}
	}
	return terms, nil
}

func (b *builder) startCondition() string {
	id, ok := b.tree.StartID()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s = %s", b.col(b.tree.Root(), schema.IDColumn), b.bind(id))
}

// single renders a path without repeated tables as one SELECT.
func (b *builder) single(p querytree.Path, branches []querytree.NodeID) (string, error) {
	b.assignTableAliases(p)
	leaf := p.Leaf()
	all := p.All()

	terms, err := b.orderTerms(all)
	if err != nil {
		return "", err
	}
	proj, _, err := b.projection(all, leaf)
	if err != nil {
		return "", err
	}
	joins, err := b.chainJoins(p.Nodes)
	if err != nil {
		return "", err
	}
	optJoins, optConds, err := b.optionalJoins(leaf, branches)
	if err != nil {
		return "", err
	}

	var conds []string
	if sc := b.startCondition(); sc != "" {
		conds = append(conds, sc)
	}
	filterConds, bulkJoins, err := b.filters(all)
	if err != nil {
		return "", err
	}
	conds = append(conds, filterConds...)
	conds = append(conds, optConds...)

	joins = append(joins, bulkJoins...)
	joins = append(joins, optJoins...)

	order := make([]string, len(terms))
	for i, t := range terms {
		order[i] = b.col(t.node, t.column) + " " + t.order.String()
	}

	return renderSelect(proj, b.c.dialect.QuoteTable(b.node(p.Root).Table)+" AS t0", joins, conds, order), nil
}

// split renders a path with repeated tables as one derived table per
// segment, inner-joined on the columns correlating adjacent segments, with
// an outer SELECT re-projecting the labeled and leaf columns.
func (b *builder) split(p querytree.Path, segments [][]querytree.NodeID, branches []querytree.NodeID) (string, error) {
	b.assignTableAliases(p)
	leaf := p.Leaf()

	terms, err := b.orderTerms(p.All())
	if err != nil {
		return "", err
	}

	// Helper columns needed by nodes that are neither labeled nor the leaf.
	hidden := make(map[querytree.NodeID][]string)
	needs := func(id querytree.NodeID, column string) {
		if id != leaf && !b.node(id).Labeled() {
			hidden[id] = append(hidden[id], column)
		}
	}
	type boundary struct {
		left, right querytree.NodeID
		lc, rc      string
	}
	bounds := make([]boundary, 0, len(segments)-1)
	for k := 1; k < len(segments); k++ {
		prev := segments[k-1]
		l, r := prev[len(prev)-1], segments[k][0]
		lc, rc, err := b.joinColumns(b.node(l), b.node(r))
		if err != nil {
			return "", err
		}
		needs(l, lc)
		needs(r, rc)
		bounds = append(bounds, boundary{l, r, lc, rc})
	}
	for _, t := range terms {
		needs(t.node, t.column)
	}

	var (
		outerProj []string
		segSQL    []string
		segOf     = make(map[querytree.NodeID]int)
	)
	for k, seg := range segments {
		ids := seg
		if k == 0 {
			ids = append([]querytree.NodeID{p.Root}, seg...)
		}
		for _, id := range ids {
			segOf[id] = k
		}
		segAlias := "a" + strconv.Itoa(k+1)

		proj, aliases, err := b.projection(ids, leaf)
		if err != nil {
			return "", err
		}
		for _, a := range aliases {
			outerProj = append(outerProj, fmt.Sprintf("%s.%s AS %s", segAlias, b.quote(a), b.quote(a)))
		}
		for _, id := range ids {
			for _, column := range hidden[id] {
				if line := b.projectHidden(id, column); line != "" {
					proj = append(proj, line)
				}
			}
		}

		from := b.c.dialect.QuoteTable(b.node(ids[0]).Table) + " AS " + b.tableAlias[ids[0]]
		joins, err := b.chainJoins(ids[1:])
		if err != nil {
			return "", err
		}

		var optJoins, optConds []string
		if k == len(segments)-1 {
			if optJoins, optConds, err = b.optionalJoins(leaf, branches); err != nil {
				return "", err
			}
		}

		var conds []string
		if k == 0 {
			if sc := b.startCondition(); sc != "" {
				conds = append(conds, sc)
			}
		}
		filterConds, bulkJoins, err := b.filters(ids)
		if err != nil {
			return "", err
		}
		conds = append(conds, filterConds...)
		conds = append(conds, optConds...)
		joins = append(joins, bulkJoins...)
		joins = append(joins, optJoins...)

		segSQL = append(segSQL, renderSelect(proj, from, joins, conds, nil))
	}

	var sb strings.Builder
	sb.WriteString("SELECT\n\t")
	sb.WriteString(strings.Join(outerProj, ",\n\t"))
	sb.WriteString("\nFROM (\n")
	sb.WriteString(indent(segSQL[0]))
	sb.WriteString("\n) a1")
	for i, bd := range bounds {
		la, _ := b.projectedAlias(bd.left, leaf, bd.lc)
		ra, _ := b.projectedAlias(bd.right, leaf, bd.rc)
		fmt.Fprintf(&sb, "\nINNER JOIN (\n%s\n) a%d ON a%d.%s = a%d.%s",
			indent(segSQL[i+1]), i+2, i+1, b.quote(la), i+2, b.quote(ra))
	}
	if len(terms) > 0 {
		order := make([]string, len(terms))
		for i, t := range terms {
			a, _ := b.projectedAlias(t.node, leaf, t.column)
			order[i] = fmt.Sprintf("a%d.%s %s", segOf[t.node]+1, b.quote(a), t.order)
		}
		sb.WriteString("\nORDER BY ")
		sb.WriteString(strings.Join(order, ", "))
	}
	return sb.String(), nil
}

func renderSelect(proj []string, from string, joins, conds, order []string) string {
	var sb strings.Builder
	sb.WriteString("SELECT\n\t")
	sb.WriteString(strings.Join(proj, ",\n\t"))
	sb.WriteString("\nFROM ")
	sb.WriteString(from)
	for _, j := range joins {
		sb.WriteString("\n")
		sb.WriteString(j)
	}
	if len(conds) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	if len(order) > 0 {
		sb.WriteString("\nORDER BY ")
		sb.WriteString(strings.Join(order, ", "))
	}
	return sb.String()
}

func indent(s string) string {
	return "\t" + strings.ReplaceAll(s, "\n", "\n\t")
}
