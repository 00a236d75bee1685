// Package plan reads traversal plans: YAML documents describing a query tree
// step by step. A plan is built against a topology into pruned query trees,
// one per root.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/sqlgraph/internal/querytree"
	"github.com/aidanlsb/sqlgraph/internal/schema"
)

// ErrInvalid marks plans that cannot be turned into a query tree.
var ErrInvalid = errors.New("invalid plan")

// Plan is one traversal.
type Plan struct {
	Name string `yaml:"name"`
	// Depth is the depth every kept branch must reach. Zero means the
	// deepest step of each root.
	Depth int    `yaml:"depth"`
	Roots []Step `yaml:"roots"`

	// Source is the file (and block) the plan came from.
	Source string `yaml:"-"`
}

// Step is one traversal step and the steps below it.
type Step struct {
	Table     string   `yaml:"table"`
	Direction string   `yaml:"direction"`
	Element   string   `yaml:"element"`
	Start     any      `yaml:"start"`
	Labels    []string `yaml:"labels"`
	Filters   []Filter `yaml:"filters"`
	Order     []Order  `yaml:"order"`

	// EdgeVertex marks a vertex reached from an edge step (outV/inV).
	EdgeVertex bool `yaml:"edge_vertex"`
	Optional   bool `yaml:"optional"`
	Emit       bool `yaml:"emit"`

	Steps []Step `yaml:"steps"`
}

// Filter is a has-step: key, predicate and operand.
type Filter struct {
	Key       string `yaml:"key"`
	Predicate string `yaml:"predicate"`
	Value     any    `yaml:"value"`
	Values    []any  `yaml:"values"`
}

// Order is an order-by modulator. Select orders by a property of the step
// carrying that label instead of the current step.
type Order struct {
	Key    string `yaml:"key"`
	Select string `yaml:"select"`
	Order  string `yaml:"order"`
}

// Load reads every plan of a YAML file. A file may hold several documents.
func Load(path string) ([]*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan %s: %w", path, err)
	}
	plans, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i, p := range plans {
		p.Source = path
		if p.Name == "" {
			p.Name = base
			if len(plans) > 1 {
				p.Name = fmt.Sprintf("%s-%d", base, i+1)
			}
		}
	}
	return plans, nil
}

// LoadAny loads a YAML plan file or a markdown notebook, by extension.
func LoadAny(path string) ([]*Plan, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return LoadMarkdown(path)
	}
	return Load(path)
}

// Parse decodes the YAML documents in data. Unknown keys are rejected.
func Parse(data []byte) ([]*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var plans []*Plan
	for {
		var p Plan
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if len(p.Roots) == 0 {
			return nil, fmt.Errorf("%w: plan %q has no roots", ErrInvalid, p.Name)
		}
		plans = append(plans, &p)
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: no plan found", ErrInvalid)
	}
	return plans, nil
}

// Build turns the plan into one query tree per root. Each tree has its
// filters resolved against the topology and is pruned to the plan depth.
func (p *Plan) Build(topo *schema.Topology) ([]*querytree.Tree, error) {
	trees := make([]*querytree.Tree, 0, len(p.Roots))
	for i, root := range p.Roots {
		tr, err := buildRoot(topo, root)
		if err != nil {
			return nil, fmt.Errorf("%w: root %d: %v", ErrInvalid, i, err)
		}
		tr.PruneByFilters()
		depth := p.Depth
		if depth == 0 {
			depth = tr.Depth()
		}
		tr.Prune(depth)
		trees = append(trees, tr)
	}
	return trees, nil
}

func buildRoot(topo *schema.Topology, s Step) (*querytree.Tree, error) {
	st, err := topo.Resolve(s.Table)
	if err != nil {
		return nil, err
	}
	dir, err := schema.ParseDirection(s.Direction)
	if err != nil {
		return nil, err
	}
	filters, err := buildFilters(s.Filters)
	if err != nil {
		return nil, err
	}
	orders, err := buildOrders(s.Order)
	if err != nil {
		return nil, err
	}

	spec := querytree.RootSpec{
		Table:     st,
		Step:      querytree.StepGraph,
		Direction: dir,
		Filters:   filters,
		Orderings: orders,
		Labels:    s.Labels,
	}
	if s.Start != nil {
		spec.Step = querytree.StepVertex
		spec.StartID = normalize(s.Start)
	}
	tr := querytree.New(topo, spec)
	for _, child := range s.Steps {
		if err := addStep(topo, tr, tr.Root(), child); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

func addStep(topo *schema.Topology, tr *querytree.Tree, parent querytree.NodeID, s Step) error {
	if s.Start != nil {
		return fmt.Errorf("step %s: only roots take a start id", s.Table)
	}
	st, err := topo.Resolve(s.Table)
	if err != nil {
		return err
	}
	dir, err := schema.ParseDirection(s.Direction)
	if err != nil {
		return fmt.Errorf("step %s: %w", s.Table, err)
	}
	element, err := parseElement(s.Element, st)
	if err != nil {
		return fmt.Errorf("step %s: %w", s.Table, err)
	}
	filters, err := buildFilters(s.Filters)
	if err != nil {
		return fmt.Errorf("step %s: %w", s.Table, err)
	}
	orders, err := buildOrders(s.Order)
	if err != nil {
		return fmt.Errorf("step %s: %w", s.Table, err)
	}

	id := tr.AddChild(parent, querytree.ChildSpec{
		Table:          st,
		Direction:      dir,
		Element:        element,
		EdgeVertexStep: s.EdgeVertex,
		Filters:        filters,
		Orderings:      orders,
		Labels:         s.Labels,
		Optional:       s.Optional,
		Emit:           s.Emit,
	})
	for _, child := range s.Steps {
		if err := addStep(topo, tr, id, child); err != nil {
			return err
		}
	}
	return nil
}

func parseElement(s string, st schema.SchemaTable) (querytree.ElementKind, error) {
	switch strings.ToLower(s) {
	case "":
		if st.IsEdge() {
			return querytree.ElementEdge, nil
		}
		return querytree.ElementVertex, nil
	case "vertex":
		return querytree.ElementVertex, nil
	case "edge":
		return querytree.ElementEdge, nil
	}
	return 0, fmt.Errorf("unknown element kind %q", s)
}

func buildFilters(in []Filter) ([]querytree.Filter, error) {
	out := make([]querytree.Filter, 0, len(in))
	for _, f := range in {
		pred := querytree.PredEq
		if f.Predicate != "" {
			var err error
			if pred, err = querytree.ParsePredicate(f.Predicate); err != nil {
				return nil, err
			}
		}
		qf := querytree.Filter{Key: f.Key, Predicate: pred}
		if pred == querytree.PredWithin || pred == querytree.PredWithout {
			qf.Values = make([]any, len(f.Values))
			for i, v := range f.Values {
				qf.Values[i] = normalize(v)
			}
			if f.Value != nil {
				qf.Values = append(qf.Values, normalize(f.Value))
			}
		} else {
			qf.Value = normalize(f.Value)
		}
		out = append(out, qf)
	}
	return out, nil
}

func buildOrders(in []Order) ([]querytree.Ordering, error) {
	out := make([]querytree.Ordering, 0, len(in))
	for _, o := range in {
		dir := querytree.Asc
		if o.Order != "" {
			var err error
			if dir, err = querytree.ParseOrder(o.Order); err != nil {
				return nil, err
			}
		}
		if o.Select != "" {
			out = append(out, querytree.BySelect(o.Select, o.Key, dir))
		} else {
			out = append(out, querytree.By(o.Key, dir))
		}
	}
	return out, nil
}

// normalize widens YAML integers so identities bind as int64.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	}
	return v
}
