package querytree

import (
	"errors"
	"strings"
	"testing"

	"github.com/aidanlsb/sqlgraph/internal/schema"
)

var (
	person   = schema.Vertex("public", "Person")
	software = schema.Vertex("public", "Software")
	knows    = schema.Edge("public", "knows")
	created  = schema.Edge("public", "created")
)

func testCatalog(t *testing.T) *schema.Topology {
	t.Helper()
	topo := schema.NewTopology("public")
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(topo.AddVertex("public", "Person",
		schema.Property{Name: "name", Type: schema.TypeString},
		schema.Property{Name: "age", Type: schema.TypeInteger}))
	must(topo.AddVertex("public", "Software", schema.Property{Name: "name", Type: schema.TypeString}))
	must(topo.AddEdge("public", "knows", []schema.SchemaTable{person}, []schema.SchemaTable{person}))
	must(topo.AddEdge("public", "created", []schema.SchemaTable{person}, []schema.SchemaTable{software}))
	return topo
}

// out builds root -> edge -> vertex for an out() step.
func outStep(tr *Tree, from NodeID, edge, vertex schema.SchemaTable, labels ...string) NodeID {
	e := tr.AddChild(from, ChildSpec{Table: edge, Direction: schema.DirectionOut, Element: ElementVertex})
	return tr.AddChild(e, ChildSpec{Table: vertex, Direction: schema.DirectionOut, Element: ElementVertex, Labels: labels})
}

func TestAddChildCopiesFiltersOnlyForMatchingKind(t *testing.T) {
	tr := New(testCatalog(t), RootSpec{Table: person})
	filters := []Filter{Has("name", PredEq, "marko")}

	e := tr.AddChild(tr.Root(), ChildSpec{Table: knows, Direction: schema.DirectionOut, Element: ElementVertex, Filters: filters})
	v := tr.AddChild(e, ChildSpec{Table: person, Direction: schema.DirectionOut, Element: ElementVertex, Filters: filters})

	if got := len(tr.Node(e).Filters); got != 0 {
		t.Errorf("edge node got %d filters, want 0", got)
	}
	if got := len(tr.Node(v).Filters); got != 1 {
		t.Errorf("vertex node got %d filters, want 1", got)
	}
	if tr.Node(v).Depth != 2 {
		t.Errorf("depth = %d, want 2", tr.Node(v).Depth)
	}
	if leaves := tr.Leaves(); len(leaves) != 1 || leaves[0] != v {
		t.Errorf("leaves = %v, want [%d]", leaves, v)
	}
}

func TestPruneKeepsOnlyDeepestBranches(t *testing.T) {
	tr := New(testCatalog(t), RootSpec{Table: person})
	deep := outStep(tr, tr.Root(), knows, person)
	shallow := tr.AddChild(tr.Root(), ChildSpec{Table: created, Direction: schema.DirectionOut, Element: ElementVertex})

	tr.Prune(tr.Depth())

	if tr.Node(shallow) != nil {
		t.Error("shallow branch survived pruning")
	}
	if leaves := tr.Leaves(); len(leaves) != 1 || leaves[0] != deep {
		t.Errorf("leaves = %v, want [%d]", leaves, deep)
	}

	before := tr.String()
	tr.Prune(2)
	if tr.String() != before {
		t.Errorf("Prune not idempotent:\n%s\nvs\n%s", before, tr.String())
	}
}

func TestPruneCascadesToChildlessAncestors(t *testing.T) {
	tr := New(testCatalog(t), RootSpec{Table: person})
	e := tr.AddChild(tr.Root(), ChildSpec{Table: created, Direction: schema.DirectionOut, Element: ElementVertex})
	tr.AddChild(e, ChildSpec{Table: software, Direction: schema.DirectionOut, Element: ElementVertex})
	deep := outStep(tr, tr.Root(), knows, person)
	outStep(tr, deep, knows, person)

	tr.Prune(4)

	if tr.Node(e) != nil {
		t.Error("created edge should be removed once its only child is removed")
	}
	if n := tr.NumberOfNodes(); n != 5 {
		t.Errorf("NumberOfNodes = %d, want 5", n)
	}
}

func TestPruneRootOnly(t *testing.T) {
	tr := New(testCatalog(t), RootSpec{Table: person})
	tr.Prune(0)
	paths := tr.ExtractDistinctPaths()
	if len(paths) != 1 || paths[0].Leaf() != tr.Root() || len(paths[0].Nodes) != 0 {
		t.Errorf("paths = %+v", paths)
	}
}

func TestPruneByFilters(t *testing.T) {
	tests := []struct {
		name        string
		filter      Filter
		wantRemoved bool
		wantFilters int
	}{
		{"label match dropped", Has(LabelKey, PredEq, "Person"), false, 0},
		{"qualified label match", Has(LabelKey, PredEq, "public.Person"), false, 0},
		{"label mismatch", Has(LabelKey, PredEq, "Software"), true, 0},
		{"label neq true", Has(LabelKey, PredNeq, "Software"), false, 0},
		{"label within", Within(LabelKey, "Software", "Person"), false, 0},
		{"label without", Without(LabelKey, "Person"), true, 0},
		{"unknown property", Has("salary", PredGt, 10), true, 0},
		{"empty within", Within("name"), true, 0},
		{"empty without dropped", Without("name"), false, 0},
		{"known property kept", Has("age", PredGt, 30), false, 1},
		{"id kept", Has(IDKey, PredEq, int64(1)), false, 1},
		{"id within kept", Within(IDKey, int64(1), int64(2)), false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(testCatalog(t), RootSpec{Table: person})
			e := tr.AddChild(tr.Root(), ChildSpec{Table: knows, Direction: schema.DirectionOut, Element: ElementVertex})
			v := tr.AddChild(e, ChildSpec{Table: person, Direction: schema.DirectionOut, Element: ElementVertex, Filters: []Filter{tt.filter}})

			if tr.PruneByFilters() {
				t.Fatal("root reported invalidated")
			}
			if removed := tr.Node(v) == nil; removed != tt.wantRemoved {
				t.Fatalf("removed = %v, want %v", removed, tt.wantRemoved)
			}
			if tt.wantRemoved {
				if tr.Node(e) != nil {
					t.Error("childless edge ancestor not removed")
				}
				return
			}
			if got := len(tr.Node(v).Filters); got != tt.wantFilters {
				t.Errorf("filters = %d, want %d", got, tt.wantFilters)
			}
		})
	}
}

func TestPruneByFiltersRootInvalidated(t *testing.T) {
	tr := New(testCatalog(t), RootSpec{Table: person, Filters: []Filter{Has(LabelKey, PredEq, "Software")}})
	outStep(tr, tr.Root(), knows, person)

	if !tr.PruneByFilters() {
		t.Fatal("expected root invalidation")
	}
	if !tr.PruneByFilters() {
		t.Error("second call should report the same result")
	}
	tr.Prune(2)
	if paths := tr.ExtractDistinctPaths(); len(paths) != 0 {
		t.Errorf("invalid root produced paths: %+v", paths)
	}
}

func TestPruneByFiltersIdempotent(t *testing.T) {
	tr := New(testCatalog(t), RootSpec{Table: person})
	v := outStep(tr, tr.Root(), knows, person)
	tr.Node(v).Filters = []Filter{Has(LabelKey, PredEq, "Person"), Has("age", PredGt, 1)}

	tr.PruneByFilters()
	first := tr.String()
	tr.PruneByFilters()
	if tr.String() != first {
		t.Error("PruneByFilters changed the tree on the second call")
	}
}

func TestSegmentsSplitAtRepeatedTable(t *testing.T) {
	tr := New(testCatalog(t), RootSpec{Table: person})
	a := outStep(tr, tr.Root(), knows, person, "a")
	outStep(tr, a, knows, person)
	tr.Prune(4)

	paths := tr.ExtractDistinctPaths()
	if len(paths) != 1 {
		t.Fatalf("paths = %d", len(paths))
	}
	segs := tr.Segments(paths[0])
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}
	for i, seg := range segs {
		if len(seg) != 2 || tr.Node(seg[0]).Table != knows || tr.Node(seg[1]).Table != person {
			t.Errorf("segment %d = %v", i, seg)
		}
	}
	if !tr.HasDuplicateTables(paths[0]) {
		t.Error("HasDuplicateTables = false")
	}
}

func TestSegmentsSingleWhenNoRepeat(t *testing.T) {
	tr := New(testCatalog(t), RootSpec{Table: person, Step: StepVertex, StartID: int64(1)})
	outStep(tr, tr.Root(), knows, person)
	tr.Prune(2)

	p := tr.ExtractDistinctPaths()[0]
	if tr.HasDuplicateTables(p) {
		t.Error("root table must not count as a duplicate")
	}
	if got := tr.Tables(p); len(got) != 2 || got[0] != knows || got[1] != person {
		t.Errorf("Tables = %v", got)
	}
	if id, ok := tr.StartID(); !ok || id != int64(1) {
		t.Errorf("StartID = %v, %v", id, ok)
	}
}

func TestSegmentsConcatenation(t *testing.T) {
	sequences := [][]schema.SchemaTable{
		{knows, person},
		{knows, person, knows, person, knows, person},
		{created, software},
		{knows, person, created, software},
	}
	for _, seq := range sequences {
		tr := New(testCatalog(t), RootSpec{Table: person})
		cur := tr.Root()
		for _, st := range seq {
			cur = tr.AddChild(cur, ChildSpec{Table: st, Direction: schema.DirectionOut, Element: ElementVertex})
		}
		p := tr.PathTo(cur)

		var flat []schema.SchemaTable
		for _, seg := range tr.Segments(p) {
			seen := map[schema.SchemaTable]bool{}
			for _, id := range seg {
				st := tr.Node(id).Table
				if seen[st] {
					t.Errorf("%v: segment repeats %s", seq, st)
				}
				seen[st] = true
				flat = append(flat, st)
			}
		}
		if len(flat) != len(seq) {
			t.Fatalf("%v: concatenation length %d", seq, len(flat))
		}
		for i := range seq {
			if flat[i] != seq[i] {
				t.Errorf("%v: position %d = %s", seq, i, flat[i])
			}
		}
	}
}

func TestOptionalAndEmitPaths(t *testing.T) {
	tr := New(testCatalog(t), RootSpec{Table: person})
	e := tr.AddChild(tr.Root(), ChildSpec{Table: knows, Direction: schema.DirectionOut, Element: ElementVertex})
	v := tr.AddChild(e, ChildSpec{Table: person, Direction: schema.DirectionOut, Element: ElementVertex, Emit: true})
	opt := tr.AddChild(v, ChildSpec{Table: created, Direction: schema.DirectionOut, Element: ElementVertex, Optional: true})
	tr.AddChild(opt, ChildSpec{Table: software, Direction: schema.DirectionOut, Element: ElementVertex})
	tr.Prune(tr.Depth())

	opts := tr.OptionalPaths()
	if len(opts) != 1 || opts[0].Path.Leaf() != v || len(opts[0].Branches) != 1 || opts[0].Branches[0] != opt {
		t.Errorf("OptionalPaths = %+v", opts)
	}

	emits := tr.EmitPaths()
	if len(emits) != 1 || emits[0].Leaf() != v {
		t.Errorf("EmitPaths = %+v", emits)
	}
}

func TestFindLabeled(t *testing.T) {
	tr := New(testCatalog(t), RootSpec{Table: person, Labels: []string{"a"}})
	mid := outStep(tr, tr.Root(), knows, person, "a")
	leaf := outStep(tr, mid, knows, person)

	got, ok := tr.FindLabeled(leaf, "a")
	if !ok || got != mid {
		t.Errorf("FindLabeled = %d, %v; want nearest ancestor %d", got, ok, mid)
	}
	if _, ok := tr.FindLabeled(leaf, "zzz"); ok {
		t.Error("found a label that does not exist")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		build func(*Tree)
		want  error
	}{
		{
			name: "valid",
			build: func(tr *Tree) {
				outStep(tr, tr.Root(), knows, person)
			},
		},
		{
			name: "both below root",
			build: func(tr *Tree) {
				tr.AddChild(tr.Root(), ChildSpec{Table: knows, Direction: schema.DirectionBoth, Element: ElementEdge})
			},
			want: ErrStructuralViolation,
		},
		{
			name: "vertex after vertex",
			build: func(tr *Tree) {
				tr.AddChild(tr.Root(), ChildSpec{Table: person, Direction: schema.DirectionOut, Element: ElementVertex})
			},
			want: ErrStructuralViolation,
		},
		{
			name: "unknown select label",
			build: func(tr *Tree) {
				v := outStep(tr, tr.Root(), knows, person)
				tr.Node(v).Orderings = []Ordering{BySelect("missing", "name", Asc)}
			},
			want: ErrStructuralViolation,
		},
		{
			name: "unknown predicate",
			build: func(tr *Tree) {
				v := outStep(tr, tr.Root(), knows, person)
				tr.Node(v).Filters = []Filter{{Key: "name", Predicate: PredicateKind(99), Value: "x"}}
			},
			want: ErrUnsupportedPredicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(testCatalog(t), RootSpec{Table: person})
			tt.build(tr)
			err := tr.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParsePredicate(t *testing.T) {
	k, err := ParsePredicate("startswith")
	if err != nil || k != PredStartsWith {
		t.Errorf("ParsePredicate = %v, %v", k, err)
	}
	if _, err := ParsePredicate("regex"); !errors.Is(err, ErrUnsupportedPredicate) {
		t.Errorf("ParsePredicate(regex) = %v", err)
	}
}

func TestTreeString(t *testing.T) {
	tr := New(testCatalog(t), RootSpec{Table: person, Labels: []string{"a"}})
	outStep(tr, tr.Root(), knows, person)
	tr.Prune(2)

	out := tr.String()
	for _, want := range []string{"public.V_Person depth=0 graph labels=[a]", "    public.E_knows depth=1", "public.V_Person depth=2 vertex OUT *"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}
}
