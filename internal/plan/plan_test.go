package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aidanlsb/sqlgraph/internal/querytree"
	"github.com/aidanlsb/sqlgraph/internal/schema"
)

const testTopology = `
public_schema: public
schemas:
  public:
    vertices:
      Person:
        properties:
          - {name: name, type: string}
          - {name: age, type: integer}
      Software:
        properties:
          - {name: name, type: string}
    edges:
      knows:
        out: [Person]
        in: [Person]
      created:
        out: [Person]
        in: [Software]
`

const friendsPlan = `
name: friends-software
roots:
  - table: Person
    start: 1
    labels: [me]
    steps:
      - table: knows
        direction: out
        element: vertex
        steps:
          - table: Person
            direction: out
            labels: [friend]
            filters:
              - {key: age, predicate: gt, value: 30}
            order:
              - {key: name, order: desc}
              - {select: me, key: age}
            steps:
              - table: created
                direction: out
                element: vertex
                steps:
                  - table: Software
                    direction: out
          - table: Person
            direction: out
            filters:
              - {key: salary, value: 10}
`

func topology(t *testing.T) *schema.Topology {
	t.Helper()
	topo, err := schema.Parse([]byte(testTopology))
	if err != nil {
		t.Fatalf("topology: %v", err)
	}
	return topo
}

func TestParseAndBuild(t *testing.T) {
	plans, err := Parse([]byte(friendsPlan))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(plans) != 1 || plans[0].Name != "friends-software" {
		t.Fatalf("unexpected plans %+v", plans)
	}

	trees, err := plans[0].Build(topology(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(trees) != 1 {
		t.Fatalf("expected 1 tree, got %d", len(trees))
	}
	tr := trees[0]

	start, ok := tr.StartID()
	if !ok || start != int64(1) {
		t.Errorf("StartID = %v, %v; want int64(1)", start, ok)
	}

	// The salary branch filters on an unknown property and is pruned; the
	// friend branch reaches depth 4.
	paths := tr.ExtractDistinctPaths()
	if len(paths) != 1 {
		t.Fatalf("expected 1 path, got %d", len(paths))
	}
	leaf := tr.Node(paths[0].Leaf())
	if leaf.Table != schema.Vertex("public", "Software") || leaf.Depth != 4 {
		t.Errorf("leaf = %s depth %d", leaf.Table, leaf.Depth)
	}

	friend, ok := tr.FindLabeled(paths[0].Leaf(), "friend")
	if !ok {
		t.Fatal("friend label not found")
	}
	n := tr.Node(friend)
	if len(n.Filters) != 1 || n.Filters[0].Predicate != querytree.PredGt || n.Filters[0].Value != int64(30) {
		t.Errorf("friend filters = %+v", n.Filters)
	}
	if len(n.Orderings) != 2 || n.Orderings[0].Order != querytree.Desc || n.Orderings[1].Kind != querytree.OrderBySelect {
		t.Errorf("friend orderings = %+v", n.Orderings)
	}
}

func TestBuildExplicitDepth(t *testing.T) {
	plans, err := Parse([]byte(`
depth: 2
roots:
  - table: Person
    steps:
      - table: knows
        element: vertex
        steps:
          - table: Person
      - table: created
        element: vertex
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	trees, err := plans[0].Build(topology(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := len(trees[0].ExtractDistinctPaths()); got != 1 {
		t.Errorf("expected the created branch to be pruned, got %d paths", got)
	}
}

func TestWithinValues(t *testing.T) {
	plans, err := Parse([]byte(`
roots:
  - table: Person
    filters:
      - {key: ~id, predicate: within, values: [1, 2, 3]}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	trees, err := plans[0].Build(topology(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	f := trees[0].Node(trees[0].Root()).Filters[0]
	if len(f.Values) != 3 || f.Values[2] != int64(3) {
		t.Errorf("values = %#v", f.Values)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", ""},
		{"no roots", "name: x\n"},
		{"unknown key", "roots:\n  - table: Person\n    colour: red\n"},
		{"not yaml", "roots: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown table", "roots:\n  - table: Robot\n"},
		{"bad predicate", "roots:\n  - table: Person\n    filters:\n      - {key: name, predicate: near, value: x}\n"},
		{"bad direction", "roots:\n  - table: Person\n    steps:\n      - {table: knows, direction: sideways}\n"},
		{"bad order", "roots:\n  - table: Person\n    order:\n      - {key: name, order: up}\n"},
		{"start below root", "roots:\n  - table: Person\n    steps:\n      - {table: knows, start: 3}\n"},
		{"bad element", "roots:\n  - table: Person\n    steps:\n      - {table: knows, element: face}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if _, err := plans[0].Build(topology(t)); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadNamesPlans(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.yaml")
	content := "roots:\n  - table: Person\n---\nroots:\n  - table: Software\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	plans, err := LoadAny(path)
	if err != nil {
		t.Fatalf("LoadAny: %v", err)
	}
	if len(plans) != 2 || plans[0].Name != "people-1" || plans[1].Name != "people-2" {
		t.Errorf("unexpected names: %q, %q", plans[0].Name, plans[1].Name)
	}
	if plans[0].Source != path {
		t.Errorf("Source = %q", plans[0].Source)
	}
}

func TestParseMarkdown(t *testing.T) {
	notebook := "# Friends of Marko\n\nWho does marko know?\n\n" +
		"```sqlgraph\nroots:\n  - table: Person\n    start: 1\n```\n\n" +
		"Some other code:\n\n```yaml\nnot: a plan\n```\n\n" +
		"## Software\n\n```plan\nname: all-software\nroots:\n  - table: Software\n```\n\n" +
		"```sqlgraph\nroots:\n  - table: Person\n```\n"

	plans, err := ParseMarkdown([]byte(notebook))
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	var names []string
	for _, p := range plans {
		names = append(names, p.Name)
	}
	want := []string{"friends-of-marko", "all-software", "software"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestParseMarkdownWithoutPlans(t *testing.T) {
	if _, err := ParseMarkdown([]byte("# Nothing here\n")); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}
