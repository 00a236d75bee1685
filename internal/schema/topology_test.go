package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
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
          - {name: born, type: zoned_datetime}
      Software:
        properties:
          - {name: name, type: string}
    edges:
      knows:
        out: [Person]
        in: [Person]
        properties:
          - {name: weight, type: double}
      created:
        out: [Person]
        in: [Software]
`

func TestLoadTopology(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.yaml")
	if err := os.WriteFile(path, []byte(testTopology), 0o644); err != nil {
		t.Fatal(err)
	}

	topo, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	person := Vertex("public", "Person")
	props, ok := topo.Properties(person)
	if !ok {
		t.Fatal("V_Person missing")
	}
	if len(props) != 3 || props[0].Name != "name" || props[2].Type != TypeZonedDateTime {
		t.Errorf("unexpected properties %+v", props)
	}

	if !topo.HasProperty(person, "age") || !topo.HasProperty(person, IDColumn) {
		t.Error("HasProperty should accept declared properties and ID")
	}
	if topo.HasProperty(person, "born~~~zonedId") {
		t.Error("postfix columns are not properties")
	}
	if topo.HasProperty(person, "salary") {
		t.Error("unknown property accepted")
	}

	prop, postfix, ok := topo.ResolveColumn(person, "born~~~zonedId")
	if !ok || prop.Name != "born" || postfix != PostfixZoneID {
		t.Errorf("ResolveColumn = %+v %q %v", prop, postfix, ok)
	}

	fks := topo.ForeignKeys(Edge("public", "created"))
	if len(fks) != 2 {
		t.Fatalf("ForeignKeys = %+v", fks)
	}
	if fks[0].Column != "public.Person__O" || fks[1].Column != "public.Software__I" {
		t.Errorf("ForeignKeys = %+v", fks)
	}

	tables := topo.Tables()
	if len(tables) != 4 || tables[0] != Edge("public", "created") {
		t.Errorf("Tables = %v", tables)
	}
}

func TestParseTopologyErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown endpoint",
			yaml: "schemas:\n  public:\n    edges:\n      knows:\n        out: [Ghost]\n",
			want: "unknown vertex",
		},
		{
			name: "bad type",
			yaml: "schemas:\n  public:\n    vertices:\n      Person:\n        properties:\n          - {name: x, type: blob}\n",
			want: "unknown property type",
		},
		{
			name: "reserved name",
			yaml: "schemas:\n  public:\n    vertices:\n      Person:\n        properties:\n          - {name: ID, type: long}\n",
			want: "reserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestTopologyBuilder(t *testing.T) {
	topo := NewTopology("main")
	person := Vertex("main", "Person")
	if err := topo.AddVertex("main", "Person", Property{Name: "name", Type: TypeString}); err != nil {
		t.Fatal(err)
	}
	if err := topo.AddEdge("main", "knows", []SchemaTable{person}, []SchemaTable{person}); err != nil {
		t.Fatal(err)
	}

	st, err := topo.Resolve("E_knows")
	if err != nil {
		t.Fatal(err)
	}
	if st != Edge("main", "knows") {
		t.Errorf("Resolve = %v", st)
	}
	if _, err := topo.Resolve("V_Ghost"); err == nil {
		t.Error("expected unknown table error")
	}

	for ref, want := range map[string]SchemaTable{
		"Person":      person,
		"main.Person": person,
		"knows":       Edge("main", "knows"),
	} {
		if st, err := topo.Resolve(ref); err != nil || st != want {
			t.Errorf("Resolve(%q) = %v, %v; want %v", ref, st, err, want)
		}
	}
	if _, err := topo.Resolve("Ghost"); err == nil {
		t.Error("expected unknown label error")
	}
}
