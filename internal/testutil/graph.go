// Package testutil provides reusable test utilities for sqlgraph tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/aidanlsb/sqlgraph/internal/dialect"
	"github.com/aidanlsb/sqlgraph/internal/schema"
)

// TestGraph is a temporary SQLite database laid out for a topology.
type TestGraph struct {
	Path     string
	DB       *sql.DB
	Topology *schema.Topology
	Dialect  dialect.Dialect

	t     *testing.T
	files map[string]string
}

// NewTestGraph creates a graph database for the given topology YAML. Tables
// are created in SQLite's "main" schema, so the topology should name
// public_schema: main.
func NewTestGraph(t *testing.T, topologyYAML string) *TestGraph {
	t.Helper()

	topo, err := schema.Parse([]byte(topologyYAML))
	if err != nil {
		t.Fatalf("failed to parse topology: %v", err)
	}
	d, err := dialect.New("sqlite", dialect.Options{PublicSchema: topo.PublicSchema, BulkMembership: true})
	if err != nil {
		t.Fatalf("failed to create dialect: %v", err)
	}

	g := &TestGraph{
		Path:     t.TempDir(),
		Topology: topo,
		Dialect:  d,
		t:        t,
		files:    make(map[string]string),
	}
	g.WithFile("topology.yaml", topologyYAML)

	db, err := sql.Open(d.DriverName(), g.DBPath())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	// One connection, so temp tables left by a released connection are
	// visible to later assertions.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	g.DB = db

	for _, stmt := range dialect.DDL(d, topo) {
		g.exec(stmt)
	}
	return g
}

// DBPath returns the database file path.
func (g *TestGraph) DBPath() string {
	return filepath.Join(g.Path, "graph.db")
}

// File returns the absolute path of a file written with WithFile.
func (g *TestGraph) File(relPath string) string {
	return filepath.Join(g.Path, relPath)
}

// WithFile writes a file next to the database.
func (g *TestGraph) WithFile(relPath, content string) *TestGraph {
	g.t.Helper()
	fullPath := g.File(relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		g.t.Fatalf("failed to create directory for %s: %v", relPath, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		g.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}
	g.files[relPath] = content
	return g
}

// AddVertex inserts a vertex row.
func (g *TestGraph) AddVertex(label string, id int64, props map[string]any) *TestGraph {
	g.t.Helper()
	g.insert(schema.Vertex(g.Topology.PublicSchema, label), id, props)
	return g
}

// AddEdge inserts an edge row from outLabel(outID) to inLabel(inID).
func (g *TestGraph) AddEdge(label string, id int64, outLabel string, outID int64, inLabel string, inID int64, props map[string]any) *TestGraph {
	g.t.Helper()
	ps := g.Topology.PublicSchema
	cols := make(map[string]any, len(props)+2)
	for k, v := range props {
		cols[k] = v
	}
	cols[schema.ForeignKeyColumn(schema.Vertex(ps, outLabel), schema.DirectionOut)] = outID
	cols[schema.ForeignKeyColumn(schema.Vertex(ps, inLabel), schema.DirectionIn)] = inID
	g.insert(schema.Edge(ps, label), id, cols)
	return g
}

// Count returns the number of rows in a table.
func (g *TestGraph) Count(st schema.SchemaTable) int {
	g.t.Helper()
	var n int
	row := g.DB.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+g.Dialect.QuoteTable(st))
	if err := row.Scan(&n); err != nil {
		g.t.Fatalf("failed to count %s: %v", st, err)
	}
	return n
}

func (g *TestGraph) insert(st schema.SchemaTable, id int64, cols map[string]any) {
	g.t.Helper()
	names := make([]string, 0, len(cols))
	for k := range cols {
		names = append(names, k)
	}
	sort.Strings(names)

	quoted := []string{g.Dialect.Quote(schema.IDColumn)}
	args := []any{id}
	for _, name := range names {
		quoted = append(quoted, g.Dialect.Quote(name))
		args = append(args, cols[name])
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		g.Dialect.QuoteTable(st), strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", "))
	g.exec(stmt, args...)
}

func (g *TestGraph) exec(stmt string, args ...any) {
	g.t.Helper()
	if _, err := g.DB.Exec(stmt, args...); err != nil {
		g.t.Fatalf("failed to exec %q: %v", stmt, err)
	}
}

// ModernGraphTopology is a small social graph used across tests.
func ModernGraphTopology() string {
	return `public_schema: main
schemas:
  main:
    vertices:
      Person:
        properties:
          - {name: name, type: string}
          - {name: age, type: integer}
      Software:
        properties:
          - {name: name, type: string}
          - {name: lang, type: string}
    edges:
      knows:
        out: [Person]
        in: [Person]
        properties:
          - {name: weight, type: double}
      created:
        out: [Person]
        in: [Software]
        properties:
          - {name: weight, type: double}
`
}

// ModernGraph builds the classic six-vertex graph: marko knows vadas and
// josh; marko, josh and peter created lop; josh created ripple.
func ModernGraph(t *testing.T) *TestGraph {
	t.Helper()
	return NewTestGraph(t, ModernGraphTopology()).
		AddVertex("Person", 1, map[string]any{"name": "marko", "age": 29}).
		AddVertex("Person", 2, map[string]any{"name": "vadas", "age": 27}).
		AddVertex("Person", 4, map[string]any{"name": "josh", "age": 32}).
		AddVertex("Person", 6, map[string]any{"name": "peter", "age": 35}).
		AddVertex("Software", 3, map[string]any{"name": "lop", "lang": "java"}).
		AddVertex("Software", 5, map[string]any{"name": "ripple", "lang": "java"}).
		AddEdge("knows", 7, "Person", 1, "Person", 2, map[string]any{"weight": 0.5}).
		AddEdge("knows", 8, "Person", 1, "Person", 4, map[string]any{"weight": 1.0}).
		AddEdge("created", 9, "Person", 1, "Software", 3, map[string]any{"weight": 0.4}).
		AddEdge("created", 10, "Person", 4, "Software", 5, map[string]any{"weight": 1.0}).
		AddEdge("created", 11, "Person", 4, "Software", 3, map[string]any{"weight": 0.4}).
		AddEdge("created", 12, "Person", 6, "Software", 3, map[string]any{"weight": 0.2})
}
