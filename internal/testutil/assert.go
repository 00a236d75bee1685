package testutil

import (
	"slices"
	"testing"

	"github.com/aidanlsb/sqlgraph/internal/schema"
)

// AssertRowCount checks how many rows st holds.
func (g *TestGraph) AssertRowCount(st schema.SchemaTable, want int) {
	g.t.Helper()
	if got := g.Count(st); got != want {
		g.t.Errorf("%s: %d rows, want %d", st, got, want)
	}
}

// AssertNoTempTables checks that every bulk membership table was dropped.
// Only call it once no iterator holds a connection.
func (g *TestGraph) AssertNoTempTables() {
	g.t.Helper()
	rows, err := g.DB.Query("SELECT name FROM temp.sqlite_master WHERE type = 'table'")
	if err != nil {
		g.t.Fatalf("list temp tables: %v", err)
	}
	defer rows.Close()
	var left []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			g.t.Fatalf("scan temp table: %v", err)
		}
		left = append(left, name)
	}
	if err := rows.Err(); err != nil {
		g.t.Fatalf("list temp tables: %v", err)
	}
	if len(left) > 0 {
		g.t.Errorf("temp tables left behind: %v", left)
	}
}

func (r *CLIResult) warningCodes() []string {
	codes := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		codes = append(codes, w.Code)
	}
	return codes
}

// AssertHasWarning checks that the envelope carries a warning with code.
func (r *CLIResult) AssertHasWarning(t *testing.T, code string) {
	t.Helper()
	if codes := r.warningCodes(); !slices.Contains(codes, code) {
		t.Errorf("warning %s missing; got %v", code, codes)
	}
}

// AssertNoWarnings checks that the envelope carries no warnings.
func (r *CLIResult) AssertNoWarnings(t *testing.T) {
	t.Helper()
	if len(r.Warnings) > 0 {
		t.Errorf("unexpected warnings: %v", r.warningCodes())
	}
}

// AssertResultCount checks the length of the list under data[key].
func (r *CLIResult) AssertResultCount(t *testing.T, key string, want int) {
	t.Helper()
	if got := len(r.DataList(key)); got != want {
		t.Errorf("data.%s has %d entries, want %d\nRaw: %s", key, got, want, r.RawJSON)
	}
}
