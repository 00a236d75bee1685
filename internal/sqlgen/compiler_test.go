package sqlgen

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/sqlgraph/internal/alias"
	"github.com/aidanlsb/sqlgraph/internal/dialect"
	"github.com/aidanlsb/sqlgraph/internal/querytree"
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
	require.NoError(t, topo.AddVertex("public", "Person",
		schema.Property{Name: "name", Type: schema.TypeString},
		schema.Property{Name: "age", Type: schema.TypeInteger}))
	require.NoError(t, topo.AddVertex("public", "Software",
		schema.Property{Name: "name", Type: schema.TypeString},
		schema.Property{Name: "released", Type: schema.TypeZonedDateTime}))
	require.NoError(t, topo.AddEdge("public", "knows", []schema.SchemaTable{person}, []schema.SchemaTable{person}))
	require.NoError(t, topo.AddEdge("public", "created", []schema.SchemaTable{person}, []schema.SchemaTable{software},
		schema.Property{Name: "weight", Type: schema.TypeDouble}))
	return topo
}

func testCompiler(t *testing.T, name string, threshold int) *Compiler {
	t.Helper()
	d, err := dialect.New(name, dialect.Options{PublicSchema: "public", InlineListThreshold: threshold, BulkMembership: true})
	require.NoError(t, err)
	return New(d, WithTempNames(func(key string) string { return "V_BULK_" + key }))
}

func outStep(tr *querytree.Tree, from querytree.NodeID, edge, vertex schema.SchemaTable, labels ...string) querytree.NodeID {
	e := tr.AddChild(from, querytree.ChildSpec{Table: edge, Direction: schema.DirectionOut, Element: querytree.ElementVertex})
	return tr.AddChild(e, querytree.ChildSpec{Table: vertex, Direction: schema.DirectionOut, Element: querytree.ElementVertex, Labels: labels})
}

func onlyPath(t *testing.T, tr *querytree.Tree) querytree.Path {
	t.Helper()
	tr.Prune(tr.Depth())
	paths := tr.ExtractDistinctPaths()
	require.Len(t, paths, 1)
	return paths[0]
}

func TestCompileSinglePath(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person, Step: querytree.StepVertex, StartID: int64(1)})
	outStep(tr, tr.Root(), knows, person)
	p := onlyPath(t, tr)

	reg := alias.NewRegistry()
	st, err := testCompiler(t, "sqlite", 1000).Compile(tr, p, reg)
	require.NoError(t, err)

	want := `SELECT
	t2."ID" AS "alias1",
	t2."name" AS "alias2",
	t2."age" AS "alias3"
FROM "public"."V_Person" AS t0
LEFT JOIN "public"."E_knows" AS t1 ON t0."ID" = t1."public.Person__O"
LEFT JOIN "public"."V_Person" AS t2 ON t1."public.Person__I" = t2."ID"
WHERE t0."ID" = ?`
	assert.Equal(t, want, st.SQL)
	assert.Equal(t, []any{int64(1)}, st.Args)
	assert.Len(t, st.Segments, 1)
	assert.Equal(t, ModeRegular, st.Mode)
	assert.Len(t, st.Fingerprint, 16)

	col, ok := reg.Column("alias2")
	require.True(t, ok)
	assert.Equal(t, alias.Column{Table: person, Name: "name"}, col)
}

func TestCompileGraphStepHasNoStartCondition(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person})
	p := onlyPath(t, tr)

	st, err := testCompiler(t, "sqlite", 1000).Compile(tr, p, alias.NewRegistry())
	require.NoError(t, err)
	assert.NotContains(t, st.SQL, "WHERE")
	assert.NotContains(t, st.SQL, "JOIN")
	assert.Contains(t, st.SQL, `t0."ID" AS "alias1"`)
}

func TestCompileEdgeProjectsForeignKeys(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person})
	tr.AddChild(tr.Root(), querytree.ChildSpec{Table: created, Direction: schema.DirectionOut, Element: querytree.ElementEdge})
	p := onlyPath(t, tr)

	st, err := testCompiler(t, "sqlite", 1000).Compile(tr, p, alias.NewRegistry())
	require.NoError(t, err)
	for _, frag := range []string{`t1."weight"`, `t1."public.Person__O"`, `t1."public.Software__I"`} {
		assert.Contains(t, st.SQL, frag)
	}
}

func TestCompileInDirectionAndEdgeVertexStep(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: software})
	e := tr.AddChild(tr.Root(), querytree.ChildSpec{Table: created, Direction: schema.DirectionIn, Element: querytree.ElementEdge})
	tr.AddChild(e, querytree.ChildSpec{Table: person, Direction: schema.DirectionOut, Element: querytree.ElementVertex, EdgeVertexStep: true})
	p := onlyPath(t, tr)

	st, err := testCompiler(t, "sqlite", 1000).Compile(tr, p, alias.NewRegistry())
	require.NoError(t, err)
	assert.Contains(t, st.SQL, `LEFT JOIN "public"."E_created" AS t1 ON t0."ID" = t1."public.Software__I"`)
	assert.Contains(t, st.SQL, `LEFT JOIN "public"."V_Person" AS t2 ON t1."public.Person__O" = t2."ID"`)
}

func TestCompileDirectionMatchesForeignKeySuffix(t *testing.T) {
	for _, dir := range []schema.Direction{schema.DirectionIn, schema.DirectionOut} {
		tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person})
		e := tr.AddChild(tr.Root(), querytree.ChildSpec{Table: knows, Direction: dir, Element: querytree.ElementVertex})
		tr.AddChild(e, querytree.ChildSpec{Table: person, Direction: dir, Element: querytree.ElementVertex})
		p := onlyPath(t, tr)

		st, err := testCompiler(t, "sqlite", 1000).Compile(tr, p, alias.NewRegistry())
		require.NoError(t, err)

		near, far := dir.Suffix(), dir.Opposite().Suffix()
		assert.Contains(t, st.SQL, `t0."ID" = t1."public.Person`+near+`"`, dir.String())
		assert.Contains(t, st.SQL, `t1."public.Person`+far+`" = t2."ID"`, dir.String())
	}
}

func TestCompileSplitsDuplicateTables(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person})
	a := outStep(tr, tr.Root(), knows, person, "a")
	outStep(tr, a, knows, person)
	p := onlyPath(t, tr)

	reg := alias.NewRegistry()
	st, err := testCompiler(t, "sqlite", 1000).Compile(tr, p, reg)
	require.NoError(t, err)

	require.Len(t, st.Segments, 2)
	assert.Equal(t, 3, strings.Count(st.SQL, "SELECT"))
	assert.Contains(t, st.SQL, ") a1\nINNER JOIN (")
	assert.Contains(t, st.SQL, `) a2 ON a1."alias1" = a2."alias7"`)

	// Labeled "a" columns and the leaf's unlabeled columns are both projected.
	labeledID, ok := reg.Column("alias1")
	require.True(t, ok)
	assert.Equal(t, alias.Column{Labels: "a", Table: person, Name: "ID"}, labeledID)
	leafID, ok := reg.Column("alias4")
	require.True(t, ok)
	assert.Equal(t, alias.Column{Table: person, Name: "ID"}, leafID)
	assert.Contains(t, st.SQL, `a1."alias1" AS "alias1"`)
	assert.Contains(t, st.SQL, `a2."alias4" AS "alias4"`)

	// Join keys are projected by the segments but not by the outer SELECT.
	boundary, ok := reg.Column("alias7")
	require.True(t, ok)
	assert.True(t, boundary.IsHidden())
	assert.NotContains(t, st.SQL, `a2."alias7" AS`)
}

func TestCompileSplitOrdersOnlyInOuterSelect(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person})
	a := outStep(tr, tr.Root(), knows, person, "a")
	leaf := outStep(tr, a, knows, person)
	tr.Node(leaf).Orderings = []querytree.Ordering{
		querytree.BySelect("a", "name", querytree.Desc),
		querytree.By("age", querytree.Asc),
	}
	p := onlyPath(t, tr)

	st, err := testCompiler(t, "sqlite", 1000).Compile(tr, p, alias.NewRegistry())
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(st.SQL, "ORDER BY"))
	assert.True(t, strings.HasSuffix(st.SQL, `ORDER BY a1."alias2" DESC, a2."alias6" ASC`), st.SQL)
}

func TestCompileSingleOrderBy(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person, Labels: []string{"a"}})
	leaf := outStep(tr, tr.Root(), created, software)
	tr.Node(leaf).Orderings = []querytree.Ordering{querytree.BySelect("a", "age", querytree.Desc), querytree.By("name", querytree.Asc)}
	p := onlyPath(t, tr)

	st, err := testCompiler(t, "sqlite", 1000).Compile(tr, p, alias.NewRegistry())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(st.SQL, `ORDER BY t0."age" DESC, t2."name" ASC`), st.SQL)
}

func TestCompileOrderByMissingLabel(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person})
	leaf := outStep(tr, tr.Root(), knows, person)
	tr.Node(leaf).Orderings = []querytree.Ordering{querytree.BySelect("nope", "name", querytree.Asc)}
	p := onlyPath(t, tr)

	_, err := testCompiler(t, "sqlite", 1000).Compile(tr, p, alias.NewRegistry())
	assert.True(t, errors.Is(err, querytree.ErrStructuralViolation), "got %v", err)
}

func TestCompileFilters(t *testing.T) {
	tests := []struct {
		name     string
		filter   querytree.Filter
		wantSQL  string
		wantArgs []any
	}{
		{"eq", querytree.Has("name", querytree.PredEq, "marko"), `t0."name" = ?`, []any{"marko"}},
		{"neq", querytree.Has("age", querytree.PredNeq, 3), `t0."age" <> ?`, []any{3}},
		{"gte", querytree.Has("age", querytree.PredGte, 30), `t0."age" >= ?`, []any{30}},
		{"id", querytree.Has(querytree.IDKey, querytree.PredLt, int64(9)), `t0."ID" < ?`, []any{int64(9)}},
		{"within", querytree.Within("name", "a", "b"), `t0."name" IN (?, ?)`, []any{"a", "b"}},
		{"without", querytree.Without("name", "a"), `t0."name" NOT IN (?)`, []any{"a"}},
		{"startsWith", querytree.Has("name", querytree.PredStartsWith, "ma_"), `t0."name" LIKE ? ESCAPE '\'`, []any{`ma\_%`}},
		{"endsWith", querytree.Has("name", querytree.PredEndsWith, "ko"), `t0."name" LIKE ? ESCAPE '\'`, []any{"%ko"}},
		{"contains", querytree.Has("name", querytree.PredContains, "50%"), `t0."name" LIKE ? ESCAPE '\'`, []any{`%50\%%`}},
		{"notContains", querytree.Has("name", querytree.PredNotContains, "x"), `t0."name" NOT LIKE ? ESCAPE '\'`, []any{"%x%"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person, Filters: []querytree.Filter{tt.filter}})
			p := onlyPath(t, tr)

			st, err := testCompiler(t, "sqlite", 1000).Compile(tr, p, alias.NewRegistry())
			require.NoError(t, err)
			assert.Contains(t, st.SQL, "WHERE "+tt.wantSQL)
			assert.Equal(t, tt.wantArgs, st.Args)
		})
	}
}

func TestCompilePostgresPlaceholdersFollowTextOrder(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{
		Table:   person,
		Step:    querytree.StepVertex,
		StartID: int64(7),
		Filters: []querytree.Filter{querytree.Within("name", "a", "b"), querytree.Has("age", querytree.PredGt, 1)},
	})
	p := onlyPath(t, tr)

	st, err := testCompiler(t, "postgres", 1000).Compile(tr, p, alias.NewRegistry())
	require.NoError(t, err)
	assert.Contains(t, st.SQL, `WHERE t0."ID" = $1 AND t0."name" IN ($2, $3) AND t0."age" > $4`)
	assert.Equal(t, []any{int64(7), "a", "b", 1}, st.Args)
}

func TestCompileBulkWithin(t *testing.T) {
	values := make([]any, 50000)
	for i := range values {
		values[i] = int64(i)
	}
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person})
	leaf := outStep(tr, tr.Root(), knows, person)
	tr.Node(leaf).Filters = []querytree.Filter{querytree.Within(querytree.IDKey, values...)}
	p := onlyPath(t, tr)

	st, err := testCompiler(t, "sqlite", 1000).Compile(tr, p, alias.NewRegistry())
	require.NoError(t, err)

	assert.Contains(t, st.SQL, `INNER JOIN "V_BULK_~id" AS m0 ON t2."ID" = m0."within"`)
	assert.NotContains(t, st.SQL, " IN (")
	assert.Empty(t, st.Args)
	require.Len(t, st.Bulk, 1)
	assert.Equal(t, WithinColumn, st.Bulk[0].Column)
	assert.Len(t, st.Bulk[0].Values, 50000)
	assert.False(t, st.Bulk[0].Without)
}

func TestCompileBulkDropsRepeatedValues(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person, Filters: []querytree.Filter{
		querytree.Within(querytree.IDKey, int64(4), int64(1), int64(4), int64(2), int64(1), "4"),
	}})
	p := onlyPath(t, tr)

	st, err := testCompiler(t, "sqlite", 2).Compile(tr, p, alias.NewRegistry())
	require.NoError(t, err)
	require.Len(t, st.Bulk, 1)
	assert.Equal(t, []any{int64(4), int64(1), int64(2), "4"}, st.Bulk[0].Values)
}

func TestCompileBulkWithout(t *testing.T) {
	values := make([]any, 5)
	for i := range values {
		values[i] = "n" + string(rune('a'+i))
	}
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person, Filters: []querytree.Filter{querytree.Without("name", values...)}})
	p := onlyPath(t, tr)

	st, err := testCompiler(t, "sqlite", 2).Compile(tr, p, alias.NewRegistry())
	require.NoError(t, err)
	assert.Contains(t, st.SQL, `LEFT JOIN "V_BULK_name" AS m0 ON t0."name" = m0."without"`)
	assert.Contains(t, st.SQL, `WHERE m0."without" IS NULL`)
	require.Len(t, st.Bulk, 1)
	assert.Equal(t, "TEXT", st.Bulk[0].ColumnType)
}

func TestCompileBelowThresholdStaysInline(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person, Filters: []querytree.Filter{querytree.Within("age", 1, 2, 3)}})
	p := onlyPath(t, tr)

	st, err := testCompiler(t, "sqlite", 3).Compile(tr, p, alias.NewRegistry())
	require.NoError(t, err)
	assert.Empty(t, st.Bulk)
	assert.Contains(t, st.SQL, `t0."age" IN (?, ?, ?)`)
}

func TestCompileOptional(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person})
	opt := tr.AddChild(tr.Root(), querytree.ChildSpec{
		Table: created, Direction: schema.DirectionOut, Element: querytree.ElementEdge, Optional: true,
		Filters: []querytree.Filter{querytree.Has("weight", querytree.PredGt, 0.5)},
	})
	tr.AddChild(opt, querytree.ChildSpec{Table: software, Direction: schema.DirectionIn, Element: querytree.ElementVertex, EdgeVertexStep: true})
	tr.Prune(tr.Depth())

	opts := tr.OptionalPaths()
	require.Len(t, opts, 1)

	st, err := testCompiler(t, "sqlite", 1000).CompileOptional(tr, opts[0], alias.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, ModeOptional, st.Mode)
	assert.Contains(t, st.SQL, `LEFT JOIN "public"."E_created" AS o0 ON t0."ID" = o0."public.Person__O" AND o0."weight" > ?`)
	assert.Contains(t, st.SQL, `WHERE o0."ID" IS NULL`)
	assert.Contains(t, st.SQL, `t0."ID" AS "alias1"`)
	assert.Equal(t, []any{0.5}, st.Args)
}

func TestCompileAll(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person})
	e := tr.AddChild(tr.Root(), querytree.ChildSpec{Table: knows, Direction: schema.DirectionOut, Element: querytree.ElementVertex})
	mid := tr.AddChild(e, querytree.ChildSpec{Table: person, Direction: schema.DirectionOut, Element: querytree.ElementVertex, Emit: true})
	outStep(tr, mid, knows, person)
	tr.Prune(tr.Depth())

	stmts, err := testCompiler(t, "sqlite", 1000).CompileAll(tr, alias.NewRegistry())
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, ModeRegular, stmts[0].Mode)
	assert.Equal(t, ModeEmit, stmts[1].Mode)
	assert.Equal(t, mid, stmts[1].Path.Leaf())
}

func TestCompileAllIsAllOrNothing(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person})
	leaf := outStep(tr, tr.Root(), knows, person)
	tr.Node(leaf).Filters = []querytree.Filter{{Key: "name", Predicate: querytree.PredicateKind(42), Value: "x"}}
	tr.Prune(tr.Depth())

	stmts, err := testCompiler(t, "sqlite", 1000).CompileAll(tr, alias.NewRegistry())
	assert.Nil(t, stmts)
	assert.True(t, errors.Is(err, querytree.ErrUnsupportedPredicate), "got %v", err)
}

func TestAliasRoundTrip(t *testing.T) {
	tr := querytree.New(testCatalog(t), querytree.RootSpec{Table: person, Labels: []string{"x", "a"}})
	outStep(tr, tr.Root(), created, software, "b")
	p := onlyPath(t, tr)

	reg := alias.NewRegistry()
	_, err := testCompiler(t, "sqlite", 1000).Compile(tr, p, reg)
	require.NoError(t, err)

	for i := 1; i <= reg.Len(); i++ {
		name := alias.Prefix + strconv.Itoa(i)
		col, ok := reg.Column(name)
		require.True(t, ok, name)
		assert.Contains(t, reg.Aliases(col), name)
	}
	col, ok := reg.Column("alias1")
	require.True(t, ok)
	assert.Equal(t, "a.x", col.Labels)
}

func TestTempTableName(t *testing.T) {
	a := TempTableName("first name")
	b := TempTableName("first name")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "V_BULK_first_name_"), a)
	assert.True(t, strings.HasPrefix(TempTableName("~id"), "V_BULK_id_"))
}

func TestParseMode(t *testing.T) {
	m, ok, err := ParseMode("emit")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ModeEmit, m)

	_, ok, err = ParseMode("all")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseMode("sideways")
	assert.Error(t, err)
}
