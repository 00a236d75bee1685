package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aidanlsb/sqlgraph/internal/atomicfile"
	"github.com/aidanlsb/sqlgraph/internal/sqlgen"
	"github.com/aidanlsb/sqlgraph/internal/ui"
)

// modeValue is a pflag.Value over sqlgen modes plus "all".
type modeValue struct {
	mode sqlgen.Mode
	all  bool
	raw  string
}

var _ pflag.Value = (*modeValue)(nil)

func newModeValue() *modeValue {
	return &modeValue{all: true, raw: "all"}
}

func (m *modeValue) String() string { return m.raw }

func (m *modeValue) Set(s string) error {
	mode, ok, err := sqlgen.ParseMode(s)
	if err != nil {
		return err
	}
	m.mode, m.all, m.raw = mode, !ok, strings.ToLower(s)
	if m.raw == "" {
		m.raw = "all"
	}
	return nil
}

func (m *modeValue) Type() string { return "mode" }

var (
	compileMode = newModeValue()
	compileOut  string
)

// StatementResult is one compiled statement in JSON output.
type StatementResult struct {
	Mode        string            `json:"mode"`
	Leaf        string            `json:"leaf"`
	SQL         string            `json:"sql"`
	Args        []any             `json:"args,omitempty"`
	Segments    int               `json:"segments"`
	Bulk        []BulkTableResult `json:"bulk,omitempty"`
	Fingerprint string            `json:"fingerprint"`
}

// BulkTableResult describes a temporary membership table a statement needs.
type BulkTableResult struct {
	Name    string `json:"name"`
	Column  string `json:"column"`
	Type    string `json:"type"`
	Values  int    `json:"values"`
	Without bool   `json:"without,omitempty"`
}

// PlanStatements groups the statements of one plan.
type PlanStatements struct {
	Name       string            `json:"name"`
	Source     string            `json:"source"`
	Statements []StatementResult `json:"statements"`
}

var compileCmd = &cobra.Command{
	Use:   "compile <plan>...",
	Short: "Compile traversal plans into SQL",
	Long: `Compiles every plan in the given files into SQL statements without
touching the database.

Examples:
  sqlgraph compile people.yaml
  sqlgraph compile notebook.md --mode optional
  sqlgraph compile plans/*.yaml --out build/traversals.sql
  sqlgraph compile people.yaml --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompile,
}

func runCompile(cmd *cobra.Command, args []string) error {
	start := time.Now()

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	plans, err := loadPlans(args)
	if err != nil {
		return err
	}

	compiled, err := compilePlans(cmd.Context(), env, plans, compileMode.mode, compileMode.all)
	if err != nil {
		return handleError(compileErrorCode(err), err, "")
	}

	var (
		results  []PlanStatements
		warnings []Warning
		count    int
	)
	for _, cp := range compiled {
		ps := PlanStatements{Name: cp.plan.Name, Source: cp.plan.Source}
		for _, st := range cp.statements {
			ps.Statements = append(ps.Statements, statementResult(st))
		}
		count += len(ps.Statements)
		results = append(results, ps)
		warnings = append(warnings, cp.warnings...)
	}

	if compileOut != "" {
		if err := writeSQLFile(compileOut, results); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}
	}

	elapsed := time.Since(start).Milliseconds()
	if isJSONOutput() {
		data := map[string]interface{}{"plans": results}
		if compileOut != "" {
			data["out"] = compileOut
		}
		outputSuccessWithWarnings(data, warnings, &Meta{Count: count, QueryTimeMs: elapsed})
		return nil
	}

	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, ui.Warningf("%s: %s", w.Plan, w.Message))
	}
	if compileOut != "" {
		fmt.Println(ui.Successf("Wrote %d statements to %s", count, ui.TableName(compileOut)))
		return nil
	}
	return writeSQL(os.Stdout, results)
}

func statementResult(st *sqlgen.Statement) StatementResult {
	r := StatementResult{
		Mode:        st.Mode.String(),
		Leaf:        st.Tree.Node(st.Path.Leaf()).Table.String(),
		SQL:         st.SQL,
		Args:        st.Args,
		Segments:    len(st.Segments),
		Fingerprint: st.Fingerprint,
	}
	for _, b := range st.Bulk {
		r.Bulk = append(r.Bulk, BulkTableResult{
			Name:    b.Name,
			Column:  b.Column,
			Type:    b.ColumnType,
			Values:  len(b.Values),
			Without: b.Without,
		})
	}
	return r
}

// writeSQL writes statements as a SQL script, each preceded by a comment
// naming its plan, mode and leaf table.
func writeSQL(w io.Writer, plans []PlanStatements) error {
	for _, p := range plans {
		for i, st := range p.Statements {
			if _, err := fmt.Fprintf(w, "-- %s #%d %s -> %s [%s]\n", p.Name, i+1, st.Mode, st.Leaf, st.Fingerprint); err != nil {
				return err
			}
			for _, b := range st.Bulk {
				if _, err := fmt.Fprintf(w, "-- needs temp table %s(%s %s) with %d values\n", b.Name, b.Column, b.Type, b.Values); err != nil {
					return err
				}
			}
			if len(st.Args) > 0 {
				if _, err := fmt.Fprintf(w, "-- args: %v\n", st.Args); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "%s;\n\n", st.SQL); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSQLFile(path string, plans []PlanStatements) error {
	f, err := atomicfile.Create(path, 0)
	if err != nil {
		return err
	}
	defer f.Abort()

	if err := writeSQL(f, plans); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Commit()
}

func init() {
	compileCmd.Flags().Var(compileMode, "mode", "Statements to compile: regular, optional, emit or all")
	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "", "Write the SQL script to this file instead of stdout")
	rootCmd.AddCommand(compileCmd)
}
