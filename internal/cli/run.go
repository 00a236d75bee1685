package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/sqlgraph/internal/materialize"
	"github.com/aidanlsb/sqlgraph/internal/ui"
)

var (
	runLimit     int
	runBatchSize int
)

// ResultItem is one materialized result in JSON output.
type ResultItem struct {
	Mode    string                            `json:"mode"`
	Element *materialize.Element              `json:"element"`
	Labeled map[string][]*materialize.Element `json:"labeled,omitempty"`
}

// PlanResults groups the results of one plan.
type PlanResults struct {
	Name      string       `json:"name"`
	Source    string       `json:"source"`
	Results   []ResultItem `json:"results"`
	Truncated bool         `json:"truncated,omitempty"`
}

type resultSource interface {
	Next() bool
	Result() materialize.Result
}

// collectResults drains src until it is exhausted or holds limit results
// (limit <= 0 means no limit). Next is not called again once the limit is
// reached. truncated reports that the limit was hit.
func collectResults(src resultSource, limit int) (items []ResultItem, truncated bool) {
	for {
		if limit > 0 && len(items) >= limit {
			return items, true
		}
		if !src.Next() {
			return items, false
		}
		r := src.Result()
		items = append(items, ResultItem{
			Mode:    r.Mode.String(),
			Element: r.Element,
			Labeled: r.Labeled,
		})
	}
}

var runCmd = &cobra.Command{
	Use:   "run <plan>...",
	Short: "Run traversal plans against the database",
	Long: `Compiles each plan, runs its statements against the configured database
and prints the materialized elements: regular paths first, then optional
branches, then emitted steps.

Examples:
  sqlgraph run people.yaml
  sqlgraph run people.yaml --limit 20
  sqlgraph run notebook.md --db postgres://localhost/graph --dialect postgres
  sqlgraph run people.yaml --metrics-addr :9102 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	plans, err := loadPlans(args)
	if err != nil {
		return err
	}

	stopMetrics := startMetricsServer(getConfig().Metrics.Addr)
	defer stopMetrics()

	db, err := openDatabase(ctx, env.dialect)
	if err != nil {
		return handleError(ErrDatabaseError, err, "Check database.dsn in config.toml or pass --db")
	}
	defer db.Close()

	batch := runBatchSize
	if batch <= 0 {
		batch = getConfig().Materialize.BatchSize
	}

	var (
		results  []PlanResults
		warnings []Warning
		count    int
	)
	for _, p := range plans {
		trees, err := p.Build(env.topo)
		if err != nil {
			return handleError(ErrPlanInvalid, fmt.Errorf("plan %s: %w", p.Name, err), "")
		}
		warnings = append(warnings, treeWarnings(p, trees)...)

		var spinner *ui.Spinner
		if !isJSONOutput() {
			spinner = ui.NewSpinner(os.Stderr, "Running "+p.Name)
			spinner.Start()
		}

		it := materialize.New(ctx, db, env.compiler, trees, materialize.Options{
			BatchSize: batch,
			Logger:    getLogger(),
		})
		pr := PlanResults{Name: p.Name, Source: p.Source}
		pr.Results, pr.Truncated = collectResults(it, runLimit)
		closeErr := it.Close()
		if spinner != nil {
			spinner.Stop()
		}

		if err := it.Err(); err != nil && !pr.Truncated {
			return handleError(runErrorCode(err), fmt.Errorf("plan %s: %w", p.Name, err), "")
		}
		if closeErr != nil {
			getLogger().WithError(closeErr).WithField("plan", p.Name).Warn("cleanup after run failed")
		}
		count += len(pr.Results)
		results = append(results, pr)
	}

	elapsed := time.Since(start).Milliseconds()
	if isJSONOutput() {
		outputSuccessWithWarnings(map[string]interface{}{"plans": results}, warnings, &Meta{Count: count, QueryTimeMs: elapsed})
		return nil
	}

	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, ui.Warningf("%s: %s", w.Plan, w.Message))
	}
	display := ui.NewDisplayContext()
	for _, pr := range results {
		fmt.Printf("%s %s\n", ui.Header(pr.Name), ui.Count(len(pr.Results), "result", "results"))
		if len(pr.Results) == 0 {
			fmt.Println(ui.Hint("  no results"))
			continue
		}
		tbl := ui.NewResultsTable(display, ui.ResultLayout)
		for i, r := range pr.Results {
			tbl.AddRow(ui.FormatRowNum(i+1, len(pr.Results)), formatElement(r.Element), formatProperties(r.Element), formatLabels(r))
		}
		fmt.Println(tbl.Render())
		if pr.Truncated {
			fmt.Println(ui.Hint(fmt.Sprintf("  stopped after %d results (--limit)", runLimit)))
		}
	}
	return nil
}

// runErrorCode maps an iteration error to its code. Validation failures are
// compile errors; anything else came from the database.
func runErrorCode(err error) string {
	if code := compileErrorCode(err); code != ErrInternal {
		return code
	}
	return ErrDatabaseError
}

func formatElement(e *materialize.Element) string {
	if e == nil {
		return ""
	}
	s := fmt.Sprintf("%s:%d", e.Table.Table, e.ID)
	if e.IsEdge() {
		if out, outID, ok := e.OutVertex(); ok {
			if in, inID, ok := e.InVertex(); ok {
				s += fmt.Sprintf(" (%s:%d -> %s:%d)", out.Table, outID, in.Table, inID)
			}
		}
	}
	return s
}

func formatProperties(e *materialize.Element) string {
	if e == nil || len(e.Properties) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Properties))
	for k := range e.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := e.Properties[k]
		if v == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}

func formatLabels(r ResultItem) string {
	labels := make([]string, 0, len(r.Labeled))
	for l, els := range r.Labeled {
		for _, e := range els {
			labels = append(labels, fmt.Sprintf("%s=%s:%d", l, e.Table.Table, e.ID))
		}
	}
	sort.Strings(labels)
	if r.Mode != "regular" {
		labels = append(labels, "("+r.Mode+")")
	}
	return strings.Join(labels, " ")
}

func init() {
	runCmd.Flags().IntVarP(&runLimit, "limit", "n", 0, "Stop each plan after this many results (0 = no limit)")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "Rows decoded per fetch (overrides materialize.batch_size)")
	rootCmd.AddCommand(runCmd)
}
