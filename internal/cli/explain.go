package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/sqlgraph/internal/alias"
	"github.com/aidanlsb/sqlgraph/internal/sqlgen"
	"github.com/aidanlsb/sqlgraph/internal/ui"
)

var explainRaw bool

var explainCmd = &cobra.Command{
	Use:   "explain <plan>...",
	Short: "Explain how plans compile: pruned trees, statements and aliases",
	Long: `Builds each plan, shows the pruned query tree of every root, and lists
every compiled statement with its bind arguments and column aliases.

The report is markdown. It is rendered for the terminal unless --raw is
given or stdout is not a terminal.

Examples:
  sqlgraph explain people.yaml
  sqlgraph explain people.yaml --raw > people.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	plans, err := loadPlans(args)
	if err != nil {
		return err
	}
	compiled, err := compilePlans(cmd.Context(), env, plans, sqlgen.ModeRegular, true)
	if err != nil {
		return handleError(compileErrorCode(err), err, "")
	}

	var sb strings.Builder
	var warnings []Warning
	for _, cp := range compiled {
		writeExplain(&sb, cp)
		warnings = append(warnings, cp.warnings...)
	}
	report := sb.String()

	if isJSONOutput() {
		outputSuccessWithWarnings(map[string]interface{}{"markdown": report}, warnings, &Meta{Count: len(compiled)})
		return nil
	}

	display := ui.NewDisplayContext()
	if explainRaw || !display.IsTTY {
		fmt.Print(report)
		return nil
	}
	rendered, err := ui.RenderMarkdown(report, display.TermWidth)
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.Warningf("markdown rendering failed: %v", err))
		fmt.Print(report)
		return nil
	}
	fmt.Print(rendered)
	return nil
}

func writeExplain(sb *strings.Builder, cp *compiledPlan) {
	fmt.Fprintf(sb, "# %s\n\n", cp.plan.Name)
	if cp.plan.Source != "" {
		fmt.Fprintf(sb, "Source: `%s`\n\n", cp.plan.Source)
	}
	for _, w := range cp.warnings {
		fmt.Fprintf(sb, "> %s %s\n\n", ui.SymbolWarning, w.Message)
	}

	for i, tr := range cp.trees {
		fmt.Fprintf(sb, "## Root %d\n\n", i+1)
		fmt.Fprintf(sb, "```text\n%s```\n\n", tr.String())
	}

	if len(cp.statements) == 0 {
		sb.WriteString("No statements.\n\n")
		return
	}

	sb.WriteString("## Statements\n\n")
	for i, st := range cp.statements {
		r := statementResult(st)
		fmt.Fprintf(sb, "### %d. %s -> %s\n\n", i+1, r.Mode, r.Leaf)
		if r.Segments > 1 {
			fmt.Fprintf(sb, "Split into %d segments because a table repeats on the path.\n\n", r.Segments)
		}
		fmt.Fprintf(sb, "```sql\n%s\n```\n\n", r.SQL)
		if len(r.Args) > 0 {
			sb.WriteString("Arguments:\n\n")
			for j, a := range r.Args {
				fmt.Fprintf(sb, "%d. `%v`\n", j+1, a)
			}
			sb.WriteString("\n")
		}
		for _, b := range r.Bulk {
			kind := "within"
			if b.Without {
				kind = "without"
			}
			fmt.Fprintf(sb, "- temp table `%s` (%s, %d values, %s)\n", b.Name, b.Type, b.Values, kind)
		}
		if len(r.Bulk) > 0 {
			sb.WriteString("\n")
		}
	}

	writeAliases(sb, cp.registry)
}

func writeAliases(sb *strings.Builder, reg *alias.Registry) {
	if reg.Len() == 0 {
		return
	}
	sb.WriteString("## Column aliases\n\n")
	sb.WriteString("| alias | table | column | labels |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, name := range reg.Names() {
		col, _ := reg.Column(name)
		labels := col.Labels
		if labels == alias.Hidden {
			labels = "(join key)"
		}
		fmt.Fprintf(sb, "| %s | %s | %s | %s |\n", name, col.Table, col.Name, labels)
	}
	sb.WriteString("\n")
}

func init() {
	explainCmd.Flags().BoolVar(&explainRaw, "raw", false, "Print the markdown source instead of rendering it")
	rootCmd.AddCommand(explainCmd)
}
