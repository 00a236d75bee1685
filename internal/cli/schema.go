package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/sqlgraph/internal/dialect"
	"github.com/aidanlsb/sqlgraph/internal/schema"
	"github.com/aidanlsb/sqlgraph/internal/ui"
)

// TableInfo describes one topology table in JSON output.
type TableInfo struct {
	Table   string   `json:"table"`
	Kind    string   `json:"kind"`
	Columns []string `json:"columns"`
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the graph topology",
	Long: `Lists every vertex and edge table of the topology with its physical
columns: identity, properties (with postfix columns) and edge foreign keys.

Examples:
  sqlgraph schema
  sqlgraph schema --schema other/topology.yaml --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		tables := describeTables(env.topo)
		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"public_schema": env.topo.PublicSchema,
				"tables":        tables,
			}, &Meta{Count: len(tables)})
			return nil
		}

		fmt.Printf("%s %s\n", ui.Header("Topology"), ui.Count(len(tables), "table", "tables"))
		tbl := ui.NewResultsTable(ui.NewDisplayContext(), ui.SchemaLayout)
		for _, t := range tables {
			tbl.AddRow(t.Table, strings.Join(t.Columns, ", "))
		}
		fmt.Println(tbl.Render())
		return nil
	},
}

var schemaDDLCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print the CREATE TABLE statements for the topology",
	Long: `Prints the DDL that lays the topology out in the configured dialect,
for seeding a scratch database. sqlgraph never runs it.

Examples:
  sqlgraph schema ddl
  sqlgraph schema ddl --dialect postgres > graph.sql`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		stmts := dialect.DDL(env.dialect, env.topo)

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"dialect":    env.dialect.Name(),
				"statements": stmts,
			}, &Meta{Count: len(stmts)})
			return nil
		}
		for _, stmt := range stmts {
			fmt.Printf("%s;\n\n", stmt)
		}
		return nil
	},
}

func describeTables(topo *schema.Topology) []TableInfo {
	var out []TableInfo
	for _, st := range topo.Tables() {
		info := TableInfo{Table: st.String(), Kind: st.Kind().String()}
		info.Columns = append(info.Columns, schema.IDColumn)
		props, _ := topo.Properties(st)
		for _, p := range props {
			info.Columns = append(info.Columns, p.Columns()...)
		}
		for _, fk := range topo.ForeignKeys(st) {
			info.Columns = append(info.Columns, fk.Column)
		}
		out = append(out, info)
	}
	return out
}

func init() {
	schemaCmd.AddCommand(schemaDDLCmd)
	rootCmd.AddCommand(schemaCmd)
}
