package dialect

import (
	"fmt"
	"strings"

	"github.com/aidanlsb/sqlgraph/internal/schema"
)

// CreateTableSQL renders the CREATE TABLE statement of one topology table:
// the identity column, every property column with its postfix columns, and
// the foreign-key columns of an edge.
func CreateTableSQL(d Dialect, cat schema.Catalog, st schema.SchemaTable) string {
	idType := d.ColumnType(schema.TypeLong)
	cols := []string{d.Quote(schema.IDColumn) + " " + idType + " PRIMARY KEY"}

	props, _ := cat.Properties(st)
	for _, p := range props {
		cols = append(cols, d.Quote(p.Name)+" "+d.ColumnType(p.Type))
		for _, pf := range p.Type.PostFixes() {
			typ := d.ColumnType(schema.TypeLong)
			if pf == schema.PostfixZoneID {
				typ = d.ColumnType(schema.TypeString)
			}
			cols = append(cols, d.Quote(p.Name+pf)+" "+typ)
		}
	}
	for _, fk := range cat.ForeignKeys(st) {
		cols = append(cols, d.Quote(fk.Column)+" "+idType)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", d.QuoteTable(st), strings.Join(cols, ",\n\t"))
}

// DDL returns the statements creating every table of topo, preceded on
// PostgreSQL by the schemas they live in.
func DDL(d Dialect, topo *schema.Topology) []string {
	tables := topo.Tables()
	var out []string
	if d.Name() == "postgres" {
		seen := make(map[string]bool)
		for _, st := range tables {
			if !seen[st.Schema] {
				seen[st.Schema] = true
				out = append(out, "CREATE SCHEMA IF NOT EXISTS "+d.Quote(st.Schema))
			}
		}
	}
	for _, st := range tables {
		out = append(out, CreateTableSQL(d, topo, st))
	}
	return out
}
