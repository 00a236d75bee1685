package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/aidanlsb/sqlgraph/internal/schema"
)

// sqliteInsertBatch bounds the rows per INSERT so the bind count stays under
// SQLite's variable limit.
const sqliteInsertBatch = 500

// SQLite targets modernc.org/sqlite. Temporary tables live in the
// connection's temp schema and are loaded with batched multi-row INSERTs.
type SQLite struct {
	opts Options
}

func (d *SQLite) Name() string                 { return "sqlite" }
func (d *SQLite) DriverName() string           { return "sqlite" }
func (d *SQLite) PublicSchema() string         { return d.opts.PublicSchema }
func (d *SQLite) Quote(ident string) string    { return quoteIdent(ident) }
func (d *SQLite) Placeholder(int) string       { return "?" }
func (d *SQLite) InlineListThreshold() int     { return d.opts.InlineListThreshold }
func (d *SQLite) SupportsBulkMembership() bool { return d.opts.BulkMembership }

func (d *SQLite) QuoteTable(st schema.SchemaTable) string {
	return quoteIdent(st.Schema) + "." + quoteIdent(st.Table)
}

func (d *SQLite) ColumnType(t schema.PropertyType) string {
	switch t {
	case schema.TypeInteger, schema.TypeLong, schema.TypeBoolean, schema.TypeDuration, schema.TypePeriod:
		return "INTEGER"
	case schema.TypeDouble:
		return "REAL"
	}
	return "TEXT"
}

func (d *SQLite) CreateTempTable(ctx context.Context, conn *sql.Conn, name, column, columnType string) error {
	stmt := fmt.Sprintf("CREATE TEMP TABLE %s (%s %s)", quoteIdent(name), quoteIdent(column), columnType)
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create temp table %s: %w", name, err)
	}
	return nil
}

func (d *SQLite) BulkCopy(ctx context.Context, conn *sql.Conn, name, column string, values []any) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", quoteIdent(name), quoteIdent(column))
	for start := 0; start < len(values); start += sqliteInsertBatch {
		end := start + sqliteInsertBatch
		if end > len(values) {
			end = len(values)
		}
		batch := values[start:end]
		stmt := prefix + strings.TrimSuffix(strings.Repeat("(?),", len(batch)), ",")
		if _, err := tx.ExecContext(ctx, stmt, batch...); err != nil {
			return fmt.Errorf("load temp table %s: %w", name, err)
		}
	}
	return tx.Commit()
}

func (d *SQLite) DropTempTable(ctx context.Context, conn *sql.Conn, name string) error {
	_, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS temp."+quoteIdent(name))
	return err
}
