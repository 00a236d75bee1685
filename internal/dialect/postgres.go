package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/aidanlsb/sqlgraph/internal/schema"
)

// Postgres targets PostgreSQL through pgx's database/sql driver. Bulk
// membership tables are streamed with COPY.
type Postgres struct {
	opts Options
}

func (d *Postgres) Name() string                 { return "postgres" }
func (d *Postgres) DriverName() string           { return "pgx" }
func (d *Postgres) PublicSchema() string         { return d.opts.PublicSchema }
func (d *Postgres) Quote(ident string) string    { return quoteIdent(ident) }
func (d *Postgres) Placeholder(n int) string     { return "$" + strconv.Itoa(n) }
func (d *Postgres) InlineListThreshold() int     { return d.opts.InlineListThreshold }
func (d *Postgres) SupportsBulkMembership() bool { return d.opts.BulkMembership }

func (d *Postgres) QuoteTable(st schema.SchemaTable) string {
	return pgx.Identifier{st.Schema, st.Table}.Sanitize()
}

func (d *Postgres) ColumnType(t schema.PropertyType) string {
	switch t {
	case schema.TypeInteger, schema.TypePeriod:
		return "INTEGER"
	case schema.TypeLong, schema.TypeDuration:
		return "BIGINT"
	case schema.TypeDouble:
		return "DOUBLE PRECISION"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeJSON:
		return "JSONB"
	case schema.TypeZonedDateTime:
		return "TIMESTAMP"
	}
	return "TEXT"
}

func (d *Postgres) CreateTempTable(ctx context.Context, conn *sql.Conn, name, column, columnType string) error {
	stmt := fmt.Sprintf("CREATE TEMP TABLE %s (%s %s)", quoteIdent(name), quoteIdent(column), columnType)
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create temp table %s: %w", name, err)
	}
	return nil
}

func (d *Postgres) BulkCopy(ctx context.Context, conn *sql.Conn, name, column string, values []any) error {
	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{v}
	}
	return conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("bulk copy needs a pgx connection, got %T", driverConn)
		}
		n, err := sc.Conn().CopyFrom(ctx, pgx.Identifier{name}, []string{column}, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy into %s: %w", name, err)
		}
		if int(n) != len(values) {
			return fmt.Errorf("copy into %s: wrote %d of %d rows", name, n, len(values))
		}
		return nil
	})
}

func (d *Postgres) DropTempTable(ctx context.Context, conn *sql.Conn, name string) error {
	_, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name))
	return err
}
