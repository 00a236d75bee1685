// Package dialect isolates the SQL differences between backends: identifier
// quoting, bind placeholders, column types and bulk loading of temporary
// tables.
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aidanlsb/sqlgraph/internal/schema"
)

// DefaultInlineListThreshold is the largest within/without operand list
// rendered inline as IN (...).
const DefaultInlineListThreshold = 1000

// Dialect is the backend-specific half of SQL generation and execution.
type Dialect interface {
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	PublicSchema() string
	Quote(ident string) string
	QuoteTable(st schema.SchemaTable) string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder(n int) string
	InlineListThreshold() int
	SupportsBulkMembership() bool
	ColumnType(t schema.PropertyType) string

	CreateTempTable(ctx context.Context, conn *sql.Conn, name, column, columnType string) error
	BulkCopy(ctx context.Context, conn *sql.Conn, name, column string, values []any) error
	DropTempTable(ctx context.Context, conn *sql.Conn, name string) error
}

// Options configures a dialect.
type Options struct {
	PublicSchema        string
	InlineListThreshold int
	BulkMembership      bool
}

// New returns the dialect registered under name ("sqlite" or "postgres").
func New(name string, opts Options) (Dialect, error) {
	if opts.InlineListThreshold <= 0 {
		opts.InlineListThreshold = DefaultInlineListThreshold
	}
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		if opts.PublicSchema == "" {
			opts.PublicSchema = "main"
		}
		return &SQLite{opts: opts}, nil
	case "postgres", "postgresql", "pgx":
		if opts.PublicSchema == "" {
			opts.PublicSchema = "public"
		}
		return &Postgres{opts: opts}, nil
	}
	return nil, fmt.Errorf("unknown dialect %q", name)
}

// Names lists the supported dialects.
func Names() []string {
	return []string{"sqlite", "postgres"}
}

// quoteIdent double-quotes an identifier, doubling embedded quotes.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
