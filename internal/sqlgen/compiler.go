// Package sqlgen turns query-tree paths into SQL statements. Compilation is a
// pure function of the tree, the path and the dialect; the only side effect
// is alias registration in the caller's registry.
package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"github.com/aidanlsb/sqlgraph/internal/alias"
	"github.com/aidanlsb/sqlgraph/internal/dialect"
	"github.com/aidanlsb/sqlgraph/internal/metrics"
	"github.com/aidanlsb/sqlgraph/internal/querytree"
)

// Mode is the materialization mode a statement belongs to.
type Mode int

const (
	ModeRegular Mode = iota
	ModeOptional
	ModeEmit
)

func (m Mode) String() string {
	switch m {
	case ModeRegular:
		return "regular"
	case ModeOptional:
		return "optional"
	case ModeEmit:
		return "emit"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts "regular", "optional", "emit" and "all" ("all" returns
// ok=false for the mode and must be handled by the caller).
func ParseMode(s string) (Mode, bool, error) {
	switch strings.ToLower(s) {
	case "regular":
		return ModeRegular, true, nil
	case "optional":
		return ModeOptional, true, nil
	case "emit":
		return ModeEmit, true, nil
	case "", "all":
		return ModeRegular, false, nil
	}
	return ModeRegular, false, fmt.Errorf("unknown mode %q", s)
}

// BulkTable is a temporary membership table a statement joins against. It
// must exist, loaded with Values, before the statement runs.
type BulkTable struct {
	Name       string
	Column     string
	ColumnType string
	Values     []any
	Without    bool
}

// Statement is one compiled SQL statement.
type Statement struct {
	Mode        Mode
	Tree        *querytree.Tree
	Path        querytree.Path
	Branches    []querytree.NodeID
	Segments    [][]querytree.NodeID
	SQL         string
	Args        []any
	Bulk        []BulkTable
	Fingerprint string
}

// Compiler compiles paths of query trees. It holds no per-query state and is
// safe for concurrent use; every call takes the caller's registry.
type Compiler struct {
	dialect  dialect.Dialect
	log      *logrus.Entry
	tempName func(key string) string
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger routes compiler debug logging to log.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Compiler) {
		c.log = log.WithField("component", "sqlgen")
	}
}

// WithTempNames overrides temporary table naming.
func WithTempNames(fn func(key string) string) Option {
	return func(c *Compiler) {
		c.tempName = fn
	}
}

// New creates a compiler for d.
func New(d dialect.Dialect, opts ...Option) *Compiler {
	c := &Compiler{
		dialect:  d,
		log:      logrus.WithField("component", "sqlgen"),
		tempName: TempTableName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() dialect.Dialect { return c.dialect }

// Compile compiles a regular path.
func (c *Compiler) Compile(tree *querytree.Tree, p querytree.Path, reg *alias.Registry) (*Statement, error) {
	return c.compile(tree, ModeRegular, p, nil, reg)
}

// CompileOptional compiles the statement projecting op.Path's node where none
// of op.Branches exists.
func (c *Compiler) CompileOptional(tree *querytree.Tree, op querytree.OptionalPath, reg *alias.Registry) (*Statement, error) {
	return c.compile(tree, ModeOptional, op.Path, op.Branches, reg)
}

// CompileEmit compiles the statement projecting an intermediate emit step.
func (c *Compiler) CompileEmit(tree *querytree.Tree, p querytree.Path, reg *alias.Registry) (*Statement, error) {
	return c.compile(tree, ModeEmit, p, nil, reg)
}

// CompileMode compiles every statement of one mode, in path order.
func (c *Compiler) CompileMode(tree *querytree.Tree, mode Mode, reg *alias.Registry) ([]*Statement, error) {
	var out []*Statement
	switch mode {
	case ModeRegular:
		for _, p := range tree.ExtractDistinctPaths() {
			st, err := c.Compile(tree, p, reg)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
	case ModeOptional:
		for _, op := range tree.OptionalPaths() {
			st, err := c.CompileOptional(tree, op, reg)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
	case ModeEmit:
		for _, p := range tree.EmitPaths() {
			st, err := c.CompileEmit(tree, p, reg)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
	default:
		return nil, fmt.Errorf("unknown mode %d", mode)
	}
	return out, nil
}

// CompileAll compiles every regular, optional and emit statement of tree.
// Either every statement compiles or none is returned.
func (c *Compiler) CompileAll(tree *querytree.Tree, reg *alias.Registry) ([]*Statement, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	var out []*Statement
	for _, mode := range []Mode{ModeRegular, ModeOptional, ModeEmit} {
		stmts, err := c.CompileMode(tree, mode, reg)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

// Validate checks tree and compiles all of its statements into a scratch
// registry, so failures surface before anything is executed.
func (c *Compiler) Validate(tree *querytree.Tree) error {
	_, err := c.CompileAll(tree, alias.NewRegistry())
	return err
}

func (c *Compiler) compile(tree *querytree.Tree, mode Mode, p querytree.Path, branches []querytree.NodeID, reg *alias.Registry) (*Statement, error) {
	start := time.Now()

	b := newBuilder(c, tree, reg)
	segments := tree.Segments(p)

	var (
		text string
		err  error
	)
	if len(segments) == 1 {
		text, err = b.single(p, branches)
	} else {
		text, err = b.split(p, segments, branches)
	}
	if err != nil {
		return nil, fmt.Errorf("compile %s path to %s: %w", mode, tree.Node(p.Leaf()).Table, err)
	}

	st := &Statement{
		Mode:        mode,
		Tree:        tree,
		Path:        p,
		Branches:    branches,
		Segments:    segments,
		SQL:         text,
		Args:        b.args,
		Bulk:        b.bulk,
		Fingerprint: Fingerprint(text),
	}

	metrics.StatementsCompiled.WithLabelValues(mode.String()).Inc()
	metrics.CompileDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
	c.log.WithFields(logrus.Fields{
		"mode":        mode.String(),
		"leaf":        tree.Node(p.Leaf()).Table.String(),
		"segments":    len(segments),
		"bulk":        len(b.bulk),
		"fingerprint": st.Fingerprint,
	}).Debug("compiled statement")

	return st, nil
}

// Fingerprint returns a short stable hash of a SQL text for log correlation.
func Fingerprint(sqlText string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(sqlText))
}
