package materialize

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aidanlsb/sqlgraph/internal/alias"
	"github.com/aidanlsb/sqlgraph/internal/metrics"
	"github.com/aidanlsb/sqlgraph/internal/querytree"
	"github.com/aidanlsb/sqlgraph/internal/sqlgen"
)

// DefaultBatchSize is the number of rows decoded per fetch.
const DefaultBatchSize = 500

// ErrClosed is returned by Err after Close stopped an unfinished iteration.
var ErrClosed = errors.New("iterator closed")

// Conner hands out dedicated connections. *sql.DB implements it.
type Conner interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Options configures an Iterator.
type Options struct {
	BatchSize int
	Logger    *logrus.Logger
	// Registry replaces the iterator's own alias registry.
	Registry *alias.Registry
}

type state int

const (
	stateRegular state = iota
	stateOptional
	stateEmit
	stateDone
)

func (s state) mode() sqlgen.Mode {
	switch s {
	case stateOptional:
		return sqlgen.ModeOptional
	case stateEmit:
		return sqlgen.ModeEmit
	}
	return sqlgen.ModeRegular
}

func (s state) String() string {
	if s == stateDone {
		return "done"
	}
	return s.mode().String()
}

// job compiles one statement when it is about to run.
type job func() (*sqlgen.Statement, error)

// Iterator runs the statements of one traversal and yields its results. It
// walks the regular paths of every root tree, then the optional branches,
// then the emitted steps. Rows are fetched lazily one batch at a time and at
// most one statement is open at any moment.
//
// An Iterator is not safe for concurrent use.
type Iterator struct {
	ctx      context.Context
	db       Conner
	compiler *sqlgen.Compiler
	trees    []*querytree.Tree
	reg      *alias.Registry
	log      *logrus.Entry
	batch    int

	conn    *sql.Conn
	started bool
	closed  bool
	err     error

	state state
	root  int
	queue []job

	// The open statement.
	stmt  *sql.Stmt
	rows  *sql.Rows
	temps []string
	dec   *decoder
	mode  sqlgen.Mode

	buf []Result
	pos int
	cur Result
}

// New creates an iterator over trees. Nothing is compiled or executed until
// the first call to Next.
func New(ctx context.Context, db Conner, compiler *sqlgen.Compiler, trees []*querytree.Tree, opts Options) *Iterator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	reg := opts.Registry
	if reg == nil {
		reg = alias.NewRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Iterator{
		ctx:      ctx,
		db:       db,
		compiler: compiler,
		trees:    trees,
		reg:      reg,
		log:      logger.WithField("component", "materialize"),
		batch:    opts.BatchSize,
		root:     -1,
	}
}

// Next advances to the next result. It returns false when the traversal is
// exhausted or failed; check Err to tell them apart.
func (it *Iterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	if !it.started {
		it.started = true
		if err := it.start(); err != nil {
			it.fail(err)
			return false
		}
	}

	for {
		if it.pos < len(it.buf) {
			it.cur = it.buf[it.pos]
			it.pos++
			return true
		}
		if err := it.ctx.Err(); err != nil {
			it.fail(err)
			return false
		}
		if it.rows != nil {
			if err := it.fill(); err != nil {
				it.fail(err)
				return false
			}
			continue
		}
		if len(it.queue) > 0 {
			next := it.queue[0]
			it.queue = it.queue[1:]
			if err := it.open(next); err != nil {
				it.fail(err)
				return false
			}
			continue
		}
		if !it.advance() {
			it.finish()
			return false
		}
	}
}

// Result returns the current result.
func (it *Iterator) Result() Result { return it.cur }

// Err returns the error that stopped iteration, if any.
func (it *Iterator) Err() error { return it.err }

// Close stops the iteration: the open statement is closed, its temporary
// tables are dropped, pending statements are discarded without running and
// the connection is released.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	unfinished := it.started && it.state != stateDone
	err := it.closeStatement()
	it.release()
	it.closed = true
	it.queue = nil
	it.buf = nil
	it.state = stateDone
	if unfinished && it.err == nil {
		it.err = ErrClosed
	}
	return err
}

// All drains the iterator and closes it.
func (it *Iterator) All() ([]Result, error) {
	var out []Result
	for it.Next() {
		out = append(out, it.Result())
	}
	if err := it.Err(); err != nil {
		return out, err
	}
	return out, it.Close()
}

// start validates every statement of every mode before anything runs, then
// pins a connection.
func (it *Iterator) start() error {
	for i, t := range it.trees {
		if err := it.compiler.Validate(t); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	conn, err := it.db.Conn(it.ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	it.conn = conn
	it.log.WithField("trees", len(it.trees)).Debug("iteration started")
	return nil
}

// advance moves to the next root tree with statements, crossing into the
// next state when every root of the current one is done. The registry is
// reset between states.
func (it *Iterator) advance() bool {
	for it.state != stateDone {
		it.root++
		if it.root >= len(it.trees) {
			it.reg.Reset()
			it.state++
			it.root = -1
			it.log.WithField("state", it.state.String()).Debug("state advanced")
			continue
		}
		it.queue = it.jobs(it.trees[it.root], it.state)
		if len(it.queue) > 0 {
			return true
		}
	}
	return false
}

func (it *Iterator) jobs(tree *querytree.Tree, s state) []job {
	var out []job
	switch s {
	case stateRegular:
		for _, p := range tree.ExtractDistinctPaths() {
			p := p
			out = append(out, func() (*sqlgen.Statement, error) { return it.compiler.Compile(tree, p, it.reg) })
		}
	case stateOptional:
		for _, op := range tree.OptionalPaths() {
			op := op
			out = append(out, func() (*sqlgen.Statement, error) { return it.compiler.CompileOptional(tree, op, it.reg) })
		}
	case stateEmit:
		for _, p := range tree.EmitPaths() {
			p := p
			out = append(out, func() (*sqlgen.Statement, error) { return it.compiler.CompileEmit(tree, p, it.reg) })
		}
	}
	return out
}

// open compiles a statement, loads its temporary tables and starts the query.
func (it *Iterator) open(j job) error {
	st, err := j()
	if err != nil {
		return err
	}
	log := it.log.WithFields(logrus.Fields{
		"mode":        st.Mode.String(),
		"fingerprint": st.Fingerprint,
	})

	if err := it.loadBulk(st, log); err != nil {
		return it.execFailed(st, err)
	}

	stmt, err := it.conn.PrepareContext(it.ctx, st.SQL)
	if err != nil {
		return it.execFailed(st, fmt.Errorf("prepare: %w", err))
	}
	it.stmt = stmt
	metrics.OpenStatements.Inc()

	rows, err := stmt.QueryContext(it.ctx, st.Args...)
	if err != nil {
		return it.execFailed(st, fmt.Errorf("query: %w", err))
	}
	it.rows = rows

	names, err := rows.Columns()
	if err != nil {
		return it.execFailed(st, err)
	}
	dec, err := newDecoder(st.Tree.Catalog(), it.reg, st.Mode, names)
	if err != nil {
		return it.execFailed(st, err)
	}
	it.dec = dec
	it.mode = st.Mode

	metrics.StatementsExecuted.WithLabelValues(st.Mode.String(), "ok").Inc()
	log.WithField("args", len(st.Args)).Debug("statement executed")
	return nil
}

func (it *Iterator) loadBulk(st *sqlgen.Statement, log *logrus.Entry) error {
	d := it.compiler.Dialect()
	for _, bt := range st.Bulk {
		if err := d.CreateTempTable(it.ctx, it.conn, bt.Name, bt.Column, bt.ColumnType); err != nil {
			return err
		}
		it.temps = append(it.temps, bt.Name)
		if err := d.BulkCopy(it.ctx, it.conn, bt.Name, bt.Column, bt.Values); err != nil {
			return err
		}
		metrics.BulkValues.Add(float64(len(bt.Values)))
		log.WithFields(logrus.Fields{"table": bt.Name, "values": len(bt.Values)}).Info("bulk membership table loaded")
	}
	return nil
}

func (it *Iterator) execFailed(st *sqlgen.Statement, err error) error {
	metrics.StatementsExecuted.WithLabelValues(st.Mode.String(), "error").Inc()
	return fmt.Errorf("execute %s statement %s: %w", st.Mode, st.Fingerprint, err)
}

// fill decodes up to one batch of rows. The statement is closed as soon as
// its rows are exhausted.
func (it *Iterator) fill() error {
	it.buf = it.buf[:0]
	it.pos = 0

	n := len(it.dec.columns)
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}

	defer func() {
		metrics.RowsDecoded.WithLabelValues(it.mode.String()).Add(float64(len(it.buf)))
	}()

	for scanned := 0; scanned < it.batch; scanned++ {
		if !it.rows.Next() {
			if err := it.rows.Err(); err != nil {
				return err
			}
			return it.closeStatement()
		}
		if err := it.rows.Scan(ptrs...); err != nil {
			return err
		}
		res, ok, err := it.dec.decode(values)
		if err != nil {
			return err
		}
		if ok {
			it.buf = append(it.buf, res)
		}
	}
	return nil
}

// closeStatement closes the open rows and statement and drops the statement's
// temporary tables. It returns the first error.
func (it *Iterator) closeStatement() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if it.rows != nil {
		keep(it.rows.Close())
		it.rows = nil
	}
	if it.stmt != nil {
		keep(it.stmt.Close())
		it.stmt = nil
		metrics.OpenStatements.Dec()
	}
	if len(it.temps) > 0 {
		d := it.compiler.Dialect()
		// Drop with a fresh context so cleanup still runs after cancellation.
		ctx := context.WithoutCancel(it.ctx)
		for _, name := range it.temps {
			keep(d.DropTempTable(ctx, it.conn, name))
		}
		it.temps = nil
	}
	it.dec = nil
	return first
}

func (it *Iterator) release() {
	if it.conn == nil {
		return
	}
	if err := it.conn.Close(); err != nil {
		it.log.WithError(err).Warn("failed to release connection")
	}
	it.conn = nil
}

func (it *Iterator) finish() {
	it.release()
	it.log.Debug("iteration finished")
}

// fail records err, then cleans up. Cleanup errors are logged and the
// original error is kept.
func (it *Iterator) fail(err error) {
	it.err = err
	it.log.WithError(err).Error("iteration failed")
	if cerr := it.closeStatement(); cerr != nil {
		it.log.WithError(cerr).Warn("cleanup after failure")
	}
	it.queue = nil
	it.buf = nil
	it.state = stateDone
	it.release()
}
