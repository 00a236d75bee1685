package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aidanlsb/sqlgraph/internal/alias"
	"github.com/aidanlsb/sqlgraph/internal/dialect"
	"github.com/aidanlsb/sqlgraph/internal/plan"
	"github.com/aidanlsb/sqlgraph/internal/querytree"
	"github.com/aidanlsb/sqlgraph/internal/schema"
	"github.com/aidanlsb/sqlgraph/internal/sqlgen"
)

// environment is what every plan command needs: the topology, the dialect
// and a compiler bound to both.
type environment struct {
	topo     *schema.Topology
	dialect  dialect.Dialect
	compiler *sqlgen.Compiler
}

// loadEnvironment loads the topology named by the config and builds the
// dialect and compiler. Errors are already reported through handleError.
func loadEnvironment() (*environment, error) {
	c := getConfig()
	topo, err := schema.Load(c.Schema)
	if err != nil {
		return nil, handleError(ErrSchemaInvalid, err, "Check the schema path in config.toml or pass --schema")
	}

	publicSchema := c.Dialect.PublicSchema
	if publicSchema == "" {
		publicSchema = topo.PublicSchema
	}
	d, err := dialect.New(c.Dialect.Name, dialect.Options{
		PublicSchema:        publicSchema,
		InlineListThreshold: c.Dialect.InlineListThreshold,
		BulkMembership:      c.Dialect.BulkMembership,
	})
	if err != nil {
		return nil, handleError(ErrConfigInvalid, err, "")
	}

	return &environment{
		topo:     topo,
		dialect:  d,
		compiler: sqlgen.New(d, sqlgen.WithLogger(getLogger())),
	}, nil
}

// loadPlans reads every plan file in order.
func loadPlans(paths []string) ([]*plan.Plan, error) {
	var plans []*plan.Plan
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return nil, handleError(ErrPlanNotFound, err, "")
		}
		loaded, err := plan.LoadAny(path)
		if err != nil {
			return nil, handleError(ErrPlanInvalid, err, "")
		}
		plans = append(plans, loaded...)
	}
	return plans, nil
}

// compiledPlan is a plan built into trees and compiled into statements.
type compiledPlan struct {
	plan       *plan.Plan
	trees      []*querytree.Tree
	statements []*sqlgen.Statement
	registry   *alias.Registry
	warnings   []Warning
}

// compilePlans builds and compiles plans concurrently. Each plan gets its own
// alias registry. mode selects one materialization mode; all compiles every
// statement.
func compilePlans(ctx context.Context, env *environment, plans []*plan.Plan, mode sqlgen.Mode, all bool) ([]*compiledPlan, error) {
	out := make([]*compiledPlan, len(plans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range plans {
		i, p := i, p
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			cp, err := compilePlan(env, p, mode, all)
			if err != nil {
				return fmt.Errorf("plan %s: %w", p.Name, err)
			}
			out[i] = cp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func compilePlan(env *environment, p *plan.Plan, mode sqlgen.Mode, all bool) (*compiledPlan, error) {
	trees, err := p.Build(env.topo)
	if err != nil {
		return nil, err
	}
	cp := &compiledPlan{plan: p, trees: trees, registry: alias.NewRegistry()}
	cp.warnings = treeWarnings(p, trees)

	for _, tr := range trees {
		var stmts []*sqlgen.Statement
		if all {
			stmts, err = env.compiler.CompileAll(tr, cp.registry)
		} else {
			if err = tr.Validate(); err == nil {
				stmts, err = env.compiler.CompileMode(tr, mode, cp.registry)
			}
		}
		if err != nil {
			return nil, err
		}
		cp.statements = append(cp.statements, stmts...)
	}
	return cp, nil
}

func treeWarnings(p *plan.Plan, trees []*querytree.Tree) []Warning {
	var warnings []Warning
	for i, tr := range trees {
		switch {
		case tr.RootInvalidated():
			warnings = append(warnings, Warning{
				Code:    WarnRootPruned,
				Message: fmt.Sprintf("root %d can never match: its filters contradict the schema", i),
				Plan:    p.Name,
			})
		case len(tr.ExtractDistinctPaths()) == 0 && len(tr.EmitPaths()) == 0:
			warnings = append(warnings, Warning{
				Code:    WarnNoPaths,
				Message: fmt.Sprintf("root %d has no path reaching depth %d", i, p.Depth),
				Plan:    p.Name,
			})
		}
	}
	return warnings
}

// openDatabase opens and pings the configured database.
func openDatabase(ctx context.Context, d dialect.Dialect) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName(), getConfig().Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s: %w", d.Name(), err)
	}
	return db, nil
}

// startMetricsServer serves /metrics on addr until the returned stop
// function is called. An empty addr serves nothing.
func startMetricsServer(addr string) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	log := getLogger().WithField("component", "metrics")
	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("metrics server shutdown")
		}
	}
}
