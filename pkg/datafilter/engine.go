// Package datafilter is the entry point of the data-filtering query
// compiler: given a policy-evaluation collaborator that produces filter
// plans and a catalog of registered resource types, it answers "which
// instances of this type may the actor act on" without materializing and
// testing every instance.
package datafilter

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/davepacheco/oso/internal/compile"
	"github.com/davepacheco/oso/internal/logging"
	"github.com/davepacheco/oso/internal/plan"
	"github.com/davepacheco/oso/pkg/filters"
	"github.com/davepacheco/oso/pkg/types"
)

// PlanSource supplies the filter plan for an authorization request. It is
// the boundary to the policy evaluation collaborator: partial evaluation of
// the policy against an unbound resource variable happens behind this
// interface, and the engine consumes only the resulting constraint trees.
type PlanSource interface {
	FilterPlan(ctx context.Context, actor any, action, typeName string) (*filters.Plan, error)
}

// PlanSourceFunc adapts a function to the PlanSource interface.
type PlanSourceFunc func(ctx context.Context, actor any, action, typeName string) (*filters.Plan, error)

// FilterPlan implements PlanSource.
func (f PlanSourceFunc) FilterPlan(ctx context.Context, actor any, action, typeName string) (*filters.Plan, error) {
	return f(ctx, actor, action, typeName)
}

// Engine orchestrates plan retrieval, per-branch compilation, union and
// execution. It holds no mutable state of its own; concurrent Authorize
// calls are safe as long as the catalog is no longer being mutated.
type Engine struct {
	catalog  *types.Catalog
	compiler *compile.Compiler
	plans    PlanSource

	compileConcurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithCompileConcurrency bounds how many branches compile in parallel.
// Branch compilation is independent by construction (no branch may observe
// another's handle), so any bound is safe. Zero or negative means
// unbounded.
func WithCompileConcurrency(n int) Option {
	return func(e *Engine) {
		e.compileConcurrency = n
	}
}

// NewEngine constructs an engine over the given catalog and plan source.
func NewEngine(catalog *types.Catalog, plans PlanSource, opts ...Option) *Engine {
	e := &Engine{
		catalog:  catalog,
		compiler: compile.New(catalog),
		plans:    plans,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize returns the instances of typeName on which actor may perform
// action, deduplicated by identity. An empty plan is a pure-deny short
// circuit: it returns an empty result without any backend call. A failing
// branch compile aborts the whole call; silently dropping a satisfying
// branch would under-report authorized access.
func (e *Engine) Authorize(ctx context.Context, actor any, action, typeName string) ([]types.Instance, error) {
	filterPlan, err := e.plans.FilterPlan(ctx, actor, action, typeName)
	if err != nil {
		return nil, err
	}
	if filterPlan == nil || len(filterPlan.Branches) == 0 {
		logging.Ctx(ctx).Debug().
			Str("action", action).
			Str("type", typeName).
			Msg("policy is unsatisfiable for request, denying without backend call")
		return nil, nil
	}

	rt, err := e.catalog.LookupType(typeName)
	if err != nil {
		return nil, err
	}
	combineQuery, err := e.catalog.CombineQueryFor(rt)
	if err != nil {
		return nil, err
	}
	execQuery, err := e.catalog.ExecQueryFor(rt)
	if err != nil {
		return nil, err
	}

	queries, err := e.compileBranches(ctx, typeName, filterPlan.Branches)
	if err != nil {
		return nil, err
	}

	combined, err := plan.Combine(typeName, combineQuery, queries)
	if err != nil {
		return nil, err
	}

	instances, err := plan.Execute(ctx, typeName, execQuery, combined)
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Debug().
		Str("action", action).
		Str("type", typeName).
		Int("branches", len(filterPlan.Branches)).
		Int("instances", len(instances)).
		Msg("authorized instances resolved")
	return instances, nil
}

// compileBranches compiles every branch, in parallel up to the configured
// bound. Results keep plan order; the first error cancels the remaining
// work and fails the call.
func (e *Engine) compileBranches(ctx context.Context, typeName string, branches []filters.Node) ([]types.Query, error) {
	queries := make([]types.Query, len(branches))

	g, gctx := errgroup.WithContext(ctx)
	if e.compileConcurrency > 0 {
		g.SetLimit(e.compileConcurrency)
	}
	for i, branch := range branches {
		i, branch := i, branch
		g.Go(func() error {
			q, err := e.compiler.Compile(gctx, typeName, branch)
			if err != nil {
				return err
			}
			queries[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return queries, nil
}
