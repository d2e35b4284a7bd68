// Package compile translates raw filter trees into backend query handles.
// The translation is a deterministic structural walk: columns are resolved
// against the type catalog (falling back to the relation resolver for bare
// names that denote relations), value shapes are validated, and composite
// In/Nin comparisons are lowered into boolean structure over element-wise
// Eq/Neq before the type's registered builder ever sees them. Every failure
// here surfaces before any backend call executes, so a malformed branch
// never reaches the data store.
package compile

import (
	"context"
	"fmt"

	"github.com/davepacheco/oso/internal/logging"
	"github.com/davepacheco/oso/pkg/filters"
	"github.com/davepacheco/oso/pkg/types"
)

// Compiler compiles filter trees for types registered in a catalog.
type Compiler struct {
	catalog  *types.Catalog
	resolver *types.Resolver
}

// New constructs a compiler over the given catalog.
func New(catalog *types.Catalog) *Compiler {
	return &Compiler{
		catalog:  catalog,
		resolver: types.NewResolver(catalog),
	}
}

// Compile lowers one filter tree for the named type and hands the resolved
// expression to the type's registered query builder.
func (c *Compiler) Compile(ctx context.Context, typeName string, node filters.Node) (types.Query, error) {
	rt, err := c.catalog.LookupType(typeName)
	if err != nil {
		return nil, err
	}

	expr, err := c.Lower(rt, node)
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Trace().
		Str("type", typeName).
		Stringer("filter", node).
		Msg("compiling filter branch")

	q, err := rt.Builder.BuildQuery(rt, expr)
	if err != nil {
		return nil, types.NewBackendErr("build_query", typeName, err)
	}
	return q, nil
}

// Lower resolves and lowers a filter tree into the backend-facing
// expression form without invoking any backend hook.
func (c *Compiler) Lower(rt *types.ResourceType, node filters.Node) (types.Expr, error) {
	switch n := node.(type) {
	case *filters.Combine:
		exprs := make([]types.Expr, 0, len(n.Children))
		for _, child := range n.Children {
			expr, err := c.Lower(rt, child)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, expr)
		}
		return &types.Junction{Op: n.Op, Exprs: exprs}, nil

	case *filters.Compare:
		return c.lowerCompare(rt, n)

	default:
		return nil, fmt.Errorf("unsupported filter node %T", node)
	}
}

func (c *Compiler) lowerCompare(rt *types.ResourceType, cmp *filters.Compare) (types.Expr, error) {
	if len(cmp.Columns) == 0 {
		return nil, types.NewValueShapeErr(cmp.Op, "comparison has no columns")
	}

	columns := make([]types.ResolvedColumn, len(cmp.Columns))
	for i, col := range cmp.Columns {
		resolved, err := c.resolveColumn(rt, col)
		if err != nil {
			return nil, err
		}
		columns[i] = resolved
	}

	if cmp.Composite() {
		return lowerComposite(cmp, columns)
	}
	return lowerScalar(cmp, columns[0])
}

// resolveColumn walks a column's relation hops, resolves its terminal
// element, and collapses One-cardinality joins whose constrained target
// field is the join field itself: constraining target.OtherField is the
// same as constraining source.MyField, so the hop disappears. This is what
// turns "the id of the related organization" into a plain local foreign-key
// comparison. Many hops never collapse: they require at least one related
// instance to exist, and only the backend's existential evaluation can
// check that.
func (c *Compiler) resolveColumn(rt *types.ResourceType, col filters.Column) (types.ResolvedColumn, error) {
	hops, err := c.resolver.ResolvePath(rt, col.Hops)
	if err != nil {
		return types.ResolvedColumn{}, err
	}

	current := rt
	if len(hops) > 0 {
		current = hops[len(hops)-1].Target
	}

	var field string
	switch {
	case col.Field == "":
		field = current.IdentityField

	default:
		if kind, ok := current.Field(col.Field); ok {
			if _, isRelation := kind.(types.RelationKind); !isRelation {
				field = col.Field
				break
			}
		}
		// A bare name may denote a relation used for an identity
		// comparison against a related instance.
		rr, rerr := c.resolver.Resolve(current, col.Field)
		if rerr != nil {
			if _, declared := current.Relation(col.Field); !declared {
				return types.ResolvedColumn{}, types.NewFieldNotFoundErr(current.Name, col.Field)
			}
			return types.ResolvedColumn{}, rerr
		}
		hops = append(hops, rr)
		field = rr.Target.IdentityField
	}

	joins := make([]types.Join, len(hops))
	for i, hop := range hops {
		joins[i] = types.Join{
			Relation:    hop.Relation,
			Cardinality: hop.Cardinality,
			LocalField:  hop.LocalField,
			TargetType:  hop.Target.Name,
			TargetField: hop.TargetField,
		}
	}

	for len(joins) > 0 {
		last := joins[len(joins)-1]
		if last.Cardinality != types.One || field != last.TargetField {
			break
		}
		field = last.LocalField
		joins = joins[:len(joins)-1]
	}

	return types.ResolvedColumn{Joins: joins, Field: field}, nil
}

// lowerScalar lowers a single-column comparison. Eq and Neq pass through as
// primitives, as do In and Nin over non-empty candidate sets; an empty In
// folds to the always-false junction and an empty Nin to the always-true
// one, since no branch of an empty disjunction can hold.
func lowerScalar(cmp *filters.Compare, col types.ResolvedColumn) (types.Expr, error) {
	switch cmp.Op {
	case filters.OpEq, filters.OpNeq:
		return &types.Comparison{Op: cmp.Op, Column: col, Values: []any{cmp.Value}}, nil

	case filters.OpIn, filters.OpNin:
		values, ok := cmp.Value.([]any)
		if !ok {
			return nil, types.NewValueShapeErr(cmp.Op, "candidate set must be a []any")
		}
		if len(values) == 0 {
			if cmp.Op == filters.OpIn {
				return &types.Junction{Op: filters.CombineOr}, nil
			}
			return &types.Junction{Op: filters.CombineAnd}, nil
		}
		return &types.Comparison{Op: cmp.Op, Column: col, Values: values}, nil

	default:
		return nil, types.NewValueShapeErr(cmp.Op, "unknown comparison kind")
	}
}

// lowerComposite lowers a tuple comparison into boolean structure over
// element-wise Eq/Neq, the sole composite primitives:
//
//	Eq  -> And of element-wise Eq
//	Neq -> Or of element-wise Neq
//	In  -> Or of one And-group per candidate tuple
//	Nin -> And of one Or-group per candidate tuple (De Morgan of In)
func lowerComposite(cmp *filters.Compare, columns []types.ResolvedColumn) (types.Expr, error) {
	arity := len(columns)

	switch cmp.Op {
	case filters.OpEq:
		tuple, err := compositeTuple(cmp.Op, cmp.Value, arity)
		if err != nil {
			return nil, err
		}
		return elementwise(filters.CombineAnd, filters.OpEq, columns, tuple), nil

	case filters.OpNeq:
		tuple, err := compositeTuple(cmp.Op, cmp.Value, arity)
		if err != nil {
			return nil, err
		}
		return elementwise(filters.CombineOr, filters.OpNeq, columns, tuple), nil

	case filters.OpIn, filters.OpNin:
		tuples, ok := cmp.Value.([][]any)
		if !ok {
			return nil, types.NewValueShapeErr(cmp.Op, "candidate set must be a [][]any of tuples")
		}

		groupOp, elemOp, outerOp := filters.CombineAnd, filters.OpEq, filters.CombineOr
		if cmp.Op == filters.OpNin {
			groupOp, elemOp, outerOp = filters.CombineOr, filters.OpNeq, filters.CombineAnd
		}

		groups := make([]types.Expr, 0, len(tuples))
		for _, tuple := range tuples {
			if len(tuple) != arity {
				return nil, types.NewArityMismatchErr(arity, len(tuple))
			}
			groups = append(groups, elementwise(groupOp, elemOp, columns, tuple))
		}
		return &types.Junction{Op: outerOp, Exprs: groups}, nil

	default:
		return nil, types.NewValueShapeErr(cmp.Op, "unknown comparison kind")
	}
}

func compositeTuple(op filters.CompareOp, value any, arity int) ([]any, error) {
	tuple, ok := value.([]any)
	if !ok {
		return nil, types.NewValueShapeErr(op, "composite value must be a []any tuple")
	}
	if len(tuple) != arity {
		return nil, types.NewArityMismatchErr(arity, len(tuple))
	}
	return tuple, nil
}

func elementwise(op filters.CombineOp, elemOp filters.CompareOp, columns []types.ResolvedColumn, tuple []any) *types.Junction {
	exprs := make([]types.Expr, len(columns))
	for i, col := range columns {
		exprs[i] = &types.Comparison{Op: elemOp, Column: col, Values: []any{tuple[i]}}
	}
	return &types.Junction{Op: op, Exprs: exprs}
}
