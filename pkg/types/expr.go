package types

import "github.com/davepacheco/oso/pkg/filters"

// Expr is a fully resolved filter expression, the form delivered to backend
// query builders. Unlike the raw filter IR, every column here names a
// concrete field, identity markers have been replaced by the identity field
// of the type they referred to, and relation hops that could not be
// collapsed away carry explicit join descriptions.
type Expr interface {
	isExpr()
}

// Comparison compares one resolved column against one or more values.
// Eq and Neq carry exactly one value; In and Nin carry a non-empty
// candidate set (the empty sets are folded to junction constants before
// reaching a builder).
type Comparison struct {
	Op     filters.CompareOp
	Column ResolvedColumn
	Values []any
}

func (*Comparison) isExpr() {}

// Value returns the sole value of an Eq or Neq comparison.
func (c *Comparison) Value() any {
	return c.Values[0]
}

// Junction is a boolean combination of resolved expressions. An empty And
// is the always-true predicate and an empty Or the always-false one;
// builders must represent both rather than erroring.
type Junction struct {
	Op    filters.CombineOp
	Exprs []Expr
}

func (*Junction) isExpr() {}

// ResolvedColumn is a concrete comparable column: the joins to traverse
// from the compiled type, then a field on the final joined type.
type ResolvedColumn struct {
	Joins []Join
	Field string
}

// Join is one resolved relation hop. The join predicate is
// source.LocalField = target.TargetField; for Many edges the comparison
// over the joined column is existential.
type Join struct {
	Relation    string
	Cardinality Cardinality
	LocalField  string
	TargetType  string
	TargetField string
}
