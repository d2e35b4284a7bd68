// Package filters defines the constraint IR handed to the data-filtering
// compiler by policy partial evaluation. A plan is a set of independently
// satisfying filter trees for a single resource type; each tree constrains
// the unbound resource variable and the engine unions the results.
//
// The IR is an in-memory contract, not a wire format. Trees are built once
// by the policy evaluator and read by the compiler; they are never mutated
// after construction.
package filters

import (
	"fmt"
	"strings"
)

// CompareOp is the comparison kind of a Compare leaf.
type CompareOp uint8

const (
	OpEq CompareOp = iota
	OpNeq
	OpIn
	OpNin
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "Eq"
	case OpNeq:
		return "Neq"
	case OpIn:
		return "In"
	case OpNin:
		return "Nin"
	default:
		return fmt.Sprintf("CompareOp(%d)", op)
	}
}

// CombineOp is the boolean connective of a Combine node.
type CombineOp uint8

const (
	CombineAnd CombineOp = iota
	CombineOr
)

func (op CombineOp) String() string {
	if op == CombineAnd {
		return "And"
	}
	return "Or"
}

// Column addresses one comparable value on the filtered type: zero or more
// relation hops followed by a terminal field, or the entity identity when
// Field is empty. The identity marker is deliberately distinct from any
// named field; "the id of this entity" and "a field that happens to be
// called id" resolve through different paths in the compiler.
type Column struct {
	// Hops are relation names traversed before the terminal element,
	// resolved one hop at a time against the catalog.
	Hops []string

	// Field is the terminal field name. Empty means the identity of the
	// entity reached after Hops.
	Field string
}

// Identity addresses the filtered entity's own identity.
func Identity() Column {
	return Column{}
}

// Field addresses a direct field on the filtered entity.
func Field(name string) Column {
	return Column{Field: name}
}

// Via returns a copy of the column reached through the given relation hops.
// filters.Field("id").Via("organization") addresses the id of the
// organization related to the filtered entity.
func (c Column) Via(hops ...string) Column {
	return Column{Hops: append(hops, c.Hops...), Field: c.Field}
}

func (c Column) String() string {
	parts := make([]string, 0, len(c.Hops)+1)
	parts = append(parts, c.Hops...)
	if c.Field == "" {
		parts = append(parts, "<identity>")
	} else {
		parts = append(parts, c.Field)
	}
	return strings.Join(parts, ".")
}

// Node is one node of a filter tree.
type Node interface {
	isFilterNode()
	fmt.Stringer
}

// Compare is a comparison leaf. A single column is a scalar comparison; two
// or more columns form a composite (tuple) comparison, and Value must then
// be shaped to match: a []any tuple of the same arity for Eq/Neq, a [][]any
// of such tuples for In/Nin. Shape mismatches are compile errors.
type Compare struct {
	Op      CompareOp
	Columns []Column
	Value   any
}

func (*Compare) isFilterNode() {}

func (c *Compare) String() string {
	cols := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		cols[i] = col.String()
	}
	return fmt.Sprintf("%s(%s, %v)", c.Op, strings.Join(cols, ","), c.Value)
}

// Composite reports whether the comparison is over a tuple of columns.
func (c *Compare) Composite() bool {
	return len(c.Columns) > 1
}

// Combine is a boolean combination of child nodes. An empty And is
// vacuously true and an empty Or is vacuously false; partial evaluation
// legitimately produces both.
type Combine struct {
	Op       CombineOp
	Children []Node
}

func (*Combine) isFilterNode() {}

func (c *Combine) String() string {
	children := make([]string, len(c.Children))
	for i, child := range c.Children {
		children[i] = child.String()
	}
	return fmt.Sprintf("%s(%s)", c.Op, strings.Join(children, ","))
}

// Eq constrains a scalar column to equal value.
func Eq(col Column, value any) *Compare {
	return &Compare{Op: OpEq, Columns: []Column{col}, Value: value}
}

// Neq constrains a scalar column to differ from value.
func Neq(col Column, value any) *Compare {
	return &Compare{Op: OpNeq, Columns: []Column{col}, Value: value}
}

// In constrains a scalar column to one of values. An empty candidate set is
// unconditionally false.
func In(col Column, values []any) *Compare {
	return &Compare{Op: OpIn, Columns: []Column{col}, Value: values}
}

// Nin constrains a scalar column to none of values. An empty candidate set
// is unconditionally true.
func Nin(col Column, values []any) *Compare {
	return &Compare{Op: OpNin, Columns: []Column{col}, Value: values}
}

// TupleEq constrains a tuple of columns to equal the given tuple.
func TupleEq(cols []Column, tuple []any) *Compare {
	return &Compare{Op: OpEq, Columns: cols, Value: tuple}
}

// TupleNeq constrains a tuple of columns to differ from the given tuple.
func TupleNeq(cols []Column, tuple []any) *Compare {
	return &Compare{Op: OpNeq, Columns: cols, Value: tuple}
}

// TupleIn constrains a tuple of columns to one of the candidate tuples.
func TupleIn(cols []Column, tuples [][]any) *Compare {
	return &Compare{Op: OpIn, Columns: cols, Value: tuples}
}

// TupleNin constrains a tuple of columns to none of the candidate tuples.
func TupleNin(cols []Column, tuples [][]any) *Compare {
	return &Compare{Op: OpNin, Columns: cols, Value: tuples}
}

// And combines children conjunctively.
func And(children ...Node) *Combine {
	return &Combine{Op: CombineAnd, Children: children}
}

// Or combines children disjunctively.
func Or(children ...Node) *Combine {
	return &Combine{Op: CombineOr, Children: children}
}

// AlwaysTrue is the unconditionally satisfied filter, the empty conjunction.
func AlwaysTrue() *Combine {
	return &Combine{Op: CombineAnd}
}

// AlwaysFalse is the unsatisfiable filter, the empty disjunction.
func AlwaysFalse() *Combine {
	return &Combine{Op: CombineOr}
}

// Plan is the set of independently satisfying branches produced by policy
// partial evaluation for one resource type. Branches are compiled and
// executed separately and their results unioned; they are never conjoined.
type Plan struct {
	Branches []Node
}
