package types

import "context"

// Query is an opaque, backend-defined query handle. The engine never
// inspects a handle; it only threads handles through the combine and exec
// hooks registered alongside the type that produced them.
type Query any

// Instance is a backend-native resource instance. The engine reads nothing
// past the identity used to deduplicate union results.
type Instance interface {
	ResourceID() string
}

// ExecQueryFunc executes a query handle against the backend and returns the
// matching instances. It may block on I/O; any deadline is the caller's to
// enforce around the whole authorize call.
type ExecQueryFunc func(ctx context.Context, q Query) ([]Instance, error)

// CombineQueryFunc unions two query handles into one. It must be
// associative over result sets; the engine folds it pairwise across
// branches in plan order.
type CombineQueryFunc func(a, b Query) (Query, error)

// QueryBuilder compiles one resolved filter expression into a backend query
// handle for the given type. Implementations receive only Comparison and
// Junction nodes with concrete columns; the compiler has already resolved
// fields, validated arity, and lowered composite In/Nin into boolean
// structure. Empty junctions must be representable: an empty And matches
// everything, an empty Or matches nothing.
type QueryBuilder interface {
	BuildQuery(rt *ResourceType, expr Expr) (Query, error)
}
