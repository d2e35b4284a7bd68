// Package memstore is an in-memory backend for the data-filtering engine,
// backed by hashicorp/go-memdb. Each registered resource type gets its own
// table keyed by identity; filter expressions are evaluated as Go
// predicates over table scans, with relation hops followed existentially
// into the target table. It is intended for tests, examples and embedded
// use, not as a substitute for a real datastore.
package memstore

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hashicorp/go-memdb"

	"github.com/davepacheco/oso/internal/logging"
	"github.com/davepacheco/oso/pkg/filters"
	"github.com/davepacheco/oso/pkg/types"
)

const indexID = "id"

// Object is one stored instance: an identity plus a flat field map. The
// identity field should appear in Fields as well, under the name the type
// was registered with. Field values should be comparable scalars; an
// uncomparable value (a map or a slice) is stored as-is but never compares
// equal to anything.
type Object struct {
	ID     string
	Fields map[string]any
}

// ResourceID implements types.Instance.
func (o *Object) ResourceID() string {
	return o.ID
}

// Store is an in-memory object store serving as query builder, combiner and
// executor for every type it holds a table for.
type Store struct {
	db *memdb.MemDB
}

var _ types.QueryBuilder = (*Store)(nil)

// New constructs a store with one table per type name.
func New(typeNames ...string) (*Store, error) {
	tables := make(map[string]*memdb.TableSchema, len(typeNames))
	for _, name := range typeNames {
		tables[name] = &memdb.TableSchema{
			Name: name,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:    indexID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		}
	}

	db, err := memdb.NewMemDB(&memdb.DBSchema{Tables: tables})
	if err != nil {
		return nil, fmt.Errorf("unable to instantiate memstore: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert stores objects in the named type's table, replacing any objects
// with the same identity.
func (s *Store) Insert(typeName string, objects ...*Object) error {
	txn := s.db.Txn(true)
	for _, obj := range objects {
		if err := txn.Insert(typeName, obj); err != nil {
			txn.Abort()
			return fmt.Errorf("unable to insert into `%s`: %w", typeName, err)
		}
	}
	txn.Commit()
	return nil
}

// memQuery is the store's opaque query handle: a type name plus a set of
// disjunct expressions whose results union together.
type memQuery struct {
	typeName string
	exprs    []types.Expr
}

// BuildQuery implements types.QueryBuilder.
func (s *Store) BuildQuery(rt *types.ResourceType, expr types.Expr) (types.Query, error) {
	return &memQuery{typeName: rt.Name, exprs: []types.Expr{expr}}, nil
}

// CombineQuery unions two handles produced by this store. The union stays
// symbolic; disjuncts are evaluated together at exec time.
func (s *Store) CombineQuery(a, b types.Query) (types.Query, error) {
	qa, ok := a.(*memQuery)
	if !ok {
		return nil, fmt.Errorf("foreign query handle %T", a)
	}
	qb, ok := b.(*memQuery)
	if !ok {
		return nil, fmt.Errorf("foreign query handle %T", b)
	}
	if qa.typeName != qb.typeName {
		return nil, fmt.Errorf("cannot union queries over `%s` and `%s`", qa.typeName, qb.typeName)
	}
	return &memQuery{
		typeName: qa.typeName,
		exprs:    append(append([]types.Expr{}, qa.exprs...), qb.exprs...),
	}, nil
}

// ExecQuery scans the handle's table and returns every object matching at
// least one disjunct.
func (s *Store) ExecQuery(ctx context.Context, q types.Query) ([]types.Instance, error) {
	mq, ok := q.(*memQuery)
	if !ok {
		return nil, fmt.Errorf("foreign query handle %T", q)
	}

	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(mq.typeName, indexID)
	if err != nil {
		return nil, fmt.Errorf("unable to scan `%s`: %w", mq.typeName, err)
	}

	var results []types.Instance
	for raw := it.Next(); raw != nil; raw = it.Next() {
		obj := raw.(*Object)
		matched, err := anyMatches(txn, obj, mq.exprs)
		if err != nil {
			return nil, err
		}
		if matched {
			results = append(results, obj)
		}
	}

	logging.Ctx(ctx).Trace().
		Str("type", mq.typeName).
		Int("disjuncts", len(mq.exprs)).
		Int("matched", len(results)).
		Msg("memstore scan complete")
	return results, nil
}

func anyMatches(txn *memdb.Txn, obj *Object, exprs []types.Expr) (bool, error) {
	for _, expr := range exprs {
		ok, err := eval(txn, obj, expr)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// eval evaluates one resolved expression against one object. An empty And
// is vacuously true and an empty Or vacuously false, which is exactly the
// representation of the always-true and always-false predicates the engine
// requires of a backend.
func eval(txn *memdb.Txn, obj *Object, expr types.Expr) (bool, error) {
	switch e := expr.(type) {
	case *types.Junction:
		for _, child := range e.Exprs {
			ok, err := eval(txn, obj, child)
			if err != nil {
				return false, err
			}
			if e.Op == filters.CombineAnd && !ok {
				return false, nil
			}
			if e.Op == filters.CombineOr && ok {
				return true, nil
			}
		}
		return e.Op == filters.CombineAnd, nil

	case *types.Comparison:
		reachable, err := columnValues(txn, obj, e.Column.Joins, e.Column.Field)
		if err != nil {
			return false, err
		}
		for _, v := range reachable {
			if satisfies(e.Op, v, e.Values) {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("unsupported expression %T", expr)
	}
}

// columnValues collects the values reachable from obj along the column's
// joins. One-cardinality hops contribute at most one target; Many hops
// contribute every target whose join field matches, giving comparisons over
// joined columns existential semantics.
func columnValues(txn *memdb.Txn, obj *Object, joins []types.Join, field string) ([]any, error) {
	if len(joins) == 0 {
		return []any{obj.Fields[field]}, nil
	}

	j := joins[0]
	local := obj.Fields[j.LocalField]

	it, err := txn.Get(j.TargetType, indexID)
	if err != nil {
		return nil, fmt.Errorf("unable to scan `%s`: %w", j.TargetType, err)
	}

	var reachable []any
	for raw := it.Next(); raw != nil; raw = it.Next() {
		target := raw.(*Object)
		if !equal(target.Fields[j.TargetField], local) {
			continue
		}
		vals, err := columnValues(txn, target, joins[1:], field)
		if err != nil {
			return nil, err
		}
		reachable = append(reachable, vals...)
		if j.Cardinality == types.One {
			break
		}
	}
	return reachable, nil
}

func satisfies(op filters.CompareOp, v any, values []any) bool {
	switch op {
	case filters.OpEq:
		return equal(v, values[0])
	case filters.OpNeq:
		return !equal(v, values[0])
	case filters.OpIn:
		return contains(values, v)
	case filters.OpNin:
		return !contains(values, v)
	default:
		return false
	}
}

func contains(values []any, v any) bool {
	for _, candidate := range values {
		if equal(candidate, v) {
			return true
		}
	}
	return false
}

// equal compares two stored values without panicking on uncomparable
// dynamic types. An uncomparable value is never equal to anything,
// itself included.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}
