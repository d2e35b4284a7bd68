// Package types holds the resource type catalog consulted by the
// data-filtering compiler: registered type descriptors, their fields and
// relations, the backend hooks attached to each type, and the resolved
// expression form delivered to those hooks.
//
// The catalog is populated during a single-threaded initialization phase
// and treated as immutable afterwards. Concurrent reads during query
// compilation need no locking; registering types while queries are in
// flight is a caller error, not a defended-against one.
package types

import "fmt"

// Cardinality is the multiplicity of a relation edge.
type Cardinality uint8

const (
	// One relates a source instance to at most one target instance.
	One Cardinality = iota

	// Many relates a source instance to any number of target instances.
	Many
)

func (c Cardinality) String() string {
	if c == One {
		return "one"
	}
	return "many"
}

// FieldKind describes a registered field: either a primitive scalar or a
// reference to a relation descriptor.
type FieldKind interface {
	isFieldKind()
}

// Scalar is the type tag of a primitive field.
type Scalar uint8

const (
	StringScalar Scalar = iota
	IntScalar
	FloatScalar
	BoolScalar
	TimeScalar
)

// Primitive is a scalar field.
type Primitive struct {
	Kind Scalar
}

func (Primitive) isFieldKind() {}

// RelationKind is a field that denotes a relation to another type.
type RelationKind struct {
	Relation Relation
}

func (RelationKind) isFieldKind() {}

// Relation describes a directed edge between two resource types. Relations
// are not required to be symmetric: a One edge from Repository to
// Organization does not imply a reciprocal Many edge unless one is
// registered separately.
type Relation struct {
	Cardinality Cardinality

	// MyField is the field on the source type participating in the join.
	MyField string

	// OtherType names the target type; it must be registered in the
	// catalog by the time the relation is resolved.
	OtherType string

	// OtherField is the field on the target type that MyField joins to.
	OtherField string
}

// TypeDefinition is the registration request for one resource type.
type TypeDefinition struct {
	Name          string
	IdentityField string
	Fields        map[string]FieldKind
	Relations     map[string]Relation

	// Builder compiles resolved filter expressions into backend query
	// handles for this type.
	Builder QueryBuilder

	// ExecQuery and CombineQuery override the catalog defaults for this
	// type when non-nil.
	ExecQuery    ExecQueryFunc
	CombineQuery CombineQueryFunc
}

// ResourceType is a registered type descriptor.
type ResourceType struct {
	Name          string
	IdentityField string
	Fields        map[string]FieldKind
	Relations     map[string]Relation
	Builder       QueryBuilder

	exec    ExecQueryFunc
	combine CombineQueryFunc
}

// Field returns the named field's kind, if registered.
func (rt *ResourceType) Field(name string) (FieldKind, bool) {
	kind, ok := rt.Fields[name]
	return kind, ok
}

// Relation returns the named relation, if registered. Relations declared
// through a RelationKind field are visible here as well.
func (rt *ResourceType) Relation(name string) (Relation, bool) {
	if rel, ok := rt.Relations[name]; ok {
		return rel, true
	}
	if kind, ok := rt.Fields[name]; ok {
		if rk, ok := kind.(RelationKind); ok {
			return rk.Relation, true
		}
	}
	return Relation{}, false
}

// Catalog is the registry of resource type descriptors.
type Catalog struct {
	types          map[string]*ResourceType
	defaultExec    ExecQueryFunc
	defaultCombine CombineQueryFunc
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{types: map[string]*ResourceType{}}
}

// RegisterType registers a resource type. It fails with DuplicateTypeError
// when the name is already taken.
func (c *Catalog) RegisterType(def TypeDefinition) (*ResourceType, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("resource type name must not be empty")
	}
	if _, ok := c.types[def.Name]; ok {
		return nil, NewDuplicateTypeErr(def.Name)
	}
	if def.IdentityField == "" {
		return nil, fmt.Errorf("resource type `%s` has no identity field", def.Name)
	}
	if _, ok := def.Fields[def.IdentityField]; !ok {
		return nil, fmt.Errorf("identity field `%s` is not a field of type `%s`", def.IdentityField, def.Name)
	}
	for name := range def.Relations {
		if _, ok := def.Fields[name]; ok {
			return nil, fmt.Errorf("`%s` is both a field and a relation of type `%s`", name, def.Name)
		}
	}

	rt := &ResourceType{
		Name:          def.Name,
		IdentityField: def.IdentityField,
		Fields:        def.Fields,
		Relations:     def.Relations,
		Builder:       def.Builder,
		exec:          def.ExecQuery,
		combine:       def.CombineQuery,
	}
	c.types[def.Name] = rt
	return rt, nil
}

// LookupType returns the descriptor registered under name, failing with
// TypeNotFoundError when absent.
func (c *Catalog) LookupType(name string) (*ResourceType, error) {
	rt, ok := c.types[name]
	if !ok {
		return nil, NewTypeNotFoundErr(name)
	}
	return rt, nil
}

// SetQueryDefaults installs the exec and combine hooks used by every type
// that does not carry its own overrides.
func (c *Catalog) SetQueryDefaults(exec ExecQueryFunc, combine CombineQueryFunc) {
	c.defaultExec = exec
	c.defaultCombine = combine
}

// ExecQueryFor returns the exec hook in effect for the given type.
func (c *Catalog) ExecQueryFor(rt *ResourceType) (ExecQueryFunc, error) {
	if rt.exec != nil {
		return rt.exec, nil
	}
	if c.defaultExec != nil {
		return c.defaultExec, nil
	}
	return nil, fmt.Errorf("no exec_query hook registered for type `%s`", rt.Name)
}

// CombineQueryFor returns the combine hook in effect for the given type.
func (c *Catalog) CombineQueryFor(rt *ResourceType) (CombineQueryFunc, error) {
	if rt.combine != nil {
		return rt.combine, nil
	}
	if c.defaultCombine != nil {
		return c.defaultCombine, nil
	}
	return nil, fmt.Errorf("no combine_query hook registered for type `%s`", rt.Name)
}
