package types

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ErrNotFound is a shared interface for not found errors.
type ErrNotFound interface {
	IsNotFoundError() bool
}

// TypeNotFoundError occurs when a resource type was not found in the catalog.
type TypeNotFoundError struct {
	error
	typeName string
}

var _ ErrNotFound = TypeNotFoundError{}

func (err TypeNotFoundError) IsNotFoundError() bool {
	return true
}

// TypeName is the name of the type not found.
func (err TypeNotFoundError) TypeName() string {
	return err.typeName
}

// MarshalZerologObject implements zerolog object marshalling.
func (err TypeNotFoundError) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("type", err.typeName)
}

// NewTypeNotFoundErr constructs a new type not found error.
func NewTypeNotFoundErr(typeName string) TypeNotFoundError {
	return TypeNotFoundError{
		error:    fmt.Errorf("resource type `%s` not found", typeName),
		typeName: typeName,
	}
}

// DuplicateTypeError occurs when a resource type is registered under a name
// already present in the catalog.
type DuplicateTypeError struct {
	error
	typeName string
}

// TypeName is the name registered twice.
func (err DuplicateTypeError) TypeName() string {
	return err.typeName
}

// NewDuplicateTypeErr constructs a new duplicate type error.
func NewDuplicateTypeErr(typeName string) DuplicateTypeError {
	return DuplicateTypeError{
		error:    fmt.Errorf("resource type `%s` is already registered", typeName),
		typeName: typeName,
	}
}

// FieldNotFoundError occurs when a filter names a field that resolves
// neither as a field nor as a relation on the filtered type.
type FieldNotFoundError struct {
	error
	typeName  string
	fieldName string
}

var _ ErrNotFound = FieldNotFoundError{}

func (err FieldNotFoundError) IsNotFoundError() bool {
	return true
}

// TypeName is the type the field was looked up on.
func (err FieldNotFoundError) TypeName() string {
	return err.typeName
}

// FieldName is the name that failed to resolve.
func (err FieldNotFoundError) FieldName() string {
	return err.fieldName
}

// MarshalZerologObject implements zerolog object marshalling.
func (err FieldNotFoundError) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("type", err.typeName).Str("field", err.fieldName)
}

// NewFieldNotFoundErr constructs a new field not found error.
func NewFieldNotFoundErr(typeName, fieldName string) FieldNotFoundError {
	return FieldNotFoundError{
		error:     fmt.Errorf("type `%s` has no field or relation `%s`", typeName, fieldName),
		typeName:  typeName,
		fieldName: fieldName,
	}
}

// RelationNotFoundError occurs when a relation path segment fails to
// resolve. Segment identifies the offending hop, so a broken link anywhere
// in a chained path is reported precisely.
type RelationNotFoundError struct {
	error
	typeName string
	segment  string
}

var _ ErrNotFound = RelationNotFoundError{}

func (err RelationNotFoundError) IsNotFoundError() bool {
	return true
}

// TypeName is the type the segment was resolved against.
func (err RelationNotFoundError) TypeName() string {
	return err.typeName
}

// Segment is the relation name that failed to resolve.
func (err RelationNotFoundError) Segment() string {
	return err.segment
}

// MarshalZerologObject implements zerolog object marshalling.
func (err RelationNotFoundError) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("type", err.typeName).Str("segment", err.segment)
}

// NewRelationNotFoundErr constructs a new relation not found error.
func NewRelationNotFoundErr(typeName, segment string) RelationNotFoundError {
	return RelationNotFoundError{
		error:    fmt.Errorf("type `%s` has no relation `%s`", typeName, segment),
		typeName: typeName,
		segment:  segment,
	}
}

// ArityMismatchError occurs when the value of a comparison is not shaped to
// match its columns: a composite comparison whose tuple width differs from
// the column count, or an In/Nin whose value is not a candidate set.
type ArityMismatchError struct {
	error
	expected int
	actual   int
}

// Expected is the arity demanded by the comparison's columns.
func (err ArityMismatchError) Expected() int {
	return err.expected
}

// Actual is the arity of the value supplied.
func (err ArityMismatchError) Actual() int {
	return err.actual
}

// NewArityMismatchErr constructs a new arity mismatch error.
func NewArityMismatchErr(expected, actual int) ArityMismatchError {
	return ArityMismatchError{
		error:    fmt.Errorf("composite comparison over %d columns given a value of arity %d", expected, actual),
		expected: expected,
		actual:   actual,
	}
}

// NewValueShapeErr constructs an arity mismatch error for a value whose
// overall shape is wrong for the comparison kind, e.g. a scalar where a
// candidate set was required.
func NewValueShapeErr(op fmt.Stringer, detail string) ArityMismatchError {
	return ArityMismatchError{
		error: fmt.Errorf("%s comparison value has the wrong shape: %s", op, detail),
	}
}

// BackendError wraps a failure returned by an injected backend hook. Backend
// failures are opaque and potentially non-idempotent, so they are propagated
// to the caller without retry.
type BackendError struct {
	error
	operation string
	typeName  string
}

// Unwrap returns the inner, wrapped error.
func (err BackendError) Unwrap() error {
	return err.error
}

// Operation is the hook that failed: build_query, combine_query or
// exec_query.
func (err BackendError) Operation() string {
	return err.operation
}

// TypeName is the resource type being queried.
func (err BackendError) TypeName() string {
	return err.typeName
}

// MarshalZerologObject implements zerolog object marshalling.
func (err BackendError) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("operation", err.operation).Str("type", err.typeName)
}

// NewBackendErr constructs a new backend error wrapping the hook failure.
func NewBackendErr(operation, typeName string, err error) BackendError {
	return BackendError{
		error:     fmt.Errorf("backend %s failed for type `%s`: %w", operation, typeName, err),
		operation: operation,
		typeName:  typeName,
	}
}
