package filters

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColumnConstruction(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	require.Equal(Column{}, Identity())
	require.Equal(Column{Field: "org_id"}, Field("org_id"))
	require.Equal(Column{Hops: []string{"organization"}, Field: "id"}, Field("id").Via("organization"))
	require.Equal(
		Column{Hops: []string{"organization", "parent"}},
		Identity().Via("organization", "parent"),
	)
}

func TestColumnString(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	require.Equal("<identity>", Identity().String())
	require.Equal("org_id", Field("org_id").String())
	require.Equal("organization.id", Field("id").Via("organization").String())
	require.Equal("organization.<identity>", Identity().Via("organization").String())
}

func TestConstructorShapes(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	eq := Eq(Field("name"), "oso")
	require.Equal(OpEq, eq.Op)
	require.False(eq.Composite())

	in := In(Field("name"), []any{"oso", "demo"})
	require.Equal(OpIn, in.Op)
	require.Equal([]any{"oso", "demo"}, in.Value)

	tuple := TupleIn([]Column{Field("a"), Field("b")}, [][]any{{1, 2}})
	require.True(tuple.Composite())
}

func TestEmptyGroupConstants(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	require.Equal(CombineAnd, AlwaysTrue().Op)
	require.Empty(AlwaysTrue().Children)
	require.Equal(CombineOr, AlwaysFalse().Op)
	require.Empty(AlwaysFalse().Children)
}

func TestNodeString(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	node := And(
		Eq(Field("org_id"), "osohq"),
		Or(Neq(Identity(), "ios")),
	)
	require.Equal("And(Eq(org_id, osohq),Or(Neq(<identity>, ios)))", node.String())
}
