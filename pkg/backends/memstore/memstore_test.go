package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davepacheco/oso/pkg/filters"
	"github.com/davepacheco/oso/pkg/types"
)

func storeFixture(t *testing.T) *Store {
	t.Helper()
	require := require.New(t)

	store, err := New("Organization", "Repository")
	require.NoError(err)

	require.NoError(store.Insert("Organization",
		&Object{ID: "osohq", Fields: map[string]any{"id": "osohq"}},
		&Object{ID: "apple", Fields: map[string]any{"id": "apple"}},
	))
	require.NoError(store.Insert("Repository",
		&Object{ID: "ios", Fields: map[string]any{"id": "ios", "org_id": "apple"}},
		&Object{ID: "oso", Fields: map[string]any{"id": "oso", "org_id": "osohq"}},
		&Object{ID: "demo", Fields: map[string]any{"id": "demo", "org_id": "osohq"}},
	))
	return store
}

func repositoryType() *types.ResourceType {
	return &types.ResourceType{Name: "Repository", IdentityField: "id"}
}

func ids(instances []types.Instance) []string {
	result := make([]string, len(instances))
	for i, inst := range instances {
		result[i] = inst.ResourceID()
	}
	return result
}

func execute(t *testing.T, store *Store, expr types.Expr) []string {
	t.Helper()
	require := require.New(t)

	q, err := store.BuildQuery(repositoryType(), expr)
	require.NoError(err)
	instances, err := store.ExecQuery(context.Background(), q)
	require.NoError(err)
	return ids(instances)
}

func TestExecScalarComparisons(t *testing.T) {
	t.Parallel()
	store := storeFixture(t)

	testCases := []struct {
		name string
		expr types.Expr
		want []string
	}{
		{
			"eq",
			&types.Comparison{Op: filters.OpEq, Column: types.ResolvedColumn{Field: "org_id"}, Values: []any{"osohq"}},
			[]string{"demo", "oso"},
		},
		{
			"neq",
			&types.Comparison{Op: filters.OpNeq, Column: types.ResolvedColumn{Field: "org_id"}, Values: []any{"osohq"}},
			[]string{"ios"},
		},
		{
			"in",
			&types.Comparison{Op: filters.OpIn, Column: types.ResolvedColumn{Field: "id"}, Values: []any{"oso", "ios"}},
			[]string{"ios", "oso"},
		},
		{
			"nin",
			&types.Comparison{Op: filters.OpNin, Column: types.ResolvedColumn{Field: "id"}, Values: []any{"oso", "ios"}},
			[]string{"demo"},
		},
		{
			"always true",
			&types.Junction{Op: filters.CombineAnd},
			[]string{"demo", "ios", "oso"},
		},
		{
			"always false",
			&types.Junction{Op: filters.CombineOr},
			nil,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require := require.New(t)
			t.Parallel()

			require.ElementsMatch(tc.want, execute(t, store, tc.expr))
		})
	}
}

func TestExecJoinedComparison(t *testing.T) {
	require := require.New(t)
	t.Parallel()
	store := storeFixture(t)

	// Repositories whose organization's id is osohq, traversed through an
	// uncollapsed join description.
	got := execute(t, store, &types.Comparison{
		Op: filters.OpEq,
		Column: types.ResolvedColumn{
			Joins: []types.Join{{
				Relation:    "organization",
				Cardinality: types.One,
				LocalField:  "org_id",
				TargetType:  "Organization",
				TargetField: "id",
			}},
			Field: "id",
		},
		Values: []any{"osohq"},
	})
	require.ElementsMatch([]string{"oso", "demo"}, got)
}

func TestExecManyJoinIsExistential(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	store, err := New("Organization", "Repository")
	require.NoError(err)
	require.NoError(store.Insert("Organization",
		&Object{ID: "osohq", Fields: map[string]any{"id": "osohq"}},
		&Object{ID: "apple", Fields: map[string]any{"id": "apple"}},
		&Object{ID: "empty", Fields: map[string]any{"id": "empty"}},
	))
	require.NoError(store.Insert("Repository",
		&Object{ID: "ios", Fields: map[string]any{"id": "ios", "org_id": "apple"}},
		&Object{ID: "oso", Fields: map[string]any{"id": "oso", "org_id": "osohq"}},
		&Object{ID: "demo", Fields: map[string]any{"id": "demo", "org_id": "osohq"}},
	))

	// Organizations having at least one repository named oso or ios.
	q, err := store.BuildQuery(
		&types.ResourceType{Name: "Organization", IdentityField: "id"},
		&types.Comparison{
			Op: filters.OpIn,
			Column: types.ResolvedColumn{
				Joins: []types.Join{{
					Relation:    "repositories",
					Cardinality: types.Many,
					LocalField:  "id",
					TargetType:  "Repository",
					TargetField: "org_id",
				}},
				Field: "id",
			},
			Values: []any{"oso", "ios"},
		},
	)
	require.NoError(err)

	instances, err := store.ExecQuery(context.Background(), q)
	require.NoError(err)
	require.ElementsMatch([]string{"osohq", "apple"}, ids(instances))
}

func TestExecUncomparableFieldValue(t *testing.T) {
	require := require.New(t)
	t.Parallel()
	store := storeFixture(t)

	// A slice-valued field must not panic the scan; it never compares
	// equal to anything, so Eq and In skip it while Neq and Nin match it.
	require.NoError(store.Insert("Repository",
		&Object{ID: "tagged", Fields: map[string]any{
			"id":     "tagged",
			"org_id": []string{"osohq", "apple"},
		}},
	))

	got := execute(t, store, &types.Comparison{
		Op: filters.OpEq, Column: types.ResolvedColumn{Field: "org_id"}, Values: []any{"osohq"},
	})
	require.ElementsMatch([]string{"demo", "oso"}, got)

	got = execute(t, store, &types.Comparison{
		Op: filters.OpNin, Column: types.ResolvedColumn{Field: "org_id"}, Values: []any{"osohq", "apple"},
	})
	require.ElementsMatch([]string{"tagged"}, got)
}

func TestCombineQueryUnions(t *testing.T) {
	require := require.New(t)
	t.Parallel()
	store := storeFixture(t)

	qa, err := store.BuildQuery(repositoryType(), &types.Comparison{
		Op: filters.OpEq, Column: types.ResolvedColumn{Field: "id"}, Values: []any{"oso"},
	})
	require.NoError(err)
	qb, err := store.BuildQuery(repositoryType(), &types.Comparison{
		Op: filters.OpEq, Column: types.ResolvedColumn{Field: "org_id"}, Values: []any{"apple"},
	})
	require.NoError(err)

	combined, err := store.CombineQuery(qa, qb)
	require.NoError(err)

	instances, err := store.ExecQuery(context.Background(), combined)
	require.NoError(err)
	require.ElementsMatch([]string{"oso", "ios"}, ids(instances))
}

func TestCombineQueryRejectsMismatchedTypes(t *testing.T) {
	require := require.New(t)
	t.Parallel()
	store := storeFixture(t)

	qa, err := store.BuildQuery(repositoryType(), &types.Junction{Op: filters.CombineAnd})
	require.NoError(err)
	qb, err := store.BuildQuery(&types.ResourceType{Name: "Organization", IdentityField: "id"}, &types.Junction{Op: filters.CombineAnd})
	require.NoError(err)

	_, err = store.CombineQuery(qa, qb)
	require.Error(err)
}

func TestInsertReplacesByIdentity(t *testing.T) {
	require := require.New(t)
	t.Parallel()
	store := storeFixture(t)

	require.NoError(store.Insert("Repository",
		&Object{ID: "oso", Fields: map[string]any{"id": "oso", "org_id": "apple"}},
	))

	got := execute(t, store, &types.Comparison{
		Op: filters.OpEq, Column: types.ResolvedColumn{Field: "org_id"}, Values: []any{"apple"},
	})
	require.ElementsMatch([]string{"ios", "oso"}, got)
}
