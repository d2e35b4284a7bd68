package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davepacheco/oso/pkg/types"
)

type instance string

func (i instance) ResourceID() string {
	return string(i)
}

func instances(ids ...string) []types.Instance {
	result := make([]types.Instance, len(ids))
	for i, id := range ids {
		result[i] = instance(id)
	}
	return result
}

// unionQuery is a toy handle: the union of named result sets.
type unionQuery []string

func combineUnion(a, b types.Query) (types.Query, error) {
	return append(append(unionQuery{}, a.(unionQuery)...), b.(unionQuery)...), nil
}

func TestCombineFoldsPairwise(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	calls := 0
	combine := func(a, b types.Query) (types.Query, error) {
		calls++
		return combineUnion(a, b)
	}

	combined, err := Combine("Repository", combine, []types.Query{
		unionQuery{"a"}, unionQuery{"b"}, unionQuery{"c"},
	})
	require.NoError(err)
	require.Equal(unionQuery{"a", "b", "c"}, combined)
	require.Equal(2, calls)
}

func TestCombineSingleQueryUntouched(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	combine := func(a, b types.Query) (types.Query, error) {
		t.Fatal("combine hook must not run for a single branch")
		return nil, nil
	}

	q := unionQuery{"only"}
	combined, err := Combine("Repository", combine, []types.Query{q})
	require.NoError(err)
	require.Equal(types.Query(q), combined)
}

func TestCombineZeroQueriesYieldsEmpty(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	combined, err := Combine("Repository", nil, nil)
	require.NoError(err)
	require.Equal(Empty, combined)
}

func TestCombineWrapsHookFailure(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	boom := errors.New("cannot union")
	combine := func(a, b types.Query) (types.Query, error) { return nil, boom }

	_, err := Combine("Repository", combine, []types.Query{unionQuery{"a"}, unionQuery{"b"}})
	var backend types.BackendError
	require.ErrorAs(err, &backend)
	require.Equal("combine_query", backend.Operation())
	require.ErrorIs(err, boom)
}

func TestExecuteDeduplicatesByIdentity(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	// Two branches independently authorize oso; it must surface once,
	// with first-seen order otherwise preserved.
	exec := func(ctx context.Context, q types.Query) ([]types.Instance, error) {
		return instances("oso", "demo", "oso", "demo", "ios"), nil
	}

	result, err := Execute(context.Background(), "Repository", exec, unionQuery{"plan"})
	require.NoError(err)
	require.Equal(instances("oso", "demo", "ios"), result)
}

func TestExecuteEmptyQuerySkipsBackend(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	exec := func(ctx context.Context, q types.Query) ([]types.Instance, error) {
		t.Fatal("exec hook must not run for the empty query")
		return nil, nil
	}

	result, err := Execute(context.Background(), "Repository", exec, Empty)
	require.NoError(err)
	require.Empty(result)
}

func TestExecuteWrapsHookFailure(t *testing.T) {
	require := require.New(t)
	t.Parallel()

	boom := errors.New("connection reset")
	exec := func(ctx context.Context, q types.Query) ([]types.Instance, error) { return nil, boom }

	_, err := Execute(context.Background(), "Repository", exec, unionQuery{"plan"})
	var backend types.BackendError
	require.ErrorAs(err, &backend)
	require.Equal("exec_query", backend.Operation())
	require.Equal("Repository", backend.TypeName())
	require.ErrorIs(err, boom)
}
