// Package plan turns the per-branch query handles produced by compilation
// into one executed, deduplicated result set. Soundness and completeness of
// the individual branches are established by the compile step; this package
// only guarantees the union is loss-free and that no identity surfaces more
// than once.
package plan

import (
	"context"

	"github.com/davepacheco/oso/internal/logging"
	"github.com/davepacheco/oso/pkg/types"
)

// emptyQuery is the designated handle for a plan with no satisfying
// branches. Executing it returns no instances and never touches a backend.
type emptyQuery struct{}

// Empty is the query handle representing zero satisfying branches.
var Empty types.Query = emptyQuery{}

// Combine unions the given query handles into one by folding the combine
// hook pairwise. A single handle is returned unchanged and zero handles
// yield Empty; the hook runs only when there are at least two.
func Combine(typeName string, combine types.CombineQueryFunc, queries []types.Query) (types.Query, error) {
	switch len(queries) {
	case 0:
		return Empty, nil
	case 1:
		return queries[0], nil
	}

	combined := queries[0]
	for _, q := range queries[1:] {
		next, err := combine(combined, q)
		if err != nil {
			return nil, types.NewBackendErr("combine_query", typeName, err)
		}
		combined = next
	}
	return combined, nil
}

// Execute runs the exec hook for the combined handle and deduplicates the
// result by identity. Multiple branches may independently yield the same
// instance; the first occurrence wins and backend row order is otherwise
// preserved.
func Execute(ctx context.Context, typeName string, exec types.ExecQueryFunc, q types.Query) ([]types.Instance, error) {
	if _, isEmpty := q.(emptyQuery); isEmpty {
		return nil, nil
	}

	instances, err := exec(ctx, q)
	if err != nil {
		return nil, types.NewBackendErr("exec_query", typeName, err)
	}

	deduped := dedupe(instances)
	if len(deduped) != len(instances) {
		logging.Ctx(ctx).Debug().
			Str("type", typeName).
			Int("fetched", len(instances)).
			Int("returned", len(deduped)).
			Msg("dropped duplicate instances from union")
	}
	return deduped, nil
}

func dedupe(instances []types.Instance) []types.Instance {
	seen := make(map[string]struct{}, len(instances))
	result := make([]types.Instance, 0, len(instances))
	for _, inst := range instances {
		id := inst.ResourceID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, inst)
	}
	return result
}
