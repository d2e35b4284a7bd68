// Command filterdemo runs the engine end to end against the in-memory
// backend: two organizations, three repositories, and a policy that grants
// an actor read on every repository of the organization they belong to.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/davepacheco/oso/internal/logging"
	"github.com/davepacheco/oso/pkg/backends/memstore"
	"github.com/davepacheco/oso/pkg/datafilter"
	"github.com/davepacheco/oso/pkg/filters"
	"github.com/davepacheco/oso/pkg/types"
)

func main() {
	logging.SetGlobalLogger(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel).With().Timestamp().Logger())

	if err := run(context.Background()); err != nil {
		logging.Err(err).Msg("demo failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	store, err := memstore.New("Organization", "Repository")
	if err != nil {
		return err
	}

	catalog := types.NewCatalog()
	catalog.SetQueryDefaults(store.ExecQuery, store.CombineQuery)

	if _, err := catalog.RegisterType(types.TypeDefinition{
		Name:          "Organization",
		IdentityField: "id",
		Fields:        map[string]types.FieldKind{"id": types.Primitive{Kind: types.StringScalar}},
		Builder:       store,
	}); err != nil {
		return err
	}
	if _, err := catalog.RegisterType(types.TypeDefinition{
		Name:          "Repository",
		IdentityField: "id",
		Fields: map[string]types.FieldKind{
			"id":     types.Primitive{Kind: types.StringScalar},
			"org_id": types.Primitive{Kind: types.StringScalar},
		},
		Relations: map[string]types.Relation{
			"organization": {
				Cardinality: types.One,
				MyField:     "org_id",
				OtherType:   "Organization",
				OtherField:  "id",
			},
		},
		Builder: store,
	}); err != nil {
		return err
	}

	if err := store.Insert("Organization",
		&memstore.Object{ID: "osohq", Fields: map[string]any{"id": "osohq"}},
		&memstore.Object{ID: "apple", Fields: map[string]any{"id": "apple"}},
	); err != nil {
		return err
	}
	if err := store.Insert("Repository",
		&memstore.Object{ID: "ios", Fields: map[string]any{"id": "ios", "org_id": "apple"}},
		&memstore.Object{ID: "oso", Fields: map[string]any{"id": "oso", "org_id": "osohq"}},
		&memstore.Object{ID: "demo", Fields: map[string]any{"id": "demo", "org_id": "osohq"}},
	); err != nil {
		return err
	}

	// Stands in for policy partial evaluation: leina is an owner of osohq,
	// so reading a Repository constrains its organization's id to osohq.
	memberships := map[string][]any{"leina": {"osohq"}}
	plans := datafilter.PlanSourceFunc(func(ctx context.Context, actor any, action, typeName string) (*filters.Plan, error) {
		orgs := memberships[fmt.Sprintf("%v", actor)]
		if action != "read" || typeName != "Repository" || len(orgs) == 0 {
			return &filters.Plan{}, nil
		}
		return &filters.Plan{Branches: []filters.Node{
			filters.In(filters.Field("id").Via("organization"), orgs),
		}}, nil
	})

	engine := datafilter.NewEngine(catalog, plans)

	for _, actor := range []string{"leina", "steve"} {
		repos, err := engine.Authorize(ctx, actor, "read", "Repository")
		if err != nil {
			return err
		}
		ids := make([]string, len(repos))
		for i, repo := range repos {
			ids[i] = repo.ResourceID()
		}
		fmt.Printf("%s can read repositories: %v\n", actor, ids)
	}
	return nil
}
