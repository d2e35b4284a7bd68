package types

// Resolver resolves named relations between catalog types into join
// descriptions. Resolution is lazy and non-materializing: it yields the
// shape of a join, never a joined dataset, and chained paths resolve one
// hop at a time so a broken link fails fast with the offending segment
// identified.
type Resolver struct {
	catalog *Catalog
}

// NewResolver constructs a resolver over the given catalog.
func NewResolver(catalog *Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// ResolvedRelation is the join description for one relation hop.
type ResolvedRelation struct {
	Relation    string
	Cardinality Cardinality
	LocalField  string
	Target      *ResourceType
	TargetField string
}

// Resolve resolves relationName declared on source. It fails with
// RelationNotFoundError when the relation is not declared, and with
// TypeNotFoundError when the target type is missing from the catalog,
// caught here at resolve time rather than deferred to execution.
func (r *Resolver) Resolve(source *ResourceType, relationName string) (ResolvedRelation, error) {
	rel, ok := source.Relation(relationName)
	if !ok {
		return ResolvedRelation{}, NewRelationNotFoundErr(source.Name, relationName)
	}
	target, err := r.catalog.LookupType(rel.OtherType)
	if err != nil {
		return ResolvedRelation{}, err
	}
	return ResolvedRelation{
		Relation:    relationName,
		Cardinality: rel.Cardinality,
		LocalField:  rel.MyField,
		Target:      target,
		TargetField: rel.OtherField,
	}, nil
}

// ResolvePath resolves a chain of relation hops starting at source, each
// hop validated independently against the type the previous hop landed on.
func (r *Resolver) ResolvePath(source *ResourceType, hops []string) ([]ResolvedRelation, error) {
	resolved := make([]ResolvedRelation, 0, len(hops))
	current := source
	for _, hop := range hops {
		rr, err := r.Resolve(current, hop)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, rr)
		current = rr.Target
	}
	return resolved, nil
}
