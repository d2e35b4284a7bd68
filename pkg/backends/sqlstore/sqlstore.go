// Package sqlstore is a SQL backend for the data-filtering engine. Query
// handles wrap squirrel select builders: comparisons become WHERE
// predicates, uncollapsed relation hops become correlated EXISTS
// subqueries, and the combine hook is UNION. Execution runs through
// database/sql; Open dials Postgres via the pgx stdlib driver.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/davepacheco/oso/internal/logging"
	"github.com/davepacheco/oso/pkg/filters"
	"github.com/davepacheco/oso/pkg/types"
)

// Table maps a resource type onto its backing table. IDColumn must be the
// column holding the registered identity field and must appear in Columns.
type Table struct {
	Name     string
	IDColumn string
	Columns  []string
}

// Row is one fetched instance: the identity plus the selected columns.
type Row struct {
	ID     string
	Values map[string]any
}

// ResourceID implements types.Instance.
func (r *Row) ResourceID() string {
	return r.ID
}

// Store builds and executes SQL queries for the types it holds table
// mappings for.
type Store struct {
	db     *sql.DB
	tables map[string]Table
}

var _ types.QueryBuilder = (*Store)(nil)

// New constructs a store over an existing database handle. The db may be
// nil when the store is used only to build SQL, e.g. in tests.
func New(db *sql.DB, tables map[string]Table) *Store {
	return &Store{db: db, tables: tables}
}

// Open dials a Postgres database through the pgx stdlib driver and returns
// a store over it.
func Open(ctx context.Context, dsn string, tables map[string]Table) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return New(db, tables), nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// sqlQuery is the store's opaque query handle.
type sqlQuery struct {
	table   Table
	builder sq.SelectBuilder
}

// BuildQuery implements types.QueryBuilder.
func (s *Store) BuildQuery(rt *types.ResourceType, expr types.Expr) (types.Query, error) {
	table, ok := s.tables[rt.Name]
	if !ok {
		return nil, fmt.Errorf("no table mapped for type `%s`", rt.Name)
	}

	where, err := s.sqlizer(table, expr)
	if err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(table.Columns)+1)
	cols = append(cols, table.Name+"."+table.IDColumn)
	for _, col := range table.Columns {
		if col == table.IDColumn {
			continue
		}
		cols = append(cols, table.Name+"."+col)
	}

	builder := sq.Select(cols...).From(table.Name).Where(where)
	return &sqlQuery{table: table, builder: builder}, nil
}

// CombineQuery unions two handles via SQL UNION. UNION already removes
// duplicate rows; the engine's identity dedup on top is then a no-op but
// keeps the union guarantee independent of the backend.
func (s *Store) CombineQuery(a, b types.Query) (types.Query, error) {
	qa, ok := a.(*sqlQuery)
	if !ok {
		return nil, fmt.Errorf("foreign query handle %T", a)
	}
	qb, ok := b.(*sqlQuery)
	if !ok {
		return nil, fmt.Errorf("foreign query handle %T", b)
	}
	if qa.table.Name != qb.table.Name {
		return nil, fmt.Errorf("cannot union queries over `%s` and `%s`", qa.table.Name, qb.table.Name)
	}

	otherSQL, otherArgs, err := qb.builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("unable to render union arm: %w", err)
	}
	return &sqlQuery{
		table:   qa.table,
		builder: qa.builder.Suffix("UNION "+otherSQL, otherArgs...),
	}, nil
}

// ExecQuery renders the handle with Postgres placeholders and scans every
// row into a Row instance.
func (s *Store) ExecQuery(ctx context.Context, q types.Query) ([]types.Instance, error) {
	sqlq, ok := q.(*sqlQuery)
	if !ok {
		return nil, fmt.Errorf("foreign query handle %T", q)
	}
	if s.db == nil {
		return nil, fmt.Errorf("store has no database handle")
	}

	query, args, err := sqlq.builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("unable to render query: %w", err)
	}

	logging.Ctx(ctx).Trace().
		Str("table", sqlq.table.Name).
		Str("sql", query).
		Msg("executing filter query")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query `%s`: %w", sqlq.table.Name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []types.Instance
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("unable to scan `%s` row: %w", sqlq.table.Name, err)
		}

		row := &Row{Values: make(map[string]any, len(columns))}
		for i, col := range columns {
			name := col
			if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
				name = name[idx+1:]
			}
			row.Values[name] = values[i]
			if name == sqlq.table.IDColumn {
				row.ID = fmt.Sprintf("%v", values[i])
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to iterate `%s` rows: %w", sqlq.table.Name, err)
	}
	return results, nil
}

// SQL renders a handle for inspection, with the placeholder format used at
// execution time.
func SQL(q types.Query) (string, []any, error) {
	sqlq, ok := q.(*sqlQuery)
	if !ok {
		return "", nil, fmt.Errorf("foreign query handle %T", q)
	}
	return sqlq.builder.PlaceholderFormat(sq.Dollar).ToSql()
}

// sqlizer translates a resolved expression into a squirrel predicate rooted
// at the given table.
func (s *Store) sqlizer(table Table, expr types.Expr) (sq.Sqlizer, error) {
	return s.exprSqlizer(table.Name, expr)
}

func (s *Store) exprSqlizer(qualifier string, expr types.Expr) (sq.Sqlizer, error) {
	switch e := expr.(type) {
	case *types.Junction:
		if len(e.Exprs) == 0 {
			// Empty conjunctions and disjunctions must render as the
			// always-true and always-false predicates.
			if e.Op == filters.CombineAnd {
				return sq.Expr("TRUE"), nil
			}
			return sq.Expr("FALSE"), nil
		}

		parts := make([]sq.Sqlizer, 0, len(e.Exprs))
		for _, child := range e.Exprs {
			part, err := s.exprSqlizer(qualifier, child)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		if e.Op == filters.CombineAnd {
			return sq.And(parts), nil
		}
		return sq.Or(parts), nil

	case *types.Comparison:
		return s.comparisonSqlizer(qualifier, e)

	default:
		return nil, fmt.Errorf("unsupported expression %T", expr)
	}
}

// comparisonSqlizer renders a comparison. Relation hops that survived the
// compiler's collapse pass become correlated EXISTS subqueries, one per
// hop, which covers both One and Many cardinalities with existential
// semantics.
func (s *Store) comparisonSqlizer(qualifier string, cmp *types.Comparison) (sq.Sqlizer, error) {
	if len(cmp.Column.Joins) == 0 {
		col := qualifier + "." + cmp.Column.Field
		switch cmp.Op {
		case filters.OpEq:
			return sq.Eq{col: cmp.Value()}, nil
		case filters.OpNeq:
			return sq.NotEq{col: cmp.Value()}, nil
		case filters.OpIn:
			return sq.Eq{col: cmp.Values}, nil
		case filters.OpNin:
			return sq.NotEq{col: cmp.Values}, nil
		default:
			return nil, fmt.Errorf("unsupported comparison kind %s", cmp.Op)
		}
	}

	join := cmp.Column.Joins[0]
	target, ok := s.tables[join.TargetType]
	if !ok {
		return nil, fmt.Errorf("no table mapped for type `%s`", join.TargetType)
	}

	inner, err := s.comparisonSqlizer(target.Name, &types.Comparison{
		Op:     cmp.Op,
		Column: types.ResolvedColumn{Joins: cmp.Column.Joins[1:], Field: cmp.Column.Field},
		Values: cmp.Values,
	})
	if err != nil {
		return nil, err
	}

	subquery := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM %s WHERE %s.%s = %s.%s AND ?)",
		target.Name, target.Name, join.TargetField, qualifier, join.LocalField,
	)
	return sq.Expr(subquery, inner), nil
}
