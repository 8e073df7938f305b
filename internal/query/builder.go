// Package query compiles declarative filter, sort, and pagination requests
// into parameterized SQL selects over the entity graph described by
// internal/meta. All SQL is assembled with squirrel; parameters are always
// positional placeholders, so a fresh parameter is minted per leaf predicate
// and repeated attribute/operator pairs can never collide.
package query

import (
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"recordql/internal/filter"
	"recordql/internal/meta"
	"recordql/internal/sqlutil"
)

// Configuration errors. These indicate a caller/schema mismatch and are never
// retried.
var (
	ErrUnknownAttribute   = errors.New("unknown attribute")
	ErrUnknownQuantifier  = errors.New("unknown relation quantifier")
	ErrUnknownCardinality = errors.New("unsupported relation cardinality")
)

type joinClause struct {
	left bool // LEFT JOIN vs inner JOIN
	sql  string
}

// Builder assembles one soft-delete-aware, filtered, ordered, paginated
// select over an entity's backing table. A Builder is request-scoped: its
// alias counter and collected clauses are never shared across calls.
type Builder struct {
	registry *meta.Registry
	entity   meta.Entity

	selected []meta.Column
	conds    []sq.Sqlizer
	joins    []joinClause
	groupBys []string
	havings  []sq.Sqlizer
	orderBys []string
	limit    int64
	offset   int64

	aliasCounter int
}

// NewBuilder starts a select over the named entity with all columns selected.
func NewBuilder(registry *meta.Registry, entityName string) (*Builder, error) {
	entity, err := registry.Entity(entityName)
	if err != nil {
		return nil, err
	}
	return &Builder{
		registry: registry,
		entity:   entity,
		selected: append([]meta.Column(nil), entity.Columns...),
		limit:    -1,
		offset:   -1,
	}, nil
}

// Entity returns the root entity of the query.
func (b *Builder) Entity() meta.Entity { return b.entity }

// Select restricts the projection to the given logical attributes. Names that
// are not columns (relation names included) are silently dropped, and the
// identifier column is always force-included because batching by identifier
// depends on it. A nil or empty list keeps the full projection.
func (b *Builder) Select(fields []string) {
	if len(fields) == 0 {
		return
	}
	pk := b.entity.PrimaryColumn()
	selected := make([]meta.Column, 0, len(fields)+1)
	seen := map[string]struct{}{}
	for _, f := range fields {
		col, ok := b.entity.Column(f)
		if !ok {
			continue
		}
		if _, dup := seen[col.Name]; dup {
			continue
		}
		seen[col.Name] = struct{}{}
		selected = append(selected, col)
	}
	if _, ok := seen[pk.Name]; !ok {
		selected = append([]meta.Column{pk}, selected...)
	}
	b.selected = selected
}

// SelectedColumns returns the projection in select order, for row scanning.
func (b *Builder) SelectedColumns() []meta.Column {
	return b.selected
}

// Where decomposes a raw filter map, applies the soft-delete policy, and
// compiles the resulting expression tree into the query.
func (b *Builder) Where(input map[string]interface{}) error {
	expr, err := filter.Decompose(input)
	if err != nil {
		return err
	}
	expr, err = b.applySoftDeletePolicy(expr)
	if err != nil {
		return err
	}
	if expr.Empty() {
		return nil
	}
	cond, err := b.compile(b.entity, b.entity.Table, expr, true)
	if err != nil {
		return err
	}
	if cond != nil {
		b.conds = append(b.conds, cond)
	}
	return nil
}

// AndCondition conjoins a prebuilt condition (cursor seek predicates).
func (b *Builder) AndCondition(cond sq.Sqlizer) {
	if cond != nil {
		b.conds = append(b.conds, cond)
	}
}

// Limit caps the number of returned rows. Negative means no limit.
func (b *Builder) Limit(n int) { b.limit = int64(n) }

// Offset skips the first n rows. Negative means no offset.
func (b *Builder) Offset(n int) { b.offset = int64(n) }

// applySoftDeletePolicy implements the default live-rows filter: unless the
// expression mentions deletedAt anywhere, inject deletedAt IS NULL at the top
// level. The deletedAt_all sentinel is stripped and disables the implicit
// filter; any other explicit deletedAt filter is respected as-is. Entities
// without a deletedAt column are exempt.
func (b *Builder) applySoftDeletePolicy(expr filter.Expression) (filter.Expression, error) {
	const attr = "deletedAt"
	col, ok := b.entity.Column(attr)
	if !ok {
		return expr, nil
	}

	stripped, sawSentinel, sawFilter, err := stripSoftDeleteSentinel(expr)
	if err != nil {
		return filter.Expression{}, err
	}
	if sawSentinel || sawFilter {
		return stripped, nil
	}
	b.conds = append(b.conds, sq.Eq{sqlutil.Qualify(b.entity.Table, col.ColumnName): nil})
	return stripped, nil
}

func stripSoftDeleteSentinel(expr filter.Expression) (filter.Expression, bool, bool, error) {
	sentinel := false
	explicit := false

	leaves := expr.Leaves[:0:0]
	for _, leaf := range expr.Leaves {
		if leaf.Operator == filter.OpAll {
			if leaf.Attribute != "deletedAt" {
				return filter.Expression{}, false, false, fmt.Errorf("operator all is only valid on deletedAt, not %s", leaf.Attribute)
			}
			sentinel = true
			continue
		}
		if leaf.Attribute == "deletedAt" {
			explicit = true
		}
		leaves = append(leaves, leaf)
	}
	expr.Leaves = leaves

	walk := func(subs []filter.Expression) ([]filter.Expression, error) {
		out := subs[:0:0]
		for _, sub := range subs {
			stripped, s, e, err := stripSoftDeleteSentinel(sub)
			if err != nil {
				return nil, err
			}
			sentinel = sentinel || s
			explicit = explicit || e
			if !stripped.Empty() {
				out = append(out, stripped)
			}
		}
		return out, nil
	}

	var err error
	if expr.And, err = walk(expr.And); err != nil {
		return filter.Expression{}, false, false, err
	}
	if expr.Or, err = walk(expr.Or); err != nil {
		return filter.Expression{}, false, false, err
	}
	if expr.Not, err = walk(expr.Not); err != nil {
		return filter.Expression{}, false, false, err
	}
	return expr, sentinel, explicit, nil
}

func (b *Builder) nextAlias(prefix string) string {
	b.aliasCounter++
	return fmt.Sprintf("__%s_%d", prefix, b.aliasCounter)
}

func (b *Builder) addGroupByParent() {
	pk := sqlutil.Qualify(b.entity.Table, b.entity.PrimaryColumn().ColumnName)
	for _, g := range b.groupBys {
		if g == pk {
			return
		}
	}
	b.groupBys = append(b.groupBys, pk)
}

// ToSQL assembles the data query.
func (b *Builder) ToSQL() (string, []interface{}, error) {
	cols := make([]string, len(b.selected))
	for i, c := range b.selected {
		cols[i] = sqlutil.Qualify(b.entity.Table, c.ColumnName)
	}
	builder := b.assemble(sq.Select(cols...))
	if len(b.orderBys) > 0 {
		builder = builder.OrderBy(b.orderBys...)
	}
	if b.limit >= 0 {
		builder = builder.Limit(uint64(b.limit))
	}
	if b.offset > 0 {
		builder = builder.Offset(uint64(b.offset))
	}
	return builder.PlaceholderFormat(sq.Question).ToSql()
}

// CountSQL assembles the matching-rows count query: the user's filter only,
// no pagination predicate, no ordering, no limit, so the count is stable
// across pages. Grouped queries count grouped rows via a derived table.
func (b *Builder) CountSQL() (string, []interface{}, error) {
	pk := sqlutil.Qualify(b.entity.Table, b.entity.PrimaryColumn().ColumnName)
	base, args, err := b.assemble(sq.Select(pk)).PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS __count", base), args, nil
}

func (b *Builder) assemble(builder sq.SelectBuilder) sq.SelectBuilder {
	builder = builder.From(sqlutil.QuoteIdentifier(b.entity.Table))
	for _, j := range b.joins {
		if j.left {
			builder = builder.LeftJoin(j.sql)
		} else {
			builder = builder.Join(j.sql)
		}
	}
	for _, c := range b.conds {
		builder = builder.Where(c)
	}
	if len(b.groupBys) > 0 {
		builder = builder.GroupBy(b.groupBys...)
	}
	for _, h := range b.havings {
		builder = builder.Having(h)
	}
	return builder
}
