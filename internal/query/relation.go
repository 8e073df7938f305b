package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"recordql/internal/filter"
	"recordql/internal/meta"
	"recordql/internal/sqlutil"
)

// applyRelationLeaf emits the joins and predicates that restrict the parent
// query by a condition on a related entity. Joins are always attached to the
// outermost query; adding them to a bracketed sub-condition would silently
// drop them on some composition paths.
//
// To-one relations compile nested filters as plain predicates on the joined
// table. To-many relations require a quantifier: some restricts through an
// inner join, none and every aggregate matching-row counts per parent via
// HAVING, which forces grouping by the parent identifier.
func (b *Builder) applyRelationLeaf(leaf filter.Leaf, rel meta.Relation) (sq.Sqlizer, error) {
	target, err := b.registry.Entity(rel.Target)
	if err != nil {
		return nil, err
	}
	nested, err := nestedExpression(leaf)
	if err != nil {
		return nil, err
	}

	switch {
	case rel.Cardinality == meta.ManyToOne || (rel.Cardinality == meta.OneToOne && rel.Owning):
		return b.applyToOneFilter(leaf, rel, target, nested)

	case rel.Cardinality == meta.OneToMany || (rel.Cardinality == meta.OneToOne && !rel.Owning):
		return b.applyToManyFilter(leaf, rel, target, nested)

	case rel.Cardinality == meta.ManyToMany:
		return b.applyManyToManyFilter(leaf, rel, target, nested)

	default:
		return nil, fmt.Errorf("%w: relation %s has cardinality %q", ErrUnknownCardinality, rel.Name, rel.Cardinality)
	}
}

// applyToOneFilter joins the parent's foreign key to the related table's
// identifier. Quantifiers do not apply: there are at most zero or one related
// rows per parent.
func (b *Builder) applyToOneFilter(leaf filter.Leaf, rel meta.Relation, target meta.Entity, nested filter.Expression) (sq.Sqlizer, error) {
	if leaf.Operator != filter.OpEq {
		return nil, fmt.Errorf("%w: %s does not apply to to-one relation %s", ErrUnknownQuantifier, leaf.Operator, rel.Name)
	}
	alias := b.nextAlias(target.Table)
	b.joins = append(b.joins, joinClause{
		left: true,
		sql: fmt.Sprintf("%s AS %s ON %s = %s",
			sqlutil.QuoteIdentifier(target.Table),
			sqlutil.QuoteIdentifier(alias),
			sqlutil.Qualify(alias, target.PrimaryColumn().ColumnName),
			sqlutil.Qualify(b.entity.Table, rel.JoinColumn),
		),
	})
	if nested.Empty() {
		return nil, nil
	}
	return b.compile(target, alias, nested, false)
}

func (b *Builder) applyToManyFilter(leaf filter.Leaf, rel meta.Relation, target meta.Entity, nested filter.Expression) (sq.Sqlizer, error) {
	if !leaf.Operator.IsQuantifier() {
		return nil, fmt.Errorf("%w: to-many relation %s requires some, none, or every, got %s", ErrUnknownQuantifier, rel.Name, leaf.Operator)
	}
	alias := b.nextAlias(target.Table)
	join := fmt.Sprintf("%s AS %s ON %s = %s",
		sqlutil.QuoteIdentifier(target.Table),
		sqlutil.QuoteIdentifier(alias),
		sqlutil.Qualify(alias, rel.BackRefColumn),
		sqlutil.Qualify(b.entity.Table, b.entity.PrimaryColumn().ColumnName),
	)

	if leaf.Operator == filter.OpSome {
		// Inner join: a parent survives when at least one related row
		// matches. Grouping by the parent identifier collapses duplicates
		// when several rows match.
		b.joins = append(b.joins, joinClause{sql: join})
		b.addGroupByParent()
		if nested.Empty() {
			return nil, nil
		}
		return b.compile(target, alias, nested, false)
	}

	b.joins = append(b.joins, joinClause{left: true, sql: join})
	targetPK := sqlutil.Qualify(alias, target.PrimaryColumn().ColumnName)
	return nil, b.addQuantifierHaving(leaf.Operator, target, alias, targetPK, nested)
}

func (b *Builder) applyManyToManyFilter(leaf filter.Leaf, rel meta.Relation, target meta.Entity, nested filter.Expression) (sq.Sqlizer, error) {
	if !leaf.Operator.IsQuantifier() {
		return nil, fmt.Errorf("%w: to-many relation %s requires some, none, or every, got %s", ErrUnknownQuantifier, rel.Name, leaf.Operator)
	}
	junctionAlias := b.nextAlias(rel.JunctionTable)
	targetAlias := b.nextAlias(target.Table)

	junctionJoin := fmt.Sprintf("%s AS %s ON %s = %s",
		sqlutil.QuoteIdentifier(rel.JunctionTable),
		sqlutil.QuoteIdentifier(junctionAlias),
		sqlutil.Qualify(junctionAlias, rel.JunctionLocalColumn),
		sqlutil.Qualify(b.entity.Table, b.entity.PrimaryColumn().ColumnName),
	)
	targetJoin := fmt.Sprintf("%s AS %s ON %s = %s",
		sqlutil.QuoteIdentifier(target.Table),
		sqlutil.QuoteIdentifier(targetAlias),
		sqlutil.Qualify(targetAlias, target.PrimaryColumn().ColumnName),
		sqlutil.Qualify(junctionAlias, rel.JunctionRemoteColumn),
	)

	if leaf.Operator == filter.OpSome {
		b.joins = append(b.joins,
			joinClause{sql: junctionJoin},
			joinClause{sql: targetJoin},
		)
		b.addGroupByParent()
		if nested.Empty() {
			return nil, nil
		}
		return b.compile(target, targetAlias, nested, false)
	}

	b.joins = append(b.joins,
		joinClause{left: true, sql: junctionJoin},
		joinClause{left: true, sql: targetJoin},
	)
	targetPK := sqlutil.Qualify(targetAlias, target.PrimaryColumn().ColumnName)
	return nil, b.addQuantifierHaving(leaf.Operator, target, targetAlias, targetPK, nested)
}

// addQuantifierHaving compiles the nested predicate in isolation and turns it
// into the per-parent count comparison for none and every. Both require the
// query to be grouped by the parent identifier.
//
// every demands count(matching) == count(total) with count(total) > 0: a
// parent with no related rows never satisfies every vacuously, and a parent
// whose single related row matches does satisfy it.
func (b *Builder) addQuantifierHaving(op filter.Operator, target meta.Entity, alias, targetPK string, nested filter.Expression) error {
	fragment, args, err := b.compilePredicate(target, alias, nested)
	if err != nil {
		return err
	}
	b.addGroupByParent()

	switch op {
	case filter.OpNone:
		// The CASE yields the child pk rather than a constant so the
		// NULL-extended row a childless parent gets from the LEFT JOIN is
		// never counted, even when the fragment is true over all-NULL child
		// columns. A parent with no related rows has zero matches and
		// satisfies none.
		b.havings = append(b.havings, sq.Expr(
			fmt.Sprintf("COUNT(CASE WHEN %s THEN %s END) = 0", fragment, targetPK), args...))
	case filter.OpEvery:
		b.havings = append(b.havings, sq.Expr(
			fmt.Sprintf("COUNT(CASE WHEN %s THEN 1 END) = COUNT(%s) AND COUNT(%s) > 0",
				fragment, targetPK, targetPK), args...))
	default:
		return fmt.Errorf("%w: %s", ErrUnknownQuantifier, op)
	}
	return nil
}

func nestedExpression(leaf filter.Leaf) (filter.Expression, error) {
	if leaf.Value == nil {
		return filter.Expression{}, nil
	}
	nestedMap, ok := leaf.Value.(map[string]interface{})
	if !ok {
		return filter.Expression{}, fmt.Errorf("filter for relation %s must be an object of nested filters", leaf.Attribute)
	}
	return filter.Decompose(nestedMap)
}
