package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"recordql/internal/filter"
	"recordql/internal/meta"
	"recordql/internal/sqlutil"
)

// notExpr negates an inner condition as NOT (...).
type notExpr struct {
	inner sq.Sqlizer
}

func (n notExpr) ToSql() (string, []interface{}, error) {
	sql, args, err := n.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}

// compile translates an expression tree into one squirrel condition against
// the given entity, qualifying columns with alias. AND entries form one
// bracketed conjunction, OR entries one bracketed disjunction, NOT entries
// are each negated and conjoined, and leaves are conjoined at the current
// level. Returns nil when the expression contributes no condition.
//
// conjunctive is true only while every enclosing combinator is a conjunction.
// Relation filters add joins and HAVING clauses to the outermost query, which
// is only sound in conjunctive positions; anywhere else they are rejected.
func (b *Builder) compile(entity meta.Entity, alias string, expr filter.Expression, conjunctive bool) (sq.Sqlizer, error) {
	var conds []sq.Sqlizer

	if len(expr.And) > 0 {
		group := make([]sq.Sqlizer, 0, len(expr.And))
		for _, sub := range expr.And {
			cond, err := b.compile(entity, alias, sub, conjunctive)
			if err != nil {
				return nil, err
			}
			if cond != nil {
				group = append(group, cond)
			}
		}
		if len(group) > 0 {
			conds = append(conds, sq.And(group))
		}
	}

	if len(expr.Or) > 0 {
		group := make([]sq.Sqlizer, 0, len(expr.Or))
		for _, sub := range expr.Or {
			cond, err := b.compile(entity, alias, sub, false)
			if err != nil {
				return nil, err
			}
			if cond != nil {
				group = append(group, cond)
			}
		}
		if len(group) > 0 {
			conds = append(conds, sq.Or(group))
		}
	}

	for _, sub := range expr.Not {
		cond, err := b.compile(entity, alias, sub, false)
		if err != nil {
			return nil, err
		}
		if cond != nil {
			conds = append(conds, notExpr{inner: cond})
		}
	}

	for _, leaf := range expr.Leaves {
		cond, err := b.compileLeaf(entity, alias, leaf, conjunctive)
		if err != nil {
			return nil, err
		}
		if cond != nil {
			conds = append(conds, cond)
		}
	}

	switch len(conds) {
	case 0:
		return nil, nil
	case 1:
		return conds[0], nil
	default:
		return sq.And(conds), nil
	}
}

// compileLeaf resolves a leaf against the schema first (column or relation),
// then compiles it. Unknown attributes fail loudly rather than being dropped.
func (b *Builder) compileLeaf(entity meta.Entity, alias string, leaf filter.Leaf, conjunctive bool) (sq.Sqlizer, error) {
	if col, ok := entity.Column(leaf.Attribute); ok {
		return compileScalar(sqlutil.Qualify(alias, col.ColumnName), leaf)
	}
	if rel, ok := entity.Relation(leaf.Attribute); ok {
		if alias != b.entity.Table {
			return nil, fmt.Errorf("relation filters support a single hop only (nested relation %s on %s)", leaf.Attribute, entity.Name)
		}
		if !conjunctive {
			return nil, fmt.Errorf("relation filter %s cannot appear under OR or NOT: its joins apply to the whole query", leaf.Attribute)
		}
		return b.applyRelationLeaf(leaf, rel)
	}
	return nil, fmt.Errorf("%w: %s on entity %s", ErrUnknownAttribute, leaf.Attribute, entity.Name)
}

// compileScalar maps one column-level operator to its SQL form. The operator
// set is closed; extending it means one case here plus a suffix-table row in
// internal/filter.
func compileScalar(column string, leaf filter.Leaf) (sq.Sqlizer, error) {
	switch leaf.Operator {
	case filter.OpEq:
		// Equality against null must compile to IS NULL, which sq.Eq does.
		return sq.Eq{column: leaf.Value}, nil
	case filter.OpNe:
		return sq.NotEq{column: leaf.Value}, nil
	case filter.OpIn:
		items, err := listValues(leaf.Value)
		if err != nil {
			return nil, fmt.Errorf("operator in on %s: %w", leaf.Attribute, err)
		}
		return sq.Eq{column: items}, nil
	case filter.OpContains:
		pattern, err := likeFragment(leaf)
		if err != nil {
			return nil, err
		}
		return sq.Like{column: "%" + pattern + "%"}, nil
	case filter.OpStartsWith:
		pattern, err := likeFragment(leaf)
		if err != nil {
			return nil, err
		}
		return sq.Like{column: pattern + "%"}, nil
	case filter.OpEndsWith:
		pattern, err := likeFragment(leaf)
		if err != nil {
			return nil, err
		}
		return sq.Like{column: "%" + pattern}, nil
	case filter.OpGt:
		return sq.Gt{column: leaf.Value}, nil
	case filter.OpGte:
		return sq.GtOrEq{column: leaf.Value}, nil
	case filter.OpLt:
		return sq.Lt{column: leaf.Value}, nil
	case filter.OpLte:
		return sq.LtOrEq{column: leaf.Value}, nil
	case filter.OpSome, filter.OpNone, filter.OpEvery:
		return nil, fmt.Errorf("%w: %s applies to relations, but %s is a column", ErrUnknownQuantifier, leaf.Operator, leaf.Attribute)
	case filter.OpAll:
		return nil, fmt.Errorf("operator all is only valid on deletedAt, not %s", leaf.Attribute)
	default:
		return nil, fmt.Errorf("unknown filter operator %q on %s", leaf.Operator, leaf.Attribute)
	}
}

// likeFragment builds the escaped literal part of a LIKE pattern. Matching is
// case-insensitive under MySQL's default collations; case behavior follows
// the column collation.
func likeFragment(leaf filter.Leaf) (string, error) {
	s, ok := leaf.Value.(string)
	if !ok {
		return "", fmt.Errorf("operator %s on %s requires a string value", leaf.Operator, leaf.Attribute)
	}
	return sqlutil.EscapeLike(s), nil
}

func listValues(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		return v, nil
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]interface{}, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("requires a list value")
	}
}

// compilePredicate compiles a where expression against an aliased entity in
// isolation, returning the raw condition fragment and its parameters. This is
// the value-returning compiler stage the HAVING-count quantifiers consume; an
// empty expression compiles to a tautology so COUNT(CASE ...) counts every
// related row.
func (b *Builder) compilePredicate(entity meta.Entity, alias string, expr filter.Expression) (string, []interface{}, error) {
	if expr.Empty() {
		return "1=1", nil, nil
	}
	cond, err := b.compile(entity, alias, expr, false)
	if err != nil {
		return "", nil, err
	}
	if cond == nil {
		return "1=1", nil, nil
	}
	return cond.ToSql()
}
