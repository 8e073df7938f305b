package pagination

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"recordql/internal/meta"
	"recordql/internal/query"
	"recordql/internal/sqlutil"
)

// NormalizeSortKeys resolves the effective sort order for a connection. An
// empty request sorts by the identifier ascending; otherwise the identifier
// is appended as the final tie-breaker unless already present, so the total
// order is unambiguous and a cursor pins exactly one row.
func NormalizeSortKeys(entity meta.Entity, keys []query.SortKey) []query.SortKey {
	pk := entity.PrimaryColumn()
	if len(keys) == 0 {
		return []query.SortKey{{Attribute: pk.Name}}
	}
	for _, key := range keys {
		if key.Attribute == pk.Name {
			return keys
		}
	}
	out := make([]query.SortKey, 0, len(keys)+1)
	out = append(out, keys...)
	return append(out, query.SortKey{Attribute: pk.Name})
}

// ReverseSortKeys flips every key's direction, for backward traversal.
func ReverseSortKeys(keys []query.SortKey) []query.SortKey {
	out := make([]query.SortKey, len(keys))
	for i, key := range keys {
		out[i] = key.Reversed()
	}
	return out
}

// SortKeyIdentity renders the sort keys into the canonical string a cursor
// is validated against, e.g. "createdAt_DESC,id_ASC".
func SortKeyIdentity(keys []query.SortKey) string {
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = key.String()
	}
	return strings.Join(parts, ",")
}

// Directions returns the per-key directions in sort order.
func Directions(keys []query.SortKey) []string {
	dirs := make([]string, len(keys))
	for i, key := range keys {
		dirs[i] = key.Direction()
	}
	return dirs
}

// SeekCondition builds the cursor seek predicate as a chained lexicographic
// comparison:
//
//	(k1 > v1) OR (k1 = v1 AND k2 > v2) OR ...
//
// Each key's comparison operator follows its own direction (ASC seeks with
// >, DESC with <), so mixed-direction sorts cannot use a single row-value
// comparison. invert flips every operator, which turns an "after" seek into
// a "before" seek under the same sort order.
func SeekCondition(table string, cols []meta.Column, keys []query.SortKey, values []interface{}, invert bool) (sq.Sqlizer, error) {
	if len(cols) != len(keys) || len(values) != len(keys) {
		return nil, fmt.Errorf("seek width mismatch: %d keys, %d columns, %d values", len(keys), len(cols), len(values))
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("seek requires at least one sort key")
	}

	terms := make([]sq.Sqlizer, 0, len(keys))
	for i := range keys {
		var conj sq.And
		for j := 0; j < i; j++ {
			conj = append(conj, sq.Eq{sqlutil.Qualify(table, cols[j].ColumnName): values[j]})
		}
		op := ">"
		if keys[i].Desc != invert {
			op = "<"
		}
		conj = append(conj, sq.Expr(sqlutil.Qualify(table, cols[i].ColumnName)+" "+op+" ?", values[i]))
		terms = append(terms, conj)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return sq.Or(terms), nil
}
