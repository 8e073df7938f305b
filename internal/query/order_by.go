package query

import (
	"fmt"
	"strings"

	"recordql/internal/meta"
	"recordql/internal/sqlutil"
)

// SortKey is one parsed ordering term.
type SortKey struct {
	Attribute string
	Desc      bool
}

// Direction returns the SQL keyword for the key.
func (k SortKey) Direction() string {
	if k.Desc {
		return "DESC"
	}
	return "ASC"
}

// Reversed flips the key's direction.
func (k SortKey) Reversed() SortKey {
	k.Desc = !k.Desc
	return k
}

// String renders the key back into its DSL form.
func (k SortKey) String() string {
	return k.Attribute + "_" + k.Direction()
}

// ParseSortKey parses a sort term of form attribute_ASC or attribute_DESC.
// A bare attribute sorts ascending.
func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortKey{}, fmt.Errorf("empty sort key")
	}
	if i := strings.LastIndex(s, "_"); i > 0 {
		switch strings.ToUpper(s[i+1:]) {
		case "ASC":
			return SortKey{Attribute: s[:i]}, nil
		case "DESC":
			return SortKey{Attribute: s[:i], Desc: true}, nil
		}
	}
	return SortKey{Attribute: s}, nil
}

// ParseSortKeys parses an ordered sequence of sort terms. Ordering is stable
// across keys: ties under the first key break by the second, and so on.
// Callers needing a total order include a unique attribute as the final key.
func ParseSortKeys(sorts []string) ([]SortKey, error) {
	keys := make([]SortKey, 0, len(sorts))
	for _, s := range sorts {
		key, err := ParseSortKey(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// OrderBy applies sort terms in the given order.
func (b *Builder) OrderBy(sorts ...string) error {
	keys, err := ParseSortKeys(sorts)
	if err != nil {
		return err
	}
	return b.OrderByKeys(keys)
}

// OrderByKeys applies parsed sort keys in the given order.
func (b *Builder) OrderByKeys(keys []SortKey) error {
	for _, key := range keys {
		col, ok := b.entity.Column(key.Attribute)
		if !ok {
			return fmt.Errorf("%w: sort key %s on entity %s", ErrUnknownAttribute, key.Attribute, b.entity.Name)
		}
		b.orderBys = append(b.orderBys, sqlutil.Qualify(b.entity.Table, col.ColumnName)+" "+key.Direction())
	}
	return nil
}

// SortColumns resolves sort keys to their column descriptors, in key order.
func SortColumns(entity meta.Entity, keys []SortKey) ([]meta.Column, error) {
	cols := make([]meta.Column, len(keys))
	for i, key := range keys {
		col, ok := entity.Column(key.Attribute)
		if !ok {
			return nil, fmt.Errorf("%w: sort key %s on entity %s", ErrUnknownAttribute, key.Attribute, entity.Name)
		}
		cols[i] = col
	}
	return cols, nil
}
