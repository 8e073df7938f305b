package meta

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Registry holds the declared entity graph. Column maps are materialized once
// at construction and are read-only afterwards, so a registry is safe to share
// across concurrent requests.
type Registry struct {
	entities   map[string]Entity
	columnMaps map[string]map[string]string // entity -> logical -> physical
}

// NewRegistry validates the declared entities, applies naming defaults, and
// caches the per-entity column maps.
func NewRegistry(entities ...Entity) (*Registry, error) {
	r := &Registry{
		entities:   make(map[string]Entity, len(entities)),
		columnMaps: make(map[string]map[string]string, len(entities)),
	}
	for _, e := range entities {
		if e.Name == "" {
			return nil, fmt.Errorf("entity with empty name")
		}
		if _, dup := r.entities[e.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %s", e.Name)
		}
		if e.Table == "" {
			e.Table = inflection.Plural(SnakeCase(e.Name))
		}
		primary := 0
		cols := make([]Column, len(e.Columns))
		cmap := make(map[string]string, len(e.Columns))
		for i, c := range e.Columns {
			if c.Name == "" {
				return nil, fmt.Errorf("entity %s: column with empty name", e.Name)
			}
			if _, dup := cmap[c.Name]; dup {
				return nil, fmt.Errorf("entity %s: duplicate column %s", e.Name, c.Name)
			}
			if c.ColumnName == "" {
				c.ColumnName = SnakeCase(c.Name)
			}
			if c.Kind == "" {
				c.Kind = KindString
			}
			if c.Primary {
				primary++
			}
			cols[i] = c
			cmap[c.Name] = c.ColumnName
		}
		if primary != 1 {
			return nil, fmt.Errorf("entity %s: exactly one primary column required, found %d", e.Name, primary)
		}
		e.Columns = cols
		r.entities[e.Name] = e
		r.columnMaps[e.Name] = cmap
	}

	for name, e := range r.entities {
		for _, rel := range e.Relations {
			if err := r.validateRelation(name, rel); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Registry) validateRelation(entity string, rel Relation) error {
	if rel.Name == "" {
		return fmt.Errorf("entity %s: relation with empty name", entity)
	}
	if _, ok := r.entities[rel.Target]; !ok {
		return fmt.Errorf("entity %s: relation %s targets unknown entity %s", entity, rel.Name, rel.Target)
	}
	switch rel.Cardinality {
	case ManyToOne:
		if rel.JoinColumn == "" {
			return fmt.Errorf("entity %s: many-to-one relation %s requires a join column", entity, rel.Name)
		}
	case OneToOne:
		if rel.Owning && rel.JoinColumn == "" {
			return fmt.Errorf("entity %s: owning one-to-one relation %s requires a join column", entity, rel.Name)
		}
		if !rel.Owning && rel.BackRefColumn == "" {
			return fmt.Errorf("entity %s: inverse one-to-one relation %s requires a back-reference column", entity, rel.Name)
		}
	case OneToMany:
		if rel.BackRefColumn == "" {
			return fmt.Errorf("entity %s: one-to-many relation %s requires a back-reference column", entity, rel.Name)
		}
	case ManyToMany:
		if rel.JunctionTable == "" || rel.JunctionLocalColumn == "" || rel.JunctionRemoteColumn == "" {
			return fmt.Errorf("entity %s: many-to-many relation %s requires a full junction mapping", entity, rel.Name)
		}
	default:
		return fmt.Errorf("entity %s: relation %s has unknown cardinality %q", entity, rel.Name, rel.Cardinality)
	}
	return nil
}

// Entity returns the declared entity by name.
func (r *Registry) Entity(name string) (Entity, error) {
	e, ok := r.entities[name]
	if !ok {
		return Entity{}, fmt.Errorf("unknown entity %s", name)
	}
	return e, nil
}

// ColumnMap returns the cached logical-to-physical column map for an entity.
// Callers must treat the returned map as read-only.
func (r *Registry) ColumnMap(name string) (map[string]string, error) {
	m, ok := r.columnMaps[name]
	if !ok {
		return nil, fmt.Errorf("unknown entity %s", name)
	}
	return m, nil
}

// ColumnsOf implements Provider.
func (r *Registry) ColumnsOf(entity string) ([]Column, error) {
	e, err := r.Entity(entity)
	if err != nil {
		return nil, err
	}
	return append([]Column(nil), e.Columns...), nil
}

// RelationsOf implements Provider.
func (r *Registry) RelationsOf(entity string) ([]Relation, error) {
	e, err := r.Entity(entity)
	if err != nil {
		return nil, err
	}
	return append([]Relation(nil), e.Relations...), nil
}

// SnakeCase converts a camelCase logical name to its snake_case physical
// default: firstName -> first_name, createdById -> created_by_id.
func SnakeCase(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && !unicode.IsUpper(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
