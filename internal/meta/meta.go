// Package meta describes the entity graph the query engine operates on:
// logical attribute to physical column mappings and relation descriptors.
// Metadata is an input contract supplied at construction time; nothing here
// talks to a live database.
package meta

// Kind is the coarse value type of a column, used to round-trip cursor values
// and nothing else. Unknown kinds behave as strings.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindTime   Kind = "time"
)

// Cardinality classifies a relation between two entity types.
type Cardinality string

const (
	ManyToOne  Cardinality = "many-to-one"
	OneToMany  Cardinality = "one-to-many"
	OneToOne   Cardinality = "one-to-one"
	ManyToMany Cardinality = "many-to-many"
)

// Column maps one logical attribute to its physical column.
type Column struct {
	Name       string // logical attribute name, e.g. "firstName"
	ColumnName string // physical column; defaults to snake_case of Name
	Kind       Kind   // defaults to KindString
	Nullable   bool
	Primary    bool
}

// Relation describes one navigable association to another entity type.
//
// Exactly one side of every relation owns it; the owning side's table holds
// the foreign key. For many-to-many relations the key pair lives on a
// junction table instead.
type Relation struct {
	Name        string
	Cardinality Cardinality
	Owning      bool
	Target      string // target entity name

	// JoinColumn is the FK column on this entity's table pointing at the
	// target's primary key. Set on owning many-to-one / one-to-one sides.
	JoinColumn string

	// BackRefColumn is the FK column on the target's table pointing back at
	// this entity's primary key. Set on one-to-many and inverse one-to-one
	// sides.
	BackRefColumn string

	// Junction mapping, set only for many-to-many.
	JunctionTable        string
	JunctionLocalColumn  string // junction column referencing this entity
	JunctionRemoteColumn string // junction column referencing the target
}

// Entity declares one record type: its backing table, columns, and relations.
type Entity struct {
	Name      string
	Table     string // defaults to inflection.Plural(snake_case(Name))
	Columns   []Column
	Relations []Relation
}

// Column returns the column with the given logical name.
func (e Entity) Column(name string) (Column, bool) {
	for _, c := range e.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Relation returns the relation with the given name.
func (e Entity) Relation(name string) (Relation, bool) {
	for _, r := range e.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// PrimaryColumn returns the entity's identifier column. Registry validation
// guarantees one exists.
func (e Entity) PrimaryColumn() Column {
	for _, c := range e.Columns {
		if c.Primary {
			return c
		}
	}
	return Column{}
}

// HasColumn reports whether the logical attribute names a column.
func (e Entity) HasColumn(name string) bool {
	_, ok := e.Column(name)
	return ok
}

// Provider is the metadata contract the query engine consumes.
type Provider interface {
	ColumnsOf(entity string) ([]Column, error)
	RelationsOf(entity string) ([]Relation, error)
}
