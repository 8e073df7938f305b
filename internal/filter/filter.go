// Package filter parses the caller-facing filter DSL into a tagged expression
// tree. Keys carry an operator suffix (firstName_contains, starRating_gte);
// the reserved keys AND, OR, and NOT each hold a list of sub-expressions.
//
// Parsing happens exactly once: downstream compilation works on Leaf nodes
// with a closed Operator enum, never on raw strings.
package filter

import (
	"fmt"
	"sort"
	"strings"
)

// Operator enumerates the recognized filter operators. Scalar operators apply
// to column attributes; quantifiers apply to to-many relation attributes.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpIn         Operator = "in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"

	// Relation quantifiers.
	OpSome  Operator = "some"
	OpNone  Operator = "none"
	OpEvery Operator = "every"

	// OpAll is the soft-delete escape hatch: deletedAt_all disables the
	// implicit live-rows filter. Valid on deletedAt only.
	OpAll Operator = "all"
)

// operatorSuffixes is the single table mapping key suffixes to operators.
// Adding an operator means adding one row here plus its compilation case.
var operatorSuffixes = map[string]Operator{
	"eq":         OpEq,
	"ne":         OpNe,
	"in":         OpIn,
	"contains":   OpContains,
	"startsWith": OpStartsWith,
	"endsWith":   OpEndsWith,
	"gt":         OpGt,
	"gte":        OpGte,
	"lt":         OpLt,
	"lte":        OpLte,
	"some":       OpSome,
	"none":       OpNone,
	"every":      OpEvery,
	"all":        OpAll,
}

// IsQuantifier reports whether op is a to-many relation quantifier.
func (op Operator) IsQuantifier() bool {
	return op == OpSome || op == OpNone || op == OpEvery
}

// Leaf is one attribute-level filter: attribute, operator, comparison value.
// For relation attributes the value is the nested filter map.
type Leaf struct {
	Attribute string
	Operator  Operator
	Value     interface{}
}

// Expression is the decomposed form of a filter map. Entries under And are
// conjoined, entries under Or are disjoined, entries under Not are each
// negated and conjoined, and Leaves are conjoined at the current level.
type Expression struct {
	And    []Expression
	Or     []Expression
	Not    []Expression
	Leaves []Leaf
}

// Empty reports whether the expression carries no condition at all. Empty
// sub-expressions are discarded before combination so they never become a
// vacuous TRUE or FALSE clause.
func (e Expression) Empty() bool {
	return len(e.And) == 0 && len(e.Or) == 0 && len(e.Not) == 0 && len(e.Leaves) == 0
}

// ParseKey splits a filter key into attribute and operator. The operator is
// the suffix after the final underscore when that suffix is a recognized
// operator token; otherwise the whole key is the attribute and the operator
// defaults to eq. Attribute names must not themselves end in an operator
// suffix; that is a caller contract, not validated here.
func ParseKey(key string) (string, Operator) {
	if i := strings.LastIndex(key, "_"); i > 0 {
		if op, ok := operatorSuffixes[key[i+1:]]; ok {
			return key[:i], op
		}
	}
	return key, OpEq
}

// Decompose turns a raw filter map into an Expression. It strips the reserved
// combinator keys and parses every remaining key into a Leaf. Pure function:
// the input map is not modified.
func Decompose(input map[string]interface{}) (Expression, error) {
	var expr Expression
	if len(input) == 0 {
		return expr, nil
	}

	// Deterministic traversal keeps compiled SQL stable across runs.
	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := input[key]
		switch key {
		case "AND", "OR", "NOT":
			subs, err := decomposeList(key, value)
			if err != nil {
				return Expression{}, err
			}
			switch key {
			case "AND":
				expr.And = subs
			case "OR":
				expr.Or = subs
			case "NOT":
				expr.Not = subs
			}
		default:
			attr, op := ParseKey(key)
			expr.Leaves = append(expr.Leaves, Leaf{Attribute: attr, Operator: op, Value: value})
		}
	}
	return expr, nil
}

func decomposeList(combinator string, value interface{}) ([]Expression, error) {
	items, err := expressionItems(value)
	if err != nil {
		return nil, fmt.Errorf("%s must be a list of filter objects", combinator)
	}
	subs := make([]Expression, 0, len(items))
	for _, item := range items {
		sub, err := Decompose(item)
		if err != nil {
			return nil, err
		}
		if sub.Empty() {
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func expressionItems(value interface{}) ([]map[string]interface{}, error) {
	switch v := value.(type) {
	case []map[string]interface{}:
		return v, nil
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("list items must be objects")
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value must be a list")
	}
}
