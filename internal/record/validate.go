package record

import (
	"time"

	"recordql/internal/meta"
)

// Validator checks a create/update payload against an entity's metadata.
// Validation is partial: only attributes present in the payload are checked,
// so a sparse update does not have to restate the whole record.
type Validator interface {
	Validate(entity meta.Entity, data map[string]interface{}) error
}

// MetaValidator is the default validator: every payload key must name a
// column, non-nullable columns reject nil, and values must match the
// column's declared kind.
type MetaValidator struct{}

func (MetaValidator) Validate(entity meta.Entity, data map[string]interface{}) error {
	var violations []FieldViolation
	for _, col := range entity.Columns {
		value, present := data[col.Name]
		if !present {
			continue
		}
		if value == nil {
			if !col.Nullable && !col.Primary {
				violations = append(violations, FieldViolation{Field: col.Name, Message: "must not be null"})
			}
			continue
		}
		if msg, ok := kindMismatch(col.Kind, value); ok {
			violations = append(violations, FieldViolation{Field: col.Name, Message: msg})
		}
	}
	for key := range data {
		if entity.HasColumn(key) {
			continue
		}
		if _, isRelation := entity.Relation(key); isRelation {
			violations = append(violations, FieldViolation{Field: key, Message: "relations cannot be assigned directly"})
		} else {
			violations = append(violations, FieldViolation{Field: key, Message: "unknown attribute"})
		}
	}
	if len(violations) > 0 {
		sortViolations(violations)
		return &ValidationError{Entity: entity.Name, Violations: violations}
	}
	return nil
}

func kindMismatch(kind meta.Kind, value interface{}) (string, bool) {
	switch kind {
	case meta.KindInt:
		switch value.(type) {
		case int, int32, int64, uint, uint32, uint64:
			return "", false
		}
		return "must be an integer", true
	case meta.KindFloat:
		switch value.(type) {
		case float32, float64, int, int64:
			return "", false
		}
		return "must be a number", true
	case meta.KindBool:
		if _, ok := value.(bool); !ok {
			return "must be a boolean", true
		}
	case meta.KindTime:
		switch v := value.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				return "must be an RFC 3339 timestamp", true
			}
		default:
			return "must be a timestamp", true
		}
	case meta.KindString:
		if _, ok := value.(string); !ok {
			return "must be a string", true
		}
	}
	return "", false
}

// sortViolations orders by field name so the error message is deterministic.
func sortViolations(violations []FieldViolation) {
	for i := 1; i < len(violations); i++ {
		for j := i; j > 0 && violations[j].Field < violations[j-1].Field; j-- {
			violations[j], violations[j-1] = violations[j-1], violations[j]
		}
	}
}
