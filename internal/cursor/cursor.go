// Package cursor encodes and decodes opaque pagination cursors.
// A cursor is a base64-encoded JSON payload carrying the entity name, the
// sort key it was produced under, per-column directions, and string-coerced
// column values for seek-based pagination.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"recordql/internal/meta"
)

type payloadV1 struct {
	Version    int      `json:"v"`
	Entity     string   `json:"e"`
	SortKey    string   `json:"k"`
	Directions []string `json:"d"`
	Values     []string `json:"vals"`
}

// Encode builds an opaque cursor from entity name, sort key, directions, and
// column values. Values are string-coerced so JSON round-trips cannot lose
// int64 precision through float64.
func Encode(entity, sortKey string, directions []string, values ...interface{}) string {
	normalized := make([]string, len(directions))
	for i, direction := range directions {
		normalized[i] = strings.ToUpper(direction)
	}
	stringValues := make([]string, 0, len(values))
	for _, v := range values {
		stringValues = append(stringValues, coerceToString(v))
	}
	payload := payloadV1{
		Version:    1,
		Entity:     entity,
		SortKey:    sortKey,
		Directions: normalized,
		Values:     stringValues,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses a base64-encoded JSON cursor into its components.
func Decode(raw string) (entity, sortKey string, directions []string, values []string, err error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", "", nil, nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var payload payloadV1
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", "", nil, nil, fmt.Errorf("invalid cursor format")
	}
	if payload.Version != 1 {
		return "", "", nil, nil, fmt.Errorf("invalid cursor format: unsupported version %d", payload.Version)
	}
	if payload.Entity == "" || payload.SortKey == "" {
		return "", "", nil, nil, fmt.Errorf("invalid cursor: missing entity or sort key")
	}
	if len(payload.Directions) == 0 {
		return "", "", nil, nil, fmt.Errorf("invalid cursor: missing directions")
	}
	for i, direction := range payload.Directions {
		direction = strings.ToUpper(direction)
		if direction != "ASC" && direction != "DESC" {
			return "", "", nil, nil, fmt.Errorf("invalid cursor: direction %d must be ASC or DESC", i)
		}
		payload.Directions[i] = direction
	}
	if len(payload.Values) != len(payload.Directions) {
		return "", "", nil, nil, fmt.Errorf("invalid cursor: value count mismatch for sort columns")
	}
	return payload.Entity, payload.SortKey, payload.Directions, payload.Values, nil
}

// Validate confirms a decoded cursor matches the query it is being applied
// to. A cursor minted under one entity or sort order cannot seek another.
func Validate(expectedEntity, expectedSortKey string, expectedDirections []string, actualEntity, actualSortKey string, actualDirections []string) error {
	if actualEntity != expectedEntity {
		return fmt.Errorf("cursor entity mismatch: expected %s, got %s", expectedEntity, actualEntity)
	}
	if actualSortKey != expectedSortKey {
		return fmt.Errorf("cursor sort mismatch: expected %s, got %s", expectedSortKey, actualSortKey)
	}
	if len(actualDirections) != len(expectedDirections) {
		return fmt.Errorf("cursor direction count mismatch: expected %d, got %d", len(expectedDirections), len(actualDirections))
	}
	for i := range expectedDirections {
		expected := strings.ToUpper(expectedDirections[i])
		actual := strings.ToUpper(actualDirections[i])
		if actual != expected {
			return fmt.Errorf("cursor direction mismatch at position %d: expected %s, got %s", i, expected, actual)
		}
	}
	return nil
}

// ParseValues converts string-encoded cursor values back into native Go
// types based on the column definitions they were minted from.
func ParseValues(stringVals []string, columns []meta.Column) ([]interface{}, error) {
	if len(stringVals) != len(columns) {
		return nil, fmt.Errorf("cursor value count mismatch: expected %d, got %d", len(columns), len(stringVals))
	}
	result := make([]interface{}, len(stringVals))
	for i, sv := range stringVals {
		parsed, err := parseValue(columns[i], sv)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor value for %s: %w", columns[i].Name, err)
		}
		result[i] = parsed
	}
	return result, nil
}

func parseValue(col meta.Column, raw string) (interface{}, error) {
	switch col.Kind {
	case meta.KindInt:
		return strconv.ParseInt(raw, 10, 64)
	case meta.KindFloat:
		return strconv.ParseFloat(raw, 64)
	case meta.KindBool:
		return strconv.ParseBool(raw)
	case meta.KindTime:
		return time.Parse(time.RFC3339Nano, raw)
	default:
		return raw, nil
	}
}

func coerceToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		// Nanosecond precision so DATETIME(6) sort values round-trip exactly
		// and seek predicates stay stable at fractional-second boundaries.
		return val.Format(time.RFC3339Nano)
	case int:
		return fmt.Sprintf("%d", val)
	case int32:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case uint:
		return fmt.Sprintf("%d", val)
	case uint32:
		return fmt.Sprintf("%d", val)
	case uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return fmt.Sprintf("%g", val)
	case float64:
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
