package record

import (
	"recordql/internal/dbexec"
	"recordql/internal/meta"
)

// scanRows materializes a result set into records keyed by logical attribute
// name, in projection order.
func scanRows(rows dbexec.Rows, columns []meta.Column) ([]Record, error) {
	var results []Record

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(Record, len(columns))
		for i, col := range columns {
			row[col.Name] = convertValue(values[i])
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

// scanCount reads the single integer of a COUNT(*) result set.
func scanCount(rows dbexec.Rows) (int64, error) {
	defer func() { _ = rows.Close() }()
	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, rows.Err()
}

func convertValue(val interface{}) interface{} {
	if val == nil {
		return nil
	}
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return val
}
