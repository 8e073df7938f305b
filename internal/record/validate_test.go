package record

import (
	"strings"
	"testing"
	"time"
)

func TestMetaValidator(t *testing.T) {
	registry := testRegistry(t)
	author, err := registry.Entity("Author")
	if err != nil {
		t.Fatalf("entity: %v", err)
	}

	tests := []struct {
		name string
		data map[string]interface{}
		want []FieldViolation
	}{
		{
			name: "sparse payload checks only present attributes",
			data: map[string]interface{}{"firstName": "Ada"},
		},
		{
			name: "nil on nullable column passes",
			data: map[string]interface{}{"deletedAt": nil},
		},
		{
			name: "nil on non-nullable column",
			data: map[string]interface{}{"firstName": nil},
			want: []FieldViolation{{Field: "firstName", Message: "must not be null"}},
		},
		{
			name: "kind mismatches",
			data: map[string]interface{}{
				"firstName":  42,
				"registered": "yes",
				"createdAt":  "not-a-time",
			},
			want: []FieldViolation{
				{Field: "createdAt", Message: "must be an RFC 3339 timestamp"},
				{Field: "firstName", Message: "must be a string"},
				{Field: "registered", Message: "must be a boolean"},
			},
		},
		{
			name: "timestamp accepts time.Time and RFC 3339 strings",
			data: map[string]interface{}{
				"createdAt": time.Now(),
				"updatedAt": "2024-06-01T12:00:00Z",
			},
		},
		{
			name: "unknown attribute",
			data: map[string]interface{}{"nickname": "countess"},
			want: []FieldViolation{{Field: "nickname", Message: "unknown attribute"}},
		},
		{
			name: "relation assignment is rejected",
			data: map[string]interface{}{"books": []Record{{"title": "x"}}},
			want: []FieldViolation{{Field: "books", Message: "relations cannot be assigned directly"}},
		},
		{
			name: "violations sort by field",
			data: map[string]interface{}{
				"zz":        1,
				"aa":        2,
				"firstName": nil,
			},
			want: []FieldViolation{
				{Field: "aa", Message: "unknown attribute"},
				{Field: "firstName", Message: "must not be null"},
				{Field: "zz", Message: "unknown attribute"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := MetaValidator{}.Validate(author, tc.data)
			if len(tc.want) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			verr, ok := AsValidationError(err)
			if !ok {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Violations) != len(tc.want) {
				t.Fatalf("violations: got %v, want %v", verr.Violations, tc.want)
			}
			for i, want := range tc.want {
				if verr.Violations[i] != want {
					t.Errorf("violation %d: got %+v, want %+v", i, verr.Violations[i], want)
				}
			}
		})
	}
}

func TestMetaValidator_IntAndFloatKinds(t *testing.T) {
	registry := testRegistry(t)
	book, err := registry.Entity("Book")
	if err != nil {
		t.Fatalf("entity: %v", err)
	}

	if err := (MetaValidator{}).Validate(book, map[string]interface{}{"starRating": int64(5)}); err != nil {
		t.Errorf("int64 rating: %v", err)
	}
	err = MetaValidator{}.Validate(book, map[string]interface{}{"starRating": "five"})
	verr, ok := AsValidationError(err)
	if !ok || verr.Violations[0].Message != "must be an integer" {
		t.Errorf("string rating: %v", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Entity: "Author", Violations: []FieldViolation{
		{Field: "firstName", Message: "must not be null"},
		{Field: "nickname", Message: "unknown attribute"},
	}}
	msg := err.Error()
	if !strings.Contains(msg, "Author") ||
		!strings.Contains(msg, "firstName: must not be null; nickname: unknown attribute") {
		t.Errorf("message: %q", msg)
	}
}
