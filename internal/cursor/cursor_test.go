package cursor

import (
	"testing"
	"time"

	"recordql/internal/meta"
)

func TestEncodeDecode_Roundtrip(t *testing.T) {
	tests := []struct {
		name       string
		entity     string
		sortKey    string
		directions []string
		values     []interface{}
	}{
		{
			name:       "single id column",
			entity:     "Author",
			sortKey:    "id_ASC",
			directions: []string{"ASC"},
			values:     []interface{}{"0f1e2d3c"},
		},
		{
			name:       "multi-column cursor",
			entity:     "Book",
			sortKey:    "createdAt_DESC,id_ASC",
			directions: []string{"DESC", "ASC"},
			values:     []interface{}{"2024-01-15T10:30:00Z", int64(7)},
		},
		{
			name:       "string value",
			entity:     "Author",
			sortKey:    "lastName_ASC",
			directions: []string{"ASC"},
			values:     []interface{}{"Lovelace"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.entity, tt.sortKey, tt.directions, tt.values...)
			if encoded == "" {
				t.Fatal("Encode returned empty string")
			}

			gotEntity, gotKey, gotDirs, gotValues, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if gotEntity != tt.entity {
				t.Errorf("entity: got %q, want %q", gotEntity, tt.entity)
			}
			if gotKey != tt.sortKey {
				t.Errorf("sortKey: got %q, want %q", gotKey, tt.sortKey)
			}
			if len(gotDirs) != len(tt.directions) {
				t.Fatalf("directions count: got %d, want %d", len(gotDirs), len(tt.directions))
			}
			for i := range tt.directions {
				if gotDirs[i] != tt.directions[i] {
					t.Errorf("direction %d: got %q, want %q", i, gotDirs[i], tt.directions[i])
				}
			}
			if len(gotValues) != len(tt.values) {
				t.Fatalf("values count: got %d, want %d", len(gotValues), len(tt.values))
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid base64", "not-valid-base64!!!"},
		{"invalid json", "bm90LWpzb24="}, // "not-json"
		{"wrong version", "eyJ2IjoyLCJlIjoiQXV0aG9yIiwiayI6ImlkX0FTQyIsImQiOlsiQVNDIl0sInZhbHMiOlsiMSJdfQ=="},
		{"missing entity", "eyJ2IjoxLCJlIjoiIiwiayI6ImlkX0FTQyIsImQiOlsiQVNDIl0sInZhbHMiOlsiMSJdfQ=="},
		{"bad direction", "eyJ2IjoxLCJlIjoiQXV0aG9yIiwiayI6ImlkX0FTQyIsImQiOlsiVVAiXSwidmFscyI6WyIxIl19"},
		{"value count mismatch", "eyJ2IjoxLCJlIjoiQXV0aG9yIiwiayI6ImlkX0FTQyIsImQiOlsiQVNDIl0sInZhbHMiOltdfQ=="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, _, err := Decode(tt.input)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	asc := []string{"ASC"}
	desc := []string{"DESC"}

	if err := Validate("Author", "id_ASC", asc, "Author", "id_ASC", asc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate("Author", "id_ASC", asc, "Book", "id_ASC", asc); err == nil {
		t.Fatal("expected entity mismatch error")
	}
	if err := Validate("Author", "id_ASC", asc, "Author", "lastName_ASC", asc); err == nil {
		t.Fatal("expected sort key mismatch error")
	}
	if err := Validate("Author", "id_ASC", asc, "Author", "id_ASC", desc); err == nil {
		t.Fatal("expected direction mismatch error")
	}
}

func TestParseValues(t *testing.T) {
	cols := []meta.Column{
		{Name: "starRating", Kind: meta.KindInt},
		{Name: "title", Kind: meta.KindString},
	}

	values, err := ParseValues([]string{"4", "Frankenstein"}, cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values[0] != int64(4) {
		t.Errorf("values[0]: got %v (%T), want int64(4)", values[0], values[0])
	}
	if values[1] != "Frankenstein" {
		t.Errorf("values[1]: got %v, want Frankenstein", values[1])
	}
}

func TestParseValues_CountMismatch(t *testing.T) {
	cols := []meta.Column{{Name: "id", Kind: meta.KindString}}
	if _, err := ParseValues([]string{"1", "2"}, cols); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestParseValues_TimeColumn(t *testing.T) {
	cols := []meta.Column{{Name: "createdAt", Kind: meta.KindTime}}
	values, err := ParseValues([]string{"2024-01-15T10:30:00Z"}, cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts, ok := values[0].(time.Time)
	if !ok {
		t.Fatalf("expected time.Time, got %T", values[0])
	}
	if ts.Year() != 2024 || ts.Month() != 1 || ts.Day() != 15 {
		t.Errorf("unexpected date: %v", ts)
	}
}

func TestRoundTrip_FractionalSecondTimestamp(t *testing.T) {
	// DATETIME(6) sort values carry microseconds; the round trip must be
	// exact or seek predicates skip or repeat rows at the boundary.
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC)
	raw := Encode("Author", "createdAt_ASC,id_ASC", []string{"ASC", "ASC"}, ts, "a1")

	_, _, _, vals, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cols := []meta.Column{
		{Name: "createdAt", Kind: meta.KindTime},
		{Name: "id", Kind: meta.KindString},
	}
	parsed, err := ParseValues(vals, cols)
	if err != nil {
		t.Fatalf("ParseValues: %v", err)
	}
	got, ok := parsed[0].(time.Time)
	if !ok {
		t.Fatalf("expected time.Time, got %T", parsed[0])
	}
	if !got.Equal(ts) {
		t.Errorf("timestamp round trip: got %v, want %v", got, ts)
	}
}

func TestCoerceToString(t *testing.T) {
	tests := []struct {
		input    interface{}
		expected string
	}{
		{int64(42), "42"},
		{"hello", "hello"},
		{float64(3.14), "3.14"},
		{true, "true"},
		{time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), "2024-01-15T10:30:00Z"},
		{time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC), "2024-01-15T10:30:00.123456Z"},
	}

	for _, tt := range tests {
		got := coerceToString(tt.input)
		if got != tt.expected {
			t.Errorf("coerceToString(%v): got %q, want %q", tt.input, got, tt.expected)
		}
	}
}
