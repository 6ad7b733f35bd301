package history

import (
	"math"
	"reflect"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"Identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"Opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"Orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"Scaled vectors still identical direction", []float32{1, 2}, []float32{2, 4}, 1.0},
		{"Mismatched lengths", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"Empty vectors", nil, nil, 0.0},
		{"Zero vector", []float32{0, 0}, []float32{1, 2}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-6 {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestRankMatches(t *testing.T) {
	sessions := []*Session{
		{ID: "exact", Embedding: []float32{1, 0}},
		{ID: "tie-first", Embedding: []float32{0.8, 0.6}},
		{ID: "tie-second", Embedding: []float32{0.8, 0.6}},
		{ID: "negative", Embedding: []float32{-1, 0}},
		{ID: "no-embedding"},
	}
	// Against this query the tie pair both score 0.8, below "exact" at 1.0.
	query := []float32{1, 0}

	t.Run("Threshold filters and sort is descending", func(t *testing.T) {
		matches := rankMatches(query, sessions, 10, 0.1)
		var ids []string
		for _, m := range matches {
			ids = append(ids, m.Session.ID)
		}
		// Equal scores keep insertion order.
		want := []string{"exact", "tie-first", "tie-second"}
		if !reflect.DeepEqual(ids, want) {
			t.Errorf("ranked ids = %v, want %v", ids, want)
		}
		if matches[0].Score < 0.999 {
			t.Errorf("exact match score = %v, want ~1.0", matches[0].Score)
		}
	})

	t.Run("Limit truncates", func(t *testing.T) {
		matches := rankMatches(query, sessions, 2, 0.1)
		if len(matches) != 2 {
			t.Errorf("len(matches) = %d, want 2", len(matches))
		}
	})

	t.Run("High threshold leaves only the exact match", func(t *testing.T) {
		matches := rankMatches(query, sessions, 10, 0.9)
		if len(matches) != 1 || matches[0].Session.ID != "exact" {
			t.Errorf("matches = %v, want only the exact session", matches)
		}
	})

	t.Run("No candidates above threshold", func(t *testing.T) {
		if matches := rankMatches(query, sessions, 10, 1.5); len(matches) != 0 {
			t.Errorf("expected no matches, got %d", len(matches))
		}
	})
}

func TestParseVector(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []float32
		wantErr  bool
	}{
		{"Simple", "[0.1,0.2,0.3]", []float32{0.1, 0.2, 0.3}, false},
		{"Whitespace tolerated", " [1, 2, 3] ", []float32{1, 2, 3}, false},
		{"Negative values", "[-0.5,0.5]", []float32{-0.5, 0.5}, false},
		{"Empty vector", "[]", nil, false},
		{"Missing brackets", "0.1,0.2", nil, true},
		{"Garbage element", "[0.1,abc]", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVector(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVector(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("parseVector(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
