// audit/value_test.go
package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeValue(t *testing.T) {
	when := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "hello", "hello"},
		{"bool", true, true},
		{"int", 42, 42},
		{"float", 3.5, 3.5},
		{"time", when, "2024-03-15T09:30:00Z"},
		{"nil time pointer", (*time.Time)(nil), nil},
		{"time pointer", &when, "2024-03-15T09:30:00Z"},
		{"function", func() {}, funcPlaceholder},
		{"small map", map[string]any{"a": 1}, map[string]any{"a": 1}},
		{"small array", []any{"x", 2}, []any{"x", 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeValue(tc.in))
		})
	}
}

func TestNormalizeValueNestedTimes(t *testing.T) {
	when := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	got := normalizeValue(map[string]any{"at": when, "list": []any{when}})
	assert.Equal(t, map[string]any{
		"at":   "2024-03-15T09:30:00Z",
		"list": []any{"2024-03-15T09:30:00Z"},
	}, got)
}

func TestDeepEqualTypeMismatch(t *testing.T) {
	assert.False(t, deepEqual("1", 1))
	assert.False(t, deepEqual(map[string]any{}, []any{}))
	assert.False(t, deepEqual(nil, "x"))
	assert.False(t, deepEqual([]any{1}, []any{1, 2}))
	assert.False(t, deepEqual(map[string]any{"a": 1}, map[string]any{"b": 1}))
}

func TestDeepEqualStructural(t *testing.T) {
	assert.True(t, deepEqual(
		map[string]any{"a": []any{1, map[string]any{"b": "c"}}},
		map[string]any{"a": []any{float64(1), map[string]any{"b": "c"}}},
	))
}
