package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntPtr(t *testing.T) {
	ptr := IntPtr(12)
	assert.NotNil(t, ptr)
	assert.Equal(t, 12, *ptr)
}

func TestValues(t *testing.T) {
	tests := []struct {
		name     string
		input    FilterValue
		expected []any
	}{
		{"nil", nil, nil},
		{"any slice", []any{1, "a"}, []any{1, "a"}},
		{"typed slice", []string{"a", "b"}, []any{"a", "b"}},
		{"array", [2]int{1, 2}, []any{1, 2}},
		{"empty slice", []int{}, []any{}},
		{"scalar", 7, []any{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Values(tt.input))
		})
	}
}
