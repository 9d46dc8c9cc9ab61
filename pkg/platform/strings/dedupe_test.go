package strings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "trims whitespace",
			input:    []string{"  wifi  ", "parking  ", "  pool"},
			expected: []string{"wifi", "parking", "pool"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"wifi", "pool", "wifi", "spa", "pool"},
			expected: []string{"wifi", "pool", "spa"},
		},
		{
			name:     "removes empty strings",
			input:    []string{"wifi", "", "  ", "pool"},
			expected: []string{"wifi", "pool"},
		},
		{
			name:     "preserves case",
			input:    []string{"Spa", "spa"},
			expected: []string{"Spa", "spa"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	assert.Equal(t, []string{"kule", "sapanca"}, DedupeAndTrimLower([]string{"  KULE ", "sapanca", "Kule"}))
}

func TestDedupeFunc(t *testing.T) {
	got := DedupeFunc([]string{"a-b", "A_B", "c"}, func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "-"))
	})
	assert.Equal(t, []string{"a-b", "c"}, got)
}
