package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeNames(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "collapses whitespace", input: []string{"  Jane   Doe "}, expected: []string{"Jane Doe"}},
		{
			name:     "case-insensitive duplicates keep first spelling",
			input:    []string{"Jane Doe", "JANE DOE", "jane  doe", "John Roe"},
			expected: []string{"Jane Doe", "John Roe"},
		},
		{name: "drops blanks", input: []string{"", "   ", "\t"}, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeNames(tt.input))
		})
	}
}

func TestDedupeUpper(t *testing.T) {
	assert.Equal(t, []string{"PEP", "SANCTION"}, DedupeUpper([]string{"pep", " SANCTION", "Pep", ""}))
	assert.Nil(t, DedupeUpper(nil))
}
