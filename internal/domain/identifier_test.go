package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdentifiers(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []Identifier
	}{
		{
			name:     "lowercases",
			input:    []string{"10.1000/XYZ123"},
			expected: []Identifier{"10.1000/xyz123"},
		},
		{
			name:     "strips resolver url",
			input:    []string{"https://doi.org/10.1038/Nature12373"},
			expected: []Identifier{"10.1038/nature12373"},
		},
		{
			name:     "strips doi: prefix and whitespace",
			input:    []string{"  doi:10.5555/abc  "},
			expected: []Identifier{"10.5555/abc"},
		},
		{
			name:     "drops entries without 10.",
			input:    []string{"not a doi", "arXiv:2101.00001", "10.1/a"},
			expected: []Identifier{"10.1/a"},
		},
		{
			name:     "dedupes preserving first-seen order",
			input:    []string{"10.2/B", "10.1/a", "https://doi.org/10.2/b", "10.1/A"},
			expected: []Identifier{"10.2/b", "10.1/a"},
		},
		{
			name:     "empty input",
			input:    nil,
			expected: []Identifier{},
		},
		{
			name:     "all invalid",
			input:    []string{"foo", "bar"},
			expected: []Identifier{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeIdentifiers(tt.input))
		})
	}
}

func TestNormalizeIdentifiers_Properties(t *testing.T) {
	inputs := [][]string{
		{"10.1/a", "10.1/A", "x10.1/a", "https://dx.doi.org/10.3/Q"},
		{"", "  ", "10.", "110.5/z", "10.5/z"},
		{"prefix 10.9/one 10.9/two"},
	}
	for _, input := range inputs {
		out := NormalizeIdentifiers(input)
		seen := map[Identifier]bool{}
		for _, id := range out {
			assert.False(t, seen[id], "duplicate %s", id)
			seen[id] = true
			assert.True(t, strings.HasPrefix(string(id), "10."), "%s must start with 10.", id)
			assert.Equal(t, strings.ToLower(string(id)), string(id))
		}
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("10.1/a\r\n\n  10.2/b  \n\n")
	assert.Equal(t, []string{"10.1/a", "10.2/b"}, got)
	assert.Empty(t, SplitLines(""))
}

func TestIdentifier_ArXiv(t *testing.T) {
	id := Identifier("10.48550/arxiv.2101.00001")
	assert.True(t, id.IsArXiv())
	arxiv, ok := id.ArXivID()
	assert.True(t, ok)
	assert.Equal(t, "2101.00001", arxiv)

	_, ok = Identifier("10.1/a").ArXivID()
	assert.False(t, ok)
	assert.Equal(t, "https://doi.org/10.1/a", Identifier("10.1/a").URL())
}
