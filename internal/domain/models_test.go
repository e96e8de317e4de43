package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSources(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []SourceName
	}{
		{
			name:     "tags",
			input:    []string{"crossref", "openalex"},
			expected: []SourceName{SourceCrossref, SourceOpenAlex},
		},
		{
			name:     "display names",
			input:    []string{"Semantic Scholar", "OpenCitations COCI"},
			expected: []SourceName{SourceSemanticScholar, SourceOpenCitationsCOCI},
		},
		{
			name:     "opencitations alias expands to index and meta",
			input:    []string{"OpenCitations"},
			expected: []SourceName{SourceOpenCitationsIndex, SourceOpenCitationsMeta},
		},
		{
			name:     "duplicates removed in first-seen order",
			input:    []string{"openaire", "crossref", "OpenAIRE"},
			expected: []SourceName{SourceOpenAIRE, SourceCrossref},
		},
		{
			name:     "dashes and blanks",
			input:    []string{"semantic-scholar", "  ", ""},
			expected: []SourceName{SourceSemanticScholar},
		},
		{
			name:     "empty",
			input:    nil,
			expected: []SourceName{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSources(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseSources_Unknown(t *testing.T) {
	_, err := ParseSources([]string{"crossref", "scopus"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, errors.Is(err, ErrUnknownSource))

	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "sources", valErr.Field)
	assert.Contains(t, valErr.Message, "scopus")
}

func TestSourceName_Order(t *testing.T) {
	for i, s := range AllSources {
		assert.Equal(t, i, s.Order(), s)
		assert.True(t, s.IsValid())
		assert.NotEqual(t, string(s), s.DisplayName(), "display name should differ from tag for %s", s)
	}
	assert.Equal(t, len(AllSources), SourceName("unknown").Order())
	assert.Equal(t, "unknown", SourceName("unknown").DisplayName())
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric(" Citations ")
	require.NoError(t, err)
	assert.Equal(t, MetricCitations, m)

	_, err = ParseMetric("downloads")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCredentials(t *testing.T) {
	t.Run("merge fills empty fields", func(t *testing.T) {
		c := Credentials{Email: "a@example.com"}.Merge(Credentials{
			Email:                 "fallback@example.com",
			SemanticScholarAPIKey: "key",
		})
		assert.Equal(t, "a@example.com", c.Email)
		assert.Equal(t, "key", c.SemanticScholarAPIKey)
		assert.Empty(t, c.OpenCitationsToken)
	})

	t.Run("fingerprint is stable and hides secrets", func(t *testing.T) {
		c := Credentials{OpenCitationsToken: "secret-token"}
		assert.Equal(t, c.Fingerprint(), c.Fingerprint())
		assert.NotContains(t, c.Fingerprint(), "secret")
		assert.NotEqual(t, c.Fingerprint(), Credentials{OpenCitationsToken: "other"}.Fingerprint())
		assert.Equal(t, "anonymous", Credentials{}.Fingerprint())
	})

	t.Run("string redacts", func(t *testing.T) {
		c := Credentials{Email: "a@example.com", SemanticScholarAPIKey: "k"}
		assert.Equal(t, "email=*** opencitations=- s2=***", c.String())
	})
}

func TestErrors(t *testing.T) {
	t.Run("external api error unwraps to ErrUpstream", func(t *testing.T) {
		cause := errors.New("boom")
		err := NewExternalAPIError("Crossref", 400, "Invalid filter", cause)
		assert.ErrorIs(t, err, ErrUpstream)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "Crossref API error (status 400): Invalid filter", err.Error())
	})

	t.Run("external api error without status", func(t *testing.T) {
		err := NewExternalAPIError("Semantic Scholar", 0, "Too Many Requests", nil)
		assert.Equal(t, "Semantic Scholar API error: Too Many Requests", err.Error())
	})

	t.Run("upstream message prefers api message", func(t *testing.T) {
		wrapped := errors.Join(errors.New("context"), NewExternalAPIError("OpenAlex", 500, "upstream says no", nil))
		assert.Equal(t, "upstream says no", UpstreamMessage(wrapped))
		assert.Equal(t, "plain", UpstreamMessage(errors.New("plain")))
		assert.Empty(t, UpstreamMessage(nil))
	})

	t.Run("validation error", func(t *testing.T) {
		err := NewValidationError("identifiers", "enter no more than 20 DOIs")
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, "validation error: identifiers: enter no more than 20 DOIs", err.Error())
	})

	t.Run("not found and rate limit", func(t *testing.T) {
		assert.ErrorIs(t, NewNotFoundError("institution", "I1"), ErrNotFound)
		assert.ErrorIs(t, NewRateLimitError("Crossref", 0), ErrRateLimited)
	})
}
