package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	t.Run("missing is distinct from zero", func(t *testing.T) {
		assert.True(t, Missing().IsMissing())
		assert.False(t, KnownInt(0).IsMissing())
		assert.NotEqual(t, Missing(), KnownInt(0))
	})

	t.Run("from pointer", func(t *testing.T) {
		n := 7
		assert.Equal(t, KnownInt(7), FromIntPtr(&n))
		assert.True(t, FromIntPtr(nil).IsMissing())
	})

	t.Run("json", func(t *testing.T) {
		data, err := json.Marshal([]Value{Known(2.5), Missing(), KnownInt(0)})
		require.NoError(t, err)
		assert.JSONEq(t, `[2.5, null, 0]`, string(data))

		var decoded []Value
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, []Value{Known(2.5), Missing(), KnownInt(0)}, decoded)
	})

	t.Run("string", func(t *testing.T) {
		assert.Equal(t, "", Missing().String())
		assert.Equal(t, "12", KnownInt(12).String())
		assert.Equal(t, "0.5", Known(0.5).String())
	})
}

func TestDedupeObservations(t *testing.T) {
	obs := []Observation{
		{Identifier: "10.1/a", Metric: MetricCitations, Source: SourceOpenAlex, Value: KnownInt(5)},
		{Identifier: "10.1/a", Metric: MetricReferences, Source: SourceOpenAlex, Value: KnownInt(3)},
		{Identifier: "10.1/a", Metric: MetricCitations, Source: SourceOpenAlex, Value: KnownInt(9)},
		{Identifier: "10.1/a", Metric: MetricCitations, Source: SourceCrossref, Value: KnownInt(4)},
		{Identifier: "10.1/a", Metric: MetricCitations, Source: SourceOpenAlex, Value: Missing()},
	}

	kept, diags := DedupeObservations(obs)

	require.Len(t, kept, 3)
	assert.Equal(t, KnownInt(5), kept[0].Value, "first value wins")
	assert.Equal(t, SourceCrossref, kept[2].Source)

	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, DiagnosticDuplicate, d.Kind)
		assert.Equal(t, SeverityWarning, d.Severity)
		assert.Equal(t, SourceOpenAlex, d.Source)
		assert.Equal(t, Identifier("10.1/a"), d.Identifier)
	}
	assert.Contains(t, diags[0].Message, "kept 5, discarded 9")
	assert.Contains(t, diags[1].Message, "discarded missing")

	seen := map[ObservationKey]bool{}
	for _, o := range kept {
		assert.False(t, seen[o.Key()])
		seen[o.Key()] = true
	}
}

func TestNewObservations(t *testing.T) {
	obs := NewObservations(SourceCrossref, "10.1/a", KnownInt(1), KnownInt(2), Missing())
	require.Len(t, obs, 3)
	assert.Equal(t, MetricCitations, obs[0].Metric)
	assert.Equal(t, MetricReferences, obs[1].Metric)
	assert.Equal(t, MetricAuthors, obs[2].Metric)
	assert.True(t, obs[2].Value.IsMissing())
}

func TestDiagnostics(t *testing.T) {
	err := NewExternalAPIError("Crossref", 400, "Resource not found.", nil)
	d := BatchFailure(SourceCrossref, err)
	assert.Equal(t, DiagnosticUpstreamBatch, d.Kind)
	assert.Equal(t, "Resource not found.", d.Message)
	assert.Equal(t, "warning Crossref: Resource not found.", d.String())

	d = IdentifierFailure(SourceOpenAIRE, "10.1/a", errors.New("timeout"))
	assert.Equal(t, DiagnosticUpstreamIdentifier, d.Kind)
	assert.Equal(t, "warning OpenAIRE 10.1/a: timeout", d.String())
}
