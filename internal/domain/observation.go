package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a non-negative count or "missing". Missing means the source has no
// data; it is distinct from an explicit zero.
type Value struct {
	n     float64
	valid bool
}

// Known returns a present value.
func Known(n float64) Value {
	return Value{n: n, valid: true}
}

// KnownInt returns a present value from an integer count.
func KnownInt(n int) Value {
	return Value{n: float64(n), valid: true}
}

// Missing returns the missing value.
func Missing() Value {
	return Value{}
}

// FromIntPtr maps a nil pointer to missing.
func FromIntPtr(p *int) Value {
	if p == nil {
		return Missing()
	}
	return KnownInt(*p)
}

// IsMissing returns true if no value is present.
func (v Value) IsMissing() bool {
	return !v.valid
}

// Float64 returns the value and whether it is present.
func (v Value) Float64() (float64, bool) {
	return v.n, v.valid
}

// String formats the value; missing is the empty string.
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	return strconv.FormatFloat(v.n, 'f', -1, 64)
}

// MarshalJSON encodes missing as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.n)
}

// UnmarshalJSON decodes null as missing.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Missing()
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding value: %w", err)
	}
	*v = Known(n)
	return nil
}

// Observation is one (identifier, metric, source, value) fact.
type Observation struct {
	Identifier Identifier `json:"identifier"`
	Metric     MetricKind `json:"metric"`
	Source     SourceName `json:"source"`
	Value      Value      `json:"value"`
}

// ObservationKey identifies the triple an Observation belongs to.
type ObservationKey struct {
	Identifier Identifier
	Metric     MetricKind
	Source     SourceName
}

// Key returns the observation's triple.
func (o Observation) Key() ObservationKey {
	return ObservationKey{Identifier: o.Identifier, Metric: o.Metric, Source: o.Source}
}

// NewObservations builds the three metric observations of one identifier.
func NewObservations(source SourceName, id Identifier, citations, references, authors Value) []Observation {
	return []Observation{
		{Identifier: id, Metric: MetricCitations, Source: source, Value: citations},
		{Identifier: id, Metric: MetricReferences, Source: source, Value: references},
		{Identifier: id, Metric: MetricAuthors, Source: source, Value: authors},
	}
}

// DedupeObservations keeps the first observation for every triple and returns
// a warning diagnostic for each discarded duplicate.
func DedupeObservations(obs []Observation) ([]Observation, []Diagnostic) {
	kept := make([]Observation, 0, len(obs))
	first := make(map[ObservationKey]int, len(obs))
	var diags []Diagnostic

	for _, o := range obs {
		key := o.Key()
		if i, ok := first[key]; ok {
			diags = append(diags, Diagnostic{
				Severity:   SeverityWarning,
				Kind:       DiagnosticDuplicate,
				Source:     o.Source,
				Identifier: o.Identifier,
				Message: fmt.Sprintf("not all %s counts are unique: kept %s, discarded %s",
					o.Metric, displayValue(kept[i].Value), displayValue(o.Value)),
			})
			continue
		}
		first[key] = len(kept)
		kept = append(kept, o)
	}
	return kept, diags
}

func displayValue(v Value) string {
	if v.IsMissing() {
		return "missing"
	}
	return v.String()
}

// Severity grades a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// DiagnosticKind classifies what produced a diagnostic.
type DiagnosticKind string

const (
	DiagnosticInput              DiagnosticKind = "input"
	DiagnosticUpstreamBatch      DiagnosticKind = "upstream_batch"
	DiagnosticUpstreamIdentifier DiagnosticKind = "upstream_identifier"
	DiagnosticDuplicate          DiagnosticKind = "duplicate"
	DiagnosticNoData             DiagnosticKind = "no_data"
)

// Diagnostic is a non-fatal problem surfaced to the caller alongside the data.
type Diagnostic struct {
	Severity   Severity       `json:"severity"`
	Kind       DiagnosticKind `json:"kind"`
	Source     SourceName     `json:"source,omitempty"`
	Identifier Identifier     `json:"identifier,omitempty"`
	Message    string         `json:"message"`
}

// String renders the diagnostic on one line.
func (d Diagnostic) String() string {
	prefix := string(d.Severity)
	if d.Source != "" {
		prefix += " " + d.Source.DisplayName()
	}
	if d.Identifier != "" {
		prefix += " " + string(d.Identifier)
	}
	return prefix + ": " + d.Message
}

// BatchFailure builds the diagnostic for a source whose whole request failed.
func BatchFailure(source SourceName, err error) Diagnostic {
	return Diagnostic{
		Severity: SeverityWarning,
		Kind:     DiagnosticUpstreamBatch,
		Source:   source,
		Message:  UpstreamMessage(err),
	}
}

// IdentifierFailure builds the diagnostic for a single failed identifier.
func IdentifierFailure(source SourceName, id Identifier, err error) Diagnostic {
	return Diagnostic{
		Severity:   SeverityWarning,
		Kind:       DiagnosticUpstreamIdentifier,
		Source:     source,
		Identifier: id,
		Message:    UpstreamMessage(err),
	}
}
