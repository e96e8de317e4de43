// Package domain provides the domain model for the bibliometrics comparison service:
// identifiers, metric and source tags, observations, diagnostics and the error taxonomy.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MetricKind identifies the conceptual kind of a count.
// Sources compute each kind differently; the tag only guarantees that the
// value is "a count of this kind", not that sources agree numerically.
type MetricKind string

const (
	MetricCitations  MetricKind = "citations"
	MetricReferences MetricKind = "references"
	MetricAuthors    MetricKind = "authors"
)

// AllMetrics lists every metric in display order.
var AllMetrics = []MetricKind{MetricCitations, MetricReferences, MetricAuthors}

// IsValid returns true if the metric is a known kind.
func (m MetricKind) IsValid() bool {
	switch m {
	case MetricCitations, MetricReferences, MetricAuthors:
		return true
	default:
		return false
	}
}

// ParseMetric converts a string to a MetricKind.
func ParseMetric(s string) (MetricKind, error) {
	m := MetricKind(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidInput, s)
	}
	return m, nil
}

// SourceName identifies an upstream metadata provider.
type SourceName string

const (
	SourceCrossref           SourceName = "crossref"
	SourceOpenAlex           SourceName = "openalex"
	SourceOpenCitationsIndex SourceName = "opencitations_index"
	SourceOpenCitationsMeta  SourceName = "opencitations_meta"
	SourceOpenCitationsCOCI  SourceName = "opencitations_coci"
	SourceSemanticScholar    SourceName = "semantic_scholar"
	SourceOpenAIRE           SourceName = "openaire"
	SourceDataCite           SourceName = "datacite"
)

// SourceAliasOpenCitations selects both the OpenCitations Index and Meta sources.
const SourceAliasOpenCitations = "opencitations"

// AllSources lists every source in natural enumeration order.
// The order breaks ties when ranking sources.
var AllSources = []SourceName{
	SourceCrossref,
	SourceOpenAlex,
	SourceOpenCitationsIndex,
	SourceOpenCitationsMeta,
	SourceOpenCitationsCOCI,
	SourceSemanticScholar,
	SourceOpenAIRE,
	SourceDataCite,
}

var sourceDisplayNames = map[SourceName]string{
	SourceCrossref:           "Crossref",
	SourceOpenAlex:           "OpenAlex",
	SourceOpenCitationsIndex: "OpenCitations Index",
	SourceOpenCitationsMeta:  "OpenCitations Meta",
	SourceOpenCitationsCOCI:  "OpenCitations COCI",
	SourceSemanticScholar:    "Semantic Scholar",
	SourceOpenAIRE:           "OpenAIRE",
	SourceDataCite:           "DataCite",
}

// IsValid returns true if the source is a known provider.
func (s SourceName) IsValid() bool {
	_, ok := sourceDisplayNames[s]
	return ok
}

// DisplayName returns the human-readable provider name.
func (s SourceName) DisplayName() string {
	if name, ok := sourceDisplayNames[s]; ok {
		return name
	}
	return string(s)
}

// Order returns the position of the source in the natural enumeration order.
// Unknown sources sort last.
func (s SourceName) Order() int {
	for i, name := range AllSources {
		if name == s {
			return i
		}
	}
	return len(AllSources)
}

// ParseSources converts user-supplied source selections into SourceNames.
// Both tags ("semantic_scholar") and display names ("Semantic Scholar") are
// accepted, case-insensitively. The alias "opencitations" expands to the Index
// and Meta sources. Duplicates are removed, keeping first-seen order.
func ParseSources(raw []string) ([]SourceName, error) {
	seen := make(map[SourceName]bool, len(raw))
	out := make([]SourceName, 0, len(raw))
	add := func(s SourceName) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, r := range raw {
		key := strings.ToLower(strings.TrimSpace(r))
		if key == "" {
			continue
		}
		if key == SourceAliasOpenCitations {
			add(SourceOpenCitationsIndex)
			add(SourceOpenCitationsMeta)
			continue
		}
		name, ok := lookupSource(key)
		if !ok {
			return nil, &ValidationError{
				Field:   "sources",
				Message: fmt.Sprintf("source %q is not available", r),
				Cause:   ErrUnknownSource,
			}
		}
		add(name)
	}
	return out, nil
}

func lookupSource(key string) (SourceName, bool) {
	if s := SourceName(key); s.IsValid() {
		return s, true
	}
	normalized := strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if s := SourceName(normalized); s.IsValid() {
		return s, true
	}
	for s, display := range sourceDisplayNames {
		if strings.EqualFold(display, key) {
			return s, true
		}
	}
	return "", false
}

// Credentials carries optional per-request politeness tokens. They are passed
// through to the upstream sources and never validated.
type Credentials struct {
	// Email is sent as mailto to Crossref and OpenAlex for polite-pool access.
	Email string `json:"email,omitempty"`

	// OpenCitationsToken is sent in the authorization header to OpenCitations.
	OpenCitationsToken string `json:"opencitations_token,omitempty"`

	// SemanticScholarAPIKey is sent in the x-api-key header to Semantic Scholar.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty"`
}

// IsZero returns true if no credential is set.
func (c Credentials) IsZero() bool {
	return c == Credentials{}
}

// Merge returns c with empty fields filled from fallback.
func (c Credentials) Merge(fallback Credentials) Credentials {
	if c.Email == "" {
		c.Email = fallback.Email
	}
	if c.OpenCitationsToken == "" {
		c.OpenCitationsToken = fallback.OpenCitationsToken
	}
	if c.SemanticScholarAPIKey == "" {
		c.SemanticScholarAPIKey = fallback.SemanticScholarAPIKey
	}
	return c
}

// Fingerprint returns a stable digest of the credentials, safe to use in cache keys.
func (c Credentials) Fingerprint() string {
	if c.IsZero() {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(c.Email + "\x00" + c.OpenCitationsToken + "\x00" + c.SemanticScholarAPIKey))
	return hex.EncodeToString(sum[:8])
}

// String redacts secrets so credentials can be logged safely.
func (c Credentials) String() string {
	redact := func(s string) string {
		if s == "" {
			return "-"
		}
		return "***"
	}
	return fmt.Sprintf("email=%s opencitations=%s s2=%s",
		redact(c.Email), redact(c.OpenCitationsToken), redact(c.SemanticScholarAPIKey))
}
