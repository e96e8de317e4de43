package domain

import (
	"strings"
)

const (
	// doiMarker starts every canonical identifier.
	doiMarker = "10."

	// DOIURLPrefix is the resolver prefix used for display and export.
	DOIURLPrefix = "https://doi.org/"

	// ArXivDOIPrefix is the DOI prefix that DataCite assigns to arXiv preprints.
	ArXivDOIPrefix = "10.48550/arxiv."
)

// Identifier is a canonical DOI: lower-case, starting at the first "10.".
type Identifier string

// String returns the identifier as a string.
func (id Identifier) String() string {
	return string(id)
}

// URL returns the doi.org resolver URL for the identifier.
func (id Identifier) URL() string {
	return DOIURLPrefix + string(id)
}

// IsArXiv returns true for arXiv pseudo-DOIs (10.48550/arxiv.<id>).
func (id Identifier) IsArXiv() bool {
	return strings.HasPrefix(string(id), ArXivDOIPrefix)
}

// ArXivID returns the arXiv identifier embedded in an arXiv pseudo-DOI.
func (id Identifier) ArXivID() (string, bool) {
	if !id.IsArXiv() {
		return "", false
	}
	return strings.TrimPrefix(string(id), ArXivDOIPrefix), true
}

// CanonicalIdentifier canonicalizes a single raw string. It returns false if
// the string does not contain "10.".
func CanonicalIdentifier(raw string) (Identifier, bool) {
	i := strings.Index(raw, doiMarker)
	if i < 0 {
		return "", false
	}
	return Identifier(strings.ToLower(strings.TrimSpace(raw[i:]))), true
}

// NormalizeIdentifiers turns raw candidate strings into a de-duplicated
// sequence of canonical identifiers, in first-seen order.
//
// Entries without "10." are dropped silently. An empty result is not an error;
// callers decide how to report "no valid identifiers".
func NormalizeIdentifiers(raw []string) []Identifier {
	seen := make(map[Identifier]bool, len(raw))
	out := make([]Identifier, 0, len(raw))
	for _, r := range raw {
		id, ok := CanonicalIdentifier(r)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// SplitLines splits free-form, newline-separated input into candidate strings.
// Blank lines are skipped.
func SplitLines(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// IdentifierStrings converts identifiers to plain strings.
func IdentifierStrings(ids []Identifier) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
