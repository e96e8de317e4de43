// Package opencitations provides source adapters for the OpenCitations
// services: the Index v2 count endpoints, the Meta metadata endpoint and the
// legacy COCI index.
//
// API Documentation: https://opencitations.net/querying
package opencitations

// CountRecord is one element of a citation-count or reference-count response.
// Count is a decimal string.
type CountRecord struct {
	Count string `json:"count"`
}

// MetaRecord is one element of a Meta metadata response.
// ID is a space-separated list of prefixed identifiers,
// e.g. "doi:10.1/x omid:br/0612345".
type MetaRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Venue  string `json:"venue"`
	Type   string `json:"type"`
}

// COCIRecord is one element of a COCI metadata response. Reference and Author
// are semicolon-separated lists.
type COCIRecord struct {
	DOI           string `json:"doi"`
	CitationCount string `json:"citation_count"`
	Reference     string `json:"reference"`
	Author        string `json:"author"`
	Title         string `json:"title"`
}
