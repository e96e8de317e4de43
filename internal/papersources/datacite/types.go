// Package datacite provides a source adapter for the DataCite REST API.
//
// DataCite registers DOIs for datasets, software and preprints (including the
// arXiv DOIs under 10.48550). Its DOI records carry citation and reference
// counts collected through Event Data.
//
// API Documentation: https://support.datacite.org/docs/api
package datacite

// ListResponse is the JSON:API document returned by GET /dois.
type ListResponse struct {
	Data   []Record    `json:"data"`
	Meta   Meta        `json:"meta"`
	Errors []ErrorItem `json:"errors"`
}

// Meta carries paging information.
type Meta struct {
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page"`
}

// Record is one DOI resource.
type Record struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Attributes Attributes `json:"attributes"`
}

// Attributes holds the selected attributes of a DOI.
type Attributes struct {
	DOI            string     `json:"doi"`
	CitationCount  *int       `json:"citationCount"`
	ReferenceCount *int       `json:"referenceCount"`
	Creators       *[]Creator `json:"creators"`
}

// Creator is a DOI creator.
type Creator struct {
	Name       string `json:"name"`
	NameType   string `json:"nameType"`
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

// ErrorItem is one JSON:API error object.
type ErrorItem struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}
