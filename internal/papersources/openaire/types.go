// Package openaire provides a source adapter for the OpenAIRE Graph API.
//
// The research products endpoint is queried once per DOI; it answers either
// with a bare list of products or with a paged envelope.
//
// API Documentation: https://graph.openaire.eu/docs/apis/graph-api/
package openaire

// Envelope is the paged response form.
type Envelope struct {
	Header  Header    `json:"header"`
	Results []Product `json:"results"`
}

// Header carries paging information.
type Header struct {
	NumFound int `json:"numFound"`
	PageSize int `json:"pageSize"`
}

// Product is a research product. The counts are optional; older records
// only carry citation impact indicators and an author list.
type Product struct {
	ID             string      `json:"id"`
	MainTitle      string      `json:"mainTitle"`
	CitationCount  *int        `json:"citationCount"`
	ReferenceCount *int        `json:"referenceCount"`
	AuthorCount    *int        `json:"authorCount"`
	Authors        *[]Author   `json:"authors"`
	Indicators     *Indicators `json:"indicators"`
}

// Author is a product author.
type Author struct {
	FullName string `json:"fullName"`
	Rank     int    `json:"rank"`
}

// Indicators groups bibliometric indicators.
type Indicators struct {
	CitationImpact *CitationImpact `json:"citationImpact"`
}

// CitationImpact holds citation-based indicators.
type CitationImpact struct {
	CitationCount *int `json:"citationCount"`
}

// ErrorResponse is returned for rejected queries.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
