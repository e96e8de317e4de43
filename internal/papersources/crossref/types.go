// Package crossref provides a source adapter for the Crossref REST API.
//
// Counts come from the works endpoint filtered by DOI:
// is-referenced-by-count (citations), references-count (references) and
// the length of the author list (authors).
//
// API Documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

import "encoding/json"

// Envelope is the top-level response. Message is an object on success and a
// list of error objects when Status is "failed".
type Envelope struct {
	Status      string          `json:"status"`
	MessageType string          `json:"message-type"`
	Message     json.RawMessage `json:"message"`
}

// WorkList is the success message of the works endpoint.
type WorkList struct {
	TotalResults int    `json:"total-results"`
	Items        []Work `json:"items"`
}

// Work holds the selected fields of a work.
// Author is a pointer so that an absent field can be told apart from an empty list.
type Work struct {
	DOI                 string    `json:"DOI"`
	IsReferencedByCount *int      `json:"is-referenced-by-count"`
	ReferencesCount     *int      `json:"references-count"`
	Author              *[]Author `json:"author"`
}

// Author is a work contributor.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
	ORCID  string `json:"ORCID"`
}

// FailureMessage is one entry of a failed response's message list.
type FailureMessage struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Message string `json:"message"`
}
