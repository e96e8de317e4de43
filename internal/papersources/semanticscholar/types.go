// Package semanticscholar provides a source adapter for the Semantic Scholar
// Academic Graph API.
//
// Counts come from the paper batch endpoint, which accepts up to 500 ids per
// request and answers with one entry per requested id (null for unknown ids).
//
// API Documentation: https://api.semanticscholar.org/api-docs/graph
package semanticscholar

// BatchRequest is the body of POST /paper/batch.
type BatchRequest struct {
	IDs []string `json:"ids"`
}

// Paper represents a paper entry of the batch response.
type Paper struct {
	PaperID        string       `json:"paperId"`
	ExternalIDs    *ExternalIDs `json:"externalIds"`
	CitationCount  *int         `json:"citationCount"`
	ReferenceCount *int         `json:"referenceCount"`
	Authors        []Author     `json:"authors"`
}

// ExternalIDs contains external identifiers for a paper.
type ExternalIDs struct {
	DOI    string `json:"DOI,omitempty"`
	ArXiv  string `json:"ArXiv,omitempty"`
	PubMed string `json:"PubMed,omitempty"`
}

// Author represents an author in Semantic Scholar.
type Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

// ErrorResponse represents an error response from the API. The batch endpoint
// uses "error" for bad requests and "message" for throttling.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
