// Package openalex provides a source adapter for the OpenAlex API.
//
// OpenAlex is a free, open catalog of scholarly works and institutions.
// Besides citation counts, this package draws random DOI samples from the
// catalog and resolves institution ids, which the comparison service uses to
// build example identifier lists.
//
// API Documentation: https://docs.openalex.org/
package openalex

// WorksResponse represents the top-level response from the OpenAlex works endpoint.
type WorksResponse struct {
	Meta    Meta   `json:"meta"`
	Results []Work `json:"results"`
}

// Meta contains metadata about the result page.
type Meta struct {
	Count   int `json:"count"`
	DBTime  int `json:"db_response_time_ms"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Work holds the selected fields of a work. DOI is null for works without one.
type Work struct {
	DOI             *string      `json:"doi"`
	CitedByCount    *int         `json:"cited_by_count"`
	ReferencedWorks []string     `json:"referenced_works"`
	Authorships     []Authorship `json:"authorships"`
}

// Authorship links a work to one author.
type Authorship struct {
	AuthorPosition string     `json:"author_position"`
	Author         AuthorInfo `json:"author"`
}

// AuthorInfo contains basic author information.
type AuthorInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// InstitutionResponse is the body of GET /institutions/{id}.
type InstitutionResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
}

// ErrorResponse is returned by OpenAlex for rejected queries.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
