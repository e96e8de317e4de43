package httpserver

import (
	"github.com/helixir/bibliometrics-service/internal/comparison"
	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/reconcile"
)

// Response types for JSON serialization.

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type comparisonResponse struct {
	RequestID   string                 `json:"request_id"`
	Identifiers []domain.Identifier    `json:"identifiers"`
	Sources     []reconcile.SourceRank `json:"sources"`
	Rows        []reconcile.Row        `json:"rows"`
	Diagnostics []domain.Diagnostic    `json:"diagnostics"`
	Timings     []timingResponse       `json:"timings"`
	DurationMS  int64                  `json:"duration_ms"`
}

type timingResponse struct {
	Source       domain.SourceName `json:"source"`
	DurationMS   int64             `json:"duration_ms"`
	Observations int               `json:"observations"`
	Failed       bool              `json:"failed"`
	Cached       bool              `json:"cached"`
}

type listSourcesResponse struct {
	Sources []comparison.SourceInfo `json:"sources"`
}

type institutionResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type listInstitutionsResponse struct {
	Institutions []institutionResponse `json:"institutions"`
}

type sampleResponse struct {
	Identifiers []domain.Identifier  `json:"identifiers"`
	Institution *institutionResponse `json:"institution,omitempty"`
}

// Converter functions

func resultToResponse(r *comparison.Result) comparisonResponse {
	timings := make([]timingResponse, len(r.Timings))
	for i, t := range r.Timings {
		timings[i] = timingResponse{
			Source:       t.Source,
			DurationMS:   t.Duration.Milliseconds(),
			Observations: t.Observations,
			Failed:       t.Failed,
			Cached:       t.Cached,
		}
	}

	diagnostics := r.Diagnostics
	if diagnostics == nil {
		diagnostics = []domain.Diagnostic{}
	}

	return comparisonResponse{
		RequestID:   r.RequestID,
		Identifiers: r.Identifiers,
		Sources:     r.Table.Ranking,
		Rows:        r.Table.Rows,
		Diagnostics: diagnostics,
		Timings:     timings,
		DurationMS:  r.Duration.Milliseconds(),
	}
}

func sampleToResponse(r *comparison.SampleResult) sampleResponse {
	resp := sampleResponse{Identifiers: r.Identifiers}
	if resp.Identifiers == nil {
		resp.Identifiers = []domain.Identifier{}
	}
	if r.Institution != nil {
		resp.Institution = &institutionResponse{ID: r.Institution.ID, DisplayName: r.Institution.DisplayName}
	}
	return resp
}
