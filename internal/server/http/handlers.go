package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/bibliometrics-service/internal/comparison"
	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/observability"
	"github.com/helixir/bibliometrics-service/internal/reconcile"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
	csvFilename        = "counts.csv"
)

// compareRequest is the JSON request body for a comparison. Identifiers may be
// given as a list, as newline-separated text, or both.
type compareRequest struct {
	Identifiers []string            `json:"identifiers" validate:"omitempty,max=1000,dive,max=512"`
	Text        string              `json:"text" validate:"max=65536"`
	Sources     []string            `json:"sources" validate:"omitempty,max=32,dive,max=64"`
	Credentials *credentialsRequest `json:"credentials"`
}

// credentialsRequest carries optional per-request credentials. Their content
// is passed through untouched; only the length is bounded.
type credentialsRequest struct {
	Email                 string `json:"email" validate:"max=320"`
	OpenCitationsToken    string `json:"opencitations_token" validate:"max=512"`
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key" validate:"max=512"`
}

// createComparison handles POST /comparisons.
// It runs a comparison and returns the reconciled table as JSON.
func (s *Server) createComparison(w http.ResponseWriter, r *http.Request) {
	result, ok := s.runComparison(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resultToResponse(result))
}

// exportComparison handles POST /comparisons/export.
// It runs a comparison and returns the reconciled table as a CSV attachment.
func (s *Server) exportComparison(w http.ResponseWriter, r *http.Request) {
	result, ok := s.runComparison(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := reconcile.WriteCSV(&buf, result.Table); err != nil {
		s.logger.Error().Err(err).Str("request_id", result.RequestID).Msg("failed to render CSV")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", csvFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// runComparison decodes, validates and executes a comparison request. On
// failure the error response is already written.
func (s *Server) runComparison(w http.ResponseWriter, r *http.Request) (*comparison.Result, bool) {
	req, ok := s.decodeCompareRequest(w, r)
	if !ok {
		return nil, false
	}

	result, err := s.service.Compare(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return nil, false
	}
	return result, true
}

func (s *Server) decodeCompareRequest(w http.ResponseWriter, r *http.Request) (comparison.Request, bool) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return comparison.Request{}, false
	}
	if len(body) > maxRequestBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return comparison.Request{}, false
	}

	var req compareRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return comparison.Request{}, false
	}

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			field := fieldPath(fe)
			writeFieldError(w, field, fmt.Sprintf("%s exceeds the %s=%s limit", field, fe.Tag(), fe.Param()))
			return comparison.Request{}, false
		}
		writeError(w, http.StatusBadRequest, "invalid request")
		return comparison.Request{}, false
	}

	identifiers := append([]string{}, req.Identifiers...)
	identifiers = append(identifiers, domain.SplitLines(req.Text)...)

	sources := make([]domain.SourceName, len(req.Sources))
	for i, src := range req.Sources {
		sources[i] = domain.SourceName(src)
	}

	var creds domain.Credentials
	if req.Credentials != nil {
		creds = domain.Credentials{
			Email:                 req.Credentials.Email,
			OpenCitationsToken:    req.Credentials.OpenCitationsToken,
			SemanticScholarAPIKey: req.Credentials.SemanticScholarAPIKey,
		}
	}

	return comparison.Request{Identifiers: identifiers, Sources: sources, Credentials: creds}, true
}

// fieldPath drops the struct name from a validator namespace, leaving the
// JSON path, e.g. "credentials.email" or "identifiers[3]".
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

// listSources handles GET /sources.
func (s *Server) listSources(w http.ResponseWriter, _ *http.Request) {
	sources := s.service.Sources()
	if sources == nil {
		sources = []comparison.SourceInfo{}
	}
	writeJSON(w, http.StatusOK, listSourcesResponse{Sources: sources})
}

// listInstitutions handles GET /institutions.
func (s *Server) listInstitutions(w http.ResponseWriter, _ *http.Request) {
	catalog := s.service.Institutions()
	resp := listInstitutionsResponse{Institutions: make([]institutionResponse, len(catalog))}
	for i, inst := range catalog {
		resp.Institutions[i] = institutionResponse{ID: inst.ID, DisplayName: inst.DisplayName}
	}
	writeJSON(w, http.StatusOK, resp)
}

// sampleIdentifiers handles GET /samples?size=&institution=.
func (s *Server) sampleIdentifiers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var size int
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeFieldError(w, "size", "size must be an integer")
			return
		}
		if n < 1 {
			writeFieldError(w, "size", "size must be positive")
			return
		}
		size = n
	}

	institution := q.Get("institution")
	if len(institution) > 512 {
		writeFieldError(w, "institution", "institution is too long")
		return
	}

	result, err := s.service.Sample(r.Context(), comparison.SampleRequest{
		Size:        size,
		Institution: institution,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sampleToResponse(result))
}

// writeDomainError maps domain errors to HTTP responses. Validation messages
// are returned verbatim since they tell the caller what to fix; everything
// else is reduced to a generic message and logged.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeFieldError(w, ve.Field, ve.Message)
		return
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
		return
	}

	logger := observability.LoggerFromContext(r.Context(), s.logger)
	logger.Warn().Err(err).Msg("request failed")
	writeDomainError(w, err)
}

// writeDomainError maps non-validation errors to generic HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrUpstream):
		writeError(w, http.StatusBadGateway, "upstream source failed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
