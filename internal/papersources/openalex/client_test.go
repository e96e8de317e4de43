package openalex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/papersources"
)

// newTestClient creates a client configured for testing with the given server URL.
func newTestClient(serverURL string, enabled bool) *Client {
	cfg := Config{
		BaseURL:   serverURL,
		Email:     "test@example.com",
		Timeout:   5 * time.Second,
		RateLimit: 100, // High rate for testing
		BurstSize: 100,
		Enabled:   enabled,
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: -1,
		UserAgent:  "TestClient/1.0",
	})

	return NewWithHTTPClient(cfg, httpClient)
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestNew(t *testing.T) {
	t.Run("applies default values", func(t *testing.T) {
		client := New(Config{})

		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
		assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
		assert.Equal(t, DefaultBurstSize, client.config.BurstSize)
	})

	t.Run("identity", func(t *testing.T) {
		assert.Equal(t, domain.SourceOpenAlex, newTestClient("http://x", true).Name())
		assert.True(t, newTestClient("http://x", true).IsEnabled())
		assert.False(t, newTestClient("http://x", false).IsEnabled())
	})
}

func TestClient_Fetch(t *testing.T) {
	t.Run("builds the filter and maps works", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/works", r.URL.Path)
			q := r.URL.Query()
			assert.Equal(t, "doi:https://doi.org/10.1/a|https://doi.org/10.1/b", q.Get("filter"))
			assert.Equal(t, countSelect, q.Get("select"))
			assert.Equal(t, "25", q.Get("per_page"))
			assert.Equal(t, "caller@example.org", q.Get("mailto"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(WorksResponse{Results: []Work{
				{
					DOI:             strPtr("https://doi.org/10.1/A"),
					CitedByCount:    intPtr(12),
					ReferencedWorks: []string{"https://openalex.org/W1", "https://openalex.org/W2"},
					Authorships:     []Authorship{{AuthorPosition: "first"}},
				},
				{DOI: strPtr("https://doi.org/10.1/b"), CitedByCount: intPtr(0)},
				{DOI: nil, CitedByCount: intPtr(99)},
			}})
		}))
		defer server.Close()

		client := newTestClient(server.URL, true)
		result, err := client.Fetch(context.Background(), []domain.Identifier{"10.1/a", "10.1/b"},
			domain.Credentials{Email: "caller@example.org"})
		require.NoError(t, err)

		expected := append(
			domain.NewObservations(domain.SourceOpenAlex, "10.1/a", domain.KnownInt(12), domain.KnownInt(2), domain.KnownInt(1)),
			domain.NewObservations(domain.SourceOpenAlex, "10.1/b", domain.KnownInt(0), domain.KnownInt(0), domain.KnownInt(0))...,
		)
		assert.Equal(t, expected, result.Observations)
	})

	t.Run("falls back to configured email", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test@example.com", r.URL.Query().Get("mailto"))
			_, _ = w.Write([]byte(`{"results":[]}`))
		}))
		defer server.Close()

		result, err := newTestClient(server.URL, true).Fetch(context.Background(), []domain.Identifier{"10.1/a"}, domain.Credentials{})
		require.NoError(t, err)
		assert.Empty(t, result.Observations)
	})

	t.Run("page size grows with input", func(t *testing.T) {
		ids := make([]domain.Identifier, 20)
		for i := range ids {
			ids[i] = domain.Identifier("10.1/" + strconv.Itoa(i))
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "40", r.URL.Query().Get("per_page"))
			_, _ = w.Write([]byte(`{"results":[]}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, true).Fetch(context.Background(), ids, domain.Credentials{})
		require.NoError(t, err)
	})

	t.Run("duplicate works are returned as-is", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":[
				{"doi":"https://doi.org/10.1/a","cited_by_count":3},
				{"doi":"https://doi.org/10.1/a","cited_by_count":4}
			]}`))
		}))
		defer server.Close()

		result, err := newTestClient(server.URL, true).Fetch(context.Background(), []domain.Identifier{"10.1/a"}, domain.Credentials{})
		require.NoError(t, err)
		assert.Len(t, result.Observations, 6)
	})

	t.Run("error status is a batch failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Invalid query parameters error.","message":"doi is not a valid filter"}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, true).Fetch(context.Background(), []domain.Identifier{"10.1/a"}, domain.Credentials{})
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.Equal(t, "doi is not a valid filter", apiErr.Message)
	})

	t.Run("undecodable body is a batch failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, true).Fetch(context.Background(), []domain.Identifier{"10.1/a"}, domain.Credentials{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMalformedResponse)
		assert.ErrorIs(t, err, domain.ErrUpstream)
	})

	t.Run("empty input makes no request", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		result, err := newTestClient(server.URL, true).Fetch(context.Background(), []domain.Identifier{}, domain.Credentials{})
		require.NoError(t, err)
		assert.Empty(t, result.Observations)
		assert.Equal(t, int32(0), calls.Load())
	})
}

func TestClient_Sample(t *testing.T) {
	t.Run("collects distinct DOIs over rounds", func(t *testing.T) {
		var rounds atomic.Int32
		pages := []string{
			`{"results":[{"doi":"https://doi.org/10.1/a"},{"doi":null},{"doi":"https://doi.org/10.1/b"}]}`,
			`{"results":[{"doi":"https://doi.org/10.1/B"},{"doi":"https://doi.org/10.1/c"},{"doi":"https://doi.org/10.1/d"}]}`,
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "doi", q.Get("select"))
			assert.Equal(t, "8", q.Get("sample"))
			assert.Equal(t, "8", q.Get("per_page"))
			assert.NotEmpty(t, q.Get("seed"))
			assert.Equal(t, "institutions.id:https://openalex.org/I35440088", q.Get("filter"))

			n := rounds.Add(1)
			_, _ = w.Write([]byte(pages[n-1]))
		}))
		defer server.Close()

		client := newTestClient(server.URL, true)
		dois, err := client.Sample(context.Background(), 3, "https://openalex.org/I35440088", domain.Credentials{})
		require.NoError(t, err)

		assert.Equal(t, []domain.Identifier{"10.1/a", "10.1/b", "10.1/c"}, dois)
		assert.Equal(t, int32(2), rounds.Load())
	})

	t.Run("stops after five rounds", func(t *testing.T) {
		var rounds atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.URL.Query().Get("filter"))
			rounds.Add(1)
			_, _ = w.Write([]byte(`{"results":[{"doi":"https://doi.org/10.1/same"},{"doi":null}]}`))
		}))
		defer server.Close()

		dois, err := newTestClient(server.URL, true).Sample(context.Background(), 10, "", domain.Credentials{})
		require.NoError(t, err)
		assert.Equal(t, []domain.Identifier{"10.1/same"}, dois)
		assert.Equal(t, int32(maxSampleRounds), rounds.Load())
	})

	t.Run("zero size", func(t *testing.T) {
		dois, err := newTestClient("http://unused", true).Sample(context.Background(), 0, "", domain.Credentials{})
		require.NoError(t, err)
		assert.Empty(t, dois)
	})

	t.Run("upstream failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad","message":"sample must be less than 10000"}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, true).Sample(context.Background(), 5, "", domain.Credentials{})
		require.Error(t, err)
		assert.Equal(t, "sample must be less than 10000", domain.UpstreamMessage(err))
	})
}

func TestClient_Institution(t *testing.T) {
	t.Run("resolves an institution", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/institutions/I35440088", r.URL.Path)
			_, _ = w.Write([]byte(`{"id":"https://openalex.org/I35440088","display_name":"ETH Zurich","country_code":"CH"}`))
		}))
		defer server.Close()

		inst, err := newTestClient(server.URL, true).Institution(context.Background(), "https://openalex.org/I35440088")
		require.NoError(t, err)
		assert.Equal(t, &Institution{ID: "https://openalex.org/I35440088", DisplayName: "ETH Zurich"}, inst)
	})

	t.Run("unknown institution", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, true).Institution(context.Background(), "I0")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := newTestClient("http://unused", true).Institution(context.Background(), " ")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestInstitutionCatalog(t *testing.T) {
	all := SwissUniversities()
	require.Len(t, all, 38)

	seen := make(map[string]bool)
	for _, inst := range all {
		assert.Contains(t, inst.ID, openAlexIDPrefix)
		assert.False(t, seen[inst.ID], inst.ID)
		seen[inst.ID] = true
	}

	// Callers cannot mutate the catalog.
	all[0].DisplayName = "changed"
	assert.Equal(t, "École Polytechnique Fédérale de Lausanne", SwissUniversities()[0].DisplayName)

	for range 20 {
		assert.True(t, seen[RandomInstitution().ID])
	}

	inst, ok := LookupInstitution("eth zurich")
	require.True(t, ok)
	assert.Equal(t, "https://openalex.org/I35440088", inst.ID)

	inst, ok = LookupInstitution("I202697423")
	require.True(t, ok)
	assert.Equal(t, "University of Zurich", inst.DisplayName)

	_, ok = LookupInstitution("Sorbonne")
	assert.False(t, ok)
}
