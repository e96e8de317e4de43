package crossref

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/papersources"
)

// newTestClient creates a client configured for testing with the given server URL.
func newTestClient(serverURL string) *Client {
	cfg := Config{
		BaseURL:   serverURL,
		Timeout:   5 * time.Second,
		RateLimit: 100, // High rate for testing
		BurstSize: 100,
		Enabled:   true,
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

func TestNew(t *testing.T) {
	client := New(Config{})
	assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
	assert.Equal(t, DefaultTimeout, client.config.Timeout)
	assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
	assert.Equal(t, domain.SourceCrossref, client.Name())
	assert.False(t, client.IsEnabled())

	client = New(Config{BaseURL: "http://localhost:1234/", Enabled: true})
	assert.Equal(t, "http://localhost:1234", client.config.BaseURL)
	assert.True(t, client.IsEnabled())
}

func TestClient_Fetch(t *testing.T) {
	t.Run("maps counts for a work", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/works", r.URL.Path)
			q := r.URL.Query()
			assert.Equal(t, "doi:10.1000/xyz123,doi:10.1000/abc", q.Get("filter"))
			assert.Equal(t, "DOI,is-referenced-by-count,references-count,author", q.Get("select"))
			assert.Equal(t, "4", q.Get("rows"))
			assert.Equal(t, "me@example.org", q.Get("mailto"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"status": "ok",
				"message-type": "work-list",
				"message": {
					"total-results": 1,
					"items": [{
						"DOI": "10.1000/XYZ123",
						"is-referenced-by-count": 5,
						"references-count": 10,
						"author": [{"family": "A"}, {"family": "B"}, {"family": "C"}]
					}]
				}
			}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.Fetch(context.Background(),
			[]domain.Identifier{"10.1000/xyz123", "10.1000/abc"},
			domain.Credentials{Email: "me@example.org"})
		require.NoError(t, err)

		assert.Equal(t, domain.SourceCrossref, result.Source)
		assert.Equal(t, domain.NewObservations(domain.SourceCrossref, "10.1000/xyz123",
			domain.KnownInt(5), domain.KnownInt(10), domain.KnownInt(3)), result.Observations)
		assert.Empty(t, result.Diagnostics)
	})

	t.Run("absent fields map to missing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.URL.Query().Get("mailto"))
			_, _ = w.Write([]byte(`{"status":"ok","message":{"items":[
				{"DOI":"10.1/a","is-referenced-by-count":0},
				{"DOI":"10.1/b","references-count":2,"author":[]}
			]}}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.Fetch(context.Background(), []domain.Identifier{"10.1/a", "10.1/b"}, domain.Credentials{})
		require.NoError(t, err)
		require.Len(t, result.Observations, 6)

		a := result.Observations[:3]
		assert.Equal(t, domain.KnownInt(0), a[0].Value)
		assert.True(t, a[1].Value.IsMissing())
		assert.True(t, a[2].Value.IsMissing())

		b := result.Observations[3:]
		assert.True(t, b[0].Value.IsMissing())
		assert.Equal(t, domain.KnownInt(2), b[1].Value)
		assert.Equal(t, domain.KnownInt(0), b[2].Value)
	})

	t.Run("failed status is a batch failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":"failed","message-type":"validation-failure",
				"message":[{"type":"filter-not-available","value":"doi","message":"Filter doi specified but there is no such filter"}]}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.Fetch(context.Background(), []domain.Identifier{"10.1/a"}, domain.Credentials{})
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "Filter doi specified but there is no such filter", apiErr.Message)
		assert.ErrorIs(t, err, domain.ErrUpstream)
	})

	t.Run("non-json error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("<html>down</html>"))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.Fetch(context.Background(), []domain.Identifier{"10.1/a"}, domain.Credentials{})
		require.Error(t, err)
		assert.Equal(t, http.StatusText(http.StatusServiceUnavailable), domain.UpstreamMessage(err))
	})

	t.Run("network error is a batch failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		client := newTestClient(url)
		_, err := client.Fetch(context.Background(), []domain.Identifier{"10.1/a"}, domain.Credentials{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUpstream)
	})

	t.Run("empty input makes no request", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.Fetch(context.Background(), nil, domain.Credentials{})
		require.NoError(t, err)
		assert.Empty(t, result.Observations)
		assert.Equal(t, int32(0), calls.Load())
	})
}
