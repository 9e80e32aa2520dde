package serpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/primer/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(ClientConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}, nil)
}

func TestSearchShopping(t *testing.T) {
	t.Run("returns normalized candidates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search", r.URL.Path)
			assert.Equal(t, "google_shopping", r.URL.Query().Get("engine"))
			assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
			assert.Equal(t, "in", r.URL.Query().Get("gl"))
			assert.Equal(t, "en", r.URL.Query().Get("hl"))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"shopping_results": [
					{
						"title": "Blue Denim Jacket",
						"price": "₹1,999",
						"source": "Myntra",
						"product_link": "https://myntra.com/jackets/1",
						"thumbnail": "https://img.example/1.jpg"
					},
					{
						"title": "Denim Trucker Jacket",
						"price": "₹2,499",
						"link": "https://flipkart.com/p/2"
					}
				]
			}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		candidates, err := client.SearchShopping(context.Background(), "blue denim jacket")

		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, "Blue Denim Jacket", candidates[0].Name)
		assert.Equal(t, "Myntra", candidates[0].Site)
		assert.Equal(t, "https://myntra.com/jackets/1", candidates[0].Link)
		assert.Equal(t, "Flipkart", candidates[1].Site)
	})

	t.Run("first variation broadens the query", func(t *testing.T) {
		queries := make(chan string, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case queries <- r.URL.Query().Get("q"):
			default:
			}
			w.Write([]byte(`{"shopping_results": [{"title": "Jacket"}]}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.SearchShopping(context.Background(), "blue denim jacket")

		require.NoError(t, err)
		assert.Equal(t, "blue denim jacket buy online india", <-queries)
	})

	t.Run("falls through variations until one has results", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 2 {
				w.Write([]byte(`{"shopping_results": []}`))
				return
			}
			w.Write([]byte(`{"shopping_results": [{"title": "Jacket"}]}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		candidates, err := client.SearchShopping(context.Background(), "blue denim jacket")

		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("empty across all variations returns empty slice", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"shopping_results": [], "search_information": {"shopping_results_state": "Fully empty"}}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		candidates, err := client.SearchShopping(context.Background(), "blue denim jacket")

		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("caps results at configured maximum", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"shopping_results": [
				{"title": "A"}, {"title": "B"}, {"title": "C"}, {"title": "D"}
			]}`))
		}))
		defer server.Close()

		client := NewClient(ClientConfig{
			APIKey:     "test-key",
			BaseURL:    server.URL,
			MaxResults: 2,
		}, nil)
		candidates, err := client.SearchShopping(context.Background(), "jacket")

		require.NoError(t, err)
		assert.Len(t, candidates, 2)
	})
}

func TestSearchMarketplace(t *testing.T) {
	t.Run("returns normalized marketplace candidates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "amazon", r.URL.Query().Get("engine"))
			assert.Equal(t, "denim jacket", r.URL.Query().Get("k"))
			assert.Equal(t, "amazon.com", r.URL.Query().Get("amazon_domain"))

			w.Write([]byte(`{
				"search_metadata": {"status": "Success"},
				"organic_results": [
					{
						"title": "Levi's Trucker Jacket",
						"price": {"raw": "$19.99", "value": 19.99},
						"link": "https://amazon.com/dp/B01",
						"asin": "B01",
						"rating": 4.5,
						"reviews": 1287
					},
					{
						"title": "Wrangler Jacket",
						"price": "$25.00",
						"link": "https://amazon.com/dp/B02",
						"asin": "B02"
					}
				]
			}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		candidates, err := client.SearchMarketplace(context.Background(), "denim jacket")

		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, "Levi's Trucker Jacket", candidates[0].Name)
		assert.Equal(t, "₹1772.51 ($19.99)", candidates[0].Price)
		assert.Equal(t, "Amazon US", candidates[0].Site)
		assert.Equal(t, "B01", candidates[0].ASIN)
		assert.Equal(t, 4.5, candidates[0].Rating)
		assert.Equal(t, 1287, candidates[0].Reviews)
		assert.Equal(t, "₹2216.75 ($25)", candidates[1].Price)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"organic_results": [{"title": "Jacket"}]}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		candidates, err := client.SearchMarketplace(context.Background(), "jacket")

		require.NoError(t, err)
		assert.Len(t, candidates, 1)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("exhausted retries surface the search failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.SearchMarketplace(context.Background(), "jacket")

		assert.True(t, errors.Is(err, domain.ErrSearchAPIFailure))
	})
}

func TestResolveDirectLink(t *testing.T) {
	t.Run("prefers first seller link", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
			w.Write([]byte(`{
				"sellers": [
					{"link": "https://myntra.com/jackets/1"},
					{"link": "https://flipkart.com/p/1"}
				],
				"link": "https://www.google.com/shopping/product/1"
			}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		link, err := client.ResolveDirectLink(context.Background(), server.URL+"/search.json?product_id=1")

		require.NoError(t, err)
		assert.Equal(t, "https://myntra.com/jackets/1", link)
	})

	t.Run("falls back to top-level link", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"link": "https://myntra.com/jackets/2"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		link, err := client.ResolveDirectLink(context.Background(), server.URL+"/search.json?product_id=2")

		require.NoError(t, err)
		assert.Equal(t, "https://myntra.com/jackets/2", link)
	})

	t.Run("rejects aggregator links", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"link": "https://www.google.com/shopping/product/3"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.ResolveDirectLink(context.Background(), server.URL+"/search.json?product_id=3")

		assert.True(t, errors.Is(err, domain.ErrResolutionFailed))
	})

	t.Run("empty source reference fails fast", func(t *testing.T) {
		client := newTestClient("http://unused.invalid")
		_, err := client.ResolveDirectLink(context.Background(), "")

		assert.True(t, errors.Is(err, domain.ErrResolutionFailed))
	})

	t.Run("upstream error fails resolution", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.ResolveDirectLink(context.Background(), server.URL+"/search.json?product_id=4")

		assert.True(t, errors.Is(err, domain.ErrResolutionFailed))
	})
}

func TestSearchVariations(t *testing.T) {
	t.Run("detailed query produces all rewrites", func(t *testing.T) {
		got := searchVariations("black leather jacket with silver zips")

		assert.Equal(t, []string{
			"black leather jacket with silver zips buy online india",
			"black leather jacket with silver zips",
			"black leather jacket",
			"black leather jacket india",
		}, got)
	})

	t.Run("short query keeps two variations", func(t *testing.T) {
		got := searchVariations("denim jacket")

		assert.Equal(t, []string{
			"denim jacket buy online india",
			"denim jacket",
		}, got)
	})

	t.Run("duplicates removed", func(t *testing.T) {
		got := searchVariations("red silk kurta set")

		seen := make(map[string]bool)
		for _, v := range got {
			assert.False(t, seen[v], "duplicate variation %q", v)
			seen[v] = true
		}
	})
}
