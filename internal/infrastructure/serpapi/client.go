package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/primer/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL        = "https://serpapi.com"
	defaultTimeout        = 30 * time.Second
	defaultResolveTimeout = 15 * time.Second
	defaultMaxResults     = 15
	maxMarketplaceResults = 10
	maxAttempts           = 3
)

// ClientConfig holds configuration for the search API client.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Country    string
	Language   string
	Timeout    time.Duration
	MaxResults int
}

// Client handles communication with the SerpAPI search engines.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	country     string
	language    string
	maxResults  int
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new search API client. The free SerpAPI tier
// allows 100 searches per hour, so roughly 0.028 requests per second.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Country == "" {
		cfg.Country = "in"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		country:     cfg.Country,
		language:    cfg.Language,
		maxResults:  cfg.MaxResults,
		rateLimiter: rate.NewLimiter(rate.Limit(0.028), 5),
		logger:      logger,
	}
}

// SearchShopping searches the general shopping engine and returns
// normalized candidates. Query variations are tried in order until one
// returns results; an empty slice means every variation came up empty.
func (c *Client) SearchShopping(ctx context.Context, query string) ([]domain.Candidate, error) {
	var lastErr error
	for _, variation := range searchVariations(query) {
		params := url.Values{}
		params.Add("engine", "google_shopping")
		params.Add("q", variation)
		params.Add("api_key", c.apiKey)
		params.Add("num", strconv.Itoa(c.maxResults))
		params.Add("gl", c.country)
		params.Add("hl", c.language)
		params.Add("tbm", "shop")

		body, err := c.doSearch(ctx, params)
		if err != nil {
			lastErr = err
			continue
		}

		var resp domain.ShoppingResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			lastErr = fmt.Errorf("failed to decode shopping response: %w", err)
			continue
		}

		if len(resp.ShoppingResults) == 0 {
			c.logger.Debug("no shopping results for variation",
				zap.String("variation", variation),
				zap.String("state", resp.SearchInformation.ShoppingResultsState))
			continue
		}

		results := resp.ShoppingResults
		if len(results) > c.maxResults {
			results = results[:c.maxResults]
		}

		candidates := make([]domain.Candidate, 0, len(results))
		for i, item := range results {
			candidates = append(candidates, NormalizeShopping(item, i))
		}

		c.logger.Info("shopping search succeeded",
			zap.String("variation", variation),
			zap.Int("candidates", len(candidates)))
		return candidates, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return []domain.Candidate{}, nil
}

// SearchMarketplace searches the marketplace engine, which guarantees
// direct product links along with rating and review data.
func (c *Client) SearchMarketplace(ctx context.Context, query string) ([]domain.Candidate, error) {
	params := url.Values{}
	params.Add("engine", "amazon")
	params.Add("k", query)
	params.Add("amazon_domain", "amazon.com")
	params.Add("api_key", c.apiKey)
	params.Add("num", strconv.Itoa(maxMarketplaceResults))

	body, err := c.doSearch(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp domain.MarketplaceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode marketplace response: %w", err)
	}

	results := resp.OrganicResults
	if len(results) > maxMarketplaceResults {
		results = results[:maxMarketplaceResults]
	}

	candidates := make([]domain.Candidate, 0, len(results))
	for i, item := range results {
		candidates = append(candidates, NormalizeMarketplace(item, i))
	}

	c.logger.Info("marketplace search completed",
		zap.String("status", resp.SearchMetadata.Status),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// ResolveDirectLink performs a secondary product lookup to obtain a direct
// merchant link for a candidate that carries a source reference.
func (c *Client) ResolveDirectLink(ctx context.Context, sourceRef string) (string, error) {
	if sourceRef == "" {
		return "", domain.ErrResolutionFailed
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	sep := "?"
	if strings.Contains(sourceRef, "?") {
		sep = "&"
	}
	reqURL := sourceRef + sep + "api_key=" + url.QueryEscape(c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrResolutionFailed, err)
	}
	req.Header.Set("User-Agent", "Primer/1.0")

	resolveClient := &http.Client{Timeout: defaultResolveTimeout}
	resp, err := resolveClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrResolutionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", domain.ErrResolutionFailed, resp.StatusCode)
	}

	var product domain.ProductResponse
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrResolutionFailed, err)
	}

	directLink := product.Link
	if len(product.Sellers) > 0 && product.Sellers[0].Link != "" {
		directLink = product.Sellers[0].Link
	}

	if directLink == "" || strings.Contains(directLink, "google.com/shopping") {
		return "", fmt.Errorf("%w: no direct merchant link in response", domain.ErrResolutionFailed)
	}

	return directLink, nil
}

// doSearch executes a search request with rate limiting and retries for
// transient failures.
func (c *Client) doSearch(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "Primer/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("search request failed",
				zap.Int("attempt", attempt), zap.Error(err))
			lastErr = fmt.Errorf("%w: %v", domain.ErrSearchAPIFailure, err)
			sleepBackoff(ctx, attempt)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			c.logger.Warn("search API error",
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode))
			lastErr = fmt.Errorf("%w: status %d", domain.ErrSearchAPIFailure, resp.StatusCode)
			sleepBackoff(ctx, attempt)
			continue
		}

		return body, nil
	}

	return nil, lastErr
}

// sleepBackoff waits before the next retry attempt, honoring cancellation.
func sleepBackoff(ctx context.Context, attempt int) {
	select {
	case <-time.After(time.Duration(attempt*500) * time.Millisecond):
	case <-ctx.Done():
	}
}

// searchVariations returns progressively simplified rewrites of the
// query; broader variations recover results when the detailed query
// returns nothing.
func searchVariations(query string) []string {
	query = strings.TrimSpace(query)

	variations := []string{
		query + " buy online india",
		query,
	}

	// Strip trailing detail clauses like "with a single button closure".
	if idx := strings.Index(strings.ToLower(query), " with "); idx > 0 {
		variations = append(variations, strings.TrimSpace(query[:idx]))
	}

	words := strings.Fields(query)
	if len(words) > 3 {
		variations = append(variations, strings.Join(words[:3], " ")+" india")
	}

	seen := make(map[string]bool)
	unique := variations[:0]
	for _, v := range variations {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		unique = append(unique, v)
	}
	return unique
}
