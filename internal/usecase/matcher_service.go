package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/primer/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Package-level compiled regex patterns for performance
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

// MatcherServiceConfig holds configuration for the matcher service
type MatcherServiceConfig struct {
	CacheTTL     time.Duration
	ResolveLinks bool
}

// MatcherService orchestrates the full matching pipeline: search both
// engines, rank with the vision model, enforce result-shape invariants,
// and optionally resolve aggregator links.
type MatcherService struct {
	cache        domain.CacheRepository
	search       domain.SearchClient
	ranker       domain.VisionRanker
	selector     *Selector
	cacheTTL     time.Duration
	resolveLinks bool
	logger       *zap.Logger
}

// cachedPools is the cache entry for one normalized query.
type cachedPools struct {
	Candidates  []domain.Candidate `json:"candidates" mapstructure:"candidates"`
	Marketplace []domain.Candidate `json:"marketplace" mapstructure:"marketplace"`
}

// NewMatcherService creates a new matcher service with dependencies
func NewMatcherService(
	cache domain.CacheRepository,
	search domain.SearchClient,
	ranker domain.VisionRanker,
	config MatcherServiceConfig,
	logger *zap.Logger,
) *MatcherService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 1 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MatcherService{
		cache:        cache,
		search:       search,
		ranker:       ranker,
		selector:     NewSelector(logger),
		cacheTTL:     cacheTTL,
		resolveLinks: config.ResolveLinks,
		logger:       logger,
	}
}

// FindSimilarProducts runs the pipeline for one captured frame.
// Flow: search both engines (cached per query) -> vision ranking ->
// selector -> optional link resolution. All candidate pools are plain
// parameters scoped to this call; nothing survives the request.
func (s *MatcherService) FindSimilarProducts(ctx context.Context, imageData, query string) (*domain.MatchResult, error) {
	if imageData == "" || strings.TrimSpace(query) == "" {
		return nil, domain.ErrInvalidRequest
	}

	log := s.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("query", query),
	)
	log.Info("starting product search")

	pool, marketplace := s.searchCandidates(ctx, query, log)
	log.Info("search completed",
		zap.Int("candidates", len(pool)),
		zap.Int("marketplace", len(marketplace)))

	if len(pool) == 0 {
		log.Warn("no candidates from the shopping search")
		return &domain.MatchResult{Alternatives: []domain.Candidate{}}, domain.ErrUpstreamEmpty
	}

	ranking := s.rankCandidates(ctx, imageData, pool, log)

	result, err := s.selector.Select(pool, ranking, marketplace)
	if err != nil {
		return result, err
	}

	if s.resolveLinks {
		s.resolveAggregatorLinks(ctx, result, log)
	}

	log.Info("product matching completed",
		zap.Int("total", result.Total()),
		zap.Bool("has_best_match", result.BestMatch != nil))
	return result, nil
}

// AnalyzeFrame identifies clothing items in a captured frame.
func (s *MatcherService) AnalyzeFrame(ctx context.Context, imageData string) ([]domain.Garment, error) {
	if imageData == "" {
		return nil, domain.ErrInvalidRequest
	}
	return s.ranker.DetectGarments(ctx, imageData)
}

// searchCandidates returns the general and marketplace candidate pools
// for a query, serving from cache when possible. Search failures degrade
// to empty pools; the selector decides whether that is fatal.
func (s *MatcherService) searchCandidates(ctx context.Context, query string, log *zap.Logger) ([]domain.Candidate, []domain.Candidate) {
	cacheKey := s.generateCacheKey(query)

	if cached, err := s.getFromCache(ctx, cacheKey); err == nil && cached != nil {
		log.Debug("serving candidate pools from cache", zap.String("key", cacheKey))
		return cached.Candidates, cached.Marketplace
	}

	var pool, marketplace []domain.Candidate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		candidates, err := s.search.SearchShopping(gctx, query)
		if err != nil {
			log.Warn("shopping search failed", zap.Error(err))
			return nil
		}
		pool = candidates
		return nil
	})
	g.Go(func() error {
		candidates, err := s.search.SearchMarketplace(gctx, query)
		if err != nil {
			log.Warn("marketplace search failed", zap.Error(err))
			return nil
		}
		marketplace = candidates
		return nil
	})
	_ = g.Wait()

	if len(pool) > 0 {
		if err := s.setInCache(ctx, cacheKey, cachedPools{Candidates: pool, Marketplace: marketplace}); err != nil {
			log.Debug("failed to cache candidate pools", zap.Error(err))
		}
	}

	return pool, marketplace
}

// rankCandidates calls the vision model. Any failure, including an
// unparseable response, degrades to an empty ranking so the selector can
// fall back to padding and enforcement.
func (s *MatcherService) rankCandidates(ctx context.Context, imageData string, pool []domain.Candidate, log *zap.Logger) *domain.Ranking {
	ranking, err := s.ranker.RankCandidates(ctx, imageData, pool)
	if err != nil {
		log.Warn("vision ranking unavailable, falling back to pool order", zap.Error(err))
		return nil
	}
	return ranking
}

// resolveAggregatorLinks swaps aggregator links for direct merchant links
// where a source reference is available. Failures leave the candidate
// unchanged; marketplace candidates never need resolution.
func (s *MatcherService) resolveAggregatorLinks(ctx context.Context, result *domain.MatchResult, log *zap.Logger) {
	resolve := func(c *domain.Candidate) {
		if c.SourceRef == "" || !isAggregatorLink(c.Link) {
			return
		}
		link, err := s.search.ResolveDirectLink(ctx, c.SourceRef)
		if err != nil {
			log.Debug("link resolution failed", zap.String("name", c.Name), zap.Error(err))
			return
		}
		c.Link = link
	}

	if result.BestMatch != nil {
		resolve(result.BestMatch)
	}
	for i := range result.Alternatives {
		resolve(&result.Alternatives[i])
	}
}

// isAggregatorLink reports whether a link points at an interstitial page
// rather than a merchant product page.
func isAggregatorLink(link string) bool {
	return link == "" ||
		strings.Contains(link, "google.com/shopping") ||
		strings.Contains(link, "serpapi.com")
}

// generateCacheKey creates a normalized cache key from the search query.
// Format: "search:{normalized_query}"
func (s *MatcherService) generateCacheKey(query string) string {
	return fmt.Sprintf("search:%s", normalizeForCacheKey(query))
}

// normalizeForCacheKey normalizes a string for use as cache key component.
// Converts to lowercase, removes special characters, and trims whitespace.
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = nonAlphanumericRegex.ReplaceAllString(result, "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// getFromCache retrieves candidate pools from cache. Values come back as
// generic maps after the cache's JSON round trip, so they are decoded
// with mapstructure.
func (s *MatcherService) getFromCache(ctx context.Context, key string) (*cachedPools, error) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if pools, ok := value.(*cachedPools); ok {
		return pools, nil
	}

	var pools cachedPools
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           &pools,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(value); err != nil {
		return nil, domain.ErrCacheMiss
	}

	return &pools, nil
}

// setInCache stores candidate pools in cache
func (s *MatcherService) setInCache(ctx context.Context, key string, pools cachedPools) error {
	return s.cache.Set(ctx, key, pools, s.cacheTTL)
}
