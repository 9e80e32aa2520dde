package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// SearchClient defines the interface for the external shopping search engines.
// Both methods return candidates already normalized to the Candidate shape.
type SearchClient interface {
	SearchShopping(ctx context.Context, query string) ([]Candidate, error)
	SearchMarketplace(ctx context.Context, query string) ([]Candidate, error)
	ResolveDirectLink(ctx context.Context, sourceRef string) (string, error)
}

// VisionRanker defines the interface for the vision-language model boundary.
type VisionRanker interface {
	RankCandidates(ctx context.Context, imageData string, candidates []Candidate) (*Ranking, error)
	DetectGarments(ctx context.Context, imageData string) ([]Garment, error)
}
