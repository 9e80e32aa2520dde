package domain

import "errors"

var (
	// ErrUpstreamEmpty is returned when the search sources produced zero candidates
	ErrUpstreamEmpty = errors.New("no products found from upstream search")

	// ErrRankingParse is returned when the vision model response cannot be interpreted
	ErrRankingParse = errors.New("ranking response could not be parsed")

	// ErrResolutionFailed is returned when a direct link lookup fails for a candidate
	ErrResolutionFailed = errors.New("direct link resolution failed")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrSearchAPIFailure is returned when a search API request fails
	ErrSearchAPIFailure = errors.New("search API request failed")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
