package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/primer/backend/internal/domain"
	"go.uber.org/zap"
)

const (
	// maxResults is the guaranteed result shape: 1 best match plus 3
	// alternatives whenever the pool has enough distinct candidates.
	maxResults = 4

	// marketplaceMarker identifies the preferred retailer among site
	// labels, matched case-insensitively as a substring.
	marketplaceMarker = "amazon"
)

// leadingAmountRegex matches the leading numeric run of a price string.
var leadingAmountRegex = regexp.MustCompile(`\d[\d,]*\.?\d*`)

// Selector enforces the result-shape invariants over an untrusted AI
// ranking: exactly min(4, pool) distinct candidates, marketplace
// inclusion when available, deterministic padding order.
type Selector struct {
	logger *zap.Logger
}

// NewSelector creates a new selector.
func NewSelector(logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{logger: logger}
}

// Select validates the ranking against the candidate pool, pads the
// selection to the guaranteed size, substitutes marketplace candidates
// with guaranteed-link versions, and enforces marketplace inclusion.
// An empty candidate pool yields an empty result and ErrUpstreamEmpty.
func (s *Selector) Select(pool []domain.Candidate, ranking *domain.Ranking, marketplace []domain.Candidate) (*domain.MatchResult, error) {
	if len(pool) == 0 {
		return &domain.MatchResult{Alternatives: []domain.Candidate{}}, domain.ErrUpstreamEmpty
	}

	result := s.validateRanking(pool, ranking)
	s.pad(result, pool)
	s.substituteMarketplace(result, marketplace)
	s.enforceMarketplace(result, pool, marketplace)

	return result, nil
}

// validateRanking coerces the untrusted ranking into a result containing
// only candidates that exist in the pool, with duplicates dropped and the
// total capped at maxResults. Selected entries are replaced by their
// canonical pool copies so normalization fallbacks are preserved.
func (s *Selector) validateRanking(pool []domain.Candidate, ranking *domain.Ranking) *domain.MatchResult {
	result := &domain.MatchResult{Alternatives: []domain.Candidate{}}
	if ranking == nil {
		return result
	}

	byKey := make(map[string]domain.Candidate, len(pool))
	for _, c := range pool {
		if _, exists := byKey[c.Key()]; !exists {
			byKey[c.Key()] = c
		}
	}

	selected := make(map[string]bool)

	if ranking.BestMatch != nil {
		if canonical, ok := byKey[ranking.BestMatch.Key()]; ok {
			result.BestMatch = &canonical
			selected[canonical.Key()] = true
		} else {
			s.logger.Debug("dropping fabricated best match",
				zap.String("name", ranking.BestMatch.Name))
		}
	}

	for _, alt := range ranking.Alternatives {
		if result.Total() >= maxResults {
			break
		}
		canonical, ok := byKey[alt.Key()]
		if !ok {
			s.logger.Debug("dropping fabricated alternative", zap.String("name", alt.Name))
			continue
		}
		if selected[canonical.Key()] {
			continue
		}
		result.Alternatives = append(result.Alternatives, canonical)
		selected[canonical.Key()] = true
	}

	return result
}

// pad appends unselected pool candidates, in original order, until the
// result reaches maxResults or the pool is exhausted.
func (s *Selector) pad(result *domain.MatchResult, pool []domain.Candidate) {
	if result.Total() >= maxResults {
		return
	}

	selected := selectedKeys(result)
	for _, candidate := range pool {
		if result.Total() >= maxResults {
			break
		}
		if selected[candidate.Key()] {
			continue
		}
		result.Alternatives = append(result.Alternatives, candidate)
		selected[candidate.Key()] = true
	}
}

// substituteMarketplace replaces selected marketplace-site candidates
// with unused marketplace-pool entries, which carry guaranteed direct
// links. Positions are preserved and each pool entry is consumed once.
func (s *Selector) substituteMarketplace(result *domain.MatchResult, marketplace []domain.Candidate) {
	if len(marketplace) == 0 {
		return
	}

	used := make([]bool, len(marketplace))
	selected := selectedKeys(result)

	next := func() (domain.Candidate, bool) {
		for i, entry := range marketplace {
			if used[i] || selected[entry.Key()] {
				continue
			}
			used[i] = true
			return entry, true
		}
		return domain.Candidate{}, false
	}

	if result.BestMatch != nil && IsMarketplaceSite(result.BestMatch.Site) {
		if replacement, ok := next(); ok {
			delete(selected, result.BestMatch.Key())
			result.BestMatch = &replacement
			selected[replacement.Key()] = true
		}
	}

	for i := range result.Alternatives {
		if !IsMarketplaceSite(result.Alternatives[i].Site) {
			continue
		}
		replacement, ok := next()
		if !ok {
			break
		}
		delete(selected, result.Alternatives[i].Key())
		result.Alternatives[i] = replacement
		selected[replacement.Key()] = true
	}
}

// enforceMarketplace guarantees at least one marketplace candidate in the
// result whenever either pool contains one. The injected candidate takes
// the first alternative slot, else becomes the sole alternative, else the
// best match. This priority order is kept for compatibility with the
// extension's display logic.
func (s *Selector) enforceMarketplace(result *domain.MatchResult, pool, marketplace []domain.Candidate) {
	poolSubset := marketplaceSubset(pool)
	if len(poolSubset) == 0 && len(marketplace) == 0 {
		return
	}

	if hasMarketplace(result) {
		return
	}

	source := marketplace
	if len(source) == 0 {
		source = poolSubset
	}

	injected := highestPriced(source)
	s.logger.Info("injecting marketplace candidate",
		zap.String("name", injected.Name),
		zap.String("price", injected.Price))

	switch {
	case len(result.Alternatives) > 0:
		result.Alternatives[0] = injected
	case result.BestMatch != nil:
		result.Alternatives = []domain.Candidate{injected}
	default:
		result.BestMatch = &injected
	}
}

// highestPriced picks the candidate with the highest parsed price as a
// best-effort proxy for desirability. Unparsable prices count as zero and
// ties keep the first candidate encountered. Heuristic, not a correctness
// guarantee.
func highestPriced(candidates []domain.Candidate) domain.Candidate {
	best := candidates[0]
	bestPrice := parsePriceValue(best.Price)
	for _, c := range candidates[1:] {
		if p := parsePriceValue(c.Price); p > bestPrice {
			best = c
			bestPrice = p
		}
	}
	return best
}

// parsePriceValue extracts the leading numeric amount from a free-form
// price string. Returns 0 when no amount is parseable.
func parsePriceValue(price string) float64 {
	match := leadingAmountRegex.FindString(price)
	if match == "" {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}
	return value
}

// IsMarketplaceSite reports whether a site label matches the marketplace
// marker.
func IsMarketplaceSite(site string) bool {
	return strings.Contains(strings.ToLower(site), marketplaceMarker)
}

func hasMarketplace(result *domain.MatchResult) bool {
	if result.BestMatch != nil && IsMarketplaceSite(result.BestMatch.Site) {
		return true
	}
	for _, alt := range result.Alternatives {
		if IsMarketplaceSite(alt.Site) {
			return true
		}
	}
	return false
}

func marketplaceSubset(pool []domain.Candidate) []domain.Candidate {
	var subset []domain.Candidate
	for _, c := range pool {
		if IsMarketplaceSite(c.Site) {
			subset = append(subset, c)
		}
	}
	return subset
}

func selectedKeys(result *domain.MatchResult) map[string]bool {
	keys := make(map[string]bool)
	if result.BestMatch != nil {
		keys[result.BestMatch.Key()] = true
	}
	for _, alt := range result.Alternatives {
		keys[alt.Key()] = true
	}
	return keys
}
