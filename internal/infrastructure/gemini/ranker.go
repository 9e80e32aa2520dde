package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/primer/backend/internal/domain"
	"go.uber.org/zap"
)

//go:embed rank_prompt.md
var rankPromptTemplate string

//go:embed analyze_prompt.md
var analyzePrompt string

const logPreviewLength = 200

type visionGenerator interface {
	GenerateVision(ctx context.Context, prompt, imageData string) (string, error)
}

// Ranker asks the vision model to pick a best match and alternatives from
// a candidate list, and to detect garments in captured frames. Model
// output is treated as untrusted and coerced into the domain shapes.
type Ranker struct {
	generator visionGenerator
	logger    *zap.Logger
}

func NewRanker(generator visionGenerator, logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{generator: generator, logger: logger}
}

// rankedCandidate is the wire shape the prompt asks the model to emit.
type rankedCandidate struct {
	ProductName       string `json:"product_name"`
	ImageURL          string `json:"image_url"`
	Price             string `json:"price"`
	Site              string `json:"site"`
	Link              string `json:"link"`
	Description       string `json:"description"`
	SerpAPIProductAPI string `json:"serpapi_product_api"`
}

type rankingWire struct {
	BestMatch      *rankedCandidate  `json:"best_match"`
	SimilarOptions []rankedCandidate `json:"similar_options"`
}

// RankCandidates sends the image and candidate list to the model and
// parses its selection. A response that cannot be interpreted yields
// ErrRankingParse; callers treat that as an empty ranking.
func (r *Ranker) RankCandidates(ctx context.Context, imageData string, candidates []domain.Candidate) (*domain.Ranking, error) {
	candidateJSON, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	prompt := strings.ReplaceAll(rankPromptTemplate, "{{CANDIDATES_JSON}}", string(candidateJSON))

	r.logger.Debug("vision ranking request",
		zap.Int("candidates", len(candidates)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)))

	raw, err := r.generator.GenerateVision(ctx, prompt, imageData)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("vision ranking response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", truncateForLog(raw, logPreviewLength)))

	return parseRanking(raw)
}

// DetectGarments identifies clothing items in a captured frame.
func (r *Ranker) DetectGarments(ctx context.Context, imageData string) ([]domain.Garment, error) {
	raw, err := r.generator.GenerateVision(ctx, analyzePrompt, imageData)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("garment detection response",
		zap.String("response_preview", truncateForLog(raw, logPreviewLength)))

	var garments []domain.Garment
	if err := json.Unmarshal([]byte(extractJSON(raw)), &garments); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRankingParse, err)
	}

	return garments, nil
}

// parseRanking coerces the model's JSON into a Ranking. Missing fields
// become nil/empty rather than errors; only unparseable JSON fails.
func parseRanking(raw string) (*domain.Ranking, error) {
	var wire rankingWire
	if err := json.Unmarshal([]byte(extractJSON(raw)), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRankingParse, err)
	}

	ranking := &domain.Ranking{
		Alternatives: make([]domain.Candidate, 0, len(wire.SimilarOptions)),
	}

	if wire.BestMatch != nil {
		best := wire.BestMatch.toCandidate()
		ranking.BestMatch = &best
	}
	for _, option := range wire.SimilarOptions {
		ranking.Alternatives = append(ranking.Alternatives, option.toCandidate())
	}

	return ranking, nil
}

func (c rankedCandidate) toCandidate() domain.Candidate {
	return domain.Candidate{
		Name:        c.ProductName,
		Price:       c.Price,
		Site:        c.Site,
		Link:        c.Link,
		ImageURL:    c.ImageURL,
		Description: c.Description,
		SourceRef:   c.SerpAPIProductAPI,
	}
}

// extractJSON strips markdown code fences the model sometimes wraps
// around its output.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func truncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
