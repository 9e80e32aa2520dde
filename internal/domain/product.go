package domain

// Candidate represents a normalized product record eligible for selection.
// Normalization guarantees every field below is populated; at minimum a
// synthesized name is present.
type Candidate struct {
	Name        string `json:"product_name" mapstructure:"product_name"`
	Price       string `json:"price" mapstructure:"price"`
	Site        string `json:"site" mapstructure:"site"`
	Link        string `json:"link" mapstructure:"link"`
	ImageURL    string `json:"image_url" mapstructure:"image_url"`
	Description string `json:"description" mapstructure:"description"`

	// SourceRef is an opaque handle used for secondary direct-link
	// resolution. Only general shopping results carry one.
	SourceRef string `json:"serpapi_product_api,omitempty" mapstructure:"serpapi_product_api"`

	// Marketplace-only fields.
	ASIN    string  `json:"asin,omitempty" mapstructure:"asin"`
	Rating  float64 `json:"rating,omitempty" mapstructure:"rating"`
	Reviews int     `json:"reviews,omitempty" mapstructure:"reviews"`
}

// Key returns the identity used for deduplication across pools.
func (c Candidate) Key() string {
	return c.Name + "|" + c.Link
}

// Ranking is the selection produced by the vision model. It is untrusted
// input: fields may be missing, duplicated, or reference products that
// were never in the candidate pool.
type Ranking struct {
	BestMatch    *Candidate  `json:"best_match"`
	Alternatives []Candidate `json:"similar_options"`
}

// MatchResult is the pipeline output consumed by the extension.
// The first alternative is shown most prominently.
type MatchResult struct {
	BestMatch    *Candidate  `json:"best_match"`
	Alternatives []Candidate `json:"similar_options"`
}

// Total counts the best match (if present) plus all alternatives.
func (m *MatchResult) Total() int {
	total := len(m.Alternatives)
	if m.BestMatch != nil {
		total++
	}
	return total
}

// Garment is one clothing item detected in a captured frame.
type Garment struct {
	Type        string  `json:"type"`
	Color       string  `json:"color"`
	Style       string  `json:"style"`
	Material    string  `json:"material"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// MatchRequest is an inbound product-match request. Query may be empty
// when a detected garment is supplied instead.
type MatchRequest struct {
	ImageData string   `json:"imageData" binding:"required"`
	Query     string   `json:"query"`
	Garment   *Garment `json:"garment,omitempty"`
}

// AnalyzeRequest is an inbound frame-analysis request.
type AnalyzeRequest struct {
	ImageData string `json:"imageData" binding:"required"`
}
