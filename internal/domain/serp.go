package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ShoppingResult is one raw record from the general shopping engine.
// Link-like fields vary per merchant; normalization picks the best one.
type ShoppingResult struct {
	Title             string `json:"title"`
	Price             string `json:"price"`
	Source            string `json:"source"`
	Link              string `json:"link"`
	ProductLink       string `json:"product_link"`
	MerchantLink      string `json:"merchant_link"`
	URL               string `json:"url"`
	Thumbnail         string `json:"thumbnail"`
	SerpAPIProductAPI string `json:"serpapi_product_api"`
}

// ShoppingResponse is the general shopping engine's search payload.
type ShoppingResponse struct {
	ShoppingResults   []ShoppingResult `json:"shopping_results"`
	SearchInformation struct {
		ShoppingResultsState string `json:"shopping_results_state"`
	} `json:"search_information"`
}

// MarketplacePrice mirrors the marketplace engine's price field, which
// arrives as a plain string, a bare number, or a {raw, value} object
// depending on the listing.
type MarketplacePrice struct {
	Raw   string
	Value float64
}

func (p *MarketplacePrice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Raw = s
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		p.Value = n
		return nil
	}

	var obj struct {
		Raw   string  `json:"raw"`
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	p.Raw = obj.Raw
	p.Value = obj.Value
	return nil
}

// Display renders the price as upstream shows it, preferring the raw
// string over the bare numeric value. "N/A" when neither is present.
func (p MarketplacePrice) Display() string {
	if strings.TrimSpace(p.Raw) != "" {
		return p.Raw
	}
	if p.Value > 0 {
		return "$" + strconv.FormatFloat(p.Value, 'f', 2, 64)
	}
	return "N/A"
}

// MarketplaceResult is one raw record from the marketplace engine.
// Links here are always direct product pages.
type MarketplaceResult struct {
	Title     string           `json:"title"`
	Price     MarketplacePrice `json:"price"`
	Link      string           `json:"link"`
	Thumbnail string           `json:"thumbnail"`
	ASIN      string           `json:"asin"`
	Rating    float64          `json:"rating"`
	Reviews   int              `json:"reviews"`
}

// MarketplaceResponse is the marketplace engine's search payload.
type MarketplaceResponse struct {
	OrganicResults []MarketplaceResult `json:"organic_results"`
	SearchMetadata struct {
		Status string `json:"status"`
	} `json:"search_metadata"`
}

// ProductResponse is the secondary product-lookup payload used for
// resolving direct merchant links.
type ProductResponse struct {
	Sellers []struct {
		Link string `json:"link"`
	} `json:"sellers"`
	Link string `json:"link"`
}
