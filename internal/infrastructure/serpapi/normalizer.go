package serpapi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/primer/backend/internal/domain"
)

const (
	// Fixed USD to INR rate applied to marketplace prices so the
	// extension can show both currencies. Updated manually.
	usdToINRRate = 88.67

	defaultSourceLabel = "Google Shopping"
	marketplaceSite    = "Amazon US"
)

// siteMappings maps known retailer domain fragments to display names.
// Checked in order; first match wins.
var siteMappings = []struct {
	fragment string
	label    string
}{
	{"amazon.in", "Amazon India"},
	{"amazon.com", "Amazon US"},
	{"myntra.com", "Myntra"},
	{"flipkart.com", "Flipkart"},
	{"ajio.com", "Ajio"},
	{"nykaa.com", "Nykaa"},
	{"zara.com", "Zara"},
	{"h&m", "H&M"},
	{"uniqlo.com", "Uniqlo"},
}

// priceAmountRegex matches the first numeric run in a price string,
// including thousands separators (e.g. "$1,234.56" -> "1,234.56").
var priceAmountRegex = regexp.MustCompile(`[\d,]+\.?\d*`)

// NormalizeShopping converts one general shopping record into a Candidate.
// Every field gets a deterministic fallback; this never fails.
func NormalizeShopping(item domain.ShoppingResult, index int) domain.Candidate {
	name := item.Title
	if name == "" {
		name = fmt.Sprintf("Product %d", index+1)
	}

	price := item.Price
	if price == "" {
		price = "N/A"
	}

	return domain.Candidate{
		Name:        name,
		Price:       price,
		Site:        inferSite(item.Link, item.Source),
		Link:        pickLink(item),
		ImageURL:    item.Thumbnail,
		Description: name,
		SourceRef:   item.SerpAPIProductAPI,
	}
}

// NormalizeMarketplace converts one marketplace record into a Candidate.
// Marketplace links are already direct, so no SourceRef is kept.
func NormalizeMarketplace(item domain.MarketplaceResult, index int) domain.Candidate {
	name := item.Title
	if name == "" {
		name = fmt.Sprintf("Amazon Product %d", index+1)
	}

	return domain.Candidate{
		Name:        name,
		Price:       ConvertPrice(item.Price.Display()),
		Site:        marketplaceSite,
		Link:        item.Link,
		ImageURL:    item.Thumbnail,
		Description: name,
		ASIN:        item.ASIN,
		Rating:      item.Rating,
		Reviews:     item.Reviews,
	}
}

// pickLink prefers direct product-page links over aggregator redirects.
func pickLink(item domain.ShoppingResult) string {
	for _, link := range []string{
		item.ProductLink,
		item.SerpAPIProductAPI,
		item.MerchantLink,
		item.URL,
		item.Link,
	} {
		if link != "" {
			return link
		}
	}
	return ""
}

// inferSite derives a retailer label from the link domain, falling back
// to the upstream source label, then a generic default.
func inferSite(link, source string) string {
	if link != "" {
		for _, m := range siteMappings {
			if strings.Contains(link, m.fragment) {
				return m.label
			}
		}
	}
	if source != "" {
		return source
	}
	return defaultSourceLabel
}

// ConvertPrice renders a USD price in INR alongside the original amount
// using the fixed rate, e.g. "$19.99" -> "₹1772.51 ($19.99)". Strings
// without a parseable amount pass through unchanged. Pure function.
func ConvertPrice(price string) string {
	trimmed := strings.TrimSpace(price)
	if trimmed == "" {
		return price
	}

	match := priceAmountRegex.FindString(trimmed)
	if match == "" {
		return price
	}

	usd, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil || usd <= 0 {
		return price
	}

	inr := usd * usdToINRRate
	return fmt.Sprintf("₹%.2f ($%s)", inr, strconv.FormatFloat(usd, 'f', -1, 64))
}
