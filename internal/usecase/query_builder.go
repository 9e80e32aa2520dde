package usecase

import (
	"strings"

	"github.com/primer/backend/internal/domain"
)

// garmentNoiseWords are detection outputs that add no value to a shopping
// query (generic qualifiers the search engines ignore or misread).
var garmentNoiseWords = map[string]bool{
	"unknown":  true,
	"unclear":  true,
	"possibly": true,
	"likely":   true,
	"maybe":    true,
	"generic":  true,
	"standard": true,
	"regular":  true,
	"normal":   true,
	"item":     true,
	"clothing": true,
	"garment":  true,
	"apparel":  true,
}

// maxQueryLength keeps queries within what the search engines accept.
const maxQueryLength = 100

// BuildGarmentQuery turns a detected garment into a shopping search
// query. The detection description carries the most signal; color,
// material, and type are appended when the description omits them.
func BuildGarmentQuery(garment domain.Garment) string {
	var parts []string

	description := strings.TrimSpace(garment.Description)
	if description != "" {
		parts = append(parts, description)
	}

	lower := strings.ToLower(description)
	for _, attr := range []string{garment.Color, garment.Material, garment.Type} {
		attr = strings.TrimSpace(attr)
		if attr == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(attr)) {
			parts = append(parts, attr)
			lower += " " + strings.ToLower(attr)
		}
	}

	query := removeGarmentNoise(strings.Join(parts, " "))
	query = multipleSpacesRegex.ReplaceAllString(query, " ")
	query = strings.TrimSpace(query)

	if len(query) > maxQueryLength {
		query = query[:maxQueryLength]
		if lastSpace := strings.LastIndex(query, " "); lastSpace > maxQueryLength/2 {
			query = query[:lastSpace]
		}
	}

	return query
}

// removeGarmentNoise drops words that never narrow a product search.
func removeGarmentNoise(s string) string {
	words := strings.Fields(s)
	kept := words[:0]
	for _, word := range words {
		clean := strings.ToLower(strings.Trim(word, ",.!?;:-'\""))
		if garmentNoiseWords[clean] {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}
