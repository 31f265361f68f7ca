package enrich

import (
	"regexp"
	"strings"

	"pricewatch-etl/internal/models"
)

type patternLabel struct {
	pattern *regexp.Regexp
	label   string
}

// Ordered pattern tables: the first matching pattern governs, not the
// best match. Order is part of the contract.
var brandPatterns = []patternLabel{
	{regexp.MustCompile(`\b(apple|iphone|ipad|macbook)\b`), "Apple"},
	{regexp.MustCompile(`\b(samsung|galaxy)\b`), "Samsung"},
	{regexp.MustCompile(`\b(google|pixel)\b`), "Google"},
	{regexp.MustCompile(`\b(microsoft|xbox|surface)\b`), "Microsoft"},
	{regexp.MustCompile(`\b(sony|playstation|ps\d)\b`), "Sony"},
	{regexp.MustCompile(`\b(nintendo|switch)\b`), "Nintendo"},
	{regexp.MustCompile(`\b(dell|alienware)\b`), "Dell"},
	{regexp.MustCompile(`\b(hp|hewlett)\b`), "HP"},
	{regexp.MustCompile(`\b(lenovo|thinkpad)\b`), "Lenovo"},
	{regexp.MustCompile(`\b(asus|acer)\b`), "ASUS"},
}

var categoryPatterns = []patternLabel{
	{regexp.MustCompile(`\b(phone|smartphone|mobile)\b`), "Smartphones"},
	{regexp.MustCompile(`\b(laptop|notebook|macbook)\b`), "Laptops"},
	{regexp.MustCompile(`\b(tablet|ipad)\b`), "Tablets"},
	{regexp.MustCompile(`\b(desktop|pc)\b`), "Desktops"},
	{regexp.MustCompile(`\b(watch|smartwatch)\b`), "Wearables"},
	{regexp.MustCompile(`\b(headphones|earbuds|airpods)\b`), "Audio"},
	{regexp.MustCompile(`\b(tv|television|monitor)\b`), "Displays"},
	{regexp.MustCompile(`\b(camera|dslr)\b`), "Cameras"},
	{regexp.MustCompile(`\b(game|gaming|console|xbox|playstation)\b`), "Gaming"},
}

const fallbackCategory = "Other"

var slugStripRe = regexp.MustCompile(`[^\w\s-]`)
var slugSeparatorRe = regexp.MustCompile(`[-\s]+`)

// Enricher derives slug, brand, category and price bracket from a
// normalized item. Pure, never fails, and never overwrites a field the
// source already supplied.
type Enricher struct{}

func New() *Enricher {
	return &Enricher{}
}

func (e *Enricher) Enrich(item models.NormalizedItem) models.EnrichedItem {
	enriched := models.EnrichedItem{NormalizedItem: item}

	enriched.Slug = GenerateSlug(item.Name)

	if item.Brand == nil || strings.TrimSpace(*item.Brand) == "" {
		enriched.Brand = extractBrand(item.Name)
	}

	if item.Category == nil || strings.TrimSpace(*item.Category) == "" {
		enriched.Category = determineCategory(item.Name)
	}

	if item.PriceAmount != nil && *item.PriceAmount > 0 {
		bracket := categorizePrice(*item.PriceAmount)
		enriched.PriceRange = &bracket
	}

	return enriched
}

// GenerateSlug builds a URL-friendly slug from a product name.
func GenerateSlug(name string) string {
	if name == "" {
		return ""
	}
	slug := slugStripRe.ReplaceAllString(strings.ToLower(name), "")
	slug = slugSeparatorRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func extractBrand(text string) *string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	for _, p := range brandPatterns {
		if p.pattern.MatchString(lower) {
			label := p.label
			return &label
		}
	}
	return nil
}

func determineCategory(text string) *string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	for _, p := range categoryPatterns {
		if p.pattern.MatchString(lower) {
			label := p.label
			return &label
		}
	}
	fallback := fallbackCategory
	return &fallback
}

// Fixed five-tier step function over the price amount.
func categorizePrice(price float64) string {
	switch {
	case price < 50:
		return "Budget"
	case price < 200:
		return "Mid-range"
	case price < 500:
		return "Premium"
	case price < 1000:
		return "High-end"
	default:
		return "Luxury"
	}
}
