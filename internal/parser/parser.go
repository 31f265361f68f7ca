package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"pricewatch-etl/internal/models"
)

// ParsingError reports that a single raw field could not be interpreted.
// It is always recovered locally: the offending field is omitted from
// the normalized item, never fatal to the batch.
type ParsingError struct {
	Field   string
	Message string
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type currencySymbol struct {
	symbol string
	code   string
}

// Multi-character symbols come first so "C$" and "A$" are not shadowed
// by the bare "$" lookup.
var currencySymbols = []currencySymbol{
	{"C$", "CAD"},
	{"A$", "AUD"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"¢", "USD"},
	{"₩", "KRW"},
	{"₽", "RUB"},
}

const defaultCurrency = "USD"

type PriceParser struct {
	pricePatterns []*regexp.Regexp
	whitespaceRe  *regexp.Regexp
	punctRe       *regexp.Regexp
	techTermRe    *regexp.Regexp
}

func New() *PriceParser {
	return &PriceParser{
		// Ordered by priority: symbol-anchored decimal prices first,
		// then symbol-anchored integers, then bare amounts so prices
		// with no currency symbol still parse.
		pricePatterns: []*regexp.Regexp{
			regexp.MustCompile(`[$€£¥₹¢₩₽]\s*(\d+(?:,\d{3})*\.\d{2})`),
			regexp.MustCompile(`(\d+(?:,\d{3})*\.\d{2})\s*[$€£¥₹¢₩₽]`),
			regexp.MustCompile(`[$€£¥₹¢₩₽]\s*(\d+(?:,\d{3})*)`),
			regexp.MustCompile(`(\d+(?:,\d{3})*)\s*[$€£¥₹¢₩₽]`),
			regexp.MustCompile(`\b(\d+(?:,\d{3})*\.\d{2})\b`),
			regexp.MustCompile(`\b(\d+(?:,\d{3})*)\b`),
		},
		whitespaceRe: regexp.MustCompile(`\s+`),
		punctRe:      regexp.MustCompile(`[^\w\s\-'"()]`),
		techTermRe:   regexp.MustCompile(`(?i)^(\d+)(gb|tb|mb|kb)$`),
	}
}

type foundPrice struct {
	value float64
	start int
	end   int
}

// ParsePrice extracts a price amount and currency from free text. The
// currency is chosen from the first symbol found anywhere in the text,
// defaulting to USD. Numeric candidates are collected pattern by
// pattern, accepting a match only when its span does not overlap an
// already accepted one, so each substring contributes at most one
// price. When several amounts survive, the amount closest to a "now"
// keyword wins, then one closest to "sale", then the rightmost amount.
func (p *PriceParser) ParsePrice(priceText string) (models.ParsedPrice, error) {
	priceText = strings.TrimSpace(priceText)
	if priceText == "" {
		return models.ParsedPrice{}, &ParsingError{Field: "price", Message: "price text is empty"}
	}

	currency := defaultCurrency
	for _, cs := range currencySymbols {
		if strings.Contains(priceText, cs.symbol) {
			currency = cs.code
			break
		}
	}

	var found []foundPrice
	for _, pattern := range p.pricePatterns {
		for _, m := range pattern.FindAllStringSubmatchIndex(priceText, -1) {
			if overlaps(found, m[0], m[1]) {
				continue
			}
			amountStr := strings.ReplaceAll(priceText[m[2]:m[3]], ",", "")
			value, err := strconv.ParseFloat(amountStr, 64)
			if err != nil {
				continue
			}
			found = append(found, foundPrice{value: value, start: m[0], end: m[1]})
		}
	}

	if len(found) == 0 {
		return models.ParsedPrice{}, &ParsingError{
			Field:   "price",
			Message: fmt.Sprintf("could not extract price from: %s", priceText),
		}
	}

	return models.ParsedPrice{
		Amount:       selectPrice(found, priceText),
		Currency:     currency,
		OriginalText: priceText,
	}, nil
}

func overlaps(accepted []foundPrice, start, end int) bool {
	for _, f := range accepted {
		if start < f.end && f.start < end {
			return true
		}
	}
	return false
}

func selectPrice(found []foundPrice, priceText string) float64 {
	if len(found) == 1 {
		return found[0].value
	}

	lower := strings.ToLower(priceText)
	if pos := strings.Index(lower, "now"); pos >= 0 {
		return closestTo(found, pos)
	}
	if pos := strings.Index(lower, "sale"); pos >= 0 {
		return closestTo(found, pos)
	}

	// Rightmost amount approximates "strikethrough original, current
	// sale price" listings without markup information.
	rightmost := found[0]
	for _, f := range found[1:] {
		if f.start > rightmost.start {
			rightmost = f
		}
	}
	return rightmost.value
}

func closestTo(found []foundPrice, pos int) float64 {
	closest := found[0]
	best := abs(closest.start - pos)
	for _, f := range found[1:] {
		if d := abs(f.start - pos); d < best {
			closest = f
			best = d
		}
	}
	return closest.value
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

var availableTerms = []string{
	"in stock",
	"available",
	"in-stock",
	"ready to ship",
	"ships now",
	"immediate shipping",
	"order now",
	"add to cart",
	"buy now",
	"pre-order",
}

var unavailableTerms = []string{
	"out of stock",
	"sold out",
	"unavailable",
	"temporarily unavailable",
	"back order",
	"coming soon",
	"notify me",
	"waitlist",
	"discontinued",
	"not available",
}

// ParseAvailability is total: every input maps to a boolean. The
// unavailable terms are checked first so "temporarily unavailable" does
// not match the laxer "available" substring. Ambiguous or empty text is
// conservatively unavailable.
func (p *PriceParser) ParseAvailability(availabilityText string) bool {
	if availabilityText == "" {
		return false
	}

	text := strings.ToLower(strings.TrimSpace(availabilityText))

	for _, term := range unavailableTerms {
		if strings.Contains(text, term) {
			return false
		}
	}
	for _, term := range availableTerms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// ExtractProductDetails turns one raw field map into a normalized item.
// It never fails: fields it cannot derive are simply left absent.
func (p *PriceParser) ExtractProductDetails(raw models.RawItem) models.NormalizedItem {
	item := models.NormalizedItem{Name: "Unknown Product"}

	if raw.Title != nil && strings.TrimSpace(*raw.Title) != "" {
		item.Name = p.NormalizeProductName(*raw.Title)
	}

	if raw.Price != nil && strings.TrimSpace(*raw.Price) != "" {
		if parsed, err := p.ParsePrice(*raw.Price); err == nil {
			item.PriceAmount = &parsed.Amount
			currency := parsed.Currency
			item.Currency = &currency
			item.OriginalPriceText = &parsed.OriginalText
		} else {
			item.OriginalPriceText = raw.Price
		}
	}

	if raw.Availability != nil {
		available := p.ParseAvailability(*raw.Availability)
		item.IsAvailable = &available
	}

	item.Description = raw.Description
	item.Brand = raw.Brand
	item.Model = raw.Model
	item.SKU = raw.SKU
	item.Category = raw.Category
	item.ScrapedAt = raw.ScrapedAt
	item.SourceURL = raw.URL

	return item
}

// Known brand and model tokens preserved verbatim by NormalizeProductName.
var knownTerms = map[string]string{
	"iphone":      "iPhone",
	"ipad":        "iPad",
	"macbook":     "MacBook",
	"playstation": "Playstation",
	"xbox":        "Xbox",
	"samsung":     "Samsung",
	"galaxy":      "Galaxy",
	"sony":        "Sony",
	"nike":        "Nike",
	"air":         "Air",
	"max":         "Max",
	"pro":         "Pro",
	"plus":        "Plus",
	"mini":        "Mini",
	"ultra":       "Ultra",
	"apple":       "Apple",
}

// NormalizeProductName collapses whitespace, replaces separator
// characters, strips punctuation outside a safe set and applies a title
// case that preserves known brand tokens and upper-cases digit+unit
// tokens like 32gb.
func (p *PriceParser) NormalizeProductName(name string) string {
	if name == "" {
		return ""
	}

	name = p.whitespaceRe.ReplaceAllString(strings.TrimSpace(name), " ")
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	name = p.punctRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(p.whitespaceRe.ReplaceAllString(name, " "))

	return p.smartTitleCase(name)
}

func (p *PriceParser) smartTitleCase(text string) string {
	words := strings.Fields(strings.ToLower(text))
	result := make([]string, 0, len(words))

	for _, word := range words {
		if m := p.techTermRe.FindStringSubmatch(word); m != nil {
			result = append(result, m[1]+strings.ToUpper(m[2]))
		} else if known, ok := knownTerms[word]; ok {
			result = append(result, known)
		} else {
			result = append(result, capitalize(word))
		}
	}

	return strings.Join(result, " ")
}

func capitalize(word string) string {
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
