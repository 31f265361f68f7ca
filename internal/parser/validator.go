package parser

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"pricewatch-etl/internal/models"
)

const maxNameLength = 500

var validCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "CAD": {}, "AUD": {},
	"CHF": {}, "CNY": {}, "INR": {}, "KRW": {}, "BRL": {}, "MXN": {},
	"SEK": {}, "NOK": {}, "DKK": {}, "PLN": {}, "RUB": {}, "SGD": {},
	"HKD": {}, "NZD": {}, "ZAR": {}, "THB": {},
}

// Validator checks normalized product data against field-level rules.
// All violated rules are collected so a single call reports every
// problem at once.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) ValidateProduct(item models.NormalizedItem) models.ValidationResult {
	var errors []string

	if strings.TrimSpace(item.Name) == "" {
		errors = append(errors, "name: missing required field")
	} else if len(item.Name) > maxNameLength {
		errors = append(errors, fmt.Sprintf("name: product name too long (max %d characters)", maxNameLength))
	}

	if item.PriceAmount == nil {
		errors = append(errors, "price_amount: missing required field")
	} else if !v.ValidatePrice(*item.PriceAmount) {
		errors = append(errors, "price_amount: invalid price amount")
	}

	if item.Currency == nil {
		errors = append(errors, "currency: missing required field")
	} else if strings.TrimSpace(*item.Currency) == "" {
		errors = append(errors, "currency: empty required field")
	} else if !v.ValidateCurrency(*item.Currency) {
		errors = append(errors, fmt.Sprintf("currency: invalid currency code: %s", *item.Currency))
	}

	if item.SourceURL != nil && *item.SourceURL != "" && !v.ValidateURL(*item.SourceURL) {
		errors = append(errors, "source_url: invalid source URL format")
	}

	return models.ValidationResult{IsValid: len(errors) == 0, Errors: errors}
}

func (v *Validator) ValidatePrice(price float64) bool {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return false
	}
	return price > 0
}

func (v *Validator) ValidateCurrency(currency string) bool {
	_, ok := validCurrencies[strings.ToUpper(currency)]
	return ok
}

func (v *Validator) ValidateURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateBatch applies the single-item check across a batch and
// returns the aggregate summary. Item errors are prefixed with their
// batch index.
func (v *Validator) ValidateBatch(items []models.EnrichedItem) models.BatchValidation {
	totalItems := len(items)
	validItems := 0
	var allErrors []string

	for i, item := range items {
		result := v.ValidateProduct(item.NormalizedItem)
		if result.IsValid {
			validItems++
			continue
		}
		for _, e := range result.Errors {
			allErrors = append(allErrors, fmt.Sprintf("item %d: %s", i, e))
		}
	}

	rate := 0.0
	if totalItems > 0 {
		rate = float64(validItems) / float64(totalItems)
	}

	return models.BatchValidation{
		TotalItems:     totalItems,
		ValidItems:     validItems,
		InvalidItems:   totalItems - validItems,
		ValidationRate: rate,
		Errors:         allErrors,
	}
}
