package parser

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch-etl/internal/models"
)

func floatPtr(f float64) *float64 { return &f }

func validItem() models.NormalizedItem {
	return models.NormalizedItem{
		Name:        "Sony Playstation 5",
		PriceAmount: floatPtr(499.99),
		Currency:    strPtr("USD"),
		SourceURL:   strPtr("https://example.com/ps5"),
	}
}

func TestValidateProduct(t *testing.T) {
	v := NewValidator()

	result := v.ValidateProduct(validItem())
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidateProductCollectsAllErrors(t *testing.T) {
	v := NewValidator()

	item := models.NormalizedItem{
		Name:        "",
		PriceAmount: floatPtr(-5),
		Currency:    strPtr("XXX"),
		SourceURL:   strPtr("not a url"),
	}

	result := v.ValidateProduct(item)
	require.False(t, result.IsValid)
	assert.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors, "name: missing required field")
	assert.Contains(t, result.Errors, "price_amount: invalid price amount")
	assert.Contains(t, result.Errors, "currency: invalid currency code: XXX")
	assert.Contains(t, result.Errors, "source_url: invalid source URL format")
}

func TestValidateProductFieldRules(t *testing.T) {
	v := NewValidator()

	t.Run("missing price", func(t *testing.T) {
		item := validItem()
		item.PriceAmount = nil
		result := v.ValidateProduct(item)
		assert.False(t, result.IsValid)
		assert.Contains(t, result.Errors, "price_amount: missing required field")
	})

	t.Run("name too long", func(t *testing.T) {
		item := validItem()
		item.Name = strings.Repeat("x", 501)
		result := v.ValidateProduct(item)
		assert.False(t, result.IsValid)
	})

	t.Run("absent url is fine", func(t *testing.T) {
		item := validItem()
		item.SourceURL = nil
		result := v.ValidateProduct(item)
		assert.True(t, result.IsValid)
	})

	t.Run("lowercase currency accepted", func(t *testing.T) {
		item := validItem()
		item.Currency = strPtr("usd")
		result := v.ValidateProduct(item)
		assert.True(t, result.IsValid)
	})
}

func TestValidatePrice(t *testing.T) {
	v := NewValidator()

	assert.True(t, v.ValidatePrice(0.01))
	assert.True(t, v.ValidatePrice(999999))
	assert.False(t, v.ValidatePrice(0))
	assert.False(t, v.ValidatePrice(-1))
	assert.False(t, v.ValidatePrice(math.NaN()))
	assert.False(t, v.ValidatePrice(math.Inf(1)))
}

func TestValidateURL(t *testing.T) {
	v := NewValidator()

	assert.True(t, v.ValidateURL("https://example.com/product"))
	assert.True(t, v.ValidateURL("http://shop.example.com"))
	assert.False(t, v.ValidateURL("ftp://example.com"))
	assert.False(t, v.ValidateURL("example.com/product"))
	assert.False(t, v.ValidateURL("https://"))
}

func TestValidateBatch(t *testing.T) {
	v := NewValidator()

	bad := models.NormalizedItem{Name: "No Price"}
	items := []models.EnrichedItem{
		{NormalizedItem: validItem()},
		{NormalizedItem: bad},
		{NormalizedItem: validItem()},
	}

	batch := v.ValidateBatch(items)
	assert.Equal(t, 3, batch.TotalItems)
	assert.Equal(t, 2, batch.ValidItems)
	assert.Equal(t, 1, batch.InvalidItems)
	assert.Equal(t, batch.TotalItems, batch.ValidItems+batch.InvalidItems)
	assert.InDelta(t, 2.0/3.0, batch.ValidationRate, 0.001)

	require.NotEmpty(t, batch.Errors)
	for _, e := range batch.Errors {
		assert.True(t, strings.HasPrefix(e, "item 1: "), "unexpected error %q", e)
	}
}

func TestValidateBatchEmpty(t *testing.T) {
	v := NewValidator()

	batch := v.ValidateBatch(nil)
	assert.Equal(t, 0, batch.TotalItems)
	assert.Equal(t, 0.0, batch.ValidationRate)
	assert.Empty(t, batch.Errors)
}
