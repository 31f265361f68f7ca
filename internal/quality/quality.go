package quality

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"pricewatch-etl/internal/models"
)

// Thresholds used when scoring a batch. The defaults mirror the
// operational gates the issue list is generated from.
type Thresholds struct {
	Completeness  float64
	Accuracy      float64
	Consistency   float64
	DuplicateRate float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Completeness:  0.8,
		Accuracy:      0.9,
		Consistency:   0.85,
		DuplicateRate: 0.05,
	}
}

const (
	minAccuratePrice    = 0.01
	maxAccuratePrice    = 1_000_000.0
	minNameLength       = 3
	maxNameLength       = 500
	freshnessCutoffHr   = 24.0
	maxReportedOutliers = 10
)

// Currencies counted as accurate; a narrower list than validation's
// allow-list on purpose.
var accurateCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "CAD": {}, "AUD": {},
}

// Checker scores a whole batch of records for completeness, accuracy,
// consistency, duplication, freshness and price-distribution anomalies.
type Checker struct {
	thresholds Thresholds
	now        func() time.Time
}

func NewChecker() *Checker {
	return &Checker{thresholds: DefaultThresholds(), now: time.Now}
}

// RecordFromItem projects an enriched item into the shape the checker
// scores.
func RecordFromItem(item models.EnrichedItem) models.QualityRecord {
	record := models.QualityRecord{
		URL:       item.SourceURL,
		ScrapedAt: item.ScrapedAt,
	}
	if item.Name != "" {
		name := item.Name
		record.Name = &name
	}
	if item.PriceAmount != nil {
		record.Price = *item.PriceAmount
	}
	if item.IsAvailable != nil {
		record.Availability = *item.IsAvailable
	}
	if item.Currency != nil {
		record.Currency = *item.Currency
	}
	return record
}

// CheckCompleteness returns the fraction of item-by-required-field
// slots that are non-empty, over name, price and availability.
func (c *Checker) CheckCompleteness(batch []models.QualityRecord) float64 {
	if len(batch) == 0 {
		return 0.0
	}

	const requiredFields = 3
	totalFields := requiredFields * len(batch)
	completeFields := 0

	for _, record := range batch {
		if record.Name != nil && strings.TrimSpace(*record.Name) != "" {
			completeFields++
		}
		if fieldPresent(record.Price) {
			completeFields++
		}
		if fieldPresent(record.Availability) {
			completeFields++
		}
	}

	return float64(completeFields) / float64(totalFields)
}

func fieldPresent(value any) bool {
	if value == nil {
		return false
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// CheckAccuracy returns the fraction of items whose price, name length
// and currency all fall inside the accuracy bounds. Any violation marks
// the whole item inaccurate.
func (c *Checker) CheckAccuracy(batch []models.QualityRecord) float64 {
	if len(batch) == 0 {
		return 0.0
	}

	accurate := 0
	for _, record := range batch {
		if c.recordAccurate(record) {
			accurate++
		}
	}
	return float64(accurate) / float64(len(batch))
}

func (c *Checker) recordAccurate(record models.QualityRecord) bool {
	if record.Price != nil {
		price, ok := priceAsFloat(record.Price)
		if !ok || price < minAccuratePrice || price > maxAccuratePrice {
			return false
		}
	}

	if record.Name != nil && *record.Name != "" {
		n := len(*record.Name)
		if n < minNameLength || n > maxNameLength {
			return false
		}
	}

	switch currency := record.Currency.(type) {
	case nil:
	case string:
		if currency != "" {
			if _, valid := accurateCurrencies[currency]; !valid {
				return false
			}
		}
	default:
		return false
	}

	return true
}

func priceAsFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// CheckConsistency scores each of currency, price and availability by
// the number of distinct value kinds observed across the batch; a field
// with a single kind scores 1, one with two kinds 0.5, and so on. The
// overall score is the mean across fields that appeared at all.
func (c *Checker) CheckConsistency(batch []models.QualityRecord) float64 {
	if len(batch) == 0 {
		return 0.0
	}

	kinds := map[string]map[string]struct{}{}
	observe := func(field string, value any) {
		if value == nil {
			return
		}
		if s, ok := value.(string); ok && s == "" {
			return
		}
		if kinds[field] == nil {
			kinds[field] = map[string]struct{}{}
		}
		kinds[field][valueKind(value)] = struct{}{}
	}

	for _, record := range batch {
		observe("currency", record.Currency)
		observe("price", record.Price)
		observe("availability", record.Availability)
	}

	if len(kinds) == 0 {
		return 1.0
	}

	total := 0.0
	for _, set := range kinds {
		total += 1.0 / float64(len(set))
	}
	return total / float64(len(kinds))
}

func valueKind(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32:
		return "float"
	case int, int8, int16, int32, int64:
		return "int"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// DetectDuplicates groups items sharing a signature built from the
// lower-cased trimmed name and the raw URL. Groups are reported with
// their original batch indices, in first-occurrence order.
func (c *Checker) DetectDuplicates(batch []models.QualityRecord) []models.DuplicateGroup {
	signatures := make([]string, len(batch))
	for i, record := range batch {
		var parts []string
		if record.Name != nil && *record.Name != "" {
			parts = append(parts, strings.ToLower(strings.TrimSpace(*record.Name)))
		}
		if record.URL != nil && *record.URL != "" {
			parts = append(parts, *record.URL)
		}
		signatures[i] = strings.Join(parts, "|")
	}

	counts := map[string]int{}
	for _, sig := range signatures {
		counts[sig]++
	}

	var groups []models.DuplicateGroup
	seen := map[string]struct{}{}
	for i, sig := range signatures {
		if counts[sig] <= 1 {
			continue
		}
		if _, done := seen[sig]; done {
			continue
		}
		seen[sig] = struct{}{}

		var indices []int
		for j := i; j < len(signatures); j++ {
			if signatures[j] == sig {
				indices = append(indices, j)
			}
		}
		groups = append(groups, models.DuplicateGroup{
			Signature: sig,
			Count:     counts[sig],
			Indices:   indices,
		})
	}
	return groups
}

// CheckFreshness classifies each record as fresh (scraped within the
// last 24 hours) or stale. Missing or unparsable timestamps count as
// stale.
func (c *Checker) CheckFreshness(batch []models.QualityRecord) models.FreshnessReport {
	if len(batch) == 0 {
		return models.FreshnessReport{}
	}

	now := c.now()
	fresh, stale := 0, 0
	var ages []float64

	for _, record := range batch {
		if record.ScrapedAt == nil || *record.ScrapedAt == "" {
			stale++
			continue
		}
		scrapedAt, err := parseTimestamp(*record.ScrapedAt)
		if err != nil {
			stale++
			continue
		}
		age := now.Sub(scrapedAt).Hours()
		ages = append(ages, age)
		if age <= freshnessCutoffHr {
			fresh++
		} else {
			stale++
		}
	}

	report := models.FreshnessReport{
		FreshRecords:   fresh,
		StaleRecords:   stale,
		TotalRecords:   len(batch),
		FreshnessScore: float64(fresh) / float64(len(batch)),
	}
	if len(ages) > 0 {
		sum, oldest := 0.0, ages[0]
		for _, a := range ages {
			sum += a
			if a > oldest {
				oldest = a
			}
		}
		mean := sum / float64(len(ages))
		report.AverageAgeHours = &mean
		report.OldestRecordHours = &oldest
	}
	return report
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// AnalyzePriceDistribution computes min/max/mean/median and positional
// quartiles over the strictly positive prices, and flags values outside
// [Q1 - 1.5*IQR, Q3 + 1.5*IQR] as outliers. Returns nil when the batch
// carries no usable price.
func (c *Checker) AnalyzePriceDistribution(batch []models.QualityRecord) *models.PriceDistribution {
	var prices []float64
	for _, record := range batch {
		if record.Price == nil {
			continue
		}
		if price, ok := priceAsFloat(record.Price); ok && price > 0 {
			prices = append(prices, price)
		}
	}
	if len(prices) == 0 {
		return nil
	}

	sort.Float64s(prices)
	n := len(prices)

	sum := 0.0
	for _, p := range prices {
		sum += p
	}

	var median float64
	if n%2 == 0 {
		median = (prices[n/2-1] + prices[n/2]) / 2
	} else {
		median = prices[n/2]
	}

	// Quartiles by simple positional indexing; no interpolation.
	q1 := prices[n/4]
	q3 := prices[3*n/4]
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	var outliers []float64
	for _, p := range prices {
		if p < lower || p > upper {
			outliers = append(outliers, p)
		}
	}

	reported := outliers
	if len(reported) > maxReportedOutliers {
		reported = reported[:maxReportedOutliers]
	}

	return &models.PriceDistribution{
		TotalPrices:       n,
		MinPrice:          prices[0],
		MaxPrice:          prices[n-1],
		AveragePrice:      sum / float64(n),
		MedianPrice:       median,
		Q1:                q1,
		Q3:                q3,
		IQR:               iqr,
		OutliersCount:     len(outliers),
		Outliers:          reported,
		OutlierPercentage: float64(len(outliers)) / float64(n) * 100,
	}
}

// GenerateReport runs every quality check over a batch. An empty batch
// yields an explicit no-data report rather than failing.
func (c *Checker) GenerateReport(batch []models.QualityRecord) models.QualityReport {
	if len(batch) == 0 {
		return models.QualityReport{
			Error:       "no data provided for quality analysis",
			Grade:       "F",
			GeneratedAt: c.now(),
		}
	}

	completeness := c.CheckCompleteness(batch)
	accuracy := c.CheckAccuracy(batch)
	consistency := c.CheckConsistency(batch)
	duplicates := c.DetectDuplicates(batch)
	freshness := c.CheckFreshness(batch)
	priceAnalysis := c.AnalyzePriceDistribution(batch)

	overall := (completeness + accuracy + consistency) / 3
	duplicateRate := float64(len(duplicates)) / float64(len(batch))

	var issues []string
	if completeness < c.thresholds.Completeness {
		issues = append(issues, fmt.Sprintf("Low completeness: %.2f%% (threshold: %.2f%%)",
			completeness*100, c.thresholds.Completeness*100))
	}
	if accuracy < c.thresholds.Accuracy {
		issues = append(issues, fmt.Sprintf("Low accuracy: %.2f%% (threshold: %.2f%%)",
			accuracy*100, c.thresholds.Accuracy*100))
	}
	if consistency < c.thresholds.Consistency {
		issues = append(issues, fmt.Sprintf("Low consistency: %.2f%% (threshold: %.2f%%)",
			consistency*100, c.thresholds.Consistency*100))
	}
	if duplicateRate > c.thresholds.DuplicateRate {
		issues = append(issues, fmt.Sprintf("High duplicate rate: %.2f%% (threshold: %.2f%%)",
			duplicateRate*100, c.thresholds.DuplicateRate*100))
	}

	return models.QualityReport{
		TotalRecords:        len(batch),
		CompletenessScore:   completeness,
		AccuracyScore:       accuracy,
		ConsistencyScore:    consistency,
		OverallScore:        overall,
		DuplicateCount:      len(duplicates),
		DuplicatePercentage: duplicateRate,
		Duplicates:          duplicates,
		Freshness:           freshness,
		PriceAnalysis:       priceAnalysis,
		Issues:              issues,
		Grade:               qualityGrade(overall),
		Recommendations:     c.recommendations(completeness, accuracy, consistency, len(duplicates)),
		GeneratedAt:         c.now(),
	}
}

func qualityGrade(score float64) string {
	switch {
	case score >= 0.95:
		return "A+"
	case score >= 0.90:
		return "A"
	case score >= 0.85:
		return "B+"
	case score >= 0.80:
		return "B"
	case score >= 0.75:
		return "C+"
	case score >= 0.70:
		return "C"
	case score >= 0.60:
		return "D"
	default:
		return "F"
	}
}

func (c *Checker) recommendations(completeness, accuracy, consistency float64, duplicateGroups int) []string {
	var recommendations []string

	if completeness < c.thresholds.Completeness {
		recommendations = append(recommendations,
			"Improve data collection to ensure all required fields are populated")
	}
	if accuracy < c.thresholds.Accuracy {
		recommendations = append(recommendations,
			"Review data validation rules and improve parsing accuracy")
	}
	if consistency < c.thresholds.Consistency {
		recommendations = append(recommendations,
			"Standardize data formats and implement consistent validation")
	}
	if duplicateGroups > 0 {
		recommendations = append(recommendations,
			"Implement deduplication logic to remove duplicate records")
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations,
			"Data quality is good. Continue monitoring for consistency")
	}
	return recommendations
}
