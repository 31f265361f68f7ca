package models

import (
	"time"
)

// RawItem is the field map a Fetcher extracts from one product page.
// Every field is optional: a nil pointer means the selector matched
// nothing, which is different from an empty string.
type RawItem struct {
	Title        *string `json:"title,omitempty"`
	Price        *string `json:"price,omitempty"`
	Availability *string `json:"availability,omitempty"`
	Description  *string `json:"description,omitempty"`
	Brand        *string `json:"brand,omitempty"`
	Model        *string `json:"model,omitempty"`
	SKU          *string `json:"sku,omitempty"`
	Category     *string `json:"category,omitempty"`
	URL          *string `json:"url,omitempty"`
	ScrapedAt    *string `json:"scraped_at,omitempty"`
}

// SetField assigns a raw value by its selector field name. Unknown field
// names are ignored so provider selector maps can carry extra entries.
func (r *RawItem) SetField(name, value string) {
	switch name {
	case "title":
		r.Title = &value
	case "price":
		r.Price = &value
	case "availability":
		r.Availability = &value
	case "description":
		r.Description = &value
	case "brand":
		r.Brand = &value
	case "model":
		r.Model = &value
	case "sku":
		r.SKU = &value
	case "category":
		r.Category = &value
	case "url":
		r.URL = &value
	case "scraped_at":
		r.ScrapedAt = &value
	}
}

// IsEmpty reports whether no field at all was extracted.
func (r RawItem) IsEmpty() bool {
	return r.Title == nil && r.Price == nil && r.Availability == nil &&
		r.Description == nil && r.Brand == nil && r.Model == nil &&
		r.SKU == nil && r.Category == nil && r.URL == nil && r.ScrapedAt == nil
}

// ParsedPrice is the result of extracting a price from free text.
type ParsedPrice struct {
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	OriginalText string  `json:"original_text"`
}

// NormalizedItem is the parser's output. If PriceAmount is set, Currency
// is set too. Immutable once returned.
type NormalizedItem struct {
	Name              string   `json:"name"`
	PriceAmount       *float64 `json:"price_amount,omitempty"`
	Currency          *string  `json:"currency,omitempty"`
	OriginalPriceText *string  `json:"original_price_text,omitempty"`
	IsAvailable       *bool    `json:"is_available,omitempty"`
	Description       *string  `json:"description,omitempty"`
	Brand             *string  `json:"brand,omitempty"`
	Model             *string  `json:"model,omitempty"`
	SKU               *string  `json:"sku,omitempty"`
	Category          *string  `json:"category,omitempty"`
	ScrapedAt         *string  `json:"scraped_at,omitempty"`
	SourceURL         *string  `json:"source_url,omitempty"`
}

// EnrichedItem is a NormalizedItem plus derived fields. Enrichment fills
// Brand and Category on the embedded item only when the source left them
// absent.
type EnrichedItem struct {
	NormalizedItem
	Slug       string  `json:"slug"`
	PriceRange *string `json:"price_range,omitempty"`
}

// ValidationResult holds the outcome of validating one item.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// BatchValidation summarizes validation across a batch. Individual item
// errors are carried in Errors prefixed with their batch index.
type BatchValidation struct {
	TotalItems     int      `json:"total_items"`
	ValidItems     int      `json:"valid_items"`
	InvalidItems   int      `json:"invalid_items"`
	ValidationRate float64  `json:"validation_rate"`
	Errors         []string `json:"errors"`
}

// QualityRecord is the shape the quality checker scores. Price,
/// Availability and Currency stay loosely typed on purpose: the
// consistency dimension is defined over the distinct value kinds
// observed across a batch, which can mix upstream shapes.
type QualityRecord struct {
	Name         *string `json:"name,omitempty"`
	Price        any     `json:"price,omitempty"`
	Availability any     `json:"availability,omitempty"`
	Currency     any     `json:"currency,omitempty"`
	URL          *string `json:"url,omitempty"`
	ScrapedAt    *string `json:"scraped_at,omitempty"`
}

// DuplicateGroup lists the batch positions sharing one signature.
type DuplicateGroup struct {
	Signature string `json:"signature"`
	Count     int    `json:"count"`
	Indices   []int  `json:"indices"`
}

// FreshnessReport breaks a batch into fresh and stale records.
type FreshnessReport struct {
	FreshRecords      int      `json:"fresh_records"`
	StaleRecords      int      `json:"stale_records"`
	TotalRecords      int      `json:"total_records"`
	FreshnessScore    float64  `json:"freshness_score"`
	AverageAgeHours   *float64 `json:"average_age_hours,omitempty"`
	OldestRecordHours *float64 `json:"oldest_record_hours,omitempty"`
}

// PriceDistribution summarizes the positive prices in a batch.
type PriceDistribution struct {
	TotalPrices       int       `json:"total_prices"`
	MinPrice          float64   `json:"min_price"`
	MaxPrice          float64   `json:"max_price"`
	AveragePrice      float64   `json:"average_price"`
	MedianPrice       float64   `json:"median_price"`
	Q1                float64   `json:"q1"`
	Q3                float64   `json:"q3"`
	IQR               float64   `json:"iqr"`
	OutliersCount     int       `json:"outliers_count"`
	Outliers          []float64 `json:"outliers"`
	OutlierPercentage float64   `json:"outlier_percentage"`
}

// QualityReport is the batch-level quality aggregate.
type QualityReport struct {
	TotalRecords        int                `json:"total_records"`
	CompletenessScore   float64            `json:"completeness_score"`
	AccuracyScore       float64            `json:"accuracy_score"`
	ConsistencyScore    float64            `json:"consistency_score"`
	OverallScore        float64            `json:"overall_quality_score"`
	DuplicateCount      int                `json:"duplicate_count"`
	DuplicatePercentage float64            `json:"duplicate_percentage"`
	Duplicates          []DuplicateGroup   `json:"duplicates,omitempty"`
	Freshness           FreshnessReport    `json:"freshness_analysis"`
	PriceAnalysis       *PriceDistribution `json:"price_analysis,omitempty"`
	Issues              []string           `json:"issues"`
	Grade               string             `json:"quality_grade"`
	Recommendations     []string           `json:"recommendations"`
	GeneratedAt         time.Time          `json:"generated_at"`
	Error               string             `json:"error,omitempty"`
}

// ProductTarget is one URL a provider wants scraped.
type ProductTarget struct {
	URL      string `json:"url"`
	Category string `json:"category,omitempty"`
}

// ProviderConfig describes one external data source.
type ProviderConfig struct {
	ProviderID    int               `json:"provider_id"`
	Name          string            `json:"name"`
	Products      []ProductTarget   `json:"products"`
	Selectors     map[string]string `json:"selectors,omitempty"`
	RateLimit     int               `json:"rate_limit,omitempty"`
	MaxConcurrent int               `json:"max_concurrent,omitempty"`
}

// SourceConfig is the ETL pipeline's extraction input.
type SourceConfig struct {
	Type       string            `json:"type"`
	Provider   string            `json:"provider,omitempty"`
	ProviderID int               `json:"provider_id,omitempty"`
	URLs       []string          `json:"urls,omitempty"`
	Selectors  map[string]string `json:"selectors,omitempty"`
	RateLimit  int               `json:"rate_limit,omitempty"`
}

// Source types understood by the pipeline's extract stage.
const (
	SourceTypeWebScraper = "web_scraper"
	SourceTypeAPI        = "api"
	SourceTypeFile       = "file"
)

// Run statuses shared by pipeline and ingestion results.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
)

// StoreResult is what a product store reports for one batch save.
type StoreResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// LoadResult is the pipeline load stage outcome.
type LoadResult struct {
	Created        int `json:"created"`
	Updated        int `json:"updated"`
	Errors         int `json:"errors"`
	TotalProcessed int `json:"total_processed"`
}

// PipelineResult is one ETL run's summary. Run never raises past its
// boundary; failures arrive here as ErrorStage and ErrorMessage.
type PipelineResult struct {
	RunID            string  `json:"run_id"`
	Status           string  `json:"status"`
	ExecutionSeconds float64 `json:"execution_time_seconds"`
	RecordsExtracted int     `json:"records_extracted"`
	RecordsProcessed int     `json:"records_processed"`
	Created          int     `json:"created"`
	Updated          int     `json:"updated"`
	Errors           int     `json:"errors"`
	ErrorStage       string  `json:"error_stage,omitempty"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	SourceIndex      int     `json:"source_index,omitempty"`
}

// ChunkResult is one page of a chunked large-dataset run.
type ChunkResult struct {
	BatchIndex       int    `json:"batch_index"`
	RecordsInBatch   int    `json:"records_in_batch"`
	RecordsProcessed int    `json:"records_processed"`
	Created          int    `json:"created"`
	Errors           int    `json:"errors"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

// LargeDatasetResult aggregates a chunked run.
type LargeDatasetResult struct {
	Status           string        `json:"status"`
	TotalRecords     int           `json:"total_records"`
	TotalProcessed   int           `json:"total_processed"`
	TotalCreated     int           `json:"total_created"`
	TotalErrors      int           `json:"total_errors"`
	BatchesProcessed int           `json:"batches_processed"`
	BatchResults     []ChunkResult `json:"batch_results"`
	ErrorMessage     string        `json:"error_message,omitempty"`
}

// ProviderRunResult is the outcome of ingesting one provider.
type ProviderRunResult struct {
	Status           string `json:"status"`
	ProviderID       int    `json:"provider_id"`
	ProviderName     string `json:"provider_name"`
	RecordsExtracted int    `json:"records_extracted"`
	RecordsProcessed int    `json:"records_processed"`
	RecordsCreated   int    `json:"records_created"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

// ScheduledRunSummary aggregates one scheduled ingestion over all
// active providers.
type ScheduledRunSummary struct {
	Status               string              `json:"status"`
	Timestamp            time.Time           `json:"timestamp"`
	TotalProviders       int                 `json:"total_providers"`
	SuccessfulIngestions int                 `json:"successful_ingestions"`
	FailedIngestions     int                 `json:"failed_ingestions"`
	TotalRecordsCreated  int                 `json:"total_records_created"`
	Results              []ProviderRunResult `json:"results"`
	ErrorMessage         string              `json:"error_message,omitempty"`
}

// ConnectivityTest reports the optional live probe run during provider
// validation.
type ConnectivityTest struct {
	Status           string `json:"status"`
	Message          string `json:"message"`
	TestURL          string `json:"test_url,omitempty"`
	ResponseReceived bool   `json:"response_received,omitempty"`
}

// ProviderValidation is the result of checking a provider config. It is
// always returned as data, never as an error.
type ProviderValidation struct {
	IsValid      bool              `json:"is_valid"`
	Errors       []string          `json:"errors"`
	Warnings     []string          `json:"warnings"`
	Connectivity *ConnectivityTest `json:"connectivity_test,omitempty"`
}

// IngestionError is one entry in the bounded recent-error log.
type IngestionError struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"error"`
}

// MetricsSnapshot is a point-in-time view of the ingestion counters.
type MetricsSnapshot struct {
	TotalIngestions       int              `json:"total_ingestions"`
	SuccessfulIngestions  int              `json:"successful_ingestions"`
	FailedIngestions      int              `json:"failed_ingestions"`
	SuccessRate           float64          `json:"success_rate"`
	TotalRecordsProcessed int              `json:"total_records_processed"`
	AverageProcessingMS   float64          `json:"average_processing_time_ms"`
	UptimeSeconds         float64          `json:"uptime_seconds"`
	RecordsPerSecond      float64          `json:"records_per_second"`
	RecentErrors          []IngestionError `json:"recent_errors"`
}

// ScheduleConfig controls scheduled ingestion.
type ScheduleConfig struct {
	IntervalMinutes  int     `json:"interval_minutes"`
	Providers        []int   `json:"providers,omitempty"`
	MaxConcurrent    int     `json:"max_concurrent"`
	RetryFailed      bool    `json:"retry_failed"`
	QualityThreshold float64 `json:"quality_threshold"`
}

// QualityCheckResult wraps a quality report for one provider.
type QualityCheckResult struct {
	ProviderID   int            `json:"provider_id"`
	Status       string         `json:"status"`
	Report       *QualityReport `json:"quality_report,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}
