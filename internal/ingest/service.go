package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"pricewatch-etl/internal/etl"
	"pricewatch-etl/internal/models"
	"pricewatch-etl/internal/quality"
)

// ProviderSource yields the active provider configurations to ingest.
type ProviderSource interface {
	ActiveProviders(ctx context.Context) ([]models.ProviderConfig, error)
}

// StaticProviders is a fixed provider list satisfying ProviderSource.
type StaticProviders []models.ProviderConfig

func (p StaticProviders) ActiveProviders(context.Context) ([]models.ProviderConfig, error) {
	return p, nil
}

// Sampler supplies recent persisted items for ad-hoc quality checks.
type Sampler interface {
	RecentItems(ctx context.Context, limit int) ([]models.EnrichedItem, error)
}

const (
	defaultScheduleInterval = 60
	defaultMaxConcurrent    = 3
	qualitySampleSize       = 100
)

// Service is the top-level ingestion facade: it owns the metrics, the
// schedule configuration, and the per-provider orchestration on top of
// the ETL pipeline.
type Service struct {
	pipeline  *etl.Pipeline
	checker   *quality.Checker
	fetcher   etl.Fetcher
	providers ProviderSource
	sampler   Sampler
	metrics   *Metrics
	observer  RunObserver

	scheduleMu sync.Mutex
	schedule   models.ScheduleConfig

	logger *logrus.Logger
}

// RunObserver receives completed provider runs, for exporting to an
// external metrics system. Optional.
type RunObserver interface {
	ObserveRun(status string, records int, duration time.Duration)
}

func NewService(pipeline *etl.Pipeline, fetcher etl.Fetcher, providers ProviderSource, sampler Sampler, logger *logrus.Logger) *Service {
	return &Service{
		pipeline:  pipeline,
		checker:   quality.NewChecker(),
		fetcher:   fetcher,
		providers: providers,
		sampler:   sampler,
		metrics:   NewMetrics(),
		schedule: models.ScheduleConfig{
			IntervalMinutes:  defaultScheduleInterval,
			MaxConcurrent:    defaultMaxConcurrent,
			RetryFailed:      true,
			QualityThreshold: 0.8,
		},
		logger: logger,
	}
}

// SetRunObserver attaches an external observer for completed runs.
func (s *Service) SetRunObserver(observer RunObserver) {
	s.observer = observer
}

// ConfigureSchedule replaces the schedule configuration, applying
// defaults for unset values, and forwards the quality threshold to the
// pipeline's load gate.
func (s *Service) ConfigureSchedule(cfg models.ScheduleConfig) {
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = defaultScheduleInterval
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.QualityThreshold <= 0 {
		cfg.QualityThreshold = 0.8
	}

	s.scheduleMu.Lock()
	s.schedule = cfg
	s.scheduleMu.Unlock()

	s.pipeline.SetQualityThreshold(cfg.QualityThreshold)
}

func (s *Service) scheduleConfig() models.ScheduleConfig {
	s.scheduleMu.Lock()
	defer s.scheduleMu.Unlock()
	return s.schedule
}

// Metrics returns a point-in-time snapshot of the ingestion counters.
func (s *Service) Metrics() models.MetricsSnapshot {
	return s.metrics.Snapshot()
}

// IngestFromProvider runs one ETL pipeline for a provider and folds the
// outcome into the metrics. It always returns a result record; any
// error, expected or not, is captured at this boundary.
func (s *Service) IngestFromProvider(ctx context.Context, provider models.ProviderConfig) (result models.ProviderRunResult) {
	start := time.Now()
	providerName := provider.Name
	if providerName == "" {
		providerName = fmt.Sprintf("Provider %d", provider.ProviderID)
	}

	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("unexpected error: %v", r)
			s.metrics.RecordFailure(fmt.Sprintf("provider %s: %s", providerName, message))
			s.observeRun(models.StatusError, 0, time.Since(start))
			result = models.ProviderRunResult{
				Status:       models.StatusError,
				ProviderID:   provider.ProviderID,
				ProviderName: providerName,
				ErrorMessage: message,
			}
		}
	}()

	urls := make([]string, 0, len(provider.Products))
	for _, product := range provider.Products {
		urls = append(urls, product.URL)
	}

	sourceConfig := models.SourceConfig{
		Type:       models.SourceTypeWebScraper,
		Provider:   strings.ReplaceAll(strings.ToLower(providerName), " ", "_"),
		ProviderID: provider.ProviderID,
		URLs:       urls,
		Selectors:  provider.Selectors,
		RateLimit:  provider.RateLimit,
	}

	etlResult := s.pipeline.Run(ctx, sourceConfig)
	duration := time.Since(start)

	if etlResult.Status != models.StatusSuccess {
		message := etlResult.ErrorMessage
		if message == "" {
			message = "unknown ETL error"
		}
		s.metrics.RecordFailure(fmt.Sprintf("provider %s: %s", providerName, message))
		s.observeRun(models.StatusError, 0, duration)

		return models.ProviderRunResult{
			Status:       models.StatusError,
			ProviderID:   provider.ProviderID,
			ProviderName: providerName,
			ErrorMessage: message,
		}
	}

	processingTime := time.Duration(etlResult.ExecutionSeconds * float64(time.Second))
	s.metrics.RecordSuccess(etlResult.Created, processingTime)
	s.observeRun(models.StatusSuccess, etlResult.Created, duration)

	return models.ProviderRunResult{
		Status:           models.StatusSuccess,
		ProviderID:       provider.ProviderID,
		ProviderName:     providerName,
		RecordsExtracted: etlResult.RecordsExtracted,
		RecordsProcessed: etlResult.RecordsProcessed,
		RecordsCreated:   etlResult.Created,
		ProcessingTimeMS: processingTime.Milliseconds(),
	}
}

func (s *Service) observeRun(status string, records int, duration time.Duration) {
	if s.observer != nil {
		s.observer.ObserveRun(status, records, duration)
	}
}

// RunScheduledIngestion ingests every active provider concurrently
// under a semaphore sized by the schedule's max_concurrent. Individual
// provider failures become per-provider error entries; callers always
// receive a complete summary.
func (s *Service) RunScheduledIngestion(ctx context.Context) models.ScheduledRunSummary {
	providers, err := s.providers.ActiveProviders(ctx)
	if err != nil {
		return models.ScheduledRunSummary{
			Status:       models.StatusError,
			Timestamp:    time.Now(),
			ErrorMessage: fmt.Sprintf("fetching active providers: %v", err),
		}
	}

	maxConcurrent := int64(s.scheduleConfig().MaxConcurrent)
	sem := semaphore.NewWeighted(maxConcurrent)
	results := make([]models.ProviderRunResult, len(providers))
	var wg sync.WaitGroup

	for i, provider := range providers {
		wg.Add(1)
		go func(index int, provider models.ProviderConfig) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				results[index] = models.ProviderRunResult{
					Status:       models.StatusError,
					ProviderID:   provider.ProviderID,
					ProviderName: provider.Name,
					ErrorMessage: err.Error(),
				}
				return
			}
			defer sem.Release(1)

			results[index] = s.IngestFromProvider(ctx, provider)
		}(i, provider)
	}

	wg.Wait()

	summary := models.ScheduledRunSummary{
		Status:         models.StatusCompleted,
		Timestamp:      time.Now(),
		TotalProviders: len(providers),
		Results:        results,
	}
	for _, r := range results {
		if r.Status == models.StatusSuccess {
			summary.SuccessfulIngestions++
			summary.TotalRecordsCreated += r.RecordsCreated
		}
	}
	summary.FailedIngestions = summary.TotalProviders - summary.SuccessfulIngestions

	s.logger.WithFields(logrus.Fields{
		"providers":  summary.TotalProviders,
		"successful": summary.SuccessfulIngestions,
		"failed":     summary.FailedIngestions,
		"created":    summary.TotalRecordsCreated,
	}).Info("Scheduled ingestion completed")

	return summary
}

// ValidateProviderConfig checks a provider configuration and optionally
// probes the first product URL for connectivity. It never returns an
// error; problems arrive as data.
func (s *Service) ValidateProviderConfig(ctx context.Context, provider models.ProviderConfig, probeConnectivity bool) models.ProviderValidation {
	var errors, warnings []string

	if provider.ProviderID == 0 {
		errors = append(errors, "missing required field: provider_id")
	}
	if strings.TrimSpace(provider.Name) == "" {
		errors = append(errors, "missing required field: name")
	}

	if provider.Products == nil {
		errors = append(errors, "missing required field: products")
	} else if len(provider.Products) == 0 {
		errors = append(errors, "products must be a non-empty list")
	} else {
		for i, product := range provider.Products {
			if strings.TrimSpace(product.URL) == "" {
				errors = append(errors, fmt.Sprintf("product %d: missing URL", i))
			} else if !strings.HasPrefix(product.URL, "http") {
				errors = append(errors, fmt.Sprintf("product %d: invalid URL format", i))
			}
		}
	}

	if len(provider.Selectors) == 0 {
		warnings = append(warnings, "no selectors provided - will use default selectors")
	}

	validation := models.ProviderValidation{
		IsValid:  len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
	}

	if probeConnectivity {
		connectivity := s.testConnectivity(ctx, provider)
		validation.Connectivity = &connectivity
	}

	return validation
}

func (s *Service) testConnectivity(ctx context.Context, provider models.ProviderConfig) models.ConnectivityTest {
	if len(provider.Products) == 0 {
		return models.ConnectivityTest{
			Status:  models.StatusSkipped,
			Message: "no products available for connectivity test",
		}
	}
	if s.fetcher == nil {
		return models.ConnectivityTest{
			Status:  models.StatusSkipped,
			Message: "no fetcher configured for connectivity test",
		}
	}

	testURL := provider.Products[0].URL
	raw, err := s.fetcher.Fetch(ctx, testURL, provider.Selectors)
	if err != nil {
		return models.ConnectivityTest{
			Status:  models.StatusError,
			Message: fmt.Sprintf("failed to connect: %v", err),
			TestURL: testURL,
		}
	}

	return models.ConnectivityTest{
		Status:           models.StatusSuccess,
		Message:          "successfully connected to provider",
		TestURL:          testURL,
		ResponseReceived: !raw.IsEmpty(),
	}
}

// RunQualityCheck scores a sample of recently persisted data and
// returns the report keyed by provider.
func (s *Service) RunQualityCheck(ctx context.Context, providerID int) models.QualityCheckResult {
	if s.sampler == nil {
		return models.QualityCheckResult{
			ProviderID:   providerID,
			Status:       models.StatusError,
			ErrorMessage: "no data sampler configured",
		}
	}

	items, err := s.sampler.RecentItems(ctx, qualitySampleSize)
	if err != nil {
		return models.QualityCheckResult{
			ProviderID:   providerID,
			Status:       models.StatusError,
			ErrorMessage: fmt.Sprintf("sampling recent data: %v", err),
		}
	}

	records := make([]models.QualityRecord, 0, len(items))
	for _, item := range items {
		records = append(records, quality.RecordFromItem(item))
	}

	report := s.checker.GenerateReport(records)
	return models.QualityCheckResult{
		ProviderID: providerID,
		Status:     models.StatusSuccess,
		Report:     &report,
	}
}
