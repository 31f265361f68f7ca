package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch-etl/internal/etl"
	"pricewatch-etl/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func strPtr(s string) *string { return &s }

type fakeFetcher struct {
	pages map[string]models.RawItem
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, _ map[string]string) (models.RawItem, error) {
	item, ok := f.pages[url]
	if !ok {
		return models.RawItem{}, fmt.Errorf("fetching %s: connection refused", url)
	}
	item.URL = &url
	return item, nil
}

type fakeStore struct {
	mu    sync.Mutex
	saved []models.EnrichedItem
}

func (s *fakeStore) SaveBatch(_ context.Context, items []models.EnrichedItem) (models.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, items...)
	return models.StoreResult{Created: len(items)}, nil
}

type fakeSampler struct {
	items []models.EnrichedItem
	err   error
}

func (s *fakeSampler) RecentItems(context.Context, int) ([]models.EnrichedItem, error) {
	return s.items, s.err
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []string
	records  int
}

func (o *recordingObserver) ObserveRun(status string, records int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
	o.records += records
}

func rawProduct(title, price string) models.RawItem {
	return models.RawItem{
		Title:        strPtr(title),
		Price:        strPtr(price),
		Availability: strPtr("In Stock"),
		ScrapedAt:    strPtr("2025-06-15T10:00:00Z"),
	}
}

func goodProvider() models.ProviderConfig {
	return models.ProviderConfig{
		ProviderID: 1,
		Name:       "Shop A",
		Products: []models.ProductTarget{
			{URL: "https://shop-a.example.com/1"},
			{URL: "https://shop-a.example.com/2"},
			{URL: "https://shop-a.example.com/3"},
		},
		Selectors: map[string]string{"title": "h1"},
	}
}

func badProvider() models.ProviderConfig {
	return models.ProviderConfig{
		ProviderID: 2,
		Name:       "Shop B",
		Products:   []models.ProductTarget{{URL: "https://shop-b.example.com/1"}},
	}
}

func newTestService(providers ProviderSource, sampler Sampler) (*Service, *fakeStore) {
	fetcher := &fakeFetcher{pages: map[string]models.RawItem{
		"https://shop-a.example.com/1": rawProduct("sony playstation 5", "$499.99"),
		"https://shop-a.example.com/2": rawProduct("apple iphone 14", "$799.00"),
		"https://shop-a.example.com/3": rawProduct("samsung galaxy s23", "$699.00"),
	}}
	store := &fakeStore{}
	pipeline := etl.NewPipeline(fetcher, store, testLogger())
	return NewService(pipeline, fetcher, providers, sampler, testLogger()), store
}

func TestIngestFromProvider(t *testing.T) {
	service, store := newTestService(nil, nil)

	result := service.IngestFromProvider(context.Background(), goodProvider())

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 1, result.ProviderID)
	assert.Equal(t, "Shop A", result.ProviderName)
	assert.Equal(t, 3, result.RecordsExtracted)
	assert.Equal(t, 3, result.RecordsCreated)
	assert.Len(t, store.saved, 3)

	snapshot := service.Metrics()
	assert.Equal(t, 1, snapshot.TotalIngestions)
	assert.Equal(t, 1, snapshot.SuccessfulIngestions)
	assert.Equal(t, 3, snapshot.TotalRecordsProcessed)
}

func TestIngestFromProviderFailure(t *testing.T) {
	service, _ := newTestService(nil, nil)

	// All of shop B's pages fail to fetch, so the run dies at the load
	// gate with an empty batch.
	result := service.IngestFromProvider(context.Background(), badProvider())

	assert.Equal(t, models.StatusError, result.Status)
	assert.Equal(t, "Shop B", result.ProviderName)
	assert.NotEmpty(t, result.ErrorMessage)

	snapshot := service.Metrics()
	assert.Equal(t, 1, snapshot.FailedIngestions)
	require.Len(t, snapshot.RecentErrors, 1)
	assert.Contains(t, snapshot.RecentErrors[0].Message, "Shop B")
}

func TestIngestFromProviderNamesFallback(t *testing.T) {
	service, _ := newTestService(nil, nil)

	result := service.IngestFromProvider(context.Background(), models.ProviderConfig{ProviderID: 7})
	assert.Equal(t, "Provider 7", result.ProviderName)
}

func TestRunScheduledIngestion(t *testing.T) {
	providers := StaticProviders{goodProvider(), badProvider()}
	service, _ := newTestService(providers, nil)

	observer := &recordingObserver{}
	service.SetRunObserver(observer)

	summary := service.RunScheduledIngestion(context.Background())

	assert.Equal(t, models.StatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.TotalProviders)
	assert.Equal(t, 1, summary.SuccessfulIngestions)
	assert.Equal(t, 1, summary.FailedIngestions)
	assert.Equal(t, 3, summary.TotalRecordsCreated)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, 1, summary.Results[0].ProviderID)
	assert.Equal(t, 2, summary.Results[1].ProviderID)

	assert.ElementsMatch(t, []string{models.StatusSuccess, models.StatusError}, observer.statuses)
	assert.Equal(t, 3, observer.records)
}

type failingProviders struct{}

func (failingProviders) ActiveProviders(context.Context) ([]models.ProviderConfig, error) {
	return nil, errors.New("provider registry offline")
}

func TestRunScheduledIngestionProviderSourceFailure(t *testing.T) {
	service, _ := newTestService(failingProviders{}, nil)

	summary := service.RunScheduledIngestion(context.Background())
	assert.Equal(t, models.StatusError, summary.Status)
	assert.Contains(t, summary.ErrorMessage, "provider registry offline")
}

func TestValidateProviderConfig(t *testing.T) {
	service, _ := newTestService(nil, nil)
	ctx := context.Background()

	t.Run("valid provider", func(t *testing.T) {
		validation := service.ValidateProviderConfig(ctx, goodProvider(), false)
		assert.True(t, validation.IsValid)
		assert.Empty(t, validation.Errors)
		assert.Empty(t, validation.Warnings)
	})

	t.Run("missing fields", func(t *testing.T) {
		validation := service.ValidateProviderConfig(ctx, models.ProviderConfig{}, false)
		assert.False(t, validation.IsValid)
		assert.Contains(t, validation.Errors, "missing required field: provider_id")
		assert.Contains(t, validation.Errors, "missing required field: name")
		assert.Contains(t, validation.Errors, "missing required field: products")
	})

	t.Run("empty products list", func(t *testing.T) {
		provider := goodProvider()
		provider.Products = []models.ProductTarget{}
		validation := service.ValidateProviderConfig(ctx, provider, false)
		assert.False(t, validation.IsValid)
		assert.Contains(t, validation.Errors, "products must be a non-empty list")
	})

	t.Run("bad product urls", func(t *testing.T) {
		provider := goodProvider()
		provider.Products = []models.ProductTarget{
			{URL: ""},
			{URL: "ftp://example.com"},
		}
		validation := service.ValidateProviderConfig(ctx, provider, false)
		assert.False(t, validation.IsValid)
		assert.Contains(t, validation.Errors, "product 0: missing URL")
		assert.Contains(t, validation.Errors, "product 1: invalid URL format")
	})

	t.Run("no selectors warns", func(t *testing.T) {
		provider := goodProvider()
		provider.Selectors = nil
		validation := service.ValidateProviderConfig(ctx, provider, false)
		assert.True(t, validation.IsValid)
		assert.Contains(t, validation.Warnings, "no selectors provided - will use default selectors")
	})

	t.Run("connectivity probe", func(t *testing.T) {
		validation := service.ValidateProviderConfig(ctx, goodProvider(), true)
		require.NotNil(t, validation.Connectivity)
		assert.Equal(t, models.StatusSuccess, validation.Connectivity.Status)
		assert.True(t, validation.Connectivity.ResponseReceived)
		assert.Equal(t, "https://shop-a.example.com/1", validation.Connectivity.TestURL)
	})

	t.Run("connectivity probe failure", func(t *testing.T) {
		validation := service.ValidateProviderConfig(ctx, badProvider(), true)
		require.NotNil(t, validation.Connectivity)
		assert.Equal(t, models.StatusError, validation.Connectivity.Status)
		assert.Contains(t, validation.Connectivity.Message, "failed to connect")
	})
}

func TestRunQualityCheck(t *testing.T) {
	price := 499.99
	available := true
	sampler := &fakeSampler{items: []models.EnrichedItem{
		{NormalizedItem: models.NormalizedItem{
			Name:        "Sony Playstation 5",
			PriceAmount: &price,
			Currency:    strPtr("USD"),
			IsAvailable: &available,
		}},
	}}
	service, _ := newTestService(nil, sampler)

	result := service.RunQualityCheck(context.Background(), 1)
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 1, result.ProviderID)
	require.NotNil(t, result.Report)
	assert.Equal(t, 1, result.Report.TotalRecords)
	assert.Empty(t, result.Report.Error)
}

func TestRunQualityCheckSamplerFailure(t *testing.T) {
	sampler := &fakeSampler{err: errors.New("database offline")}
	service, _ := newTestService(nil, sampler)

	result := service.RunQualityCheck(context.Background(), 1)
	assert.Equal(t, models.StatusError, result.Status)
	assert.Contains(t, result.ErrorMessage, "database offline")
}

func TestRunQualityCheckNoSampler(t *testing.T) {
	service, _ := newTestService(nil, nil)

	result := service.RunQualityCheck(context.Background(), 1)
	assert.Equal(t, models.StatusError, result.Status)
	assert.Contains(t, result.ErrorMessage, "no data sampler configured")
}

func TestConfigureScheduleDefaults(t *testing.T) {
	service, _ := newTestService(nil, nil)

	service.ConfigureSchedule(models.ScheduleConfig{})
	cfg := service.scheduleConfig()
	assert.Equal(t, 60, cfg.IntervalMinutes)
	assert.Equal(t, 3, cfg.MaxConcurrent)
	assert.Equal(t, 0.8, cfg.QualityThreshold)

	service.ConfigureSchedule(models.ScheduleConfig{
		IntervalMinutes:  15,
		MaxConcurrent:    5,
		QualityThreshold: 0.6,
	})
	cfg = service.scheduleConfig()
	assert.Equal(t, 15, cfg.IntervalMinutes)
	assert.Equal(t, 5, cfg.MaxConcurrent)
	assert.Equal(t, 0.6, cfg.QualityThreshold)
}
