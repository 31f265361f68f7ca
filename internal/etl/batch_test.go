package etl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch-etl/internal/models"
)

func TestProcessMultipleSources(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]models.RawItem{
		"https://example.com/a": rawProduct("sony playstation 5", "$499.99"),
		"https://example.com/b": rawProduct("apple iphone 14", "$799.00"),
	}}
	store := &fakeStore{}
	p := NewPipeline(fetcher, store, testLogger())
	b := NewBatchProcessor(p, 2, 100, testLogger())

	configs := []models.SourceConfig{
		scraperConfig("https://example.com/a"),
		{Type: "carrier_pigeon"},
		scraperConfig("https://example.com/b"),
	}

	results := b.ProcessMultipleSources(context.Background(), configs)
	require.Len(t, results, 3)

	// Results line up with the input order regardless of completion order.
	for i, result := range results {
		assert.Equal(t, i, result.SourceIndex)
	}
	assert.Equal(t, models.StatusSuccess, results[0].Status)
	assert.Equal(t, models.StatusError, results[1].Status)
	assert.Equal(t, "extract", results[1].ErrorStage)
	assert.Equal(t, models.StatusSuccess, results[2].Status)
	assert.Equal(t, 2, store.savedCount())
}

func TestProcessMultipleSourcesPanicIsolation(t *testing.T) {
	fetcher := &fakeFetcher{panics: true}
	p := NewPipeline(fetcher, &fakeStore{}, testLogger())
	b := NewBatchProcessor(p, 3, 100, testLogger())

	configs := []models.SourceConfig{
		scraperConfig("https://example.com/a"),
		scraperConfig("https://example.com/b"),
	}

	results := b.ProcessMultipleSources(context.Background(), configs)
	require.Len(t, results, 2)
	for i, result := range results {
		assert.Equal(t, models.StatusError, result.Status)
		assert.Equal(t, i, result.SourceIndex)
		assert.Contains(t, result.ErrorMessage, "panic in pipeline run")
	}
}

func TestProcessLargeDataset(t *testing.T) {
	pages := map[string]models.RawItem{}
	var urls []string
	for i := 0; i < 5; i++ {
		url := string(rune('a'+i)) + ".example.com"
		url = "https://" + url
		pages[url] = rawProduct("sony playstation 5", "$499.99")
		urls = append(urls, url)
	}

	store := &fakeStore{}
	p := NewPipeline(&fakeFetcher{pages: pages}, store, testLogger())
	b := NewBatchProcessor(p, 2, 2, testLogger())

	result := b.ProcessLargeDataset(context.Background(), scraperConfig(urls...))

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 5, result.TotalRecords)
	assert.Equal(t, 5, result.TotalProcessed)
	assert.Equal(t, 5, result.TotalCreated)
	assert.Equal(t, 0, result.TotalErrors)
	assert.Equal(t, 3, result.BatchesProcessed)

	require.Len(t, result.BatchResults, 3)
	assert.Equal(t, []int{2, 2, 1}, []int{
		result.BatchResults[0].RecordsInBatch,
		result.BatchResults[1].RecordsInBatch,
		result.BatchResults[2].RecordsInBatch,
	})
	for i, chunk := range result.BatchResults {
		assert.Equal(t, i, chunk.BatchIndex)
	}
}

func TestProcessLargeDatasetFailedChunkContinues(t *testing.T) {
	// Middle chunk is all junk, so its load gate fails; the chunks around
	// it still run to completion.
	pages := map[string]models.RawItem{
		"https://example.com/1": rawProduct("sony playstation 5", "$499.99"),
		"https://example.com/2": rawProduct("apple iphone 14", "$799.00"),
		"https://example.com/3": rawJunk(),
		"https://example.com/4": rawJunk(),
		"https://example.com/5": rawProduct("samsung galaxy s23", "$699.00"),
	}
	urls := []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
		"https://example.com/4",
		"https://example.com/5",
	}

	store := &fakeStore{}
	p := NewPipeline(&fakeFetcher{pages: pages}, store, testLogger())
	b := NewBatchProcessor(p, 2, 2, testLogger())

	result := b.ProcessLargeDataset(context.Background(), scraperConfig(urls...))

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 3, result.TotalCreated)
	assert.Equal(t, 2, result.TotalErrors)
	require.Len(t, result.BatchResults, 3)
	assert.Empty(t, result.BatchResults[0].ErrorMessage)
	assert.Contains(t, result.BatchResults[1].ErrorMessage, "data quality too low")
	assert.Empty(t, result.BatchResults[2].ErrorMessage)
}

func TestProcessLargeDatasetExtractFailure(t *testing.T) {
	p := NewPipeline(&fakeFetcher{}, &fakeStore{}, testLogger())
	b := NewBatchProcessor(p, 2, 2, testLogger())

	result := b.ProcessLargeDataset(context.Background(), models.SourceConfig{Type: "carrier_pigeon"})

	assert.Equal(t, models.StatusError, result.Status)
	assert.Contains(t, result.ErrorMessage, "unsupported source type")
	assert.Empty(t, result.BatchResults)
}
