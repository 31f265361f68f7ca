package etl

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"pricewatch-etl/internal/models"
)

const (
	defaultMaxConcurrent = 5
	defaultBatchSize     = 100
)

// BatchProcessor fans pipeline runs out over many sources with a
// bounded worker count, and chunks very large single-source extracts.
type BatchProcessor struct {
	pipeline      *Pipeline
	maxConcurrent int64
	batchSize     int
	logger        *logrus.Logger
}

func NewBatchProcessor(pipeline *Pipeline, maxConcurrent, batchSize int, logger *logrus.Logger) *BatchProcessor {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &BatchProcessor{
		pipeline:      pipeline,
		maxConcurrent: int64(maxConcurrent),
		batchSize:     batchSize,
		logger:        logger,
	}
}

// ProcessMultipleSources runs one pipeline invocation per source
// concurrently, gated by a counting semaphore. A failure inside one
// task never cancels or blocks its siblings; it is converted into an
// error result at that task's boundary. Results are collected by source
// index, not completion order.
func (b *BatchProcessor) ProcessMultipleSources(ctx context.Context, configs []models.SourceConfig) []models.PipelineResult {
	sem := semaphore.NewWeighted(b.maxConcurrent)
	results := make([]models.PipelineResult, len(configs))
	var wg sync.WaitGroup

	for i, cfg := range configs {
		wg.Add(1)
		go func(index int, cfg models.SourceConfig) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[index] = models.PipelineResult{
						Status:       models.StatusError,
						SourceIndex:  index,
						ErrorMessage: fmt.Sprintf("panic in pipeline run: %v", r),
					}
				}
			}()

			if err := sem.Acquire(ctx, 1); err != nil {
				results[index] = models.PipelineResult{
					Status:       models.StatusError,
					SourceIndex:  index,
					ErrorMessage: err.Error(),
				}
				return
			}
			defer sem.Release(1)

			results[index] = b.pipeline.Run(ctx, cfg)
			results[index].SourceIndex = index
		}(i, cfg)
	}

	wg.Wait()
	return results
}

// ProcessLargeDataset extracts once, then re-chunks the extract into
// fixed-size pages, running Transform and Load per page. This bounds
// peak memory and keeps a single bad page from poisoning the rest of
// the dataset: a failed page is recorded and the remaining pages still
// run.
func (b *BatchProcessor) ProcessLargeDataset(ctx context.Context, cfg models.SourceConfig) models.LargeDatasetResult {
	raw, err := b.pipeline.Extract(ctx, cfg)
	if err != nil {
		return models.LargeDatasetResult{
			Status:       models.StatusError,
			ErrorMessage: err.Error(),
		}
	}

	result := models.LargeDatasetResult{
		Status:       models.StatusSuccess,
		TotalRecords: len(raw),
	}

	for start := 0; start < len(raw); start += b.batchSize {
		end := start + b.batchSize
		if end > len(raw) {
			end = len(raw)
		}
		chunk := raw[start:end]
		chunkIndex := start / b.batchSize

		processed := b.pipeline.Transform(chunk)
		loadResult, err := b.pipeline.Load(ctx, processed)

		chunkResult := models.ChunkResult{
			BatchIndex:       chunkIndex,
			RecordsInBatch:   len(chunk),
			RecordsProcessed: len(processed),
		}
		if err != nil {
			b.logger.WithError(err).WithField("batch_index", chunkIndex).Warn("Batch failed, continuing with remaining batches")
			chunkResult.Errors = len(processed)
			chunkResult.ErrorMessage = err.Error()
			result.TotalErrors += len(processed)
		} else {
			chunkResult.Created = loadResult.Created
			chunkResult.Errors = loadResult.Errors
			result.TotalProcessed += len(processed)
			result.TotalCreated += loadResult.Created
			result.TotalErrors += loadResult.Errors
		}

		result.BatchResults = append(result.BatchResults, chunkResult)
	}

	result.BatchesProcessed = len(result.BatchResults)
	return result
}
