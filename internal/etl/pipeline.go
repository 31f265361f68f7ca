package etl

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pricewatch-etl/internal/models"
	"pricewatch-etl/internal/parser"
)

// Fetcher is the scraping collaborator the extract stage consumes.
// Retry, rate limiting and user-agent rotation are its responsibility.
type Fetcher interface {
	Fetch(ctx context.Context, url string, selectors map[string]string) (models.RawItem, error)
}

// Store is the persistence collaborator the load stage consumes.
type Store interface {
	SaveBatch(ctx context.Context, items []models.EnrichedItem) (models.StoreResult, error)
}

const defaultQualityThreshold = 0.8

// Pipeline runs one source through Extract, Transform and Load. A stage
// failure transitions the run directly to a failed result, skipping the
// remaining stages; Run never lets an error escape its boundary.
type Pipeline struct {
	fetcher          Fetcher
	store            Store
	transformer      *Transformer
	validator        *parser.Validator
	qualityThreshold float64
	logger           *logrus.Logger
}

func NewPipeline(fetcher Fetcher, store Store, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		fetcher:          fetcher,
		store:            store,
		transformer:      NewTransformer(logger),
		validator:        parser.NewValidator(),
		qualityThreshold: defaultQualityThreshold,
		logger:           logger,
	}
}

// SetQualityThreshold overrides the load-stage valid-ratio gate.
// Configure before running; the pipeline does not guard concurrent
// reconfiguration against in-flight runs.
func (p *Pipeline) SetQualityThreshold(threshold float64) {
	if threshold > 0 && threshold <= 1 {
		p.qualityThreshold = threshold
	}
}

// Extract dispatches on the source type. The api and file types are
// defined extension points that currently return an empty batch.
func (p *Pipeline) Extract(ctx context.Context, cfg models.SourceConfig) ([]models.RawItem, error) {
	switch cfg.Type {
	case models.SourceTypeWebScraper:
		return p.extractFromScraper(ctx, cfg)
	case models.SourceTypeAPI, models.SourceTypeFile:
		return []models.RawItem{}, nil
	default:
		return nil, stageError("extract", "unsupported source type: %s", cfg.Type)
	}
}

func (p *Pipeline) extractFromScraper(ctx context.Context, cfg models.SourceConfig) ([]models.RawItem, error) {
	if p.fetcher == nil {
		return nil, stageError("extract", "no fetcher configured")
	}

	items := make([]models.RawItem, 0, len(cfg.URLs))
	for _, url := range cfg.URLs {
		raw, err := p.fetcher.Fetch(ctx, url, cfg.Selectors)
		if err != nil {
			// One bad page does not abort the extract; siblings still count.
			p.logger.WithError(err).WithField("url", url).Warn("Skipping URL that failed to fetch")
			continue
		}
		items = append(items, raw)
	}
	return items, nil
}

// Transform maps parse and enrichment over the batch, dropping items
// whose parse fails.
func (p *Pipeline) Transform(raw []models.RawItem) []models.EnrichedItem {
	return p.transformer.TransformBatch(raw)
}

// Load validates the batch and persists it. When the valid-item ratio
// falls below the quality threshold the stage fails outright rather
// than persisting a majority-invalid batch. Only valid items are saved;
// invalid ones are counted as errors alongside store failures.
func (p *Pipeline) Load(ctx context.Context, processed []models.EnrichedItem) (models.LoadResult, error) {
	validation := p.validator.ValidateBatch(processed)

	if validation.ValidationRate < p.qualityThreshold {
		return models.LoadResult{}, stageError("load", "data quality too low: %.2f%% valid",
			validation.ValidationRate*100)
	}

	valid := make([]models.EnrichedItem, 0, validation.ValidItems)
	for _, item := range processed {
		if p.validator.ValidateProduct(item.NormalizedItem).IsValid {
			valid = append(valid, item)
		}
	}

	if p.store == nil {
		return models.LoadResult{}, stageError("load", "no store configured")
	}

	saved, err := p.store.SaveBatch(ctx, valid)
	if err != nil {
		return models.LoadResult{}, stageError("load", "saving batch: %w", err)
	}

	return models.LoadResult{
		Created:        saved.Created,
		Updated:        saved.Updated,
		Errors:         saved.Errors + validation.InvalidItems,
		TotalProcessed: len(processed),
	}, nil
}

// Run chains Extract, Transform and Load for one source, measuring
// wall-clock duration. It always returns a result record; stage
// failures arrive as an error status with the failing stage named.
func (p *Pipeline) Run(ctx context.Context, cfg models.SourceConfig) models.PipelineResult {
	start := time.Now()
	runID := uuid.NewString()

	log := p.logger.WithFields(logrus.Fields{
		"run_id": runID,
		"source": cfg.Provider,
		"type":   cfg.Type,
	})
	log.Info("Starting ETL run")

	raw, err := p.Extract(ctx, cfg)
	if err != nil {
		return p.failedResult(runID, start, err, log)
	}

	processed := p.Transform(raw)

	loadResult, err := p.Load(ctx, processed)
	if err != nil {
		return p.failedResult(runID, start, err, log)
	}

	result := models.PipelineResult{
		RunID:            runID,
		Status:           models.StatusSuccess,
		ExecutionSeconds: time.Since(start).Seconds(),
		RecordsExtracted: len(raw),
		RecordsProcessed: len(processed),
		Created:          loadResult.Created,
		Updated:          loadResult.Updated,
		Errors:           loadResult.Errors,
	}

	log.WithFields(logrus.Fields{
		"extracted": result.RecordsExtracted,
		"processed": result.RecordsProcessed,
		"created":   result.Created,
		"duration":  time.Since(start),
	}).Info("ETL run completed")

	return result
}

func (p *Pipeline) failedResult(runID string, start time.Time, err error, log *logrus.Entry) models.PipelineResult {
	stage := "unknown"
	var stageErr *Error
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}

	log.WithError(err).WithField("stage", stage).Error("ETL run failed")

	return models.PipelineResult{
		RunID:            runID,
		Status:           models.StatusError,
		ExecutionSeconds: time.Since(start).Seconds(),
		ErrorStage:       stage,
		ErrorMessage:     err.Error(),
	}
}
