package etl

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"pricewatch-etl/internal/enrich"
	"pricewatch-etl/internal/models"
	"pricewatch-etl/internal/parser"
)

// Error is a stage-tagged ETL failure. It propagates only as far as the
// pipeline boundary, where Run converts it into an error result.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func stageError(stage, format string, args ...any) *Error {
	return &Error{Stage: stage, Err: fmt.Errorf(format, args...)}
}

// Transformer composes parsing and enrichment per item.
type Transformer struct {
	parser   *parser.PriceParser
	enricher *enrich.Enricher
	logger   *logrus.Logger
}

func NewTransformer(logger *logrus.Logger) *Transformer {
	return &Transformer{
		parser:   parser.New(),
		enricher: enrich.New(),
		logger:   logger,
	}
}

// TransformItem normalizes and enriches one raw item. A raw item from
// which the fetcher extracted nothing at all is not a product and is
// reported as a parse failure for the batch transformer to drop.
func (t *Transformer) TransformItem(raw models.RawItem) (models.EnrichedItem, error) {
	if raw.IsEmpty() {
		return models.EnrichedItem{}, &parser.ParsingError{
			Field:   "item",
			Message: "no fields extracted from source",
		}
	}

	normalized := t.parser.ExtractProductDetails(raw)
	return t.enricher.Enrich(normalized), nil
}

// TransformBatch maps TransformItem over a batch in input order,
// dropping items whose parse fails rather than aborting the batch. The
// output preserves input order minus the dropped items.
func (t *Transformer) TransformBatch(raw []models.RawItem) []models.EnrichedItem {
	transformed := make([]models.EnrichedItem, 0, len(raw))

	for i, rawItem := range raw {
		item, err := t.TransformItem(rawItem)
		if err != nil {
			t.logger.WithError(err).WithField("index", i).Debug("Dropping item that failed to transform")
			continue
		}
		transformed = append(transformed, item)
	}

	return transformed
}
