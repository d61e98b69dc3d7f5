package agent

import (
	"context"
	"fmt"

	"github.com/feichai0017/testcase-generator/internal/agent/document"
	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

// Aggregator walks a batch of documents and concatenates their content in
// upload order.
type Aggregator struct {
	factory *WalkerFactory
	logger  logger.Logger
}

func NewAggregator(factory *WalkerFactory, log logger.Logger) *Aggregator {
	return &Aggregator{factory: factory, logger: log}
}

// Aggregate resolves a walker for every document before walking any of them,
// so an unsupported type fails the batch without extraction work. Documents
// are then walked one at a time; any failure discards all partial output.
func (a *Aggregator) Aggregate(ctx context.Context, docs []models.Document) (models.ContentSequence, error) {
	walkers := make([]document.Walker, len(docs))
	for i, doc := range docs {
		w, err := a.factory.GetWalker(doc.Ext())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.Name, err)
		}
		walkers[i] = w
	}

	var seq models.ContentSequence
	for i, doc := range docs {
		units, err := walkers[i].Walk(ctx, doc.Path)
		if err != nil {
			a.logger.Error("Failed to walk document",
				logger.String("name", doc.Name),
				logger.Error(err),
			)
			return nil, fmt.Errorf("%s: %w", doc.Name, err)
		}
		a.logger.Info("Walked document",
			logger.String("name", doc.Name),
			logger.Int("text", units.Count(models.KindText)),
			logger.Int("images", units.Count(models.KindImageText)),
		)
		seq = append(seq, units...)
	}
	return seq, nil
}
