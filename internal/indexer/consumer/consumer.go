// Package consumer applies document-ingest events from Kafka to the index.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/metrics"
)

type Indexer interface {
	IndexDocument(ctx context.Context, doc docstore.Document) error
	IndexSuggestions(ctx context.Context, text string, multiplier float64) (int, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// HandleMessage returns a handler that indexes each ingest event and feeds
// its title into the suggestion store. Undecodable messages are logged and
// skipped so a poison message cannot stall the partition. cache and m may
// be nil.
func HandleMessage(engine Indexer, cache Invalidator, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if event.DocumentID == "" {
			logger.Warn("ingest event without document id", "key", string(key))
			return nil
		}

		doc := docstore.Document{
			ID:       event.DocumentID,
			Title:    event.Title,
			Content:  event.Content,
			Tags:     event.Tags,
			Metadata: event.Metadata,
		}
		if err := engine.IndexDocument(ctx, doc); err != nil {
			m.DocIndexed(false)
			return fmt.Errorf("indexing document %s: %w", event.DocumentID, err)
		}
		m.DocIndexed(true)

		n, err := engine.IndexSuggestions(ctx, event.Title, 1.0)
		if err != nil {
			logger.Warn("suggestion indexing failed", "doc_id", event.DocumentID, "error", err)
		} else {
			m.SuggestionsIndexed(n)
		}

		if cache != nil {
			if err := cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("query cache invalidation failed", "error", err)
			}
		}

		logger.Info("document indexed",
			"doc_id", event.DocumentID,
			"suggestions", n,
		)
		return nil
	}
}
