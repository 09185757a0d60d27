// Package publisher turns accepted ingestion requests into document-ingest
// events for the indexer.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kafka"
)

// Producer is the Kafka write side the publisher needs.
type Producer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Publisher struct {
	producer Producer
	now      func() time.Time
	logger   *slog.Logger
}

func New(producer Producer) *Publisher {
	return &Publisher{
		producer: producer,
		now:      time.Now,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest publishes req keyed by document id, so successive versions of one
// document stay ordered on a single partition. The request must already be
// validated.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	event := kafka.Event{
		Key: req.ID,
		Value: ingestion.IngestEvent{
			DocumentID: req.ID,
			Title:      req.Title,
			Content:    req.Content,
			Tags:       req.Tags,
			Metadata:   req.Metadata,
			IngestedAt: p.now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish document", "doc_id", req.ID, "error", err)
		return nil, fmt.Errorf("publishing document %s: %w", req.ID, err)
	}
	return &ingestion.IngestResponse{DocumentID: req.ID, Status: "QUEUED"}, nil
}
