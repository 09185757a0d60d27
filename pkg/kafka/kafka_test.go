package kafka

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
)

type ingestEvent struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestDecodeJSON(t *testing.T) {
	ev, err := DecodeJSON[ingestEvent]([]byte(`{"id":"SKU1:a.jpg","title":"SKU1 Blue Shirt"}`))
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID != "SKU1:a.jpg" || ev.Title != "SKU1 Blue Shirt" {
		t.Errorf("decoded %+v", ev)
	}
	if _, err := DecodeJSON[ingestEvent]([]byte(`{"id":`)); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestPublishBatchEmptyIsNoop(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "document-ingest")
	defer p.Close()
	if err := p.PublishBatch(context.Background(), nil); err != nil {
		t.Errorf("empty batch: %v", err)
	}
}

func TestPublishRejectsUnencodableValue(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "document-ingest")
	defer p.Close()
	err := p.Publish(context.Background(), Event{Key: "k", Value: make(chan int)})
	if err == nil {
		t.Error("expected marshal error")
	}
}

func TestPingWithoutBrokers(t *testing.T) {
	p := NewProducer(config.KafkaConfig{}, "document-ingest")
	defer p.Close()
	if err := p.Ping(context.Background()); err == nil {
		t.Error("expected error with no brokers")
	}
}
