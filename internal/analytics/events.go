// Package analytics records search traffic. Request handlers Track events
// into a Collector that batches them onto the analytics Kafka topic; an
// Aggregator consumes the topic and serves rolled-up statistics.
package analytics

import "time"

type EventType string

const (
	EventSearch      EventType = "search"
	EventFuzzySearch EventType = "fuzzy_search"
	EventSuggest     EventType = "suggest"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms,omitempty"`
	Distance  int       `json:"distance,omitempty"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
