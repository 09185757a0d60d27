package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kafka"
)

type memPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (m *memPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, events)
	return nil
}

func (m *memPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesOnShutdown(t *testing.T) {
	pub := &memPublisher{}
	c := NewCollector(pub, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(SearchEvent{Type: EventSearch, Query: "blue shirt"})
	c.Track(SearchEvent{Type: EventSuggest, Query: "bl"})
	cancel()
	c.Close()

	if pub.count() != 2 {
		t.Errorf("published %d events, want 2", pub.count())
	}
	if c.Pending() != 0 {
		t.Errorf("pending = %d", c.Pending())
	}
}

func TestCollectorFlushesFullBatch(t *testing.T) {
	pub := &memPublisher{}
	c := NewCollector(pub, 2, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); c.Close() }()
	c.Start(ctx)

	c.Track(SearchEvent{Type: EventSearch, Query: "a"})
	c.Track(SearchEvent{Type: EventSearch, Query: "b"})

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pub.count() != 2 {
		t.Errorf("published %d events before the interval", pub.count())
	}
}

func TestCollectorRequeuesAndCapsOnFailure(t *testing.T) {
	pub := &memPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 2, time.Hour)
	for i := 0; i < 10; i++ {
		c.Track(SearchEvent{Type: EventSearch})
	}
	c.flush(context.Background())
	if got := c.Pending(); got != 6 {
		t.Errorf("pending = %d, want 6", got)
	}
}

func TestNilCollectorTrack(t *testing.T) {
	var c *Collector
	c.Track(SearchEvent{Type: EventSearch})
}

func TestAggregator(t *testing.T) {
	a := NewAggregator()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a.startTime = start
	a.now = func() time.Time { return start.Add(2 * time.Minute) }

	events := []SearchEvent{
		{Type: EventSearch, Query: "shirt", TotalHits: 3, LatencyMs: 10},
		{Type: EventSearch, Query: "shirt", TotalHits: 3, LatencyMs: 20, CacheHit: true},
		{Type: EventFuzzySearch, Query: "shrit", TotalHits: 3, LatencyMs: 40},
		{Type: EventSearch, Query: "zzz", TotalHits: 0, LatencyMs: 30},
		{Type: EventSuggest, Query: "sh", LatencyMs: 1},
	}
	for _, e := range events {
		a.Record(e)
	}
	stats := a.Stats()
	if stats.TotalEvents != 5 || stats.ByType[EventSearch] != 3 || stats.CacheHits != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ZeroResultCount != 1 || len(stats.ZeroResultQueries) != 1 || stats.ZeroResultQueries[0].Query != "zzz" {
		t.Errorf("zero results = %+v", stats.ZeroResultQueries)
	}
	want := []QueryCount{{"shirt", 2}, {"shrit", 1}, {"zzz", 1}}
	if len(stats.TopQueries) != len(want) {
		t.Fatalf("top = %+v", stats.TopQueries)
	}
	for i := range want {
		if stats.TopQueries[i] != want[i] {
			t.Errorf("top[%d] = %+v, want %+v", i, stats.TopQueries[i], want[i])
		}
	}
	if stats.P50LatencyMs != 20 || stats.P99LatencyMs != 40 {
		t.Errorf("p50=%d p99=%d", stats.P50LatencyMs, stats.P99LatencyMs)
	}
	if stats.QueriesPerMinute != 2 {
		t.Errorf("qpm = %v", stats.QueriesPerMinute)
	}
}

func TestAggregatorHandlerSkipsGarbage(t *testing.T) {
	a := NewAggregator()
	h := a.Handler()
	if err := h(context.Background(), nil, []byte("not json")); err != nil {
		t.Errorf("garbage should be acknowledged: %v", err)
	}
	body, _ := json.Marshal(SearchEvent{Type: EventSearch, Query: "q", TotalHits: 1})
	if err := h(context.Background(), nil, body); err != nil {
		t.Fatal(err)
	}
	if a.Stats().TotalEvents != 1 {
		t.Error("event not recorded")
	}
}

func TestStatsHandler(t *testing.T) {
	a := NewAggregator()
	a.Record(SearchEvent{Type: EventSearch, Query: "q"})
	rec := httptest.NewRecorder()
	NewHandler(a).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	var got AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.TotalEvents != 1 {
		t.Errorf("TotalEvents = %d", got.TotalEvents)
	}
}
