package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kvstore"
	"github.com/redis/go-redis/v9"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]string)}
}

func (m *memBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	default:
		return errors.New("unsupported value type")
	}
	return nil
}

func (m *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if kvstore.Match(pattern, k) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestBuildKeyNormalises(t *testing.T) {
	a := buildKey(Query{Text: "Blue  SHIRT", Mode: executor.ModeExact, Limit: 10})
	b := buildKey(Query{Text: "shirt blue blue", Mode: executor.ModeExact, Limit: 10})
	if a != b {
		t.Error("equivalent queries produced different keys")
	}
	if !strings.HasPrefix(a, keyPrefix) {
		t.Errorf("key %q lacks prefix", a)
	}
	variants := []Query{
		{Text: "blue shirt", Mode: executor.ModeExact, Limit: 20},
		{Text: "blue shirt", Mode: executor.ModeFuzzy, Limit: 10},
		{Text: "blue shirt", Mode: executor.ModeFuzzy, Distance: 2, Limit: 10},
	}
	for _, v := range variants {
		if buildKey(v) == a {
			t.Errorf("query %+v collides with base key", v)
		}
	}
}

func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()
	c := New(newMemBackend(), time.Minute)
	q := Query{Text: "blue", Mode: executor.ModeExact, Limit: 10}

	var calls atomic.Int32
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		return &executor.SearchResult{Query: "blue", TotalHits: 2, Results: []executor.Hit{}}, nil
	}

	res, hit, err := c.GetOrCompute(ctx, q, compute)
	if err != nil || hit || res.TotalHits != 2 {
		t.Fatalf("first call: res=%+v hit=%v err=%v", res, hit, err)
	}
	res, hit, err = c.GetOrCompute(ctx, q, compute)
	if err != nil || !hit || res.TotalHits != 2 {
		t.Fatalf("second call: res=%+v hit=%v err=%v", res, hit, err)
	}
	if calls.Load() != 1 {
		t.Errorf("compute ran %d times", calls.Load())
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats hits=%d misses=%d", hits, misses)
	}
}

func TestGetOrComputePropagatesError(t *testing.T) {
	c := New(newMemBackend(), time.Minute)
	boom := errors.New("store down")
	_, _, err := c.GetOrCompute(context.Background(), Query{Text: "x y"}, func() (*executor.SearchResult, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	b.data["search:documents:A"] = "keep"
	c := New(b, time.Minute)
	q := Query{Text: "blue", Mode: executor.ModeExact, Limit: 10}
	c.Set(ctx, q, &executor.SearchResult{Query: "blue"})

	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, q); ok {
		t.Error("entry survived invalidation")
	}
	if _, ok := b.data["search:documents:A"]; !ok {
		t.Error("invalidation touched engine keys")
	}
}
