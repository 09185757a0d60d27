package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kvstore"
	"github.com/redis/go-redis/v9"
)

var (
	searchCfg = config.SearchConfig{
		KeyPrefix:        "search",
		DefaultLimit:     10,
		MaxResults:       100,
		DefaultDistance:  2,
		MaxFuzzyDistance: 5,
		FuzzyTimeout:     time.Second,
	}
	suggestCfg = config.SuggestConfig{Key: "suggestions", DefaultLimit: 10, MaxLimit: 50}
)

type stringBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func (b *stringBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (b *stringBackend) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = string(value.([]byte))
	return nil
}

func (b *stringBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for k := range b.data {
		if kvstore.Match(pattern, k) {
			delete(b.data, k)
			n++
		}
	}
	return n, nil
}

func newServer(t *testing.T, withCache bool, guard func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	ctx := context.Background()
	engine := indexer.NewEngine(kvstore.NewMemory(), searchCfg, suggestCfg)
	docs := []docstore.Document{
		{ID: "A", Title: "Blue Shirt", Content: "cotton blue shirt", Tags: []string{"clothing"}},
		{ID: "B", Title: "Blue Jeans", Content: "denim", Tags: []string{"clothing"}},
		{ID: "C:https://cdn/c.jpg", Title: "Red Skirt"},
	}
	for _, d := range docs {
		if err := engine.IndexDocument(ctx, d); err != nil {
			t.Fatal(err)
		}
		if _, err := engine.IndexSuggestions(ctx, d.Title, 1.0); err != nil {
			t.Fatal(err)
		}
	}
	var qc *cache.QueryCache
	if withCache {
		qc = cache.New(&stringBackend{data: map[string]string{}}, time.Minute)
	}
	mux := http.NewServeMux()
	New(engine, qc, nil, nil, searchCfg, suggestCfg).Register(mux, guard)
	return mux
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestSearch(t *testing.T) {
	srv := newServer(t, true, nil)

	rec := get(t, srv, "/api/v1/search?q=blue")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d body = %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q", rec.Header().Get("X-Cache"))
	}
	res := decode[executor.SearchResult](t, rec)
	if res.TotalHits != 2 || res.Results[0].ID != "A" || res.Results[0].Score != 4 {
		t.Errorf("result = %+v", res)
	}

	rec = get(t, srv, "/api/v1/search?q=BLUE")
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Errorf("second query X-Cache = %q", rec.Header().Get("X-Cache"))
	}
}

func TestSearchValidation(t *testing.T) {
	srv := newServer(t, false, nil)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=%20%20",
		"/api/v1/search?q=blue&limit=0",
		"/api/v1/search?q=blue&limit=101",
		"/api/v1/search?q=blue&limit=ten",
		"/api/v1/search/fuzzy?q=blue&distance=0",
		"/api/v1/search/fuzzy?q=blue&distance=6",
		"/api/v1/suggest?prefix=bl&limit=51",
		"/api/v1/autocomplete",
	} {
		if rec := get(t, srv, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: code = %d", target, rec.Code)
		}
	}
}

func TestSearchWithoutWords(t *testing.T) {
	srv := newServer(t, false, nil)
	rec := get(t, srv, "/api/v1/search?q=a+!")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if res := decode[executor.SearchResult](t, rec); res.TotalHits != 0 || len(res.Results) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestFuzzySearch(t *testing.T) {
	srv := newServer(t, false, nil)
	rec := get(t, srv, "/api/v1/search/fuzzy?q=shrit")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d body = %s", rec.Code, rec.Body)
	}
	res := decode[executor.SearchResult](t, rec)
	if res.TotalHits != 1 || res.Results[0].ID != "A" || res.Distance != 2 {
		t.Errorf("result = %+v", res)
	}
	if rec.Header().Get("X-Cache") != "DISABLED" {
		t.Errorf("X-Cache = %q", rec.Header().Get("X-Cache"))
	}
}

type slowEngine struct{ Engine }

func (slowEngine) FuzzySearch(ctx context.Context, _ string, _, _ int) (*executor.SearchResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFuzzySearchTimeout(t *testing.T) {
	cfg := searchCfg
	cfg.FuzzyTimeout = 20 * time.Millisecond
	mux := http.NewServeMux()
	New(slowEngine{}, nil, nil, nil, cfg, suggestCfg).Register(mux, nil)

	rec := get(t, mux, "/api/v1/search/fuzzy?q=shirt")
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("code = %d, want 504", rec.Code)
	}
}

func TestFuzzyGuardAppliesOnlyToFuzzy(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	srv := newServer(t, false, deny)
	if rec := get(t, srv, "/api/v1/search/fuzzy?q=shirt"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("fuzzy code = %d", rec.Code)
	}
	if rec := get(t, srv, "/api/v1/search?q=shirt"); rec.Code != http.StatusOK {
		t.Errorf("search code = %d", rec.Code)
	}
}

func TestSuggest(t *testing.T) {
	srv := newServer(t, false, nil)

	rec := get(t, srv, "/api/v1/suggest?prefix=BL&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	plain := decode[struct {
		Prefix      string   `json:"prefix"`
		Count       int      `json:"suggestions_count"`
		Suggestions []string `json:"suggestions"`
	}](t, rec)
	if plain.Prefix != "bl" || plain.Count == 0 || plain.Suggestions[0] != "blue" {
		t.Errorf("suggest = %+v", plain)
	}

	rec = get(t, srv, "/api/v1/suggest?prefix=blue&with_scores=true")
	scored := decode[struct {
		Suggestions []struct {
			Term  string  `json:"term"`
			Score float64 `json:"score"`
		} `json:"suggestions"`
	}](t, rec)
	if len(scored.Suggestions) == 0 || scored.Suggestions[0].Term != "blue" || scored.Suggestions[0].Score != 8 {
		t.Errorf("scored = %+v", scored)
	}

	rec = get(t, srv, "/api/v1/suggest")
	if empty := decode[struct {
		Count int `json:"suggestions_count"`
	}](t, rec); rec.Code != http.StatusOK || empty.Count != 0 {
		t.Errorf("empty prefix: code %d count %d", rec.Code, empty.Count)
	}
}

func TestAutocompleteIsFuzzy(t *testing.T) {
	srv := newServer(t, false, nil)
	rec := get(t, srv, "/api/v1/autocomplete?prefix=skrt")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	got := decode[struct {
		Completions []string `json:"completions"`
	}](t, rec)
	found := false
	for _, c := range got.Completions {
		if c == "skirt" {
			found = true
		}
	}
	if !found {
		t.Errorf("completions = %v, want skirt", got.Completions)
	}
}

func TestGetDocument(t *testing.T) {
	srv := newServer(t, false, nil)

	rec := get(t, srv, "/api/v1/documents/A")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if doc := decode[docstore.Document](t, rec); doc.Title != "Blue Shirt" {
		t.Errorf("doc = %+v", doc)
	}

	rec = get(t, srv, "/api/v1/documents/"+url.PathEscape("C:https://cdn/c.jpg"))
	if rec.Code != http.StatusOK {
		t.Errorf("escaped id: code = %d", rec.Code)
	}

	if rec := get(t, srv, "/api/v1/documents/ghost"); rec.Code != http.StatusNotFound {
		t.Errorf("missing doc: code = %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	srv := newServer(t, false, nil)
	rec := get(t, srv, "/api/v1/stats")
	got := decode[map[string]any](t, rec)
	if got["documents_count"] != float64(3) || got["suggestions_key"] != "suggestions" {
		t.Errorf("stats = %v", got)
	}
}

func TestCacheEndpoints(t *testing.T) {
	srv := newServer(t, false, nil)
	if got := decode[map[string]string](t, get(t, srv, "/api/v1/cache/stats")); got["status"] != "disabled" {
		t.Errorf("stats = %v", got)
	}

	srv = newServer(t, true, nil)
	get(t, srv, "/api/v1/search?q=blue")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("invalidate code = %d", rec.Code)
	}
	if rec := get(t, srv, "/api/v1/search?q=blue"); rec.Header().Get("X-Cache") != "MISS" {
		t.Error("search after invalidate should miss")
	}
}

func TestIntParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=7", nil)
	if n, err := intParam(r, "limit", 10, 1, 50); err != nil || n != 7 {
		t.Errorf("intParam = %d, %v", n, err)
	}
	if n, _ := intParam(r, "offset", 3, 0, 9); n != 3 {
		t.Errorf("default = %d", n)
	}
	r = httptest.NewRequest(http.MethodGet, "/?limit=99", nil)
	if _, err := intParam(r, "limit", 10, 1, 50); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("out of range: err = %v", err)
	}
}
