// Package handler serves the read side of the catalog search API: full-text
// and fuzzy search, suggestions, autocomplete, document lookup and engine
// statistics.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/suggest"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/tracing"
)

// Engine is the read side of indexer.Engine.
type Engine interface {
	Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error)
	FuzzySearch(ctx context.Context, query string, maxDistance, limit int) (*executor.SearchResult, error)
	Suggest(ctx context.Context, prefix string, limit int, fuzzy bool) ([]suggest.Suggestion, error)
	Document(ctx context.Context, id string) (*docstore.Document, error)
	Stats(ctx context.Context) (indexer.Stats, error)
}

type Handler struct {
	engine    Engine
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	search    config.SearchConfig
	suggest   config.SuggestConfig
	logger    *slog.Logger
}

// New builds the handler. queryCache, collector and m may be nil.
func New(engine Engine, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics, searchCfg config.SearchConfig, suggestCfg config.SuggestConfig) *Handler {
	return &Handler{
		engine:    engine,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		search:    searchCfg,
		suggest:   suggestCfg,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the search routes on mux. fuzzyGuard, if non-nil, wraps the
// fuzzy endpoint only (rate limiting).
func (h *Handler) Register(mux *http.ServeMux, fuzzyGuard func(http.Handler) http.Handler) {
	var fuzzy http.Handler = http.HandlerFunc(h.FuzzySearch)
	if fuzzyGuard != nil {
		fuzzy = fuzzyGuard(fuzzy)
	}
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.Handle("GET /api/v1/search/fuzzy", fuzzy)
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("GET /api/v1/autocomplete", h.Autocomplete)
	mux.HandleFunc("GET /api/v1/documents/{id...}", h.GetDocument)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search serves GET /api/v1/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, apperrors.Invalid(`query parameter "q" is required`))
		return
	}
	limit, err := intParam(r, "limit", h.search.DefaultLimit, 1, h.search.MaxResults)
	if err != nil {
		h.writeError(w, err)
		return
	}
	q := cache.Query{Text: query, Mode: executor.ModeExact, Limit: limit}
	h.serveSearch(w, r, q, analytics.EventSearch, func(ctx context.Context) (*executor.SearchResult, error) {
		return h.engine.Search(ctx, query, limit)
	})
}

// FuzzySearch serves GET /api/v1/search/fuzzy?q=&distance=&limit=. The
// vocabulary scan runs under search.fuzzyTimeout.
func (h *Handler) FuzzySearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, apperrors.Invalid(`query parameter "q" is required`))
		return
	}
	distance, err := intParam(r, "distance", h.search.DefaultDistance, 1, h.search.MaxFuzzyDistance)
	if err != nil {
		h.writeError(w, err)
		return
	}
	limit, err := intParam(r, "limit", h.search.DefaultLimit, 1, h.search.MaxResults)
	if err != nil {
		h.writeError(w, err)
		return
	}
	q := cache.Query{Text: query, Mode: executor.ModeFuzzy, Distance: distance, Limit: limit}
	h.serveSearch(w, r, q, analytics.EventFuzzySearch, func(ctx context.Context) (*executor.SearchResult, error) {
		return resilience.Call(ctx, h.search.FuzzyTimeout, "fuzzy-search", func(ctx context.Context) (*executor.SearchResult, error) {
			return h.engine.FuzzySearch(ctx, query, distance, limit)
		})
	})
}

func (h *Handler) serveSearch(w http.ResponseWriter, r *http.Request, q cache.Query, event analytics.EventType, compute func(context.Context) (*executor.SearchResult, error)) {
	start := time.Now()
	ctx, span := tracing.StartRoot(r.Context(), string(event))
	log := logger.FromContext(ctx)
	plan := parser.Parse(q.Text)

	var (
		result      *executor.SearchResult
		err         error
		cacheStatus = "disabled"
	)
	switch {
	case plan.Empty():
		result = &executor.SearchResult{Query: q.Text, Mode: q.Mode, Terms: plan.Terms, Results: []executor.Hit{}}
	case h.cache != nil:
		var hit bool
		result, hit, err = h.cache.GetOrCompute(ctx, q, func() (*executor.SearchResult, error) {
			return compute(ctx)
		})
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
	default:
		result, err = compute(ctx)
	}
	elapsed := time.Since(start)
	span.SetAttr("query", q.Text)
	span.SetAttr("cache", cacheStatus)
	span.End()
	span.LogIfSlow(log, h.search.SlowQueryThreshold)

	if err != nil {
		h.metrics.ObserveSearch(q.Mode, "error", cacheStatus, elapsed, 0)
		log.Error("search failed", "query", q.Text, "mode", q.Mode, "error", err)
		h.writeError(w, err)
		return
	}
	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.metrics.ObserveSearch(q.Mode, resultType, cacheStatus, elapsed, len(result.Results))
	h.collector.Track(analytics.SearchEvent{
		Type:      event,
		Query:     q.Text,
		Terms:     plan.Terms,
		Distance:  q.Distance,
		TotalHits: result.TotalHits,
		Returned:  len(result.Results),
		LatencyMs: elapsed.Milliseconds(),
		CacheHit:  cacheStatus == "hit",
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})
	log.Info("search completed",
		"query", q.Text,
		"mode", q.Mode,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache", cacheStatus,
		"latency_ms", elapsed.Milliseconds(),
	)
	w.Header().Set("X-Cache", strings.ToUpper(cacheStatus))
	h.writeJSON(w, http.StatusOK, result)
}

type suggestResponse struct {
	Prefix       string `json:"prefix"`
	FuzzyEnabled bool   `json:"fuzzy_enabled"`
	Count        int    `json:"suggestions_count"`
	Suggestions  any    `json:"suggestions"`
}

// Suggest serves GET /api/v1/suggest?prefix=&limit=&fuzzy=&with_scores=.
// An empty prefix is allowed and yields no suggestions.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := tokenizer.Normalize(strings.TrimSpace(r.URL.Query().Get("prefix")))
	limit, err := intParam(r, "limit", h.suggest.DefaultLimit, 1, h.suggest.MaxLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	fuzzy := boolParam(r, "fuzzy")
	withScores := boolParam(r, "with_scores")

	list, err := h.suggestions(r.Context(), prefix, limit, fuzzy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := suggestResponse{Prefix: prefix, FuzzyEnabled: fuzzy, Count: len(list)}
	if withScores {
		resp.Suggestions = list
	} else {
		resp.Suggestions = terms(list)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Autocomplete serves GET /api/v1/autocomplete?prefix=&limit=: fuzzy
// suggestions without scores.
func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	prefix := tokenizer.Normalize(strings.TrimSpace(r.URL.Query().Get("prefix")))
	if prefix == "" {
		h.writeError(w, apperrors.Invalid("prefix parameter is required"))
		return
	}
	limit, err := intParam(r, "limit", h.suggest.DefaultLimit, 1, h.suggest.MaxLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	list, err := h.suggestions(r.Context(), prefix, limit, true)
	if err != nil {
		h.writeError(w, err)
		return
	}
	completions := terms(list)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"prefix":            prefix,
		"completions_count": len(completions),
		"completions":       completions,
	})
}

func (h *Handler) suggestions(ctx context.Context, prefix string, limit int, fuzzy bool) ([]suggest.Suggestion, error) {
	start := time.Now()
	list, err := h.engine.Suggest(ctx, prefix, limit, fuzzy)
	if err != nil {
		logger.FromContext(ctx).Error("suggest failed", "prefix", prefix, "error", err)
		return nil, err
	}
	h.metrics.ObserveSuggest(fuzzy)
	h.collector.Track(analytics.SearchEvent{
		Type:      analytics.EventSuggest,
		Query:     prefix,
		TotalHits: len(list),
		Returned:  len(list),
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})
	if list == nil {
		list = []suggest.Suggestion{}
	}
	return list, nil
}

func terms(list []suggest.Suggestion) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Term
	}
	return out
}

// GetDocument serves GET /api/v1/documents/{id}. Ids that contain slashes
// must be percent-encoded.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, apperrors.Invalid("document id is required"))
		return
	}
	doc, err := h.engine.Document(r.Context(), id)
	if err != nil {
		if !errors.Is(err, apperrors.ErrDocumentNotFound) {
			logger.FromContext(r.Context()).Error("document lookup failed", "doc_id", id, "error", err)
		}
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// Stats serves GET /api/v1/stats and refreshes the corpus gauges.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("stats failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.metrics.SetCorpus(stats.Documents, stats.Suggestions, stats.Vocabulary)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents_count":   stats.Documents,
		"suggestions_count": stats.Suggestions,
		"vocabulary_size":   stats.Vocabulary,
		"key_prefix":        h.search.KeyPrefix,
		"suggestions_key":   h.suggest.Key,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// intParam reads an optional integer query parameter within [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, apperrors.Invalid("%s must be an integer between %d and %d", name, lo, hi)
	}
	return n, nil
}

func boolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to its HTTP status. Internal causes are not exposed.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := apperrors.Message(err, http.StatusText(status))
	h.writeJSON(w, status, map[string]string{"error": msg})
}
