// Package executor runs parsed queries against the inverted index: exact word
// lookup for full-text search, and a vocabulary-wide edit-distance scan for
// fuzzy search. Both rank with the same field weights and hydrate the top
// hits from the document store.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/tracing"
)

const (
	ModeExact = "exact"
	ModeFuzzy = "fuzzy"
)

// Index is the read side of the inverted index.
type Index interface {
	Lookup(ctx context.Context, word string, m index.Matches) error
	Vocabulary(ctx context.Context) ([]string, error)
}

// Documents hydrates ids into stored records.
type Documents interface {
	GetMany(ctx context.Context, ids []string) (map[string]*docstore.Document, error)
}

// Hit is a hydrated, scored document.
type Hit struct {
	docstore.Document
	Score float64 `json:"score"`
}

type SearchResult struct {
	Query     string   `json:"query"`
	Mode      string   `json:"mode"`
	Terms     []string `json:"terms"`
	Expanded  []string `json:"expanded_terms,omitempty"`
	Distance  int      `json:"max_distance,omitempty"`
	TotalHits int      `json:"total_hits"`
	Results   []Hit    `json:"results"`
	TookMs    float64  `json:"took_ms"`
}

type Executor struct {
	index   Index
	docs    Documents
	weights ranker.Weights
	logger  *slog.Logger
}

func New(idx Index, docs Documents) *Executor {
	return &Executor{
		index:   idx,
		docs:    docs,
		weights: ranker.DefaultWeights(),
		logger:  slog.Default().With("component", "query-executor"),
	}
}

func emptyResult(plan *parser.QueryPlan, mode string) *SearchResult {
	return &SearchResult{
		Query:   plan.RawQuery,
		Mode:    mode,
		Terms:   plan.Terms,
		Results: []Hit{},
	}
}

// Execute looks up every query word in every field, scores the union of
// matching documents and returns the top limit hits.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if plan.Empty() {
		return emptyResult(plan, ModeExact), nil
	}
	start := time.Now()
	_, lookup := tracing.StartChild(ctx, "lookup")
	matches := index.NewMatches()
	for _, term := range plan.Terms {
		if err := e.index.Lookup(ctx, term, matches); err != nil {
			lookup.End()
			return nil, fmt.Errorf("looking up %q: %w", term, err)
		}
	}
	lookup.SetAttr("terms", len(plan.Terms))
	lookup.End()
	result, err := e.finish(ctx, plan, ModeExact, matches, limit)
	if err != nil {
		return nil, err
	}
	result.TookMs = elapsedMs(start)
	e.logger.Info("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"candidates", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

// ExecuteFuzzy scans the whole vocabulary and treats every indexed word
// within maxDistance edits of a query word as a match. Distance 0 degrades to
// exact lookup of the words that exist. The scan checks ctx between words
// and stops when it is cancelled.
func (e *Executor) ExecuteFuzzy(ctx context.Context, plan *parser.QueryPlan, maxDistance, limit int) (*SearchResult, error) {
	if plan.Empty() {
		r := emptyResult(plan, ModeFuzzy)
		r.Distance = maxDistance
		return r, nil
	}
	start := time.Now()
	matches, expanded, vocabSize, err := e.scanVocabulary(ctx, plan.Terms, maxDistance)
	if err != nil {
		return nil, err
	}

	result, err := e.finish(ctx, plan, ModeFuzzy, matches, limit)
	if err != nil {
		return nil, err
	}
	result.Expanded = expanded
	result.Distance = maxDistance
	result.TookMs = elapsedMs(start)
	e.logger.Info("fuzzy query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"max_distance", maxDistance,
		"vocabulary", vocabSize,
		"expanded", len(expanded),
		"results", len(result.Results),
	)
	return result, nil
}

// scanVocabulary collects the postings of every indexed word within
// maxDistance of a query term.
func (e *Executor) scanVocabulary(ctx context.Context, terms []string, maxDistance int) (index.Matches, []string, int, error) {
	_, span := tracing.StartChild(ctx, "vocabulary_scan")
	defer span.End()

	vocab, err := e.index.Vocabulary(ctx)
	if err != nil {
		return nil, nil, 0, err
	}
	matches := index.NewMatches()
	var expanded []string
	for _, word := range vocab {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, fmt.Errorf("fuzzy scan interrupted after %d words: %w", len(expanded), err)
		}
		if !withinAny(word, terms, maxDistance) {
			continue
		}
		if err := e.index.Lookup(ctx, word, matches); err != nil {
			return nil, nil, 0, fmt.Errorf("looking up %q: %w", word, err)
		}
		expanded = append(expanded, word)
	}
	span.SetAttr("vocabulary", len(vocab))
	span.SetAttr("expanded", len(expanded))
	return matches, expanded, len(vocab), nil
}

func (e *Executor) finish(ctx context.Context, plan *parser.QueryPlan, mode string, matches index.Matches, limit int) (*SearchResult, error) {
	_, rank := tracing.StartChild(ctx, "rank")
	ranked := ranker.Rank(matches, e.weights, 0)
	total := len(ranked)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	rank.SetAttr("candidates", total)
	rank.End()

	_, hydrate := tracing.StartChild(ctx, "hydrate")
	hits, err := e.hydrate(ctx, ranked)
	hydrate.SetAttr("requested", len(ranked))
	hydrate.End()
	if err != nil {
		return nil, err
	}
	r := emptyResult(plan, mode)
	r.TotalHits = total
	r.Results = hits
	return r, nil
}

// hydrate resolves ranked ids in order. Ids present in postings but missing
// from the document store are skipped.
func (e *Executor) hydrate(ctx context.Context, ranked []ranker.ScoredDoc) ([]Hit, error) {
	hits := make([]Hit, 0, len(ranked))
	if len(ranked) == 0 {
		return hits, nil
	}
	ids := make([]string, len(ranked))
	for i, sd := range ranked {
		ids[i] = sd.DocID
	}
	docs, err := e.docs.GetMany(ctx, ids)
	if err != nil {
		if len(docs) == 0 {
			return nil, fmt.Errorf("hydrating results: %w", err)
		}
		e.logger.Warn("partial hydration", "requested", len(ids), "loaded", len(docs), "error", err)
	}
	for _, sd := range ranked {
		doc, ok := docs[sd.DocID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Document: *doc, Score: sd.Score})
	}
	return hits, nil
}

func withinAny(word string, terms []string, maxDistance int) bool {
	for _, t := range terms {
		if tokenizer.WithinDistance(word, t, maxDistance) {
			return true
		}
	}
	return false
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
