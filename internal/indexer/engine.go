// Package indexer assembles the catalog search engine: the document store,
// the inverted index, the query executor and the suggestion dictionary, all
// sharing one key-value store handle. Each namespace is mutated separately;
// there is no transaction spanning them, so a failure part way through an
// operation leaves the earlier writes in place and is reported to the caller.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/suggest"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kvstore"
)

type Engine struct {
	kv      kvstore.Store
	docs    *docstore.Store
	index   *index.Index
	exec    *executor.Executor
	suggest *suggest.Store
	cfg     config.SearchConfig
	suggCfg config.SuggestConfig
	logger  *slog.Logger
}

// Stats summarises the engine contents.
type Stats struct {
	Documents   int   `json:"documents"`
	Suggestions int64 `json:"suggestions"`
	Vocabulary  int   `json:"vocabulary"`
}

func NewEngine(kv kvstore.Store, cfg config.SearchConfig, suggCfg config.SuggestConfig) *Engine {
	docs := docstore.New(kv, cfg.KeyPrefix)
	idx := index.New(kv, cfg.KeyPrefix)
	return &Engine{
		kv:      kv,
		docs:    docs,
		index:   idx,
		exec:    executor.New(idx, docs),
		suggest: suggest.New(kv, suggCfg.Key),
		cfg:     cfg,
		suggCfg: suggCfg,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// IndexDocument stores doc and indexes its title, content and tags. The
// document record is written first; if indexing then fails the record stays
// and the error says so.
func (e *Engine) IndexDocument(ctx context.Context, doc docstore.Document) error {
	if _, err := e.docs.Put(ctx, doc); err != nil {
		e.logger.Error("document store write failed", "doc_id", doc.ID, "error", err)
		return err
	}
	words, err := e.index.Index(ctx, doc.ID, doc.Title, doc.Content, doc.Tags)
	if err != nil {
		e.logger.Error("indexing failed after document was stored", "doc_id", doc.ID, "error", err)
		return fmt.Errorf("document %s stored but not indexed: %w", doc.ID, err)
	}
	e.logger.Debug("document indexed", "doc_id", doc.ID, "words", words)
	return nil
}

// IndexSuggestions feeds the phrases of text into the suggestion dictionary.
func (e *Engine) IndexSuggestions(ctx context.Context, text string, multiplier float64) (int, error) {
	n, err := e.suggest.IndexForSuggestions(ctx, text, multiplier)
	if err != nil {
		e.logger.Error("suggestion indexing failed", "added", n, "error", err)
	}
	return n, err
}

// AddSuggestion increments the score of a single term.
func (e *Engine) AddSuggestion(ctx context.Context, term string, weight float64) (float64, error) {
	return e.suggest.AddWithIncrement(ctx, term, weight)
}

// RemoveSuggestion deletes a term from the dictionary.
func (e *Engine) RemoveSuggestion(ctx context.Context, term string) (bool, error) {
	return e.suggest.Remove(ctx, term)
}

func (e *Engine) limit(limit int) int {
	if limit <= 0 {
		return e.cfg.DefaultLimit
	}
	return limit
}

// Search runs a full-text query ranked by field weights.
func (e *Engine) Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error) {
	res, err := e.exec.Execute(ctx, parser.Parse(query), e.limit(limit))
	if err != nil {
		e.logger.Error("search failed", "query", query, "error", err)
		return nil, err
	}
	return res, nil
}

// FuzzySearch matches query words against the whole vocabulary within
// maxDistance edits. The bound is the caller's to enforce; cost grows with
// vocabulary size and distance.
func (e *Engine) FuzzySearch(ctx context.Context, query string, maxDistance, limit int) (*executor.SearchResult, error) {
	res, err := e.exec.ExecuteFuzzy(ctx, parser.Parse(query), maxDistance, e.limit(limit))
	if err != nil {
		e.logger.Error("fuzzy search failed", "query", query, "max_distance", maxDistance, "error", err)
		return nil, err
	}
	return res, nil
}

// Suggest returns autocomplete terms for prefix with their scores.
func (e *Engine) Suggest(ctx context.Context, prefix string, limit int, fuzzy bool) ([]suggest.Suggestion, error) {
	if limit <= 0 {
		limit = e.suggCfg.DefaultLimit
	}
	out, err := e.suggest.Suggest(ctx, prefix, limit, fuzzy)
	if err != nil {
		e.logger.Error("suggest failed", "prefix", prefix, "error", err)
		return nil, err
	}
	return out, nil
}

// Document loads one stored document.
func (e *Engine) Document(ctx context.Context, id string) (*docstore.Document, error) {
	return e.docs.Get(ctx, id)
}

// DocumentWords returns the indexed word set of a document.
func (e *Engine) DocumentWords(ctx context.Context, id string) ([]string, error) {
	return e.index.DocumentWords(ctx, id)
}

// ClearAll wipes documents, postings and suggestions in that order. A reader
// running concurrently can observe a partially cleared engine. Every
// namespace is attempted even if an earlier one fails.
func (e *Engine) ClearAll(ctx context.Context) error {
	var errs []error
	docs, err := e.docs.ClearAll(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("clearing documents: %w", err))
	}
	postings, err := e.index.ClearAll(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("clearing index: %w", err))
	}
	if err := e.suggest.ClearAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		e.logger.Error("clear incomplete", "documents_deleted", docs, "index_keys_deleted", postings, "error", err)
		return err
	}
	e.logger.Info("engine cleared", "documents_deleted", docs, "index_keys_deleted", postings)
	return nil
}

// DocumentCount enumerates stored documents.
func (e *Engine) DocumentCount(ctx context.Context) (int, error) {
	return e.docs.Count(ctx)
}

// SuggestionCount returns the number of suggestion terms.
func (e *Engine) SuggestionCount(ctx context.Context) (int64, error) {
	return e.suggest.Len(ctx)
}

// Stats counts documents, suggestions and vocabulary words. The vocabulary
// count walks the whole index.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var err error
	if s.Documents, err = e.docs.Count(ctx); err != nil {
		return s, err
	}
	if s.Suggestions, err = e.suggest.Len(ctx); err != nil {
		return s, err
	}
	vocab, err := e.index.Vocabulary(ctx)
	if err != nil {
		return s, err
	}
	s.Vocabulary = len(vocab)
	return s, nil
}

// Ping checks the backing store.
func (e *Engine) Ping(ctx context.Context) error {
	return e.kv.Ping(ctx)
}
