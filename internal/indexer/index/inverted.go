// Package index maintains the per-field inverted index in the key-value
// store: one set of document ids per (field, word), and one set of words
// per document used to retract stale postings on re-index.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kvstore"
)

type Index struct {
	kv     kvstore.Store
	prefix string
	logger *slog.Logger
}

func New(kv kvstore.Store, prefix string) *Index {
	return &Index{
		kv:     kv,
		prefix: prefix,
		logger: slog.Default().With("component", "inverted-index"),
	}
}

func (ix *Index) postingPrefix() string {
	return ix.prefix + ":inverted_index:"
}

func (ix *Index) postingKey(f Field, word string) string {
	return ix.postingPrefix() + string(f) + ":" + word
}

func (ix *Index) docWordsKey(docID string) string {
	return ix.prefix + ":doc_words:" + docID
}

// Analyze tokenizes each field of a document.
func Analyze(title, content string, tags []string) FieldWords {
	return FieldWords{
		FieldTitle:   tokenizer.UniqueWords(title),
		FieldContent: tokenizer.UniqueWords(content),
		FieldTag:     tokenizer.UniqueWords(strings.Join(tags, " ")),
	}
}

// Index records the union of the document's words as its word set, then adds
// docID to the posting set of every word of every field. Postings left by a previous
// version of the document are retracted first, so a re-index never leaves
// ghost matches. Returns the number of distinct words indexed.
func (ix *Index) Index(ctx context.Context, docID, title, content string, tags []string) (int, error) {
	if err := ix.retract(ctx, docID); err != nil {
		return 0, err
	}

	words := Analyze(title, content, tags)
	union := words.Union()
	// The word set goes first so it covers any posting written before a
	// failure below.
	if len(union) > 0 {
		if err := ix.kv.SAdd(ctx, ix.docWordsKey(docID), union...); err != nil {
			return 0, fmt.Errorf("recording word set of %s: %w", docID, err)
		}
	}

	for _, f := range Fields {
		for _, w := range words[f] {
			if err := ix.kv.SAdd(ctx, ix.postingKey(f, w), docID); err != nil {
				return 0, fmt.Errorf("adding %s to posting %s:%s: %w", docID, f, w, err)
			}
		}
	}
	return len(union), nil
}

// retract removes docID from every posting set its previous word set could
// have touched, then drops the word set itself.
func (ix *Index) retract(ctx context.Context, docID string) error {
	prior, err := ix.kv.SMembers(ctx, ix.docWordsKey(docID))
	if err != nil {
		return fmt.Errorf("loading prior words of %s: %w", docID, err)
	}
	if len(prior) == 0 {
		return nil
	}
	var errs []error
	for _, w := range prior {
		for _, f := range Fields {
			if err := ix.kv.SRem(ctx, ix.postingKey(f, w), docID); err != nil {
				errs = append(errs, fmt.Errorf("retracting %s from %s:%s: %w", docID, f, w, err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if _, err := ix.kv.Del(ctx, ix.docWordsKey(docID)); err != nil {
		return fmt.Errorf("dropping word set of %s: %w", docID, err)
	}
	ix.logger.Debug("retracted stale postings", "doc_id", docID, "words", len(prior))
	return nil
}

// Posting returns the ids of documents containing word in field f. An absent
// posting is an empty result, never an error.
func (ix *Index) Posting(ctx context.Context, f Field, word string) ([]string, error) {
	ids, err := ix.kv.SMembers(ctx, ix.postingKey(f, word))
	if err != nil {
		return nil, fmt.Errorf("reading posting %s:%s: %w", f, word, err)
	}
	return ids, nil
}

// Lookup adds the postings of word in every field to m.
func (ix *Index) Lookup(ctx context.Context, word string, m Matches) error {
	for _, f := range Fields {
		ids, err := ix.Posting(ctx, f, word)
		if err != nil {
			return err
		}
		m.Add(f, ids)
	}
	return nil
}

// DocumentWords returns the word set recorded for docID.
func (ix *Index) DocumentWords(ctx context.Context, docID string) ([]string, error) {
	words, err := ix.kv.SMembers(ctx, ix.docWordsKey(docID))
	if err != nil {
		return nil, fmt.Errorf("reading word set of %s: %w", docID, err)
	}
	return words, nil
}

// Vocabulary enumerates the distinct words of every field by scanning the
// posting keys, sorted. Cost is proportional to the size of the index.
func (ix *Index) Vocabulary(ctx context.Context) ([]string, error) {
	base := ix.postingPrefix()
	seen := make(map[string]struct{})
	err := ix.kv.ScanKeys(ctx, base+"*", func(key string) error {
		rest := strings.TrimPrefix(key, base)
		_, word, ok := strings.Cut(rest, ":")
		if !ok || word == "" {
			return nil
		}
		seen[word] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating vocabulary: %w", err)
	}
	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	sort.Strings(words)
	return words, nil
}

// ClearAll removes every posting and document word set.
func (ix *Index) ClearAll(ctx context.Context) (int64, error) {
	var total int64
	var errs []error
	for _, pattern := range []string{ix.postingPrefix() + "*", ix.prefix + ":doc_words:*"} {
		n, err := kvstore.DeleteByPattern(ctx, ix.kv, pattern)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}
