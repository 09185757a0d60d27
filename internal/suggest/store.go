// Package suggest keeps the weighted autocomplete dictionary. Terms and
// scores live in one hash in the key-value store; every process also keeps a
// trie of that hash for prefix and fuzzy prefix lookups, rebuilt whenever a
// shared generation counter shows that someone else changed the hash.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kvstore"
)

// minFuzzyRunes is the shortest prefix that gets fuzzy matching. Below it
// every term is within one edit, so fuzzy falls back to plain prefix.
const minFuzzyRunes = 2

type Suggestion struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

type Store struct {
	kv     kvstore.Store
	key    string
	genKey string

	// mu serialises local writes with trie refreshes so the trie never
	// applies an older score over a newer one.
	mu     sync.Mutex
	trie   *trie
	gen    int64
	loaded bool

	logger *slog.Logger
}

func New(kv kvstore.Store, key string) *Store {
	return &Store{
		kv:     kv,
		key:    key,
		genKey: key + ":generation",
		trie:   newTrie(),
		logger: slog.Default().With("component", "suggest"),
	}
}

// Add stores term with weight, overwriting any previous score.
func (s *Store) Add(ctx context.Context, term string, weight float64) error {
	if term == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.HSet(ctx, s.key, map[string]string{term: formatScore(weight)}); err != nil {
		return fmt.Errorf("adding suggestion %q: %w", term, err)
	}
	s.bump(ctx, func(t *trie) { t.set(term, weight) })
	return nil
}

// AddWithIncrement adds weight to the score of term, inserting it when new,
// and returns the resulting score.
func (s *Store) AddWithIncrement(ctx context.Context, term string, weight float64) (float64, error) {
	if term == "" {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	score, err := s.kv.HIncrByFloat(ctx, s.key, term, weight)
	if err != nil {
		return 0, fmt.Errorf("incrementing suggestion %q: %w", term, err)
	}
	s.bump(ctx, func(t *trie) { t.set(term, score) })
	return score, nil
}

// IndexForSuggestions adds every suggestion phrase of text. Shorter phrases
// score higher: max(1, 5 - words) times multiplier. Returns how many phrases
// were added. A failed phrase does not stop the rest; every failure is joined
// into the returned error.
func (s *Store) IndexForSuggestions(ctx context.Context, text string, multiplier float64) (int, error) {
	added := 0
	var errs []error
	for _, phrase := range tokenizer.SuggestionPhrases(text) {
		words := strings.Count(phrase, " ") + 1
		base := max(1.0, 5.0-float64(words))
		if _, err := s.AddWithIncrement(ctx, phrase, base*multiplier); err != nil {
			errs = append(errs, err)
			continue
		}
		added++
	}
	return added, errors.Join(errs...)
}

// Remove deletes term and reports whether it existed.
func (s *Store) Remove(ctx context.Context, term string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.kv.HDel(ctx, s.key, term)
	if err != nil {
		return false, fmt.Errorf("removing suggestion %q: %w", term, err)
	}
	if n > 0 {
		s.bump(ctx, func(t *trie) { t.remove(term) })
	}
	return n > 0, nil
}

// Len returns the number of stored terms.
func (s *Store) Len(ctx context.Context) (int64, error) {
	n, err := s.kv.HLen(ctx, s.key)
	if err != nil {
		return 0, fmt.Errorf("counting suggestions: %w", err)
	}
	return n, nil
}

// ClearAll drops every term.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.kv.Del(ctx, s.key); err != nil {
		return fmt.Errorf("clearing suggestions: %w", err)
	}
	s.bump(ctx, func(t *trie) { t.reset() })
	return nil
}

// Suggest returns up to limit terms starting with prefix, matched as stored
// (callers normalise case). With fuzzy set, terms whose beginning is one edit
// away from prefix are included too. Exact prefix matches always come first,
// then higher scores, then alphabetical order. An empty prefix matches
// nothing.
func (s *Store) Suggest(ctx context.Context, prefix string, limit int, fuzzy bool) ([]Suggestion, error) {
	if prefix == "" || limit <= 0 {
		return []Suggestion{}, nil
	}
	t, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	exact := t.withPrefix(prefix)
	sortByScore(exact)
	out := make([]Suggestion, 0, min(limit, len(exact)))
	seen := make(map[string]struct{}, len(exact))
	for _, sg := range exact {
		if len(out) == limit {
			return out, nil
		}
		seen[sg.Term] = struct{}{}
		out = append(out, sg)
	}
	if !fuzzy || utf8.RuneCountInString(prefix) < minFuzzyRunes {
		return out, nil
	}

	near := t.withFuzzyPrefix(prefix)
	sortByScore(near)
	for _, sg := range near {
		if len(out) == limit {
			break
		}
		if _, dup := seen[sg.Term]; dup {
			continue
		}
		out = append(out, sg)
	}
	return out, nil
}

// current returns the trie, reloading it from the hash when the generation
// counter moved since the last load.
func (s *Store) current(ctx context.Context) (*trie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen, err := s.kv.GetInt(ctx, s.genKey)
	if err != nil {
		return nil, fmt.Errorf("reading suggestion generation: %w", err)
	}
	if s.loaded && gen == s.gen {
		return s.trie, nil
	}

	raw, err := s.kv.HGetAll(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("loading suggestions: %w", err)
	}
	t := newTrie()
	for term, v := range raw {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.logger.Warn("skipping suggestion with bad score", "term", term, "value", v)
			continue
		}
		t.set(term, score)
	}
	s.trie, s.gen, s.loaded = t, gen, true
	s.logger.Debug("suggestion trie rebuilt", "terms", t.len(), "generation", gen)
	return t, nil
}

// bump advances the generation after a local write. When nobody else wrote
// since our last load the change is applied to the trie in place; otherwise
// the trie is marked stale and reloaded on the next read. Must hold mu.
func (s *Store) bump(ctx context.Context, apply func(*trie)) {
	gen, err := s.kv.Incr(ctx, s.genKey)
	if err != nil {
		s.logger.Warn("generation bump failed", "error", err)
		s.loaded = false
		return
	}
	if s.loaded && gen == s.gen+1 {
		apply(s.trie)
		s.gen = gen
		return
	}
	s.loaded = false
}

func sortByScore(list []Suggestion) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].Term < list[j].Term
	})
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
