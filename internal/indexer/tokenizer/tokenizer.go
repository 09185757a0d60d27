// Package tokenizer turns catalog text into index words and suggestion
// phrases. Input is NFKC-normalised and lower-cased first, so full-width
// and compatibility forms index the same as their plain ASCII spelling.
package tokenizer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// MinWordLen is the shortest word or suggestion token kept.
	MinWordLen = 2
	// MaxBigramLen and MaxTrigramLen cap suggestion phrases in runes.
	// Longer phrases are dropped, never truncated.
	MaxBigramLen  = 30
	MaxTrigramLen = 40
)

// Normalize applies the case folding shared by indexing and querying.
func Normalize(text string) string {
	return strings.ToLower(norm.NFKC.String(text))
}

// ExtractWords returns the runs of ASCII letters and digits in text that are
// at least MinWordLen long, lower-cased, in input order. Duplicates are kept.
func ExtractWords(text string) []string {
	text = Normalize(text)
	words := make([]string, 0, len(text)/6+1)
	start := -1
	for i := 0; i <= len(text); i++ {
		if i < len(text) && isASCIIAlnum(text[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if i-start >= MinWordLen {
				words = append(words, text[start:i])
			}
			start = -1
		}
	}
	return words
}

// UniqueWords is ExtractWords with duplicates removed, first occurrence wins.
func UniqueWords(text string) []string {
	words := ExtractWords(text)
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, w := range words {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// SuggestionPhrases splits short text into purely alphabetic tokens and
// returns every unigram, adjacent bigram and adjacent trigram, sorted and
// without duplicates. Blank input yields nil.
func SuggestionPhrases(text string) []string {
	text = Normalize(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var words []string
	for _, tok := range strings.FieldsFunc(text, isSuggestionSeparator) {
		if utf8.RuneCountInString(tok) >= MinWordLen && isAlpha(tok) {
			words = append(words, tok)
		}
	}

	set := make(map[string]struct{}, len(words)*3)
	for i, w := range words {
		set[w] = struct{}{}
		if i+1 < len(words) {
			if p := w + " " + words[i+1]; utf8.RuneCountInString(p) <= MaxBigramLen {
				set[p] = struct{}{}
			}
		}
		if i+2 < len(words) {
			if p := w + " " + words[i+1] + " " + words[i+2]; utf8.RuneCountInString(p) <= MaxTrigramLen {
				set[p] = struct{}{}
			}
		}
	}

	phrases := make([]string, 0, len(set))
	for p := range set {
		phrases = append(phrases, p)
	}
	sort.Strings(phrases)
	return phrases
}

func isASCIIAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func isSuggestionSeparator(r rune) bool {
	switch r {
	case '-', '_', ',', ';', '.', '!', '?', '(', ')':
		return true
	}
	return unicode.IsSpace(r)
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
