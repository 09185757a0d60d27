// Package parser turns a raw search string into the normalised word set the
// executor looks up.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/tokenizer"
)

type QueryPlan struct {
	// Terms are the distinct normalised query words in input order.
	Terms    []string
	RawQuery string
}

// Empty reports whether the query produced no searchable words.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:    make([]string, 0),
		RawQuery: query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	plan.Terms = tokenizer.UniqueWords(query)
	return plan
}
