package executor

import (
	"context"
	"errors"
	"slices"
	"sort"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kvstore"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kvstore/kvstoretest"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/tracing"
)

type fixture struct {
	exec *Executor
	idx  *index.Index
	docs *docstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, kvstore.NewMemory())
}

func newFixtureOn(t *testing.T, kv kvstore.Store) *fixture {
	t.Helper()
	f := &fixture{idx: index.New(kv, "search"), docs: docstore.New(kv, "search")}
	f.exec = New(f.idx, f.docs)
	f.add(t, "A", "Blue Shirt", "cotton blue shirt", "clothing")
	f.add(t, "B", "Blue Jeans", "denim", "clothing")
	return f
}

func (f *fixture) add(t *testing.T, id, title, content string, tags ...string) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.docs.Put(ctx, docstore.Document{ID: id, Title: title, Content: content, Tags: tags}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.idx.Index(ctx, id, title, content, tags); err != nil {
		t.Fatal(err)
	}
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func TestExecuteRanksTitleAndContent(t *testing.T) {
	f := newFixture(t)
	res, err := f.exec.Execute(context.Background(), parser.Parse("blue"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(res.Results); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("results = %v, want [A B]", got)
	}
	if res.Results[0].Score != 4 || res.Results[1].Score != 3 {
		t.Errorf("scores = %v, %v; want 4, 3", res.Results[0].Score, res.Results[1].Score)
	}
	if res.Results[0].Title != "Blue Shirt" {
		t.Errorf("hit not hydrated: %+v", res.Results[0])
	}
	if res.TotalHits != 2 {
		t.Errorf("TotalHits = %d", res.TotalHits)
	}
}

func TestExecuteTagAndLimit(t *testing.T) {
	f := newFixture(t)
	res, _ := f.exec.Execute(context.Background(), parser.Parse("clothing"), 1)
	if len(res.Results) != 1 || res.Results[0].ID != "A" || res.Results[0].Score != 2 {
		t.Errorf("results = %+v", res.Results)
	}
	if res.TotalHits != 2 {
		t.Errorf("TotalHits = %d, want 2 before truncation", res.TotalHits)
	}
}

func TestExecuteEmptyQuery(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"", "  ", "x"} {
		res, err := f.exec.Execute(context.Background(), parser.Parse(q), 10)
		if err != nil {
			t.Fatalf("query %q: %v", q, err)
		}
		if len(res.Results) != 0 || res.Results == nil {
			t.Errorf("query %q: results = %v", q, res.Results)
		}
	}
}

func TestExecuteSkipsDocumentsMissingFromStore(t *testing.T) {
	f := newFixture(t)
	f.idx.Index(context.Background(), "ghost", "Blue Ghost", "", nil)
	res, _ := f.exec.Execute(context.Background(), parser.Parse("blue"), 10)
	for _, h := range res.Results {
		if h.ID == "ghost" {
			t.Error("unhydratable id returned")
		}
	}
	if len(res.Results) != 2 {
		t.Errorf("results = %v", ids(res.Results))
	}
}

func TestExecuteFuzzy(t *testing.T) {
	f := newFixture(t)
	res, err := f.exec.ExecuteFuzzy(context.Background(), parser.Parse("shrit"), 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(res.Results); len(got) != 1 || got[0] != "A" {
		t.Errorf("results = %v, want [A]", got)
	}
	if len(res.Expanded) != 1 || res.Expanded[0] != "shirt" {
		t.Errorf("expanded = %v", res.Expanded)
	}

	res, _ = f.exec.ExecuteFuzzy(context.Background(), parser.Parse("shrit"), 1, 10)
	if len(res.Results) != 0 {
		t.Errorf("distance 1 should not reach shirt: %v", ids(res.Results))
	}
}

func TestFuzzyDistanceZeroMatchesExact(t *testing.T) {
	f := newFixture(t)
	f.add(t, "C", "Denim Jacket", "blue denim", "outerwear")
	for _, q := range []string{"blue", "denim jacket", "nothing", "clothing shirt"} {
		exact, _ := f.exec.Execute(context.Background(), parser.Parse(q), 100)
		fuzzy, _ := f.exec.ExecuteFuzzy(context.Background(), parser.Parse(q), 0, 100)
		a, b := ids(exact.Results), ids(fuzzy.Results)
		sort.Strings(a)
		sort.Strings(b)
		if len(a) != len(b) {
			t.Errorf("query %q: exact %v vs fuzzy %v", q, a, b)
			continue
		}
		for i := range a {
			if a[i] != b[i] {
				t.Errorf("query %q: exact %v vs fuzzy %v", q, a, b)
				break
			}
		}
	}
}

func TestExecuteFuzzyHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.exec.ExecuteFuzzy(ctx, parser.Parse("blue"), 1, 10)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExecuteRecordsStageSpans(t *testing.T) {
	f := newFixture(t)

	ctx, root := tracing.StartRoot(context.Background(), "search")
	if _, err := f.exec.Execute(ctx, parser.Parse("blue"), 10); err != nil {
		t.Fatal(err)
	}
	ctx, fuzzyRoot := tracing.StartRoot(context.Background(), "fuzzy_search")
	if _, err := f.exec.ExecuteFuzzy(ctx, parser.Parse("bleu"), 2, 10); err != nil {
		t.Fatal(err)
	}

	names := func(s *tracing.Span) []string {
		var out []string
		for _, c := range s.Children() {
			out = append(out, c.Name)
		}
		return out
	}
	if got := names(root); !slices.Equal(got, []string{"lookup", "rank", "hydrate"}) {
		t.Errorf("exact spans = %v", got)
	}
	if got := names(fuzzyRoot); !slices.Equal(got, []string{"vocabulary_scan", "rank", "hydrate"}) {
		t.Errorf("fuzzy spans = %v", got)
	}
}

func TestHydrateKeepsLoadedDocuments(t *testing.T) {
	kv := kvstoretest.Wrap(kvstore.NewMemory())
	f := newFixtureOn(t, kv)
	kv.FailOn("HGetAll", "search:documents:B")

	res, err := f.exec.Execute(context.Background(), parser.Parse("blue"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(res.Results); !slices.Equal(got, []string{"A"}) {
		t.Errorf("results = %v, want [A]", got)
	}
	if res.TotalHits != 2 {
		t.Errorf("TotalHits = %d, want 2", res.TotalHits)
	}
}

func TestHydrateFailsWhenNothingLoads(t *testing.T) {
	kv := kvstoretest.Wrap(kvstore.NewMemory())
	f := newFixtureOn(t, kv)
	kv.FailOn("HGetAll", "search:documents:*")

	_, err := f.exec.Execute(context.Background(), parser.Parse("blue"), 10)
	if !errors.Is(err, kvstoretest.ErrInjected) {
		t.Fatalf("Execute error = %v, want injected failure", err)
	}
}
