package suggest

import (
	"sort"
	"testing"
)

func sortedTerms(list []Suggestion) []string {
	out := terms(list)
	sort.Strings(out)
	return out
}

func TestTriePrefix(t *testing.T) {
	tr := newTrie()
	for _, w := range []string{"red", "red shoes", "reef", "blue"} {
		tr.set(w, 1)
	}
	got := sortedTerms(tr.withPrefix("re"))
	if len(got) != 3 || got[0] != "red" || got[1] != "red shoes" || got[2] != "reef" {
		t.Errorf("withPrefix(re) = %v", got)
	}
	if got := tr.withPrefix("x"); len(got) != 0 {
		t.Errorf("withPrefix(x) = %v", got)
	}
	if tr.len() != 4 {
		t.Errorf("len = %d", tr.len())
	}
	tr.set("red", 9)
	if tr.len() != 4 {
		t.Errorf("overwrite changed len to %d", tr.len())
	}
}

func TestTrieRemovePrunes(t *testing.T) {
	tr := newTrie()
	tr.set("red", 1)
	tr.set("redwood", 1)
	if !tr.remove("redwood") {
		t.Fatal("remove(redwood) = false")
	}
	if tr.remove("redwood") || tr.remove("re") {
		t.Error("removing an absent term reported success")
	}
	node := tr.root
	for _, ch := range "red" {
		node = node.children[ch]
	}
	if len(node.children) != 0 {
		t.Error("branch below red was not pruned")
	}
	if got := tr.withPrefix("red"); len(got) != 1 {
		t.Errorf("withPrefix(red) = %v", got)
	}
}

func TestTrieFuzzyPrefix(t *testing.T) {
	tr := newTrie()
	for _, w := range []string{"shirt", "skirt", "shoes", "boots"} {
		tr.set(w, 1)
	}
	tests := []struct {
		query string
		want  []string
	}{
		{"shirt", []string{"shirt", "skirt"}},
		{"shrt", []string{"shirt"}},
		{"sh", []string{"shirt", "shoes", "skirt"}},
		{"boot", []string{"boots"}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		got := sortedTerms(tr.withFuzzyPrefix(tt.query))
		if len(got) != len(tt.want) {
			t.Errorf("withFuzzyPrefix(%q) = %v, want %v", tt.query, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("withFuzzyPrefix(%q) = %v, want %v", tt.query, got, tt.want)
				break
			}
		}
	}
}
