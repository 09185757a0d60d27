package suggest

import "sync"

// maxFuzzyEdits bounds the fuzzy prefix walk.
const maxFuzzyEdits = 1

type trieNode struct {
	children    map[rune]*trieNode
	childrenArr []rune
	isEnd       bool
	term        string
	score       float64
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

// trie indexes suggestion terms by rune for prefix and fuzzy prefix lookup.
type trie struct {
	mu   sync.RWMutex
	root *trieNode
	size int
}

func newTrie() *trie {
	return &trie{root: newTrieNode()}
}

// set stores term with score, replacing any previous score.
func (t *trie) set(term string, score float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	node := t.root
	for _, ch := range term {
		child, ok := node.children[ch]
		if !ok {
			child = newTrieNode()
			node.children[ch] = child
			node.childrenArr = append(node.childrenArr, ch)
		}
		node = child
	}
	if !node.isEnd {
		t.size++
	}
	node.isEnd = true
	node.term = term
	node.score = score
}

// remove unmarks term and prunes nodes left without terms. It reports
// whether the term was present.
func (t *trie) remove(term string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	runes := []rune(term)
	node := t.root
	for _, ch := range runes {
		child, ok := node.children[ch]
		if !ok {
			return false
		}
		node = child
	}
	if !node.isEnd {
		return false
	}
	removeNode(t.root, runes, 0)
	t.size--
	return true
}

// removeNode returns true when the caller should drop its reference.
func removeNode(node *trieNode, runes []rune, depth int) bool {
	if depth == len(runes) {
		node.isEnd = false
		node.term = ""
		node.score = 0
	} else {
		ch := runes[depth]
		if removeNode(node.children[ch], runes, depth+1) {
			delete(node.children, ch)
			for i, c := range node.childrenArr {
				if c == ch {
					node.childrenArr = append(node.childrenArr[:i], node.childrenArr[i+1:]...)
					break
				}
			}
		}
	}
	return !node.isEnd && len(node.children) == 0
}

func (t *trie) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = newTrieNode()
	t.size = 0
}

func (t *trie) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// withPrefix returns every term starting with prefix.
func (t *trie) withPrefix(prefix string) []Suggestion {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node := t.root
	for _, ch := range prefix {
		child, ok := node.children[ch]
		if !ok {
			return nil
		}
		node = child
	}
	var out []Suggestion
	collect(node, &out)
	return out
}

// withFuzzyPrefix returns every term that has some prefix within
// maxFuzzyEdits insertions, deletions or substitutions of query. It walks
// the trie carrying one Levenshtein row per depth and prunes a branch once
// every cell of its row exceeds the bound.
func (t *trie) withFuzzyPrefix(query string) []Suggestion {
	t.mu.RLock()
	defer t.mu.RUnlock()
	q := []rune(query)
	row := make([]int, len(q)+1)
	for j := range row {
		row[j] = j
	}
	var out []Suggestion
	if row[len(q)] <= maxFuzzyEdits {
		collect(t.root, &out)
		return out
	}
	for _, ch := range t.root.childrenArr {
		fuzzyWalk(t.root.children[ch], ch, q, row, &out)
	}
	return out
}

func fuzzyWalk(node *trieNode, ch rune, q []rune, prev []int, out *[]Suggestion) {
	row := make([]int, len(prev))
	row[0] = prev[0] + 1
	best := row[0]
	for j := 1; j < len(row); j++ {
		cost := 1
		if q[j-1] == ch {
			cost = 0
		}
		row[j] = min(prev[j]+1, row[j-1]+1, prev[j-1]+cost)
		best = min(best, row[j])
	}
	if row[len(q)] <= maxFuzzyEdits {
		// the path to this node is close enough, so is every term below it
		collect(node, out)
		return
	}
	if best > maxFuzzyEdits {
		return
	}
	for _, c := range node.childrenArr {
		fuzzyWalk(node.children[c], c, q, row, out)
	}
}

// collect gathers the terms under root breadth first.
func collect(root *trieNode, out *[]Suggestion) {
	queue := []*trieNode{root}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if curr.isEnd {
			*out = append(*out, Suggestion{Term: curr.term, Score: curr.score})
		}
		for _, ch := range curr.childrenArr {
			queue = append(queue, curr.children[ch])
		}
	}
}
