package tokenizer

import "unicode/utf8"

// EditDistance returns the Levenshtein distance between a and b counted in
// runes, with unit cost for insertion, deletion and substitution. It is case
// sensitive; callers normalise first.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i, ca := range ra {
		diag := row[0]
		row[0] = i + 1
		for j, cb := range rb {
			cost := 1
			if ca == cb {
				cost = 0
			}
			above := row[j+1]
			row[j+1] = min(above+1, row[j]+1, diag+cost)
			diag = above
		}
	}
	return row[len(rb)]
}

// WithinDistance reports whether EditDistance(a, b) <= maxDist, skipping the
// table when the length difference alone already exceeds maxDist.
func WithinDistance(a, b string, maxDist int) bool {
	if maxDist < 0 {
		return false
	}
	diff := utf8.RuneCountInString(a) - utf8.RuneCountInString(b)
	if diff < 0 {
		diff = -diff
	}
	if diff > maxDist {
		return false
	}
	return EditDistance(a, b) <= maxDist
}
