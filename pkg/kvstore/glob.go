package kvstore

// Match reports whether key matches a Redis-style glob pattern supporting
// '*', '?' and '\' escapes. Unlike path.Match, '*' also crosses '/', which
// matters because document ids may embed image URLs.
func Match(pattern, key string) bool {
	p, k := 0, 0
	starP, starK := -1, 0
	for k < len(key) {
		if p < len(pattern) {
			switch c := pattern[p]; {
			case c == '*':
				starP, starK = p, k
				p++
				continue
			case c == '?':
				p++
				k++
				continue
			case c == '\\' && p+1 < len(pattern):
				if pattern[p+1] == key[k] {
					p += 2
					k++
					continue
				}
			case c == key[k]:
				p++
				k++
				continue
			}
		}
		if starP < 0 {
			return false
		}
		starK++
		p, k = starP+1, starK
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
