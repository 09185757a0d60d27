package index

// Field names an indexed document field. Each field has its own posting sets.
type Field string

const (
	FieldTitle   Field = "title"
	FieldContent Field = "content"
	FieldTag     Field = "tag"
)

// Fields lists every indexed field in scoring order.
var Fields = []Field{FieldTitle, FieldContent, FieldTag}

// FieldWords is the deduplicated word list of each field of one document.
type FieldWords map[Field][]string

// Union returns every distinct word across all fields.
func (fw FieldWords) Union() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range Fields {
		for _, w := range fw[f] {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}

// Matches holds the posting set of each field for one word or a union of
// words.
type Matches map[Field]map[string]struct{}

func NewMatches() Matches {
	m := make(Matches, len(Fields))
	for _, f := range Fields {
		m[f] = make(map[string]struct{})
	}
	return m
}

// Add merges ids into the posting set of field f.
func (m Matches) Add(f Field, ids []string) {
	set := m[f]
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// Has reports whether id is in the posting set of field f.
func (m Matches) Has(f Field, id string) bool {
	_, ok := m[f][id]
	return ok
}

// Candidates returns every id present in any field.
func (m Matches) Candidates() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, f := range Fields {
		for id := range m[f] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
