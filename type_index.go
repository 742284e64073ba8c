package xsd

import (
	"sort"

	"golang.org/x/text/cases"
)

// TypeCategory classifies an index entry
type TypeCategory string

const (
	CategoryComplexType    TypeCategory = "complex_type"
	CategorySimpleType     TypeCategory = "simple_type"
	CategoryElement        TypeCategory = "element"
	CategoryAttribute      TypeCategory = "attribute"
	CategoryGroup          TypeCategory = "group"
	CategoryAttributeGroup TypeCategory = "attribute_group"
)

// TypeIndexEntry is one top-level component known to the repository
type TypeIndexEntry struct {
	Name       QName
	Category   TypeCategory
	Definition Node
	Namespace  string
	SchemaFile string
}

// TypeIndex maps Clark-notation names to top-level schema components.
// Types, elements and groups live in separate symbol spaces, so the same
// name may be registered once per category.
type TypeIndex struct {
	entries map[TypeCategory]map[string]*TypeIndexEntry
}

// NewTypeIndex creates an empty index.
func NewTypeIndex() *TypeIndex {
	return &TypeIndex{
		entries: make(map[TypeCategory]map[string]*TypeIndexEntry),
	}
}

// Add registers an entry. The first registration of a name wins.
func (ti *TypeIndex) Add(entry *TypeIndexEntry) bool {
	space := ti.entries[entry.Category]
	if space == nil {
		space = make(map[string]*TypeIndexEntry)
		ti.entries[entry.Category] = space
	}
	key := entry.Name.Clark()
	if _, exists := space[key]; exists {
		return false
	}
	space[key] = entry
	return true
}

// Get returns the entry for name in one category.
func (ti *TypeIndex) Get(name QName, category TypeCategory) (*TypeIndexEntry, bool) {
	entry, ok := ti.entries[category][name.Clark()]
	return entry, ok
}

// lookupOrder is the precedence used when a lookup names no category.
var lookupOrder = []TypeCategory{
	CategoryComplexType,
	CategorySimpleType,
	CategoryElement,
	CategoryGroup,
	CategoryAttributeGroup,
	CategoryAttribute,
}

// Lookup finds name in any category, types first.
func (ti *TypeIndex) Lookup(name QName) (*TypeIndexEntry, bool) {
	for _, category := range lookupOrder {
		if entry, ok := ti.Get(name, category); ok {
			return entry, true
		}
	}
	return nil, false
}

// Len returns the number of entries in all categories.
func (ti *TypeIndex) Len() int {
	n := 0
	for _, space := range ti.entries {
		n += len(space)
	}
	return n
}

// Entries returns all entries, optionally restricted to a namespace and a
// category (empty strings match everything), sorted by Clark name.
func (ti *TypeIndex) Entries(namespace *string, category TypeCategory) []*TypeIndexEntry {
	var out []*TypeIndexEntry
	for cat, space := range ti.entries {
		if category != "" && cat != category {
			continue
		}
		for _, entry := range space {
			if namespace != nil && entry.Namespace != *namespace {
				continue
			}
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Name.Clark(), out[j].Name.Clark()
		if ki != kj {
			return ki < kj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Suggestion is a fuzzy match for an unresolved name
type Suggestion struct {
	Name       QName
	Similarity float64
}

// Suggest returns up to limit entries whose local name is at least
// threshold similar to local, best first.
func (ti *TypeIndex) Suggest(local string, threshold float64, limit int) []Suggestion {
	// A Caser is stateful; each call gets its own.
	fold := cases.Fold()
	target := fold.String(local)
	best := make(map[string]Suggestion)
	for _, space := range ti.entries {
		for key, entry := range space {
			score := similarity(target, fold.String(entry.Name.Local))
			if score < threshold {
				continue
			}
			if prev, ok := best[key]; !ok || score > prev.Similarity {
				best[key] = Suggestion{Name: entry.Name, Similarity: score}
			}
		}
	}

	out := make([]Suggestion, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Name.Clark() < out[j].Name.Clark()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// similarity is 1 - editDistance/maxLen over runes.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(ra, rb))/float64(longest)
}

// levenshteinDistance calculates edit distance between two rune slices
func levenshteinDistance(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	cur := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		cur[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			cur[j] = min(
				prev[j]+1,      // deletion
				cur[j-1]+1,     // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, cur = cur, prev
	}
	return prev[len(s2)]
}
