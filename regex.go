package xsd

import (
	"regexp"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
)

// DefaultPatternCacheSize bounds the number of compiled pattern facets kept
const DefaultPatternCacheSize = 512

// PatternCache compiles XSD pattern facets into anchored Go regular
// expressions and keeps the most recently used ones. It is safe for
// concurrent use.
type PatternCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

type compiledPattern struct {
	re  *regexp.Regexp
	err error
}

// NewPatternCache creates a cache holding up to size compiled patterns.
func NewPatternCache(size int) *PatternCache {
	if size <= 0 {
		size = DefaultPatternCacheSize
	}
	return &PatternCache{cache: lru.New(size)}
}

// Compile returns the compiled form of an XSD pattern. Compilation
// failures are cached too.
func (pc *PatternCache) Compile(pattern string) (*regexp.Regexp, error) {
	pc.mu.Lock()
	if v, ok := pc.cache.Get(pattern); ok {
		pc.mu.Unlock()
		cp := v.(compiledPattern)
		return cp.re, cp.err
	}
	pc.mu.Unlock()

	re, err := regexp.Compile("^(?:" + translateXSDRegex(pattern) + ")$")

	pc.mu.Lock()
	pc.cache.Add(pattern, compiledPattern{re: re, err: err})
	pc.mu.Unlock()
	return re, err
}

// Len returns the number of cached patterns.
func (pc *PatternCache) Len() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.cache.Len()
}

const (
	nameStartChars = `_:A-Za-z\x{C0}-\x{D6}\x{D8}-\x{F6}\x{F8}-\x{2FF}\x{370}-\x{37D}\x{37F}-\x{1FFF}`
	nameChars      = nameStartChars + `\-.0-9\x{B7}`
)

// translateXSDRegex rewrites the XSD regular expression dialect into RE2.
// XSD has no anchors, so ^ and $ are literals outside character classes;
// \i and \c are the XML name character classes.
func translateXSDRegex(pattern string) string {
	var b strings.Builder
	inClass := false
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			next := runes[i+1]
			i++
			switch next {
			case 'i', 'c', 'I', 'C':
				set := nameStartChars
				if next == 'c' || next == 'C' {
					set = nameChars
				}
				negate := next == 'I' || next == 'C'
				switch {
				case inClass && !negate:
					b.WriteString(set)
				case negate:
					b.WriteString("[^" + set + "]")
				default:
					b.WriteString("[" + set + "]")
				}
			default:
				b.WriteRune('\\')
				b.WriteRune(next)
			}
		case r == '[' && !inClass:
			inClass = true
			b.WriteRune(r)
			if i+1 < len(runes) && runes[i+1] == '^' {
				b.WriteRune('^')
				i++
			}
		case r == ']' && inClass:
			inClass = false
			b.WriteRune(r)
		case (r == '^' || r == '$') && !inClass:
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
