package xsd

import (
	"fmt"
	"log/slog"
	"sort"
)

// NamespaceConflict records a prefix that was declared for two URIs.
type NamespaceConflict struct {
	Prefix   string
	Existing string
	Rejected string
	Source   string
}

func (c NamespaceConflict) String() string {
	return fmt.Sprintf("prefix '%s' already bound to '%s'; ignoring '%s' from %s",
		c.Prefix, c.Existing, c.Rejected, c.Source)
}

// NamespaceRegistry is a bidirectional prefix/URI map. The first binding
// of a prefix wins; later conflicting bindings are recorded.
type NamespaceRegistry struct {
	byPrefix  map[string]string
	byURI     map[string]string
	conflicts []NamespaceConflict
	logger    *slog.Logger
}

// NewNamespaceRegistry creates an empty registry.
func NewNamespaceRegistry(logger *slog.Logger) *NamespaceRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &NamespaceRegistry{
		byPrefix: make(map[string]string),
		byURI:    make(map[string]string),
		logger:   logger,
	}
}

// Register binds prefix to uri. It returns false when the prefix was
// already bound to a different URI.
func (r *NamespaceRegistry) Register(prefix, uri, source string) bool {
	if existing, ok := r.byPrefix[prefix]; ok {
		if existing == uri {
			return true
		}
		conflict := NamespaceConflict{Prefix: prefix, Existing: existing, Rejected: uri, Source: source}
		r.conflicts = append(r.conflicts, conflict)
		r.logger.Warn("namespace prefix conflict",
			"prefix", prefix, "existing", existing, "rejected", uri, "source", source)
		return false
	}
	r.byPrefix[prefix] = uri
	if _, ok := r.byURI[uri]; !ok {
		r.byURI[uri] = prefix
	}
	return true
}

// URI returns the namespace bound to prefix.
func (r *NamespaceRegistry) URI(prefix string) (string, bool) {
	uri, ok := r.byPrefix[prefix]
	return uri, ok
}

// Prefix returns the first prefix bound to uri.
func (r *NamespaceRegistry) Prefix(uri string) (string, bool) {
	prefix, ok := r.byURI[uri]
	return prefix, ok
}

// Prefixes returns the registered prefixes in sorted order.
func (r *NamespaceRegistry) Prefixes() []string {
	out := make([]string, 0, len(r.byPrefix))
	for p := range r.byPrefix {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Conflicts returns the rejected bindings in registration order.
func (r *NamespaceRegistry) Conflicts() []NamespaceConflict {
	return append([]NamespaceConflict(nil), r.conflicts...)
}
