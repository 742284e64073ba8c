package xsd

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// SchemaLoader reads schema documents and follows their imports and
// includes. Every location is parsed at most once, so a diamond-shaped
// import graph costs one parse per file.
type SchemaLoader struct {
	// Base directory for resolving relative paths
	BaseDir string

	// Whether to allow remote schema loading
	AllowRemote bool

	httpClient *http.Client
	logger     *slog.Logger

	// In-memory documents keyed by absolute location
	memory map[string][]byte

	loaded  map[string]*Schema
	order   []string
	loading []string
	cycles  [][]string
	issues  []SchemaIssue
}

// NewSchemaLoader creates a new schema loader
func NewSchemaLoader(baseDir string, logger *slog.Logger) *SchemaLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaLoader{
		BaseDir:    baseDir,
		httpClient: &http.Client{},
		logger:     logger,
		memory:     make(map[string][]byte),
		loaded:     make(map[string]*Schema),
	}
}

// AddMemory registers an in-memory document under location. Includes and
// imports of other documents resolve against it before the filesystem.
func (sl *SchemaLoader) AddMemory(location string, data []byte) (string, error) {
	abs, err := sl.resolveLocation(location)
	if err != nil {
		return "", err
	}
	sl.memory[abs] = data
	return abs, nil
}

// Load loads a schema and everything it imports or includes.
func (sl *SchemaLoader) Load(location string) (*Schema, error) {
	abs, err := sl.resolveLocation(location)
	if err != nil {
		return nil, &SchemaParseError{Path: location, Cause: err}
	}
	return sl.loadRecursive(abs)
}

// Schemas returns the loaded schemas in the order they were first parsed.
func (sl *SchemaLoader) Schemas() []*Schema {
	out := make([]*Schema, 0, len(sl.order))
	for _, loc := range sl.order {
		out = append(out, sl.loaded[loc])
	}
	return out
}

// Cycles returns the import/include cycles met while loading. Each cycle
// starts and ends with the same location.
func (sl *SchemaLoader) Cycles() [][]string { return sl.cycles }

// Issues returns the problems found in the loaded documents.
func (sl *SchemaLoader) Issues() []SchemaIssue { return sl.issues }

func (sl *SchemaLoader) loadRecursive(absLocation string) (*Schema, error) {
	// A location already on the stack closes a cycle; it is recorded and
	// not followed again.
	if idx := slices.Index(sl.loading, absLocation); idx >= 0 {
		cycle := append(slices.Clone(sl.loading[idx:]), absLocation)
		sl.cycles = append(sl.cycles, cycle)
		sl.logger.Debug("schema import cycle", "cycle", strings.Join(cycle, " -> "))
		return sl.loaded[absLocation], nil
	}
	if schema, ok := sl.loaded[absLocation]; ok {
		return schema, nil
	}

	sl.loading = append(sl.loading, absLocation)
	defer func() { sl.loading = sl.loading[:len(sl.loading)-1] }()

	doc, err := sl.loadDocument(absLocation)
	if err != nil {
		return nil, &SchemaParseError{Path: absLocation, Cause: err}
	}

	schema, issues, err := ParseSchema(doc, absLocation)
	if err != nil {
		return nil, &SchemaParseError{Path: absLocation, Cause: err}
	}
	sl.loaded[absLocation] = schema
	sl.order = append(sl.order, absLocation)
	sl.issues = append(sl.issues, issues...)
	sl.logger.Debug("parsed schema", "location", absLocation, "targetNamespace", schema.TargetNamespace)

	for _, imp := range schema.Imports {
		if imp.SchemaLocation == "" {
			continue
		}
		impLocation := sl.resolveRelative(imp.SchemaLocation, absLocation)
		if _, err := sl.loadRecursive(impLocation); err != nil {
			// Import failures are tolerated; the referenced types stay unresolved.
			sl.logger.Warn("failed to load imported schema",
				"schemaLocation", imp.SchemaLocation, "namespace", imp.Namespace, "error", err)
			sl.issues = append(sl.issues, SchemaIssue{
				Code:     CodeSchemaInvalid,
				Severity: SeverityWarning,
				Location: absLocation,
				Message:  fmt.Sprintf("failed to import %s: %v", imp.SchemaLocation, err),
			})
		}
	}

	for _, include := range schema.Includes {
		incLocation := sl.resolveRelative(include, absLocation)
		if _, err := sl.loadRecursive(incLocation); err != nil {
			return nil, fmt.Errorf("failed to include %s: %w", include, err)
		}
	}

	return schema, nil
}

// resolveLocation resolves a location to an absolute path or URL
func (sl *SchemaLoader) resolveLocation(location string) (string, error) {
	if isRemote(location) {
		if !sl.AllowRemote {
			return "", fmt.Errorf("remote schema loading is disabled")
		}
		return location, nil
	}
	if filepath.IsAbs(location) {
		return filepath.Clean(location), nil
	}
	if sl.BaseDir != "" {
		return filepath.Abs(filepath.Join(sl.BaseDir, location))
	}
	return filepath.Abs(location)
}

// resolveRelative resolves a relative location based on a base location
func (sl *SchemaLoader) resolveRelative(relative, base string) string {
	if filepath.IsAbs(relative) || isRemote(relative) {
		return relative
	}
	if isRemote(base) {
		baseURL, err := url.Parse(base)
		if err != nil {
			return relative
		}
		relURL, err := baseURL.Parse(relative)
		if err != nil {
			return relative
		}
		return relURL.String()
	}
	return filepath.Join(filepath.Dir(base), relative)
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// loadDocument loads an XML document from a location
func (sl *SchemaLoader) loadDocument(location string) (xmldom.Document, error) {
	var reader io.ReadCloser

	switch {
	case sl.memory[location] != nil:
		reader = io.NopCloser(bytes.NewReader(sl.memory[location]))
	case isRemote(location):
		if !sl.AllowRemote {
			return nil, fmt.Errorf("remote schema loading is disabled")
		}
		resp, err := sl.httpClient.Get(location)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", location, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, location)
		}
		reader = resp.Body
	default:
		file, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", location, err)
		}
		reader = file
	}
	defer reader.Close()

	doc, err := xmldom.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return doc, nil
}
