package spec

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"
)

// Normalized model produced by the extractor and consumed by the emitters
// and the request driver.

// Endpoint is one (path, HTTP method) operation. Instances are built once
// per extraction pass and never mutated afterwards.
type Endpoint struct {
	ID          string // sanitized "method_path" identifier
	Name        string // operationId, or "METHOD path" when absent
	Path        string
	Method      string // upper-case HTTP method
	Summary     string
	Description string
	OperationID string
	Parameters  []Parameter

	// Request body (application/json only). Either a component schema name
	// or the inline schema node.
	RequestModel  string
	RequestInline *openapi3.SchemaRef

	// First 2xx response (lowest status code). ResponseType is "object",
	// "array", or the inline schema's declared type.
	ResponseModel  string
	ResponseType   string
	ResponseInline *openapi3.SchemaRef

	// Operation-level security requirements; nil means "inherit document".
	Security openapi3.SecurityRequirements
}

// Parameter describes one declared parameter after path/operation merging
// and component-reference resolution.
type Parameter struct {
	Name        string
	In          string // path|query|header|cookie
	Required    bool
	Type        string // resolved schema type, "string" when undeclared
	Enum        []any
	Description string

	// Schema keeps the raw node so artifact generation can chase refs.
	Schema *openapi3.SchemaRef
}

// Selection restricts which (path, method) pairs participate in extraction
// and artifact generation. A nil Selection means "all".
type Selection map[string]struct{}

func selectionKey(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

// NewSelection builds a Selection from "METHOD /path" strings. Malformed
// entries are ignored.
func NewSelection(pairs []string) Selection {
	if len(pairs) == 0 {
		return nil
	}
	sel := make(Selection, len(pairs))
	for _, p := range pairs {
		fields := strings.Fields(p)
		if len(fields) != 2 {
			continue
		}
		sel[selectionKey(fields[0], fields[1])] = struct{}{}
	}
	if len(sel) == 0 {
		return nil
	}
	return sel
}

// Contains reports whether the pair is selected. A nil Selection selects
// everything.
func (s Selection) Contains(method, path string) bool {
	if s == nil {
		return true
	}
	_, ok := s[selectionKey(method, path)]
	return ok
}

// Property is one flattened schema property.
type Property struct {
	Name        string
	Type        string
	Required    bool
	Description string
	Enum        []any

	// Ref names the component schema when the property is itself a $ref.
	Ref string

	// Array items: ItemsType is "reference" or the items' scalar type.
	ItemsType string
	ItemsRef  string

	// One level of inline object properties.
	ObjectProperties []Property
}

// Properties is an insertion-ordered property map. Overwriting an existing
// name keeps its original position, so later composition branches replace
// earlier definitions in place (last-write-wins).
type Properties struct {
	names  []string
	byName map[string]Property
}

func (p *Properties) set(prop Property) {
	if p.byName == nil {
		p.byName = make(map[string]Property)
	}
	if _, ok := p.byName[prop.Name]; !ok {
		p.names = append(p.names, prop.Name)
	}
	p.byName[prop.Name] = prop
}

// Len returns the number of properties.
func (p *Properties) Len() int { return len(p.names) }

// Names returns property names in insertion order.
func (p *Properties) Names() []string { return append([]string(nil), p.names...) }

// Get looks a property up by name.
func (p *Properties) Get(name string) (Property, bool) {
	prop, ok := p.byName[name]
	return prop, ok
}

// All returns properties in insertion order.
func (p *Properties) All() []Property {
	out := make([]Property, 0, len(p.names))
	for _, n := range p.names {
		out = append(out, p.byName[n])
	}
	return out
}

var (
	nonIdentRe = regexp.MustCompile(`[^a-zA-Z0-9_\s]`)
	spacesRe   = regexp.MustCompile(`\s+`)
)

// SanitizeName lowercases a display name into an identifier: special
// characters removed, runs of whitespace collapsed to underscores.
func SanitizeName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "api"
	}
	s := nonIdentRe.ReplaceAllString(name, "")
	s = spacesRe.ReplaceAllString(s, "_")
	return strings.ToLower(s)
}

// TitleName uppercases the first letter of every word in a sanitized name,
// where a word starts after any non-letter ("petstore_api" becomes
// "Petstore_Api"). Used for human-readable display names.
func TitleName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}

// sortedKeys returns a map's keys in ascending order, for deterministic
// iteration over document maps.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
