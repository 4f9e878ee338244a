package spec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes spec-layer errors.
type ErrorCode string

const (
	// SpecUnreadable covers fetch failures and undecodable documents. It is
	// fatal to the load attempt that produced it.
	SpecUnreadable ErrorCode = "SpecUnreadable"
)

// Error is a structured spec-layer error with the source location attached.
type Error struct {
	Code     ErrorCode
	Message  string
	Location string
	Cause    error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Cause }

func unreadable(location, format string, args ...any) *Error {
	return &Error{Code: SpecUnreadable, Message: fmt.Sprintf(format, args...), Location: location}
}

// Document is a loaded specification: the typed OpenAPI view plus the raw
// decoded tree. References are NOT resolved at load time; $ref strings
// survive as data and are resolved lazily by the resolver. Immutable once
// loaded.
type Document struct {
	API      *openapi3.T
	Raw      map[string]any
	Location string
}

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds the fetch of a remote document.
	HTTPTimeout time.Duration
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{HTTPTimeout: 30 * time.Second}
}

// Option mutates Settings.
type Option func(*Settings)

// WithHTTPTimeout bounds the spec fetch.
func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }

// Load fetches and decodes a specification. location is an http(s) URL or a
// filesystem path. The body is decoded as JSON first, then as YAML; if both
// fail, or the fetch itself fails, the error carries SpecUnreadable.
//
// Each call re-fetches; there is no caching.
func Load(ctx context.Context, location string, opts ...Option) (*Document, error) {
	if strings.TrimSpace(location) == "" {
		return nil, unreadable(location, "spec: location is empty")
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	data, err := fetch(ctx, location, settings)
	if err != nil {
		return nil, err
	}

	api, raw, err := decode(data)
	if err != nil {
		return nil, &Error{Code: SpecUnreadable, Message: fmt.Sprintf("decode %s: %v", location, err), Location: location, Cause: err}
	}

	return &Document{API: api, Raw: raw, Location: location}, nil
}

func fetch(ctx context.Context, location string, settings Settings) ([]byte, error) {
	u, uerr := url.Parse(location)
	isURL := uerr == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""

	if isURL {
		client := &http.Client{Timeout: settings.HTTPTimeout}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, unreadable(location, "spec: build request: %v", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, &Error{Code: SpecUnreadable, Message: fmt.Sprintf("fetch %s: %v", location, err), Location: location, Cause: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, unreadable(location, "fetch %s: http %d", location, resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &Error{Code: SpecUnreadable, Message: fmt.Sprintf("read %s: %v", location, err), Location: location, Cause: err}
		}
		return body, nil
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return nil, &Error{Code: SpecUnreadable, Message: fmt.Sprintf("read file %s: %v", location, err), Location: location, Cause: err}
	}
	return data, nil
}

// decode tries JSON first and falls back to YAML. The typed view is built
// from the same bytes (via a JSON round-trip for YAML input) so that $ref
// strings stay untouched.
func decode(data []byte) (*openapi3.T, map[string]any, error) {
	var raw map[string]any
	jsonBytes := data
	if err := json.Unmarshal(data, &raw); err != nil {
		raw = nil
		if yerr := yaml.Unmarshal(data, &raw); yerr != nil {
			return nil, nil, fmt.Errorf("neither JSON nor YAML: %w", yerr)
		}
		jb, merr := json.Marshal(raw)
		if merr != nil {
			return nil, nil, fmt.Errorf("re-encode yaml document: %w", merr)
		}
		jsonBytes = jb
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("document is not a mapping")
	}

	var api openapi3.T
	if err := json.Unmarshal(jsonBytes, &api); err != nil {
		return nil, nil, fmt.Errorf("openapi structure: %w", err)
	}
	return &api, raw, nil
}

// Version returns the declared "openapi" version string, empty when absent.
func (d *Document) Version() string {
	if d == nil || d.API == nil {
		return ""
	}
	return strings.TrimSpace(d.API.OpenAPI)
}

// Title returns info.title, empty when absent.
func (d *Document) Title() string {
	if d == nil || d.API == nil || d.API.Info == nil {
		return ""
	}
	return strings.TrimSpace(d.API.Info.Title)
}

// APIVersion returns info.version, defaulting to "1.0.0".
func (d *Document) APIVersion() string {
	if d == nil || d.API == nil || d.API.Info == nil || strings.TrimSpace(d.API.Info.Version) == "" {
		return "1.0.0"
	}
	return strings.TrimSpace(d.API.Info.Version)
}

// Description returns info.description, empty when absent.
func (d *Document) Description() string {
	if d == nil || d.API == nil || d.API.Info == nil {
		return ""
	}
	return strings.TrimSpace(d.API.Info.Description)
}

// ServerURL returns the first declared server URL, or a placeholder when the
// document declares none.
func (d *Document) ServerURL() string {
	if d != nil && d.API != nil {
		for _, s := range d.API.Servers {
			if s != nil && strings.TrimSpace(s.URL) != "" {
				return strings.TrimSpace(s.URL)
			}
		}
	}
	return "https://api.example.com"
}

// PreferredServerURL returns the first https server when one exists, else the
// first declared server, else empty. Used to suggest a base URL for calls.
func (d *Document) PreferredServerURL() string {
	if d == nil || d.API == nil {
		return ""
	}
	var first string
	for _, s := range d.API.Servers {
		if s == nil || strings.TrimSpace(s.URL) == "" {
			continue
		}
		u := strings.TrimRight(strings.TrimSpace(s.URL), "/")
		if first == "" {
			first = u
		}
		if strings.HasPrefix(u, "https://") {
			return u
		}
	}
	return first
}

// extension looks a vendor extension up at the document root, then under
// info, then under components; first hit wins.
func (d *Document) extension(name string) (any, bool) {
	if d == nil || d.Raw == nil {
		return nil, false
	}
	if v, ok := d.Raw[name]; ok {
		return v, true
	}
	if info, ok := d.Raw["info"].(map[string]any); ok {
		if v, ok := info[name]; ok {
			return v, true
		}
	}
	if comps, ok := d.Raw["components"].(map[string]any); ok {
		if v, ok := comps[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// RetryLimit returns the x-ratelimit-retries extension value, default 3. The
// limit is exposed for callers' retry wrappers; the core never retries.
func (d *Document) RetryLimit() int {
	if v, ok := d.extension("x-ratelimit-retries"); ok {
		if n := cast.ToInt(v); n > 0 {
			return n
		}
	}
	return 3
}

// TimeoutSeconds returns the x-timeout extension value in seconds, default 60.
func (d *Document) TimeoutSeconds() int {
	if v, ok := d.extension("x-timeout"); ok {
		if n := cast.ToInt(v); n > 0 {
			return n
		}
	}
	return 60
}

// Timeout returns TimeoutSeconds as a duration.
func (d *Document) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds()) * time.Second
}
