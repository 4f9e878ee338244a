// Package auth maps OpenAPI security schemes onto the connector's credential
// model: a declarative field list for the metadata descriptor, and a runtime
// application (headers, query, transport basic auth) for live calls. Both
// artifact generation and the request driver consume this one package.
package auth

import (
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/connectorkit/openapi2connector/internal/spec"
)

// Kind is the closed enumeration of supported scheme shapes, decided once at
// parse time so downstream logic switches on a tag instead of re-inspecting
// raw document shape.
type Kind int

const (
	KindUnknown Kind = iota
	KindAPIKey
	KindHTTPBasic
	KindHTTPBearer
	KindOAuthClientCredentials
	KindOAuthPassword
	KindOAuthAuthorizationCode
)

func (k Kind) String() string {
	switch k {
	case KindAPIKey:
		return "apiKey"
	case KindHTTPBasic:
		return "http/basic"
	case KindHTTPBearer:
		return "http/bearer"
	case KindOAuthClientCredentials:
		return "oauth2/clientCredentials"
	case KindOAuthPassword:
		return "oauth2/password"
	case KindOAuthAuthorizationCode:
		return "oauth2/authorizationCode"
	}
	return "unknown"
}

// OAuth reports whether the kind requires a token exchange.
func (k Kind) OAuth() bool {
	switch k {
	case KindOAuthClientCredentials, KindOAuthPassword, KindOAuthAuthorizationCode:
		return true
	}
	return false
}

// Scheme is one parsed security scheme.
type Scheme struct {
	Name        string
	Kind        Kind
	Description string

	// apiKey placement.
	ParamName string
	In        string // header|query|cookie

	// oauth2 flow endpoints.
	AuthorizationURL string
	TokenURL         string
	RefreshURL       string
	Scopes           map[string]string
}

// ParseSchemes classifies every declared security scheme, sorted by scheme
// name for deterministic ordering. Unrecognized shapes come back with
// KindUnknown rather than being dropped, so callers can report them.
func ParseSchemes(doc *spec.Document) []Scheme {
	if doc == nil || doc.API == nil || doc.API.Components == nil || len(doc.API.Components.SecuritySchemes) == 0 {
		return nil
	}

	names := make([]string, 0, len(doc.API.Components.SecuritySchemes))
	for name := range doc.API.Components.SecuritySchemes {
		names = append(names, name)
	}
	sort.Strings(names)

	schemes := make([]Scheme, 0, len(names))
	for _, name := range names {
		ref := doc.API.Components.SecuritySchemes[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		schemes = append(schemes, classify(name, ref.Value))
	}
	return schemes
}

func classify(name string, ss *openapi3.SecurityScheme) Scheme {
	s := Scheme{Name: name, Kind: KindUnknown, Description: strings.TrimSpace(ss.Description)}

	switch strings.ToLower(strings.TrimSpace(ss.Type)) {
	case "apikey":
		s.Kind = KindAPIKey
		s.ParamName = strings.TrimSpace(ss.Name)
		s.In = strings.TrimSpace(ss.In)
		if s.In == "" {
			s.In = "header"
		}
	case "http":
		switch strings.ToLower(strings.TrimSpace(ss.Scheme)) {
		case "basic":
			s.Kind = KindHTTPBasic
		case "bearer":
			s.Kind = KindHTTPBearer
		}
	case "oauth2":
		if ss.Flows == nil {
			break
		}
		// One flow per scheme, in priority order.
		switch {
		case ss.Flows.ClientCredentials != nil:
			s.Kind = KindOAuthClientCredentials
			s.TokenURL = ss.Flows.ClientCredentials.TokenURL
			s.RefreshURL = ss.Flows.ClientCredentials.RefreshURL
			s.Scopes = ss.Flows.ClientCredentials.Scopes
		case ss.Flows.Password != nil:
			s.Kind = KindOAuthPassword
			s.TokenURL = ss.Flows.Password.TokenURL
			s.RefreshURL = ss.Flows.Password.RefreshURL
			s.Scopes = ss.Flows.Password.Scopes
		case ss.Flows.AuthorizationCode != nil:
			s.Kind = KindOAuthAuthorizationCode
			s.AuthorizationURL = ss.Flows.AuthorizationCode.AuthorizationURL
			s.TokenURL = ss.Flows.AuthorizationCode.TokenURL
			s.RefreshURL = ss.Flows.AuthorizationCode.RefreshURL
			s.Scopes = ss.Flows.AuthorizationCode.Scopes
		}
	}
	return s
}

// ActiveScheme picks the scheme that governs a call to the endpoint:
// the operation's own security requirement when declared, else the
// document-level requirement, else the first declared scheme. nil means the
// call proceeds unauthenticated.
func ActiveScheme(doc *spec.Document, ep spec.Endpoint, schemes []Scheme) *Scheme {
	if len(schemes) == 0 {
		return nil
	}
	byName := make(map[string]*Scheme, len(schemes))
	for i := range schemes {
		byName[schemes[i].Name] = &schemes[i]
	}

	pick := func(reqs openapi3.SecurityRequirements) *Scheme {
		for _, req := range reqs {
			names := make([]string, 0, len(req))
			for name := range req {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if s, ok := byName[name]; ok {
					return s
				}
			}
		}
		return nil
	}

	if len(ep.Security) > 0 {
		if s := pick(ep.Security); s != nil {
			return s
		}
	}
	if doc != nil && doc.API != nil && len(doc.API.Security) > 0 {
		if s := pick(doc.API.Security); s != nil {
			return s
		}
	}
	return &schemes[0]
}
