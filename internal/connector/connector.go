// Package connector ties loading, extraction, auth, emission, and calling
// together behind one facade used by the CLI.
package connector

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/connectorkit/openapi2connector/internal/auth"
	"github.com/connectorkit/openapi2connector/internal/driver"
	"github.com/connectorkit/openapi2connector/internal/emit"
	"github.com/connectorkit/openapi2connector/internal/spec"
)

// Resolution is a loaded document with its extracted endpoints and parsed
// auth schemes.
type Resolution struct {
	Document  *spec.Document
	APIName   string
	Endpoints []spec.Endpoint
	Schemes   []auth.Scheme
}

// Options tunes resolution and artifact building.
type Options struct {
	// Name overrides the API identifier derived from the document title.
	Name string

	HTTPTimeout time.Duration
}

// ResolveEndpoints loads the document at location and extracts the selected
// endpoints. A nil selection extracts everything.
func ResolveEndpoints(ctx context.Context, location string, sel spec.Selection, opts Options) (*Resolution, error) {
	var loadOpts []spec.Option
	if opts.HTTPTimeout > 0 {
		loadOpts = append(loadOpts, spec.WithHTTPTimeout(opts.HTTPTimeout))
	}
	doc, err := spec.Load(ctx, location, loadOpts...)
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = doc.Title()
	}

	return &Resolution{
		Document:  doc,
		APIName:   spec.SanitizeName(name),
		Endpoints: spec.Extract(doc, sel),
		Schemes:   auth.ParseSchemes(doc),
	}, nil
}

// BaseURL returns the server URL calls should target, preferring https
// servers when the document declares several.
func (r *Resolution) BaseURL() string {
	if u := r.Document.PreferredServerURL(); u != "" {
		return u
	}
	return r.Document.ServerURL()
}

// Artifacts holds the two generated output documents.
type Artifacts struct {
	Metadata []byte
	Schema   []byte
}

// BuildArtifacts renders the metadata descriptor and the schema document for
// a resolution.
func BuildArtifacts(r *Resolution, allSchemas bool) (Artifacts, error) {
	model := emit.Model{
		Doc:        r.Document,
		APIName:    r.APIName,
		Endpoints:  r.Endpoints,
		Schemes:    r.Schemes,
		AllSchemas: allSchemas,
	}

	meta, err := emit.Metadata(model).JSON()
	if err != nil {
		return Artifacts{}, err
	}
	schema, err := emit.SchemaDoc(model)
	if err != nil {
		return Artifacts{}, err
	}
	return Artifacts{Metadata: meta, Schema: schema}, nil
}

// CallInput parameterizes one live call.
type CallInput struct {
	Endpoint spec.Endpoint
	BaseURL  string

	// Credentials supplies auth material keyed by the field names the
	// metadata descriptor declares (apitoken, username, password, clientId,
	// clientSecret, tokenUrl).
	Credentials map[string]string

	// Values supplies endpoint parameter values by name.
	Values map[string]string

	Body    any
	Timeout time.Duration
}

// IssueCall resolves the endpoint's governing auth scheme, exchanges an
// OAuth token when the scheme needs one, and issues the request. Token
// exchange failures are reported in the outcome, not as a panic or a
// separate error path.
func (r *Resolution) IssueCall(ctx context.Context, client *http.Client, in CallInput) driver.Outcome {
	scheme := auth.ActiveScheme(r.Document, in.Endpoint, r.Schemes)

	var token *auth.Token
	if scheme != nil && scheme.Kind.OAuth() {
		// Credential keys mirror the descriptor's declared field names; a
		// supplied tokenUrl overrides the scheme's flow endpoint.
		tokenURL := in.Credentials["tokenUrl"]
		if tokenURL == "" {
			tokenURL = scheme.TokenURL
		}
		var err error
		token, err = auth.ExchangeToken(ctx, client, tokenURL,
			in.Credentials["clientId"], in.Credentials["clientSecret"])
		if err != nil {
			return driver.Outcome{Err: err}
		}
	}

	baseURL := in.BaseURL
	if baseURL == "" {
		baseURL = r.BaseURL()
	}
	timeout := in.Timeout
	if timeout == 0 {
		timeout = r.Document.Timeout()
	}

	return driver.Call(ctx, client, driver.Request{
		Endpoint: in.Endpoint,
		BaseURL:  baseURL,
		Auth:     auth.Apply(scheme, in.Credentials, token),
		Values:   in.Values,
		Body:     in.Body,
		Timeout:  timeout,
	})
}

// CallResult pairs an endpoint with its outcome.
type CallResult struct {
	Endpoint spec.Endpoint
	Outcome  driver.Outcome
}

// CallAll issues one call per resolved endpoint, in deterministic order.
// One endpoint's failure never aborts the batch.
func (r *Resolution) CallAll(ctx context.Context, client *http.Client, in CallInput) []CallResult {
	endpoints := append([]spec.Endpoint(nil), r.Endpoints...)
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].ID < endpoints[j].ID })

	results := make([]CallResult, 0, len(endpoints))
	for _, ep := range endpoints {
		epIn := in
		epIn.Endpoint = ep
		results = append(results, CallResult{Endpoint: ep, Outcome: r.IssueCall(ctx, client, epIn)})
	}
	return results
}
