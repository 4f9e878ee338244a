// Package driver issues live HTTP calls against extracted endpoints. It
// substitutes path parameters, places query and header parameters, applies
// the resolved auth scheme, and decodes JSON responses.
package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/connectorkit/openapi2connector/internal/auth"
	"github.com/connectorkit/openapi2connector/internal/spec"
)

// ErrorCode classifies call failures.
type ErrorCode string

const (
	MissingPathParameter ErrorCode = "missing_path_parameter"
	TransportError       ErrorCode = "transport_error"
	HTTPError            ErrorCode = "http_error"
	DecodeError          ErrorCode = "decode_error"
)

// Error is a classified call failure.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// AsError unwraps a classified call failure, if err carries one.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Request describes one call to issue.
type Request struct {
	Endpoint spec.Endpoint
	BaseURL  string

	// Auth holds the transport placement computed for the active scheme.
	Auth auth.Application

	// Values supplies path, query, header, and cookie parameter values,
	// keyed by parameter name.
	Values map[string]string

	// Body is JSON-encoded for methods that carry one. Form, when set,
	// takes precedence and is sent urlencoded.
	Body any
	Form url.Values

	Timeout time.Duration
}

// Outcome is the result of a single call. A transport or setup failure is
// reported in Err with a zero StatusCode; an HTTP error status is a valid
// outcome, not an Err.
type Outcome struct {
	StatusCode int
	Body       any
	RawBody    []byte
	Err        error
}

// Success reports whether the call reached the server and returned 2xx.
func (o Outcome) Success() bool {
	return o.Err == nil && o.StatusCode >= 200 && o.StatusCode < 300
}

var bodyMethods = map[string]struct{}{
	http.MethodPost:  {},
	http.MethodPut:   {},
	http.MethodPatch: {},
}

// Call issues the request and decodes the response. Parameter validation
// happens before any network I/O.
func Call(ctx context.Context, client *http.Client, req Request) Outcome {
	target, err := buildURL(req)
	if err != nil {
		return Outcome{Err: err}
	}

	httpReq, err := buildRequest(ctx, req, target)
	if err != nil {
		return Outcome{Err: err}
	}

	if client == nil {
		client = &http.Client{}
	}
	if req.Timeout > 0 && client.Timeout == 0 {
		c := *client
		c.Timeout = req.Timeout
		client = &c
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return Outcome{Err: newError(TransportError, err, "%s %s", req.Endpoint.Method, target)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Outcome{StatusCode: resp.StatusCode, Err: newError(TransportError, err, "read response body")}
	}

	out := Outcome{StatusCode: resp.StatusCode, RawBody: raw}
	if isJSON(resp.Header.Get("Content-Type")) && len(raw) > 0 {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			out.Err = newError(DecodeError, err, "decode json response")
			return out
		}
		out.Body = decoded
	}
	return out
}

// buildURL substitutes path parameters into the endpoint path and joins it
// onto the base URL. A declared required path parameter with no value fails
// the call before any request is made.
func buildURL(req Request) (string, error) {
	path := req.Endpoint.Path
	for _, p := range req.Endpoint.Parameters {
		if p.In != "path" {
			continue
		}
		placeholder := "{" + p.Name + "}"
		val, ok := req.Values[p.Name]
		if !ok || val == "" {
			if p.Required || strings.Contains(path, placeholder) {
				return "", newError(MissingPathParameter, nil, "parameter %q has no value", p.Name)
			}
			continue
		}
		path = strings.ReplaceAll(path, placeholder, url.PathEscape(val))
	}
	if strings.Contains(path, "{") {
		return "", newError(MissingPathParameter, nil, "unresolved placeholder in path %q", path)
	}

	base := strings.TrimRight(req.BaseURL, "/")
	return base + "/" + strings.TrimLeft(path, "/"), nil
}

func buildRequest(ctx context.Context, req Request, target string) (*http.Request, error) {
	var body io.Reader
	contentType := ""
	if _, ok := bodyMethods[req.Endpoint.Method]; ok {
		switch {
		case len(req.Form) > 0:
			body = strings.NewReader(req.Form.Encode())
			contentType = "application/x-www-form-urlencoded"
		case req.Body != nil:
			encoded, err := json.Marshal(req.Body)
			if err != nil {
				return nil, newError(DecodeError, err, "encode request body")
			}
			body = bytes.NewReader(encoded)
			contentType = "application/json"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Endpoint.Method, target, body)
	if err != nil {
		return nil, newError(TransportError, err, "build request for %s", target)
	}

	query := httpReq.URL.Query()
	for _, p := range req.Endpoint.Parameters {
		val, ok := req.Values[p.Name]
		if !ok || val == "" {
			continue
		}
		switch p.In {
		case "query":
			query.Set(p.Name, val)
		case "header":
			httpReq.Header.Set(p.Name, val)
		case "cookie":
			httpReq.AddCookie(&http.Cookie{Name: p.Name, Value: val})
		}
	}

	for k, v := range req.Auth.Query {
		query.Set(k, v)
	}
	httpReq.URL.RawQuery = query.Encode()

	for k, v := range req.Auth.Header {
		httpReq.Header.Set(k, v)
	}
	if req.Auth.UseBasic {
		httpReq.SetBasicAuth(req.Auth.Username, req.Auth.Password)
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

func isJSON(contentType string) bool {
	mt := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
