package driver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectorkit/openapi2connector/internal/auth"
	"github.com/connectorkit/openapi2connector/internal/spec"
)

func getUserEndpoint() spec.Endpoint {
	return spec.Endpoint{
		ID:     "get_usersid",
		Path:   "/users/{id}",
		Method: http.MethodGet,
		Parameters: []spec.Parameter{
			{Name: "id", In: "path", Required: true, Type: "string"},
			{Name: "verbose", In: "query", Type: "boolean"},
			{Name: "X-Tenant", In: "header", Type: "string"},
		},
	}
}

func TestCallSubstitutesPathParameters(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "42", "name": "Ada"}`))
	}))
	defer srv.Close()

	out := Call(context.Background(), srv.Client(), Request{
		Endpoint: getUserEndpoint(),
		BaseURL:  srv.URL,
		Values:   map[string]string{"id": "42", "verbose": "true", "X-Tenant": "acme"},
	})

	require.NoError(t, out.Err)
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.True(t, out.Success())

	require.NotNil(t, got)
	assert.Equal(t, "/users/42", got.URL.Path)
	assert.Equal(t, "true", got.URL.Query().Get("verbose"))
	assert.Equal(t, "acme", got.Header.Get("X-Tenant"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))

	body, ok := out.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ada", body["name"])
}

func TestCallMissingPathParameterIssuesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	out := Call(context.Background(), srv.Client(), Request{
		Endpoint: getUserEndpoint(),
		BaseURL:  srv.URL,
		Values:   map[string]string{"verbose": "true"},
	})

	require.Error(t, out.Err)
	de, ok := AsError(out.Err)
	require.True(t, ok)
	assert.Equal(t, MissingPathParameter, de.Code)
	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, out.Success())
}

func TestCallJSONBody(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	out := Call(context.Background(), srv.Client(), Request{
		Endpoint: spec.Endpoint{Path: "/users", Method: http.MethodPost},
		BaseURL:  srv.URL,
		Body:     map[string]any{"name": "Ada"},
	})

	require.NoError(t, out.Err)
	assert.Equal(t, http.StatusCreated, out.StatusCode)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"name": "Ada"}`, string(gotBody))
}

func TestCallFormBodyTakesPrecedence(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	out := Call(context.Background(), srv.Client(), Request{
		Endpoint: spec.Endpoint{Path: "/token", Method: http.MethodPost},
		BaseURL:  srv.URL,
		Body:     map[string]any{"ignored": true},
		Form:     url.Values{"grant_type": {"client_credentials"}},
	})

	require.NoError(t, out.Err)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "grant_type=client_credentials", string(gotBody))
}

func TestCallGetNeverSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
	}))
	defer srv.Close()

	out := Call(context.Background(), srv.Client(), Request{
		Endpoint: spec.Endpoint{Path: "/users", Method: http.MethodGet},
		BaseURL:  srv.URL,
		Body:     map[string]any{"name": "Ada"},
	})
	require.NoError(t, out.Err)
}

func TestCallAppliesAuth(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
	}))
	defer srv.Close()

	out := Call(context.Background(), srv.Client(), Request{
		Endpoint: spec.Endpoint{Path: "/things", Method: http.MethodGet},
		BaseURL:  srv.URL,
		Auth: auth.Application{
			Header: map[string]string{"X-Api-Key": "secret"},
			Query:  map[string]string{"key": "qsecret"},
		},
	})

	require.NoError(t, out.Err)
	assert.Equal(t, "secret", got.Header.Get("X-Api-Key"))
	assert.Equal(t, "qsecret", got.URL.Query().Get("key"))
}

func TestCallBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "u", user)
		assert.Equal(t, "p", pass)
	}))
	defer srv.Close()

	out := Call(context.Background(), srv.Client(), Request{
		Endpoint: spec.Endpoint{Path: "/", Method: http.MethodGet},
		BaseURL:  srv.URL,
		Auth:     auth.Application{UseBasic: true, Username: "u", Password: "p"},
	})
	require.NoError(t, out.Err)
}

func TestCallHTTPErrorIsAnOutcomeNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": "forbidden"}`))
	}))
	defer srv.Close()

	out := Call(context.Background(), srv.Client(), Request{
		Endpoint: spec.Endpoint{Path: "/secret", Method: http.MethodGet},
		BaseURL:  srv.URL,
	})

	require.NoError(t, out.Err)
	assert.Equal(t, http.StatusForbidden, out.StatusCode)
	assert.False(t, out.Success())
	body, ok := out.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "forbidden", body["error"])
}

func TestCallTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	out := Call(context.Background(), &http.Client{}, Request{
		Endpoint: spec.Endpoint{Path: "/x", Method: http.MethodGet},
		BaseURL:  srv.URL,
	})

	require.Error(t, out.Err)
	de, ok := AsError(out.Err)
	require.True(t, ok)
	assert.Equal(t, TransportError, de.Code)
}

func TestCallDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	out := Call(context.Background(), srv.Client(), Request{
		Endpoint: spec.Endpoint{Path: "/x", Method: http.MethodGet},
		BaseURL:  srv.URL,
	})

	require.Error(t, out.Err)
	de, ok := AsError(out.Err)
	require.True(t, ok)
	assert.Equal(t, DecodeError, de.Code)
	assert.Equal(t, []byte("not json"), out.RawBody, "raw body survives a decode failure")
}

func TestCallNonJSONBodyKeptRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	out := Call(context.Background(), srv.Client(), Request{
		Endpoint: spec.Endpoint{Path: "/ping", Method: http.MethodGet},
		BaseURL:  srv.URL,
	})

	require.NoError(t, out.Err)
	assert.Nil(t, out.Body)
	assert.Equal(t, "pong", string(out.RawBody))
}

func TestBuildURLJoining(t *testing.T) {
	cases := []struct {
		base string
		path string
		want string
	}{
		{"https://api.example.com", "/users", "https://api.example.com/users"},
		{"https://api.example.com/", "/users", "https://api.example.com/users"},
		{"https://api.example.com/v1", "users", "https://api.example.com/v1/users"},
	}
	for _, tc := range cases {
		got, err := buildURL(Request{Endpoint: spec.Endpoint{Path: tc.path}, BaseURL: tc.base})
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestBuildURLEscapesPathValues(t *testing.T) {
	got, err := buildURL(Request{
		Endpoint: spec.Endpoint{
			Path:       "/files/{name}",
			Parameters: []spec.Parameter{{Name: "name", In: "path", Required: true}},
		},
		BaseURL: "https://api.example.com",
		Values:  map[string]string{"name": "a b/c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/files/a%20b%2Fc", got)
}

func TestOutcomeJSONRoundTrip(t *testing.T) {
	// Outcome bodies are generic decoded JSON and must re-encode cleanly for
	// CLI display.
	out := Outcome{StatusCode: 200, Body: map[string]any{"a": float64(1)}}
	encoded, err := json.Marshal(out.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, string(encoded))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := newError(TransportError, cause, "call failed")
	assert.ErrorIs(t, err, cause)
}
