package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrorCode categorizes auth-layer errors.
type ErrorCode string

const (
	// TokenExchangeFailed marks an OAuth2 exchange that returned no usable
	// token. Exchanges are never retried.
	TokenExchangeFailed ErrorCode = "TokenExchangeFailed"
)

// Error is a structured auth-layer error.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Cause }

// Token is the result of an OAuth2 token exchange. It belongs to the calling
// session and is never persisted in the normalized model.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// Expired reports whether the token's lifetime has lapsed. Tokens without a
// declared lifetime never expire.
func (t *Token) Expired() bool {
	return t != nil && !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// Application describes how credentials attach to a single request. The
// driver applies it verbatim.
type Application struct {
	Header   map[string]string
	Query    map[string]string
	UseBasic bool
	Username string
	Password string
}

// Apply builds the request application for a scheme from supplied credential
// values. OAuth schemes need a previously exchanged token; passing nil yields
// an unauthenticated application.
func Apply(s *Scheme, creds map[string]string, token *Token) Application {
	app := Application{}
	if s == nil {
		return app
	}

	switch s.Kind {
	case KindAPIKey:
		value := creds["apitoken"]
		if value == "" {
			return app
		}
		switch s.In {
		case "query":
			app.Query = map[string]string{s.ParamName: value}
		default:
			// header and cookie placements both travel as headers.
			app.Header = map[string]string{s.ParamName: value}
		}
	case KindHTTPBasic:
		app.UseBasic = true
		app.Username = creds["username"]
		app.Password = creds["password"]
	case KindHTTPBearer:
		if tok := creds["token"]; tok != "" {
			app.Header = map[string]string{"Authorization": "Bearer " + tok}
		}
	case KindOAuthClientCredentials, KindOAuthPassword, KindOAuthAuthorizationCode:
		if token != nil && token.AccessToken != "" {
			app.Header = map[string]string{"Authorization": "Bearer " + token.AccessToken}
		}
	}
	return app
}

// ExchangeToken performs a client-credentials exchange: a form-encoded POST
// of grant_type, client_id, and client_secret against the token URL. A
// non-2xx response or a response without an access_token fails with
// TokenExchangeFailed; there is no retry.
func ExchangeToken(ctx context.Context, client *http.Client, tokenURL, clientID, clientSecret string) (*Token, error) {
	if strings.TrimSpace(tokenURL) == "" {
		return nil, &Error{Code: TokenExchangeFailed, Message: "token exchange: no token URL"}
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Code: TokenExchangeFailed, Message: fmt.Sprintf("token exchange: %v", err), Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Code: TokenExchangeFailed, Message: fmt.Sprintf("token exchange %s: %v", tokenURL, err), Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Code: TokenExchangeFailed, Message: fmt.Sprintf("token exchange %s: read response: %v", tokenURL, err), Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Code: TokenExchangeFailed, Message: fmt.Sprintf("token exchange %s: http %d", tokenURL, resp.StatusCode)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{Code: TokenExchangeFailed, Message: fmt.Sprintf("token exchange %s: decode response: %v", tokenURL, err), Cause: err}
	}
	if payload.AccessToken == "" {
		return nil, &Error{Code: TokenExchangeFailed, Message: fmt.Sprintf("token exchange %s: response carries no access_token", tokenURL)}
	}

	tok := &Token{AccessToken: payload.AccessToken, TokenType: payload.TokenType}
	if payload.ExpiresIn > 0 {
		tok.ExpiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return tok, nil
}
