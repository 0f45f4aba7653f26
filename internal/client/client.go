// Package client is a Go client for the LearnUp comment API.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// TokenSource supplies the bearer token for a request. It is consulted on
// every authenticated call, so a token stored after login is picked up by
// the next request. An empty token sends no Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Option func(*Client)

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		if ts != nil {
			c.tokens = ts
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithHTTPClient swaps the underlying transport client, e.g. an
// httptest server's client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			baseURL := c.http.BaseURL
			c.http = newResty(hc).SetBaseURL(baseURL)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client talks to the comment API. It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	tokens TokenSource
	log    *slog.Logger
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:   newResty(&http.Client{}).SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(30 * time.Second),
		tokens: StaticToken(""),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newResty(hc *http.Client) *resty.Client {
	return resty.NewWithClient(hc).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Accept", "application/json")
}

func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

type call struct {
	method string
	path   string
	params map[string]string
	body   any
	result any
	authed bool
}

func (c *Client) do(ctx context.Context, in call) error {
	req := c.http.R().SetContext(ctx)
	if len(in.params) > 0 {
		req.SetPathParams(in.params)
	}
	if in.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(in.body)
	}
	if in.result != nil {
		req.SetResult(in.result)
	}
	if in.authed {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		if token != "" {
			req.SetAuthToken(token)
		}
	}

	resp, err := req.Execute(in.method, in.path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", in.method, in.path, err)
	}
	c.log.DebugContext(ctx, "api call", "method", in.method, "url", resp.Request.URL, "status", resp.StatusCode(), "duration", resp.Time())
	if resp.IsError() {
		return newAPIError(resp)
	}
	return nil
}

func newAPIError(resp *resty.Response) error {
	apiErr := &APIError{Status: resp.StatusCode()}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		apiErr.Message = body.Error
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(resp.Body()))
	}
	return apiErr
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/version", result: &out}); err != nil {
		return "", err
	}
	return out.Version, nil
}
