// Package upstream fetches gist listings from a GitHub-compatible REST API.
package upstream

//go:generate mockgen -destination=mock_upstream/fetcher.go -package=mock_upstream . Fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	cachekey "github.com/always-cache/gist-cache/pkg/cache-key"
)

const (
	DefaultBaseURL   = "https://api.github.com"
	DefaultTimeout   = 5 * time.Second
	DefaultUserAgent = "gist-cache"
)

// Response is the raw upstream answer. Neither the status nor the body is interpreted.
type Response struct {
	StatusCode int
	Body       []byte
}

// Fetcher performs one upstream call for a key.
// An error means the call failed at the transport level (including reading the body).
type Fetcher interface {
	FetchGists(ctx context.Context, key cachekey.Key) (Response, error)
}

type Option func(*Client)

// WithTimeout bounds each upstream call, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// Client is the HTTP implementation of Fetcher. It never retries.
type Client struct {
	baseURL    string
	userAgent  string
	transport  http.RoundTripper
	httpClient *http.Client
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a client for the API at baseURL, e.g. https://api.github.com.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream url must be http or https, got %q", baseURL)
	}
	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: DefaultUserAgent,
		transport: http.DefaultTransport,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Transport = &userAgentRoundTripper{
		Wrapped:   c.transport,
		UserAgent: c.userAgent,
	}
	return c, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchGists calls GET {base}/users/{username}/gists?page=..&per_page=..
func (c *Client) FetchGists(ctx context.Context, key cachekey.Key) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+key.RequestURI(), nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read upstream body: %w", err)
	}
	return Response{StatusCode: res.StatusCode, Body: body}, nil
}

// userAgentRoundTripper sets the User-Agent header on every outgoing request.
type userAgentRoundTripper struct {
	Wrapped   http.RoundTripper
	UserAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone request to avoid mutating the original
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", rt.UserAgent)
	return rt.Wrapped.RoundTrip(clone)
}
