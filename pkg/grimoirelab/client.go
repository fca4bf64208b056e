// Package grimoirelab talks to the analysis backend that ingests
// repositories and publishes their events.
package grimoirelab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// API paths relative to the backend URL.
const (
	pathToken          = "token/"
	pathRefresh        = "token/refresh/"
	pathAddRepository  = "datasources/add_repository"
	pathRepositories   = "datasources/repositories/"
	defaultHTTPTimeout = 60 * time.Second
	maxErrorBody       = 4096
)

// Sentinel errors.
var (
	ErrNotConnected       = errors.New("client not connected")
	ErrMissingToken       = errors.New("token response has no access token")
	ErrRepositoryNotFound = errors.New("repository not registered")
)

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

// Client is a backend API client. Call Connect before any request.
type Client struct {
	baseURL  string
	user     string
	password string

	base    *http.Client
	session *http.Client
	tokens  *tokenSource
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.base = hc
		}
	}
}

// WithRateLimit caps requests per second. Zero or negative disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the backend at baseURL. Authentication is
// used only when both user and password are set.
func NewClient(baseURL, user, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		base:     &http.Client{Timeout: defaultHTTPTimeout},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect prepares the session, obtaining an access and refresh token when
// credentials were given.
func (c *Client) Connect(ctx context.Context) error {
	if c.user == "" || c.password == "" {
		c.session = c.base

		return nil
	}

	pair, err := c.requestToken(ctx, pathToken, map[string]string{"username": c.user, "password": c.password})
	if err != nil {
		return fmt.Errorf("obtain token: %w", err)
	}

	c.tokens = &tokenSource{access: pair.Access, refresh: pair.Refresh}
	// oauth2.NewClient would cache the first token; the refresh path needs
	// every request to read the current one.
	c.session = &http.Client{
		Transport:     &oauth2.Transport{Source: c.tokens, Base: c.base.Transport},
		CheckRedirect: c.base.CheckRedirect,
		Timeout:       c.base.Timeout,
	}

	return nil
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (c *Client) requestToken(ctx context.Context, path string, credentials map[string]string) (tokenPair, error) {
	payload, err := json.Marshal(credentials)
	if err != nil {
		return tokenPair{}, fmt.Errorf("encode credentials: %w", err)
	}

	body, err := c.send(ctx, c.base, http.MethodPost, path, nil, payload)
	if err != nil {
		return tokenPair{}, err
	}

	var pair tokenPair

	err = json.Unmarshal(body, &pair)
	if err != nil {
		return tokenPair{}, fmt.Errorf("decode token: %w", err)
	}

	if pair.Access == "" {
		return tokenPair{}, ErrMissingToken
	}

	return pair, nil
}

func (c *Client) refreshToken(ctx context.Context) error {
	c.logger.DebugContext(ctx, "refreshing token")

	pair, err := c.requestToken(ctx, pathRefresh, map[string]string{"refresh": c.tokens.refreshToken()})
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}

	c.tokens.setAccess(pair.Access)

	return nil
}

// do sends an authenticated request. A 403 triggers one token refresh and
// retry when a refresh token is held.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	if c.session == nil {
		return nil, ErrNotConnected
	}

	body, err := c.send(ctx, c.session, method, path, query, payload)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden || !c.canRefresh() {
		return body, err
	}

	refreshErr := c.refreshToken(ctx)
	if refreshErr != nil {
		return nil, refreshErr
	}

	return c.send(ctx, c.session, method, path, query, payload)
}

func (c *Client) canRefresh() bool {
	return c.tokens != nil && c.tokens.refreshToken() != ""
}

func (c *Client) send(
	ctx context.Context, hc *http.Client, method, path string, query url.Values, payload []byte,
) ([]byte, error) {
	if c.limiter != nil {
		err := c.limiter.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return body, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}

// tokenSource hands the current access token to the oauth2 transport and
// lets the client swap it after a refresh.
type tokenSource struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func (t *tokenSource) Token() (*oauth2.Token, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return &oauth2.Token{AccessToken: t.access, TokenType: "Bearer"}, nil
}

func (t *tokenSource) setAccess(access string) {
	t.mu.Lock()
	t.access = access
	t.mu.Unlock()
}

func (t *tokenSource) refreshToken() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.refresh
}
