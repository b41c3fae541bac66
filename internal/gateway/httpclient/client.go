// Package httpclient is the HTTP plumbing shared by the REST adapters: rate
// limiting, optional response caching, payload dumps and the mapping of
// vendor status codes onto typed errors.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/logger"
	"fincore/internal/pkg/redact"
	"fincore/internal/pkg/text"
	"fincore/internal/store"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "fincore/1.0"
	maxBodySnippet   = 256
	maxBodyBytes     = 32 << 20
)

type Config struct {
	Provider string
	BaseURL  string
	Timeout  time.Duration
	// RateLimit is requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int
	// CacheTTL applies to responses stored when the call enables caching.
	CacheTTL  time.Duration
	UserAgent string
}

func (c Config) withDefaults() Config {
	out := c
	out.BaseURL = strings.TrimRight(strings.TrimSpace(out.BaseURL), "/")
	if out.Timeout <= 0 {
		out.Timeout = defaultTimeout
	}
	if out.Burst <= 0 {
		out.Burst = 1
	}
	if out.UserAgent == "" {
		out.UserAgent = defaultUserAgent
	}
	return out
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   store.ResponseCache
}

// New builds a client. cache may be nil.
func New(cfg Config, cache store.ResponseCache) *Client {
	final := cfg.withDefaults()
	c := &Client{
		cfg:   final,
		http:  &http.Client{Timeout: final.Timeout},
		cache: cache,
	}
	if final.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(final.RateLimit), final.Burst)
	}
	return c
}

func (c *Client) Provider() string { return c.cfg.Provider }

func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// URL joins path and query onto the base URL.
func (c *Client) URL(path string, query url.Values) string {
	target := c.cfg.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// Get fetches path relative to the base URL.
func (c *Client) Get(ctx context.Context, path string, query url.Values, header http.Header) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, c.URL(path, query), header, nil)
}

// GetJSON fetches path and parses the body with gjson. A body that is not
// JSON is a permanent error.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, header http.Header) (gjson.Result, error) {
	body, err := c.Get(ctx, path, query, header)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		e := errs.Permanent(nil, "malformed JSON response: %s", text.Truncate(string(body), maxBodySnippet))
		e.Provider = c.cfg.Provider
		e.Request = RequestLine(http.MethodGet, c.URL(path, query))
		return gjson.Result{}, e
	}
	return gjson.ParseBytes(body), nil
}

// Do sends one request. GET responses are served from and written to the
// cache when the call context enables it.
func (c *Client) Do(ctx context.Context, method, target string, header http.Header, body []byte) ([]byte, error) {
	line := RequestLine(method, target)
	cacheable := c.cache != nil && method == http.MethodGet && fetcher.CacheEnabled(ctx)
	var key string
	if cacheable {
		key = store.CacheKey(method, target, header, body)
		if cached, ok, err := c.cache.Get(ctx, key); err != nil {
			logger.Warnf("httpclient %s: cache read failed: %v", c.cfg.Provider, err)
		} else if ok {
			logger.Debugf("httpclient %s: cache hit %s", c.cfg.Provider, line)
			return cached, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.transient(err, line, "rate limiter")
		}
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		e := errs.Permanent(err, "build request")
		e.Provider = c.cfg.Provider
		e.Request = line
		return nil, e
	}
	for name, vals := range header {
		for _, v := range vals {
			req.Header.Add(name, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	logger.LogVendorRequest(c.cfg.Provider, method, target, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transient(err, line, "request failed")
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.transient(err, line, "read body")
	}
	logger.LogVendorResponse(c.cfg.Provider, target, resp.StatusCode, payload)

	if err := StatusError(c.cfg.Provider, resp.StatusCode, line, payload); err != nil {
		return nil, err
	}
	if cacheable {
		if err := c.cache.Put(ctx, key, payload, c.cfg.CacheTTL); err != nil {
			logger.Warnf("httpclient %s: cache write failed: %v", c.cfg.Provider, err)
		}
	}
	return payload, nil
}

func (c *Client) transient(err error, line, what string) error {
	e := errs.Transient(err, "%s", what)
	e.Provider = c.cfg.Provider
	e.Request = line
	return e
}

// Status is the vendor HTTP status behind a mapped error.
type Status struct {
	Code int
	Body string
}

func (s *Status) Error() string {
	if s.Body == "" {
		return fmt.Sprintf("HTTP %d", s.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", s.Code, s.Body)
}

// StatusError maps a vendor HTTP status onto the error model: 401/403 are
// unauthorized, 408/429/5xx transient, any other non-2xx permanent.
func StatusError(provider string, status int, line string, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	cause := &Status{Code: status, Body: text.Truncate(strings.TrimSpace(string(body)), maxBodySnippet)}
	var kind errs.Kind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = errs.KindUnauthorized
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		kind = errs.KindTransient
	default:
		kind = errs.KindPermanent
	}
	return &errs.Error{Kind: kind, Provider: provider, Request: line, Msg: "vendor request failed", Err: cause}
}

// StatusOf returns the vendor status behind err, or 0.
func StatusOf(err error) int {
	var s *Status
	if errors.As(err, &s) {
		return s.Code
	}
	return 0
}

// RequestLine renders a request for errors and logs with credentials masked.
func RequestLine(method, target string) string {
	return method + " " + redact.URL(target)
}
