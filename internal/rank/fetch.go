package rank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Variant selects which query shape is issued against the search endpoint.
type Variant string

const (
	// VariantMain is the unified search page (smartblock + organic blog list).
	VariantMain Variant = "main"
	// VariantBlogTab is the blog-only results page (where=post).
	VariantBlogTab Variant = "blog_tab"
)

const (
	defaultBaseURL   = "https://search.naver.com/search.naver"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	defaultLanguage  = "ko-KR,ko;q=0.9"
	defaultTimeout   = 15 * time.Second
)

// StatusError reports a non-2xx response from the search engine, typically a
// rate-limit or block page. Callers should treat it as "try again later".
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search request failed with status %d (%s)", e.Code, e.URL)
}

// Retryable marks the error as transient.
func (e *StatusError) Retryable() bool { return true }

// TransportError reports a network-level failure (DNS, timeout, reset).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("search request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable marks the error as transient.
func (e *TransportError) Retryable() bool { return true }

// IsRetryable reports whether err is a transient fetch failure worth
// retrying later. Both the HTTP-status and transport taxonomies qualify.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

// ClientOptions tune the search page fetcher. Zero values fall back to the
// production defaults.
type ClientOptions struct {
	BaseURL        string
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// Client fetches raw search-result HTML from the search engine. It performs
// no caching and no internal retries; every call is a fresh request and
// callers own rate limiting (at least one second between consecutive
// requests, a handful of checks per tracker per day).
type Client struct {
	baseURL        string
	userAgent      string
	acceptLanguage string
	httpClient     *http.Client
}

// NewClient builds a search fetcher with browser-mimicking request headers.
// The target site varies markup and blocks requests based on User-Agent and
// Accept-Language, so both are always sent.
func NewClient(opts ClientOptions) *Client {
	c := &Client{
		baseURL:        opts.BaseURL,
		userAgent:      opts.UserAgent,
		acceptLanguage: opts.AcceptLanguage,
		httpClient:     opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.acceptLanguage == "" {
		c.acceptLanguage = defaultLanguage
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	return c
}

// Fetch retrieves the raw HTML of one search results page for keyword.
func (c *Client) Fetch(ctx context.Context, keyword string, variant Variant) (string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", errors.New("keyword is required")
	}

	params := url.Values{}
	params.Set("query", keyword)
	if variant == VariantBlogTab {
		params.Set("where", "post")
	}
	endpoint := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", c.acceptLanguage)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observeFetch(variant, "error", time.Since(start))
		return "", &TransportError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observeFetch(variant, "error", time.Since(start))
		return "", &StatusError{Code: resp.StatusCode, URL: endpoint}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observeFetch(variant, "error", time.Since(start))
		return "", &TransportError{URL: endpoint, Err: err}
	}
	observeFetch(variant, "ok", time.Since(start))
	return string(body), nil
}
