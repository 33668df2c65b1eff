package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	userAgent      = "reader-cli/1.0"
	defaultTimeout = 15 * time.Second

	// Fallback when a 429 arrives without a usable Retry-After header.
	defaultRetryAfter = 5
)

// Client talks to the reader server's REST API. It performs no retries
// and mutates no state; every response is classified into success,
// *DomainError, *RateLimitedError, or *NetworkError.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request. A timeout surfaces as *NetworkError.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger attaches a logger for request-level debug output.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListArticles fetches one page of articles matching opts.
func (c *Client) ListArticles(ctx context.Context, opts ListArticlesOpts) (*ArticlePage, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.FeedID != "" {
		q.Set("feedId", opts.FeedID)
	}
	if opts.TagID != "" {
		q.Set("tagId", opts.TagID)
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}

	var page ArticlePage
	if err := c.send(ctx, http.MethodGet, "/api/articles?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListTags fetches up to limit tags.
func (c *Client) ListTags(ctx context.Context, limit int) ([]Tag, error) {
	path := "/api/tags"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Tags []Tag `json:"tags"`
	}
	if err := c.send(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Tags, nil
}

// MarkArticleRead marks one article as read on the server.
func (c *Client) MarkArticleRead(ctx context.Context, articleID string) error {
	path := "/api/articles/" + url.PathEscape(articleID) + "/read"
	return c.send(ctx, http.MethodPost, path, nil, nil)
}

// SetBookmark sets one article's bookmark state on the server.
func (c *Client) SetBookmark(ctx context.Context, articleID string, bookmarked bool) error {
	path := "/api/articles/" + url.PathEscape(articleID) + "/bookmark"
	body := map[string]bool{"bookmarked": bookmarked}
	return c.send(ctx, http.MethodPut, path, body, nil)
}

// RefreshFeeds asks the server to re-fetch all feeds. The server runs
// this out-of-band; callers reset their views once it returns.
func (c *Client) RefreshFeeds(ctx context.Context) error {
	return c.send(ctx, http.MethodPost, "/api/feeds/refresh", nil, nil)
}

// ImportOPML uploads an OPML file. The file is opaque to the client; the
// server parses it and reports the outcome.
func (c *Client) ImportOPML(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/opml/import", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var result ImportResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExportOPML downloads the user's subscriptions as OPML.
func (c *Client) ExportOPML(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/opml/export", nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classify(resp)
	}
	return io.ReadAll(resp.Body)
}

// send marshals body (if any), issues the request, and decodes the
// response into out (if non-nil).
func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	c.decorate(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err))
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("request done",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.classify(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// classify turns a non-2xx response into the matching typed error. The
// body is drained so the connection can be reused.
func (c *Client) classify(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusTooManyRequests {
		after := defaultRetryAfter
		if v, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && v > 0 {
			after = v
		}
		category := resp.Header.Get("X-RateLimit-Category")
		if category == "" {
			category = pathCategory(resp.Request.URL.Path)
		}
		return &RateLimitedError{RetryAfter: after, Category: category}
	}

	return &DomainError{Status: resp.StatusCode, Message: errorMessage(data)}
}

// errorMessage pulls a human-readable message out of a JSON error body,
// falling back to the raw body.
func errorMessage(data []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(data))
}

// pathCategory maps "/api/articles/..." to "articles".
func pathCategory(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/api/"), "/")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "api"
}
