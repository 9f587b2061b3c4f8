// Package categorize suggests an expense category. A remote classifier is
// tried first; any failure falls back to keyword matching and then Other.
package categorize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/kinkeeper/internal/metrics"
)

const DefaultTimeout = 5 * time.Second

const (
	SourceRemote  = "remote"
	SourceKeyword = "keyword"
	SourceDefault = "default"
)

type Request struct {
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

type response struct {
	Category string `json:"category"`
}

// Result is a suggested category and where it came from.
type Result struct {
	Category string `json:"category"`
	Source   string `json:"source"`
}

type Client struct {
	url        string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient returns a categorizer. An empty url disables the remote call.
func NewClient(url, apiKey string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		apiKey:     apiKey,
		timeout:    DefaultTimeout,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if a remote classifier URL is set.
func (c *Client) Configured() bool {
	return c.url != ""
}

// Categorize never fails: remote errors are logged and the keyword
// fallback is used instead.
func (c *Client) Categorize(ctx context.Context, req Request) Result {
	if c.Configured() {
		cat, err := c.remote(ctx, req)
		if err == nil {
			metrics.CategorizeResults.WithLabelValues(SourceRemote).Inc()
			return Result{Category: cat, Source: SourceRemote}
		}
		c.logger.Warn("remote categorize failed", "name", req.Name, "error", err)
	}

	if cat := Keyword(req.Name); cat != Other {
		metrics.CategorizeResults.WithLabelValues(SourceKeyword).Inc()
		return Result{Category: cat, Source: SourceKeyword}
	}
	if req.Description != "" {
		if cat := Keyword(req.Description); cat != Other {
			metrics.CategorizeResults.WithLabelValues(SourceKeyword).Inc()
			return Result{Category: cat, Source: SourceKeyword}
		}
	}

	metrics.CategorizeResults.WithLabelValues(SourceDefault).Inc()
	return Result{Category: Other, Source: SourceDefault}
}

func (c *Client) remote(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("classifier error: status %d", resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !Valid(out.Category) {
		return "", fmt.Errorf("classifier returned unknown category %q", out.Category)
	}
	return Normalize(out.Category), nil
}
