// Package jira fetches a week's worklogs from Jira Cloud.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPageSize       = 100
	defaultMaxRetries     = 3
	defaultRetryBackoff   = time.Second
	defaultMaxConcurrency = 4
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	Email    string
	APIToken string
	// MaxConcurrency bounds the number of projects fetched in parallel.
	MaxConcurrency int
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// RetryBackoff is the initial wait before retrying a throttled or failed request.
	RetryBackoff time.Duration
	PageSize     int
}

// Client is a Jira Cloud REST v3 client authenticated with an API token.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	email          string
	token          string
	maxConcurrency int
	maxRetries     int
	backoff        time.Duration
	pageSize       int
	logger         *zap.Logger
}

// NewClient creates a Jira client.
func NewClient(opts Options, logger *zap.Logger) *Client {
	c := &Client{
		httpClient:     opts.HTTPClient,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		email:          opts.Email,
		token:          opts.APIToken,
		maxConcurrency: opts.MaxConcurrency,
		maxRetries:     defaultMaxRetries,
		backoff:        opts.RetryBackoff,
		pageSize:       opts.PageSize,
		logger:         logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.maxConcurrency <= 0 {
		c.maxConcurrency = defaultMaxConcurrency
	}
	if c.backoff <= 0 {
		c.backoff = defaultRetryBackoff
	}
	if c.pageSize <= 0 {
		c.pageSize = defaultPageSize
	}
	return c
}

// StatusError is returned for non-2xx responses that were not retried away.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jira API error %d: %s", e.StatusCode, e.Body)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// getJSON performs a GET against path (relative to the base URL) and decodes
// the response into v. Throttled and 5xx responses are retried with
// exponential backoff, honoring Retry-After.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	wait := c.backoff
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.SetBasicAuth(c.email, c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("jira request %s failed: %w", path, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			if err := json.Unmarshal(body, v); err != nil {
				return fmt.Errorf("decoding jira response from %s: %w", path, err)
			}
			return nil
		}

		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		if !retryable(resp.StatusCode) || attempt >= c.maxRetries {
			return statusErr
		}

		delay := wait
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
			delay = time.Duration(s) * time.Second
		}
		c.logger.Warn("retrying jira request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		wait *= 2
	}
}
