package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sipeed/picomind/pkg/logger"
)

const (
	userAgent      = "Mozilla/5.0 (compatible; picomind/1.0)"
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 4 << 20
)

// StatusError is returned for non-2xx responses once retries are exhausted.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// Client is the HTTP client shared by the web providers. It retries 429 and
// 5xx responses, honouring Retry-After.
type Client struct {
	HTTP       *http.Client
	MaxRetries int
	// BaseDelay is the backoff step used when the server gives no Retry-After.
	BaseDelay time.Duration
	// MaxDelay caps any single wait.
	MaxDelay time.Duration
}

func NewClient(timeout time.Duration, maxRetries int) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		HTTP:       &http.Client{Timeout: timeout},
		MaxRetries: maxRetries,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// GetJSON fetches rawURL and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, out interface{}) error {
	body, err := c.get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Set(k, v)
			}
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		lastErr = &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
		if !retryable(resp.StatusCode) || attempt == c.MaxRetries {
			break
		}

		delay := c.retryDelay(resp.Header.Get("Retry-After"), attempt)
		logger.WarnCF("search", fmt.Sprintf("HTTP %d, retrying in %v (attempt %d/%d)", resp.StatusCode, delay, attempt+1, c.MaxRetries),
			map[string]interface{}{"url": rawURL})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// retryDelay prefers a Retry-After value in seconds, then linear backoff.
func (c *Client) retryDelay(retryAfter string, attempt int) time.Duration {
	delay := c.BaseDelay * time.Duration(attempt+1)
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
			delay = time.Duration(secs) * time.Second
		}
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
