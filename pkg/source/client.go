package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/wedof-tools/sheetsync/pkg/clients"
	"github.com/wedof-tools/sheetsync/pkg/errors"
)

// Record is one raw provider record: an arbitrary mapping of field name to
// value. Numbers are decoded as json.Number so their textual form survives
// normalization unchanged.
type Record = map[string]any

// ClientConfig configures the Wedof client.
type ClientConfig struct {
	BaseURL            string
	APIKey             string
	PageLimit          int
	MinRequestInterval time.Duration
	RetryPolicy        *clients.RetryPolicy
	ThrottleRetryLimit int
}

// Client fetches paginated record sets from the Wedof API. All requests go
// through a shared rate limiter so the provider quota is respected whether a
// request succeeds or fails.
type Client struct {
	cfg    ClientConfig
	http   *clients.HTTPClient
	retry  *clients.RetryPolicy
	logger *zap.Logger

	attempts int64
}

// NewClient creates a Wedof client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	httpCfg := clients.DefaultHTTPConfig()
	if cfg.MinRequestInterval > 0 {
		httpCfg.MinRequestInterval = cfg.MinRequestInterval
	}

	retry := cfg.RetryPolicy
	if retry == nil {
		retry = clients.DefaultRetryPolicy()
	}

	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	if cfg.ThrottleRetryLimit <= 0 {
		cfg.ThrottleRetryLimit = 10
	}

	return &Client{
		cfg:    cfg,
		http:   clients.NewHTTPClient(httpCfg, logger),
		retry:  retry,
		logger: logger.With(zap.String("component", "wedof_client")),
	}
}

// FetchAll retrieves every record of the endpoint, page by page, preserving
// request order across pages. Pagination stops when a page comes back empty
// or shorter than the page limit.
func (c *Client) FetchAll(ctx context.Context, ep Endpoint) ([]Record, error) {
	limit := ep.PageLimit
	if limit <= 0 {
		limit = c.cfg.PageLimit
	}

	var all []Record
	for page := 1; ; page++ {
		records, err := c.fetchPage(ctx, ep, page, limit)
		if err != nil {
			return nil, errors.Wrap(err, errors.TypeOf(err),
				fmt.Sprintf("endpoint %s: page %d", ep.Name, page))
		}

		all = append(all, records...)
		c.logger.Debug("page fetched",
			zap.String("endpoint", ep.Name),
			zap.Int("page", page),
			zap.Int("records", len(records)))

		if len(records) < limit {
			break
		}
	}

	stats := c.http.GetStats()
	c.logger.Info("fetch complete",
		zap.String("endpoint", ep.Name),
		zap.Int("records", len(all)),
		zap.Int64("http_requests", stats.TotalRequests),
		zap.Int64("http_failures", stats.FailedRequests))
	return all, nil
}

// Probe performs a lightweight single-record request against the endpoint
// without paginating. Used by connection tests.
func (c *Client) Probe(ctx context.Context, ep Endpoint) error {
	_, err := c.fetchPage(ctx, ep, 1, 1)
	return err
}

// Attempts returns the total number of requests issued, including retries.
func (c *Client) Attempts() int64 {
	return atomic.LoadInt64(&c.attempts)
}

// Close releases the underlying HTTP resources.
func (c *Client) Close() error {
	return c.http.Close()
}

// fetchPage fetches one page, retrying per the error taxonomy: throttling
// backs off against its own ceiling without consuming the transient budget,
// authentication failures are fatal immediately, and everything else,
// including truncated or malformed bodies, retries with exponential backoff
// up to the configured attempt ceiling.
func (c *Client) fetchPage(ctx context.Context, ep Endpoint, page, limit int) ([]Record, error) {
	transient := 0
	throttled := 0

	for {
		records, retryAfter, err := c.doRequest(ctx, ep, page, limit)
		if err == nil {
			return records, nil
		}

		switch {
		case errors.IsType(err, errors.ErrorTypeAuthentication):
			// Retrying cannot change the outcome.
			return nil, err

		case errors.IsType(err, errors.ErrorTypeRateLimit):
			throttled++
			if throttled > c.cfg.ThrottleRetryLimit {
				return nil, errors.Wrap(err, errors.ErrorTypeRateLimit,
					fmt.Sprintf("still throttled after %d backoffs", throttled-1))
			}
			delay := retryAfter
			if delay <= 0 {
				delay = c.retry.GetDelay(throttled - 1)
			}
			c.logger.Warn("provider throttled request",
				zap.String("endpoint", ep.Name),
				zap.Int("page", page),
				zap.Duration("backoff", delay))
			if serr := sleepCtx(ctx, delay); serr != nil {
				return nil, errors.Wrap(serr, errors.ErrorTypeTimeout, "backoff interrupted")
			}

		default:
			transient++
			if transient >= c.retry.MaxAttempts {
				return nil, errors.Wrap(err, errors.TypeOf(err),
					fmt.Sprintf("page %d failed after %d attempts", page, transient))
			}
			delay := c.retry.GetDelay(transient - 1)
			c.logger.Warn("transient fetch error, retrying",
				zap.String("endpoint", ep.Name),
				zap.Int("page", page),
				zap.Int("attempt", transient),
				zap.Duration("backoff", delay),
				zap.Error(err))
			if serr := sleepCtx(ctx, delay); serr != nil {
				return nil, errors.Wrap(serr, errors.ErrorTypeTimeout, "backoff interrupted")
			}
		}
	}
}

// doRequest issues a single page request and classifies the outcome.
func (c *Client) doRequest(ctx context.Context, ep Endpoint, page, limit int) ([]Record, time.Duration, error) {
	atomic.AddInt64(&c.attempts, 1)

	u, err := url.Parse(strings.TrimSuffix(c.cfg.BaseURL, "/") + ep.Path)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrorTypeConfig, "invalid endpoint URL")
	}
	q := u.Query()
	for k, v := range ep.Params {
		q.Set(k, v)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	headers := map[string]string{
		"X-Api-Key": c.cfg.APIKey,
		"Accept":    "application/json",
	}

	resp, err := c.http.Get(ctx, u.String(), headers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, errors.Wrap(err, errors.ErrorTypeTimeout, "request cancelled")
		}
		return nil, 0, errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response body")
	}

	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		if n, aerr := strconv.Atoi(remaining); aerr == nil && n < 5 {
			c.logger.Warn("provider rate limit nearly exhausted", zap.Int("remaining", n))
		}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		records, derr := decodePage(body)
		return records, 0, derr

	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, 0, errors.Newf(errors.ErrorTypeAuthentication,
			"provider rejected credentials (status %d)", resp.StatusCode)

	case http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")),
			errors.Newf(errors.ErrorTypeRateLimit,
				"provider throttled request (status %d)", resp.StatusCode)

	default:
		return nil, 0, errors.Newf(errors.ErrorTypeConnection,
			"unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
}

// decodePage decodes one page body. Wedof responses are either a bare JSON
// array of records or an object with the records under "data".
func decodePage(body []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode response body")
	}

	switch v := payload.(type) {
	case []any:
		return recordsFromList(v)
	case map[string]any:
		inner, ok := v["data"]
		if !ok {
			return []Record{v}, nil
		}
		switch d := inner.(type) {
		case nil:
			return nil, nil
		case []any:
			return recordsFromList(d)
		case map[string]any:
			return []Record{d}, nil
		default:
			return nil, errors.New(errors.ErrorTypeData, "unexpected shape of data field")
		}
	case nil:
		return nil, nil
	default:
		return nil, errors.New(errors.ErrorTypeData, "unexpected response shape")
	}
}

func recordsFromList(items []any) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData, "record %d is not an object", i)
		}
		records = append(records, m)
	}
	return records, nil
}

// parseRetryAfter parses a Retry-After header carrying seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(body []byte, n int) string {
	s := string(body)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
