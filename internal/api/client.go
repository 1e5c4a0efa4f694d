// Package api is the client for the upstream snapshot feed. It fetches live
// and historical snapshots, proxies ticker search, and pushes refresh-period
// settings; it never retries on behalf of the analytics core beyond its own
// bounded transport retry.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/gexboard/internal/market"
)

// Client interface for testability.
type Client interface {
	FetchSnapshot(ctx context.Context, symbol string) (*market.Snapshot, error)
	ListDates(ctx context.Context, symbol string) ([]string, error)
	LoadDay(ctx context.Context, symbol, date string) ([]market.Snapshot, error)
	Search(ctx context.Context, query string) ([]string, error)
	SetRefreshPeriod(ctx context.Context, seconds int) error
}

type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

type datesResponse struct {
	Dates []string `json:"dates"`
}

type searchResponse struct {
	Symbols []string `json:"symbols"`
}

func NewClient(baseURL, apiKey string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// FetchSnapshot retrieves the current snapshot for one symbol.
func (c *HTTPClient) FetchSnapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	var snap market.Snapshot
	path := fmt.Sprintf("/v1/snapshot/%s", url.PathEscape(symbol))
	if err := c.getJSON(ctx, path, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListDates retrieves the available historical dates for one symbol.
func (c *HTTPClient) ListDates(ctx context.Context, symbol string) ([]string, error) {
	var resp datesResponse
	path := fmt.Sprintf("/v1/hist/%s/dates", url.PathEscape(symbol))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Dates, nil
}

// LoadDay retrieves one day's snapshot sequence, time-ordered.
func (c *HTTPClient) LoadDay(ctx context.Context, symbol, date string) ([]market.Snapshot, error) {
	var snaps []market.Snapshot
	path := fmt.Sprintf("/v1/hist/%s/%s", url.PathEscape(symbol), url.PathEscape(date))
	if err := c.getJSON(ctx, path, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// Search returns ticker candidates for a free-text query.
func (c *HTTPClient) Search(ctx context.Context, query string) ([]string, error) {
	var resp searchResponse
	path := "/v1/search?q=" + url.QueryEscape(query)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// SetRefreshPeriod pushes the live-refresh period to the upstream settings
// endpoint.
func (c *HTTPClient) SetRefreshPeriod(ctx context.Context, seconds int) error {
	body, _ := json.Marshal(map[string]int{"refresh_sec": seconds})

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/settings/refresh", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// getJSON performs a rate-limited GET with bounded exponential-backoff retry
// on transient failures. 404 maps to ErrNotFound; 4xx besides 429 never
// retry.
func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	fullURL := c.baseURL + path
	c.logger.Debug("requesting", zap.String("url", fullURL))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Basic "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return ErrAuthFailed
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
