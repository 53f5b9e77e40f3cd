// Package cmp connects the platform consent backend to an external
// consent-management platform: an HTTP client for its service API and a
// signed webhook receiver for its consent-changed events.
package cmp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sendrec/videoconsent/internal/consent"
)

const (
	maxResponseBodyBytes = 1 << 20
	servicesTTL          = 5 * time.Minute
)

// Client implements consent.Platform over the platform's REST API.
type Client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	retryDelays []time.Duration
	now         func() time.Time

	mu        sync.Mutex
	services  []consent.Service
	fetchedAt time.Time
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		http:        &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{500 * time.Millisecond, 2 * time.Second},
		now:         time.Now,
	}
}

// Services lists the platform's services. The list is cached briefly since
// every grant looks it up.
func (c *Client) Services(ctx context.Context) ([]consent.Service, error) {
	c.mu.Lock()
	if c.services != nil && c.now().Sub(c.fetchedAt) < servicesTTL {
		services := c.services
		c.mu.Unlock()
		return services, nil
	}
	c.mu.Unlock()

	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/services", nil)
	if err != nil {
		return nil, fmt.Errorf("GET %s/services: %w", c.baseURL, err)
	}

	var services []consent.Service
	if err := json.Unmarshal(body, &services); err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}

	c.mu.Lock()
	c.services = services
	c.fetchedAt = c.now()
	c.mu.Unlock()
	return services, nil
}

// AcceptService records acceptance of one service on the platform.
func (c *Client) AcceptService(ctx context.Context, id string) error {
	endpoint := c.baseURL + "/services/" + url.PathEscape(id) + "/accept"
	if _, err := c.do(ctx, http.MethodPost, endpoint, []byte("{}")); err != nil {
		return fmt.Errorf("POST %s: %w", endpoint, err)
	}
	return nil
}

// do retries transport errors and 5xx responses; other statuses fail at once.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	maxAttempts := 1 + len(c.retryDelays)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, body, err := c.send(ctx, method, endpoint, payload)
		switch {
		case err != nil:
			lastErr = err
		case status >= 200 && status < 300:
			return body, nil
		case status < 500:
			return nil, fmt.Errorf("consent platform returned status %d", status)
		default:
			lastErr = fmt.Errorf("consent platform returned status %d", status)
		}

		if attempt < maxAttempts {
			slog.Warn("cmp: request failed, retrying", "method", method, "url", endpoint, "attempt", attempt, "error", lastErr)
			select {
			case <-time.After(c.retryDelays[attempt-1]):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
