// Package polymarket implements the HTTP adapters for Polymarket's
// public data API: leader activity, positions, and balance. It does not
// place orders — order submission and wallet signing are out of scope.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultDataAPIBase = "https://data-api.polymarket.com"

// requestsPerSecond throttles calls at a conservative margin below the
// data API's documented per-IP limit, the same approach the CLOB client
// takes.
const requestsPerSecond = 6

// Client is a rate-limited, single-attempt HTTP client. Unlike a typical
// CLOB trading client it does not retry on failure — a failed fetch
// surfaces to the caller immediately, and the monitor's next poll cycle
// is the natural retry; nothing in the core retries internally.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

// NewClient creates a Client against base, or the production data API if
// base is empty.
func NewClient(base string) *Client {
	if base == "" {
		base = defaultDataAPIBase
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(requestsPerSecond, 5),
	}
}

// get performs a single rate-limited GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("polymarket.get: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("polymarket.get: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket.get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("polymarket.get: status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("polymarket.get: decode response: %w", err)
	}
	return nil
}
