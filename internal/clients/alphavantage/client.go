// Package alphavantage provides the client for the Alpha Vantage market
// data API: quote and time-series fetching with retry, in-band error
// classification, a daily request budget and payload parsing.
package alphavantage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AhmedIkram05/StockLens-sub001/internal/marketdata"
)

const (
	defaultBaseURL = "https://www.alphavantage.co/query"

	// Free tier allows 25 requests per day
	dailyRequestLimit = 25

	// Retry budget for one logical request
	maxAttempts = 3
	baseBackoff = 250 * time.Millisecond
)

// ErrRateLimitExceeded is returned when the daily request budget is
// exhausted or the API answered with a rate-limit advisory.
type ErrRateLimitExceeded struct{}

func (e ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("alphavantage: rate limit exceeded (%d requests/day)", dailyRequestLimit)
}

// ErrMissingAPIKey is returned by fetch paths when no API key is
// configured. It is a configuration error and is never retried.
type ErrMissingAPIKey struct{}

func (e ErrMissingAPIKey) Error() string {
	return "alphavantage: API key not configured (set ALPHAVANTAGE_API_KEY)"
}

// APIError is a well-formed response signaling an upstream error, e.g. an
// invalid symbol.
type APIError struct {
	Message string
}

func (e APIError) Error() string {
	return "alphavantage: API error: " + e.Message
}

// ClientInterface is the surface the cache facade depends on.
type ClientInterface interface {
	Fetch(ctx context.Context, symbol string, class marketdata.DataClass) ([]byte, error)
	Decode(class marketdata.DataClass, payload []byte) (interface{}, error)
	FetchJSON(ctx context.Context, requestURL string) ([]byte, error)
}

// Client is an Alpha Vantage API client with retry and a daily request
// budget. Safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     zerolog.Logger

	mu           sync.Mutex
	requestCount int
	resetAt      time.Time
}

// NewClient creates a new Alpha Vantage client.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("client", "alphavantage").Logger(),
		resetAt: nextMidnightUTC(),
	}
}

// SetBaseURL overrides the API base URL (tests, proxies).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Fetch retrieves the raw response body for a symbol and data class.
// Implements marketdata.Provider together with Decode.
func (c *Client) Fetch(ctx context.Context, symbol string, class marketdata.DataClass) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey{}
	}

	function, err := functionFor(class)
	if err != nil {
		return nil, err
	}

	return c.FetchJSON(ctx, c.buildURL(function, symbol))
}

// FetchJSON performs one logical API request with up to 3 attempts and
// exponential backoff (250ms doubling). Non-2xx statuses and in-band error
// payloads are both retried; after the attempts are exhausted the last
// error is returned and any further retrying is the caller's concern.
func (c *Client) FetchJSON(ctx context.Context, requestURL string) ([]byte, error) {
	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		payload, err := c.doRequest(ctx, requestURL)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		c.log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", maxAttempts).
			Msg("Upstream request failed")

		// Backoff runs after every failed attempt, the last one included;
		// total sleep is bounded at 250ms + 500ms + 1s.
		backoff := baseBackoff << attempt
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// doRequest performs a single HTTP attempt and classifies the response.
func (c *Client) doRequest(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if err := c.checkAPIError(body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkAPIError detects in-band error signaling. Alpha Vantage returns 200
// for everything and reports problems inside the body: an "Error Message"
// field for outright errors, a "Note"/"Information" field for rate-limit
// advisories, and occasionally a plain-text thank-you page when throttled.
func (c *Client) checkAPIError(body []byte) error {
	if bytes.Contains(body, []byte("Thank you for using Alpha Vantage")) {
		return ErrRateLimitExceeded{}
	}

	var probe struct {
		ErrorMessage string `json:"Error Message"`
		Note         string `json:"Note"`
		Information  string `json:"Information"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		// Not a JSON error envelope; let the parser decide
		return nil
	}

	if probe.ErrorMessage != "" {
		return APIError{Message: probe.ErrorMessage}
	}
	if probe.Note != "" || probe.Information != "" {
		return ErrRateLimitExceeded{}
	}

	return nil
}

// checkRateLimit consumes one unit of the daily request budget.
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if now.After(c.resetAt) {
		c.requestCount = 0
		c.resetAt = nextMidnightUTC()
	}

	if c.requestCount >= dailyRequestLimit {
		return ErrRateLimitExceeded{}
	}

	c.requestCount++
	return nil
}

// GetRemainingRequests returns how many requests remain in today's budget.
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if now.After(c.resetAt) {
		return dailyRequestLimit
	}
	return dailyRequestLimit - c.requestCount
}

// ResetDailyCounter resets the request budget. Scheduled daily at midnight
// UTC; the counter also self-resets lazily on the first request after.
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestCount = 0
	c.resetAt = nextMidnightUTC()
}

// buildURL builds the query URL for an API function and symbol.
func (c *Client) buildURL(function, symbol string) string {
	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)
	return c.baseURL + "?" + params.Encode()
}

// functionFor maps a data class to its API function name.
func functionFor(class marketdata.DataClass) (string, error) {
	switch class {
	case marketdata.ClassMonthly:
		return "TIME_SERIES_MONTHLY_ADJUSTED", nil
	case marketdata.ClassDaily:
		return "TIME_SERIES_DAILY", nil
	case marketdata.ClassQuote:
		return "GLOBAL_QUOTE", nil
	default:
		return "", fmt.Errorf("unknown data class: %q", class)
	}
}

// nextMidnightUTC returns the next midnight in UTC, when the upstream
// resets its daily quota.
func nextMidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}
