// Package stockapi is a Go client for the stock dashboard REST API.
package stockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stockdash/internal/domain"
	"stockdash/internal/metrics"
	"stockdash/internal/util"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRetries   = 3
	defaultRateLimit = 600
	rateLimitBurst   = 6
	retryBaseDelay   = 200 * time.Millisecond
)

// Client provides a Go SDK for interacting with the stock dashboard API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *util.RateLimiter
	retries    int
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetries sets how many times an idempotent request is attempted on
// transport failure.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = max(n, 1) }
}

// WithRateLimit caps outgoing requests per minute. Zero disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		c.limiter = util.NewRateLimiter(perMinute, rateLimitBurst)
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records request outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a new API client rooted at baseURL, e.g.
// "http://localhost:5000/api".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    util.NewRateLimiter(defaultRateLimit, rateLimitBurst),
		retries:    defaultRetries,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// ---------------------------------------------------------------------------
// Tracked stocks
// ---------------------------------------------------------------------------

// ListStocks returns the tracked symbols with their holdings.
func (c *Client) ListStocks(ctx context.Context) ([]domain.TrackedStock, error) {
	var out []domain.TrackedStock
	if err := c.get(ctx, "ListStocks", "/stocks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Dashboard returns the latest quote of every tracked symbol.
func (c *Client) Dashboard(ctx context.Context) ([]domain.DashboardEntry, error) {
	var out []domain.DashboardEntry
	if err := c.get(ctx, "Dashboard", "/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddStock starts tracking symbol. The symbol is normalised first; a
// malformed symbol fails with *ValidationError without a request.
func (c *Client) AddStock(ctx context.Context, symbol string, force bool) (*domain.AddStockResponse, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var out domain.AddStockResponse
	body := domain.AddStockRequest{Symbol: sym, Force: force}
	if err := c.send(ctx, "AddStock", http.MethodPost, "/stocks", body, &out); err != nil {
		return nil, err
	}
	if out.Symbol == "" {
		out.Symbol = sym
	}
	return &out, nil
}

// UpdateHoldings sets the quantity and average price held of symbol.
func (c *Client) UpdateHoldings(ctx context.Context, symbol string, h domain.Holdings) error {
	if h.Quantity < 0 || h.AvgPrice < 0 {
		return &ValidationError{Field: "holdings", Reason: "quantity and average price must not be negative"}
	}
	return c.send(ctx, "UpdateHoldings", http.MethodPut, "/stocks/"+url.PathEscape(symbol), h, nil)
}

// RemoveStock stops tracking symbol.
func (c *Client) RemoveStock(ctx context.Context, symbol string) error {
	return c.send(ctx, "RemoveStock", http.MethodDelete, "/stocks/"+url.PathEscape(symbol), nil, nil)
}

// ---------------------------------------------------------------------------
// Per-symbol detail
// ---------------------------------------------------------------------------

// Price returns the quote and history of symbol over period.
func (c *Client) Price(ctx context.Context, symbol string, period domain.Period) (*domain.PricePayload, error) {
	var out domain.PricePayload
	q := url.Values{"period": {string(period)}}
	if err := c.get(ctx, "Price", stockPath(symbol, "price"), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analysis returns the technical analysis of symbol over period.
func (c *Client) Analysis(ctx context.Context, symbol string, period domain.Period) (*domain.AnalysisPayload, error) {
	var out domain.AnalysisPayload
	q := url.Values{"period": {string(period)}}
	if err := c.get(ctx, "Analysis", stockPath(symbol, "analysis"), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Financials returns the valuation and balance-sheet metrics of symbol.
func (c *Client) Financials(ctx context.Context, symbol string) (*domain.FinancialsPayload, error) {
	var out domain.FinancialsPayload
	if err := c.get(ctx, "Financials", stockPath(symbol, "financials"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dividends returns the dividend history of symbol.
func (c *Client) Dividends(ctx context.Context, symbol string) (*domain.DividendsPayload, error) {
	var out domain.DividendsPayload
	if err := c.get(ctx, "Dividends", stockPath(symbol, "dividends"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Prediction returns a forecast of symbol for the next days sessions.
func (c *Client) Prediction(ctx context.Context, symbol string, days int) (*domain.PredictionPayload, error) {
	var out domain.PredictionPayload
	var q url.Values
	if days > 0 {
		q = url.Values{"periods": {strconv.Itoa(days)}}
	}
	if err := c.get(ctx, "Prediction", stockPath(symbol, "prediction"), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func stockPath(symbol, resource string) string {
	return "/stocks/" + url.PathEscape(symbol) + "/" + resource
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// get performs an idempotent request, retrying transport failures.
func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return util.Retry(ctx, c.retries, retryBaseDelay, func() error {
		err := c.do(ctx, op, http.MethodGet, u, nil, out)
		var te *TransportError
		if err != nil && !errors.As(err, &te) {
			return util.Permanent(err)
		}
		if err != nil {
			c.log.Debug("retrying request", "op", op, "error", err)
		}
		return err
	})
}

// send performs a mutating request exactly once.
func (c *Client) send(ctx context.Context, op, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		body = b
	}
	return c.do(ctx, op, method, c.baseURL+path, body, out)
}

func (c *Client) do(ctx context.Context, op, method, u string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: op, Err: err}
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.APIRequest("0")
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.metrics.APIRequest(strconv.Itoa(resp.StatusCode))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	c.log.Debug("api request", "op", op, "method", method, "url", u,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := decodeError(resp, data)
		var rl *RateLimitError
		if errors.As(err, &rl) {
			c.limiter.Pause(rl.RetryAfter)
		}
		return err
	}

	// Some endpoints report failure inside a 200 body.
	if len(data) > 0 && data[0] == '{' {
		var eb domain.ErrorBody
		if err := json.Unmarshal(data, &eb); err == nil && eb.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: eb.Error, Hint: eb.Hint}
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ParseError{Op: op, Err: err}
	}
	return nil
}

func decodeError(resp *http.Response, data []byte) error {
	var eb domain.ErrorBody
	if err := json.Unmarshal(data, &eb); err != nil || eb.Error == "" {
		eb.Error = strings.TrimSpace(string(data))
		if eb.Error == "" {
			eb.Error = http.StatusText(resp.StatusCode)
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retry := time.Duration(eb.RetryAfter * float64(time.Second))
		if retry == 0 {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				retry = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{Message: eb.Error, RetryAfter: retry}
	}
	return &APIError{Status: resp.StatusCode, Message: eb.Error, Hint: eb.Hint}
}
