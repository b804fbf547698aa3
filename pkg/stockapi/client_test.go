package stockapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"stockdash/internal/domain"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:5000/api/")
	if c == nil {
		t.Fatal("NewClient returned nil")
	}
	if c.baseURL != "http://localhost:5000/api" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("httpClient is nil")
	}
	if c.httpClient.Timeout != 30*time.Second {
		t.Errorf("httpClient.Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, WithRateLimit(0), WithRetries(2))
}

func TestPriceDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stocks/AAPL/price" || r.URL.Query().Get("period") != "1y" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Write([]byte(`{"symbol":"AAPL","currency":"USD","current_price":190.5,"market_cap":null,
			"history":[{"date":"2024-01-02","open":1,"high":2,"low":0.5,"close":1.5,"volume":10}],
			"cached":true,"message":"served from cache"}`))
	})

	p, err := c.Price(context.Background(), "AAPL", domain.Period1Y)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if p.CurrentPrice != 190.5 || len(p.History) != 1 || !p.Cached {
		t.Errorf("payload = %+v", p)
	}
	if p.MarketCap != nil {
		t.Errorf("MarketCap = %v, want nil", *p.MarketCap)
	}
}

func TestRateLimitError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(domain.ErrorBody{Error: "slow down", RetryAfter: 12})
	})

	_, err := c.Analysis(context.Background(), "AAPL", domain.Period6M)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want *RateLimitError", err)
	}
	if rl.RetryAfter != 12*time.Second {
		t.Errorf("RetryAfter = %v, want 12s", rl.RetryAfter)
	}
	if msg := UserMessage(err); !strings.Contains(msg, "12 seconds") {
		t.Errorf("UserMessage = %q", msg)
	}
}

func TestAPIErrorWithHint(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"symbol not found","hint":"check the ticker"}`))
	})

	_, err := c.Dividends(context.Background(), "NOPE")
	var api *APIError
	if !errors.As(err, &api) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if api.Status != 404 || api.Hint != "check the ticker" {
		t.Errorf("APIError = %+v", api)
	}
}

func TestErrorInsideOKBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"financial data unavailable"}`))
	})

	_, err := c.Financials(context.Background(), "AAPL")
	var api *APIError
	if !errors.As(err, &api) || api.Message != "financial data unavailable" {
		t.Fatalf("err = %v, want APIError from 200 body", err)
	}
}

func TestParseError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[not json`))
	})

	_, err := c.ListStocks(context.Background())
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

func TestTransportErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, WithRateLimit(0), WithRetries(2))
	_, err := c.Dashboard(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if msg := UserMessage(err); !strings.Contains(msg, "Cannot reach") {
		t.Errorf("UserMessage = %q", msg)
	}
}

func TestAPIErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := c.ListStocks(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}

func TestAddStockValidation(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req domain.AddStockRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.AddStockResponse{Message: "added", Symbol: req.Symbol, Name: "Toyota", InfoLoaded: true})
	})

	_, err := c.AddStock(context.Background(), "   ", false)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if calls.Load() != 0 {
		t.Error("invalid symbol reached the server")
	}

	resp, err := c.AddStock(context.Background(), " 7203.t ", false)
	if err != nil {
		t.Fatalf("AddStock: %v", err)
	}
	if resp.Symbol != "7203.T" {
		t.Errorf("Symbol = %q, want 7203.T", resp.Symbol)
	}
}

func TestUpdateHoldingsAndRemove(t *testing.T) {
	var gotMethod, gotPath string
	var got domain.Holdings
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		if r.Method == http.MethodPut {
			json.NewDecoder(r.Body).Decode(&got)
		}
		w.Write([]byte(`{"message":"ok"}`))
	})

	if err := c.UpdateHoldings(context.Background(), "MSFT", domain.Holdings{Quantity: 10, AvgPrice: 300}); err != nil {
		t.Fatalf("UpdateHoldings: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/stocks/MSFT" || got.Quantity != 10 {
		t.Errorf("request = %s %s %+v", gotMethod, gotPath, got)
	}

	if err := c.RemoveStock(context.Background(), "MSFT"); err != nil {
		t.Fatalf("RemoveStock: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", gotMethod)
	}

	if err := c.UpdateHoldings(context.Background(), "MSFT", domain.Holdings{Quantity: -1}); err == nil {
		t.Error("negative quantity should be rejected")
	}
}

func TestNormalizeSymbol(t *testing.T) {
	for in, want := range map[string]string{"aapl": "AAPL", " 005930.ks": "005930.KS", "^n225": "^N225"} {
		got, err := NormalizeSymbol(in)
		if err != nil || got != want {
			t.Errorf("NormalizeSymbol(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "AA PL", "TOO-LONG-SYMBOL-XYZ"} {
		if _, err := NormalizeSymbol(in); err == nil {
			t.Errorf("NormalizeSymbol(%q) should fail", in)
		}
	}
}
