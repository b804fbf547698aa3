package httpapi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stockdash/internal/domain"
	"stockdash/internal/loader"
	"stockdash/pkg/stockapi"
)

// Friday afternoon.
var testNow = time.Date(2024, time.June, 14, 15, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func newTestServer(t *testing.T, symbols ...string) (*DemoServer, *httptest.Server, *stockapi.Client) {
	t.Helper()
	s := NewDemoServer(WithClock(clock), WithStocks(symbols...))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	c := stockapi.NewClient(ts.URL+"/api", stockapi.WithRateLimit(0), stockapi.WithRetries(1))
	return s, ts, c
}

func apiStatus(t *testing.T, err error) int {
	t.Helper()
	var api *stockapi.APIError
	if !errors.As(err, &api) {
		t.Fatalf("err = %v, want *stockapi.APIError", err)
	}
	return api.Status
}

func TestTrackedStocksLifecycle(t *testing.T) {
	_, _, c := newTestServer(t, "AAPL")
	ctx := context.Background()

	stocks, err := c.ListStocks(ctx)
	if err != nil {
		t.Fatalf("ListStocks: %v", err)
	}
	if len(stocks) != 1 || stocks[0].Symbol != "AAPL" || stocks[0].Name != "Apple Inc." {
		t.Fatalf("stocks = %+v", stocks)
	}

	resp, err := c.AddStock(ctx, "msft", false)
	if err != nil {
		t.Fatalf("AddStock: %v", err)
	}
	if resp.Symbol != "MSFT" || !resp.InfoLoaded {
		t.Errorf("AddStock response = %+v", resp)
	}

	if _, err := c.AddStock(ctx, "MSFT", false); apiStatus(t, err) != http.StatusBadRequest {
		t.Errorf("duplicate add: %v", err)
	}
	if _, err := c.AddStock(ctx, "ZZZZ", false); apiStatus(t, err) != http.StatusNotFound {
		t.Errorf("unknown add: %v", err)
	}

	forced, err := c.AddStock(ctx, "ZZZZ", true)
	if err != nil {
		t.Fatalf("forced AddStock: %v", err)
	}
	if forced.InfoLoaded || forced.Warning == "" {
		t.Errorf("forced response = %+v, want warning and InfoLoaded=false", forced)
	}

	if err := c.RemoveStock(ctx, "AAPL"); err != nil {
		t.Fatalf("RemoveStock: %v", err)
	}
	if err := c.RemoveStock(ctx, "AAPL"); apiStatus(t, err) != http.StatusNotFound {
		t.Errorf("second remove: %v", err)
	}

	stocks, _ = c.ListStocks(ctx)
	if len(stocks) != 2 || stocks[0].Symbol != "MSFT" || stocks[1].Symbol != "ZZZZ" {
		t.Errorf("stocks after changes = %+v", stocks)
	}
}

func TestUpdateHoldings(t *testing.T) {
	s, _, c := newTestServer(t, "AAPL")
	ctx := context.Background()

	if err := c.UpdateHoldings(ctx, "AAPL", domain.Holdings{Quantity: 10, AvgPrice: 150}); err != nil {
		t.Fatalf("UpdateHoldings: %v", err)
	}
	got := s.Tracked()[0]
	if got.Quantity != 10 || got.AvgPrice != 150 {
		t.Errorf("holding = %+v", got)
	}
	if err := c.UpdateHoldings(ctx, "MSFT", domain.Holdings{Quantity: 1}); apiStatus(t, err) != http.StatusNotFound {
		t.Errorf("untracked holdings: %v", err)
	}
}

func TestPriceHistory(t *testing.T) {
	_, _, c := newTestServer(t)
	ctx := context.Background()

	month, err := c.Price(ctx, "AAPL", domain.Period1M)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	year, err := c.Price(ctx, "AAPL", domain.Period1Y)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if len(month.History) != 21 || len(year.History) != 252 {
		t.Fatalf("history lengths = %d, %d; want 21, 252", len(month.History), len(year.History))
	}

	last := month.History[len(month.History)-1]
	if !last.Close.Equal(year.History[len(year.History)-1].Close) {
		t.Error("periods disagree on the latest close")
	}
	if last.Date.String() != "2024-06-14" {
		t.Errorf("last date = %s, want 2024-06-14", last.Date)
	}
	if month.CurrentPrice != last.Close.InexactFloat64() {
		t.Errorf("CurrentPrice = %v, want last close %v", month.CurrentPrice, last.Close)
	}
	for i, h := range year.History {
		if wd := h.Date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("history[%d] falls on %s", i, wd)
		}
		if i > 0 && !h.Date.After(year.History[i-1].Date.Time) {
			t.Fatalf("history not ascending at %d", i)
		}
		if h.Low.GreaterThan(h.High) || h.Volume < 0 {
			t.Fatalf("bad bar at %d: %+v", i, h)
		}
	}

	// Same symbol and day produce the same walk.
	_, _, other := newTestServer(t)
	again, err := other.Price(ctx, "AAPL", domain.Period1M)
	if err != nil {
		t.Fatal(err)
	}
	if !again.History[0].Open.Equal(month.History[0].Open) {
		t.Error("history is not deterministic")
	}
}

func TestIndexHasNoFundamentals(t *testing.T) {
	_, _, c := newTestServer(t)
	ctx := context.Background()

	p, err := c.Price(ctx, "^N225", domain.Period3M)
	if err != nil {
		t.Fatalf("Price(^N225): %v", err)
	}
	if p.MarketCap != nil || p.PERatio != nil || p.Currency != "JPY" {
		t.Errorf("index payload = %+v", p)
	}
	f, err := c.Financials(ctx, "^N225")
	if err != nil {
		t.Fatalf("Financials(^N225): %v", err)
	}
	if f.MarketCap != nil || f.EPS != nil {
		t.Errorf("index financials = %+v", f)
	}
}

func TestAnalysis(t *testing.T) {
	_, _, c := newTestServer(t)
	ctx := context.Background()

	a, err := c.Analysis(ctx, "MSFT", domain.Period6M)
	if err != nil {
		t.Fatalf("Analysis: %v", err)
	}
	if a.Score < 0 || a.Score > 100 || a.Level == "" || a.Recommendation == "" {
		t.Errorf("score fields = %v %q %q", a.Score, a.Level, a.Recommendation)
	}
	if a.Indicators.RSI < 0 || a.Indicators.RSI > 100 {
		t.Errorf("RSI = %v", a.Indicators.RSI)
	}
	if a.MovingAverages.MA20 == nil || a.MovingAverages.MA50 == nil || a.Indicators.MACD == nil {
		t.Errorf("6mo analysis missing averages: %+v", a)
	}
	if pos := a.PriceRange.CurrentPosition; pos < 0 || pos > 100 {
		t.Errorf("CurrentPosition = %v", pos)
	}

	short, err := c.Analysis(ctx, "MSFT", domain.Period1M)
	if err != nil {
		t.Fatal(err)
	}
	if short.MovingAverages.MA50 != nil {
		t.Errorf("1mo analysis has MA50 = %v", *short.MovingAverages.MA50)
	}
}

func TestDividends(t *testing.T) {
	_, _, c := newTestServer(t)
	ctx := context.Background()

	d, err := c.Dividends(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Dividends: %v", err)
	}
	if !d.HasData || len(d.Dividends) != 8 {
		t.Fatalf("dividends = %+v", d)
	}
	var sum float64
	for _, div := range d.Dividends[4:] {
		sum += div.Amount
	}
	if math.Abs(sum-d.AnnualDividend) > 1e-3 {
		t.Errorf("AnnualDividend = %v, want %v", d.AnnualDividend, sum)
	}

	none, err := c.Dividends(ctx, "TSLA")
	if err != nil {
		t.Fatal(err)
	}
	if none.HasData || len(none.Dividends) != 0 {
		t.Errorf("TSLA dividends = %+v", none)
	}
}

func TestPrediction(t *testing.T) {
	_, ts, c := newTestServer(t)
	ctx := context.Background()

	p, err := c.Prediction(ctx, "NVDA", 10)
	if err != nil {
		t.Fatalf("Prediction: %v", err)
	}
	if len(p.Dates) != 10 || len(p.Forecast.Yhat) != 10 || len(p.Forecast.Upper) != 10 {
		t.Fatalf("prediction lengths: dates=%d yhat=%d", len(p.Dates), len(p.Forecast.Yhat))
	}
	// Next session after Friday 2024-06-14.
	if got := p.Dates[0].String(); got != "2024-06-17" {
		t.Errorf("first forecast date = %s, want 2024-06-17", got)
	}
	for i := range p.Dates {
		if p.Forecast.Lower[i] > p.Forecast.Yhat[i] || p.Forecast.Yhat[i] > p.Forecast.Upper[i] {
			t.Errorf("band inverted at %d", i)
		}
	}
	if p.Summary.NextDay.Date != "2024-06-17" || p.Summary.NextDay.Price != p.Forecast.Yhat[0] {
		t.Errorf("next day = %+v", p.Summary.NextDay)
	}

	resp, err := http.Get(ts.URL + "/api/stocks/NVDA/prediction?periods=0")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("periods=0 status = %d, want 400", resp.StatusCode)
	}
}

func TestBadRequests(t *testing.T) {
	_, ts, c := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/stocks/AAPL/price?period=5y")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("period=5y status = %d, want 400", resp.StatusCode)
	}

	_, err = c.Price(context.Background(), "QQQQ", domain.Period1M)
	if apiStatus(t, err) != http.StatusNotFound {
		t.Errorf("unknown symbol: %v", err)
	}
}

func TestInjectedRateLimit(t *testing.T) {
	s, _, c := newTestServer(t)
	ctx := context.Background()
	s.InjectFault("price", Fault{Status: http.StatusTooManyRequests, Message: "slow down", RetryAfter: 3, Count: 1})

	_, err := c.Price(ctx, "AAPL", domain.Period1M)
	var rl *stockapi.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want *stockapi.RateLimitError", err)
	}
	if rl.RetryAfter != 3*time.Second {
		t.Errorf("RetryAfter = %v, want 3s", rl.RetryAfter)
	}

	if _, err := c.Price(ctx, "AAPL", domain.Period1M); err != nil {
		t.Errorf("fault should be exhausted: %v", err)
	}
}

func TestInjectedErrorInOKBody(t *testing.T) {
	s, _, c := newTestServer(t)
	s.InjectFault("analysis", Fault{Status: http.StatusOK, Message: "analysis failed"})

	_, err := c.Analysis(context.Background(), "AAPL", domain.Period6M)
	if apiStatus(t, err) != http.StatusOK {
		t.Errorf("err = %v", err)
	}

	s.ClearFaults()
	if _, err := c.Analysis(context.Background(), "AAPL", domain.Period6M); err != nil {
		t.Errorf("after ClearFaults: %v", err)
	}
}

func TestDashboardFeedsList(t *testing.T) {
	s, _, c := newTestServer(t, "AAPL", "7203.T")
	ctx := context.Background()

	res := loader.LoadList(ctx, c, false, nil)
	if res.Err != nil || res.QuoteErr != nil {
		t.Fatalf("LoadList errors: %v, %v", res.Err, res.QuoteErr)
	}
	if len(res.Rows) != 2 || !res.Rows[0].Quoted || res.Rows[0].Price == 0 {
		t.Fatalf("rows = %+v", res.Rows)
	}

	s.InjectFault("dashboard", Fault{Status: http.StatusInternalServerError, Count: 1})
	res = loader.LoadList(ctx, c, true, nil)
	if res.Err != nil || res.QuoteErr == nil {
		t.Fatalf("want quote error only, got %v / %v", res.Err, res.QuoteErr)
	}
	if len(res.Rows) != 2 || res.Rows[1].Quoted || res.Rows[1].Price != 0 {
		t.Errorf("fallback rows = %+v", res.Rows)
	}
}
