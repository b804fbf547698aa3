// Package domain defines the payload types exchanged with the stock
// dashboard backend together with the period, tab and indicator enums the
// detail view is keyed on.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

// Period is a history window understood by the price and analysis endpoints.
type Period string

const (
	Period1M Period = "1mo"
	Period3M Period = "3mo"
	Period6M Period = "6mo"
	Period1Y Period = "1y"
	Period2Y Period = "2y"
)

// Periods lists every supported period in ascending length.
var Periods = []Period{Period1M, Period3M, Period6M, Period1Y, Period2Y}

// DefaultPeriod is the period used before the user picks one.
const DefaultPeriod = Period6M

// Valid reports whether p is one of Periods.
func (p Period) Valid() bool {
	for _, v := range Periods {
		if v == p {
			return true
		}
	}
	return false
}

// Label returns the short button label, e.g. "6M".
func (p Period) Label() string {
	switch p {
	case Period1M:
		return "1M"
	case Period3M:
		return "3M"
	case Period6M:
		return "6M"
	case Period1Y:
		return "1Y"
	case Period2Y:
		return "2Y"
	}
	return string(p)
}

// ParsePeriod accepts either the wire value ("6mo") or the label ("6M").
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	for _, p := range Periods {
		if strings.EqualFold(s, string(p)) || strings.EqualFold(s, p.Label()) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Tab identifies one of the detail view panels.
type Tab string

const (
	TabChart      Tab = "chart"
	TabAnalysis   Tab = "analysis"
	TabFinancials Tab = "financials"
	TabDividends  Tab = "dividends"
	TabPortfolio  Tab = "portfolio"
	TabPrediction Tab = "prediction"
)

// Tabs lists the tabs in display order.
var Tabs = []Tab{TabChart, TabAnalysis, TabFinancials, TabDividends, TabPortfolio, TabPrediction}

// Valid reports whether t is one of Tabs.
func (t Tab) Valid() bool {
	for _, v := range Tabs {
		if v == t {
			return true
		}
	}
	return false
}

// Label returns the tab's display name.
func (t Tab) Label() string {
	switch t {
	case TabChart:
		return "Chart"
	case TabAnalysis:
		return "Analysis"
	case TabFinancials:
		return "Financials"
	case TabDividends:
		return "Dividends"
	case TabPortfolio:
		return "Portfolio"
	case TabPrediction:
		return "Prediction"
	}
	return string(t)
}

// PeriodDependent reports whether the tab's payload changes with the period.
func (t Tab) PeriodDependent() bool {
	return t == TabChart || t == TabAnalysis
}

// ParseTab parses a tab name case-insensitively.
func ParseTab(s string) (Tab, error) {
	for _, t := range Tabs {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tab %q", s)
}

// IndicatorCatalog holds the moving-average windows offered to the user.
var IndicatorCatalog = []int{5, 10, 15, 20, 25, 30, 35, 40, 45, 50}

// MaxIndicators is the most moving averages drawn at once.
const MaxIndicators = 2

// InCatalog reports whether window is offered in IndicatorCatalog.
func InCatalog(window int) bool {
	for _, w := range IndicatorCatalog {
		if w == window {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Dates
// ---------------------------------------------------------------------------

// DateLayout is the wire format of every date the backend sends.
const DateLayout = "2006-01-02"

// Date is a calendar day encoded as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD". Longer timestamps are cut to their date.
func ParseDate(s string) (Date, error) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ---------------------------------------------------------------------------
// Price and history
// ---------------------------------------------------------------------------

// HistoricalRecord is one daily OHLCV row, delivered in ascending date order.
type HistoricalRecord struct {
	Date   Date            `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// PricePayload is the response of GET /stocks/{symbol}/price.
type PricePayload struct {
	Symbol         string             `json:"symbol"`
	Name           string             `json:"name"`
	Market         string             `json:"market"`
	Currency       string             `json:"currency"`
	CurrencySymbol string             `json:"currency_symbol"`
	CurrentPrice   float64            `json:"current_price"`
	PreviousClose  float64            `json:"previous_close"`
	Change         float64            `json:"change"`
	ChangePercent  float64            `json:"change_percent"`
	Volume         int64              `json:"volume"`
	MarketCap      *float64           `json:"market_cap"`
	PERatio        *float64           `json:"pe_ratio"`
	DividendYield  *float64           `json:"dividend_yield"`
	Week52High     *float64           `json:"52_week_high"`
	Week52Low      *float64           `json:"52_week_low"`
	History        []HistoricalRecord `json:"history"`
	Cached         bool               `json:"cached"`
	Message        string             `json:"message,omitempty"`
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

// MACD holds the MACD line, its signal line and their difference.
type MACD struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// AnalysisSummary is the backend's qualitative read of trend, momentum and risk.
type AnalysisSummary struct {
	Trend    string `json:"trend"`
	Momentum string `json:"momentum"`
	Risk     string `json:"risk"`
}

// AnalysisIndicators carries the technical indicators of an analysis.
type AnalysisIndicators struct {
	RSI        float64 `json:"rsi"`
	Volatility float64 `json:"volatility"`
	MACD       *MACD   `json:"macd,omitempty"`
}

// MovingAverages holds the long moving averages reported by the analysis.
type MovingAverages struct {
	MA20 *float64 `json:"ma_20"`
	MA50 *float64 `json:"ma_50"`
}

// PriceRange describes where the current price sits within the period.
type PriceRange struct {
	Max             float64 `json:"max"`
	Min             float64 `json:"min"`
	CurrentPosition float64 `json:"current_position"`
}

// AnalysisPayload is the response of GET /stocks/{symbol}/analysis.
type AnalysisPayload struct {
	Symbol         string             `json:"symbol"`
	AnalysisDate   string             `json:"analysis_date"`
	CurrentPrice   float64            `json:"current_price"`
	Score          float64            `json:"score"`
	Level          string             `json:"level"`
	Recommendation string             `json:"recommendation"`
	Summary        AnalysisSummary    `json:"summary"`
	Indicators     AnalysisIndicators `json:"indicators"`
	MovingAverages MovingAverages     `json:"moving_averages"`
	PriceRange     PriceRange         `json:"price_range"`
}

// ---------------------------------------------------------------------------
// Financials, dividends, prediction
// ---------------------------------------------------------------------------

// FinancialsPayload is the response of GET /stocks/{symbol}/financials.
// Missing metrics are nil.
type FinancialsPayload struct {
	Symbol          string   `json:"symbol"`
	MarketCap       *float64 `json:"market_cap"`
	EnterpriseValue *float64 `json:"enterprise_value"`
	PERatio         *float64 `json:"pe_ratio"`
	PriceToBook     *float64 `json:"price_to_book"`
	EPS             *float64 `json:"eps"`
	Revenue         *float64 `json:"revenue"`
	ProfitMargin    *float64 `json:"profit_margin"`
	ReturnOnEquity  *float64 `json:"return_on_equity"`
	DividendRate    *float64 `json:"dividend_rate"`
	DividendYield   *float64 `json:"dividend_yield"`
	TotalCash       *float64 `json:"total_cash"`
	TotalDebt       *float64 `json:"total_debt"`
	DebtToEquity    *float64 `json:"debt_to_equity"`
	Beta            *float64 `json:"beta"`
	Currency        string   `json:"currency"`
	CurrencySymbol  string   `json:"currency_symbol"`
}

// Dividend is a single cash distribution.
type Dividend struct {
	Date   Date    `json:"date"`
	Amount float64 `json:"amount"`
}

// DividendsPayload is the response of GET /stocks/{symbol}/dividends.
type DividendsPayload struct {
	Symbol         string     `json:"symbol"`
	HasData        bool       `json:"has_data"`
	Dividends      []Dividend `json:"dividends"`
	AnnualDividend float64    `json:"annual_dividend"`
	Currency       string     `json:"currency"`
	CurrencySymbol string     `json:"currency_symbol"`
}

// Forecast holds the parallel arrays of a prediction. Index i of every array
// belongs to PredictionPayload.Dates[i].
type Forecast struct {
	Yhat  []float64 `json:"yhat"`
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
	Trend []float64 `json:"trend"`
}

// NextDay summarises the first forecast day.
type NextDay struct {
	Date           string  `json:"date"`
	Price          float64 `json:"price"`
	RangeLow       float64 `json:"range_low"`
	RangeHigh      float64 `json:"range_high"`
	Diff           float64 `json:"diff"`
	DiffPercent    float64 `json:"diff_percent"`
	TrendDirection string  `json:"trend_direction"`
}

// PredictionSummary wraps the next-day summary.
type PredictionSummary struct {
	NextDay NextDay `json:"next_day"`
}

// PredictionPayload is the response of GET /stocks/{symbol}/prediction.
type PredictionPayload struct {
	Symbol       string            `json:"symbol"`
	Dates        []Date            `json:"dates"`
	CurrentPrice float64           `json:"current_price"`
	Forecast     Forecast          `json:"forecast"`
	Summary      PredictionSummary `json:"summary"`
}

// ---------------------------------------------------------------------------
// Tracked stocks
// ---------------------------------------------------------------------------

// TrackedStock is one entry of GET /stocks.
type TrackedStock struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	AddedAt  string  `json:"added_at"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// DashboardEntry is one entry of GET /dashboard.
type DashboardEntry struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Cached        bool    `json:"cached"`
	Message       string  `json:"message,omitempty"`
}

// AddStockRequest is the body of POST /stocks.
type AddStockRequest struct {
	Symbol string `json:"symbol"`
	Force  bool   `json:"force,omitempty"`
}

// AddStockResponse is the 201 body of POST /stocks.
type AddStockResponse struct {
	Message    string `json:"message"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	InfoLoaded bool   `json:"info_loaded"`
	Warning    string `json:"warning,omitempty"`
}

// Holdings is the body of PUT /stocks/{symbol}.
type Holdings struct {
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// ErrorBody is the JSON shape of every backend error response.
type ErrorBody struct {
	Error      string  `json:"error"`
	Hint       string  `json:"hint,omitempty"`
	RetryAfter float64 `json:"retry_after,omitempty"`
}
