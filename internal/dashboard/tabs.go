package dashboard

import (
	"fmt"
	"math"

	"stockdash/internal/domain"
	"stockdash/internal/loader"
)

// Tone tints a value when it is displayed.
type Tone int

const (
	ToneNone Tone = iota
	TonePositive
	ToneMildPositive
	ToneCaution
	ToneMildNegative
	ToneNegative
)

// Row is one labelled value of a section.
type Row struct {
	Label string
	Value string
	Tone  Tone
}

// Section groups rows under a heading.
type Section struct {
	Title string
	Rows  []Row
}

// ViewModel is everything a tab shows besides the chart.
type ViewModel struct {
	Title    string
	Sections []Section
	// Notice is a non-fatal remark such as stale cached data.
	Notice string
	// Empty replaces the sections when there is nothing to show.
	Empty string
}

// Context carries the payloads loaded for the selected symbol. Any payload
// may be nil.
type Context struct {
	Symbol     string
	Row        *loader.ListRow
	Price      *domain.PricePayload
	Analysis   *domain.AnalysisPayload
	Financials *domain.FinancialsPayload
	Dividends  *domain.DividendsPayload
	Prediction *domain.PredictionPayload
}

// Currency picks the currency of the first payload that carries one.
func (c Context) Currency() Currency {
	switch {
	case c.Price != nil && c.Price.Currency != "":
		return Currency{Code: c.Price.Currency, Symbol: c.Price.CurrencySymbol}
	case c.Financials != nil && c.Financials.Currency != "":
		return Currency{Code: c.Financials.Currency, Symbol: c.Financials.CurrencySymbol}
	case c.Dividends != nil && c.Dividends.Currency != "":
		return Currency{Code: c.Dividends.Currency, Symbol: c.Dividends.CurrencySymbol}
	}
	return USD
}

// Builder renders one tab.
type Builder func(Context) ViewModel

// Builders maps every tab to its view-model builder.
var Builders = map[domain.Tab]Builder{
	domain.TabChart:      buildChart,
	domain.TabAnalysis:   buildAnalysis,
	domain.TabFinancials: buildFinancials,
	domain.TabDividends:  buildDividends,
	domain.TabPortfolio:  buildPortfolio,
	domain.TabPrediction: buildPrediction,
}

// Build renders tab from ctx.
func Build(tab domain.Tab, ctx Context) ViewModel {
	b, ok := Builders[tab]
	if !ok {
		return ViewModel{Title: string(tab), Empty: "unknown tab"}
	}
	return b(ctx)
}

// ScoreTone bands an analysis score at 80/60/40/20.
func ScoreTone(score float64) Tone {
	switch {
	case score >= 80:
		return TonePositive
	case score >= 60:
		return ToneMildPositive
	case score >= 40:
		return ToneCaution
	case score >= 20:
		return ToneMildNegative
	default:
		return ToneNegative
	}
}

// DescribeRSI labels an RSI reading.
func DescribeRSI(rsi float64) (string, Tone) {
	switch {
	case rsi < 30:
		return "oversold", TonePositive
	case rsi > 70:
		return "overbought", ToneNegative
	default:
		return "neutral", ToneNone
	}
}

// DescribeVolatility labels an annualised volatility in percent.
func DescribeVolatility(v float64) string {
	switch {
	case v < 20:
		return "low (stable)"
	case v > 40:
		return "high (volatile)"
	default:
		return "moderate"
	}
}

func signTone(v float64) Tone {
	switch {
	case v > 0:
		return TonePositive
	case v < 0:
		return ToneNegative
	default:
		return ToneNone
	}
}

func cachedNotice(p *domain.PricePayload) string {
	if p == nil || !p.Cached {
		return ""
	}
	if p.Message != "" {
		return p.Message
	}
	return "showing cached data"
}

func buildChart(ctx Context) ViewModel {
	vm := ViewModel{Title: domain.TabChart.Label()}
	p := ctx.Price
	if p == nil {
		vm.Empty = "no price data"
		return vm
	}
	cur := ctx.Currency()
	vm.Notice = cachedNotice(p)
	vm.Sections = append(vm.Sections, Section{
		Title: "Quote",
		Rows: []Row{
			{Label: "Price", Value: FormatPrice(p.CurrentPrice, cur)},
			{Label: "Change", Value: FormatChange(p.Change, p.ChangePercent, cur), Tone: signTone(p.Change)},
			{Label: "Prev close", Value: FormatPrice(p.PreviousClose, cur)},
			{Label: "Volume", Value: FormatVolume(p.Volume)},
			{Label: "Market cap", Value: FormatLargeNumber(p.MarketCap, cur)},
			{Label: "P/E", Value: FormatRatio(p.PERatio)},
			{Label: "52w high", Value: FormatOptPrice(p.Week52High, cur)},
			{Label: "52w low", Value: FormatOptPrice(p.Week52Low, cur)},
		},
	})

	if len(p.History) > 0 {
		s := SummarizeHistory(p.History)
		ret := s.Return * 100
		vm.Sections = append(vm.Sections, Section{
			Title: "Period",
			Rows: []Row{
				{Label: "Days", Value: fmt.Sprintf("%d", s.Days)},
				{Label: "Return", Value: FormatSignedPercent(ret), Tone: signTone(ret)},
				{Label: "High", Value: FormatPrice(s.High, cur)},
				{Label: "Low", Value: FormatPrice(s.Low, cur)},
				{Label: "Max gain", Value: fmt.Sprintf("%.2f%%", s.MaxGain*100)},
				{Label: "Max drawdown", Value: fmt.Sprintf("%.2f%%", s.MaxDrawdown*100)},
				{Label: "Volume", Value: FormatVolume(s.TotalVolume)},
			},
		})
	}
	return vm
}

func buildAnalysis(ctx Context) ViewModel {
	vm := ViewModel{Title: domain.TabAnalysis.Label()}
	a := ctx.Analysis
	if a == nil {
		vm.Empty = "no analysis data"
		return vm
	}
	cur := ctx.Currency()
	rsiText, rsiTone := DescribeRSI(a.Indicators.RSI)

	vm.Sections = []Section{
		{
			Title: "Score",
			Rows: []Row{
				{Label: "Score", Value: fmt.Sprintf("%.0f", math.Round(a.Score)), Tone: ScoreTone(a.Score)},
				{Label: "Level", Value: a.Level},
				{Label: "Recommendation", Value: a.Recommendation},
			},
		},
		{
			Title: "Summary",
			Rows: []Row{
				{Label: "Trend", Value: a.Summary.Trend},
				{Label: "Momentum", Value: a.Summary.Momentum},
				{Label: "Risk", Value: a.Summary.Risk},
			},
		},
		{
			Title: "Indicators",
			Rows: []Row{
				{Label: "RSI (14d)", Value: fmt.Sprintf("%.2f %s", a.Indicators.RSI, rsiText), Tone: rsiTone},
				{Label: "Volatility", Value: fmt.Sprintf("%.2f%% %s", a.Indicators.Volatility, DescribeVolatility(a.Indicators.Volatility))},
				{Label: "MA 20", Value: FormatOptPrice(a.MovingAverages.MA20, cur)},
				{Label: "MA 50", Value: FormatOptPrice(a.MovingAverages.MA50, cur)},
				{Label: "Position", Value: fmt.Sprintf("%.1f%%", a.PriceRange.CurrentPosition)},
				{Label: "Range", Value: FormatPrice(a.PriceRange.Max, cur) + " / " + FormatPrice(a.PriceRange.Min, cur)},
			},
		},
	}

	if m := a.Indicators.MACD; m != nil {
		vm.Sections = append(vm.Sections, Section{
			Title: "MACD",
			Rows: []Row{
				{Label: "MACD", Value: fmt.Sprintf("%.4f", m.MACD)},
				{Label: "Signal", Value: fmt.Sprintf("%.4f", m.Signal)},
				{Label: "Histogram", Value: fmt.Sprintf("%.4f", m.Histogram), Tone: signTone(m.Histogram)},
			},
		})
	}
	return vm
}

func buildFinancials(ctx Context) ViewModel {
	vm := ViewModel{Title: domain.TabFinancials.Label()}
	f := ctx.Financials
	if f == nil {
		vm.Empty = "no financial data"
		return vm
	}
	cur := ctx.Currency()
	vm.Sections = []Section{
		{Title: "Valuation", Rows: []Row{
			{Label: "Market cap", Value: FormatLargeNumber(f.MarketCap, cur)},
			{Label: "Enterprise value", Value: FormatLargeNumber(f.EnterpriseValue, cur)},
			{Label: "P/E", Value: FormatRatio(f.PERatio)},
			{Label: "P/B", Value: FormatRatio(f.PriceToBook)},
		}},
		{Title: "Profitability", Rows: []Row{
			{Label: "EPS", Value: FormatOptPrice(f.EPS, cur)},
			{Label: "Revenue", Value: FormatLargeNumber(f.Revenue, cur)},
			{Label: "Profit margin", Value: FormatPercent(f.ProfitMargin)},
			{Label: "ROE", Value: FormatPercent(f.ReturnOnEquity)},
		}},
		{Title: "Dividend", Rows: []Row{
			{Label: "Rate", Value: FormatOptPrice(f.DividendRate, cur)},
			{Label: "Yield", Value: FormatPercent(f.DividendYield)},
		}},
		{Title: "Balance sheet", Rows: []Row{
			{Label: "Cash", Value: FormatLargeNumber(f.TotalCash, cur)},
			{Label: "Debt", Value: FormatLargeNumber(f.TotalDebt, cur)},
			{Label: "D/E", Value: FormatRatio(f.DebtToEquity)},
			{Label: "Beta", Value: FormatRatio(f.Beta)},
		}},
	}
	return vm
}

// RecentDividends is how many payments the dividends tab lists.
const RecentDividends = 12

func buildDividends(ctx Context) ViewModel {
	vm := ViewModel{Title: domain.TabDividends.Label()}
	d := ctx.Dividends
	if d == nil || !d.HasData || len(d.Dividends) == 0 {
		vm.Empty = "no dividend data"
		return vm
	}
	cur := ctx.Currency()

	recent := d.Dividends
	if len(recent) > RecentDividends {
		recent = recent[len(recent)-RecentDividends:]
	}
	rows := make([]Row, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		rows = append(rows, Row{Label: recent[i].Date.String(), Value: FormatPrice(recent[i].Amount, cur)})
	}

	vm.Sections = []Section{
		{Title: "Summary", Rows: []Row{
			{Label: "Annual (est.)", Value: FormatPrice(d.AnnualDividend, cur)},
		}},
		{Title: "Recent payments", Rows: rows},
	}
	return vm
}

// Position is the valuation of a holding at the current price.
type Position struct {
	Quantity    float64
	AvgPrice    float64
	Cost        float64
	Value       float64
	Gain        float64
	GainPercent float64 // 0 when Cost is 0
}

// Valuate values quantity shares bought at avgPrice at the price current.
func Valuate(quantity, avgPrice, current float64) Position {
	p := Position{
		Quantity: quantity,
		AvgPrice: avgPrice,
		Cost:     quantity * avgPrice,
		Value:    quantity * current,
	}
	p.Gain = p.Value - p.Cost
	if p.Cost > 0 {
		p.GainPercent = p.Gain / p.Cost * 100
	}
	return p
}

func buildPortfolio(ctx Context) ViewModel {
	vm := ViewModel{Title: domain.TabPortfolio.Label()}
	if ctx.Price == nil {
		vm.Empty = "no price data"
		return vm
	}
	var qty, avg float64
	if ctx.Row != nil {
		qty, avg = ctx.Row.Quantity, ctx.Row.AvgPrice
	}
	cur := ctx.Currency()
	pos := Valuate(qty, avg, ctx.Price.CurrentPrice)
	tone := TonePositive
	if pos.Gain < 0 {
		tone = ToneNegative
	}

	vm.Sections = []Section{{
		Title: "Holding",
		Rows: []Row{
			{Label: "Quantity", Value: FormatQuantity(pos.Quantity)},
			{Label: "Avg price", Value: FormatPrice(pos.AvgPrice, cur)},
			{Label: "Cost", Value: FormatPrice(pos.Cost, cur)},
			{Label: "Value", Value: FormatPrice(pos.Value, cur)},
			{Label: "Gain", Value: FormatSignedPrice(pos.Gain, cur), Tone: tone},
			{Label: "Gain %", Value: FormatSignedPercent(pos.GainPercent), Tone: tone},
		},
	}}
	vm.Notice = cachedNotice(ctx.Price)
	return vm
}

func buildPrediction(ctx Context) ViewModel {
	vm := ViewModel{Title: domain.TabPrediction.Label()}
	p := ctx.Prediction
	if p == nil {
		vm.Empty = "no prediction data"
		return vm
	}
	cur := ctx.Currency()
	n := p.Summary.NextDay

	vm.Sections = []Section{{
		Title: "Next day",
		Rows: []Row{
			{Label: "Date", Value: n.Date},
			{Label: "Forecast", Value: FormatPrice(n.Price, cur)},
			{Label: "Range", Value: FormatPrice(n.RangeLow, cur) + " - " + FormatPrice(n.RangeHigh, cur)},
			{Label: "Change", Value: FormatChange(n.Diff, n.DiffPercent, cur), Tone: signTone(n.Diff)},
			{Label: "Trend", Value: n.TrendDirection},
		},
	}, {
		Title: "Forecast",
		Rows: []Row{
			{Label: "Current", Value: FormatPrice(p.CurrentPrice, cur)},
			{Label: "Horizon", Value: fmt.Sprintf("%d days", len(p.Dates))},
		},
	}}
	return vm
}
