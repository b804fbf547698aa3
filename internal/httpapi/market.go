package httpapi

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"stockdash/internal/domain"
)

// historySessions is how many sessions the walk generates: two years.
const historySessions = 504

// periodSessions maps a period to its number of trading sessions.
func periodSessions(p domain.Period) int {
	switch p {
	case domain.Period1M:
		return 21
	case domain.Period3M:
		return 63
	case domain.Period6M:
		return 126
	case domain.Period1Y:
		return 252
	default:
		return historySessions
	}
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// sessionsEnding returns n weekday dates ending on the last weekday on or
// before end.
func sessionsEnding(end time.Time, n int) []domain.Date {
	d := midnight(end)
	out := make([]domain.Date, n)
	for i := n - 1; i >= 0; d = d.AddDate(0, 0, -1) {
		if !isWeekend(d) {
			out[i] = domain.Date{Time: d}
			i--
		}
	}
	return out
}

// sessionsAfter returns the n weekday dates following after.
func sessionsAfter(after time.Time, n int) []domain.Date {
	out := make([]domain.Date, 0, n)
	for d := midnight(after).AddDate(0, 0, 1); len(out) < n; d = d.AddDate(0, 0, 1) {
		if !isWeekend(d) {
			out = append(out, domain.Date{Time: d})
		}
	}
	return out
}

func round(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(places)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// generateHistory produces the daily bars of symbol ending at end. The walk
// depends only on the symbol and the end date.
func generateHistory(symbol string, l listing, end time.Time) []domain.HistoricalRecord {
	seed := seedFor(symbol)
	r := rand.New(rand.NewPCG(seed, seed^0x5eed))

	dates := sessionsEnding(end, historySessions)
	out := make([]domain.HistoricalRecord, len(dates))
	price := l.Base
	for i, d := range dates {
		open := price * (1 + r.NormFloat64()*0.003)
		price *= 1 + l.Drift + r.NormFloat64()*l.Vol
		if price < 0.01 {
			price = 0.01
		}
		high := math.Max(open, price) * (1 + math.Abs(r.NormFloat64())*0.005)
		low := math.Min(open, price) * (1 - math.Abs(r.NormFloat64())*0.005)
		volume := int64(float64(l.AvgVolume) * (0.5 + r.Float64()))

		out[i] = domain.HistoricalRecord{
			Date:   d,
			Open:   round(open, 2),
			High:   round(high, 2),
			Low:    round(low, 2),
			Close:  round(price, 2),
			Volume: volume,
		}
	}
	return out
}

func closes(history []domain.HistoricalRecord) []float64 {
	out := make([]float64, len(history))
	for i, h := range history {
		out[i] = h.Close.InexactFloat64()
	}
	return out
}

// ---------------------------------------------------------------------------
// Indicators
// ---------------------------------------------------------------------------

func sma(values []float64, n int) *float64 {
	if n <= 0 || len(values) < n {
		return nil
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	avg := round2(sum / float64(n))
	return &avg
}

func ema(values []float64, n int) []float64 {
	if len(values) == 0 {
		return nil
	}
	k := 2 / float64(n+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// rsi is the simple-average relative strength index over the last n changes.
func rsi(values []float64, n int) float64 {
	if len(values) <= n {
		return 50
	}
	var gain, loss float64
	for i := len(values) - n; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	switch {
	case gain == 0 && loss == 0:
		return 50
	case loss == 0:
		return 100
	}
	rs := gain / loss
	return round2(100 - 100/(1+rs))
}

// volatility is the annualised stdev of daily returns, in percent.
func volatility(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			rets = append(rets, values[i]/values[i-1]-1)
		}
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var ss float64
	for _, r := range rets {
		ss += (r - mean) * (r - mean)
	}
	sd := math.Sqrt(ss / float64(len(rets)-1))
	return round2(sd * math.Sqrt(252) * 100)
}

func macd(values []float64) *domain.MACD {
	if len(values) < 35 {
		return nil
	}
	fast, slow := ema(values, 12), ema(values, 26)
	line := make([]float64, len(values))
	for i := range values {
		line[i] = fast[i] - slow[i]
	}
	signal := ema(line, 9)
	last := len(values) - 1
	return &domain.MACD{
		MACD:      round2(line[last]),
		Signal:    round2(signal[last]),
		Histogram: round2(line[last] - signal[last]),
	}
}

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

func optional(v float64) *float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func pricePayload(symbol string, l listing, full []domain.HistoricalRecord, period domain.Period) *domain.PricePayload {
	n := periodSessions(period)
	history := full[len(full)-n:]
	last := full[len(full)-1]
	prev := full[len(full)-2]
	cur := last.Close.InexactFloat64()
	prevClose := prev.Close.InexactFloat64()

	year := closes(full[len(full)-252:])
	hi, lo := year[0], year[0]
	for _, c := range year {
		hi = math.Max(hi, c)
		lo = math.Min(lo, c)
	}

	p := &domain.PricePayload{
		Symbol:         symbol,
		Name:           l.Name,
		Market:         l.Market,
		Currency:       l.Currency,
		CurrencySymbol: l.CurrencySymbol,
		CurrentPrice:   cur,
		PreviousClose:  prevClose,
		Change:         round2(cur - prevClose),
		ChangePercent:  round2((cur/prevClose - 1) * 100),
		Volume:         last.Volume,
		MarketCap:      optional(cur * l.Shares),
		Week52High:     optional(hi),
		Week52Low:      optional(lo),
		History:        history,
	}
	if l.EPS > 0 {
		p.PERatio = optional(round2(cur / l.EPS))
	}
	if l.Dividend > 0 {
		p.DividendYield = optional(l.Dividend * 4 / cur)
	}
	return p
}

func analysisPayload(symbol string, full []domain.HistoricalRecord, period domain.Period) *domain.AnalysisPayload {
	values := closes(full[len(full)-periodSessions(period):])
	cur := values[len(values)-1]

	a := &domain.AnalysisPayload{
		Symbol:       symbol,
		AnalysisDate: full[len(full)-1].Date.String(),
		CurrentPrice: cur,
		Indicators: domain.AnalysisIndicators{
			RSI:        rsi(values, 14),
			Volatility: volatility(values),
			MACD:       macd(values),
		},
		MovingAverages: domain.MovingAverages{
			MA20: sma(values, 20),
			MA50: sma(values, 50),
		},
	}

	hi, lo := values[0], values[0]
	for _, v := range values {
		hi = math.Max(hi, v)
		lo = math.Min(lo, v)
	}
	a.PriceRange = domain.PriceRange{Max: hi, Min: lo, CurrentPosition: 50}
	if hi > lo {
		a.PriceRange.CurrentPosition = round2((cur - lo) / (hi - lo) * 100)
	}

	score := 50 + (a.Indicators.RSI-50)*0.4
	if ma := a.MovingAverages.MA20; ma != nil {
		score += math.Copysign(10, cur-*ma)
	}
	if ma := a.MovingAverages.MA50; ma != nil {
		score += math.Copysign(15, cur-*ma)
	}
	if a.Indicators.Volatility > 40 {
		score -= 10
	}
	a.Score = round2(math.Max(0, math.Min(100, score)))
	a.Level, a.Recommendation = grade(a.Score)
	a.Summary = summarize(a)
	return a
}

func grade(score float64) (level, recommendation string) {
	switch {
	case score >= 80:
		return "Excellent", "Strong buy"
	case score >= 60:
		return "Good", "Buy"
	case score >= 40:
		return "Fair", "Hold"
	case score >= 20:
		return "Weak", "Sell"
	default:
		return "Poor", "Strong sell"
	}
}

func summarize(a *domain.AnalysisPayload) domain.AnalysisSummary {
	var s domain.AnalysisSummary
	switch ma := a.MovingAverages.MA20; {
	case ma == nil:
		s.Trend = "unknown"
	case a.CurrentPrice > *ma:
		s.Trend = "uptrend"
	case a.CurrentPrice < *ma:
		s.Trend = "downtrend"
	default:
		s.Trend = "sideways"
	}
	switch r := a.Indicators.RSI; {
	case r > 70:
		s.Momentum = "overheated"
	case r < 30:
		s.Momentum = "weak"
	default:
		s.Momentum = "neutral"
	}
	switch v := a.Indicators.Volatility; {
	case v > 40:
		s.Risk = "high"
	case v < 20:
		s.Risk = "low"
	default:
		s.Risk = "medium"
	}
	return s
}

func financialsPayload(symbol string, l listing, cur float64) *domain.FinancialsPayload {
	f := &domain.FinancialsPayload{
		Symbol:         symbol,
		Currency:       l.Currency,
		CurrencySymbol: l.CurrencySymbol,
	}
	if l.Shares == 0 {
		return f
	}
	mc := cur * l.Shares
	f.MarketCap = optional(mc)
	f.EnterpriseValue = optional(mc * 1.03)
	f.TotalCash = optional(mc * 0.05)
	f.TotalDebt = optional(mc * 0.04)
	f.DebtToEquity = optional(round2(80 + float64(seedFor(symbol)%120)))
	f.Beta = optional(l.Beta)
	if l.EPS > 0 {
		f.EPS = optional(l.EPS)
		f.PERatio = optional(round2(cur / l.EPS))
		f.PriceToBook = optional(round2(cur / l.EPS / 4))
		revenue := l.EPS * l.Shares * 4
		f.Revenue = optional(revenue)
		f.ProfitMargin = optional(0.25)
		f.ReturnOnEquity = optional(0.18)
	}
	if l.Dividend > 0 {
		f.DividendRate = optional(l.Dividend * 4)
		f.DividendYield = optional(l.Dividend * 4 / cur)
	}
	return f
}

// dividendsPayload pays quarterly over the last two years, oldest first.
func dividendsPayload(symbol string, l listing, now time.Time) *domain.DividendsPayload {
	d := &domain.DividendsPayload{
		Symbol:         symbol,
		Currency:       l.Currency,
		CurrencySymbol: l.CurrencySymbol,
		Dividends:      []domain.Dividend{},
	}
	if l.Dividend <= 0 {
		return d
	}
	d.HasData = true

	first := time.Date(now.Year()-2, now.Month(), 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		// Small yearly raise.
		amount := l.Dividend * (1 - 0.03*float64(7-i)/4)
		d.Dividends = append(d.Dividends, domain.Dividend{
			Date:   domain.Date{Time: first.AddDate(0, 3*i, 0)},
			Amount: math.Round(amount*10000) / 10000,
		})
	}
	for _, div := range d.Dividends[len(d.Dividends)-4:] {
		d.AnnualDividend += div.Amount
	}
	d.AnnualDividend = math.Round(d.AnnualDividend*10000) / 10000
	return d
}

// predictionPayload extends the recent slope with a widening band.
func predictionPayload(symbol string, l listing, full []domain.HistoricalRecord, days int) *domain.PredictionPayload {
	values := closes(full)
	last := values[len(values)-1]
	lookback := 20
	slope := (last - values[len(values)-1-lookback]) / float64(lookback)

	dates := sessionsAfter(full[len(full)-1].Date.Time, days)
	f := domain.Forecast{
		Yhat:  make([]float64, days),
		Lower: make([]float64, days),
		Upper: make([]float64, days),
		Trend: make([]float64, days),
	}
	for i := range days {
		step := float64(i + 1)
		trend := last + slope*step
		width := last * l.Vol * math.Sqrt(step) * 1.96
		f.Trend[i] = round2(trend)
		f.Yhat[i] = round2(trend)
		f.Lower[i] = round2(trend - width)
		f.Upper[i] = round2(trend + width)
	}

	diff := f.Yhat[0] - last
	direction := "flat"
	switch {
	case slope > 0:
		direction = "up"
	case slope < 0:
		direction = "down"
	}
	return &domain.PredictionPayload{
		Symbol:       symbol,
		Dates:        dates,
		CurrentPrice: last,
		Forecast:     f,
		Summary: domain.PredictionSummary{NextDay: domain.NextDay{
			Date:           dates[0].String(),
			Price:          f.Yhat[0],
			RangeLow:       f.Lower[0],
			RangeHigh:      f.Upper[0],
			Diff:           round2(diff),
			DiffPercent:    round2(diff / last * 100),
			TrendDirection: direction,
		}},
	}
}
