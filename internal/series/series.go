// Package series converts backend history payloads into the point series the
// chart layer draws: candles, direction-tagged volume bars, simple moving
// averages and the prediction band.
//
// Every function is pure. Inputs are assumed to be in ascending date order,
// as the backend delivers them, and are never reordered except where noted.
package series

import (
	"slices"

	"github.com/shopspring/decimal"

	"stockdash/internal/domain"
)

// Direction tags a volume bar by the sign of its session.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// Candle is one OHLC point.
type Candle struct {
	Time  domain.Date
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
}

// VolumeBar is one volume point coloured by session direction.
type VolumeBar struct {
	Time      domain.Date
	Value     int64
	Direction Direction
}

// Point is a single value at a date, used for moving averages and bars.
type Point struct {
	Time  domain.Date
	Value decimal.Decimal
}

// MovingAverage is the simple moving average of closes over Window sessions.
type MovingAverage struct {
	Window int
	Points []Point
}

// BandPoint is one forecast day with its confidence interval.
type BandPoint struct {
	Time  domain.Date
	Yhat  float64
	Upper float64
	Lower float64
}

// Candles maps each record to a candle, one to one and in order.
func Candles(history []domain.HistoricalRecord) []Candle {
	out := make([]Candle, len(history))
	for i, r := range history {
		out[i] = Candle{Time: r.Date, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close}
	}
	return out
}

// Closes returns the close of every candle. It inverts Candles for the close
// column and is only used to check that mapping; nothing renders from it.
func Closes(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volume maps each record to a volume bar. A session that closes at or above
// its open counts as up.
func Volume(history []domain.HistoricalRecord) []VolumeBar {
	out := make([]VolumeBar, len(history))
	for i, r := range history {
		dir := Up
		if r.Close.LessThan(r.Open) {
			dir = Down
		}
		out[i] = VolumeBar{Time: r.Date, Value: r.Volume, Direction: dir}
	}
	return out
}

// SimpleMovingAverage computes the window-session average of closes using a
// running sum. The result has max(0, len(history)-window+1) points and its
// first point sits on the window-th record. A non-positive window yields an
// empty series.
func SimpleMovingAverage(history []domain.HistoricalRecord, window int) MovingAverage {
	ma := MovingAverage{Window: window}
	if window <= 0 || window > len(history) {
		return ma
	}

	n := decimal.NewFromInt(int64(window))
	sum := decimal.Zero
	ma.Points = make([]Point, 0, len(history)-window+1)
	for i, r := range history {
		sum = sum.Add(r.Close)
		if i >= window {
			sum = sum.Sub(history[i-window].Close)
		}
		if i >= window-1 {
			ma.Points = append(ma.Points, Point{Time: r.Date, Value: sum.Div(n)})
		}
	}
	return ma
}

// MovingAverages computes one average per window, in ascending window order.
func MovingAverages(history []domain.HistoricalRecord, windows []int) []MovingAverage {
	sorted := slices.Clone(windows)
	slices.Sort(sorted)
	out := make([]MovingAverage, 0, len(sorted))
	for _, w := range sorted {
		out = append(out, SimpleMovingAverage(history, w))
	}
	return out
}

// PredictionBand zips the forecast's parallel arrays with their dates,
// truncating to the shortest array. Band ordering is not validated.
func PredictionBand(dates []domain.Date, f domain.Forecast) []BandPoint {
	n := min(len(dates), len(f.Yhat), len(f.Upper), len(f.Lower))
	out := make([]BandPoint, n)
	for i := 0; i < n; i++ {
		out[i] = BandPoint{Time: dates[i], Yhat: f.Yhat[i], Upper: f.Upper[i], Lower: f.Lower[i]}
	}
	return out
}

// BandLines splits a band into its forecast, upper and lower lines.
func BandLines(band []BandPoint) (yhat, upper, lower []Point) {
	yhat = make([]Point, len(band))
	upper = make([]Point, len(band))
	lower = make([]Point, len(band))
	for i, b := range band {
		yhat[i] = Point{Time: b.Time, Value: decimal.NewFromFloat(b.Yhat)}
		upper[i] = Point{Time: b.Time, Value: decimal.NewFromFloat(b.Upper)}
		lower[i] = Point{Time: b.Time, Value: decimal.NewFromFloat(b.Lower)}
	}
	return yhat, upper, lower
}

// ClosePoints returns the close line of a history, used to anchor the
// prediction band to the recent past.
func ClosePoints(history []domain.HistoricalRecord) []Point {
	out := make([]Point, len(history))
	for i, r := range history {
		out[i] = Point{Time: r.Date, Value: r.Close}
	}
	return out
}

// DividendBars returns one bar per dividend sorted oldest first.
func DividendBars(dividends []domain.Dividend) []Point {
	out := make([]Point, len(dividends))
	for i, d := range dividends {
		out[i] = Point{Time: d.Date, Value: decimal.NewFromFloat(d.Amount)}
	}
	slices.SortStableFunc(out, func(a, b Point) int { return a.Time.Compare(b.Time.Time) })
	return out
}
