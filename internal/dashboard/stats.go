// Package dashboard turns loaded payloads into display-ready view-models
// for the stock list and the detail tabs, shared by the TUI and the
// one-shot CLI commands.
package dashboard

import (
	"math"
	"sort"
	"strings"

	"stockdash/internal/domain"
	"stockdash/internal/loader"
)

// HistoryStats summarises the price history of the selected period.
type HistoryStats struct {
	Days        int
	Open        float64 // first close of the period
	Close       float64 // last close of the period
	High        float64
	Low         float64
	TotalVolume int64
	Return      float64 // Close/Open - 1
	MaxGain     float64 // best buy-then-sell move over the period
	MaxDrawdown float64 // worst peak-to-trough move over the period
}

// SummarizeHistory computes HistoryStats from ascending daily records.
func SummarizeHistory(history []domain.HistoricalRecord) HistoryStats {
	s := HistoryStats{Days: len(history)}
	if len(history) == 0 {
		return s
	}

	s.Low = math.MaxFloat64
	minClose := math.MaxFloat64
	peak := 0.0
	for i := range history {
		r := &history[i]
		high := r.High.InexactFloat64()
		low := r.Low.InexactFloat64()
		closePrice := r.Close.InexactFloat64()

		s.TotalVolume += r.Volume
		if high > s.High {
			s.High = high
		}
		if low < s.Low {
			s.Low = low
		}
		if i == 0 {
			s.Open = closePrice
		}
		s.Close = closePrice

		// Max gain: buy at the lowest close seen so far, sell now.
		if closePrice < minClose {
			minClose = closePrice
		}
		if minClose > 0 {
			if g := (closePrice - minClose) / minClose; g > s.MaxGain {
				s.MaxGain = g
			}
		}
		// Drawdown: from the highest close seen so far.
		if closePrice > peak {
			peak = closePrice
		}
		if peak > 0 {
			if d := (peak - closePrice) / peak; d > s.MaxDrawdown {
				s.MaxDrawdown = d
			}
		}
	}
	if s.Open > 0 {
		s.Return = s.Close/s.Open - 1
	}
	return s
}

// SortMode orders the stock list.
type SortMode int

const (
	SortAdded     SortMode = iota // backend order (default)
	SortSymbol                    // alphabetical
	SortChange                    // day change %, best first
	SortValue                     // position value, largest first
	SortModeCount
)

// Label returns a short label for the sort mode.
func (m SortMode) Label() string {
	switch m {
	case SortAdded:
		return "ADDED"
	case SortSymbol:
		return "SYMBOL"
	case SortChange:
		return "CHG%"
	case SortValue:
		return "VALUE"
	default:
		return "?"
	}
}

// Next cycles to the following sort mode.
func (m SortMode) Next() SortMode {
	return (m + 1) % SortModeCount
}

// PositionValue is quantity times the latest quote.
func PositionValue(r loader.ListRow) float64 {
	return r.Quantity * r.Price
}

// SortRows returns rows ordered by mode. The input is not modified.
func SortRows(rows []loader.ListRow, mode SortMode) []loader.ListRow {
	out := make([]loader.ListRow, len(rows))
	copy(out, rows)
	switch mode {
	case SortSymbol:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.Compare(out[i].Symbol, out[j].Symbol) < 0
		})
	case SortChange:
		sort.SliceStable(out, func(i, j int) bool {
			// Unquoted rows sink to the bottom.
			if out[i].Quoted != out[j].Quoted {
				return out[i].Quoted
			}
			return out[i].ChangePercent > out[j].ChangePercent
		})
	case SortValue:
		sort.SliceStable(out, func(i, j int) bool {
			return PositionValue(out[i]) > PositionValue(out[j])
		})
	}
	return out
}
