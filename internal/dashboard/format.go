package dashboard

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// NA is shown for metrics the backend did not provide.
const NA = "N/A"

// Currency identifies how monetary values of a stock are displayed.
type Currency struct {
	Code   string // ISO code, e.g. "USD", "JPY"
	Symbol string // symbol sent by the backend, used for unknown codes
}

// USD is the fallback currency when a payload carries none.
var USD = Currency{Code: "USD", Symbol: "$"}

func (c Currency) orDefault() Currency {
	if c.Code == "" && c.Symbol == "" {
		return USD
	}
	return c
}

// FormatPrice formats v in the currency's minor units: "$1,234.50" for USD,
// "¥1,235" for JPY. Unknown codes fall back to the backend symbol with two
// decimals.
func FormatPrice(v float64, c Currency) string {
	c = c.orDefault()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NA
	}
	cur := money.GetCurrency(strings.ToUpper(c.Code))
	if cur == nil {
		return c.Symbol + humanize.FormatFloat("#,###.##", v)
	}
	minor := decimal.NewFromFloat(v).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

// FormatOptPrice is FormatPrice for a metric that may be missing.
func FormatOptPrice(v *float64, c Currency) string {
	if v == nil {
		return NA
	}
	return FormatPrice(*v, c)
}

// FormatSignedPrice formats a price difference with an explicit sign.
func FormatSignedPrice(v float64, c Currency) string {
	if v < 0 {
		return "-" + FormatPrice(-v, c)
	}
	return "+" + FormatPrice(v, c)
}

// FormatChange renders "+$1.25 (+0.84%)".
func FormatChange(change, changePercent float64, c Currency) string {
	return fmt.Sprintf("%s (%s)", FormatSignedPrice(change, c), FormatSignedPercent(changePercent))
}

// FormatSignedPercent formats a value already expressed in percent.
func FormatSignedPercent(pct float64) string {
	return fmt.Sprintf("%+.2f%%", pct)
}

// FormatVolume formats a share count with comma separators.
func FormatVolume(n int64) string {
	return humanize.Comma(n)
}

// FormatLargeNumber formats a monetary total with T/B/M/K suffixes. JPY uses
// the 兆/億/万 units the Tokyo market quotes in.
func FormatLargeNumber(v *float64, c Currency) string {
	if v == nil {
		return NA
	}
	c = c.orDefault()
	sym := c.Symbol
	if sym == "" {
		sym = c.Code + " "
	}
	n := *v
	if strings.EqualFold(c.Code, "JPY") {
		switch {
		case n >= 1e12:
			return fmt.Sprintf("%s%.2f兆", sym, n/1e12)
		case n >= 1e8:
			return fmt.Sprintf("%s%.2f億", sym, n/1e8)
		case n >= 1e4:
			return fmt.Sprintf("%s%.2f万", sym, n/1e4)
		default:
			return sym + humanize.FormatFloat("#,###.", n)
		}
	}
	switch {
	case n >= 1e12:
		return fmt.Sprintf("%s%.2fT", sym, n/1e12)
	case n >= 1e9:
		return fmt.Sprintf("%s%.2fB", sym, n/1e9)
	case n >= 1e6:
		return fmt.Sprintf("%s%.2fM", sym, n/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%s%.2fK", sym, n/1e3)
	default:
		return sym + humanize.FormatFloat("#,###.##", n)
	}
}

// FormatPercent formats a fraction (0.2534) as "25.34%".
func FormatPercent(v *float64) string {
	if v == nil {
		return NA
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}

// FormatRatio formats a plain ratio with two decimals.
func FormatRatio(v *float64) string {
	if v == nil {
		return NA
	}
	return fmt.Sprintf("%.2f", *v)
}

// FormatQuantity drops the fraction of whole share counts.
func FormatQuantity(q float64) string {
	if q == math.Trunc(q) {
		return humanize.Comma(int64(q))
	}
	return humanize.FormatFloat("#,###.####", q)
}
