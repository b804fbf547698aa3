// Package httpapi serves the stock dashboard REST contract from an
// in-memory market, for local runs of the TUI and for client tests.
package httpapi

import (
	"hash/fnv"
)

// listing is the static description of a symbol the demo market quotes.
type listing struct {
	Name           string
	Market         string
	Currency       string
	CurrencySymbol string
	Base           float64 // starting price of the random walk
	Drift          float64 // mean daily return
	Vol            float64 // daily return stdev
	AvgVolume      int64
	Shares         float64 // 0 for indices
	EPS            float64 // trailing, 0 for indices
	Dividend       float64 // quarterly per share, 0 for none
	Beta           float64
}

var listings = map[string]listing{
	"AAPL": {
		Name: "Apple Inc.", Market: "NASDAQ", Currency: "USD", CurrencySymbol: "$",
		Base: 150, Drift: 0.0004, Vol: 0.015, AvgVolume: 55_000_000,
		Shares: 15.5e9, EPS: 6.4, Dividend: 0.24, Beta: 1.25,
	},
	"MSFT": {
		Name: "Microsoft Corporation", Market: "NASDAQ", Currency: "USD", CurrencySymbol: "$",
		Base: 330, Drift: 0.0005, Vol: 0.014, AvgVolume: 22_000_000,
		Shares: 7.4e9, EPS: 11.8, Dividend: 0.75, Beta: 0.9,
	},
	"NVDA": {
		Name: "NVIDIA Corporation", Market: "NASDAQ", Currency: "USD", CurrencySymbol: "$",
		Base: 45, Drift: 0.0012, Vol: 0.03, AvgVolume: 300_000_000,
		Shares: 24.5e9, EPS: 2.1, Dividend: 0.01, Beta: 1.7,
	},
	"TSLA": {
		Name: "Tesla, Inc.", Market: "NASDAQ", Currency: "USD", CurrencySymbol: "$",
		Base: 220, Drift: 0.0002, Vol: 0.035, AvgVolume: 95_000_000,
		Shares: 3.2e9, EPS: 3.1, Beta: 2.3,
	},
	"7203.T": {
		Name: "Toyota Motor Corporation", Market: "TSE", Currency: "JPY", CurrencySymbol: "¥",
		Base: 2500, Drift: 0.0003, Vol: 0.016, AvgVolume: 25_000_000,
		Shares: 13.0e9, EPS: 280, Dividend: 35, Beta: 0.6,
	},
	"005930.KS": {
		Name: "Samsung Electronics Co., Ltd.", Market: "KRX", Currency: "KRW", CurrencySymbol: "₩",
		Base: 70000, Drift: 0.0001, Vol: 0.018, AvgVolume: 14_000_000,
		Shares: 5.9e9, EPS: 2100, Dividend: 361, Beta: 1.0,
	},
	"^N225": {
		Name: "Nikkei 225", Market: "INDEX", Currency: "JPY", CurrencySymbol: "¥",
		Base: 33000, Drift: 0.0003, Vol: 0.012,
	},
}

// seedFor derives the random-walk seed of a symbol.
func seedFor(symbol string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return h.Sum64()
}

// lookupListing returns the catalogue entry of symbol, or a generated USD
// listing when the symbol was force-added without one.
func lookupListing(symbol string) (listing, bool) {
	if l, ok := listings[symbol]; ok {
		return l, true
	}
	seed := seedFor(symbol)
	return listing{
		Name:           symbol,
		Market:         "UNKNOWN",
		Currency:       "USD",
		CurrencySymbol: "$",
		Base:           20 + float64(seed%180),
		Drift:          0.0002,
		Vol:            0.02,
		AvgVolume:      1_000_000 + int64(seed%9_000_000),
	}, false
}

// Fault makes requests to one resource fail. Resources are "stocks",
// "dashboard", "price", "analysis", "financials", "dividends" and
// "prediction".
type Fault struct {
	// Status is the HTTP status to answer with. 200 reports the error
	// inside a successful body.
	Status     int
	Message    string
	Hint       string
	RetryAfter float64 // seconds, sent with 429
	// Count is the number of requests to fail; <= 0 fails until cleared.
	Count int
}
