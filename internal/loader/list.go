package loader

import (
	"context"

	"golang.org/x/sync/errgroup"

	"stockdash/internal/domain"
	"stockdash/internal/metrics"
	"stockdash/pkg/stockapi"
)

// ListFetcher retrieves the tracked stock list and its quotes.
type ListFetcher interface {
	ListStocks(ctx context.Context) ([]domain.TrackedStock, error)
	Dashboard(ctx context.Context) ([]domain.DashboardEntry, error)
}

var _ ListFetcher = (*stockapi.Client)(nil)

// ListRow is one entry of the stock list: the tracked stock overlaid with
// its latest quote.
type ListRow struct {
	domain.TrackedStock
	Price         float64
	Change        float64
	ChangePercent float64
	Cached        bool
	Message       string
	// Quoted is false when no dashboard entry was available for the row.
	Quoted bool
}

// ListResult is the outcome of a list load.
type ListResult struct {
	Rows []ListRow
	// Err is set when the tracked list itself could not be loaded.
	Err error
	// QuoteErr is set when quotes failed and Rows carry zeroed metrics.
	QuoteErr error
	// Background marks a timer-driven refresh.
	Background bool
}

// LoadList fetches the tracked list and the dashboard quotes concurrently.
// A dashboard failure degrades to the bare list with zeroed metrics.
func LoadList(ctx context.Context, f ListFetcher, background bool, m *metrics.Metrics) ListResult {
	var (
		stocks     []domain.TrackedStock
		entries    []domain.DashboardEntry
		stocksErr  error
		entriesErr error
		g          errgroup.Group
	)
	g.Go(func() error {
		stocks, stocksErr = f.ListStocks(ctx)
		return nil
	})
	g.Go(func() error {
		entries, entriesErr = f.Dashboard(ctx)
		return nil
	})
	_ = g.Wait()
	m.ListRefreshed(background)

	res := ListResult{Background: background}
	if stocksErr != nil {
		res.Err = stocksErr
		return res
	}
	if entriesErr != nil {
		res.QuoteErr = entriesErr
		entries = nil
	}
	res.Rows = MergeList(stocks, entries)
	return res
}

// MergeList overlays quotes on the tracked list, keeping list order. Rows
// without a quote keep zeroed metrics.
func MergeList(stocks []domain.TrackedStock, entries []domain.DashboardEntry) []ListRow {
	bySymbol := make(map[string]domain.DashboardEntry, len(entries))
	for _, e := range entries {
		bySymbol[e.Symbol] = e
	}
	rows := make([]ListRow, len(stocks))
	for i, s := range stocks {
		row := ListRow{TrackedStock: s}
		if e, ok := bySymbol[s.Symbol]; ok {
			row.Price = e.Price
			row.Change = e.Change
			row.ChangePercent = e.ChangePercent
			row.Cached = e.Cached
			row.Message = e.Message
			row.Quoted = true
			if row.Name == "" {
				row.Name = e.Name
			}
		}
		rows[i] = row
	}
	return rows
}
