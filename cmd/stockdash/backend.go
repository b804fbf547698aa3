package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/subcommands"

	"stockdash/internal/dashboard"
	"stockdash/internal/domain"
	"stockdash/internal/httpapi"
	"stockdash/internal/store"
	"stockdash/pkg/stockapi"
)

const shutdownTimeout = 5 * time.Second

// ---------------------------------------------------------------------------
// demo-server
// ---------------------------------------------------------------------------

type demoServerCmd struct {
	addr   string
	stocks string
}

func (*demoServerCmd) Name() string     { return "demo-server" }
func (*demoServerCmd) Synopsis() string { return "serve the stock API from generated market data" }
func (*demoServerCmd) Usage() string {
	return `stockdash demo-server [-addr :5000] [-stocks AAPL,MSFT,7203.T]

  Serves the backend contract under /api from a deterministic random walk,
  for running the dashboard without the real backend.
`
}

func (c *demoServerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", ":5000", "listen address")
	f.StringVar(&c.stocks, "stocks", "AAPL,MSFT,7203.T", "comma-separated symbols tracked at start")
}

func (c *demoServerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := setup(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	var symbols []string
	for _, s := range splitList(c.stocks) {
		sym, err := stockapi.NormalizeSymbol(s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		symbols = append(symbols, sym)
	}

	demo := httpapi.NewDemoServer(httpapi.WithLogger(e.log), httpapi.WithStocks(symbols...))
	httpServer := &http.Server{
		Addr:              c.addr,
		Handler:           demo.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	stopMetrics := e.startMetrics()
	defer stopMetrics()

	go func() {
		e.log.Info("demo server listening", "addr", httpServer.Addr, "stocks", symbols)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	e.log.Info("shutting down demo server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		e.log.Error("shutdown error", "error", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// ---------------------------------------------------------------------------
// export / history
// ---------------------------------------------------------------------------

type exportCmd struct {
	period string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "archive daily price history to Parquet" }
func (*exportCmd) Usage() string {
	return `stockdash export [-period 2y] [SYMBOL...]

  Fetches the price history of each SYMBOL (all tracked stocks when none are
  given) and merges it into the Parquet archive under storage.archive_dir.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", string(domain.Period2Y), "history window: 1mo, 3mo, 6mo, 1y or 2y")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period, err := domain.ParsePeriod(c.period)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	e, err := setup(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	symbols := f.Args()
	if len(symbols) == 0 {
		tracked, err := e.client.ListStocks(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading stocks: %s\n", stockapi.UserMessage(err))
			return subcommands.ExitFailure
		}
		for _, t := range tracked {
			symbols = append(symbols, t.Symbol)
		}
	}

	archive := store.NewParquetStore(e.cfg.Storage.ArchiveDir)
	failed := 0
	for _, s := range symbols {
		n, err := exportHistory(ctx, e.client, archive, s, period)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", s, stockapi.UserMessage(err))
			failed++
			continue
		}
		fmt.Printf("%s: %d rows\n", s, n)
	}
	if failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// priceFetcher is the part of the API client the export needs.
type priceFetcher interface {
	Price(ctx context.Context, symbol string, period domain.Period) (*domain.PricePayload, error)
}

// exportHistory fetches one symbol's history and archives it.
func exportHistory(ctx context.Context, api priceFetcher, archive store.HistoryArchive, symbol string, period domain.Period) (int, error) {
	sym, err := stockapi.NormalizeSymbol(symbol)
	if err != nil {
		return 0, err
	}
	p, err := api.Price(ctx, sym, period)
	if err != nil {
		return 0, err
	}
	if err := archive.WriteHistory(ctx, sym, p.History); err != nil {
		return 0, err
	}
	return len(p.History), nil
}

type historyCmd struct {
	from string
	to   string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "summarise archived price history" }
func (*historyCmd) Usage() string {
	return `stockdash history [-from YYYY-MM-DD] [-to YYYY-MM-DD] [SYMBOL...]

  Prints return, range, drawdown and volume of the archived history of each
  SYMBOL, or of every archived symbol when none are given.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "first day (default: one year before -to)")
	f.StringVar(&c.to, "to", "", "last day (default: today)")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	end := time.Now().UTC()
	if c.to != "" {
		d, err := domain.ParseDate(c.to)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		end = d.Time
	}
	start := end.AddDate(-1, 0, 0)
	if c.from != "" {
		d, err := domain.ParseDate(c.from)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		start = d.Time
	}

	e, err := setup(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	archive := store.NewParquetStore(e.cfg.Storage.ArchiveDir)
	symbols := f.Args()
	if len(symbols) == 0 {
		if symbols, err = archive.ListSymbols(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error listing archive: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	if len(symbols) == 0 {
		fmt.Println("Archive is empty. Fill it with: stockdash export")
		return subcommands.ExitSuccess
	}

	for _, sym := range symbols {
		records, err := archive.ReadHistory(ctx, sym, start, end)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", sym, err)
			continue
		}
		fmt.Println(formatHistoryStats(sym, dashboard.SummarizeHistory(records)))
	}
	return subcommands.ExitSuccess
}

func formatHistoryStats(sym string, st dashboard.HistoryStats) string {
	if st.Days == 0 {
		return fmt.Sprintf("%-10s no archived rows", sym)
	}
	return fmt.Sprintf("%-10s %4d days  return %s  low %s  high %s  max gain %s  max drawdown %s  volume %s",
		sym, st.Days,
		dashboard.FormatSignedPercent(st.Return*100),
		dashboard.FormatPrice(st.Low, dashboard.USD),
		dashboard.FormatPrice(st.High, dashboard.USD),
		dashboard.FormatSignedPercent(st.MaxGain*100),
		dashboard.FormatSignedPercent(-st.MaxDrawdown*100),
		dashboard.FormatVolume(st.TotalVolume),
	)
}
