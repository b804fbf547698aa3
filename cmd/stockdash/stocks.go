package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/subcommands"

	"stockdash/internal/dashboard"
	"stockdash/internal/domain"
	"stockdash/internal/loader"
	"stockdash/pkg/stockapi"
)

// ---------------------------------------------------------------------------
// list
// ---------------------------------------------------------------------------

type listCmd struct {
	sort string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "print the tracked stocks with their latest quotes" }
func (*listCmd) Usage() string {
	return `stockdash list [-sort added|symbol|change|value]

  Prints the tracked list with price, day change and position value.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sort, "sort", "added", "sort order: added, symbol, change or value")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	mode, ok := parseSortMode(c.sort)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown sort order %q\n", c.sort)
		return subcommands.ExitUsageError
	}
	e, err := setup(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	res := loader.LoadList(ctx, e.client, false, e.metrics)
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "Error loading stocks: %s\n", stockapi.UserMessage(res.Err))
		return subcommands.ExitFailure
	}
	if res.QuoteErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: quotes unavailable: %s\n", stockapi.UserMessage(res.QuoteErr))
	}
	if len(res.Rows) == 0 {
		fmt.Println("No stocks tracked. Add one with: stockdash add SYMBOL")
		return subcommands.ExitSuccess
	}
	fmt.Println(renderListTable(dashboard.SortRows(res.Rows, mode)))
	return subcommands.ExitSuccess
}

func parseSortMode(s string) (dashboard.SortMode, bool) {
	switch strings.ToLower(s) {
	case "added", "":
		return dashboard.SortAdded, true
	case "symbol":
		return dashboard.SortSymbol, true
	case "change":
		return dashboard.SortChange, true
	case "value":
		return dashboard.SortValue, true
	}
	return 0, false
}

func renderListTable(rows []loader.ListRow) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("SYMBOL", "NAME", "PRICE", "CHANGE", "QTY", "VALUE")

	changes := make([]float64, len(rows))
	for i, r := range rows {
		price, change, value := dashboard.NA, dashboard.NA, dashboard.NA
		if r.Quoted {
			price = dashboard.FormatPrice(r.Price, dashboard.USD)
			change = dashboard.FormatSignedPercent(r.ChangePercent)
			if r.Quantity > 0 {
				value = dashboard.FormatPrice(dashboard.PositionValue(r), dashboard.USD)
			}
		}
		if r.Cached {
			price += "*"
		}
		changes[i] = r.ChangePercent
		t.Row(r.Symbol, r.Name, price, change, dashboard.FormatQuantity(r.Quantity), value)
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		s := lipgloss.NewStyle().Padding(0, 1)
		if row == table.HeaderRow {
			return s.Inherit(colHeaderStyle)
		}
		switch {
		case col == 0:
			return s.Inherit(symbolStyle)
		case col == 3 && row >= 0 && row < len(changes):
			return s.Inherit(changeStyle(changes[row]))
		}
		return s
	})
	return t.String()
}

// ---------------------------------------------------------------------------
// add / remove / hold
// ---------------------------------------------------------------------------

type addCmd struct {
	force bool
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "start tracking a stock" }
func (*addCmd) Usage() string {
	return `stockdash add [-force] SYMBOL

  Adds SYMBOL to the tracked list. With -force the symbol is added even when
  the backend cannot load its company info.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.force, "force", false, "add even when the symbol cannot be verified")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one SYMBOL is required.")
		return subcommands.ExitUsageError
	}
	e, err := setup(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	resp, err := e.client.AddStock(ctx, f.Arg(0), c.force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", stockapi.UserMessage(err))
		return subcommands.ExitFailure
	}
	fmt.Printf("Added %s (%s)\n", resp.Symbol, resp.Name)
	if resp.Warning != "" {
		fmt.Printf("Warning: %s\n", resp.Warning)
	}
	return subcommands.ExitSuccess
}

type removeCmd struct{}

func (*removeCmd) Name() string     { return "remove" }
func (*removeCmd) Synopsis() string { return "stop tracking a stock" }
func (*removeCmd) Usage() string {
	return `stockdash remove SYMBOL

  Removes SYMBOL and its holdings from the tracked list.
`
}

func (*removeCmd) SetFlags(*flag.FlagSet) {}

func (*removeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one SYMBOL is required.")
		return subcommands.ExitUsageError
	}
	sym, err := stockapi.NormalizeSymbol(f.Arg(0))
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

	if err := e.client.RemoveStock(ctx, sym); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", stockapi.UserMessage(err))
		return subcommands.ExitFailure
	}
	fmt.Printf("Removed %s\n", sym)
	return subcommands.ExitSuccess
}

type holdCmd struct{}

func (*holdCmd) Name() string     { return "hold" }
func (*holdCmd) Synopsis() string { return "set the quantity and average price held" }
func (*holdCmd) Usage() string {
	return `stockdash hold SYMBOL QUANTITY AVG_PRICE

  Records the position held in SYMBOL. A quantity of 0 clears it.
`
}

func (*holdCmd) SetFlags(*flag.FlagSet) {}

func (*holdCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "Error: SYMBOL, QUANTITY and AVG_PRICE are required.")
		return subcommands.ExitUsageError
	}
	sym, err := stockapi.NormalizeSymbol(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	h, err := parseHoldings(f.Arg(1), f.Arg(2))
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

	if err := e.client.UpdateHoldings(ctx, sym, h); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", stockapi.UserMessage(err))
		return subcommands.ExitFailure
	}
	fmt.Printf("%s: %s @ %s\n", sym, dashboard.FormatQuantity(h.Quantity), dashboard.FormatPrice(h.AvgPrice, dashboard.USD))
	return subcommands.ExitSuccess
}

// parseHoldings parses a quantity and average price. Both must be
// non-negative numbers.
func parseHoldings(qty, avg string) (domain.Holdings, error) {
	q, err := strconv.ParseFloat(strings.TrimSpace(qty), 64)
	if err != nil || q < 0 {
		return domain.Holdings{}, &stockapi.ValidationError{Field: "quantity", Reason: fmt.Sprintf("%q is not a non-negative number", qty)}
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(avg), 64)
	if err != nil || a < 0 {
		return domain.Holdings{}, &stockapi.ValidationError{Field: "average price", Reason: fmt.Sprintf("%q is not a non-negative number", avg)}
	}
	return domain.Holdings{Quantity: q, AvgPrice: a}, nil
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

type versionCmd struct{}

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "print the stockdash version" }
func (*versionCmd) Usage() string          { return "stockdash version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}

func (*versionCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	fmt.Println("stockdash", version)
	return subcommands.ExitSuccess
}
