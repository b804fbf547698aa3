package store

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockdash/internal/domain"
)

func rec(day int, close float64) domain.HistoricalRecord {
	c := decimal.NewFromFloat(close)
	return domain.HistoricalRecord{
		Date:   domain.NewDate(2024, time.January, day),
		Open:   c,
		High:   c.Add(decimal.NewFromInt(1)),
		Low:    c.Sub(decimal.NewFromInt(1)),
		Close:  c,
		Volume: 1000,
	}
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	hp := ps.historyPath("AAPL", 2024)
	want := filepath.Join("/data", "AAPL", "2024.parquet")
	if hp != want {
		t.Errorf("historyPath mismatch:\n  got  %s\n  want %s", hp, want)
	}
	if !strings.Contains(hp, "2024.parquet") {
		t.Errorf("historyPath should contain year file '2024.parquet': %s", hp)
	}
}

func TestParquetStoreWriteReadHistory(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	if err := ps.WriteHistory(ctx, "AAPL", []domain.HistoricalRecord{rec(2, 185.5), rec(3, 186.25)}); err != nil {
		t.Fatalf("WriteHistory: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadHistory(ctx, "AAPL", start, end)
	if err != nil {
		t.Fatalf("ReadHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadHistory returned %d rows, want 2", len(got))
	}
	if !got[1].Close.Equal(decimal.RequireFromString("186.25")) {
		t.Errorf("Close = %s, want 186.25", got[1].Close)
	}
	if got[0].Date.String() != "2024-01-02" {
		t.Errorf("Date = %s, want 2024-01-02", got[0].Date)
	}
}

func TestParquetStoreMergeHistory(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	if err := ps.WriteHistory(ctx, "MSFT", []domain.HistoricalRecord{rec(2, 370), rec(3, 371)}); err != nil {
		t.Fatal(err)
	}
	// Overlapping write replaces day 3 and adds day 4.
	if err := ps.WriteHistory(ctx, "MSFT", []domain.HistoricalRecord{rec(3, 372), rec(4, 373)}); err != nil {
		t.Fatal(err)
	}

	got, err := ps.ReadHistory(ctx, "MSFT",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadHistory returned %d rows after merge, want 3", len(got))
	}
	if !got[1].Close.Equal(decimal.NewFromInt(372)) {
		t.Errorf("day 3 close = %s, want 372", got[1].Close)
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	for _, sym := range []string{"GOOGL", "AAPL"} {
		if err := ps.WriteHistory(ctx, sym, []domain.HistoricalRecord{rec(2, 100)}); err != nil {
			t.Fatalf("WriteHistory(%s): %v", sym, err)
		}
	}

	symbols, err := ps.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if !slices.Equal(symbols, []string{"AAPL", "GOOGL"}) {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", symbols)
	}
}

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) returned error: %v", dbPath, err)
	}
	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	})
	return store
}

func TestSQLiteStoreOpen(t *testing.T) {
	store := openStore(t)

	// Verify the store is usable by pinging the database.
	if err := store.db.Ping(); err != nil {
		t.Fatalf("db.Ping() returned error: %v", err)
	}
}

func TestPreferenceRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetPreference(ctx, "missing"); err != nil || ok {
		t.Errorf("GetPreference(missing) = %v, %v; want not found", ok, err)
	}
	if err := store.SetPreference(ctx, "k", "one"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetPreference(ctx, "k", "two"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := store.GetPreference(ctx, "k")
	if err != nil || !ok || v != "two" {
		t.Errorf("GetPreference(k) = %q, %v, %v; want two", v, ok, err)
	}
}

func TestLoadPreferences(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	defaults := Preferences{Period: domain.Period6M, Indicators: []int{5, 20}}

	p, err := LoadPreferences(ctx, store, defaults)
	if err != nil {
		t.Fatal(err)
	}
	if p.AutoRefresh || p.Period != domain.Period6M || !slices.Equal(p.Indicators, []int{5, 20}) {
		t.Errorf("empty store = %+v, want defaults", p)
	}

	if err := SaveAutoRefresh(ctx, store, true); err != nil {
		t.Fatal(err)
	}
	if err := SavePeriod(ctx, store, domain.Period2Y); err != nil {
		t.Fatal(err)
	}
	if err := SaveIndicators(ctx, store, []int{10, 45}); err != nil {
		t.Fatal(err)
	}
	if err := SaveLastSymbol(ctx, store, "AAPL"); err != nil {
		t.Fatal(err)
	}

	p, err = LoadPreferences(ctx, store, defaults)
	if err != nil {
		t.Fatal(err)
	}
	if !p.AutoRefresh || p.Period != domain.Period2Y || !slices.Equal(p.Indicators, []int{10, 45}) || p.LastSymbol != "AAPL" {
		t.Errorf("stored = %+v", p)
	}

	// Corrupt values fall back to defaults.
	if err := store.SetPreference(ctx, KeyIndicators, "5,7"); err != nil {
		t.Fatal(err)
	}
	p, _ = LoadPreferences(ctx, store, defaults)
	if !slices.Equal(p.Indicators, []int{5, 20}) {
		t.Errorf("Indicators = %v, want defaults for corrupt value", p.Indicators)
	}
}
