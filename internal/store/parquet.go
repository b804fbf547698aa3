package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"stockdash/internal/domain"
)

// Compile-time interface check.
var _ HistoryArchive = (*ParquetStore)(nil)

// ParquetStore implements HistoryArchive using Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// HistoryRecord is the Parquet schema for daily history rows.
type HistoryRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms, UTC midnight
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// ---------------------------------------------------------------------------
// HistoryArchive implementation
// ---------------------------------------------------------------------------

// WriteHistory writes records to Parquet files organized by symbol and year.
// Each symbol+year combination produces a separate file at:
//
//	<DataDir>/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteHistory(_ context.Context, symbol string, records []domain.HistoricalRecord) error {
	if len(records) == 0 {
		return nil
	}

	groups := make(map[int][]HistoryRecord)
	for _, r := range records {
		year := r.Date.Year()
		groups[year] = append(groups[year], HistoryRecord{
			Symbol:    symbol,
			Timestamp: r.Date.UnixMilli(),
			Open:      r.Open.InexactFloat64(),
			High:      r.High.InexactFloat64(),
			Low:       r.Low.InexactFloat64(),
			Close:     r.Close.InexactFloat64(),
			Volume:    r.Volume,
		})
	}

	for year, recs := range groups {
		path := s.historyPath(symbol, year)

		// Read existing records to merge.
		existing, _ := readParquetFile[HistoryRecord](path)
		merged := mergeHistoryRecords(existing, recs)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing history for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// ReadHistory reads archived rows for symbol within [start, end].
func (s *ParquetStore) ReadHistory(_ context.Context, symbol string, start, end time.Time) ([]domain.HistoricalRecord, error) {
	var out []domain.HistoricalRecord
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[HistoryRecord](s.historyPath(symbol, year))
		if err != nil {
			// No file for this year.
			continue
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			out = append(out, domain.HistoricalRecord{
				Date:   domain.Date{Time: ts},
				Open:   decimal.NewFromFloat(r.Open),
				High:   decimal.NewFromFloat(r.High),
				Low:    decimal.NewFromFloat(r.Low),
				Close:  decimal.NewFromFloat(r.Close),
				Volume: r.Volume,
			})
		}
	}
	return out, nil
}

// ListSymbols lists all symbols that have archived history.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *ParquetStore) historyPath(symbol string, year int) string {
	// Index symbols such as ^N225 keep their caret; path separators never
	// appear in a normalised symbol.
	safe := strings.ReplaceAll(symbol, string(filepath.Separator), "_")
	return filepath.Join(s.DataDir, safe, fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeHistoryRecords deduplicates rows by timestamp, preferring new rows
// over existing ones.
func mergeHistoryRecords(existing, incoming []HistoryRecord) []HistoryRecord {
	seen := make(map[int64]HistoryRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]HistoryRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
