// Package store persists client-side state: user preferences in SQLite and
// an archive of fetched price history in Parquet files.
package store

import (
	"context"
	"time"

	"stockdash/internal/domain"
)

// PreferenceStore persists string preferences by key.
type PreferenceStore interface {
	// GetPreference returns the value stored under key and whether it exists.
	GetPreference(ctx context.Context, key string) (string, bool, error)

	// SetPreference stores value under key, replacing any previous value.
	SetPreference(ctx context.Context, key, value string) error
}

// HistoryArchive persists daily price history per symbol.
type HistoryArchive interface {
	// WriteHistory merges records for symbol into the archive. Records with
	// a date already archived replace the stored row.
	WriteHistory(ctx context.Context, symbol string, records []domain.HistoricalRecord) error

	// ReadHistory returns the archived records of symbol within [start, end]
	// in ascending date order.
	ReadHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.HistoricalRecord, error)

	// ListSymbols returns all archived symbols.
	ListSymbols(ctx context.Context) ([]string, error)
}
