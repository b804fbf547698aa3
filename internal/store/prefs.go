package store

import (
	"context"
	"strconv"
	"strings"

	"stockdash/internal/domain"
)

// Preference keys.
const (
	KeyAutoRefresh = "auto_refresh"
	KeyPeriod      = "period"
	KeyIndicators  = "indicators"
	KeyLastSymbol  = "last_symbol"
)

// Preferences is the dashboard state kept across runs.
type Preferences struct {
	AutoRefresh bool
	Period      domain.Period
	Indicators  []int
	LastSymbol  string
}

// LoadPreferences reads stored preferences over defaults. Stored values
// that no longer parse are ignored.
func LoadPreferences(ctx context.Context, ps PreferenceStore, defaults Preferences) (Preferences, error) {
	p := defaults

	if v, ok, err := ps.GetPreference(ctx, KeyAutoRefresh); err != nil {
		return defaults, err
	} else if ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.AutoRefresh = b
		}
	}

	if v, ok, err := ps.GetPreference(ctx, KeyPeriod); err != nil {
		return defaults, err
	} else if ok {
		if period, err := domain.ParsePeriod(v); err == nil {
			p.Period = period
		}
	}

	if v, ok, err := ps.GetPreference(ctx, KeyIndicators); err != nil {
		return defaults, err
	} else if ok {
		if ws, good := parseWindows(v); good {
			p.Indicators = ws
		}
	}

	if v, ok, err := ps.GetPreference(ctx, KeyLastSymbol); err != nil {
		return defaults, err
	} else if ok {
		p.LastSymbol = v
	}
	return p, nil
}

// SaveAutoRefresh stores the auto-refresh flag.
func SaveAutoRefresh(ctx context.Context, ps PreferenceStore, on bool) error {
	return ps.SetPreference(ctx, KeyAutoRefresh, strconv.FormatBool(on))
}

// SavePeriod stores the selected period.
func SavePeriod(ctx context.Context, ps PreferenceStore, p domain.Period) error {
	return ps.SetPreference(ctx, KeyPeriod, string(p))
}

// SaveIndicators stores the selected moving-average windows.
func SaveIndicators(ctx context.Context, ps PreferenceStore, windows []int) error {
	parts := make([]string, len(windows))
	for i, w := range windows {
		parts[i] = strconv.Itoa(w)
	}
	return ps.SetPreference(ctx, KeyIndicators, strings.Join(parts, ","))
}

// SaveLastSymbol stores the selected symbol; "" clears it.
func SaveLastSymbol(ctx context.Context, ps PreferenceStore, symbol string) error {
	return ps.SetPreference(ctx, KeyLastSymbol, symbol)
}

func parseWindows(v string) ([]int, bool) {
	if v == "" {
		return []int{}, true
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		w, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || !domain.InCatalog(w) {
			return nil, false
		}
		out = append(out, w)
	}
	if len(out) > domain.MaxIndicators {
		return nil, false
	}
	return out, true
}
