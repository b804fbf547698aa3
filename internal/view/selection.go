// Package view holds the detail view's selection state and its transitions.
//
// Transitions are pure: each returns the next Selection together with the
// effects the caller must run (loads, redraws, reconciliation). Invalid
// input leaves the selection unchanged and produces no effects.
package view

import (
	"errors"
	"slices"

	"stockdash/internal/domain"
)

// EffectKind enumerates what a transition asks the caller to do.
type EffectKind int

const (
	// EffectInvalidate drops cached payloads of Symbol for Tabs (all tabs
	// when Tabs is empty).
	EffectInvalidate EffectKind = iota
	// EffectLoad fetches Tabs for Symbol at Period.
	EffectLoad
	// EffectRedraw redraws the chart from cached data with Indicators.
	EffectRedraw
	// EffectRender re-renders the active tab from cached data.
	EffectRender
	// EffectReconcile resets any optimistic indicator widget state to
	// Indicators and shows Err.
	EffectReconcile
	// EffectDestroyChart releases the chart.
	EffectDestroyChart
)

func (k EffectKind) String() string {
	switch k {
	case EffectInvalidate:
		return "invalidate"
	case EffectLoad:
		return "load"
	case EffectRedraw:
		return "redraw"
	case EffectRender:
		return "render"
	case EffectReconcile:
		return "reconcile"
	case EffectDestroyChart:
		return "destroy-chart"
	}
	return "unknown"
}

// Effect is one side effect requested by a transition.
type Effect struct {
	Kind       EffectKind
	Symbol     string
	Period     domain.Period
	Tabs       []domain.Tab
	Indicators IndicatorSet
	Err        error
}

// LoadedFunc reports whether tab's data for the current symbol is loaded or
// in flight.
type LoadedFunc func(tab domain.Tab) bool

// Selection is the single owned view state of the detail pane.
type Selection struct {
	Symbol     string
	Period     domain.Period
	Tab        domain.Tab
	Indicators IndicatorSet
}

// NewSelection returns a selection with no symbol on the chart tab.
func NewSelection(period domain.Period, indicators IndicatorSet) Selection {
	if !period.Valid() {
		period = domain.DefaultPeriod
	}
	return Selection{Period: period, Tab: domain.TabChart, Indicators: indicators}
}

// HasSymbol reports whether a stock is selected.
func (s Selection) HasSymbol() bool { return s.Symbol != "" }

// primaryTabs returns the chart and analysis pair, which is always fetched
// together and joined.
func primaryTabs() []domain.Tab {
	return []domain.Tab{domain.TabChart, domain.TabAnalysis}
}

// SelectSymbol focuses symbol and loads its chart and analysis.
func (s Selection) SelectSymbol(symbol string) (Selection, []Effect) {
	if symbol == "" {
		return s, nil
	}
	s.Symbol = symbol
	s.Tab = domain.TabChart
	return s, []Effect{
		{Kind: EffectInvalidate, Symbol: symbol},
		{Kind: EffectLoad, Symbol: symbol, Period: s.Period, Tabs: primaryTabs()},
	}
}

// ChangePeriod switches the history window. Only chart and analysis depend
// on the period; they are reloaded when the active tab renders from them
// (chart, analysis, portfolio) and otherwise fetched lazily on the next
// switch.
func (s Selection) ChangePeriod(period domain.Period) (Selection, []Effect) {
	if !s.HasSymbol() || !period.Valid() {
		return s, nil
	}
	s.Period = period
	var stale []domain.Tab
	for _, t := range domain.Tabs {
		if t.PeriodDependent() {
			stale = append(stale, t)
		}
	}
	effects := []Effect{{Kind: EffectInvalidate, Symbol: s.Symbol, Tabs: stale}}
	if slices.Contains(TabDependencies(s.Tab), domain.TabChart) {
		effects = append(effects, Effect{Kind: EffectLoad, Symbol: s.Symbol, Period: period, Tabs: primaryTabs()})
	}
	return s, effects
}

// SwitchTab activates tab, loading its data the first time it is shown.
func (s Selection) SwitchTab(tab domain.Tab, loaded LoadedFunc) (Selection, []Effect) {
	if !tab.Valid() {
		return s, nil
	}
	s.Tab = tab
	if !s.HasSymbol() {
		return s, []Effect{{Kind: EffectRender}}
	}
	needs := TabDependencies(tab)
	var missing []domain.Tab
	for _, t := range needs {
		if loaded == nil || !loaded(t) {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return s, []Effect{{Kind: EffectRender}}
	}
	// The primary pair is always fetched together.
	if needs[0] == domain.TabChart {
		missing = primaryTabs()
	}
	return s, []Effect{{Kind: EffectLoad, Symbol: s.Symbol, Period: s.Period, Tabs: missing}}
}

// ToggleIndicator adds or removes a moving-average window.
func (s Selection) ToggleIndicator(window int) (Selection, []Effect) {
	if !domain.InCatalog(window) {
		return s, nil
	}
	next, err := s.Indicators.Toggle(window)
	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			return s, []Effect{{Kind: EffectReconcile, Indicators: s.Indicators, Err: err}}
		}
		return s, nil
	}
	s.Indicators = next
	return s, []Effect{{Kind: EffectRedraw, Symbol: s.Symbol, Indicators: next}}
}

// Clear resets the selection when symbol, the current stock, is deleted.
func (s Selection) Clear(symbol string) (Selection, []Effect) {
	if symbol == "" || symbol != s.Symbol {
		return s, nil
	}
	s.Symbol = ""
	s.Tab = domain.TabChart
	return s, []Effect{
		{Kind: EffectInvalidate, Symbol: symbol},
		{Kind: EffectDestroyChart},
	}
}

// TabDependencies returns the payload slots a tab renders from. Chart,
// analysis and portfolio need the primary price and analysis pair.
func TabDependencies(tab domain.Tab) []domain.Tab {
	switch tab {
	case domain.TabChart, domain.TabAnalysis, domain.TabPortfolio:
		return primaryTabs()
	case domain.TabFinancials, domain.TabDividends, domain.TabPrediction:
		return []domain.Tab{tab}
	}
	return nil
}
