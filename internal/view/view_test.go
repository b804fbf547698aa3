package view

import (
	"errors"
	"slices"
	"testing"

	"stockdash/internal/domain"
)

func mustSet(t *testing.T, ws ...int) IndicatorSet {
	t.Helper()
	s, err := NewIndicatorSet(ws...)
	if err != nil {
		t.Fatalf("NewIndicatorSet(%v): %v", ws, err)
	}
	return s
}

func TestIndicatorToggleSequence(t *testing.T) {
	s := mustSet(t, 15, 5)
	if got := s.Windows(); !slices.Equal(got, []int{5, 15}) {
		t.Fatalf("Windows() = %v, want [5 15]", got)
	}

	s, err := s.Toggle(5)
	if err != nil {
		t.Fatalf("Toggle(5): %v", err)
	}
	if got := s.Windows(); !slices.Equal(got, []int{15}) {
		t.Errorf("after removing 5: %v, want [15]", got)
	}

	s, err = s.Toggle(10)
	if err != nil {
		t.Fatalf("Toggle(10): %v", err)
	}
	if got := s.Windows(); !slices.Equal(got, []int{10, 15}) {
		t.Errorf("after adding 10: %v, want [10 15]", got)
	}
	if s.Index(10) != 0 || s.Index(15) != 1 {
		t.Errorf("palette positions = %d,%d, want 0,1", s.Index(10), s.Index(15))
	}
}

func TestIndicatorRejectThird(t *testing.T) {
	s := mustSet(t, 5, 20)
	next, err := s.Toggle(10)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	if err.Error() != "at most 2 moving averages can be shown" {
		t.Errorf("message = %q", err.Error())
	}
	if next != s {
		t.Errorf("set changed on rejection: %v", next)
	}
}

func TestNewIndicatorSetRejectsUnknownWindow(t *testing.T) {
	if _, err := NewIndicatorSet(7); !errors.Is(err, ErrNotInCatalog) {
		t.Errorf("err = %v, want ErrNotInCatalog", err)
	}
}

func TestSelectSymbol(t *testing.T) {
	s := NewSelection(domain.Period6M, mustSet(t, 5))
	s.Tab = domain.TabDividends

	next, effects := s.SelectSymbol("AAPL")
	if next.Symbol != "AAPL" || next.Tab != domain.TabChart {
		t.Errorf("selection = %+v", next)
	}
	if len(effects) != 2 || effects[0].Kind != EffectInvalidate || effects[1].Kind != EffectLoad {
		t.Fatalf("effects = %+v", effects)
	}
	if !slices.Equal(effects[1].Tabs, []domain.Tab{domain.TabChart, domain.TabAnalysis}) {
		t.Errorf("load tabs = %v", effects[1].Tabs)
	}

	same, effects := s.SelectSymbol("")
	if same != s || effects != nil {
		t.Errorf("empty symbol should be a no-op")
	}
}

func TestChangePeriod(t *testing.T) {
	s := NewSelection(domain.Period6M, IndicatorSet{})

	if next, effects := s.ChangePeriod(domain.Period1Y); next != s || effects != nil {
		t.Error("ChangePeriod without a symbol should be a no-op")
	}

	s, _ = s.SelectSymbol("MSFT")
	if next, effects := s.ChangePeriod("5y"); next != s || effects != nil {
		t.Error("unknown period should be a no-op")
	}

	next, effects := s.ChangePeriod(domain.Period1Y)
	if next.Period != domain.Period1Y {
		t.Errorf("Period = %s", next.Period)
	}
	if len(effects) != 2 || effects[1].Kind != EffectLoad || effects[1].Period != domain.Period1Y {
		t.Errorf("effects = %+v", effects)
	}
	if !slices.Equal(effects[0].Tabs, []domain.Tab{domain.TabChart, domain.TabAnalysis}) {
		t.Errorf("invalidated tabs = %v, want chart and analysis", effects[0].Tabs)
	}

	for _, tab := range []domain.Tab{domain.TabFinancials, domain.TabDividends, domain.TabPrediction} {
		s.Tab = tab
		_, effects = s.ChangePeriod(domain.Period2Y)
		if len(effects) != 1 || effects[0].Kind != EffectInvalidate {
			t.Errorf("%s tab effects = %+v, want invalidate only", tab, effects)
		}
	}

	// Portfolio renders from the price and analysis pair.
	s.Tab = domain.TabPortfolio
	_, effects = s.ChangePeriod(domain.Period3M)
	if len(effects) != 2 || effects[1].Kind != EffectLoad || !slices.Equal(effects[1].Tabs, []domain.Tab{domain.TabChart, domain.TabAnalysis}) {
		t.Errorf("portfolio tab effects = %+v, want invalidate and primary load", effects)
	}
}

func TestSwitchTabLazyLoad(t *testing.T) {
	s, _ := NewSelection(domain.Period6M, IndicatorSet{}).SelectSymbol("AAPL")
	loaded := map[domain.Tab]bool{domain.TabChart: true, domain.TabAnalysis: true}
	isLoaded := func(t domain.Tab) bool { return loaded[t] }

	s, effects := s.SwitchTab(domain.TabFinancials, isLoaded)
	if s.Tab != domain.TabFinancials {
		t.Errorf("Tab = %s", s.Tab)
	}
	if len(effects) != 1 || effects[0].Kind != EffectLoad || !slices.Equal(effects[0].Tabs, []domain.Tab{domain.TabFinancials}) {
		t.Fatalf("first switch effects = %+v", effects)
	}

	loaded[domain.TabFinancials] = true
	_, effects = s.SwitchTab(domain.TabFinancials, isLoaded)
	if len(effects) != 1 || effects[0].Kind != EffectRender {
		t.Errorf("second switch effects = %+v, want render", effects)
	}

	_, effects = s.SwitchTab(domain.TabPortfolio, isLoaded)
	if len(effects) != 1 || effects[0].Kind != EffectRender {
		t.Errorf("portfolio with primary loaded = %+v, want render", effects)
	}

	loaded[domain.TabAnalysis] = false
	_, effects = s.SwitchTab(domain.TabPortfolio, isLoaded)
	if len(effects) != 1 || !slices.Equal(effects[0].Tabs, []domain.Tab{domain.TabChart, domain.TabAnalysis}) {
		t.Errorf("portfolio without analysis = %+v, want primary load", effects)
	}

	if next, effects := s.SwitchTab("news", isLoaded); next != s || effects != nil {
		t.Error("unknown tab should be a no-op")
	}
}

func TestToggleIndicatorEffects(t *testing.T) {
	s, _ := NewSelection(domain.Period6M, mustSet(t, 5, 15)).SelectSymbol("AAPL")

	next, effects := s.ToggleIndicator(10)
	if next != s {
		t.Error("rejected toggle changed the selection")
	}
	if len(effects) != 1 || effects[0].Kind != EffectReconcile {
		t.Fatalf("effects = %+v, want reconcile", effects)
	}
	if !slices.Equal(effects[0].Indicators.Windows(), []int{5, 15}) {
		t.Errorf("reconcile set = %v", effects[0].Indicators)
	}

	next, effects = s.ToggleIndicator(5)
	if len(effects) != 1 || effects[0].Kind != EffectRedraw {
		t.Fatalf("effects = %+v, want redraw", effects)
	}
	if !slices.Equal(next.Indicators.Windows(), []int{15}) {
		t.Errorf("Indicators = %v", next.Indicators)
	}

	if same, effects := s.ToggleIndicator(7); same != s || effects != nil {
		t.Error("window outside the catalog should be a no-op")
	}
}

func TestClear(t *testing.T) {
	s, _ := NewSelection(domain.Period6M, IndicatorSet{}).SelectSymbol("AAPL")
	if next, effects := s.Clear("MSFT"); next != s || effects != nil {
		t.Error("clearing another symbol should be a no-op")
	}
	next, effects := s.Clear("AAPL")
	if next.HasSymbol() {
		t.Error("symbol not cleared")
	}
	if len(effects) != 2 || effects[1].Kind != EffectDestroyChart {
		t.Errorf("effects = %+v", effects)
	}
}
