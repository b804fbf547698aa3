package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockdash/internal/chart"
	"stockdash/internal/domain"
	"stockdash/internal/httpapi"
	"stockdash/internal/loader"
	"stockdash/internal/series"
	"stockdash/internal/store"
	"stockdash/pkg/stockapi"
)

// recordingBackend counts created and disposed widgets.
type recordingBackend struct {
	kinds []chart.Kind
	live  int
}

func (b *recordingBackend) Create(kind chart.Kind, _, _ int) (chart.Widget, error) {
	b.kinds = append(b.kinds, kind)
	b.live++
	return &stubWidget{b: b, kind: kind}, nil
}

func (b *recordingBackend) last() chart.Kind {
	if len(b.kinds) == 0 {
		return -1
	}
	return b.kinds[len(b.kinds)-1]
}

type stubWidget struct {
	b    *recordingBackend
	kind chart.Kind
}

func (w *stubWidget) AddCandles([]series.Candle) error          { return nil }
func (w *stubWidget) AddVolume([]series.VolumeBar) error        { return nil }
func (w *stubWidget) AddLine(string, []series.Point, int) error { return nil }
func (w *stubWidget) AddBars(string, []series.Point) error      { return nil }
func (w *stubWidget) FitContent()                               {}
func (w *stubWidget) View() string                              { return "<" + w.kind.String() + ">" }
func (w *stubWidget) Dispose() error {
	w.b.live--
	return nil
}

type harness struct {
	server  *httpapi.DemoServer
	charts  *recordingBackend
	prefs   *store.SQLiteStore
	archive *store.ParquetStore
}

func clock() time.Time { return time.Date(2024, time.June, 14, 15, 0, 0, 0, time.UTC) }

func newTestModel(t *testing.T, symbols ...string) (model, *harness) {
	t.Helper()
	s := httpapi.NewDemoServer(httpapi.WithClock(clock), httpapi.WithStocks(symbols...))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	prefs, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { prefs.Close() })

	h := &harness{
		server:  s,
		charts:  &recordingBackend{},
		prefs:   prefs,
		archive: store.NewParquetStore(t.TempDir()),
	}
	m := newModel(context.Background(), modelConfig{
		API:             stockapi.NewClient(ts.URL+"/api", stockapi.WithRateLimit(0), stockapi.WithRetries(1)),
		Prefs:           prefs,
		Archive:         h.archive,
		Charts:          h.charts,
		Log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		Preferences:     store.Preferences{Period: domain.Period6M, Indicators: []int{5, 20}},
		RefreshInterval: time.Minute,
		PredictionDays:  30,
	})
	t.Cleanup(m.shutdown)
	m.resize(120, 40)
	return m, h
}

// run executes cmd and feeds every resulting message back into the model
// until no command is left.
func run(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	if b, ok := msg.(tea.BatchMsg); ok {
		for _, c := range b {
			m = run(t, m, c)
		}
		return m
	}
	return send(t, m, msg)
}

func send(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, cmd := m.Update(msg)
	return run(t, next.(model), cmd)
}

// press sends a key and discards the command, for keys that only focus an
// input.
func press(m model, k string) model {
	next, _ := m.Update(keyMsg(k))
	return next.(model)
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func loaded(t *testing.T, m model) model {
	t.Helper()
	return run(t, m, m.loadListCmd(false))
}

func TestSelectSymbolLoadsChart(t *testing.T) {
	m, h := newTestModel(t, "AAPL", "MSFT")
	m = loaded(t, m)
	if len(m.rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.rows))
	}

	m = send(t, m, keyMsg("enter"))
	if m.sel.Symbol != "AAPL" || m.sel.Tab != domain.TabChart {
		t.Fatalf("selection = %+v", m.sel)
	}
	if m.orch.Price() == nil || m.orch.Analysis() == nil {
		t.Fatal("primary payloads not loaded")
	}
	if h.charts.live != 1 || h.charts.last() != chart.KindCandlestick {
		t.Errorf("charts live=%d last=%v, want one candlestick", h.charts.live, h.charts.last())
	}
	if !strings.Contains(m.renderDetail(), "<candlestick>") {
		t.Error("detail pane does not show the chart")
	}

	p, err := store.LoadPreferences(context.Background(), h.prefs, store.Preferences{})
	if err != nil || p.LastSymbol != "AAPL" {
		t.Errorf("LastSymbol = %q, %v; want AAPL", p.LastSymbol, err)
	}
}

func TestLateResultForPreviousSymbolIsDropped(t *testing.T) {
	m, _ := newTestModel(t, "AAPL", "MSFT")
	m = loaded(t, m)

	first := m.selectSymbol("AAPL")
	second := m.selectSymbol("MSFT")
	msgFirst, msgSecond := first(), second()

	m = send(t, m, msgSecond)
	m = send(t, m, msgFirst)
	if p := m.orch.Price(); p == nil || p.Symbol != "MSFT" {
		t.Fatalf("price = %+v, want MSFT", p)
	}
	if m.sel.Symbol != "MSFT" {
		t.Errorf("selection = %s, want MSFT", m.sel.Symbol)
	}
}

func TestSwitchTabLoadsOnce(t *testing.T) {
	m, h := newTestModel(t, "AAPL")
	m = loaded(t, m)
	m = run(t, m, m.selectSymbol("AAPL"))

	cmd := m.switchTab(domain.TabFinancials)
	if cmd == nil {
		t.Fatal("first visit to financials should load")
	}
	m = run(t, m, cmd)
	if m.orch.Financials() == nil {
		t.Fatal("financials not loaded")
	}
	if h.charts.live != 0 {
		t.Errorf("financials tab should release the chart, live = %d", h.charts.live)
	}

	if cmd := m.switchTab(domain.TabChart); cmd != nil {
		t.Error("chart data is cached; switching back should not load")
	}
	if h.charts.live != 1 || h.charts.last() != chart.KindCandlestick {
		t.Errorf("chart not redrawn from cache: live=%d last=%v", h.charts.live, h.charts.last())
	}
	if cmd := m.switchTab(domain.TabFinancials); cmd != nil {
		t.Error("financials are cached; switching back should not load")
	}

	m = run(t, m, m.switchTab(domain.TabDividends))
	if h.charts.last() != chart.KindBar {
		t.Errorf("dividends chart kind = %v, want bar", h.charts.last())
	}
	m = run(t, m, m.switchTab(domain.TabPrediction))
	if h.charts.last() != chart.KindLine || h.charts.live != 1 {
		t.Errorf("prediction chart kind = %v live=%d, want one line chart", h.charts.last(), h.charts.live)
	}
}

func TestChangePeriod(t *testing.T) {
	m, h := newTestModel(t, "AAPL")
	m = loaded(t, m)

	if cmd := m.shiftPeriod(1); cmd != nil || m.sel.Period != domain.Period6M {
		t.Fatalf("period change without a symbol should be a no-op, period = %s", m.sel.Period)
	}

	m = run(t, m, m.selectSymbol("AAPL"))
	m = run(t, m, m.shiftPeriod(1))
	if m.sel.Period != domain.Period1Y {
		t.Fatalf("period = %s, want 1y", m.sel.Period)
	}
	if p := m.orch.Price(); p == nil || len(p.History) != 252 {
		t.Fatalf("1y history not loaded")
	}
	stored, _ := store.LoadPreferences(context.Background(), h.prefs, store.Preferences{})
	if stored.Period != domain.Period1Y {
		t.Errorf("stored period = %s, want 1y", stored.Period)
	}

	// Off the primary tabs the reload waits for the next visit.
	m = run(t, m, m.switchTab(domain.TabFinancials))
	if cmd := m.shiftPeriod(1); cmd != nil {
		t.Error("period change on financials should not load")
	}
	if m.orch.Loaded(domain.TabChart) {
		t.Error("chart data should be invalidated by the period change")
	}
	if cmd := m.switchTab(domain.TabChart); cmd == nil {
		t.Error("revisiting the chart should reload it")
	}
}

func TestChangePeriodOnPortfolioReloads(t *testing.T) {
	m, _ := newTestModel(t, "AAPL")
	m = loaded(t, m)
	m = run(t, m, m.selectSymbol("AAPL"))
	m = run(t, m, m.switchTab(domain.TabPortfolio))

	cmd := m.shiftPeriod(1)
	if cmd == nil {
		t.Fatal("period change on portfolio should reload price and analysis")
	}
	if !m.orch.Loaded(domain.TabChart) || !m.orch.Loaded(domain.TabAnalysis) {
		t.Error("price and analysis should be in flight")
	}
	m = run(t, m, cmd)
	if p := m.orch.Price(); p == nil || len(p.History) != 252 {
		t.Fatal("1y history not loaded")
	}
	if out := m.renderDetail(); strings.Contains(out, "Loading AAPL") {
		t.Errorf("portfolio still loading after reload:\n%s", out)
	}
}

func TestChangePeriodKeepsDividendsChart(t *testing.T) {
	m, h := newTestModel(t, "AAPL")
	m = loaded(t, m)
	m = run(t, m, m.selectSymbol("AAPL"))
	m = run(t, m, m.switchTab(domain.TabDividends))
	if h.charts.live != 1 || h.charts.last() != chart.KindBar {
		t.Fatalf("dividends chart: live=%d last=%v", h.charts.live, h.charts.last())
	}
	created := len(h.charts.kinds)

	if cmd := m.shiftPeriod(1); cmd != nil {
		t.Error("dividends do not depend on the period; nothing should load")
	}
	if h.charts.live != 1 || len(h.charts.kinds) != created {
		t.Errorf("dividends chart touched: live=%d created=%d, want 1 and %d", h.charts.live, len(h.charts.kinds), created)
	}
	if !strings.Contains(m.renderDetail(), "<bar>") {
		t.Error("dividends chart missing after the period change")
	}
}

func TestChangePeriodRedrawsPredictionBand(t *testing.T) {
	m, h := newTestModel(t, "AAPL")
	m = loaded(t, m)
	m = run(t, m, m.selectSymbol("AAPL"))
	m = run(t, m, m.switchTab(domain.TabPrediction))
	if h.charts.live != 1 || h.charts.last() != chart.KindLine {
		t.Fatalf("prediction chart: live=%d last=%v", h.charts.live, h.charts.last())
	}

	if cmd := m.shiftPeriod(1); cmd != nil {
		t.Error("the forecast does not depend on the period; nothing should load")
	}
	if h.charts.live != 1 || h.charts.last() != chart.KindLine {
		t.Errorf("band not redrawn: live=%d last=%v", h.charts.live, h.charts.last())
	}
	if m.orch.Price() != nil {
		t.Error("price history should be invalidated by the period change")
	}
	if !strings.Contains(m.renderDetail(), "<line>") {
		t.Error("prediction chart missing after the period change")
	}

	// The chart tab reloads on the next visit.
	m = run(t, m, m.switchTab(domain.TabChart))
	if p := m.orch.Price(); p == nil || len(p.History) != 252 {
		t.Error("1y history not loaded on return to the chart")
	}
}

func TestIndicatorCapacityReconciles(t *testing.T) {
	m, h := newTestModel(t, "AAPL")
	m = loaded(t, m)
	m = run(t, m, m.selectSymbol("AAPL"))
	drawn := len(h.charts.kinds)

	m = press(m, "i")
	if m.mode != modeIndicators || !slices.Equal(m.picked, []int{5, 20}) {
		t.Fatalf("picker mode=%v picked=%v", m.mode, m.picked)
	}
	for range 5 {
		m = press(m, "j")
	}
	m = press(m, " ") // MA 30 with two already selected
	if !slices.Equal(m.picked, []int{5, 20}) {
		t.Errorf("picked = %v, want reconciled [5 20]", m.picked)
	}
	if !m.statusErr || !strings.Contains(m.status, "at most") {
		t.Errorf("status = %q, want capacity notice", m.status)
	}
	if len(h.charts.kinds) != drawn {
		t.Error("a rejected toggle must not redraw")
	}

	for range 5 {
		m = press(m, "k")
	}
	m = press(m, " ") // MA 5 off
	if !slices.Equal(m.sel.Indicators.Windows(), []int{20}) || !slices.Equal(m.picked, []int{20}) {
		t.Errorf("indicators = %v picked = %v, want [20]", m.sel.Indicators.Windows(), m.picked)
	}
	if len(h.charts.kinds) != drawn+1 {
		t.Error("an accepted toggle should redraw once")
	}
	stored, _ := store.LoadPreferences(context.Background(), h.prefs, store.Preferences{})
	if !slices.Equal(stored.Indicators, []int{20}) {
		t.Errorf("stored indicators = %v, want [20]", stored.Indicators)
	}

	m = press(m, "esc")
	if m.mode != modeNormal {
		t.Errorf("mode = %v after esc", m.mode)
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	m, h := newTestModel(t, "AAPL", "MSFT")
	m = loaded(t, m)
	m = send(t, m, keyMsg("enter"))

	m = send(t, m, keyMsg("d"))
	if m.mode != modeConfirmDelete || m.pending != "AAPL" {
		t.Fatalf("mode=%v pending=%q", m.mode, m.pending)
	}
	m = send(t, m, keyMsg("n"))
	if m.mode != modeNormal || len(h.server.Tracked()) != 2 {
		t.Fatal("declined delete should not remove anything")
	}

	m = send(t, m, keyMsg("d"))
	m = send(t, m, keyMsg("y"))
	if len(h.server.Tracked()) != 1 {
		t.Fatalf("tracked = %v, want MSFT only", h.server.Tracked())
	}
	if m.sel.HasSymbol() {
		t.Errorf("selection = %q, want cleared", m.sel.Symbol)
	}
	if h.charts.live != 0 {
		t.Errorf("chart still live after deleting the shown stock")
	}
	if len(m.rows) != 1 || m.rows[0].Symbol != "MSFT" {
		t.Errorf("rows = %+v", m.rows)
	}
}

func TestAddSelectsNewStock(t *testing.T) {
	m, h := newTestModel(t, "AAPL")
	m = loaded(t, m)

	m = press(m, "a")
	m.input.SetValue("$$")
	m = press(m, "enter")
	if m.mode != modeAdd || !m.statusErr {
		t.Fatalf("invalid symbol should keep the prompt open, mode=%v status=%q", m.mode, m.status)
	}

	m.input.SetValue("nvda")
	m = send(t, m, keyMsg("enter"))
	if len(h.server.Tracked()) != 2 {
		t.Fatalf("tracked = %v", h.server.Tracked())
	}
	if m.sel.Symbol != "NVDA" || m.orch.Price() == nil {
		t.Errorf("selection = %q, want NVDA loaded", m.sel.Symbol)
	}

	m = press(m, "a")
	m.input.SetValue("ZZZZ")
	m = send(t, m, keyMsg("enter"))
	if !m.statusErr || !strings.Contains(m.status, "Add failed") {
		t.Errorf("status = %q, want add failure", m.status)
	}
}

func TestBackgroundRefreshKeepsTab(t *testing.T) {
	m, h := newTestModel(t, "AAPL", "MSFT")
	m = loaded(t, m)
	m = run(t, m, m.selectSymbol("AAPL"))
	m = run(t, m, m.switchTab(domain.TabFinancials))
	created := len(h.charts.kinds)

	m = run(t, m, m.loadListCmd(true))
	if m.sel.Symbol != "AAPL" || m.sel.Tab != domain.TabFinancials {
		t.Errorf("selection = %+v, want AAPL on financials", m.sel)
	}
	if len(h.charts.kinds) != created {
		t.Error("background refresh must not touch the chart")
	}

	m = send(t, m, listLoadedMsg{loader.ListResult{Err: errors.New("offline"), Background: true}})
	if len(m.rows) != 2 || m.listErr != "" || !m.statusErr {
		t.Errorf("failed background refresh: rows=%d listErr=%q status=%q", len(m.rows), m.listErr, m.status)
	}
}

func TestPrimaryErrorFailsView(t *testing.T) {
	m, h := newTestModel(t, "AAPL")
	h.server.InjectFault("price", httpapi.Fault{Status: http.StatusNotFound, Message: "No data found"})
	m = loaded(t, m)
	m = run(t, m, m.selectSymbol("AAPL"))

	if _, failed := m.orch.PrimaryError(); !failed {
		t.Fatal("price failure should fail the view")
	}
	if h.charts.live != 0 {
		t.Error("no chart should be drawn")
	}
	if out := m.renderDetail(); !strings.Contains(out, "Could not load AAPL") {
		t.Errorf("detail = %q", out)
	}

	// Retry once the backend recovers.
	h.server.ClearFaults()
	m = run(t, m, m.refreshAll())
	if _, failed := m.orch.PrimaryError(); failed || h.charts.live != 1 {
		t.Errorf("retry did not recover: live=%d", h.charts.live)
	}
}

func TestAnalysisErrorOnlyFailsPanel(t *testing.T) {
	m, h := newTestModel(t, "AAPL")
	h.server.InjectFault("analysis", httpapi.Fault{Status: http.StatusNotFound, Message: "analysis failed"})
	m = loaded(t, m)
	m = run(t, m, m.selectSymbol("AAPL"))

	if _, failed := m.orch.PrimaryError(); failed {
		t.Fatal("analysis failure must not fail the view")
	}
	if h.charts.live != 1 {
		t.Error("chart should still be drawn")
	}
	m = run(t, m, m.switchTab(domain.TabAnalysis))
	if out := m.renderDetail(); !strings.Contains(out, "Analysis unavailable") {
		t.Errorf("detail = %q", out)
	}
}

func TestHoldingsSaved(t *testing.T) {
	m, _ := newTestModel(t, "AAPL")
	m = loaded(t, m)
	m = run(t, m, m.selectSymbol("AAPL"))

	m = press(m, "h")
	if m.mode != modeHoldings {
		t.Fatalf("mode = %v", m.mode)
	}
	m.input.SetValue("10")
	m.avgInput.SetValue("150")
	m = send(t, m, keyMsg("enter"))

	row := m.selectedRow()
	if row == nil || row.Quantity != 10 || row.AvgPrice != 150 {
		t.Fatalf("row = %+v", row)
	}
	m = run(t, m, m.switchTab(domain.TabPortfolio))
	if out := m.renderDetail(); !strings.Contains(out, "$1,500.00") {
		t.Errorf("portfolio should show the cost basis: %q", out)
	}
}

func TestRestoreLastSymbol(t *testing.T) {
	m, _ := newTestModel(t, "AAPL", "MSFT")
	m.restore = "MSFT"
	m = loaded(t, m)
	if m.sel.Symbol != "MSFT" || m.orch.Price() == nil {
		t.Errorf("selection = %q, want MSFT restored", m.sel.Symbol)
	}
	if m.rows[m.cursor].Symbol != "MSFT" {
		t.Errorf("cursor on %s, want MSFT", m.rows[m.cursor].Symbol)
	}
}

func TestToggleAutoRefresh(t *testing.T) {
	m, h := newTestModel(t, "AAPL")

	m = send(t, m, keyMsg("t"))
	if !m.timer.Running() || m.timer.Interval() != time.Minute {
		t.Fatal("auto-refresh should be running every minute")
	}
	stored, _ := store.LoadPreferences(context.Background(), h.prefs, store.Preferences{})
	if !stored.AutoRefresh {
		t.Error("auto-refresh flag not stored")
	}

	m = send(t, m, keyMsg("t"))
	if m.timer.Running() {
		t.Error("auto-refresh should be off")
	}
	stored, _ = store.LoadPreferences(context.Background(), h.prefs, store.Preferences{})
	if stored.AutoRefresh {
		t.Error("auto-refresh flag not cleared")
	}
}

func TestExportArchivesHistory(t *testing.T) {
	m, h := newTestModel(t, "AAPL")
	m = loaded(t, m)
	m = run(t, m, m.selectSymbol("AAPL"))

	m = send(t, m, keyMsg("e"))
	if m.statusErr || !strings.HasPrefix(m.status, "Archived") {
		t.Fatalf("status = %q", m.status)
	}
	got, err := h.archive.ReadHistory(context.Background(), "AAPL",
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || len(got) != len(m.orch.Price().History) {
		t.Errorf("archived %d rows (%v), want %d", len(got), err, len(m.orch.Price().History))
	}
}

func TestParseHoldings(t *testing.T) {
	if h, err := parseHoldings(" 12.5 ", "100"); err != nil || h.Quantity != 12.5 || h.AvgPrice != 100 {
		t.Errorf("parseHoldings = %+v, %v", h, err)
	}
	for _, in := range [][2]string{{"-1", "10"}, {"x", "10"}, {"1", "-3"}} {
		var ve *stockapi.ValidationError
		if _, err := parseHoldings(in[0], in[1]); !errors.As(err, &ve) {
			t.Errorf("parseHoldings(%q, %q) err = %v, want ValidationError", in[0], in[1], err)
		}
	}
}
