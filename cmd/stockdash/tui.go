package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/subcommands"

	"stockdash/internal/chart"
	"stockdash/internal/dashboard"
	"stockdash/internal/domain"
	"stockdash/internal/loader"
	"stockdash/internal/metrics"
	"stockdash/internal/refresh"
	"stockdash/internal/series"
	"stockdash/internal/store"
	"stockdash/internal/view"
	"stockdash/pkg/stockapi"
)

// ---------------------------------------------------------------------------
// tui subcommand
// ---------------------------------------------------------------------------

type tuiCmd struct {
	symbol string
}

func (*tuiCmd) Name() string     { return "tui" }
func (*tuiCmd) Synopsis() string { return "start the interactive dashboard" }
func (*tuiCmd) Usage() string {
	return `stockdash tui [-symbol SYMBOL]

  Opens the dashboard: the tracked list on the left, the selected stock's
  chart and tabs on the right. Press ? in the dashboard for keys.
`
}

func (c *tuiCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "stock to select at start (default: the last one viewed)")
}

func (c *tuiCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := setup(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	defaults := store.Preferences{
		AutoRefresh: e.cfg.UI.AutoRefresh,
		Period:      domain.Period(e.cfg.UI.DefaultPeriod),
		Indicators:  e.cfg.UI.Indicators,
	}
	prefs := defaults
	var prefStore store.PreferenceStore
	if db, err := store.NewSQLiteStore(e.cfg.Storage.PrefsPath); err != nil {
		e.log.Warn("preferences unavailable", "path", e.cfg.Storage.PrefsPath, "error", err)
	} else {
		defer db.Close()
		prefStore = db
		if prefs, err = store.LoadPreferences(ctx, db, defaults); err != nil {
			e.log.Warn("loading preferences", "error", err)
		}
	}
	if c.symbol != "" {
		sym, err := stockapi.NormalizeSymbol(c.symbol)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		prefs.LastSymbol = sym
	}

	stopMetrics := e.startMetrics()
	defer stopMetrics()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel(runCtx, modelConfig{
		API:             e.client,
		Prefs:           prefStore,
		Archive:         store.NewParquetStore(e.cfg.Storage.ArchiveDir),
		Charts:          chart.NewTermBackend(),
		Log:             e.log,
		Metrics:         e.metrics,
		Preferences:     prefs,
		RefreshInterval: e.cfg.UI.RefreshInterval,
		PredictionDays:  e.cfg.API.PredictionDays,
	})
	e.log.Info("starting dashboard", "api", e.cfg.API.BaseURL, "period", prefs.Period, "auto_refresh", prefs.AutoRefresh)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	final, err := p.Run()
	if fm, ok := final.(model); ok {
		fm.shutdown()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

// stockBackend is everything the dashboard asks of the API.
type stockBackend interface {
	loader.Fetcher
	loader.ListFetcher
	AddStock(ctx context.Context, symbol string, force bool) (*domain.AddStockResponse, error)
	UpdateHoldings(ctx context.Context, symbol string, h domain.Holdings) error
	RemoveStock(ctx context.Context, symbol string) error
}

var _ stockBackend = (*stockapi.Client)(nil)

type inputMode int

const (
	modeNormal inputMode = iota
	modeAdd
	modeHoldings
	modeConfirmDelete
	modeIndicators
	modeHelp
)

// Messages.
type tickMsg time.Time

type listLoadedMsg struct{ res loader.ListResult }

type detailLoadedMsg struct{ res loader.Result }

type addedMsg struct {
	resp *domain.AddStockResponse
	err  error
}

type removedMsg struct {
	symbol string
	err    error
}

type holdingsSavedMsg struct {
	symbol   string
	holdings domain.Holdings
	err      error
}

type exportedMsg struct {
	symbol string
	rows   int
	err    error
}

// predictionContext is how many recent closes precede the forecast band.
const predictionContext = 60

// modelConfig carries the dependencies of the dashboard model.
type modelConfig struct {
	API     stockBackend
	Prefs   store.PreferenceStore // may be nil
	Archive store.HistoryArchive  // may be nil
	Charts  chart.Backend
	Log     *slog.Logger
	Metrics *metrics.Metrics

	Preferences     store.Preferences
	RefreshInterval time.Duration
	PredictionDays  int
}

type model struct {
	ctx          context.Context
	api          stockBackend
	prefs        store.PreferenceStore
	archive      store.HistoryArchive
	orch         *loader.Orchestrator
	charts       *chart.Manager
	timer        *refresh.Timer
	metrics      *metrics.Metrics
	log          *slog.Logger
	refreshEvery time.Duration

	sel      view.Selection
	raw      []loader.ListRow // backend order
	rows     []loader.ListRow // display order
	cursor   int
	sortMode dashboard.SortMode
	listErr  string
	quoteErr string
	restore  string // symbol to reselect once the list arrives

	mode       inputMode
	input      textinput.Model
	avgInput   textinput.Model
	holdField  int
	pending    string // symbol awaiting delete confirmation
	pickCursor int
	picked     []int // indicator checkboxes, possibly ahead of the selection

	status    string
	statusErr bool

	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

func newModel(ctx context.Context, c modelConfig) model {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	indicators, err := view.NewIndicatorSet(c.Preferences.Indicators...)
	if err != nil {
		c.Log.Warn("ignoring stored indicators", "indicators", c.Preferences.Indicators, "error", err)
		indicators, _ = view.NewIndicatorSet()
	}

	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 16
	avg := textinput.New()
	avg.Prompt = ""
	avg.CharLimit = 16

	m := model{
		ctx:          ctx,
		api:          c.API,
		prefs:        c.Prefs,
		archive:      c.Archive,
		orch:         loader.NewOrchestrator(c.API, c.PredictionDays, c.Log, c.Metrics),
		charts:       chart.NewManager(c.Charts, c.Log, c.Metrics),
		timer:        refresh.NewTimer(c.Log),
		metrics:      c.Metrics,
		log:          c.Log,
		refreshEvery: c.RefreshInterval,
		sel:          view.NewSelection(c.Preferences.Period, indicators),
		restore:      c.Preferences.LastSymbol,
		input:        input,
		avgInput:     avg,
	}
	if c.Preferences.AutoRefresh {
		if err := m.timer.Start(m.refreshEvery); err != nil {
			m.log.Warn("auto-refresh not started", "interval", m.refreshEvery, "error", err)
		}
	}
	return m
}

func (m model) Init() tea.Cmd {
	return batch(m.loadListCmd(false), waitTick(m.timer.C()))
}

// shutdown releases the timer and the chart once the program has exited.
func (m model) shutdown() {
	m.timer.Stop()
	m.charts.Destroy()
}

// batch is tea.Batch without the wrapper for zero or one command.
func batch(cmds ...tea.Cmd) tea.Cmd {
	var live []tea.Cmd
	for _, c := range cmds {
		if c != nil {
			live = append(live, c)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return tea.Batch(live...)
}

// waitTick is the single reader of the refresh timer's channel; it is
// re-issued after every tick.
func waitTick(c <-chan time.Time) tea.Cmd {
	return func() tea.Msg {
		return tickMsg(<-c)
	}
}

func (m *model) loadListCmd(background bool) tea.Cmd {
	ctx, api, mt := m.ctx, m.api, m.metrics
	return func() tea.Msg {
		return listLoadedMsg{loader.LoadList(ctx, api, background, mt)}
	}
}

func (m *model) loadDetailCmd(tasks []loader.Task) tea.Cmd {
	if len(tasks) == 0 {
		return nil
	}
	ctx, orch := m.ctx, m.orch
	return func() tea.Msg {
		return detailLoadedMsg{orch.Run(ctx, tasks)}
	}
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeAdd:
			return m, m.updateAdd(msg)
		case modeHoldings:
			return m, m.updateHoldings(msg)
		case modeConfirmDelete:
			return m, m.updateConfirm(msg)
		case modeIndicators:
			return m, m.updatePicker(msg)
		case modeHelp:
			m.mode = modeNormal
			m.refreshContent()
			return m, nil
		}
		if msg.String() == "q" {
			return m, tea.Quit
		}
		if cmd, handled := m.updateNormal(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tickMsg:
		if !m.timer.Running() {
			return m, waitTick(m.timer.C())
		}
		m.log.Debug("auto-refresh tick")
		return m, batch(m.loadListCmd(true), waitTick(m.timer.C()))

	case listLoadedMsg:
		return m, m.applyList(msg.res)

	case detailLoadedMsg:
		m.applyDetail(msg.res)
		return m, nil

	case addedMsg:
		if msg.err != nil {
			m.setError("Add failed: " + stockapi.UserMessage(msg.err))
			return m, nil
		}
		if msg.resp.Warning != "" {
			m.setStatus(fmt.Sprintf("Added %s (%s)", msg.resp.Symbol, msg.resp.Warning))
		} else {
			m.setStatus(fmt.Sprintf("Added %s", msg.resp.Symbol))
		}
		m.restore = msg.resp.Symbol
		return m, m.loadListCmd(false)

	case removedMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Remove %s failed: %s", msg.symbol, stockapi.UserMessage(msg.err)))
			return m, nil
		}
		m.setStatus("Removed " + msg.symbol)
		sel, effects := m.sel.Clear(msg.symbol)
		m.sel = sel
		cmd := m.runEffects(effects)
		if !m.sel.HasSymbol() {
			m.savePref("last_symbol", func(ctx context.Context, ps store.PreferenceStore) error {
				return store.SaveLastSymbol(ctx, ps, "")
			})
		}
		return m, batch(cmd, m.loadListCmd(false))

	case holdingsSavedMsg:
		if msg.err != nil {
			m.setError("Saving holdings failed: " + stockapi.UserMessage(msg.err))
			return m, nil
		}
		for i := range m.raw {
			if m.raw[i].Symbol == msg.symbol {
				m.raw[i].Quantity = msg.holdings.Quantity
				m.raw[i].AvgPrice = msg.holdings.AvgPrice
			}
		}
		m.resort()
		m.setStatus("Holdings saved for " + msg.symbol)
		m.refreshContent()
		return m, m.loadListCmd(false)

	case exportedMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Export %s failed: %v", msg.symbol, msg.err))
		} else {
			m.setStatus(fmt.Sprintf("Archived %d rows of %s", msg.rows, msg.symbol))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// updateNormal handles keys outside any prompt. Unhandled keys fall through
// to the viewport for scrolling.
func (m *model) updateNormal(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch key := msg.String(); key {
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "enter":
		if m.cursor < len(m.rows) {
			return m.selectSymbol(m.rows[m.cursor].Symbol), true
		}
	case "1", "2", "3", "4", "5", "6":
		return m.switchTab(domain.Tabs[key[0]-'1']), true
	case "tab":
		return m.switchTab(domain.Tabs[(tabIndex(m.sel.Tab)+1)%len(domain.Tabs)]), true
	case "shift+tab":
		return m.switchTab(domain.Tabs[(tabIndex(m.sel.Tab)+len(domain.Tabs)-1)%len(domain.Tabs)]), true
	case "[":
		return m.shiftPeriod(-1), true
	case "]":
		return m.shiftPeriod(1), true
	case "i":
		m.mode = modeIndicators
		m.picked = m.sel.Indicators.Windows()
		m.pickCursor = 0
	case "a":
		m.mode = modeAdd
		m.input.Reset()
		m.input.Placeholder = "symbol, e.g. AAPL or 7203.T"
		return m.input.Focus(), true
	case "d":
		if m.cursor < len(m.rows) {
			m.pending = m.rows[m.cursor].Symbol
			m.mode = modeConfirmDelete
		}
	case "h":
		return m.openHoldings(), true
	case "r":
		return m.refreshAll(), true
	case "t":
		m.toggleAutoRefresh()
	case "s":
		m.sortMode = m.sortMode.Next()
		m.resort()
	case "e":
		return m.exportCmd(), true
	case "?":
		m.mode = modeHelp
	default:
		return nil, false
	}
	m.refreshContent()
	return nil, true
}

func (m *model) updateAdd(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.input.Blur()
		return nil
	case "enter", "ctrl+f":
		sym, err := stockapi.NormalizeSymbol(m.input.Value())
		if err != nil {
			m.setError(stockapi.UserMessage(err))
			return nil
		}
		force := msg.String() == "ctrl+f"
		m.mode = modeNormal
		m.input.Blur()
		m.setStatus("Adding " + sym + "...")
		ctx, api := m.ctx, m.api
		return func() tea.Msg {
			resp, err := api.AddStock(ctx, sym, force)
			return addedMsg{resp: resp, err: err}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *model) openHoldings() tea.Cmd {
	if !m.sel.HasSymbol() {
		m.setError("Select a stock first")
		return nil
	}
	m.mode = modeHoldings
	m.holdField = 0
	m.input.Reset()
	m.avgInput.Reset()
	m.input.Placeholder = "quantity"
	m.avgInput.Placeholder = "average price"
	if row := m.selectedRow(); row != nil && row.Quantity > 0 {
		m.input.SetValue(dashboard.FormatQuantity(row.Quantity))
		m.avgInput.SetValue(fmt.Sprintf("%.2f", row.AvgPrice))
	}
	m.avgInput.Blur()
	m.refreshContent()
	return m.input.Focus()
}

func (m *model) updateHoldings(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.input.Blur()
		m.avgInput.Blur()
		m.refreshContent()
		return nil
	case "tab", "shift+tab":
		m.holdField = 1 - m.holdField
		if m.holdField == 0 {
			m.avgInput.Blur()
			return m.input.Focus()
		}
		m.input.Blur()
		return m.avgInput.Focus()
	case "enter":
		h, err := parseHoldings(m.input.Value(), m.avgInput.Value())
		if err != nil {
			m.setError(stockapi.UserMessage(err))
			return nil
		}
		m.mode = modeNormal
		m.input.Blur()
		m.avgInput.Blur()
		sym, ctx, api := m.sel.Symbol, m.ctx, m.api
		return func() tea.Msg {
			return holdingsSavedMsg{symbol: sym, holdings: h, err: api.UpdateHoldings(ctx, sym, h)}
		}
	}
	var cmd tea.Cmd
	if m.holdField == 0 {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.avgInput, cmd = m.avgInput.Update(msg)
	}
	return cmd
}

func (m *model) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	sym := m.pending
	m.pending = ""
	m.mode = modeNormal
	if msg.String() != "y" && msg.String() != "Y" {
		m.setStatus("Delete cancelled")
		return nil
	}
	m.setStatus("Removing " + sym + "...")
	ctx, api := m.ctx, m.api
	return func() tea.Msg {
		return removedMsg{symbol: sym, err: api.RemoveStock(ctx, sym)}
	}
}

func (m *model) updatePicker(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "enter", "i", "q":
		m.mode = modeNormal
	case "up", "k":
		m.pickCursor = max(0, m.pickCursor-1)
	case "down", "j":
		m.pickCursor = min(len(domain.IndicatorCatalog)-1, m.pickCursor+1)
	case " ", "space", "x":
		return m.toggleIndicator(domain.IndicatorCatalog[m.pickCursor])
	}
	m.refreshContent()
	return nil
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

func (m *model) selectSymbol(sym string) tea.Cmd {
	sel, effects := m.sel.SelectSymbol(sym)
	m.sel = sel
	m.cursorTo(sym)
	m.status = ""
	m.savePref("last_symbol", func(ctx context.Context, ps store.PreferenceStore) error {
		return store.SaveLastSymbol(ctx, ps, sym)
	})
	return m.runEffects(effects)
}

func (m *model) switchTab(tab domain.Tab) tea.Cmd {
	sel, effects := m.sel.SwitchTab(tab, m.orch.Loaded)
	m.sel = sel
	return m.runEffects(effects)
}

func (m *model) shiftPeriod(delta int) tea.Cmd {
	if !m.sel.HasSymbol() {
		m.setError("Select a stock first")
		return nil
	}
	i := slices.Index(domain.Periods, m.sel.Period)
	n := len(domain.Periods)
	next := domain.Periods[((i+delta)%n+n)%n]
	sel, effects := m.sel.ChangePeriod(next)
	m.sel = sel
	m.savePref("period", func(ctx context.Context, ps store.PreferenceStore) error {
		return store.SavePeriod(ctx, ps, next)
	})
	return m.runEffects(effects)
}

// toggleIndicator flips the checkbox first and lets the selection confirm
// or reconcile it.
func (m *model) toggleIndicator(w int) tea.Cmd {
	if i := slices.Index(m.picked, w); i >= 0 {
		m.picked = slices.Delete(m.picked, i, i+1)
	} else {
		m.picked = append(m.picked, w)
		slices.Sort(m.picked)
	}

	before := m.sel.Indicators
	sel, effects := m.sel.ToggleIndicator(w)
	m.sel = sel
	cmd := m.runEffects(effects)
	if sel.Indicators.String() != before.String() {
		m.picked = sel.Indicators.Windows()
		m.status = ""
		m.savePref("indicators", func(ctx context.Context, ps store.PreferenceStore) error {
			return store.SaveIndicators(ctx, ps, sel.Indicators.Windows())
		})
	}
	return cmd
}

func (m *model) toggleAutoRefresh() {
	on := !m.timer.Running()
	if on {
		if err := m.timer.Start(m.refreshEvery); err != nil {
			m.setError("Auto-refresh: " + err.Error())
			return
		}
		m.setStatus(fmt.Sprintf("Auto-refresh every %s", m.refreshEvery))
	} else {
		m.timer.Stop()
		m.setStatus("Auto-refresh off")
	}
	m.savePref("auto_refresh", func(ctx context.Context, ps store.PreferenceStore) error {
		return store.SaveAutoRefresh(ctx, ps, on)
	})
}

// refreshAll reloads the list and the data behind the active tab. The tab's
// previous payload stays visible until the new one lands.
func (m *model) refreshAll() tea.Cmd {
	cmds := []tea.Cmd{m.loadListCmd(false)}
	if m.sel.HasSymbol() {
		tabs := view.TabDependencies(m.sel.Tab)
		cmds = append(cmds, m.loadDetailCmd(m.orch.Begin(m.sel.Symbol, tabs, m.sel.Period)))
	}
	m.setStatus("Refreshing...")
	return batch(cmds...)
}

func (m *model) exportCmd() tea.Cmd {
	p := m.orch.Price()
	if m.archive == nil || p == nil {
		m.setError("Nothing to export")
		return nil
	}
	ctx, archive, sym, history := m.ctx, m.archive, p.Symbol, p.History
	return func() tea.Msg {
		err := archive.WriteHistory(ctx, sym, history)
		return exportedMsg{symbol: sym, rows: len(history), err: err}
	}
}

// runEffects carries out the effects of a selection transition and returns
// the loads to start.
func (m *model) runEffects(effects []view.Effect) tea.Cmd {
	var cmds []tea.Cmd
	for _, e := range effects {
		switch e.Kind {
		case view.EffectInvalidate:
			m.orch.Invalidate(e.Symbol, e.Tabs...)
			switch {
			case len(e.Tabs) == 0 || e.Symbol != m.orch.Focused():
				m.charts.Destroy()
			case m.chartReads(e.Tabs):
				m.drawChart()
			}
		case view.EffectLoad:
			if m.orch.Focused() != e.Symbol {
				m.orch.Focus(e.Symbol)
			}
			cmds = append(cmds, m.loadDetailCmd(m.orch.Begin(e.Symbol, e.Tabs, e.Period)))
		case view.EffectRedraw, view.EffectRender:
			m.drawChart()
		case view.EffectReconcile:
			m.picked = e.Indicators.Windows()
			if e.Err != nil {
				m.setError(e.Err.Error())
			}
		case view.EffectDestroyChart:
			m.charts.Destroy()
			m.orch.Focus("")
		}
	}
	m.refreshContent()
	return batch(cmds...)
}

func (m *model) applyDetail(res loader.Result) {
	accepted := m.orch.Apply(res)
	if len(accepted) == 0 {
		return
	}
	deps := view.TabDependencies(m.sel.Tab)
	if slices.ContainsFunc(accepted, func(t domain.Tab) bool { return slices.Contains(deps, t) }) {
		m.drawChart()
	}
	m.refreshContent()
}

func (m *model) applyList(res loader.ListResult) tea.Cmd {
	if res.Err != nil {
		msg := stockapi.UserMessage(res.Err)
		m.log.Warn("loading stock list", "background", res.Background, "error", res.Err)
		if res.Background {
			m.setError("Refresh failed: " + msg)
		} else {
			m.listErr = msg
		}
		m.refreshContent()
		return nil
	}
	m.listErr = ""
	m.quoteErr = ""
	if res.QuoteErr != nil {
		m.quoteErr = stockapi.UserMessage(res.QuoteErr)
	}
	m.raw = res.Rows
	m.resort()

	if sym := m.restore; sym != "" && !res.Background {
		m.restore = ""
		if slices.ContainsFunc(m.raw, func(r loader.ListRow) bool { return r.Symbol == sym }) {
			return m.selectSymbol(sym)
		}
	}
	m.refreshContent()
	return nil
}

// drawChart draws whatever chart the active tab shows, or releases the
// chart when the tab has none.
func (m *model) drawChart() {
	if !m.sel.HasSymbol() {
		m.charts.Destroy()
		return
	}
	var err error
	switch m.sel.Tab {
	case domain.TabChart:
		p := m.orch.Price()
		if _, failed := m.orch.PrimaryError(); failed || p == nil || len(p.History) == 0 {
			m.charts.Destroy()
			return
		}
		err = m.charts.Draw(p.History, m.sel.Indicators.Windows())
	case domain.TabPrediction:
		pr := m.orch.Prediction()
		if pr == nil {
			m.charts.Destroy()
			return
		}
		var history []domain.HistoricalRecord
		if p := m.orch.Price(); p != nil {
			history = p.History[max(0, len(p.History)-predictionContext):]
		}
		err = m.charts.DrawBand(series.PredictionBand(pr.Dates, pr.Forecast), history)
	case domain.TabDividends:
		d := m.orch.Dividends()
		if d == nil || !d.HasData || len(d.Dividends) == 0 {
			m.charts.Destroy()
			return
		}
		err = m.charts.DrawBars("Dividend", series.DividendBars(d.Dividends))
	default:
		m.charts.Destroy()
	}
	if err != nil {
		m.log.Warn("drawing chart", "symbol", m.sel.Symbol, "tab", m.sel.Tab, "error", err)
		m.setError("Chart unavailable: " + err.Error())
	}
}

// chartReads reports whether the live chart was drawn from any of tabs'
// payloads. The prediction band also plots recent closes from the price.
func (m *model) chartReads(tabs []domain.Tab) bool {
	kind, ok := m.charts.Kind()
	if !ok {
		return false
	}
	var from []domain.Tab
	switch kind {
	case chart.KindCandlestick:
		from = []domain.Tab{domain.TabChart}
	case chart.KindLine:
		from = []domain.Tab{domain.TabPrediction, domain.TabChart}
	case chart.KindBar:
		from = []domain.Tab{domain.TabDividends}
	}
	return slices.ContainsFunc(tabs, func(t domain.Tab) bool { return slices.Contains(from, t) })
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (m *model) resize(w, h int) {
	m.width, m.height = w, h
	bodyH := max(1, h-2)
	detailW := max(20, w-listWidth-1)
	if !m.ready {
		m.viewport = viewport.New(detailW, bodyH)
		m.viewport.MouseWheelEnabled = true
		m.ready = true
	} else {
		m.viewport.Width = detailW
		m.viewport.Height = bodyH
	}
	m.charts.Resize(detailW-2, max(10, bodyH/2))
	m.drawChart()
	m.refreshContent()
}

func (m *model) refreshContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderDetail())
}

func (m *model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *model) setError(s string) {
	m.status, m.statusErr = s, true
}

func (m *model) savePref(name string, save func(context.Context, store.PreferenceStore) error) {
	if m.prefs == nil {
		return
	}
	if err := save(m.ctx, m.prefs); err != nil {
		m.log.Warn("saving preference", "name", name, "error", err)
	}
}

// resort rebuilds the display order, keeping the cursor on the same symbol.
func (m *model) resort() {
	var current string
	if m.cursor < len(m.rows) {
		current = m.rows[m.cursor].Symbol
	}
	m.rows = dashboard.SortRows(m.raw, m.sortMode)
	if !m.cursorTo(current) {
		m.cursor = min(m.cursor, max(0, len(m.rows)-1))
	}
}

func (m *model) cursorTo(sym string) bool {
	for i, r := range m.rows {
		if r.Symbol == sym {
			m.cursor = i
			return true
		}
	}
	return false
}

func (m *model) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = min(max(0, m.cursor+delta), len(m.rows)-1)
}

func (m *model) selectedRow() *loader.ListRow {
	for i := range m.raw {
		if m.raw[i].Symbol == m.sel.Symbol {
			return &m.raw[i]
		}
	}
	return nil
}

func tabIndex(t domain.Tab) int {
	return max(0, slices.Index(domain.Tabs, t))
}
