package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stockdash/internal/chart"
	"stockdash/internal/dashboard"
	"stockdash/internal/domain"
	"stockdash/internal/loader"
	"stockdash/internal/view"
)

// Styles.
var (
	symbolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	symbolHlStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")) // orange for the selected stock
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mildGainStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	cautionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mildLossStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	priceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	sectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Padding(0, 1)
	tabActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6")).Padding(0, 1)
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	highlightBG    = lipgloss.Color("236") // dark grey background
)

// listWidth is the width of the stock list pane.
const listWidth = 34

// hlStyle returns a copy of s with the highlight background applied when hl is true.
func hlStyle(s lipgloss.Style, hl bool) lipgloss.Style {
	if hl {
		return s.Background(highlightBG)
	}
	return s
}

func changeStyle(v float64) lipgloss.Style {
	switch {
	case v > 0:
		return gainStyle
	case v < 0:
		return lossStyle
	}
	return dimStyle
}

func toneStyle(t dashboard.Tone) lipgloss.Style {
	switch t {
	case dashboard.TonePositive:
		return gainStyle
	case dashboard.ToneMildPositive:
		return mildGainStyle
	case dashboard.ToneCaution:
		return cautionStyle
	case dashboard.ToneMildNegative:
		return mildLossStyle
	case dashboard.ToneNegative:
		return lossStyle
	}
	return priceStyle
}

func paletteStyle(i int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(chart.Palette[i%len(chart.Palette)]))
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerText := " stockdash"
	if m.sel.HasSymbol() {
		headerText += "  " + m.sel.Symbol
	}
	headerText += fmt.Sprintf("    period: %s    sort: %s    auto-refresh: %s",
		m.sel.Period.Label(), m.sortMode.Label(), m.autoRefreshLabel())
	if m.detailLoading() {
		headerText += "    loading..."
	}
	headerBar := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("4")).
		Render(padOrTrunc(headerText+" ", m.width))

	bodyH := m.viewport.Height
	listPane := lipgloss.NewStyle().
		Width(listWidth).
		Height(bodyH).
		MaxHeight(bodyH).
		Render(m.renderList(bodyH))
	sep := separatorStyle.Render(strings.TrimSuffix(strings.Repeat("│\n", bodyH), "\n"))
	body := lipgloss.JoinHorizontal(lipgloss.Top, listPane, sep, m.viewport.View())

	footerBar := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("8")).
		Width(m.width).
		MaxWidth(m.width).
		Render(m.footerText())

	return headerBar + "\n" + body + "\n" + footerBar
}

func (m model) autoRefreshLabel() string {
	if !m.timer.Running() {
		return "off"
	}
	return m.timer.Interval().String()
}

// detailLoading reports whether a load behind the active tab is in flight.
func (m model) detailLoading() bool {
	if !m.sel.HasSymbol() {
		return false
	}
	return slices.ContainsFunc(view.TabDependencies(m.sel.Tab), func(t domain.Tab) bool {
		return m.orch.State(t).Status == loader.StatusLoading
	})
}

func (m model) footerText() string {
	switch m.mode {
	case modeAdd:
		return " Add: " + m.input.View() + "   enter add  ctrl+f force  esc cancel"
	case modeHoldings:
		return fmt.Sprintf(" %s  qty: %s  avg: %s   tab switch  enter save  esc cancel",
			m.sel.Symbol, m.input.View(), m.avgInput.View())
	case modeConfirmDelete:
		return fmt.Sprintf(" Delete %s and its holdings? (y/n)", m.pending)
	case modeIndicators:
		return fmt.Sprintf(" up/dn move  space toggle  esc done   at most %d moving averages", domain.MaxIndicators)
	}
	if m.status != "" {
		if m.statusErr {
			return " " + lossStyle.Render(m.status)
		}
		return " " + m.status
	}
	pct := m.viewport.ScrollPercent() * 100
	return fmt.Sprintf(" q quit  enter select  1-6 tabs  [ ] period  i MAs  a add  d delete  h holdings  r refresh  t auto  ? help   %.0f%%", pct)
}

// ---------------------------------------------------------------------------
// List pane
// ---------------------------------------------------------------------------

func (m model) renderList(height int) string {
	var b strings.Builder
	b.WriteString(colHeaderStyle.Render(padOrTrunc(fmt.Sprintf(" %-9s %10s %9s", "SYMBOL", "PRICE", "CHG%"), listWidth)))
	b.WriteString("\n")

	switch {
	case m.listErr != "":
		b.WriteString(lossStyle.Width(listWidth).Render(" " + m.listErr))
		return b.String()
	case len(m.rows) == 0:
		b.WriteString(dimStyle.Render(" No stocks. Press a to add one."))
		return b.String()
	}

	// Keep the cursor visible.
	visible := max(1, height-2)
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := min(len(m.rows), start+visible)

	for i := start; i < end; i++ {
		r := m.rows[i]
		hl := i == m.cursor
		sym := symbolStyle
		if r.Symbol == m.sel.Symbol {
			sym = symbolHlStyle
		}
		marker := " "
		if r.Symbol == m.sel.Symbol {
			marker = ">"
		}

		price, change := dashboard.NA, ""
		if r.Quoted {
			price = dashboard.FormatPrice(r.Price, dashboard.USD)
			change = dashboard.FormatSignedPercent(r.ChangePercent)
		}
		if r.Cached {
			price += "*"
		}
		sp := hlStyle(lipgloss.NewStyle(), hl)
		b.WriteString(sp.Render(marker))
		b.WriteString(hlStyle(sym, hl).Render(fmt.Sprintf("%-9s", truncate(r.Symbol, 9))))
		b.WriteString(sp.Render(" "))
		b.WriteString(hlStyle(priceStyle, hl).Render(fmt.Sprintf("%10s", truncate(price, 10))))
		b.WriteString(sp.Render(" "))
		b.WriteString(hlStyle(changeStyle(r.ChangePercent), hl).Render(fmt.Sprintf("%9s", change)))
		b.WriteString(sp.Render(strings.Repeat(" ", max(0, listWidth-31))))
		b.WriteString("\n")
	}
	if m.quoteErr != "" {
		b.WriteString(cautionStyle.Width(listWidth).Render(" Quotes unavailable: " + m.quoteErr))
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Detail pane
// ---------------------------------------------------------------------------

func (m *model) renderDetail() string {
	var b strings.Builder
	b.WriteString(m.renderTabBar())
	b.WriteString("\n\n")

	if m.mode == modeHelp {
		b.WriteString(helpText)
		return b.String()
	}
	if !m.sel.HasSymbol() {
		b.WriteString(dimStyle.Render("Select a stock with up/down and enter, or press a to add one."))
		return b.String()
	}
	if m.mode == modeIndicators {
		b.WriteString(m.renderPicker())
		b.WriteString("\n")
	}

	deps := view.TabDependencies(m.sel.Tab)
	if deps[0] == domain.TabChart {
		if msg, failed := m.orch.PrimaryError(); failed {
			b.WriteString(lossStyle.Render(fmt.Sprintf("Could not load %s: %s", m.sel.Symbol, msg)))
			b.WriteString("\n")
			b.WriteString(dimStyle.Render("Press r to retry."))
			return b.String()
		}
	}
	st := m.orch.State(deps[0])
	if st.Status == loader.StatusError {
		b.WriteString(lossStyle.Render(fmt.Sprintf("Could not load %s: %s", strings.ToLower(m.sel.Tab.Label()), st.Message)))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Switch back to this tab or press r to retry."))
		return b.String()
	}
	if st.Payload == nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Loading %s...", m.sel.Symbol)))
		return b.String()
	}

	if m.charts.Built() {
		b.WriteString(m.charts.View())
		b.WriteString("\n")
	}
	if m.sel.Tab == domain.TabChart {
		b.WriteString(m.renderIndicators())
		b.WriteString("\n\n")
	}
	if m.sel.Tab == domain.TabAnalysis {
		if ast := m.orch.State(domain.TabAnalysis); ast.Status == loader.StatusError {
			b.WriteString(lossStyle.Render("Analysis unavailable: " + ast.Message))
			return b.String()
		}
	}

	b.WriteString(renderViewModel(dashboard.Build(m.sel.Tab, m.dashboardContext())))
	return b.String()
}

func (m *model) dashboardContext() dashboard.Context {
	return dashboard.Context{
		Symbol:     m.sel.Symbol,
		Row:        m.selectedRow(),
		Price:      m.orch.Price(),
		Analysis:   m.orch.Analysis(),
		Financials: m.orch.Financials(),
		Dividends:  m.orch.Dividends(),
		Prediction: m.orch.Prediction(),
	}
}

func (m *model) renderTabBar() string {
	parts := make([]string, len(domain.Tabs))
	for i, t := range domain.Tabs {
		label := fmt.Sprintf("%d %s", i+1, t.Label())
		if t == m.sel.Tab {
			parts[i] = tabActiveStyle.Render(label)
		} else {
			parts[i] = tabStyle.Render(label)
		}
	}
	return strings.Join(parts, "")
}

func (m *model) renderIndicators() string {
	ws := m.sel.Indicators.Windows()
	if len(ws) == 0 {
		return dimStyle.Render("No moving averages (i to add)")
	}
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = paletteStyle(i).Render(fmt.Sprintf("MA%d", w))
	}
	return strings.Join(parts, "  ") + dimStyle.Render("  (i to change)")
}

// renderPicker shows the catalog with the optimistic checkbox state.
func (m *model) renderPicker() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Moving averages"))
	b.WriteString("\n")
	for i, w := range domain.IndicatorCatalog {
		cursor := "  "
		if i == m.pickCursor {
			cursor = "> "
		}
		box := "[ ]"
		if slices.Contains(m.picked, w) {
			box = "[x]"
		}
		label := fmt.Sprintf("%s%s MA %d", cursor, box, w)
		if idx := m.sel.Indicators.Index(w); idx >= 0 {
			b.WriteString(paletteStyle(idx).Render(label))
		} else {
			b.WriteString(label)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderViewModel(vm dashboard.ViewModel) string {
	var b strings.Builder
	if vm.Title != "" {
		b.WriteString(titleStyle.Render(vm.Title))
		b.WriteString("\n")
	}
	if vm.Notice != "" {
		b.WriteString(cautionStyle.Render(vm.Notice))
		b.WriteString("\n")
	}
	if vm.Empty != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(vm.Empty))
		b.WriteString("\n")
		return b.String()
	}
	for _, s := range vm.Sections {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render(s.Title))
		b.WriteString("\n")
		for _, r := range s.Rows {
			b.WriteString(colHeaderStyle.Render(fmt.Sprintf("  %-20s", r.Label)))
			b.WriteString(toneStyle(r.Tone).Render(r.Value))
			b.WriteString("\n")
		}
	}
	return b.String()
}

const helpText = `Keys

  up/down, j/k   move in the stock list
  enter          show the highlighted stock
  1-6, tab       switch tab (chart, analysis, financials, dividends, portfolio, prediction)
  [ ]            previous / next period
  i              pick moving averages (space toggles, at most two)
  a              add a stock (enter adds, ctrl+f adds without verification)
  d              delete the highlighted stock
  h              edit holdings of the selected stock
  r              refresh the list and the current tab
  t              toggle auto-refresh
  s              cycle list sort order
  e              archive the loaded price history
  pgup/pgdn      scroll the detail pane
  q              quit

Press any key to close.`

func padOrTrunc(s string, width int) string {
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
