package chart

import (
	"fmt"
	"log/slog"

	"stockdash/internal/domain"
	"stockdash/internal/metrics"
	"stockdash/internal/series"
)

const (
	defaultWidth  = 80
	defaultHeight = 20
)

// Manager holds the single chart slot. It is not safe for concurrent use;
// it lives on the UI goroutine.
type Manager struct {
	backend Backend
	log     *slog.Logger
	metrics *metrics.Metrics

	widget Widget
	kind   Kind
	width  int
	height int
}

// NewManager creates an empty manager. m may be nil.
func NewManager(backend Backend, log *slog.Logger, m *metrics.Metrics) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		backend: backend,
		log:     log,
		metrics: m,
		width:   defaultWidth,
		height:  defaultHeight,
	}
}

// Resize sets the dimensions used by the next Create.
func (m *Manager) Resize(width, height int) {
	if width > 0 {
		m.width = width
	}
	if height > 0 {
		m.height = height
	}
}

// Built reports whether a widget is live.
func (m *Manager) Built() bool { return m.widget != nil }

// Kind returns the kind of the live widget.
func (m *Manager) Kind() (Kind, bool) { return m.kind, m.widget != nil }

// Create destroys any live widget and builds a new one of kind.
func (m *Manager) Create(kind Kind) error {
	m.Destroy()
	w, err := m.backend.Create(kind, m.width, m.height)
	if err != nil {
		return fmt.Errorf("creating %s chart: %w", kind, err)
	}
	m.widget = w
	m.kind = kind
	return nil
}

// Destroy releases the live widget. It is a no-op when the slot is empty.
// Disposal failures are logged and swallowed; the slot is empty afterwards
// either way.
func (m *Manager) Destroy() {
	if m.widget == nil {
		return
	}
	w := m.widget
	m.widget = nil

	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("chart dispose panicked", "kind", m.kind, "panic", r)
			m.metrics.ChartDisposeFailed()
		}
	}()
	if err := w.Dispose(); err != nil {
		m.log.Warn("chart dispose failed", "kind", m.kind, "error", err)
		m.metrics.ChartDisposeFailed()
	}
}

// Draw rebuilds the price chart: candles, volume on the secondary pane and
// one moving average per window in ascending order.
func (m *Manager) Draw(history []domain.HistoricalRecord, windows []int) error {
	if err := m.Create(KindCandlestick); err != nil {
		return err
	}
	if err := m.widget.AddCandles(series.Candles(history)); err != nil {
		return m.abort("candles", err)
	}
	if err := m.widget.AddVolume(series.Volume(history)); err != nil {
		return m.abort("volume", err)
	}
	for i, ma := range series.MovingAverages(history, windows) {
		name := fmt.Sprintf("MA%d", ma.Window)
		if err := m.widget.AddLine(name, ma.Points, i%len(Palette)); err != nil {
			return m.abort(name, err)
		}
	}
	m.widget.FitContent()
	m.metrics.ChartDrawn(KindCandlestick.String())
	return nil
}

// DrawBand draws the recent closes followed by the forecast line and its
// upper and lower bounds.
func (m *Manager) DrawBand(band []series.BandPoint, history []domain.HistoricalRecord) error {
	if err := m.Create(KindLine); err != nil {
		return err
	}
	if len(history) > 0 {
		if err := m.widget.AddLine("Close", series.ClosePoints(history), 0); err != nil {
			return m.abort("close", err)
		}
	}
	yhat, upper, lower := series.BandLines(band)
	for i, l := range []struct {
		name   string
		points []series.Point
	}{{"Forecast", yhat}, {"Upper", upper}, {"Lower", lower}} {
		if err := m.widget.AddLine(l.name, l.points, 1+min(i, 1)); err != nil {
			return m.abort(l.name, err)
		}
	}
	m.widget.FitContent()
	m.metrics.ChartDrawn(KindLine.String())
	return nil
}

// DrawBars draws a single bar series.
func (m *Manager) DrawBars(name string, points []series.Point) error {
	if err := m.Create(KindBar); err != nil {
		return err
	}
	if err := m.widget.AddBars(name, points); err != nil {
		return m.abort(name, err)
	}
	m.widget.FitContent()
	m.metrics.ChartDrawn(KindBar.String())
	return nil
}

// View renders the live widget, or "" when the slot is empty.
func (m *Manager) View() string {
	if m.widget == nil {
		return ""
	}
	return m.widget.View()
}

func (m *Manager) abort(what string, err error) error {
	m.Destroy()
	return fmt.Errorf("adding %s series: %w", what, err)
}
