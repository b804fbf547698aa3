package chart

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/NimbleMarkets/ntcharts/canvas"
	"github.com/NimbleMarkets/ntcharts/linechart"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"stockdash/internal/domain"
	"stockdash/internal/series"
)

const (
	minWidth  = 20
	minHeight = 6
)

// TermBackend draws widgets as braille line charts in the terminal.
type TermBackend struct{}

// NewTermBackend returns the terminal backend.
func NewTermBackend() *TermBackend { return &TermBackend{} }

// Create implements Backend.
func (TermBackend) Create(kind Kind, width, height int) (Widget, error) {
	switch kind {
	case KindCandlestick, KindLine, KindBar:
	default:
		return nil, fmt.Errorf("unknown chart kind %d", kind)
	}
	return &termWidget{
		kind:   kind,
		width:  max(width, minWidth),
		height: max(height, minHeight),
	}, nil
}

type termLine struct {
	name   string
	points []series.Point
	color  string
}

type bounds struct {
	minY, maxY float64
	ok         bool
}

func (b *bounds) add(v float64) {
	if !b.ok {
		b.minY, b.maxY, b.ok = v, v, true
		return
	}
	b.minY = math.Min(b.minY, v)
	b.maxY = math.Max(b.maxY, v)
}

// padded returns the range with a 5% margin so extreme points stay visible.
func (b bounds) padded() (float64, float64) {
	if !b.ok {
		return 0, 1
	}
	margin := (b.maxY - b.minY) * 0.05
	if margin == 0 {
		margin = math.Max(math.Abs(b.maxY)*0.05, 1)
	}
	return b.minY - margin, b.maxY + margin
}

type termWidget struct {
	kind     Kind
	width    int
	height   int
	disposed bool

	candles []series.Candle
	volume  []series.VolumeBar
	lines   []termLine
	bars    []termLine

	// dates is the shared X axis: index i is the i-th distinct date.
	dates []domain.Date
	index map[string]int

	price bounds
	vol   bounds
}

func (w *termWidget) check(ok bool) error {
	if w.disposed {
		return ErrDisposed
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedSeries, w.kind)
	}
	return nil
}

func (w *termWidget) x(d domain.Date) int {
	if w.index == nil {
		w.index = make(map[string]int)
	}
	key := d.String()
	if i, ok := w.index[key]; ok {
		return i
	}
	w.index[key] = len(w.dates)
	w.dates = append(w.dates, d)
	return w.index[key]
}

func (w *termWidget) AddCandles(candles []series.Candle) error {
	if err := w.check(w.kind == KindCandlestick); err != nil {
		return err
	}
	for _, c := range candles {
		w.x(c.Time)
	}
	w.candles = append(w.candles, candles...)
	return nil
}

func (w *termWidget) AddVolume(bars []series.VolumeBar) error {
	if err := w.check(w.kind == KindCandlestick); err != nil {
		return err
	}
	for _, b := range bars {
		w.x(b.Time)
	}
	w.volume = append(w.volume, bars...)
	return nil
}

func (w *termWidget) AddLine(name string, points []series.Point, color int) error {
	if err := w.check(w.kind == KindCandlestick || w.kind == KindLine); err != nil {
		return err
	}
	for _, p := range points {
		w.x(p.Time)
	}
	w.lines = append(w.lines, termLine{name: name, points: points, color: Palette[color%len(Palette)]})
	return nil
}

func (w *termWidget) AddBars(name string, points []series.Point) error {
	if err := w.check(w.kind == KindBar); err != nil {
		return err
	}
	for _, p := range points {
		w.x(p.Time)
	}
	w.bars = append(w.bars, termLine{name: name, points: points, color: ColorBand})
	return nil
}

func (w *termWidget) FitContent() {
	w.price, w.vol = bounds{}, bounds{}
	for _, c := range w.candles {
		w.price.add(c.Low.InexactFloat64())
		w.price.add(c.High.InexactFloat64())
	}
	for _, l := range w.lines {
		for _, p := range l.points {
			w.price.add(p.Value.InexactFloat64())
		}
	}
	for _, b := range w.bars {
		w.price.add(0)
		for _, p := range b.points {
			w.price.add(p.Value.InexactFloat64())
		}
	}
	for _, v := range w.volume {
		w.vol.add(0)
		w.vol.add(float64(v.Value))
	}
}

func (w *termWidget) Dispose() error {
	if w.disposed {
		return ErrDisposed
	}
	w.disposed = true
	w.candles, w.volume, w.lines, w.bars = nil, nil, nil, nil
	w.dates, w.index = nil, nil
	return nil
}

func (w *termWidget) View() string {
	if w.disposed || len(w.dates) == 0 {
		return ""
	}
	if !w.price.ok && !w.vol.ok {
		w.FitContent()
	}

	priceHeight := w.height
	if len(w.volume) > 0 {
		priceHeight = w.height * 3 / 4
	}

	var b strings.Builder
	b.WriteString(w.pricePane(priceHeight))
	if len(w.volume) > 0 {
		b.WriteString("\n")
		b.WriteString(w.volumePane(max(w.height-priceHeight, 3)))
	}
	if legend := w.legend(); legend != "" {
		b.WriteString("\n")
		b.WriteString(legend)
	}
	return b.String()
}

func (w *termWidget) xLabel(_ int, v float64) string {
	i := int(math.Round(v))
	if i < 0 || i >= len(w.dates) {
		return ""
	}
	return w.dates[i].Format("01-02")
}

func priceLabel(_ int, v float64) string {
	switch {
	case math.Abs(v) >= 100:
		return fmt.Sprintf("%.1f", v)
	case math.Abs(v) >= 1:
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.4f", v)
}

func volumeLabel(_ int, v float64) string {
	return humanize.SIWithDigits(v, 1, "")
}

func (w *termWidget) newPane(height int, yb bounds, yFmt func(int, float64) string, style lipgloss.Style) linechart.Model {
	minY, maxY := yb.padded()
	return linechart.New(w.width, height,
		0, math.Max(float64(len(w.dates)-1), 1),
		minY, maxY,
		linechart.WithXYSteps(8, 4),
		linechart.WithXLabelFormatter(w.xLabel),
		linechart.WithYLabelFormatter(yFmt),
		linechart.WithStyles(lipgloss.Style{}, lipgloss.Style{}, style),
	)
}

func (w *termWidget) pricePane(height int) string {
	neutral := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorNeutral))
	lc := w.newPane(height, w.price, priceLabel, neutral)

	up := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorUp))
	down := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDown))
	for _, c := range w.candles {
		x := float64(w.index[c.Time.String()])
		style := up
		if c.Close.LessThan(c.Open) {
			style = down
		}
		lc.DrawBrailleLineWithStyle(
			canvas.Float64Point{X: x, Y: c.Low.InexactFloat64()},
			canvas.Float64Point{X: x, Y: c.High.InexactFloat64()},
			style,
		)
	}

	for _, l := range w.lines {
		w.drawLine(&lc, l.points, lipgloss.NewStyle().Foreground(lipgloss.Color(l.color)))
	}

	bar := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorBand))
	for _, b := range w.bars {
		for _, p := range b.points {
			x := float64(w.index[p.Time.String()])
			lc.DrawBrailleLineWithStyle(
				canvas.Float64Point{X: x, Y: 0},
				canvas.Float64Point{X: x, Y: p.Value.InexactFloat64()},
				bar,
			)
		}
	}

	lc.DrawXYAxisAndLabel()
	return lc.View()
}

func (w *termWidget) volumePane(height int) string {
	neutral := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorNeutral))
	lc := w.newPane(height, w.vol, volumeLabel, neutral)

	up := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorUp))
	down := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDown))
	for _, v := range w.volume {
		x := float64(w.index[v.Time.String()])
		style := up
		if v.Direction == series.Down {
			style = down
		}
		lc.DrawBrailleLineWithStyle(
			canvas.Float64Point{X: x, Y: 0},
			canvas.Float64Point{X: x, Y: float64(v.Value)},
			style,
		)
	}
	lc.DrawXYAxisAndLabel()
	return lc.View()
}

func (w *termWidget) drawLine(lc *linechart.Model, points []series.Point, style lipgloss.Style) {
	for i := 0; i+1 < len(points); i++ {
		p1 := canvas.Float64Point{X: float64(w.index[points[i].Time.String()]), Y: points[i].Value.InexactFloat64()}
		p2 := canvas.Float64Point{X: float64(w.index[points[i+1].Time.String()]), Y: points[i+1].Value.InexactFloat64()}
		lc.DrawBrailleLineWithStyle(p1, p2, style)
	}
}

func (w *termWidget) legend() string {
	var parts []string
	for _, l := range slices.Concat(w.lines, w.bars) {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color(l.color)).Render("━ "+l.name))
	}
	return strings.Join(parts, "  ")
}
