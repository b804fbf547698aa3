// Package chart owns the single chart drawn in the detail view. A Manager
// holds at most one live Widget, created through a Backend, and tears it
// down before every redraw.
package chart

import (
	"errors"

	"stockdash/internal/series"
)

// Kind selects the widget variant a Backend creates.
type Kind int

const (
	KindCandlestick Kind = iota
	KindLine
	KindBar
)

func (k Kind) String() string {
	switch k {
	case KindCandlestick:
		return "candlestick"
	case KindLine:
		return "line"
	case KindBar:
		return "bar"
	}
	return "unknown"
}

// ErrUnsupportedSeries is returned when a series is added to a widget kind
// that cannot draw it.
var ErrUnsupportedSeries = errors.New("series not supported by this chart kind")

// ErrDisposed is returned by a widget that has already been disposed.
var ErrDisposed = errors.New("chart already disposed")

// Widget is a drawable chart. Candlestick widgets accept candles, volume on
// a secondary pane and overlay lines; line widgets accept lines; bar widgets
// accept bars.
type Widget interface {
	AddCandles(candles []series.Candle) error
	AddVolume(bars []series.VolumeBar) error
	AddLine(name string, points []series.Point, color int) error
	AddBars(name string, points []series.Point) error
	// FitContent scales both axes to the data added so far.
	FitContent()
	View() string
	Dispose() error
}

// Backend creates widgets.
type Backend interface {
	Create(kind Kind, width, height int) (Widget, error)
}

// Palette is the overlay colour sequence. Moving average i is drawn with
// Palette[i%len(Palette)].
var Palette = []string{"#2962FF", "#FF6D00", "#AB47BC", "#26A69A"}

// Series colours that are not part of the overlay palette.
const (
	ColorUp      = "#26A69A"
	ColorDown    = "#EF5350"
	ColorNeutral = "#9E9E9E"
	ColorBand    = "#7E57C2"
)
