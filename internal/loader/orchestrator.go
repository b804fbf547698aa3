// Package loader coordinates the asynchronous loads behind the detail view.
//
// The Orchestrator's state is owned by the UI goroutine: Focus, Begin,
// Apply, Invalidate and the queries must only be called from there. Run
// touches no state and is the part executed off-thread (inside a tea.Cmd).
package loader

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"stockdash/internal/domain"
	"stockdash/internal/metrics"
	"stockdash/pkg/stockapi"
)

// Fetcher retrieves per-symbol payloads. *stockapi.Client implements it.
type Fetcher interface {
	Price(ctx context.Context, symbol string, period domain.Period) (*domain.PricePayload, error)
	Analysis(ctx context.Context, symbol string, period domain.Period) (*domain.AnalysisPayload, error)
	Financials(ctx context.Context, symbol string) (*domain.FinancialsPayload, error)
	Dividends(ctx context.Context, symbol string) (*domain.DividendsPayload, error)
	Prediction(ctx context.Context, symbol string, days int) (*domain.PredictionPayload, error)
}

var _ Fetcher = (*stockapi.Client)(nil)

// Status is the load status of one (symbol, tab) slot.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// LoadState is the state of one (symbol, tab) slot. Payload keeps the last
// good value while a reload is in flight.
type LoadState struct {
	Status     Status
	Payload    any
	Err        error
	Message    string
	Generation uint64
}

// Task is one fetch to run. Generation identifies the load that issued it.
type Task struct {
	Symbol     string
	Tab        domain.Tab
	Period     domain.Period
	Generation uint64
}

// Outcome is the result of one Task.
type Outcome struct {
	Task
	Payload any
	Err     error
}

// Result carries the outcomes of one batch of tasks back to the UI goroutine.
type Result struct {
	Outcomes []Outcome
}

type slot struct {
	symbol string
	tab    domain.Tab
}

// Orchestrator tracks the load state of the focused symbol's tabs.
type Orchestrator struct {
	fetcher        Fetcher
	log            *slog.Logger
	metrics        *metrics.Metrics
	predictionDays int

	generation uint64
	focus      string
	states     map[slot]*LoadState
}

// NewOrchestrator creates an orchestrator. log and m may be nil.
func NewOrchestrator(f Fetcher, predictionDays int, log *slog.Logger, m *metrics.Metrics) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		fetcher:        f,
		log:            log,
		metrics:        m,
		predictionDays: predictionDays,
		states:         make(map[slot]*LoadState),
	}
}

// Focus makes symbol the current symbol. State of every other symbol is
// dropped, so results still in flight for them are discarded on arrival.
func (o *Orchestrator) Focus(symbol string) {
	o.focus = symbol
	for k := range o.states {
		if k.symbol != symbol {
			delete(o.states, k)
		}
	}
}

// Focused returns the current symbol.
func (o *Orchestrator) Focused() string { return o.focus }

// Begin marks tabs of symbol as loading under fresh generations and returns
// the tasks to run. symbol must be the focused symbol; others are ignored.
func (o *Orchestrator) Begin(symbol string, tabs []domain.Tab, period domain.Period) []Task {
	if symbol == "" || symbol != o.focus {
		return nil
	}
	tasks := make([]Task, 0, len(tabs))
	for _, tab := range tabs {
		o.generation++
		k := slot{symbol, tab}
		st := o.states[k]
		if st == nil {
			st = &LoadState{}
			o.states[k] = st
		}
		st.Status = StatusLoading
		st.Err = nil
		st.Message = ""
		st.Generation = o.generation
		tasks = append(tasks, Task{Symbol: symbol, Tab: tab, Period: period, Generation: o.generation})
		o.metrics.LoadStarted(string(tab))
	}
	return tasks
}

// Run fetches every task concurrently and waits for all of them. Failures
// are carried per outcome; no fetch cancels another.
func (o *Orchestrator) Run(ctx context.Context, tasks []Task) Result {
	outcomes := make([]Outcome, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			start := time.Now()
			payload, err := o.fetch(ctx, t)
			o.metrics.ObserveLoad(string(t.Tab), time.Since(start))
			outcomes[i] = Outcome{Task: t, Payload: payload, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return Result{Outcomes: outcomes}
}

func (o *Orchestrator) fetch(ctx context.Context, t Task) (any, error) {
	switch t.Tab {
	case domain.TabChart:
		return o.fetcher.Price(ctx, t.Symbol, t.Period)
	case domain.TabAnalysis:
		return o.fetcher.Analysis(ctx, t.Symbol, t.Period)
	case domain.TabFinancials:
		return o.fetcher.Financials(ctx, t.Symbol)
	case domain.TabDividends:
		return o.fetcher.Dividends(ctx, t.Symbol)
	case domain.TabPrediction:
		return o.fetcher.Prediction(ctx, t.Symbol, o.predictionDays)
	}
	return nil, &stockapi.ValidationError{Field: "tab", Reason: "no payload for tab " + string(t.Tab)}
}

// Apply stores the outcomes whose generation is still live for their
// (symbol, tab) slot and returns the tabs that changed. Stale outcomes are
// dropped.
func (o *Orchestrator) Apply(res Result) []domain.Tab {
	var accepted []domain.Tab
	for _, out := range res.Outcomes {
		st, ok := o.states[slot{out.Symbol, out.Tab}]
		if !ok || st.Generation != out.Generation {
			o.log.Debug("discarding stale result", "symbol", out.Symbol, "tab", out.Tab, "generation", out.Generation)
			o.metrics.StaleResult(string(out.Tab))
			continue
		}
		if out.Err != nil {
			st.Status = StatusError
			st.Err = out.Err
			st.Message = stockapi.UserMessage(out.Err)
			o.metrics.LoadFailed(string(out.Tab))
			o.log.Warn("load failed", "symbol", out.Symbol, "tab", out.Tab, "error", out.Err)
		} else {
			st.Status = StatusReady
			st.Payload = out.Payload
			st.Err = nil
			st.Message = ""
		}
		accepted = append(accepted, out.Tab)
	}
	return accepted
}

// Invalidate drops the cached state of symbol for tabs, or for every tab
// when none are given. Loads in flight for those slots become stale.
func (o *Orchestrator) Invalidate(symbol string, tabs ...domain.Tab) {
	if len(tabs) == 0 {
		tabs = domain.Tabs
	}
	for _, tab := range tabs {
		delete(o.states, slot{symbol, tab})
	}
}

// State returns the focused symbol's state for tab.
func (o *Orchestrator) State(tab domain.Tab) LoadState {
	if st, ok := o.states[slot{o.focus, tab}]; ok {
		return *st
	}
	return LoadState{}
}

// Loaded reports whether tab's payload for the focused symbol is ready or
// in flight. An errored slot counts as not loaded so that revisiting the
// tab retries.
func (o *Orchestrator) Loaded(tab domain.Tab) bool {
	st := o.State(tab)
	return st.Status == StatusLoading || st.Status == StatusReady
}

// Price returns the focused symbol's price payload if ready.
func (o *Orchestrator) Price() *domain.PricePayload {
	p, _ := o.State(domain.TabChart).Payload.(*domain.PricePayload)
	return p
}

// Analysis returns the focused symbol's analysis payload if ready.
func (o *Orchestrator) Analysis() *domain.AnalysisPayload {
	p, _ := o.State(domain.TabAnalysis).Payload.(*domain.AnalysisPayload)
	return p
}

// Financials returns the focused symbol's financials payload if ready.
func (o *Orchestrator) Financials() *domain.FinancialsPayload {
	p, _ := o.State(domain.TabFinancials).Payload.(*domain.FinancialsPayload)
	return p
}

// Dividends returns the focused symbol's dividends payload if ready.
func (o *Orchestrator) Dividends() *domain.DividendsPayload {
	p, _ := o.State(domain.TabDividends).Payload.(*domain.DividendsPayload)
	return p
}

// Prediction returns the focused symbol's prediction payload if ready.
func (o *Orchestrator) Prediction() *domain.PredictionPayload {
	p, _ := o.State(domain.TabPrediction).Payload.(*domain.PredictionPayload)
	return p
}

// PrimaryError returns the price load error of the focused symbol. A failed
// price load fails the whole detail view; a failed analysis load only fails
// the analysis panel.
func (o *Orchestrator) PrimaryError() (string, bool) {
	st := o.State(domain.TabChart)
	if st.Status != StatusError {
		return "", false
	}
	return st.Message, true
}
