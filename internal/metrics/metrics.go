// Package metrics exposes Prometheus counters for detail-view loads, stale
// result discards, chart redraws and list refreshes.
//
// All recording methods are safe to call on a nil *Metrics, so components
// can be built without metrics in tests.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors, registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	LoadsStarted     *prometheus.CounterVec // labels: tab
	LoadsFailed      *prometheus.CounterVec // labels: tab
	StaleDiscarded   *prometheus.CounterVec // labels: tab
	LoadDuration     *prometheus.HistogramVec
	ChartDraws       *prometheus.CounterVec // labels: kind
	ChartDisposeErrs prometheus.Counter
	ListRefreshes    *prometheus.CounterVec // labels: mode=manual|background
	APIRequests      *prometheus.CounterVec // labels: code
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		LoadsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_loads_started_total",
			Help: "Tab loads issued",
		}, []string{"tab"}),
		LoadsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_loads_failed_total",
			Help: "Tab loads that ended in an error state",
		}, []string{"tab"}),
		StaleDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_stale_results_total",
			Help: "Load results dropped because a newer load superseded them",
		}, []string{"tab"}),
		LoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockdash_load_duration_seconds",
			Help:    "Fetch latency per tab",
			Buckets: prometheus.DefBuckets,
		}, []string{"tab"}),
		ChartDraws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_chart_draws_total",
			Help: "Charts built",
		}, []string{"kind"}),
		ChartDisposeErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockdash_chart_dispose_errors_total",
			Help: "Chart disposals that failed and were swallowed",
		}),
		ListRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_list_refreshes_total",
			Help: "Stock list reloads",
		}, []string{"mode"}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_api_requests_total",
			Help: "Backend requests by HTTP status code (0 = transport failure)",
		}, []string{"code"}),
	}

	m.Registry.MustRegister(
		m.LoadsStarted,
		m.LoadsFailed,
		m.StaleDiscarded,
		m.LoadDuration,
		m.ChartDraws,
		m.ChartDisposeErrs,
		m.ListRefreshes,
		m.APIRequests,
	)
	return m
}

func (m *Metrics) LoadStarted(tab string) {
	if m != nil {
		m.LoadsStarted.WithLabelValues(tab).Inc()
	}
}

func (m *Metrics) LoadFailed(tab string) {
	if m != nil {
		m.LoadsFailed.WithLabelValues(tab).Inc()
	}
}

func (m *Metrics) ObserveLoad(tab string, d time.Duration) {
	if m != nil {
		m.LoadDuration.WithLabelValues(tab).Observe(d.Seconds())
	}
}

func (m *Metrics) StaleResult(tab string) {
	if m != nil {
		m.StaleDiscarded.WithLabelValues(tab).Inc()
	}
}

func (m *Metrics) ChartDrawn(kind string) {
	if m != nil {
		m.ChartDraws.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ChartDisposeFailed() {
	if m != nil {
		m.ChartDisposeErrs.Inc()
	}
}

func (m *Metrics) ListRefreshed(background bool) {
	if m == nil {
		return
	}
	mode := "manual"
	if background {
		mode = "background"
	}
	m.ListRefreshes.WithLabelValues(mode).Inc()
}

func (m *Metrics) APIRequest(code string) {
	if m != nil {
		m.APIRequests.WithLabelValues(code).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics on its own listener.
type Server struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// NewServer creates a metrics server for m.
func NewServer(addr string, m *Metrics, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		addr: addr,
		log:  log,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
