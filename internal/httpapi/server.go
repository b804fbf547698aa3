package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"stockdash/internal/domain"
	"stockdash/pkg/stockapi"
)

// MaxPredictionDays bounds the periods query of the prediction endpoint.
const MaxPredictionDays = 365

// DemoServer serves the dashboard API from an in-memory market.
type DemoServer struct {
	mu     sync.Mutex
	stocks []domain.TrackedStock // in add order
	faults map[string]*Fault

	now func() time.Time
	log *slog.Logger
}

// Option configures a DemoServer.
type Option func(*DemoServer)

// WithClock fixes the server's notion of today.
func WithClock(now func() time.Time) Option {
	return func(s *DemoServer) { s.now = now }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *DemoServer) { s.log = l }
}

// WithStocks starts the server with symbols already tracked.
func WithStocks(symbols ...string) Option {
	return func(s *DemoServer) {
		for _, sym := range symbols {
			l, _ := lookupListing(sym)
			s.stocks = append(s.stocks, domain.TrackedStock{
				Symbol:  sym,
				Name:    l.Name,
				AddedAt: s.now().UTC().Format(time.RFC3339),
			})
		}
	}
}

// NewDemoServer creates a DemoServer. Options are applied in order, so
// WithClock must precede WithStocks to affect AddedAt.
func NewDemoServer(opts ...Option) *DemoServer {
	s := &DemoServer{
		faults: make(map[string]*Fault),
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// InjectFault makes requests to resource fail until Count is exhausted or
// ClearFaults is called.
func (s *DemoServer) InjectFault(resource string, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[resource] = &f
}

// ClearFaults removes every injected fault.
func (s *DemoServer) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.faults)
}

func (s *DemoServer) takeFault(resource string) (Fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.faults[resource]
	if !ok {
		return Fault{}, false
	}
	if f.Count > 0 {
		f.Count--
		if f.Count == 0 {
			delete(s.faults, resource)
		}
	}
	return *f, true
}

// Tracked returns a copy of the tracked stocks.
func (s *DemoServer) Tracked() []domain.TrackedStock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.stocks)
}

func (s *DemoServer) indexOf(symbol string) int {
	return slices.IndexFunc(s.stocks, func(t domain.TrackedStock) bool { return t.Symbol == symbol })
}

// RegisterRoutes registers all API routes on the given mux.
func (s *DemoServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stocks", s.handleListStocks)
	mux.HandleFunc("POST /api/stocks", s.handleAddStock)
	mux.HandleFunc("PUT /api/stocks/{symbol}", s.handleUpdateHoldings)
	mux.HandleFunc("DELETE /api/stocks/{symbol}", s.handleRemoveStock)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/stocks/{symbol}/price", s.handlePrice)
	mux.HandleFunc("GET /api/stocks/{symbol}/analysis", s.handleAnalysis)
	mux.HandleFunc("GET /api/stocks/{symbol}/financials", s.handleFinancials)
	mux.HandleFunc("GET /api/stocks/{symbol}/dividends", s.handleDividends)
	mux.HandleFunc("GET /api/stocks/{symbol}/prediction", s.handlePrediction)
}

// Handler returns an http.Handler with CORS and request logging.
func (s *DemoServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *DemoServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "elapsed", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, hint string) {
	writeJSON(w, status, domain.ErrorBody{Error: msg, Hint: hint})
}

// applyFault answers with an injected fault, reporting whether it did.
func (s *DemoServer) applyFault(w http.ResponseWriter, resource string) bool {
	f, ok := s.takeFault(resource)
	if !ok {
		return false
	}
	status := f.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	msg := f.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	if status == http.StatusTooManyRequests && f.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(f.RetryAfter))))
	}
	writeJSON(w, status, domain.ErrorBody{Error: msg, Hint: f.Hint, RetryAfter: f.RetryAfter})
	return true
}

// ---------------------------------------------------------------------------
// Tracked stocks
// ---------------------------------------------------------------------------

func (s *DemoServer) handleListStocks(w http.ResponseWriter, _ *http.Request) {
	if s.applyFault(w, "stocks") {
		return
	}
	writeJSON(w, http.StatusOK, s.Tracked())
}

func (s *DemoServer) handleAddStock(w http.ResponseWriter, r *http.Request) {
	var req domain.AddStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	sym, err := stockapi.NormalizeSymbol(req.Symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "e.g. AAPL, 7203.T, ^N225")
		return
	}

	l, known := lookupListing(sym)
	if !known && !req.Force {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no data found for %s", sym),
			"check the symbol, or add it with force to track it anyway")
		return
	}

	s.mu.Lock()
	if s.indexOf(sym) >= 0 {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "this symbol is already tracked", "")
		return
	}
	s.stocks = append(s.stocks, domain.TrackedStock{
		Symbol:  sym,
		Name:    l.Name,
		AddedAt: s.now().UTC().Format(time.RFC3339),
	})
	s.mu.Unlock()

	resp := domain.AddStockResponse{
		Message:    fmt.Sprintf("added %s", sym),
		Symbol:     sym,
		Name:       l.Name,
		InfoLoaded: known,
	}
	if !known {
		resp.Warning = "company info could not be loaded"
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *DemoServer) handleUpdateHoldings(w http.ResponseWriter, r *http.Request) {
	sym := r.PathValue("symbol")
	var h domain.Holdings
	if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if h.Quantity < 0 || h.AvgPrice < 0 {
		writeError(w, http.StatusBadRequest, "quantity and avg_price must not be negative", "")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(sym)
	if i < 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s is not tracked", sym), "")
		return
	}
	s.stocks[i].Quantity = h.Quantity
	s.stocks[i].AvgPrice = h.AvgPrice
	writeJSON(w, http.StatusOK, map[string]string{"message": "holdings updated"})
}

func (s *DemoServer) handleRemoveStock(w http.ResponseWriter, r *http.Request) {
	sym := r.PathValue("symbol")

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(sym)
	if i < 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s is not tracked", sym), "")
		return
	}
	s.stocks = slices.Delete(s.stocks, i, i+1)
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("removed %s", sym)})
}

func (s *DemoServer) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	if s.applyFault(w, "dashboard") {
		return
	}
	now := s.now()
	entries := []domain.DashboardEntry{}
	for _, t := range s.Tracked() {
		l, _ := lookupListing(t.Symbol)
		p := pricePayload(t.Symbol, l, generateHistory(t.Symbol, l, now), domain.Period1M)
		entries = append(entries, domain.DashboardEntry{
			Symbol:        t.Symbol,
			Name:          t.Name,
			Price:         p.CurrentPrice,
			Change:        p.Change,
			ChangePercent: p.ChangePercent,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// ---------------------------------------------------------------------------
// Per-symbol detail
// ---------------------------------------------------------------------------

// resolve finds the listing of the path symbol. Untracked symbols are served
// only when the market knows them.
func (s *DemoServer) resolve(w http.ResponseWriter, r *http.Request, resource string) (string, listing, bool) {
	if s.applyFault(w, resource) {
		return "", listing{}, false
	}
	sym := r.PathValue("symbol")
	l, known := lookupListing(sym)
	if !known {
		s.mu.Lock()
		tracked := s.indexOf(sym) >= 0
		s.mu.Unlock()
		if !tracked {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no data found for %s", sym), "")
			return "", listing{}, false
		}
	}
	return sym, l, true
}

func parsePeriod(w http.ResponseWriter, r *http.Request) (domain.Period, bool) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return domain.DefaultPeriod, true
	}
	p, err := domain.ParsePeriod(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid period %q", raw), "use one of 1mo, 3mo, 6mo, 1y, 2y")
		return "", false
	}
	return p, true
}

func (s *DemoServer) handlePrice(w http.ResponseWriter, r *http.Request) {
	sym, l, ok := s.resolve(w, r, "price")
	if !ok {
		return
	}
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, pricePayload(sym, l, generateHistory(sym, l, s.now()), period))
}

func (s *DemoServer) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	sym, l, ok := s.resolve(w, r, "analysis")
	if !ok {
		return
	}
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analysisPayload(sym, generateHistory(sym, l, s.now()), period))
}

func (s *DemoServer) handleFinancials(w http.ResponseWriter, r *http.Request) {
	sym, l, ok := s.resolve(w, r, "financials")
	if !ok {
		return
	}
	history := generateHistory(sym, l, s.now())
	cur := history[len(history)-1].Close.InexactFloat64()
	writeJSON(w, http.StatusOK, financialsPayload(sym, l, cur))
}

func (s *DemoServer) handleDividends(w http.ResponseWriter, r *http.Request) {
	sym, l, ok := s.resolve(w, r, "dividends")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dividendsPayload(sym, l, s.now()))
}

func (s *DemoServer) handlePrediction(w http.ResponseWriter, r *http.Request) {
	sym, l, ok := s.resolve(w, r, "prediction")
	if !ok {
		return
	}
	days := 30
	if raw := r.URL.Query().Get("periods"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPredictionDays {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid periods %q", raw),
				fmt.Sprintf("use a number of days between 1 and %d", MaxPredictionDays))
			return
		}
		days = n
	}
	writeJSON(w, http.StatusOK, predictionPayload(sym, l, generateHistory(sym, l, s.now()), days))
}
