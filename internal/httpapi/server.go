package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"marketcorr/internal/analysis"
	"marketcorr/internal/cache"
	"marketcorr/internal/domain"
	"marketcorr/internal/store"
	"marketcorr/internal/update"
	"marketcorr/pkg/marketcorr"
)

// Updater triggers refresh runs; satisfied by *update.Orchestrator.
type Updater interface {
	Refresh(ctx context.Context, symbols []string) (update.Summary, error)
	Download(ctx context.Context, symbols []string) (update.Summary, error)
}

// AnalysisOptions are the server-side defaults for the correlation and
// drawdown endpoints; query parameters can narrow but not disable them.
type AnalysisOptions struct {
	MinOverlap        int
	MinCorrelation    float64
	ResultLimit       int
	DrawdownThreshold float64
}

// Server serves the query API over the store.
type Server struct {
	store   *store.Store
	runs    *store.RunStore // nil disables /api/update/history
	cache   cache.Cache     // nil disables result caching
	updater Updater         // nil disables /api/update
	opts    AnalysisOptions
	log     *slog.Logger

	updateMu sync.Mutex // one update run at a time
}

// NewServer creates a Server. runs, c and updater may each be nil.
func NewServer(st *store.Store, runs *store.RunStore, c cache.Cache, updater Updater, opts AnalysisOptions, log *slog.Logger) *Server {
	if opts.MinOverlap <= 0 {
		opts.MinOverlap = 50
	}
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = 100
	}
	if opts.DrawdownThreshold <= 0 {
		opts.DrawdownThreshold = 0.15
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		store:   st,
		runs:    runs,
		cache:   c,
		updater: updater,
		opts:    opts,
		log:     log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/indices", s.handleIndices)
	mux.HandleFunc("GET /api/index/{symbol}", s.handleIndexSeries)
	mux.HandleFunc("GET /api/stock/{symbol}", s.handleStockSeries)
	mux.HandleFunc("GET /api/correlation/{symbol}", s.handleCorrelation)
	mux.HandleFunc("GET /api/correlation/{symbol}/all", s.handleCorrelationAll)
	mux.HandleFunc("GET /api/drawdowns/{symbol}", s.handleDrawdowns)
	mux.HandleFunc("POST /api/update", s.handleUpdate)
	mux.HandleFunc("GET /api/update/history", s.handleUpdateHistory)
	mux.HandleFunc("GET /api/storage/stats", s.handleStorageStats)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// dateRange extracts and validates the optional start/end query params.
func dateRange(r *http.Request) (start, end string, err error) {
	start = r.URL.Query().Get("start")
	end = r.URL.Query().Get("end")
	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if _, perr := time.Parse(domain.DateFormat, d); perr != nil {
			return "", "", fmt.Errorf("bad date %q, want YYYY-MM-DD", d)
		}
	}
	if start != "" && end != "" && start > end {
		return "", "", fmt.Errorf("start %s after end %s", start, end)
	}
	return start, end, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	out := make([]marketcorr.Index, 0, len(domain.Indices))
	for _, code := range domain.IndexCodes() {
		def := domain.Indices[code]
		ij := marketcorr.Index{
			Symbol:       def.Code,
			Name:         def.Name,
			Constituents: len(def.Constituents),
		}
		if last, err := s.store.LastDate(code); err == nil {
			ij.Stored = true
			ij.LastDate = last
		}
		out = append(out, ij)
	}
	writeJSON(w, out)
}

func (s *Server) handleIndexSeries(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if _, ok := domain.Indices[symbol]; !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown index %q", symbol))
		return
	}
	s.serveSeries(w, r, symbol)
}

func (s *Server) handleStockSeries(w http.ResponseWriter, r *http.Request) {
	s.serveSeries(w, r, r.PathValue("symbol"))
}

func (s *Server) serveSeries(w http.ResponseWriter, r *http.Request, symbol string) {
	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := cache.Cached(r.Context(), s.cache, cache.Key("series", symbol, start, end), cache.TTLSeries,
		func() (marketcorr.Series, error) {
			series, err := s.store.Load(symbol)
			if err != nil {
				return marketcorr.Series{}, err
			}
			return seriesJSON(analysis.Restrict(series, start, end)), nil
		})
	if err != nil {
		s.seriesError(w, symbol, err)
		return
	}
	writeJSON(w, resp)
}

// seriesError maps store errors onto HTTP statuses: missing data is a
// clear 404, corruption a 500 that names the cause.
func (s *Server) seriesError(w http.ResponseWriter, symbol string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("no data for %q", symbol))
	case errors.Is(err, store.ErrCorrupt):
		s.log.Error("corrupt record", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("stored record for %q is corrupt", symbol))
	default:
		s.log.Error("loading series", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	def, ok := domain.Indices[symbol]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown index %q", symbol))
		return
	}
	s.serveCorrelation(w, r, symbol, def.Constituents, "correlation")
}

func (s *Server) handleCorrelationAll(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if _, ok := domain.Indices[symbol]; !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown index %q", symbol))
		return
	}
	symbols, err := s.store.ListSymbols()
	if err != nil {
		s.log.Error("listing symbols", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.serveCorrelation(w, r, symbol, symbols, "correlation-all")
}

func (s *Server) serveCorrelation(w http.ResponseWriter, r *http.Request, indexCode string, candidates []string, op string) {
	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minCorr := s.opts.MinCorrelation
	if v := r.URL.Query().Get("min_correlation"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			writeError(w, http.StatusBadRequest, "min_correlation must be in [0, 1]")
			return
		}
		minCorr = f
	}
	limit := s.opts.ResultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	key := cache.Key(op, indexCode, start, end,
		strconv.FormatFloat(minCorr, 'f', -1, 64), strconv.Itoa(limit))
	resp, err := cache.Cached(r.Context(), s.cache, key, cache.TTLCorrelation,
		func() (marketcorr.CorrelationResponse, error) {
			return s.correlate(indexCode, candidates, start, end, minCorr, limit)
		})
	if err != nil {
		s.seriesError(w, indexCode, err)
		return
	}
	writeJSON(w, resp)
}

// correlate ranks candidates against the index series. Per-candidate
// failures (missing record, corruption, thin overlap) are tallied and
// excluded, never surfaced as errors; only a missing index is fatal.
func (s *Server) correlate(indexCode string, candidates []string, start, end string, minCorr float64, limit int) (marketcorr.CorrelationResponse, error) {
	index, err := s.store.Load(indexCode)
	if err != nil {
		return marketcorr.CorrelationResponse{}, err
	}
	index = analysis.Restrict(index, start, end)

	resp := marketcorr.CorrelationResponse{
		Index:     indexCode,
		Name:      index.Name,
		StartDate: start,
		EndDate:   end,
	}

	var results []*domain.CorrelationResult
	for _, symbol := range candidates {
		if symbol == indexCode {
			continue
		}
		resp.Totals.Analyzed++

		cand, err := s.store.Load(symbol)
		if err != nil {
			continue
		}
		res, err := analysis.Correlate(index, analysis.Restrict(cand, start, end), s.opts.MinOverlap)
		if err != nil {
			continue
		}
		resp.Totals.WithData++
		results = append(results, res)
	}

	for _, res := range analysis.Rank(results, minCorr, limit) {
		resp.Results = append(resp.Results, correlationJSON(res))
	}
	resp.Totals.Returned = len(resp.Results)
	if resp.Results == nil {
		resp.Results = []marketcorr.Correlation{}
	}
	return resp, nil
}

func (s *Server) handleDrawdowns(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	threshold := s.opts.DrawdownThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f >= 1 {
			writeError(w, http.StatusBadRequest, "threshold must be in (0, 1)")
			return
		}
		threshold = f
	}

	series, err := s.store.Load(symbol)
	if err != nil {
		s.seriesError(w, symbol, err)
		return
	}

	episodes := analysis.Drawdowns(analysis.Restrict(series, start, end), threshold)
	writeJSON(w, marketcorr.DrawdownResponse{
		Symbol:    symbol,
		Threshold: threshold,
		Episodes:  episodesJSON(episodes),
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if s.updater == nil {
		writeError(w, http.StatusServiceUnavailable, "updates not configured")
		return
	}
	if !s.updateMu.TryLock() {
		writeError(w, http.StatusConflict, "an update run is already in progress")
		return
	}
	defer s.updateMu.Unlock()

	var req marketcorr.UpdateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
			return
		}
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		stored, err := s.store.ListSymbols()
		if err != nil {
			s.log.Error("listing symbols", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		symbols = updateUniverse(stored)
	}

	var (
		sum update.Summary
		err error
	)
	if req.Full {
		sum, err = s.updater.Download(r.Context(), symbols)
	} else {
		sum, err = s.updater.Refresh(r.Context(), symbols)
	}
	if err != nil {
		s.log.Error("update run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "update run failed: "+err.Error())
		return
	}
	writeJSON(w, marketcorr.UpdateResponse{Summary: summaryJSON(sum)})
}

// updateUniverse merges the index codes with the stored symbols, indices
// first; the refresh flow brings them current before deriving the
// equities' target date.
func updateUniverse(stored []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, code := range domain.IndexCodes() {
		seen[code] = struct{}{}
		out = append(out, code)
	}
	for _, sym := range stored {
		if _, dup := seen[sym]; dup {
			continue
		}
		out = append(out, sym)
	}
	return out
}

func (s *Server) handleUpdateHistory(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history not configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		s.log.Error("loading run history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, marketcorr.HistoryResponse{Runs: runsJSON(runs)})
}

func (s *Server) handleStorageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		s.log.Error("reading storage stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, stats)
}
