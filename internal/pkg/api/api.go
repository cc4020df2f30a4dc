// Package api serves the read-only status and transaction query endpoints
// used by operator tooling. It only reads from an audit.Querier.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/endorses/paycat/internal/pkg/audit"
	"github.com/endorses/paycat/internal/pkg/constants"
	"github.com/endorses/paycat/internal/pkg/logger"
	"github.com/endorses/paycat/internal/pkg/stats"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config contains the API server configuration
type Config struct {
	ListenAddr string
	// StatsWindow is how far back /api/stats reports hourly counts
	StatsWindow time.Duration
}

// Server is the HTTP query API
type Server struct {
	config  Config
	store   audit.Querier
	stats   *stats.Collector
	now     func() time.Time
	handler http.Handler

	httpServer *http.Server
	listener   net.Listener
}

// New creates the API server. collector may be nil.
func New(config Config, store audit.Querier, collector *stats.Collector) *Server {
	if config.ListenAddr == "" {
		config.ListenAddr = constants.DefaultAPIListenAddr
	}
	if config.StatsWindow <= 0 {
		config.StatsWindow = 24 * time.Hour
	}

	s := &Server{
		config: config,
		store:  store,
		stats:  collector,
		now:    time.Now,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the router, for embedding or testing
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "paycat"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/stats", s.handleStats)
		r.Get("/switch", s.handleSwitch)
	})
	return r
}

// Start binds the listener and serves in the background
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}
	s.listener = l
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server stopped", "error", err)
		}
	}()
	logger.Info("API listening", "addr", l.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops the server, waiting at most constants.GracefulShutdownTimeout
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, constants.GracefulShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	records, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	since := s.now().Add(-s.config.StatsWindow)
	counts, err := s.store.CountsByHour(r.Context(), since)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	byHour := make(map[string]int64, len(counts))
	for _, c := range counts {
		byHour[c.Hour.UTC().Format("2006-01-02 15:00")] = c.Count
	}
	writeJSON(w, http.StatusOK, byHour)
}

// handleSwitch reports the live counters of the running switch
func (s *Server) handleSwitch(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "switch statistics not available"})
		return
	}
	st := s.stats.Get()
	writeJSON(w, http.StatusOK, map[string]any{
		"start_time":        st.StartTime,
		"active_sessions":   st.ActiveSessions,
		"accepted_sessions": st.AcceptedSessions,
		"refused_sessions":  st.RefusedSessions,
		"messages_received": st.MessagesReceived,
		"messages_sent":     st.MessagesSent,
		"decode_errors":     st.DecodeErrors,
		"timeouts":          st.Timeouts,
		"approved":          st.Approved,
		"declined":          st.Declined,
		"system_errors":     st.SystemErrors,
		"process": map[string]any{
			"cpu_percent":        st.Process.CPUPercent,
			"memory_rss_bytes":   st.Process.RSSBytes,
			"memory_limit_bytes": st.Process.LimitBytes,
		},
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger.Error("API query failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// parseLimit applies the default and the upper bound of ?limit
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return constants.DefaultTransactionLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if n > constants.MaxTransactionLimit {
		n = constants.MaxTransactionLimit
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write API response", "error", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
