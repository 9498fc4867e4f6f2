// Package statusapi serves read-only run progress over HTTP while a
// conversion is running.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"scrapscii/internal/ledger"
	"scrapscii/internal/logging"
	"scrapscii/internal/stats"
)

const defaultRunLimit = 20

// History is the ledger view the server exposes.
type History interface {
	Runs(ctx context.Context, limit int) ([]ledger.Run, error)
	Shards(ctx context.Context) ([]ledger.ShardEntry, error)
}

// StatsView is the JSON shape of a stats snapshot.
type StatsView struct {
	stats.Stats
	RunID   string `json:"run_id,omitempty"`
	Total   int    `json:"total"`
	Summary string `json:"summary"`
}

// NewStatsView renders a snapshot for clients.
func NewStatsView(runID string, snapshot stats.Stats) StatsView {
	return StatsView{Stats: snapshot, RunID: runID, Total: snapshot.Total(), Summary: snapshot.String()}
}

// Server exposes a tracker and the ledger.
type Server struct {
	bind    string
	runID   string
	tracker *stats.Tracker
	history History
	logger  *slog.Logger

	listener net.Listener
	server   *http.Server
}

// New builds a server; it does not listen until Start.
func New(bind, runID string, tracker *stats.Tracker, history History, logger *slog.Logger) *Server {
	s := &Server{
		bind:    strings.TrimSpace(bind),
		runID:   runID,
		tracker: tracker,
		history: history,
		logger:  logging.NewComponentLogger(logger, "statusapi"),
	}
	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Router returns the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the status endpoints on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/shards", s.handleShards)
	r.Get("/runs", s.handleRuns)
}

// Start listens on the configured address and shuts down when ctx ends.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("status listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("status server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, NewStatsView(s.runID, s.tracker.Snapshot()))
}

func (s *Server) handleShards(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusOK, []ledger.ShardEntry{})
		return
	}
	shards, err := s.history.Shards(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if shards == nil {
		shards = []ledger.ShardEntry{}
	}
	s.writeJSON(w, http.StatusOK, shards)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	if s.history == nil {
		s.writeJSON(w, http.StatusOK, []ledger.Run{})
		return
	}
	runs, err := s.history.Runs(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []ledger.Run{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("write status response failed", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
