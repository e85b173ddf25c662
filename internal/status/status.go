// Package status exposes the daemon's read-only HTTP surface: a
// liveness probe and the recent processing history.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/imnyang/newsletter/internal/journal"
)

// HistoryReader returns recent processing outcomes, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

var _ HistoryReader = (*journal.Journal)(nil)

const defaultHistoryLimit = 50

// Server serves the status endpoints. A nil history means the journal
// is disabled; the history endpoint then reports an empty list.
type Server struct {
	history HistoryReader
	logger  *slog.Logger
	router  chi.Router
}

// New builds a status server around an optional history source.
func New(history HistoryReader, logger *slog.Logger) *Server {
	s := &Server{
		history: history,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/api/history", s.handleHistory)
	s.router = r

	return s
}

// Handler returns the HTTP handler for the status routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down
// gracefully. A bind failure is returned immediately.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("status listener: %w", err)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("status server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if s.history == nil {
		s.writeJSON(w, []journal.Entry{})
		return
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	s.writeJSON(w, entries)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response failed", "error", err)
	}
}
